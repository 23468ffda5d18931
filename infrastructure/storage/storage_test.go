package storage

import (
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type repositories struct {
	db          *badger.DB
	threads     *ThreadRepository
	messages    *MessageRepository
	memberships *MembershipRepository
	users       *UserRepository
}

func setupRepositories(t *testing.T, limitMessages int) repositories {
	t.Helper()
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	sequences := make(map[string]*Sequence)
	for _, key := range []string{SeqThread, SeqMessage, SeqUser} {
		seq, err := NewSequence(db, key, 10)
		req.NoError(err)
		sequences[key] = seq
	}
	t.Cleanup(func() {
		for _, seq := range sequences {
			_ = seq.Release()
		}
		_ = db.Close()
	})

	return repositories{
		db:          db,
		threads:     NewThreadRepository(db, log, sequences[SeqThread]),
		messages:    NewMessageRepository(db, log, sequences[SeqMessage], limitMessages),
		memberships: NewMembershipRepository(db, log),
		users:       NewUserRepository(db, sequences[SeqUser]),
	}
}
