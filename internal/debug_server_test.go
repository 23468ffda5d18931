package internal

import (
	"comms-lab/infrastructure/storage"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestInspectHandler_ListsRecordsAndStats(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	// Given a thread stored through the repository
	seq, err := storage.NewSequence(db, storage.SeqThread, 10)
	req.NoError(err)
	t.Cleanup(func() { _ = seq.Release() })
	threads := storage.NewThreadRepository(db, logs.GetLoggerFromLevel(slog.LevelDebug), seq)
	_, err = threads.Create("Launch", 1, time.Now())
	req.NoError(err)

	handler := InspectHandler(db, func() map[string]any {
		return map[string]any{"connections": 3}
	})

	// When the thread prefix is inspected
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inspect?prefix=thread:", nil))

	// Then the page shows the decoded thread and the counters
	req.Equal(http.StatusOK, rec.Code)
	req.Contains(rec.Body.String(), "THREAD")
	req.Contains(rec.Body.String(), "Launch")
	req.Contains(rec.Body.String(), "connections: 3")
}
