package services

import (
	"comms-lab/domain"
	"comms-lab/domain/event"
	"comms-lab/infrastructure/storage"
	"comms-lab/mocks"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// tickingClock returns a strictly increasing instant on every call.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTickingClock() *tickingClock {
	return &tickingClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type recordedEvents struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recordedEvents) add(evt event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordedEvents) take() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.events
	r.events = nil
	return events
}

type fixture struct {
	service     *CommsService
	unread      *UnreadCalculator
	users       *storage.UserRepository
	memberships *storage.MembershipRepository
	events      *recordedEvents
}

func setupCommsService(t *testing.T, cacheSize int64) fixture {
	t.Helper()
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	sequences := make(map[string]*storage.Sequence)
	for _, key := range []string{storage.SeqThread, storage.SeqMessage, storage.SeqUser} {
		seq, err := storage.NewSequence(db, key, 10)
		req.NoError(err)
		sequences[key] = seq
	}

	clock := newTickingClock()
	threads := storage.NewThreadRepository(db, log, sequences[storage.SeqThread])
	messages := storage.NewMessageRepository(db, log, sequences[storage.SeqMessage], 100).WithClock(clock.Now)
	memberships := storage.NewMembershipRepository(db, log)
	users := storage.NewUserRepository(db, sequences[storage.SeqUser])

	unread, err := NewUnreadCalculator(threads, messages, memberships, cacheSize)
	req.NoError(err)

	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockIDispatcher(ctrl)
	events := &recordedEvents{}
	dispatcher.EXPECT().Dispatch(gomock.Any()).Do(events.add).AnyTimes()

	service := NewCommsService(log, threads, messages, memberships, users, unread, dispatcher, nil,
		CommsConfig{MaxContentLength: 500, LimitMessages: 100})
	service.now = clock.Now

	t.Cleanup(func() {
		unread.Close()
		for _, seq := range sequences {
			_ = seq.Release()
		}
		_ = db.Close()
	})
	return fixture{service: service, unread: unread, users: users, memberships: memberships, events: events}
}

func (f fixture) createUser(t *testing.T, username string, roles ...string) domain.Actor {
	t.Helper()
	user, err := f.users.CreateUser(username, "", "hash", roles)
	require.NoError(t, err)
	return domain.Actor{ID: user.ID, Roles: user.Roles}
}
