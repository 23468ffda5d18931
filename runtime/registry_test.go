package runtime

import (
	"comms-lab/contract"
	"comms-lab/domain"
	"comms-lab/mocks"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newConnection(ctrl *gomock.Controller) *mocks.MockConnection {
	conn := mocks.NewMockConnection(ctrl)
	conn.EXPECT().ID().Return(uuid.NewString()).AnyTimes()
	return conn
}

func TestRegistry_Register_FirstConnectionLoadsThreads(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	lister := mocks.NewMockMembershipLister(ctrl)
	registry := NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug), lister)
	userID := domain.UserID(1)

	// Given a user member of two threads
	lister.EXPECT().ThreadsOf(userID).Return([]domain.ThreadID{3, 1}, nil).Times(1)

	// When two connections of the same user register
	phone, laptop := newConnection(ctrl), newConnection(ctrl)
	req.NoError(registry.Register(userID, phone))
	req.NoError(registry.Register(userID, laptop))

	// Then the threads were loaded once and both connections are live
	req.Equal([]domain.ThreadID{1, 3}, registry.ThreadsFor(userID))
	req.ElementsMatch([]contract.Connection{phone, laptop}, registry.LiveConnectionsFor(userID))
	req.Equal(RegistryStats{Users: 1, Connections: 2, ThreadAssociations: 2}, registry.Stats())
}

func TestRegistry_Register_LoadErrorHasNoSideEffect(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	lister := mocks.NewMockMembershipLister(ctrl)
	registry := NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug), lister)

	lister.EXPECT().ThreadsOf(domain.UserID(1)).Return(nil, errors.New("disk gone"))

	err := registry.Register(1, newConnection(ctrl))

	req.Error(err)
	req.Empty(registry.LiveConnectionsFor(1))
	req.Equal(RegistryStats{}, registry.Stats())
}

func TestRegistry_Unregister_LastConnectionDropsThreads(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	lister := mocks.NewMockMembershipLister(ctrl)
	registry := NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug), lister)

	lister.EXPECT().ThreadsOf(domain.UserID(1)).Return([]domain.ThreadID{1}, nil)
	phone, laptop := newConnection(ctrl), newConnection(ctrl)
	req.NoError(registry.Register(1, phone))
	req.NoError(registry.Register(1, laptop))

	// When one connection goes away
	registry.Unregister(1, phone)

	// Then the user stays live with its threads
	req.Equal([]contract.Connection{laptop}, registry.LiveConnectionsFor(1))
	req.Equal([]domain.ThreadID{1}, registry.ThreadsFor(1))

	// When the last one goes away, twice
	registry.Unregister(1, laptop)
	registry.Unregister(1, laptop)

	// Then nothing is left
	req.Empty(registry.LiveConnectionsFor(1))
	req.Empty(registry.ThreadsFor(1))
	req.Equal(RegistryStats{}, registry.Stats())
}

func TestRegistry_Unregister_UnknownUserIsNoop(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug), mocks.NewMockMembershipLister(ctrl))

	req.NotPanics(func() { registry.Unregister(42, newConnection(ctrl)) })
}

func TestRegistry_OnMembershipChanged_PatchesLiveUsersOnly(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	lister := mocks.NewMockMembershipLister(ctrl)
	registry := NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug), lister)

	lister.EXPECT().ThreadsOf(domain.UserID(1)).Return([]domain.ThreadID{1}, nil)
	req.NoError(registry.Register(1, newConnection(ctrl)))

	// When membership changes for a live and an offline user
	registry.OnMembershipChanged(2, 1, domain.MembershipAdded)
	registry.OnMembershipChanged(1, 1, domain.MembershipRemoved)
	registry.OnMembershipChanged(5, 9, domain.MembershipAdded)

	// Then only the live user is tracked
	req.Equal([]domain.ThreadID{2}, registry.ThreadsFor(1))
	req.Empty(registry.ThreadsFor(9))
	req.Equal(1, registry.Stats().Users)
}

func TestRegistry_ConcurrentRegisterUnregister(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	lister := mocks.NewMockMembershipLister(ctrl)
	registry := NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug), lister)
	lister.EXPECT().ThreadsOf(gomock.Any()).Return([]domain.ThreadID{1}, nil).AnyTimes()

	const users = 10
	const perUser = 20
	conns := make([][]contract.Connection, users)
	for u := range users {
		for range perUser {
			conns[u] = append(conns[u], newConnection(ctrl))
		}
	}

	var wg sync.WaitGroup
	for u := range users {
		for _, conn := range conns[u] {
			wg.Add(1)
			go func(userID domain.UserID, conn contract.Connection) {
				defer wg.Done()
				if err := registry.Register(userID, conn); err != nil {
					panic(fmt.Sprintf("register: %v", err))
				}
				_ = registry.LiveConnectionsFor(userID)
				registry.OnMembershipChanged(2, userID, domain.MembershipAdded)
				registry.Unregister(userID, conn)
			}(domain.UserID(u+1), conn)
		}
	}
	wg.Wait()

	req.Equal(RegistryStats{}, registry.Stats())
}
