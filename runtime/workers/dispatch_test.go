package workers

import (
	"comms-lab/contract"
	"comms-lab/domain"
	"comms-lab/domain/event"
	"comms-lab/errors"
	"comms-lab/mocks"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestDispatchWorker_Deliver_EncodesOnceAndSkipsOfflineUsers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockIRegistry(ctrl)
	phone := mocks.NewMockConnection(ctrl)
	laptop := mocks.NewMockConnection(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given user 1 with two live connections and user 2 offline
	evt := event.NewMessage{
		Message:   domain.Message{ID: 1, ThreadID: 1, SenderID: 1, Content: "hi", CreatedAt: time.Now()},
		Sender:    event.Sender{ID: 1, DisplayName: "Alice (alice)"},
		Receivers: []domain.UserID{1, 2},
	}
	expected, err := event.Encode(evt)
	req.NoError(err)

	registry.EXPECT().LiveConnectionsFor(domain.UserID(1)).Return([]contract.Connection{phone, laptop})
	registry.EXPECT().LiveConnectionsFor(domain.UserID(2)).Return(nil)
	phone.EXPECT().Send(gomock.Any(), expected).Return(nil)
	laptop.EXPECT().Send(gomock.Any(), expected).Return(nil)

	w := NewDispatchWorker(log, nil, registry, time.Second)

	// When the event is delivered
	w.Deliver(context.Background(), evt)

	// Then both connections received the same bytes
	req.Equal(uint64(2), w.Delivered())
	req.Zero(w.Failed())
}

func TestDispatchWorker_Deliver_FailingConnectionDoesNotStopOthers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockIRegistry(ctrl)
	broken := mocks.NewMockConnection(ctrl)
	healthy := mocks.NewMockConnection(ctrl)

	// Given a connection whose buffer is full
	evt := event.UnreadUpdate{ThreadID: 3, UserID: 2, Count: 4}
	registry.EXPECT().LiveConnectionsFor(domain.UserID(2)).Return([]contract.Connection{broken, healthy})
	broken.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.ErrConnectionOverflow)
	broken.EXPECT().ID().Return("broken").AnyTimes()
	healthy.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)

	w := NewDispatchWorker(logs.GetLoggerFromLevel(slog.LevelDebug), nil, registry, time.Second)

	// When the event is delivered
	w.Deliver(context.Background(), evt)

	// Then the healthy connection still got it
	req.Equal(uint64(1), w.Delivered())
	req.Equal(uint64(1), w.Failed())
}

func TestDispatchWorker_Deliver_SendIsBoundedByTimeout(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockIRegistry(ctrl)
	conn := mocks.NewMockConnection(ctrl)

	evt := event.MembershipChange{ThreadID: 1, UserID: 5, Action: domain.MembershipAdded}
	registry.EXPECT().LiveConnectionsFor(domain.UserID(5)).Return([]contract.Connection{conn})
	conn.EXPECT().ID().Return("slow").AnyTimes()
	conn.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ []byte) error {
			_, hasDeadline := ctx.Deadline()
			req.True(hasDeadline)
			<-ctx.Done()
			return ctx.Err()
		})

	w := NewDispatchWorker(logs.GetLoggerFromLevel(slog.LevelDebug), nil, registry, 20*time.Millisecond)

	start := time.Now()
	w.Deliver(context.Background(), evt)

	req.Less(time.Since(start), time.Second)
	req.Equal(uint64(1), w.Failed())
}

func TestDispatchWorker_Run_DrainsQueueUntilCanceled(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockIRegistry(ctrl)
	conn := mocks.NewMockConnection(ctrl)

	events := make(chan event.Event, 2)
	events <- event.UnreadUpdate{ThreadID: 1, UserID: 1, Count: 1}
	events <- event.UnreadUpdate{ThreadID: 1, UserID: 1, Count: 2}

	received := make(chan []byte, 2)
	registry.EXPECT().LiveConnectionsFor(domain.UserID(1)).Return([]contract.Connection{conn}).Times(2)
	conn.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, payload []byte) error {
			received <- payload
			return nil
		}).Times(2)

	w := NewDispatchWorker(logs.GetLoggerFromLevel(slog.LevelDebug), events, registry, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Then events come out in queue order
	first := <-received
	second := <-received
	req.Contains(string(first), `"unreadCount":1`)
	req.Contains(string(second), `"unreadCount":2`)

	cancel()
	req.NoError(<-done)
}
