package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestTelemetryWorker_Sample_MergesSourceCounters(t *testing.T) {
	req := require.New(t)
	w := NewTelemetryWorker(logs.GetLoggerFromLevel(slog.LevelDebug), time.Second, func() Snapshot {
		return Snapshot{Users: 2, Connections: 3, Pending: 1, Dropped: 4}
	})

	s := w.Sample()

	req.Equal(2, s.Users)
	req.Equal(3, s.Connections)
	req.Equal(1, s.Pending)
	req.Equal(uint64(4), s.Dropped)
}

func TestTelemetryWorker_Run_StopsOnCancel(t *testing.T) {
	req := require.New(t)
	calls := make(chan struct{}, 10)
	w := NewTelemetryWorker(logs.GetLoggerFromLevel(slog.LevelDebug), 10*time.Millisecond, func() Snapshot {
		select {
		case calls <- struct{}{}:
		default:
		}
		return Snapshot{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	<-calls
	cancel()
	req.NoError(<-done)
}
