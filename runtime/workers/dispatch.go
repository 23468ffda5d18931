package workers

import (
	"comms-lab/contract"
	"comms-lab/domain/event"
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// DispatchWorker drains the dispatch queue and pushes each event to the live
// connections of its targets. Delivery is best-effort: no retry, no
// acknowledgement, a failing connection never affects the other ones.
type DispatchWorker struct {
	log         *slog.Logger
	events      <-chan event.Event
	registry    contract.IRegistry
	sendTimeout time.Duration
	delivered   atomic.Uint64
	failed      atomic.Uint64
}

func NewDispatchWorker(log *slog.Logger, events <-chan event.Event, registry contract.IRegistry, sendTimeout time.Duration) *DispatchWorker {
	return &DispatchWorker{
		log:         log,
		events:      events,
		registry:    registry,
		sendTimeout: sendTimeout,
	}
}

func (w *DispatchWorker) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.Deliver(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping dispatch")
			return nil
		}
	}
}

// Deliver encodes the event once then sends the same payload to every
// connection of every target. Users without live connections are skipped.
func (w *DispatchWorker) Deliver(ctx context.Context, evt event.Event) {
	payload, err := event.Encode(evt)
	if err != nil {
		w.log.Error("Unable to encode event", "type", evt.Type(), "error", err)
		return
	}
	for _, target := range evt.Targets() {
		for _, conn := range w.registry.LiveConnectionsFor(target) {
			w.send(ctx, conn, payload, evt.Type())
		}
	}
}

func (w *DispatchWorker) send(ctx context.Context, conn contract.Connection, payload []byte, t event.Type) {
	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()
	if err := conn.Send(sendCtx, payload); err != nil {
		w.failed.Add(1)
		w.log.Debug("Push failed", "connection", conn.ID(), "type", t, "error", err)
		return
	}
	w.delivered.Add(1)
}

// Delivered counts payloads accepted by a connection.
func (w *DispatchWorker) Delivered() uint64 { return w.delivered.Load() }

// Failed counts payloads a connection refused.
func (w *DispatchWorker) Failed() uint64 { return w.failed.Load() }
