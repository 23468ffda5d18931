package runtime

import (
	"comms-lab/contract"
	"comms-lab/domain/event"
	"log/slog"
	"sync/atomic"
)

// Dispatcher accepts events from the API layer without ever blocking it.
// Events are queued on a bounded channel drained by a DispatchWorker;
// when the queue is full the event is dropped, clients recover by re-fetching.
type Dispatcher struct {
	log      *slog.Logger
	registry contract.IRegistry
	events   chan event.Event
	dropped  atomic.Uint64
}

func NewDispatcher(log *slog.Logger, registry contract.IRegistry, bufferSize int) *Dispatcher {
	return &Dispatcher{
		log:      log,
		registry: registry,
		events:   make(chan event.Event, bufferSize),
	}
}

// Dispatch patches the registry for membership changes right away, so the thread
// associations stay in sync even when the event itself is dropped, then enqueues.
func (d *Dispatcher) Dispatch(evt event.Event) {
	if change, ok := evt.(event.MembershipChange); ok {
		d.registry.OnMembershipChanged(change.ThreadID, change.UserID, change.Action)
	}
	select {
	case d.events <- evt:
	default:
		d.dropped.Add(1)
		d.log.Warn("Dispatch queue full, dropping event", "type", evt.Type(), "targets", len(evt.Targets()))
	}
}

// Events is the queue consumed by the dispatch worker. It is never closed.
func (d *Dispatcher) Events() <-chan event.Event {
	return d.events
}

// Dropped counts the events rejected because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Pending is the number of events waiting in the queue.
func (d *Dispatcher) Pending() int {
	return len(d.events)
}
