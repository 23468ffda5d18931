// Package runtime keeps the live side of the system: connections, event
// dispatch and the supervised workers. It holds no business rules.
package runtime

import (
	"comms-lab/contract"
	"comms-lab/runtime/workers"
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

type Orchestrator struct {
	log            *slog.Logger
	supervisor     contract.ISupervisor
	registry       *Registry
	dispatcher     *Dispatcher
	dispatchWorker *workers.DispatchWorker
	metricInterval time.Duration
	running        atomic.Bool
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry *Registry, dispatcher *Dispatcher,
	sinkTimeout, metricInterval time.Duration) *Orchestrator {
	return &Orchestrator{
		log:            log,
		supervisor:     supervisor,
		registry:       registry,
		dispatcher:     dispatcher,
		dispatchWorker: workers.NewDispatchWorker(log, dispatcher.Events(), registry, sinkTimeout),
		metricInterval: metricInterval,
	}
}

// Start registers the dispatch and telemetry workers and runs the supervisor.
// It blocks until the supervisor stops.
func (o *Orchestrator) Start(ctx context.Context) error {
	telemetry := workers.NewTelemetryWorker(o.log, o.metricInterval, o.Snapshot)
	o.supervisor.Add(o.dispatchWorker, telemetry)

	o.log.Info("Starting orchestrator and all supervised workers")
	o.running.Store(true)
	defer o.running.Store(false)
	o.supervisor.Run(ctx)
	return nil
}

// Running reports whether the supervised workers are up.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Snapshot gathers the registry and dispatch counters.
func (o *Orchestrator) Snapshot() workers.Snapshot {
	stats := o.registry.Stats()
	return workers.Snapshot{
		Users:       stats.Users,
		Connections: stats.Connections,
		Pending:     o.dispatcher.Pending(),
		Dropped:     o.dispatcher.Dropped(),
		Delivered:   o.dispatchWorker.Delivered(),
		Failed:      o.dispatchWorker.Failed(),
	}
}

// Stop cancels the supervised context, Start returns once workers are done.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
