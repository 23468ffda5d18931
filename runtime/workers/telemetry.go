package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Snapshot is one sample of the runtime state reported by the TelemetryWorker.
type Snapshot struct {
	Users          int
	Connections    int
	Pending        int
	Dropped        uint64
	Delivered      uint64
	Failed         uint64
	CPUPercent     float64
	MemoryRSSBytes uint64
}

// Source gathers the in-process counters of a snapshot.
type Source func() Snapshot

// TelemetryWorker logs a snapshot every metricInterval, enriched with
// the process CPU and memory usage.
type TelemetryWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	source         Source
	proc           *process.Process
}

func NewTelemetryWorker(log *slog.Logger, metricInterval time.Duration, source Source) *TelemetryWorker {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process stats unavailable", "error", err)
	}
	return &TelemetryWorker{
		log:            log,
		metricInterval: metricInterval,
		source:         source,
		proc:           proc,
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.report(w.Sample())
		}
	}
}

// Sample reads the counters and the process usage once.
func (w *TelemetryWorker) Sample() Snapshot {
	snapshot := w.source()
	if w.proc == nil {
		return snapshot
	}
	if cpu, err := w.proc.CPUPercent(); err == nil {
		snapshot.CPUPercent = cpu
	}
	if mem, err := w.proc.MemoryInfo(); err == nil && mem != nil {
		snapshot.MemoryRSSBytes = mem.RSS
	}
	return snapshot
}

func (w *TelemetryWorker) report(s Snapshot) {
	w.log.Info("Telemetry",
		"users", s.Users,
		"connections", s.Connections,
		"pending", s.Pending,
		"dropped", s.Dropped,
		"delivered", s.Delivered,
		"failed", s.Failed,
		"cpu_percent", s.CPUPercent,
		"rss_bytes", s.MemoryRSSBytes,
	)
	if s.Dropped > 0 {
		w.log.Warn("Events dropped since start", "dropped", s.Dropped)
	}
}
