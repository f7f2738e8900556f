// Package export moves aggregated metric state off-process: a periodic
// exporter snapshots the registry on a fixed interval and a transport
// delivers snapshots to the collector with retry on transient failures.
package export

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/neox5/metricbox/metric"
)

const (
	DefaultInterval = 15 * time.Second
	DefaultTimeout  = 5 * time.Second
)

// Option configures a PeriodicExporter.
type Option func(*PeriodicExporter)

// WithInterval sets the export interval.
func WithInterval(d time.Duration) Option {
	return func(e *PeriodicExporter) { e.interval = d }
}

// WithTimeout sets the per-export deadline, including the final export
// attempted on shutdown.
func WithTimeout(d time.Duration) Option {
	return func(e *PeriodicExporter) { e.timeout = d }
}

// PeriodicExporter snapshots a registry on a fixed interval and hands the
// snapshots to a transport on a background goroutine. Snapshots are passed
// through a depth-1 queue; when a send is still in flight on the next tick,
// the older pending snapshot is dropped so exporting never blocks the
// application.
type PeriodicExporter struct {
	registry  *metric.Registry
	transport Transport
	interval  time.Duration
	timeout   time.Duration

	pending chan *metric.Snapshot
	wg      sync.WaitGroup
}

// NewPeriodicExporter creates an exporter for the given registry and
// transport.
func NewPeriodicExporter(r *metric.Registry, t Transport, opts ...Option) *PeriodicExporter {
	e := &PeriodicExporter{
		registry:  r,
		transport: t,
		interval:  DefaultInterval,
		timeout:   DefaultTimeout,
		pending:   make(chan *metric.Snapshot, 1),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start runs the export loop until ctx is cancelled, then attempts one final
// export with a bounded deadline. It blocks; run it on its own goroutine.
func (e *PeriodicExporter) Start(ctx context.Context) error {
	slog.Info("starting periodic exporter", "interval", e.interval, "timeout", e.timeout)

	e.wg.Go(func() { e.sendLoop(ctx) })

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(e.pending)
			e.wg.Wait()
			return e.exportFinal()
		case <-ticker.C:
			e.enqueue(e.registry.Snapshot())
		}
	}
}

// enqueue hands a snapshot to the sender without blocking, dropping the
// oldest pending snapshot when the queue is full.
func (e *PeriodicExporter) enqueue(snap *metric.Snapshot) {
	for {
		select {
		case e.pending <- snap:
			return
		default:
		}

		select {
		case old := <-e.pending:
			slog.Warn("previous export still in flight, dropping pending snapshot",
				"timestamp", old.Timestamp)
		default:
		}
	}
}

func (e *PeriodicExporter) sendLoop(ctx context.Context) {
	for snap := range e.pending {
		sendCtx, cancel := context.WithTimeout(ctx, e.timeout)
		if err := e.transport.Send(sendCtx, snap); err != nil {
			slog.Warn("metric export failed, snapshot dropped", "error", err)
		}
		cancel()
	}
}

// exportFinal performs the shutdown export. Failures are logged, never
// returned; export loss at shutdown is accepted.
func (e *PeriodicExporter) exportFinal() error {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	slog.Info("final metric export")
	if err := e.transport.Send(ctx, e.registry.Snapshot()); err != nil {
		slog.Warn("final metric export failed", "error", err)
	}

	return nil
}
