package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/neox5/metricbox/wire"
)

// Processor accumulates received batches for up to a flush window or until a
// size threshold is reached, whichever comes first, then flushes them as one
// unit to the scrape exporter. Accumulation happens on a single background
// goroutine; the receiver hands batches over through a bounded intake queue.
type Processor struct {
	window   time.Duration
	maxBatch int

	intake   chan *wire.Request
	exporter *ScrapeExporter

	wg sync.WaitGroup

	flushes   prometheus.Counter
	batchSize prometheus.Histogram
}

// NewProcessor creates a processor flushing into exporter. Self-metrics are
// registered with reg when it is non-nil.
func NewProcessor(window time.Duration, maxBatch, queueSize int, exporter *ScrapeExporter, reg prometheus.Registerer) *Processor {
	p := &Processor{
		window:   window,
		maxBatch: maxBatch,
		intake:   make(chan *wire.Request, queueSize),
		exporter: exporter,

		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metricbox_processor_flushes_total",
			Help: "Total number of batch flushes",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "metricbox_processor_batch_size",
			Help:    "Number of snapshots per flushed batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}

	if reg != nil {
		reg.MustRegister(p.flushes, p.batchSize)
	}

	return p
}

// Intake returns the channel the receiver pushes validated batches into.
func (p *Processor) Intake() chan<- *wire.Request {
	return p.intake
}

// Run starts the accumulation loop in a background goroutine. On context
// cancellation the already-queued intake is drained and flushed once.
func (p *Processor) Run(ctx context.Context) {
	p.wg.Go(func() {
		timer := time.NewTimer(p.window)
		defer timer.Stop()

		var batch []*wire.Request

		flush := func() {
			if len(batch) > 0 {
				p.exporter.Flush(batch)
				p.flushes.Inc()
				p.batchSize.Observe(float64(len(batch)))
				slog.Debug("flushed batch", "size", len(batch))
				batch = nil
			}
			timer.Reset(p.window)
		}

		for {
			select {
			case <-ctx.Done():
				for {
					select {
					case req := <-p.intake:
						batch = append(batch, req)
						continue
					default:
					}
					break
				}
				flush()
				slog.Info("processor shutdown complete")
				return

			case req := <-p.intake:
				batch = append(batch, req)
				if len(batch) >= p.maxBatch {
					flush()
				}

			case <-timer.C:
				flush()
			}
		}
	})
}

// Wait blocks until the accumulation loop exits.
func (p *Processor) Wait() {
	p.wg.Wait()
}
