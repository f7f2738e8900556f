// Package monitor periodically logs the collector's own resource usage.
package monitor

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Monitor logs process CPU and memory usage on a fixed interval.
type Monitor struct {
	interval time.Duration
	logger   *slog.Logger
	proc     *process.Process
	wg       sync.WaitGroup
}

// New creates a monitor with the given collection interval. Returns nil when
// the process handle cannot be obtained; callers skip monitoring in that
// case.
func New(interval time.Duration, logger *slog.Logger) *Monitor {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Error("failed to get process handle", "error", err)
		return nil
	}

	return &Monitor{
		interval: interval,
		logger:   logger,
		proc:     proc,
	}
}

// Run starts the monitoring loop in a background goroutine.
func (m *Monitor) Run(ctx context.Context) {
	m.wg.Go(func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				m.logger.Info("monitor shutdown complete")
				return
			case <-ticker.C:
				m.collect()
			}
		}
	})
}

// Wait blocks until the monitoring goroutine exits.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

func (m *Monitor) collect() {
	cpu, err := m.proc.CPUPercent()
	if err != nil {
		m.logger.Warn("failed to read cpu usage", "error", err)
		return
	}

	var rss uint64
	if mem, err := m.proc.MemoryInfo(); err == nil {
		rss = mem.RSS
	}

	m.logger.Info("resource usage",
		"cpu_pct", cpu,
		"rss_mb", float64(rss)/(1024*1024),
		"goroutines", runtime.NumGoroutine(),
	)
}
