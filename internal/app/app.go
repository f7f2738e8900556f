// Package app wires the collector pipeline from configuration.
package app

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/neox5/metricbox/internal/collector"
	"github.com/neox5/metricbox/internal/config"
)

// App holds initialized collector components. The shared Prometheus registry
// carries both the re-aggregated pipeline state and the collector's
// self-metrics.
type App struct {
	Config       *config.Config
	Registry     *prometheus.Registry
	Exporter     *collector.ScrapeExporter
	Processor    *collector.Processor
	Receiver     *collector.Receiver
	ScrapeServer *collector.ScrapeServer
}

// New initializes the collector pipeline from configuration.
func New(cfg *config.Config) (*App, error) {
	reg := prometheus.NewRegistry()

	exporter := collector.NewScrapeExporter()
	reg.MustRegister(exporter)

	processor := collector.NewProcessor(
		cfg.Batch.Window,
		cfg.Batch.MaxSize,
		cfg.Batch.QueueSize,
		exporter,
		reg,
	)

	receiver := collector.NewReceiver(cfg.Listen.Addr, processor.Intake(), reg)

	scrapeServer := collector.NewScrapeServer(
		cfg.Prometheus.Port,
		cfg.Prometheus.Path,
		reg,
	)

	return &App{
		Config:       cfg,
		Registry:     reg,
		Exporter:     exporter,
		Processor:    processor,
		Receiver:     receiver,
		ScrapeServer: scrapeServer,
	}, nil
}
