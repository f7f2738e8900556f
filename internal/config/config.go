// Package config holds the collector's YAML configuration.
package config

import "time"

const (
	DefaultListenAddr = ":4318"

	DefaultBatchWindow    = 5 * time.Second
	DefaultBatchMaxSize   = 64
	DefaultBatchQueueSize = 256

	DefaultPrometheusPort = 9090
	DefaultPrometheusPath = "/metrics"
)

// Config holds the complete collector configuration.
type Config struct {
	Listen     ListenConfig     `yaml:"listen"`
	Batch      BatchConfig      `yaml:"batch"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
}

// ListenConfig defines the receiver endpoint.
type ListenConfig struct {
	Addr string `yaml:"addr"`
}

// BatchConfig defines the batch processor's flush window, size threshold and
// intake queue depth.
type BatchConfig struct {
	Window    time.Duration `yaml:"window"`
	MaxSize   int           `yaml:"max_size"`
	QueueSize int           `yaml:"queue_size"`
}

// PrometheusConfig defines the scrape endpoint settings.
type PrometheusConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			Addr: DefaultListenAddr,
		},
		Batch: BatchConfig{
			Window:    DefaultBatchWindow,
			MaxSize:   DefaultBatchMaxSize,
			QueueSize: DefaultBatchQueueSize,
		},
		Prometheus: PrometheusConfig{
			Port: DefaultPrometheusPort,
			Path: DefaultPrometheusPath,
		},
	}
}
