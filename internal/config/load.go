package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

// Load reads and validates a YAML configuration file. An empty path returns
// the defaults. Fields omitted from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills fields the file left at their zero value.
func applyDefaults(cfg *Config) {
	if cfg.Listen.Addr == "" {
		cfg.Listen.Addr = DefaultListenAddr
	}
	if cfg.Batch.Window == 0 {
		cfg.Batch.Window = DefaultBatchWindow
	}
	if cfg.Batch.MaxSize == 0 {
		cfg.Batch.MaxSize = DefaultBatchMaxSize
	}
	if cfg.Batch.QueueSize == 0 {
		cfg.Batch.QueueSize = DefaultBatchQueueSize
	}
	if cfg.Prometheus.Port == 0 {
		cfg.Prometheus.Port = DefaultPrometheusPort
	}
	if cfg.Prometheus.Path == "" {
		cfg.Prometheus.Path = DefaultPrometheusPath
	}
}
