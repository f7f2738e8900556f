package config

import (
	"fmt"
	"strings"
)

func validate(cfg *Config) error {
	if cfg.Batch.Window <= 0 {
		return fmt.Errorf("batch window must be positive, got %s", cfg.Batch.Window)
	}
	if cfg.Batch.MaxSize <= 0 {
		return fmt.Errorf("batch max_size must be positive, got %d", cfg.Batch.MaxSize)
	}
	if cfg.Batch.QueueSize <= 0 {
		return fmt.Errorf("batch queue_size must be positive, got %d", cfg.Batch.QueueSize)
	}
	if cfg.Prometheus.Port < 1 || cfg.Prometheus.Port > 65535 {
		return fmt.Errorf("prometheus port out of range: %d", cfg.Prometheus.Port)
	}
	if !strings.HasPrefix(cfg.Prometheus.Path, "/") {
		return fmt.Errorf("prometheus path must start with /: %q", cfg.Prometheus.Path)
	}

	return nil
}
