package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
}

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	path := writeConfig(t, `
listen:
  addr: ":9999"
batch:
  window: 2s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Listen.Addr)
	assert.Equal(t, 2*time.Second, cfg.Batch.Window)
	assert.Equal(t, DefaultBatchMaxSize, cfg.Batch.MaxSize)
	assert.Equal(t, DefaultBatchQueueSize, cfg.Batch.QueueSize)
	assert.Equal(t, DefaultPrometheusPort, cfg.Prometheus.Port)
	assert.Equal(t, DefaultPrometheusPath, cfg.Prometheus.Path)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
listen:
  addr: ":5000"
batch:
  window: 10s
  max_size: 128
  queue_size: 512
prometheus:
  port: 9464
  path: /collector/metrics
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, &Config{
		Listen: ListenConfig{Addr: ":5000"},
		Batch: BatchConfig{
			Window:    10 * time.Second,
			MaxSize:   128,
			QueueSize: 512,
		},
		Prometheus: PrometheusConfig{
			Port: 9464,
			Path: "/collector/metrics",
		},
	}, cfg)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	for _, tt := range []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "negative window",
			content: "batch:\n  window: -5s\n",
			wantErr: "window must be positive",
		},
		{
			name:    "negative max size",
			content: "batch:\n  max_size: -1\n",
			wantErr: "max_size must be positive",
		},
		{
			name:    "port out of range",
			content: "prometheus:\n  port: 70000\n",
			wantErr: "port out of range",
		},
		{
			name:    "relative path",
			content: "prometheus:\n  path: metrics\n",
			wantErr: "must start with /",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "listen: [not a mapping"))
	assert.ErrorContains(t, err, "failed to parse YAML")
}
