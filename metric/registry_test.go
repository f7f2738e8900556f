package metric

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryMemoizesInstruments(t *testing.T) {
	r := NewRegistry()

	c1, err := r.Counter("visits", "1")
	require.NoError(t, err)

	c2, err := r.Counter("visits", "1")
	require.NoError(t, err)

	assert.Same(t, c1, c2)

	h1, err := r.Histogram("latency", "ms", []float64{10, 20})
	require.NoError(t, err)

	h2, err := r.Histogram("latency", "ms", []float64{1, 2, 3})
	require.NoError(t, err)

	assert.Same(t, h1, h2, "first registration wins, later boundaries ignored")
}

func TestRegistryKindConflict(t *testing.T) {
	r := NewRegistry()

	_, err := r.Counter("visits", "1")
	require.NoError(t, err)

	_, err = r.Histogram("visits", "ms", []float64{10})

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "visits", cfgErr.Name)

	_, err = r.Histogram("latency", "ms", []float64{10})
	require.NoError(t, err)

	_, err = r.Counter("latency", "1")
	require.ErrorAs(t, err, &cfgErr)
}

func TestRegistryInvalidBounds(t *testing.T) {
	for _, tt := range []struct {
		name   string
		bounds []float64
	}{
		{"unsorted", []float64{10, 5, 20}},
		{"duplicate", []float64{10, 10}},
		{"nan", []float64{10, math.NaN()}},
		{"infinite", []float64{10, math.Inf(1)}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()

			_, err := r.Histogram("latency", "ms", tt.bounds)

			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestRegistryConcurrentCreation(t *testing.T) {
	const workers = 32

	r := NewRegistry()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		instances = make(map[*Counter]struct{})
	)

	for range workers {
		wg.Go(func() {
			c, err := r.Counter("visits", "1")
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			instances[c] = struct{}{}
			mu.Unlock()
		})
	}
	wg.Wait()

	assert.Len(t, instances, 1, "concurrent creation must yield exactly one instance")
}

func TestSnapshotCarriesResourceAndUnits(t *testing.T) {
	r := NewRegistry(WithServiceName("video-voter"))

	c, err := r.Counter("video_likes", "1")
	require.NoError(t, err)
	c.Inc()

	_, err = r.Histogram("get_video_latency_milliseconds", "ms", []float64{10, 20, 30})
	require.NoError(t, err)

	snap := r.Snapshot()

	assert.Equal(t, "video-voter", snap.Service)
	assert.False(t, snap.Timestamp.IsZero())

	require.Len(t, snap.Metrics, 2)
	assert.Equal(t, "video_likes", snap.Metrics[0].Name)
	assert.Equal(t, KindCounter, snap.Metrics[0].Kind)
	assert.Equal(t, "1", snap.Metrics[0].Unit)
	assert.Equal(t, "get_video_latency_milliseconds", snap.Metrics[1].Name)
	assert.Equal(t, KindHistogram, snap.Metrics[1].Kind)
	assert.Equal(t, "ms", snap.Metrics[1].Unit)
}
