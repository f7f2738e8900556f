package metric

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestHistogramBucketing(t *testing.T) {
	for _, tt := range []struct {
		name    string
		bounds  []float64
		values  []float64
		count   uint64
		sum     float64
		buckets []uint64
	}{
		{
			name:    "one value per bucket",
			bounds:  []float64{10, 20, 30},
			values:  []float64{5, 15, 25},
			count:   3,
			sum:     45,
			buckets: []uint64{1, 1, 1, 0},
		},
		{
			name:    "boundary value lands in its bucket",
			bounds:  []float64{10, 20},
			values:  []float64{10, 20},
			count:   2,
			sum:     30,
			buckets: []uint64{1, 1, 0},
		},
		{
			name:    "values above all bounds overflow",
			bounds:  []float64{10, 20},
			values:  []float64{21, 100},
			count:   2,
			sum:     121,
			buckets: []uint64{0, 0, 2},
		},
		{
			name:    "no bounds puts everything in the overflow bucket",
			bounds:  nil,
			values:  []float64{1, 2},
			count:   2,
			sum:     3,
			buckets: []uint64{2},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()

			h, err := r.Histogram("latency", "ms", tt.bounds)
			require.NoError(t, err)

			for _, v := range tt.values {
				h.Record(v, attribute.String("id", "v1"))
			}

			m := findMetric(t, r.Snapshot(), "latency")
			require.Len(t, m.Points, 1)

			p := m.Points[0]
			assert.Equal(t, tt.count, p.Count)
			assert.Equal(t, tt.sum, p.Sum)
			assert.Equal(t, tt.bounds, p.Bounds)
			assert.Equal(t, tt.buckets, p.BucketCounts)
		})
	}
}

func TestHistogramRejectsNaN(t *testing.T) {
	r := NewRegistry()

	h, err := r.Histogram("latency", "ms", []float64{10})
	require.NoError(t, err)

	h.Record(math.NaN())
	h.Record(5)

	m := findMetric(t, r.Snapshot(), "latency")
	require.Len(t, m.Points, 1)
	assert.Equal(t, uint64(1), m.Points[0].Count)
	assert.Equal(t, float64(5), m.Points[0].Sum)
}

func TestHistogramConcurrentRecords(t *testing.T) {
	const (
		workers = 8
		records = 500
	)

	r := NewRegistry()

	h, err := r.Histogram("latency", "ms", []float64{10, 20, 30})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for range records {
				h.Record(15)
			}
		})
	}
	wg.Wait()

	m := findMetric(t, r.Snapshot(), "latency")
	require.Len(t, m.Points, 1)

	p := m.Points[0]
	assert.Equal(t, uint64(workers*records), p.Count)
	assert.Equal(t, float64(workers*records*15), p.Sum)
	assert.Equal(t, []uint64{0, uint64(workers * records), 0, 0}, p.BucketCounts)
}

func TestHistogramSumCountConsistentUnderSnapshot(t *testing.T) {
	r := NewRegistry()

	h, err := r.Histogram("latency", "ms", []float64{10})
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Go(func() {
		for {
			select {
			case <-stop:
				return
			default:
				h.Record(2)
			}
		}
	})

	// Every observed snapshot must satisfy sum == 2*count and the bucket
	// totals must equal the count.
	for range 100 {
		m := findMetric(t, r.Snapshot(), "latency")
		require.Len(t, m.Points, 1)

		p := m.Points[0]
		assert.Equal(t, float64(2*p.Count), p.Sum)

		var bucketTotal uint64
		for _, c := range p.BucketCounts {
			bucketTotal += c
		}
		assert.Equal(t, p.Count, bucketTotal)
	}

	close(stop)
	wg.Wait()
}
