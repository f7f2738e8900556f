package metric

import (
	"log/slog"
	"math"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
)

// Histogram records the distribution of values across fixed bucket
// boundaries. Count, sum and bucket counts are kept per distinct attribute
// set and updated together, so sum/count is a valid mean at every point.
type Histogram struct {
	name   string
	unit   string
	bounds []float64 // strictly increasing upper bounds

	limit  int
	policy OverflowPolicy

	mu     sync.RWMutex
	series map[attribute.Distinct]*histogramSeries
}

type histogramSeries struct {
	attrs attribute.Set

	mu           sync.Mutex
	count        uint64
	sum          float64
	bucketCounts []uint64 // len(bounds)+1, last absorbs values above all bounds
}

// Record adds a single observation for the given attributes. NaN values are
// dropped with a warning; the record path never returns an error.
func (h *Histogram) Record(v float64, attrs ...attribute.KeyValue) {
	if math.IsNaN(v) {
		slog.Warn("histogram NaN observation rejected", "name", h.name)
		return
	}

	s := h.lookup(attribute.NewSet(attrs...))
	if s == nil {
		return
	}

	// Smallest bound >= v, or the trailing overflow bucket.
	i := sort.SearchFloat64s(h.bounds, v)

	s.mu.Lock()
	s.count++
	s.sum += v
	s.bucketCounts[i]++
	s.mu.Unlock()
}

func (h *Histogram) lookup(set attribute.Set) *histogramSeries {
	key := set.Equivalent()

	h.mu.RLock()
	s, ok := h.series[key]
	h.mu.RUnlock()
	if ok {
		return s
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.series[key]; ok {
		return s
	}

	if len(h.series) >= h.limit {
		if h.policy == OverflowDrop {
			return nil
		}
		set = overflowSet
		key = set.Equivalent()
		if s, ok := h.series[key]; ok {
			return s
		}
		slog.Warn("attribute-set limit reached, folding into overflow series",
			"name", h.name, "limit", h.limit)
	}

	s = &histogramSeries{
		attrs:        set,
		bucketCounts: make([]uint64, len(h.bounds)+1),
	}
	h.series[key] = s
	return s
}

// collect copies the current state of all series.
func (h *Histogram) collect() []Point {
	h.mu.RLock()
	series := make([]*histogramSeries, 0, len(h.series))
	for _, s := range h.series {
		series = append(series, s)
	}
	h.mu.RUnlock()

	points := make([]Point, 0, len(series))
	for _, s := range series {
		s.mu.Lock()
		p := Point{
			Attributes:   s.attrs,
			Count:        s.count,
			Sum:          s.sum,
			Bounds:       h.bounds,
			BucketCounts: append([]uint64(nil), s.bucketCounts...),
		}
		s.mu.Unlock()

		points = append(points, p)
	}

	return points
}
