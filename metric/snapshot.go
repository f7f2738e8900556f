package metric

import (
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Snapshot is an immutable point-in-time copy of all aggregation state. It is
// created fresh each export cycle and never mutated afterwards; ownership
// transfers to the transport.
type Snapshot struct {
	Service   string
	Timestamp time.Time
	Metrics   []MetricSnapshot
}

// MetricSnapshot holds one instrument's state at snapshot time.
type MetricSnapshot struct {
	Name   string
	Kind   Kind
	Unit   string
	Points []Point
}

// Point is one attribute set's aggregated value. Value is set for counters;
// Count, Sum, Bounds and BucketCounts for histograms.
type Point struct {
	Attributes attribute.Set

	Value int64

	Count        uint64
	Sum          float64
	Bounds       []float64
	BucketCounts []uint64
}

// Snapshot copies the current state of every instrument. Each instrument is
// read under a brief critical section; concurrent records are never blocked
// for the duration of the whole snapshot.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.Lock()
	names := append([]string(nil), r.order...)
	service := r.service
	r.mu.Unlock()

	snap := &Snapshot{
		Service:   service,
		Timestamp: time.Now(),
		Metrics:   make([]MetricSnapshot, 0, len(names)),
	}

	for _, name := range names {
		r.mu.Lock()
		kind := r.kinds[name]
		c := r.counters[name]
		h := r.histograms[name]
		r.mu.Unlock()

		m := MetricSnapshot{Name: name, Kind: kind}

		switch kind {
		case KindCounter:
			m.Unit = c.unit
			m.Points = c.collect()
		case KindHistogram:
			m.Unit = h.unit
			m.Points = h.collect()
		}

		sortPoints(m.Points)
		snap.Metrics = append(snap.Metrics, m)
	}

	return snap
}

// sortPoints orders points by their canonical attribute encoding so snapshots
// are deterministic.
func sortPoints(points []Point) {
	enc := attribute.DefaultEncoder()

	sort.Slice(points, func(i, j int) bool {
		return points[i].Attributes.Encoded(enc) < points[j].Attributes.Encoded(enc)
	})
}
