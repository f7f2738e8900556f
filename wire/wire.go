// Package wire defines the versioned message exchanged between the SDK
// transport and the collector receiver, plus its structural validation.
package wire

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/neox5/metricbox/metric"
)

const (
	// Version is the wire protocol version produced and accepted.
	Version = 1

	// ExportPath is the receiver endpoint path snapshots are POSTed to.
	ExportPath = "/v1/metrics"
)

// Request is one exported snapshot on the wire.
type Request struct {
	Version   int       `json:"version"`
	Resource  Resource  `json:"resource"`
	Timestamp time.Time `json:"timestamp"`
	Metrics   []Metric  `json:"metrics"`
}

// Resource identifies the producing process.
type Resource struct {
	Service string `json:"service"`
}

// Metric is one instrument's data points.
type Metric struct {
	Name   string  `json:"name"`
	Kind   string  `json:"kind"`
	Unit   string  `json:"unit,omitempty"`
	Points []Point `json:"points"`
}

// Point is one attribute set's value. Counters carry Value; histograms carry
// Count, Sum, Bounds and BucketCounts, where BucketCounts has len(Bounds)+1
// entries and the last one absorbs values above all bounds.
type Point struct {
	Attributes map[string]string `json:"attributes,omitempty"`

	Value int64 `json:"value,omitempty"`

	Count        uint64    `json:"count,omitempty"`
	Sum          float64   `json:"sum,omitempty"`
	Bounds       []float64 `json:"bounds,omitempty"`
	BucketCounts []uint64  `json:"bucket_counts,omitempty"`
}

// ExportResponse is the receiver's success reply.
type ExportResponse struct {
	Accepted int `json:"accepted"`
}

// ErrorResponse is the receiver's structured error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FromSnapshot converts an SDK snapshot into its wire form.
func FromSnapshot(s *metric.Snapshot) *Request {
	metrics := make([]Metric, 0, len(s.Metrics))

	for _, m := range s.Metrics {
		points := make([]Point, 0, len(m.Points))

		for _, p := range m.Points {
			wp := Point{Attributes: attributesMap(p.Attributes)}

			switch m.Kind {
			case metric.KindCounter:
				wp.Value = p.Value
			case metric.KindHistogram:
				wp.Count = p.Count
				wp.Sum = p.Sum
				wp.Bounds = p.Bounds
				wp.BucketCounts = p.BucketCounts
			}

			points = append(points, wp)
		}

		metrics = append(metrics, Metric{
			Name:   m.Name,
			Kind:   string(m.Kind),
			Unit:   m.Unit,
			Points: points,
		})
	}

	return &Request{
		Version:   Version,
		Resource:  Resource{Service: s.Service},
		Timestamp: s.Timestamp,
		Metrics:   metrics,
	}
}

func attributesMap(set attribute.Set) map[string]string {
	if set.Len() == 0 {
		return nil
	}

	m := make(map[string]string, set.Len())
	for _, kv := range set.ToSlice() {
		m[string(kv.Key)] = kv.Value.Emit()
	}

	return m
}

// Validate checks structural well-formedness. A non-nil error describes the
// first violation found and maps to a client-visible rejection.
func (r *Request) Validate() error {
	if r.Version != Version {
		return fmt.Errorf("unsupported wire version %d", r.Version)
	}
	if r.Resource.Service == "" {
		return fmt.Errorf("missing resource service name")
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("missing timestamp")
	}

	for _, m := range r.Metrics {
		if m.Name == "" {
			return fmt.Errorf("metric with empty name")
		}

		switch m.Kind {
		case string(metric.KindCounter):
			for _, p := range m.Points {
				if p.Value < 0 {
					return fmt.Errorf("metric %q: negative counter value", m.Name)
				}
			}
		case string(metric.KindHistogram):
			for _, p := range m.Points {
				if len(p.BucketCounts) != len(p.Bounds)+1 {
					return fmt.Errorf("metric %q: expected %d bucket counts, got %d",
						m.Name, len(p.Bounds)+1, len(p.BucketCounts))
				}

				var total uint64
				for _, c := range p.BucketCounts {
					total += c
				}
				if total != p.Count {
					return fmt.Errorf("metric %q: bucket counts sum to %d, count is %d",
						m.Name, total, p.Count)
				}
			}
		default:
			return fmt.Errorf("metric %q: unknown kind %q", m.Name, m.Kind)
		}
	}

	return nil
}
