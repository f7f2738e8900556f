// Package metric provides the in-process instrumentation core: a registry of
// named counter and histogram instruments, per-attribute-set aggregation with
// a bounded series cardinality, and immutable point-in-time snapshots.
package metric

import (
	"fmt"
	"math"
	"sync"

	"go.opentelemetry.io/otel/attribute"
)

// Kind identifies the aggregation behavior of an instrument.
type Kind string

const (
	KindCounter   Kind = "counter"
	KindHistogram Kind = "histogram"
)

// OverflowPolicy controls what happens to new attribute sets once an
// instrument reaches its series limit.
type OverflowPolicy string

const (
	// OverflowCollapse folds excess attribute sets into a synthetic overflow
	// series, preserving totals.
	OverflowCollapse OverflowPolicy = "collapse"

	// OverflowDrop discards records for excess attribute sets.
	OverflowDrop OverflowPolicy = "drop"
)

const (
	DefaultServiceName = "metricbox"
	DefaultSeriesLimit = 2000
)

// overflowSet is the synthetic attribute set absorbing series created beyond
// the per-instrument cardinality limit.
var overflowSet = attribute.NewSet(attribute.Bool("overflow", true))

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithServiceName sets the resource identity attached to snapshots.
func WithServiceName(name string) RegistryOption {
	return func(r *Registry) { r.service = name }
}

// WithSeriesLimit caps the number of distinct attribute sets per instrument.
func WithSeriesLimit(n int) RegistryOption {
	return func(r *Registry) { r.limit = n }
}

// WithOverflowPolicy selects the behavior past the series limit.
func WithOverflowPolicy(p OverflowPolicy) RegistryOption {
	return func(r *Registry) { r.policy = p }
}

// Registry creates and deduplicates named instruments. Application code
// receives a handle at startup and creates instruments through it; there is
// no ambient global state.
type Registry struct {
	service string
	limit   int
	policy  OverflowPolicy

	mu         sync.Mutex
	kinds      map[string]Kind
	counters   map[string]*Counter
	histograms map[string]*Histogram
	order      []string
}

// NewRegistry creates a registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		service:    DefaultServiceName,
		limit:      DefaultSeriesLimit,
		policy:     OverflowCollapse,
		kinds:      make(map[string]Kind),
		counters:   make(map[string]*Counter),
		histograms: make(map[string]*Histogram),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Counter returns the counter registered under name, creating it on first
// use. Concurrent first calls for the same name yield exactly one instance.
// Reusing a name registered with a different kind returns a *ConfigError.
func (r *Registry) Counter(name, unit string) (*Counter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if kind, ok := r.kinds[name]; ok {
		if kind != KindCounter {
			return nil, &ConfigError{
				Name:   name,
				Reason: fmt.Sprintf("already registered as %s", kind),
			}
		}
		return r.counters[name], nil
	}

	c := &Counter{
		name:   name,
		unit:   unit,
		limit:  r.limit,
		policy: r.policy,
		series: make(map[attribute.Distinct]*counterSeries),
	}

	r.kinds[name] = KindCounter
	r.counters[name] = c
	r.order = append(r.order, name)

	return c, nil
}

// Histogram returns the histogram registered under name, creating it on first
// use with the given bucket boundaries. Boundaries must be strictly
// increasing and finite. Boundaries passed on later calls for an existing
// name are ignored; the first registration wins.
func (r *Registry) Histogram(name, unit string, bounds []float64) (*Histogram, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if kind, ok := r.kinds[name]; ok {
		if kind != KindHistogram {
			return nil, &ConfigError{
				Name:   name,
				Reason: fmt.Sprintf("already registered as %s", kind),
			}
		}
		return r.histograms[name], nil
	}

	if err := validateBounds(name, bounds); err != nil {
		return nil, err
	}

	h := &Histogram{
		name:   name,
		unit:   unit,
		bounds: append([]float64(nil), bounds...),
		limit:  r.limit,
		policy: r.policy,
		series: make(map[attribute.Distinct]*histogramSeries),
	}

	r.kinds[name] = KindHistogram
	r.histograms[name] = h
	r.order = append(r.order, name)

	return h, nil
}

func validateBounds(name string, bounds []float64) error {
	for i, b := range bounds {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return &ConfigError{Name: name, Reason: "bucket boundaries must be finite"}
		}
		if i > 0 && bounds[i-1] >= b {
			return &ConfigError{Name: name, Reason: "bucket boundaries must be strictly increasing"}
		}
	}
	return nil
}
