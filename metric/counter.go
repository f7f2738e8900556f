package metric

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
)

// Counter is a monotonically non-decreasing instrument. A separate cumulative
// value is kept per distinct attribute set.
type Counter struct {
	name string
	unit string

	limit  int
	policy OverflowPolicy

	mu     sync.RWMutex
	series map[attribute.Distinct]*counterSeries
}

type counterSeries struct {
	attrs attribute.Set
	value atomic.Int64
}

// Inc increments the counter by 1 for the given attributes.
func (c *Counter) Inc(attrs ...attribute.KeyValue) {
	c.Add(1, attrs...)
}

// Add increments the counter by v for the given attributes. Negative values
// are dropped with a warning; the record path never returns an error.
func (c *Counter) Add(v int64, attrs ...attribute.KeyValue) {
	if v < 0 {
		slog.Warn("counter decrement rejected", "name", c.name, "value", v)
		return
	}

	s := c.lookup(attribute.NewSet(attrs...))
	if s == nil {
		return
	}
	s.value.Add(v)
}

// lookup returns the series for set, creating it on first use. Past the
// cardinality limit new sets are folded into the overflow series or dropped,
// depending on the configured policy.
func (c *Counter) lookup(set attribute.Set) *counterSeries {
	key := set.Equivalent()

	c.mu.RLock()
	s, ok := c.series[key]
	c.mu.RUnlock()
	if ok {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.series[key]; ok {
		return s
	}

	if len(c.series) >= c.limit {
		if c.policy == OverflowDrop {
			return nil
		}
		set = overflowSet
		key = set.Equivalent()
		if s, ok := c.series[key]; ok {
			return s
		}
		slog.Warn("attribute-set limit reached, folding into overflow series",
			"name", c.name, "limit", c.limit)
	}

	s = &counterSeries{attrs: set}
	c.series[key] = s
	return s
}

// collect copies the current state of all series.
func (c *Counter) collect() []Point {
	c.mu.RLock()
	series := make([]*counterSeries, 0, len(c.series))
	for _, s := range c.series {
		series = append(series, s)
	}
	c.mu.RUnlock()

	points := make([]Point, 0, len(series))
	for _, s := range series {
		points = append(points, Point{
			Attributes: s.attrs,
			Value:      s.value.Load(),
		})
	}

	return points
}
