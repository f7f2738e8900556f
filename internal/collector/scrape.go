// Package collector implements the receive/process/export pipeline: an HTTP
// receiver for wire batches, a windowed batch processor, and a Prometheus
// scrape exporter holding the last-flushed aggregated state.
package collector

import (
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/neox5/metricbox/metric"
	"github.com/neox5/metricbox/wire"
)

// serviceLabel carries the producer's resource identity into the exposition.
const serviceLabel = "service"

// ScrapeExporter maintains the last-flushed aggregated state in a
// pull-friendly form. Flush builds a fresh immutable state and swaps it in
// atomically, so scrapes never serialize behind each other or observe a
// partially written flush. It implements prometheus.Collector.
type ScrapeExporter struct {
	state atomic.Pointer[scrapeState]
}

// scrapeState is immutable once published. Series not touched by a flush are
// shared with the previous state.
type scrapeState struct {
	series map[string]*series
}

type series struct {
	name        string
	kind        string
	labelNames  []string
	labelValues []string

	value int64 // counter

	count        uint64 // histogram
	sum          float64
	bounds       []float64
	bucketCounts []uint64
}

// NewScrapeExporter creates an exporter with empty state.
func NewScrapeExporter() *ScrapeExporter {
	e := &ScrapeExporter{}
	e.state.Store(&scrapeState{series: make(map[string]*series)})
	return e
}

// Flush merges one batch into the exposed state. Points sharing an instrument
// name and attribute set are summed across producers within the batch; the
// merged cumulative value replaces the previously exposed one. Series absent
// from the batch keep their previous values.
func (e *ScrapeExporter) Flush(batch []*wire.Request) {
	if len(batch) == 0 {
		return
	}

	prev := e.state.Load()
	next := &scrapeState{series: make(map[string]*series, len(prev.series))}
	for k, s := range prev.series {
		next.series[k] = s
	}

	// Series rebuilt by this flush; merging mutates only these.
	fresh := make(map[string]*series)

	for _, req := range batch {
		for _, m := range req.Metrics {
			for _, p := range m.Points {
				names, values := labels(req.Resource.Service, p.Attributes)
				key := seriesKey(m.Name, names, values)

				s, ok := fresh[key]
				if !ok {
					s = &series{
						name:        m.Name,
						kind:        m.Kind,
						labelNames:  names,
						labelValues: values,
						bounds:      p.Bounds,
					}
					if m.Kind == string(metric.KindHistogram) {
						s.bucketCounts = make([]uint64, len(p.Bounds)+1)
					}
					fresh[key] = s
					next.series[key] = s
				}

				if !mergePoint(s, m.Kind, p) {
					slog.Warn("skipping incompatible data point",
						"metric", m.Name, "service", req.Resource.Service)
				}
			}
		}
	}

	e.state.Store(next)
}

// mergePoint folds one wire point into a series under construction.
func mergePoint(s *series, kind string, p wire.Point) bool {
	if s.kind != kind {
		return false
	}

	switch kind {
	case string(metric.KindCounter):
		s.value += p.Value
	case string(metric.KindHistogram):
		if len(p.BucketCounts) != len(s.bucketCounts) {
			return false
		}
		s.count += p.Count
		s.sum += p.Sum
		for i, c := range p.BucketCounts {
			s.bucketCounts[i] += c
		}
	default:
		return false
	}

	return true
}

func labels(service string, attrs map[string]string) ([]string, []string) {
	names := make([]string, 0, len(attrs)+1)
	for k := range attrs {
		names = append(names, k)
	}
	sort.Strings(names)

	values := make([]string, len(names)+1)
	for i, k := range names {
		values[i] = attrs[k]
	}

	names = append(names, serviceLabel)
	values[len(values)-1] = service

	return names, values
}

func seriesKey(name string, labelNames, labelValues []string) string {
	var b strings.Builder

	b.WriteString(name)
	for i, n := range labelNames {
		b.WriteByte(0)
		b.WriteString(n)
		b.WriteByte(0)
		b.WriteString(labelValues[i])
	}

	return b.String()
}

// Describe sends no descriptors; the series set is dynamic, so the exporter
// registers as an unchecked collector.
func (e *ScrapeExporter) Describe(ch chan<- *prometheus.Desc) {}

// Collect exposes the most recently flushed state. Safe to call concurrently
// and arbitrarily often.
func (e *ScrapeExporter) Collect(ch chan<- prometheus.Metric) {
	st := e.state.Load()

	for _, s := range st.series {
		desc := prometheus.NewDesc(s.name, "", s.labelNames, nil)

		switch s.kind {
		case string(metric.KindCounter):
			m, err := prometheus.NewConstMetric(
				desc, prometheus.CounterValue, float64(s.value), s.labelValues...)
			if err != nil {
				continue
			}
			ch <- m

		case string(metric.KindHistogram):
			buckets := make(map[float64]uint64, len(s.bounds))
			var cum uint64
			for i, b := range s.bounds {
				cum += s.bucketCounts[i]
				buckets[b] = cum
			}

			m, err := prometheus.NewConstHistogram(
				desc, s.count, s.sum, buckets, s.labelValues...)
			if err != nil {
				continue
			}
			ch <- m
		}
	}
}
