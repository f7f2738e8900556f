package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ScrapeServer serves the collector's Prometheus registry on a well-known
// port and path for pull-based scraping.
type ScrapeServer struct {
	addr   string
	path   string
	server *http.Server

	scrapesTotal   prometheus.Counter
	scrapeDuration prometheus.Histogram
}

// NewScrapeServer creates the scrape endpoint for reg, instrumented with
// scrape self-metrics.
func NewScrapeServer(port int, path string, reg *prometheus.Registry) *ScrapeServer {
	addr := fmt.Sprintf(":%d", port)

	s := &ScrapeServer{
		addr: addr,
		path: path,

		scrapesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metricbox_scrapes_total",
			Help: "Total number of scrape requests",
		}),
		scrapeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "metricbox_scrape_duration_seconds",
			Help:    "Duration of scrape requests in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(s.scrapesTotal, s.scrapeDuration)

	mux := http.NewServeMux()
	mux.Handle(path, s.instrumentedHandler(promhttp.HandlerFor(
		reg,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	)))

	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

// instrumentedHandler wraps the Prometheus handler with scrape self-metrics.
func (s *ScrapeServer) instrumentedHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			s.scrapesTotal.Inc()
			s.scrapeDuration.Observe(time.Since(start).Seconds())
		}()

		slog.Debug("prometheus scrape")
		next.ServeHTTP(w, r)
	})
}

// Start begins serving scrape requests. Blocks until ctx is cancelled or the
// server fails.
func (s *ScrapeServer) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		slog.Info("starting scrape server", "addr", s.addr, "path", s.path)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return s.stop()
	}
}

func (s *ScrapeServer) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down scrape server")
	return s.server.Shutdown(ctx)
}
