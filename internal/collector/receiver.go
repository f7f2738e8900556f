package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/neox5/metricbox/wire"
)

// Receiver accepts inbound wire batches over HTTP. Malformed payloads are
// rejected with a structured error; valid batches are pushed into the
// processor's intake queue without blocking the request handler.
type Receiver struct {
	addr   string
	server *http.Server
	intake chan<- *wire.Request

	received prometheus.Counter
	rejected *prometheus.CounterVec
}

// NewReceiver creates a receiver pushing into intake. Self-metrics are
// registered with reg when it is non-nil.
func NewReceiver(addr string, intake chan<- *wire.Request, reg prometheus.Registerer) *Receiver {
	r := &Receiver{
		addr:   addr,
		intake: intake,

		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metricbox_receiver_batches_received_total",
			Help: "Total number of accepted inbound batches",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metricbox_receiver_batches_rejected_total",
			Help: "Total number of rejected inbound batches",
		}, []string{"reason"}),
	}

	if reg != nil {
		reg.MustRegister(r.received, r.rejected)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(wire.ExportPath, r.handleExport)

	r.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return r
}

// Handler returns the receiver's HTTP handler.
func (r *Receiver) Handler() http.Handler {
	return r.server.Handler
}

func (r *Receiver) handleExport(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var batch wire.Request
	if err := json.NewDecoder(req.Body).Decode(&batch); err != nil {
		r.rejected.WithLabelValues("malformed").Inc()
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid payload: %v", err))
		return
	}

	if err := batch.Validate(); err != nil {
		r.rejected.WithLabelValues("malformed").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	select {
	case r.intake <- &batch:
		r.received.Inc()
		writeJSON(w, http.StatusOK, wire.ExportResponse{Accepted: len(batch.Metrics)})
	default:
		r.rejected.WithLabelValues("overloaded").Inc()
		writeError(w, http.StatusServiceUnavailable, "intake queue full")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, wire.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

// Start begins serving inbound batches. Blocks until ctx is cancelled or the
// server fails.
func (r *Receiver) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		slog.Info("starting receiver", "addr", r.addr, "path", wire.ExportPath)
		if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return r.stop()
	}
}

func (r *Receiver) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down receiver")
	return r.server.Shutdown(ctx)
}
