package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/neox5/metricbox/metric"
	"github.com/neox5/metricbox/wire"
)

const (
	DefaultEndpoint = "http://localhost:4318"

	// EnvEndpoint overrides the collector endpoint, mirroring how the
	// exporter endpoint is usually injected in container setups.
	EnvEndpoint = "METRICBOX_ENDPOINT"

	DefaultInitialBackoff = 1 * time.Second
	DefaultMaxBackoff     = 30 * time.Second
	DefaultMaxTries       = 5
)

// Transport delivers a snapshot to a collector. Send returns once the
// snapshot is delivered or definitively dropped.
type Transport interface {
	Send(ctx context.Context, snap *metric.Snapshot) error
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithEndpoint sets the collector base URL.
func WithEndpoint(endpoint string) TransportOption {
	return func(t *HTTPTransport) { t.endpoint = endpoint }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *HTTPTransport) { t.client = c }
}

// WithBackoff sets the initial and maximum retry backoff.
func WithBackoff(initial, max time.Duration) TransportOption {
	return func(t *HTTPTransport) {
		t.initialBackoff = initial
		t.maxBackoff = max
	}
}

// WithMaxTries caps the number of delivery attempts per snapshot.
func WithMaxTries(n uint) TransportOption {
	return func(t *HTTPTransport) { t.maxTries = n }
}

// HTTPTransport serializes snapshots into the wire format and POSTs them to
// the collector. Transient failures are retried with exponential backoff;
// payloads rejected by the receiver are dropped without retry. Delivery is
// best-effort: after retries exhaust the snapshot is dropped and the failure
// surfaces only through the returned error, which callers log.
type HTTPTransport struct {
	endpoint string
	client   *http.Client

	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxTries       uint
}

// NewHTTPTransport creates a transport. The endpoint defaults to the
// METRICBOX_ENDPOINT environment variable, falling back to localhost.
func NewHTTPTransport(opts ...TransportOption) *HTTPTransport {
	endpoint := os.Getenv(EnvEndpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	t := &HTTPTransport{
		endpoint:       endpoint,
		client:         &http.Client{},
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
		maxTries:       DefaultMaxTries,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Send delivers one snapshot, retrying transient failures until ctx expires
// or the retry budget is exhausted.
func (t *HTTPTransport) Send(ctx context.Context, snap *metric.Snapshot) error {
	body, err := json.Marshal(wire.FromSnapshot(snap))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	resp, err := backoff.Retry(ctx,
		func() (*wire.ExportResponse, error) { return t.post(ctx, body) },
		backoff.WithBackOff(t.newBackOff()),
		backoff.WithMaxTries(t.maxTries),
	)
	if err != nil {
		return err
	}

	slog.Debug("snapshot delivered", "endpoint", t.endpoint, "accepted", resp.Accepted)
	return nil
}

// post performs one delivery attempt. Receiver-side rejections are permanent;
// connection and server errors are transient and retried by the caller.
func (t *HTTPTransport) post(ctx context.Context, body []byte) (*wire.ExportResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.endpoint+wire.ExportPath, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var er wire.ExportResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return &er, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var we wire.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&we)
		return nil, backoff.Permanent(
			fmt.Errorf("payload rejected (status %d): %s", resp.StatusCode, we.Error))

	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("endpoint unavailable: status %d", resp.StatusCode)
	}
}

func (t *HTTPTransport) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.initialBackoff
	b.MaxInterval = t.maxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	return b
}
