package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// maxResponseBytes caps how much of a downstream body is buffered.
const maxResponseBytes = 4 << 20

// BreakerConfig configures the circuit breaker in front of a Client.
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32        // probes allowed while half-open
	Interval     time.Duration // closed-state counter reset period
	Timeout      time.Duration // open-state duration before half-open
	FailureRatio float64
	MinRequests  uint32 // requests required before FailureRatio is evaluated
}

// DefaultBreakerConfig returns the breaker defaults for name.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      15 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = gobreaker.ErrOpenState

var breakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "storefront_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Payload is a fully read downstream response.
type Payload struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// BreakerClient runs requests through a gobreaker circuit breaker. Transport
// errors and 5xx responses count as failures; 4xx responses and requests the
// caller cancelled do not.
type BreakerClient struct {
	client  *Client
	breaker *gobreaker.CircuitBreaker[*Payload]
	name    string
}

// NewBreakerClient wraps client with a breaker configured by cfg.
func NewBreakerClient(client *Client, cfg BreakerConfig, logger *slog.Logger) *BreakerClient {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < cfg.MinRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateValue(to))
		},
	}
	breakerState.WithLabelValues(cfg.Name).Set(0)

	return &BreakerClient{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[*Payload](settings),
		name:    cfg.Name,
	}
}

// Fetch performs a GET through the breaker and returns the buffered response.
// Non-2xx responses below 500 are returned as a Payload, not an error.
func (b *BreakerClient) Fetch(ctx context.Context, url string) (*Payload, error) {
	return b.breaker.Execute(func() (*Payload, error) {
		resp, err := b.client.Get(ctx, url)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("read %s response: %w", b.name, err)
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%s returned %d: %s", b.name, resp.StatusCode, truncate(body, 256))
		}
		return &Payload{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
	})
}

// GetJSON fetches url and decodes a 2xx JSON body into dst. Other statuses are
// translated with ResponseError.
func (b *BreakerClient) GetJSON(ctx context.Context, url string, dst any) error {
	p, err := b.Fetch(ctx, url)
	if err != nil {
		return err
	}
	if p.StatusCode < 200 || p.StatusCode > 299 {
		return ResponseError(p, b.name)
	}
	if err := json.Unmarshal(p.Body, dst); err != nil {
		return fmt.Errorf("decode %s response: %w", b.name, err)
	}
	return nil
}

// State reports the breaker state.
func (b *BreakerClient) State() gobreaker.State {
	return b.breaker.State()
}

// IsOpen reports whether err came from an open breaker.
func IsOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
