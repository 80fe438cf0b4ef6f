package bridge

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/conduit-ai/conduit/pkg/domain"
	"github.com/conduit-ai/conduit/pkg/ports"
)

// Option configures the client.
type Option func(*Client)

// WithAPIKey sets the bearer credential sent on every runtime call.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient replaces the control-channel HTTP client (submissions and
// health probes).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpc = hc
	}
}

// WithBreaker replaces the failure-isolation policy around submissions.
func WithBreaker(b ports.Breaker) Option {
	return func(c *Client) {
		c.brk = b
	}
}

// WithMetrics sets the sink receiving call-outcome records.
func WithMetrics(m ports.MetricsSink) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHooks registers lifecycle observers.
func WithHooks(h *domain.BridgeHooks) Option {
	return func(c *Client) {
		c.hooks = h
	}
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithClock injects a clock, used by tests to simulate elapsed time for
// reconnect, health-check, and timeout scheduling.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		c.clk = clk
	}
}

// WithRetryDelay sets the initial reconnect delay. The delay doubles per
// consecutive failed attempt up to the maximum.
func WithRetryDelay(initial, max time.Duration) Option {
	return func(c *Client) {
		if initial > 0 {
			c.retryDelay = initial
		}
		if max > 0 {
			c.maxRetryDelay = max
		}
	}
}

// WithHealthInterval sets the liveness probe period.
func WithHealthInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.healthInterval = d
		}
	}
}

// WithFallbackTimeout sets the per-call deadline used when neither the
// caller nor the tool registry supplies one.
func WithFallbackTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.fallbackTimeout = d
		}
	}
}

// nopMetrics discards call outcomes.
type nopMetrics struct{}

func (nopMetrics) Record(ports.CallOutcome) {}
