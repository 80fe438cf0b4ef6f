// Package breaker provides the failure-isolation policy wrapped around
// outbound runtime submissions. After a run of consecutive failures the
// breaker opens and fails calls fast for a cool-down period, then allows a
// limited number of probes (half-open) before fully closing again.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/conduit-ai/conduit/pkg/ports"
)

// ErrOpen is returned by Execute while the breaker is open. The wrapped
// function is not invoked.
var ErrOpen = errors.New("circuit breaker open")

// State identifies the breaker's current policy position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Breaker implements ports.Breaker.
type Breaker struct {
	mu sync.Mutex

	state       State
	failures    int // consecutive failures while closed
	probeWins   int // consecutive successes while half-open
	openedAt    time.Time
	clock       clock.Clock
	failureMax  int
	successNeed int
	openTimeout time.Duration
}

// Option configures the breaker.
type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures trip the breaker.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureMax = n
		}
	}
}

// WithSuccessThreshold sets how many half-open successes close the breaker.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successNeed = n
		}
	}
}

// WithOpenTimeout sets the cool-down before an open breaker admits probes.
func WithOpenTimeout(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.openTimeout = d
		}
	}
}

// WithClock injects a clock, used by tests to simulate elapsed time.
func WithClock(c clock.Clock) Option {
	return func(b *Breaker) {
		b.clock = c
	}
}

// New creates a breaker with the default policy: 5 consecutive failures to
// open, 2 half-open successes to close, 30s cool-down.
func New(opts ...Option) *Breaker {
	b := &Breaker{
		state:       StateClosed,
		clock:       clock.New(),
		failureMax:  5,
		successNeed: 2,
		openTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute runs fn under the breaker policy. While open, fn is not invoked and
// ErrOpen is returned. The fn's own error is passed through unchanged.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	b.record(err == nil)
	return err
}

// State returns the breaker's current position, accounting for cool-down
// expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.clock.Since(b.openedAt) >= b.openTimeout {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.clock.Since(b.openedAt) < b.openTimeout {
			return ErrOpen
		}
		b.state = StateHalfOpen
		b.probeWins = 0
	}
	return nil
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		if success {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.failureMax {
			b.trip()
		}
	case StateHalfOpen:
		if !success {
			b.trip()
			return
		}
		b.probeWins++
		if b.probeWins >= b.successNeed {
			b.state = StateClosed
			b.failures = 0
		}
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.clock.Now()
	b.failures = 0
	b.probeWins = 0
}

var _ ports.Breaker = (*Breaker)(nil)
