package breaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-ai/conduit/pkg/breaker"
)

var errBoom = errors.New("boom")

func failing(ctx context.Context) error { return errBoom }
func passing(ctx context.Context) error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := breaker.New(breaker.WithFailureThreshold(5))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := b.Execute(ctx, failing)
		assert.ErrorIs(t, err, errBoom, "call %d should pass the underlying error through", i)
	}

	// Sixth call fails fast without invoking fn.
	invoked := false
	err := b.Execute(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	})
	assert.ErrorIs(t, err, breaker.ErrOpen)
	assert.False(t, invoked)
	assert.Equal(t, breaker.StateOpen, b.State())
}

func TestBreaker_SuccessResetsFailureRun(t *testing.T) {
	b := breaker.New(breaker.WithFailureThreshold(3))
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, failing))
	require.Error(t, b.Execute(ctx, failing))
	require.NoError(t, b.Execute(ctx, passing))
	require.Error(t, b.Execute(ctx, failing))
	require.Error(t, b.Execute(ctx, failing))

	// Only two consecutive failures since the success; still closed.
	assert.Equal(t, breaker.StateClosed, b.State())
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	mock := clock.NewMock()
	b := breaker.New(
		breaker.WithFailureThreshold(2),
		breaker.WithSuccessThreshold(2),
		breaker.WithOpenTimeout(10*time.Second),
		breaker.WithClock(mock),
	)
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, failing))
	require.Error(t, b.Execute(ctx, failing))
	require.ErrorIs(t, b.Execute(ctx, passing), breaker.ErrOpen)

	// After the cool-down the breaker admits probes.
	mock.Add(11 * time.Second)
	assert.Equal(t, breaker.StateHalfOpen, b.State())
	require.NoError(t, b.Execute(ctx, passing))
	require.NoError(t, b.Execute(ctx, passing))
	assert.Equal(t, breaker.StateClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	mock := clock.NewMock()
	b := breaker.New(
		breaker.WithFailureThreshold(1),
		breaker.WithOpenTimeout(5*time.Second),
		breaker.WithClock(mock),
	)
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, failing))
	mock.Add(6 * time.Second)
	require.ErrorIs(t, b.Execute(ctx, failing), errBoom)

	// The failed probe re-opens the breaker immediately.
	assert.ErrorIs(t, b.Execute(ctx, passing), breaker.ErrOpen)
}
