package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newTestBreaker(maxFailures int, reset time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("test", maxFailures, reset)
	cb.now = clock.now
	return cb, clock
}

var errUpstream = errors.New("upstream down")

func fail(context.Context) error    { return errUpstream }
func succeed(context.Context) error { return nil }

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Call(ctx, fail), errUpstream)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Call(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called)
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute)
	ctx := context.Background()

	_ = cb.Call(ctx, fail)
	require.NoError(t, cb.Call(ctx, succeed))
	_ = cb.Call(ctx, fail)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	_ = cb.Call(ctx, fail)
	require.Equal(t, StateOpen, cb.GetState())

	clock.t = clock.t.Add(time.Minute)
	require.NoError(t, cb.Call(ctx, succeed))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	_ = cb.Call(ctx, fail)
	clock.t = clock.t.Add(2 * time.Minute)

	assert.ErrorIs(t, cb.Call(ctx, fail), errUpstream)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Call(ctx, succeed), ErrBreakerOpen)
}

func TestBreakerHalfOpenLimitsProbes(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)
	ctx := context.Background()

	_ = cb.Call(ctx, fail)
	clock.t = clock.t.Add(time.Minute)

	// 试探调用未返回前，最多放行 halfOpenMaxCalls 个
	for i := 0; i < cb.halfOpenMaxCalls; i++ {
		require.True(t, cb.allowRequest())
	}
	assert.False(t, cb.allowRequest())
}

func TestBreakerIgnoresCallerCancellation(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Call(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.GetState())
}
