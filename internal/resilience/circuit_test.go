package resilience_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pcquote-api/internal/resilience"
)

var errDown = errors.New("connection refused")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newBreaker(c *clock) *resilience.Breaker {
	return resilience.New(resilience.Settings{
		Name:         "packages_store",
		MinRequests:  2,
		FailureRatio: 0.5,
		OpenFor:      30 * time.Second,
		Interval:     time.Minute,
		Now:          c.Now,
	})
}

func fail(context.Context) error    { return errDown }
func succeed(context.Context) error { return nil }

func TestBreakerOpensProbesAndCloses(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	b := newBreaker(c)
	ctx := context.Background()

	require.NoError(t, b.Do(ctx, succeed))
	require.ErrorIs(t, b.Do(ctx, fail), errDown)
	require.Equal(t, resilience.Open, b.State())

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.False(t, called)

	c.Advance(30 * time.Second)
	require.Equal(t, resilience.HalfOpen, b.State())
	require.NoError(t, b.Do(ctx, succeed))
	require.Equal(t, resilience.Closed, b.State())
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	b := newBreaker(c)
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	_ = b.Do(ctx, fail)
	c.Advance(time.Minute)
	require.ErrorIs(t, b.Do(ctx, fail), errDown)
	require.Equal(t, resilience.Open, b.State())

	c.Advance(10 * time.Second)
	require.ErrorIs(t, b.Do(ctx, succeed), resilience.ErrOpenCircuit)
}

func TestBreakerAdmitsOneProbeAtATime(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	b := newBreaker(c)
	ctx := context.Background()
	_ = b.Do(ctx, fail)
	_ = b.Do(ctx, fail)
	c.Advance(30 * time.Second)

	inProbe := make(chan struct{})
	finish := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Do(ctx, func(context.Context) error {
			close(inProbe)
			<-finish
			return nil
		})
	}()
	<-inProbe
	require.ErrorIs(t, b.Do(ctx, succeed), resilience.ErrOpenCircuit)
	close(finish)
	require.NoError(t, <-done)
	require.Equal(t, resilience.Closed, b.State())
}

func TestBreakerForgetsOldFailures(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	b := newBreaker(c)
	ctx := context.Background()

	_ = b.Do(ctx, succeed)
	c.Advance(2 * time.Minute)
	_ = b.Do(ctx, fail)
	require.Equal(t, resilience.Closed, b.State(), "one failure in a fresh interval is below MinRequests")
}

func TestBreakerIgnoresCancelledCallers(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	b := newBreaker(c)
	ctx := context.Background()

	for range 5 {
		err := b.Do(ctx, func(context.Context) error { return context.Canceled })
		require.ErrorIs(t, err, context.Canceled)
	}
	require.Equal(t, resilience.Closed, b.State())
}

func TestNilBreakerAdmitsEverything(t *testing.T) {
	var b *resilience.Breaker
	require.ErrorIs(t, b.Do(context.Background(), fail), errDown)
	require.Equal(t, resilience.Closed, b.State())
}

func TestBreakerMetrics(t *testing.T) {
	resilience.MustRegisterMetrics("pcquote_test", prometheus.NewRegistry())
	resilience.BreakerState.Reset()
	resilience.BreakerTransitions.Reset()

	c := &clock{now: time.Unix(1_700_000_000, 0)}
	b := newBreaker(c)
	ctx := context.Background()
	_ = b.Do(ctx, fail)
	_ = b.Do(ctx, fail)
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("packages_store")))

	c.Advance(30 * time.Second)
	require.NoError(t, b.Do(ctx, succeed))
	require.Equal(t, 0.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("packages_store")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("packages_store", "closed", "open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("packages_store", "open", "half_open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("packages_store", "half_open", "closed")))
}
