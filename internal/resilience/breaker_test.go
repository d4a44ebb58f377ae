package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, coolDown time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker("observations", BreakerConfig{Threshold: threshold, CoolDown: coolDown})
	b.now = clock.Now
	return b, clock
}

func failTransient(context.Context) (int, error) {
	return 0, NewTransientError(errors.New("gateway timeout"), 504)
}

func succeed(context.Context) (int, error) { return 42, nil }

func TestBreaker_ClosedPassesThrough(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	v, err := Call(context.Background(), b, succeed)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	ctx := context.Background()

	for range 2 {
		_, err := Call(ctx, b, failTransient)
		require.Error(t, err)
	}
	assert.Equal(t, BreakerClosed, b.State())

	_, err := Call(ctx, b, failTransient)
	require.Error(t, err)
	assert.Equal(t, BreakerOpen, b.State())

	calls := 0
	_, err = Call(ctx, b, func(context.Context) (int, error) {
		calls++
		return 1, nil
	})
	require.Error(t, err)
	assert.Zero(t, calls)
	assert.ErrorIs(t, err, ErrArchiveUnavailable)
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "observations")
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)
	ctx := context.Background()

	_, _ = Call(ctx, b, failTransient)
	_, _ = Call(ctx, b, succeed)
	_, _ = Call(ctx, b, failTransient)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)

	for range 3 {
		_, err := Call(context.Background(), b, func(context.Context) (int, error) {
			return 0, errors.New("no observations")
		})
		require.Error(t, err)
	}
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenTrial(t *testing.T) {
	b, clock := newTestBreaker(1, 30*time.Second)
	ctx := context.Background()

	_, _ = Call(ctx, b, failTransient)
	require.Equal(t, BreakerOpen, b.State())

	clock.Advance(31 * time.Second)
	assert.Equal(t, BreakerHalfOpen, b.State())

	v, err := Call(ctx, b, succeed)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenTrialFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(2, 30*time.Second)
	ctx := context.Background()

	_, _ = Call(ctx, b, failTransient)
	_, _ = Call(ctx, b, failTransient)
	require.Equal(t, BreakerOpen, b.State())

	clock.Advance(30 * time.Second)
	_, err := Call(ctx, b, failTransient)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrArchiveUnavailable, "the trial reaches the service")
	assert.Equal(t, BreakerOpen, b.State())

	_, err = Call(ctx, b, succeed)
	assert.ErrorIs(t, err, ErrArchiveUnavailable)
}

func TestBreaker_Nil(t *testing.T) {
	var set *Breakers
	b := set.For("products")
	assert.Nil(t, b)

	v, err := Call(context.Background(), b, succeed)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Empty(t, set.States())
}

func TestBreakers_ForAndStates(t *testing.T) {
	set := NewBreakers(BreakerConfig{Threshold: 1, CoolDown: time.Hour})

	obs := set.For("observations")
	assert.Same(t, obs, set.For("observations"))

	_, _ = Call(context.Background(), obs, failTransient)
	_, _ = Call(context.Background(), set.For("products"), succeed)

	assert.Equal(t, map[string]BreakerState{
		"observations": BreakerOpen,
		"products":     BreakerClosed,
	}, set.States())
}

func TestBreakerConfig_Defaults(t *testing.T) {
	c := BreakerConfig{}.withDefaults()
	assert.Equal(t, 5, c.Threshold)
	assert.Equal(t, 30*time.Second, c.CoolDown)
	require.NotNil(t, c.Trips)
	assert.True(t, c.Trips(NewTransientError(errors.New("x"), 0)))
}

func TestBreakerState_Text(t *testing.T) {
	for s, want := range map[BreakerState]string{
		BreakerClosed:    "closed",
		BreakerOpen:      "open",
		BreakerHalfOpen:  "half-open",
		BreakerState(99): "unknown",
	} {
		b, err := s.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, want, string(b))
	}
}

func TestBreaker_HalfOpenAdmitsOneTrial(t *testing.T) {
	b, clock := newTestBreaker(1, time.Second)
	ctx := context.Background()

	_, _ = Call(ctx, b, failTransient)
	clock.Advance(2 * time.Second)

	trial, err := b.admit()
	require.NoError(t, err)
	assert.True(t, trial)

	for range 2 {
		_, err = b.admit()
		assert.ErrorIs(t, err, ErrArchiveUnavailable, "only one trial while half-open")
	}

	b.record(nil, true)
	assert.Equal(t, BreakerClosed, b.State())
	trial, err = b.admit()
	require.NoError(t, err)
	assert.False(t, trial)
}

func TestBreaker_StaleCallDoesNotMoveHalfOpen(t *testing.T) {
	b, clock := newTestBreaker(1, time.Second)

	// Admitted while closed, finishes after the breaker opened and cooled down.
	stale, err := b.admit()
	require.NoError(t, err)
	_, _ = Call(context.Background(), b, failTransient)
	clock.Advance(2 * time.Second)
	trial, err := b.admit()
	require.NoError(t, err)
	require.True(t, trial)

	b.record(nil, stale)
	assert.Equal(t, BreakerHalfOpen, b.State())
	_, err = b.admit()
	assert.ErrorIs(t, err, ErrArchiveUnavailable)
}
