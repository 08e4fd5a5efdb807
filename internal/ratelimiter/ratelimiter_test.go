package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securevault/secureserver/internal/ratelimiter"
)

func TestAllow(t *testing.T) {
	t.Parallel()

	t.Run("budget exhaustion", func(t *testing.T) {
		t.Parallel()

		l := ratelimiter.New()
		cfg := ratelimiter.PerMinute(3)

		for i := 0; i < 3; i++ {
			res := l.Allow("login:1.2.3.4", cfg)
			require.True(t, res.Allowed)
		}

		res := l.Allow("login:1.2.3.4", cfg)
		assert.False(t, res.Allowed)
		assert.Equal(t, 0, res.Remaining)
		assert.Greater(t, res.RetryAfter, time.Duration(0))
		assert.LessOrEqual(t, res.RetryAfter, time.Minute)
	})

	t.Run("keys are independent", func(t *testing.T) {
		t.Parallel()

		l := ratelimiter.New()
		cfg := ratelimiter.PerMinute(1)

		require.True(t, l.Allow("login:1.2.3.4", cfg).Allowed)
		assert.False(t, l.Allow("login:1.2.3.4", cfg).Allowed)
		assert.True(t, l.Allow("login:5.6.7.8", cfg).Allowed)
		assert.True(t, l.Allow("signup:1.2.3.4", cfg).Allowed)
	})

	t.Run("refill after interval", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		clock := &now
		l := ratelimiter.New(ratelimiter.WithClock(func() time.Time { return *clock }))
		cfg := ratelimiter.PerMinute(2)

		require.True(t, l.Allow("k", cfg).Allowed)
		require.True(t, l.Allow("k", cfg).Allowed)
		require.False(t, l.Allow("k", cfg).Allowed)

		later := now.Add(61 * time.Second)
		clock = &later

		res := l.Allow("k", cfg)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1, res.Remaining)
	})

	t.Run("refill never exceeds capacity", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		clock := &now
		l := ratelimiter.New(ratelimiter.WithClock(func() time.Time { return *clock }))
		cfg := ratelimiter.PerMinute(2)

		require.True(t, l.Allow("k", cfg).Allowed)

		later := now.Add(24 * time.Hour)
		clock = &later

		res := l.Allow("k", cfg)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1, res.Remaining)
	})

	t.Run("reset restores the budget", func(t *testing.T) {
		t.Parallel()

		l := ratelimiter.New()
		cfg := ratelimiter.PerMinute(1)

		require.True(t, l.Allow("k", cfg).Allowed)
		require.False(t, l.Allow("k", cfg).Allowed)

		l.Reset("k")
		assert.True(t, l.Allow("k", cfg).Allowed)
	})

	t.Run("weekly budget", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		clock := &now
		l := ratelimiter.New(ratelimiter.WithClock(func() time.Time { return *clock }))
		cfg := ratelimiter.Per(3, 7*24*time.Hour)

		for i := 0; i < 3; i++ {
			require.True(t, l.Allow("pw:u-1", cfg).Allowed)
		}
		res := l.Allow("pw:u-1", cfg)
		require.False(t, res.Allowed)

		later := now.Add(8 * 24 * time.Hour)
		clock = &later
		assert.True(t, l.Allow("pw:u-1", cfg).Allowed)
	})
}

func TestLen(t *testing.T) {
	t.Parallel()

	l := ratelimiter.New()
	cfg := ratelimiter.PerMinute(5)

	assert.Equal(t, 0, l.Len())
	l.Allow("a", cfg)
	l.Allow("b", cfg)
	assert.Equal(t, 2, l.Len())

	l.Reset("a")
	assert.Equal(t, 1, l.Len())
}

func TestSweepKeepsLongWindowDebt(t *testing.T) {
	t.Parallel()

	now := time.Now()
	clock := &now
	l := ratelimiter.New(
		ratelimiter.WithClock(func() time.Time { return *clock }),
		ratelimiter.WithCleanupInterval(time.Millisecond),
	)
	weekly := ratelimiter.Per(3, 7*24*time.Hour)
	minute := ratelimiter.PerMinute(1)

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("pw:u-1", weekly).Allowed)
	}
	require.False(t, l.Allow("pw:u-1", weekly).Allowed)
	require.True(t, l.Allow("login:1.2.3.4", minute).Allowed)
	require.Equal(t, 2, l.Len())

	later := now.Add(2 * time.Hour)
	clock = &later

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx)() }()

	// The idle minute bucket is refilled, so the sweep drops it; the weekly
	// bucket still owes its debt and must survive.
	require.Eventually(t, func() bool { return l.Len() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	res := l.Allow("pw:u-1", weekly)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	l := ratelimiter.New(ratelimiter.WithCleanupInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx)() }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
