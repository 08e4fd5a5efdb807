// Package ratelimiter provides token bucket rate limiting keyed by client,
// with per-route budgets and background cleanup of idle buckets.
package ratelimiter

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Config defines one rate budget: Capacity tokens, refilled by RefillRate
// every RefillInterval.
type Config struct {
	Capacity       int
	RefillRate     int
	RefillInterval time.Duration
}

// PerMinute is a budget of n requests per minute with burst up to n.
func PerMinute(n int) Config {
	return Config{Capacity: n, RefillRate: n, RefillInterval: time.Minute}
}

// PerHour is a budget of n requests per hour with burst up to n.
func PerHour(n int) Config {
	return Config{Capacity: n, RefillRate: n, RefillInterval: time.Hour}
}

// Per is a budget of n requests per arbitrary interval.
func Per(n int, interval time.Duration) Config {
	return Config{Capacity: n, RefillRate: n, RefillInterval: interval}
}

// Result reports the outcome of a consumption attempt.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type bucket struct {
	tokens     int
	lastRefill time.Time
	lastAccess time.Time
	// fullAt is when the bucket is back at capacity; the sweeper must not
	// drop a bucket before then or long-window budgets would lose their debt.
	fullAt time.Time
}

func (b *bucket) noteFullAt(cfg Config, now time.Time) {
	missing := cfg.Capacity - b.tokens
	if missing <= 0 {
		b.fullAt = now
		return
	}
	intervals := (missing + cfg.RefillRate - 1) / cfg.RefillRate
	b.fullAt = b.lastRefill.Add(time.Duration(intervals) * cfg.RefillInterval)
}

// Limiter is a mutex-guarded map of token buckets. Distinct budgets share
// one limiter by namespacing their keys.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	cleanupInterval time.Duration
	staleThreshold  time.Duration
	logger          *slog.Logger
	now             func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithCleanupInterval sets how often idle buckets are swept.
func WithCleanupInterval(interval time.Duration) Option {
	return func(l *Limiter) {
		l.cleanupInterval = interval
	}
}

// WithLogger sets the logger for background operations.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates an empty limiter. Call Run to enable background cleanup.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		buckets:         make(map[string]*bucket),
		cleanupInterval: 5 * time.Minute,
		staleThreshold:  time.Hour,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow consumes one token from the bucket for key under the given budget.
func (l *Limiter) Allow(key string, cfg Config) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: cfg.Capacity, lastRefill: now}
		l.buckets[key] = b
	}

	// Cap elapsed intervals so a long-idle bucket cannot overflow the math.
	elapsed := now.Sub(b.lastRefill)
	maxIntervals := int64(cfg.Capacity/cfg.RefillRate + 1)
	intervals := int(min(int64(elapsed/cfg.RefillInterval), maxIntervals))
	if intervals > 0 {
		b.tokens = min(b.tokens+intervals*cfg.RefillRate, cfg.Capacity)
		b.lastRefill = now
	}
	b.lastAccess = now

	if b.tokens <= 0 {
		b.noteFullAt(cfg, now)
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: b.lastRefill.Add(cfg.RefillInterval).Sub(now),
		}
	}
	b.tokens--
	b.noteFullAt(cfg, now)
	return Result{Allowed: true, Remaining: b.tokens}
}

// Reset drops the bucket for a key, restoring its full budget.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Len reports the number of tracked buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Run sweeps idle buckets until the context is cancelled. It returns a
// closure for errgroup.Go.
func (l *Limiter) Run(ctx context.Context) func() error {
	return func() error {
		ticker := time.NewTicker(l.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if removed := l.removeStale(); removed > 0 {
					l.logger.Debug("removed stale rate limit buckets", slog.Int("count", removed))
				}
			}
		}
	}
}

func (l *Limiter) removeStale() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, b := range l.buckets {
		// Only buckets that would be back at full capacity are dropped; a
		// recreated bucket then hands out exactly the same budget.
		if now.Sub(b.lastAccess) > l.staleThreshold && !now.Before(b.fullAt) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}
