// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/owlbridge/owlbridge/internal/domain/ratelimit"
)

// Default cleanup settings for RateLimiter.
const (
	DefaultCleanupInterval = 5 * time.Minute
	DefaultMaxTTL          = time.Hour
)

// RateLimiter implements ratelimit.Limiter with GCRA state held in memory.
// Safe for concurrent use. Keys idle for longer than maxTTL are dropped by a
// background sweeper started with StartCleanup.
type RateLimiter struct {
	mu  sync.Mutex
	tat map[string]time.Time // theoretical arrival time per key
	now func() time.Time

	cleanupInterval time.Duration
	maxTTL          time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
}

// NewRateLimiter creates a limiter with the given sweep settings. Zero values
// select the defaults.
func NewRateLimiter(cleanupInterval, maxTTL time.Duration) *RateLimiter {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	if maxTTL <= 0 {
		maxTTL = DefaultMaxTTL
	}
	return &RateLimiter{
		tat:             make(map[string]time.Time),
		now:             time.Now,
		cleanupInterval: cleanupInterval,
		maxTTL:          maxTTL,
		stop:            make(chan struct{}),
	}
}

// Allow records one event for key and reports whether it fits cfg.
func (r *RateLimiter) Allow(_ context.Context, key string, cfg ratelimit.Config) (ratelimit.Decision, error) {
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.Rate
	}
	if cfg.Period <= 0 {
		cfg.Period = time.Second
	}

	interval := cfg.Period / time.Duration(cfg.Rate)
	tolerance := interval * time.Duration(cfg.Burst-1)

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	tat := r.tat[key]
	if tat.Before(now) {
		tat = now
	}

	if allowAt := tat.Add(-tolerance); now.Before(allowAt) {
		return ratelimit.Decision{RetryAfter: allowAt.Sub(now)}, nil
	}

	next := tat.Add(interval)
	r.tat[key] = next

	remaining := int((tolerance - next.Sub(now) + interval) / interval)
	if remaining < 0 {
		remaining = 0
	}
	return ratelimit.Decision{Allowed: true, Remaining: remaining}, nil
}

// StartCleanup runs the idle-key sweeper until ctx is done or Stop is called.
func (r *RateLimiter) StartCleanup(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
}

func (r *RateLimiter) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.maxTTL)
	removed := 0
	for key, tat := range r.tat {
		if tat.Before(cutoff) {
			delete(r.tat, key)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("rate limiter sweep", "removed_keys", removed, "remaining_keys", len(r.tat))
	}
}

// Stop ends the sweeper and waits for it. Safe to call multiple times.
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()
}

// Size returns the number of tracked keys.
func (r *RateLimiter) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tat)
}

var _ ratelimit.Limiter = (*RateLimiter)(nil)
