// Package ratelimit provides rate limiting domain types.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Config defines the rate limiting parameters.
type Config struct {
	// Rate is the number of allowed events per Period.
	Rate int

	// Burst is the number of events that may arrive back to back.
	// Zero means Burst equals Rate.
	Burst int

	// Period is the time window Rate applies to.
	Period time.Duration
}

// PerMinute returns a Config allowing rate events per minute with an equal burst.
func PerMinute(rate int) Config {
	return Config{Rate: rate, Burst: rate, Period: time.Minute}
}

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed bool

	// Remaining is how many further events would be allowed right now.
	Remaining int

	// RetryAfter is the wait until the next event is allowed.
	// Only meaningful when Allowed is false.
	RetryAfter time.Duration
}

// Limiter decides whether an event identified by key may proceed.
//
// Implementations use GCRA (Generic Cell Rate Algorithm), which spaces events
// evenly instead of resetting at window boundaries.
type Limiter interface {
	Allow(ctx context.Context, key string, cfg Config) (Decision, error)
}

// Scope identifies what a rate limit key is derived from.
type Scope string

const (
	// ScopeIP limits per client address.
	ScopeIP Scope = "ip"

	// ScopeKey limits per API key name.
	ScopeKey Scope = "key"
)

// Key returns a structured rate limit key, e.g. "ratelimit:ip:10.0.0.1".
func Key(scope Scope, value string) string {
	return fmt.Sprintf("ratelimit:%s:%s", scope, value)
}
