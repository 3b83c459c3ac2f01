// Package ratelimit bounds the number of requests a client network origin can make in a time window.
//
// A Limiter pairs a limit (max requests per window) with a Store that keeps the per-origin state.
// Two stores are provided:
//   - MemoryStore: a fixed window counter per origin kept in process memory.
//   - RedisStore: a fixed window counter updated atomically by a Lua script, shared by every gateway replica
//     that points at the same Redis.
//
// In both stores the window starts with the first request from an origin. Request max+1 within that window
// is rejected however the requests are spread, and the full allowance returns when the window ends.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Decision is the outcome of a single Allow call
type Decision struct {
	Allowed bool

	// Limit is the configured max requests per window
	Limit int

	// Remaining is the number of further requests the origin can make right now
	Remaining int

	// ResetAfter is the time until the allowance is fully restored (when allowed) or
	// until the next request can be accepted (when rejected)
	ResetAfter time.Duration
}

// Store records requests per key.
//
// Implementations must update the per-key state atomically so that concurrent requests are not undercounted.
type Store interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Limiter applies one rate limit policy.
type Limiter struct {
	name    string
	max     int
	window  time.Duration
	store   Store
	message string
}

// Config describes one policy, e.g. 5 requests per 15 minutes for the credential endpoints.
type Config struct {
	// Name identifies the limiter in logs and Redis keys (e.g "auth", "api")
	Name string

	// Max is the number of requests allowed per window. Zero or less disables the limiter.
	Max int

	Window time.Duration

	// Message is returned to clients that exceed the limit
	Message string
}

// New creates a Limiter. newStore is called with the validated policy and is not called when the limiter is disabled.
func New(cfg Config, newStore func(max int, window time.Duration) (Store, error)) (*Limiter, error) {
	l := &Limiter{
		name:    cfg.Name,
		max:     cfg.Max,
		window:  cfg.Window,
		message: cfg.Message,
	}
	if !l.Enabled() {
		return l, nil
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("rate limit window for %q must be greater than 0", cfg.Name)
	}

	store, err := newStore(cfg.Max, cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to create %q rate limit store: %w", cfg.Name, err)
	}
	l.store = store
	return l, nil
}

// Enabled reports whether requests are limited at all
func (l *Limiter) Enabled() bool { return l != nil && l.max > 0 }

func (l *Limiter) Name() string    { return l.name }
func (l *Limiter) Message() string { return l.message }
func (l *Limiter) Max() int        { return l.max }

// Allow records a request from key. Disabled limiters always allow.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}
	return l.store.Allow(ctx, l.name+":"+key)
}
