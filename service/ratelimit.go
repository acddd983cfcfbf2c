package service

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/ccgate/core"
	"github.com/layer-3/ccgate/ports"
)

const (
	// DefaultUploadsPerWindow is the per-identity ceiling
	DefaultUploadsPerWindow = 10

	// DefaultRateLimitWindow is the fixed window length
	DefaultRateLimitWindow = 24 * time.Hour
)

// RateLimiter is a fixed-window counter per identity
type RateLimiter struct {
	store  ports.RateLimitStore
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter creates a rate limiter allowing limit operations per window
func NewRateLimiter(store ports.RateLimitStore, limit int, window time.Duration, opts ...Option) *RateLimiter {
	if limit <= 0 {
		limit = DefaultUploadsPerWindow
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	o := applyOptions(opts)

	return &RateLimiter{
		store:  store,
		limit:  limit,
		window: window,
		now:    o.now,
	}
}

// Identity builds the rate-limit key of an authenticated holder
func Identity(address, communityID string) string {
	return address + ":" + communityID
}

// Limit returns the configured per-window ceiling
func (r *RateLimiter) Limit() int {
	return r.limit
}

// Window returns the configured window length
func (r *RateLimiter) Window() time.Duration {
	return r.window
}

// CheckAndRecord counts one attempt for identity and reports whether it is allowed.
// Denied attempts are not counted.
func (r *RateLimiter) CheckAndRecord(ctx context.Context, identity string) (core.RateLimitDecision, error) {
	now := r.now()
	allowed := false

	entry, err := r.store.Update(ctx, identity, func(current *core.RateLimitEntry) core.RateLimitEntry {
		if current == nil || now.After(current.WindowResetAt) {
			allowed = true
			return core.RateLimitEntry{
				Identity:      identity,
				Count:         1,
				WindowResetAt: now.Add(r.window),
			}
		}

		next := *current
		if next.Count < r.limit {
			allowed = true
			next.Count++
		} else {
			allowed = false
		}
		return next
	})
	if err != nil {
		return core.RateLimitDecision{}, fmt.Errorf("failed to update rate limit: %w", err)
	}

	remaining := r.limit - entry.Count
	if remaining < 0 || !allowed {
		remaining = 0
	}

	return core.RateLimitDecision{
		Allowed:   allowed,
		Remaining: remaining,
		Limit:     r.limit,
		ResetAt:   entry.WindowResetAt,
	}, nil
}
