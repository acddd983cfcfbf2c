package ports

import (
	"context"
	"time"

	"github.com/layer-3/ccgate/core"
)

// NonceStore holds outstanding challenge nonces
type NonceStore interface {
	Put(ctx context.Context, entry core.NonceEntry) error

	// Get returns core.ErrNotFound when the nonce is absent
	Get(ctx context.Context, nonce string) (core.NonceEntry, error)

	Delete(ctx context.Context, nonce string) error

	// CompareAndDelete loads the entry and deletes it iff match returns true, as one
	// atomic step with respect to other calls for the same nonce.
	// It returns core.ErrNotFound when the nonce is absent.
	CompareAndDelete(ctx context.Context, nonce string, match func(core.NonceEntry) bool) (deleted bool, err error)

	// DeleteExpired removes every entry that expired before now
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// RateLimitStore holds one fixed-window counter per identity
type RateLimitStore interface {
	// Update atomically replaces the identity's entry with the result of fn.
	// fn receives nil when no entry exists and returns the entry to store.
	Update(ctx context.Context, identity string, fn func(current *core.RateLimitEntry) core.RateLimitEntry) (core.RateLimitEntry, error)
}
