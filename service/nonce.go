package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/ccgate/core"
	"github.com/layer-3/ccgate/internal/metrics"
	"github.com/layer-3/ccgate/ports"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultNonceTTL is how long a challenge can be answered
	DefaultNonceTTL = 5 * time.Minute

	// DefaultReapInterval is how often expired nonces are swept
	DefaultReapInterval = time.Minute

	nonceBytes = 32
)

// NonceManager issues single-use challenge nonces
type NonceManager struct {
	store ports.NonceStore
	ttl   time.Duration
	now   func() time.Time
}

// NewNonceManager creates a nonce manager
func NewNonceManager(store ports.NonceStore, ttl time.Duration, opts ...Option) *NonceManager {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	o := applyOptions(opts)

	return &NonceManager{
		store: store,
		ttl:   ttl,
		now:   o.now,
	}
}

// Issue generates and stores a fresh nonce bound to address and community
func (m *NonceManager) Issue(ctx context.Context, address, communityID string) (core.NonceEntry, error) {
	nonce, err := generateNonce(nonceBytes)
	if err != nil {
		return core.NonceEntry{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := m.now()
	entry := core.NonceEntry{
		Nonce:       nonce,
		Address:     address,
		CommunityID: communityID,
		Timestamp:   now.UnixMilli(),
		ExpiresAt:   now.Add(m.ttl),
	}

	if err := m.store.Put(ctx, entry); err != nil {
		return core.NonceEntry{}, fmt.Errorf("failed to store nonce: %w", err)
	}

	return entry, nil
}

// ValidateAndConsume checks a nonce against the values it was issued for.
// A valid nonce is deleted in the same atomic step; an expired one is deleted as
// cleanup; any other rejection leaves the entry in place.
func (m *NonceManager) ValidateAndConsume(ctx context.Context, nonce, address, communityID string, timestamp int64) (core.NonceOutcome, error) {
	now := m.now()
	outcome := core.NonceUnknown

	_, err := m.store.CompareAndDelete(ctx, nonce, func(entry core.NonceEntry) bool {
		outcome = judgeNonce(entry, now, address, communityID, timestamp)
		return outcome == core.NonceValid || outcome == core.NonceExpired
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NonceUnknown, nil
		}
		return core.NonceUnknown, fmt.Errorf("failed to validate nonce: %w", err)
	}

	return outcome, nil
}

func judgeNonce(entry core.NonceEntry, now time.Time, address, communityID string, timestamp int64) core.NonceOutcome {
	switch {
	case entry.Expired(now):
		return core.NonceExpired
	case entry.Address != address:
		return core.NonceAddressMismatch
	case entry.CommunityID != communityID:
		return core.NonceCommunityMismatch
	case entry.Timestamp != timestamp:
		return core.NonceTimestampMismatch
	default:
		return core.NonceValid
	}
}

// Reap deletes all expired nonces
func (m *NonceManager) Reap(ctx context.Context) (int, error) {
	removed, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to reap nonces: %w", err)
	}
	metrics.NoncesReapedTotal.Add(float64(removed))
	return removed, nil
}

// RunReaper calls Reap every interval until ctx is cancelled
func (m *NonceManager) RunReaper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultReapInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed, err := m.Reap(ctx)
			if err != nil {
				log.Error().Err(err).Msg("nonce reaper failed")
				continue
			}
			if removed > 0 {
				log.Debug().Int("removed", removed).Msg("expired nonces reaped")
			}
		}
	}
}

// generateNonce generates a secure random nonce of the specified length
func generateNonce(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
