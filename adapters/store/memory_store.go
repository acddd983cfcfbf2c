package store

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/layer-3/ccgate/core"
)

// MemoryNonceStore is an in-memory implementation of ports.NonceStore
type MemoryNonceStore struct {
	nonces map[string]core.NonceEntry
	mu     sync.RWMutex
}

// NewMemoryNonceStore creates a new in-memory nonce store
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{
		nonces: make(map[string]core.NonceEntry),
	}
}

// Put stores a nonce entry, replacing any entry with the same nonce
func (s *MemoryNonceStore) Put(ctx context.Context, entry core.NonceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nonces[entry.Nonce] = entry
	return nil
}

// Get retrieves a nonce entry
func (s *MemoryNonceStore) Get(ctx context.Context, nonce string) (core.NonceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.nonces[nonce]
	if !ok {
		return core.NonceEntry{}, core.ErrNotFound
	}
	return entry, nil
}

// Delete removes a nonce entry
func (s *MemoryNonceStore) Delete(ctx context.Context, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.nonces, nonce)
	return nil
}

// CompareAndDelete removes the entry when match accepts it
func (s *MemoryNonceStore) CompareAndDelete(ctx context.Context, nonce string, match func(core.NonceEntry) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.nonces[nonce]
	if !ok {
		return false, core.ErrNotFound
	}
	if !match(entry) {
		return false, nil
	}

	delete(s.nonces, nonce)
	return true, nil
}

// DeleteExpired removes all entries that expired before now
func (s *MemoryNonceStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for nonce, entry := range s.nonces {
		if entry.Expired(now) {
			delete(s.nonces, nonce)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of outstanding nonces
func (s *MemoryNonceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.nonces)
}

// MemoryRateLimitStore is an in-memory implementation of ports.RateLimitStore.
// Entries are evicted one window after their last update, which is never before
// the window they describe has ended.
type MemoryRateLimitStore struct {
	entries *ttlcache.Cache[string, core.RateLimitEntry]
	window  time.Duration
	mu      sync.Mutex
}

// NewMemoryRateLimitStore creates a new in-memory rate limit store with automatic cleanup
func NewMemoryRateLimitStore(window time.Duration) *MemoryRateLimitStore {
	entries := ttlcache.New(
		ttlcache.WithTTL[string, core.RateLimitEntry](window),
		ttlcache.WithDisableTouchOnHit[string, core.RateLimitEntry](),
	)

	// Start the cleanup process
	go entries.Start()

	return &MemoryRateLimitStore{
		entries: entries,
		window:  window,
	}
}

// Update applies fn to the current entry and stores the result
func (s *MemoryRateLimitStore) Update(ctx context.Context, identity string, fn func(*core.RateLimitEntry) core.RateLimitEntry) (core.RateLimitEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *core.RateLimitEntry
	if item := s.entries.Get(identity); item != nil {
		entry := item.Value()
		current = &entry
	}

	next := fn(current)
	s.entries.Set(identity, next, s.window)
	return next, nil
}

// Len returns the number of tracked identities
func (s *MemoryRateLimitStore) Len() int {
	return s.entries.Len()
}

// Close stops the cleanup goroutine
func (s *MemoryRateLimitStore) Close() error {
	s.entries.Stop()
	return nil
}
