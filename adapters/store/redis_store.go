package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/ccgate/core"
	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic transaction retries under contention
const maxTxRetries = 16

// minKeyTTL keeps already-expired entries around long enough to be judged
const minKeyTTL = time.Second

// ExpiredNonceGrace is how long a nonce key outlives its expiry, so a late
// validation is judged expired instead of unknown. Matches the reap interval.
const ExpiredNonceGrace = time.Minute

// RedisNonceStore is a Redis implementation of ports.NonceStore.
// Keys carry a TTL so Redis reclaims expired nonces on its own.
type RedisNonceStore struct {
	client *redis.Client
	prefix string
}

// NewRedisNonceStore creates a new Redis nonce store
func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{
		client: client,
		prefix: "ccgate:nonce:",
	}
}

func (s *RedisNonceStore) key(nonce string) string {
	return s.prefix + nonce
}

// Put stores a nonce entry. The key lives ExpiredNonceGrace past the entry's expiry.
func (s *RedisNonceStore) Put(ctx context.Context, entry core.NonceEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode nonce entry: %w", err)
	}

	ttl := max(time.Until(entry.ExpiresAt), minKeyTTL) + ExpiredNonceGrace

	if err := s.client.Set(ctx, s.key(entry.Nonce), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store nonce: %w", errors.Join(core.ErrStoreOperation, err))
	}
	return nil
}

// Get retrieves a nonce entry
func (s *RedisNonceStore) Get(ctx context.Context, nonce string) (core.NonceEntry, error) {
	raw, err := s.client.Get(ctx, s.key(nonce)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.NonceEntry{}, core.ErrNotFound
		}
		return core.NonceEntry{}, fmt.Errorf("failed to load nonce: %w", errors.Join(core.ErrStoreOperation, err))
	}
	return decodeNonceEntry(raw)
}

// Delete removes a nonce entry
func (s *RedisNonceStore) Delete(ctx context.Context, nonce string) error {
	if err := s.client.Del(ctx, s.key(nonce)).Err(); err != nil {
		return fmt.Errorf("failed to delete nonce: %w", errors.Join(core.ErrStoreOperation, err))
	}
	return nil
}

// CompareAndDelete removes the entry when match accepts it. The read and the delete
// run in a WATCH/MULTI transaction that is retried when another client touched the key.
func (s *RedisNonceStore) CompareAndDelete(ctx context.Context, nonce string, match func(core.NonceEntry) bool) (bool, error) {
	key := s.key(nonce)
	var deleted bool

	txf := func(tx *redis.Tx) error {
		deleted = false

		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return core.ErrNotFound
			}
			return err
		}

		entry, err := decodeNonceEntry(raw)
		if err != nil {
			return err
		}
		if !match(entry) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err != nil {
			return err
		}

		deleted = true
		return nil
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return deleted, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, core.ErrNotFound):
			return false, err
		default:
			return false, fmt.Errorf("failed to consume nonce: %w", errors.Join(core.ErrStoreOperation, err))
		}
	}

	return false, fmt.Errorf("failed to consume nonce after %d attempts: %w", maxTxRetries, core.ErrStoreOperation)
}

// DeleteExpired is a no-op: Redis expires nonce keys itself
func (s *RedisNonceStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func decodeNonceEntry(raw []byte) (core.NonceEntry, error) {
	var entry core.NonceEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return core.NonceEntry{}, fmt.Errorf("failed to decode nonce entry: %w", err)
	}
	return entry, nil
}

// RedisRateLimitStore is a Redis implementation of ports.RateLimitStore
type RedisRateLimitStore struct {
	client *redis.Client
	prefix string
	window time.Duration
}

// NewRedisRateLimitStore creates a new Redis rate limit store
func NewRedisRateLimitStore(client *redis.Client, window time.Duration) *RedisRateLimitStore {
	return &RedisRateLimitStore{
		client: client,
		prefix: "ccgate:ratelimit:",
		window: window,
	}
}

// Update applies fn to the current entry inside an optimistic transaction
func (s *RedisRateLimitStore) Update(ctx context.Context, identity string, fn func(*core.RateLimitEntry) core.RateLimitEntry) (core.RateLimitEntry, error) {
	key := s.prefix + identity
	var next core.RateLimitEntry

	txf := func(tx *redis.Tx) error {
		var current *core.RateLimitEntry

		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var entry core.RateLimitEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				return fmt.Errorf("failed to decode rate limit entry: %w", err)
			}
			current = &entry
		}

		next = fn(current)
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to encode rate limit entry: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.window)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return core.RateLimitEntry{}, fmt.Errorf("failed to update rate limit: %w", errors.Join(core.ErrStoreOperation, err))
	}

	return core.RateLimitEntry{}, fmt.Errorf("failed to update rate limit after %d attempts: %w", maxTxRetries, core.ErrStoreOperation)
}
