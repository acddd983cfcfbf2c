package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/layer-3/ccgate/core"
	"github.com/layer-3/ccgate/ports"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func nonceStores(t *testing.T) map[string]ports.NonceStore {
	client, _ := newRedisClient(t)
	return map[string]ports.NonceStore{
		"memory": NewMemoryNonceStore(),
		"redis":  NewRedisNonceStore(client),
	}
}

func rateLimitStores(t *testing.T) map[string]ports.RateLimitStore {
	client, _ := newRedisClient(t)
	mem := NewMemoryRateLimitStore(time.Hour)
	t.Cleanup(func() { _ = mem.Close() })

	return map[string]ports.RateLimitStore{
		"memory": mem,
		"redis":  NewRedisRateLimitStore(client, time.Hour),
	}
}

func testEntry(nonce string, expiresAt time.Time) core.NonceEntry {
	return core.NonceEntry{
		Nonce:       nonce,
		Address:     "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
		CommunityID: "sqm1v79dF6b",
		Timestamp:   1704067200000,
		ExpiresAt:   expiresAt,
	}
}

func TestNonceStorePutGetDelete(t *testing.T) {
	ctx := context.Background()

	for name, s := range nonceStores(t) {
		t.Run(name, func(t *testing.T) {
			entry := testEntry("n1", time.Now().Add(time.Minute).UTC().Truncate(time.Millisecond))
			require.NoError(t, s.Put(ctx, entry))

			got, err := s.Get(ctx, "n1")
			require.NoError(t, err)
			assert.Equal(t, entry.Address, got.Address)
			assert.Equal(t, entry.CommunityID, got.CommunityID)
			assert.Equal(t, entry.Timestamp, got.Timestamp)
			assert.True(t, entry.ExpiresAt.Equal(got.ExpiresAt))

			require.NoError(t, s.Delete(ctx, "n1"))
			_, err = s.Get(ctx, "n1")
			assert.ErrorIs(t, err, core.ErrNotFound)
		})
	}
}

func TestNonceStoreCompareAndDelete(t *testing.T) {
	ctx := context.Background()

	for name, s := range nonceStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, testEntry("n2", time.Now().Add(time.Minute))))

			deleted, err := s.CompareAndDelete(ctx, "n2", func(core.NonceEntry) bool { return false })
			require.NoError(t, err)
			assert.False(t, deleted)

			_, err = s.Get(ctx, "n2")
			require.NoError(t, err, "rejected entries stay in the store")

			deleted, err = s.CompareAndDelete(ctx, "n2", func(e core.NonceEntry) bool { return e.Nonce == "n2" })
			require.NoError(t, err)
			assert.True(t, deleted)

			_, err = s.CompareAndDelete(ctx, "n2", func(core.NonceEntry) bool { return true })
			assert.ErrorIs(t, err, core.ErrNotFound)
		})
	}
}

func TestNonceStoreCompareAndDeleteConcurrent(t *testing.T) {
	ctx := context.Background()

	for name, s := range nonceStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, testEntry("race", time.Now().Add(time.Minute))))

			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					deleted, err := s.CompareAndDelete(ctx, "race", func(core.NonceEntry) bool { return true })
					if err == nil && deleted {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(1), wins.Load())
		})
	}
}

func TestMemoryNonceStoreDeleteExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryNonceStore()
	now := time.Now()

	require.NoError(t, s.Put(ctx, testEntry("old", now.Add(-time.Second))))
	require.NoError(t, s.Put(ctx, testEntry("fresh", now.Add(time.Minute))))

	removed, err := s.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Len())

	_, err = s.Get(ctx, "fresh")
	assert.NoError(t, err)
}

func TestRedisNonceStoreExpiresKeys(t *testing.T) {
	ctx := context.Background()
	client, mr := newRedisClient(t)
	s := NewRedisNonceStore(client)

	require.NoError(t, s.Put(ctx, testEntry("ttl", time.Now().Add(5*time.Minute))))
	assert.True(t, mr.Exists("ccgate:nonce:ttl"))

	mr.FastForward(5*time.Minute + time.Second)

	// Past expiry but inside the grace period the entry can still be judged
	_, err := s.Get(ctx, "ttl")
	require.NoError(t, err)

	mr.FastForward(ExpiredNonceGrace)

	_, err = s.Get(ctx, "ttl")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRedisNonceStoreConsumesExpiredEntryInGrace(t *testing.T) {
	ctx := context.Background()
	client, mr := newRedisClient(t)
	s := NewRedisNonceStore(client)

	expiresAt := time.Now().Add(time.Second)
	require.NoError(t, s.Put(ctx, testEntry("late", expiresAt)))

	mr.FastForward(30 * time.Second)

	deleted, err := s.CompareAndDelete(ctx, "late", func(e core.NonceEntry) bool {
		return e.ExpiresAt.Equal(expiresAt)
	})
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, mr.Exists("ccgate:nonce:late"))
}

func TestRateLimitStoreUpdate(t *testing.T) {
	ctx := context.Background()
	reset := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)

	for name, s := range rateLimitStores(t) {
		t.Run(name, func(t *testing.T) {
			entry, err := s.Update(ctx, "alice", func(current *core.RateLimitEntry) core.RateLimitEntry {
				assert.Nil(t, current)
				return core.RateLimitEntry{Identity: "alice", Count: 1, WindowResetAt: reset}
			})
			require.NoError(t, err)
			assert.Equal(t, 1, entry.Count)

			entry, err = s.Update(ctx, "alice", func(current *core.RateLimitEntry) core.RateLimitEntry {
				require.NotNil(t, current)
				assert.True(t, reset.Equal(current.WindowResetAt))
				next := *current
				next.Count++
				return next
			})
			require.NoError(t, err)
			assert.Equal(t, 2, entry.Count)
		})
	}
}

func TestRateLimitStoreConcurrentIncrements(t *testing.T) {
	ctx := context.Background()

	for name, s := range rateLimitStores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.Update(ctx, "bob", func(current *core.RateLimitEntry) core.RateLimitEntry {
						if current == nil {
							return core.RateLimitEntry{Identity: "bob", Count: 1}
						}
						next := *current
						next.Count++
						return next
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			entry, err := s.Update(ctx, "bob", func(current *core.RateLimitEntry) core.RateLimitEntry {
				return *current
			})
			require.NoError(t, err)
			assert.Equal(t, 10, entry.Count)
		})
	}
}
