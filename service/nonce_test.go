package service

import (
	"context"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/layer-3/ccgate/adapters/store"
	"github.com/layer-3/ccgate/core"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAddress   = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	testCommunity = "u0qj944rhWE"
)

func newTestNonceManager(clock *fakeClock) (*NonceManager, *store.MemoryNonceStore) {
	s := store.NewMemoryNonceStore()
	return NewNonceManager(s, DefaultNonceTTL, WithClock(clock.Now)), s
}

func TestNonceIssue(t *testing.T) {
	clock := newFakeClock()
	m, s := newTestNonceManager(clock)
	ctx := context.Background()

	entry, err := m.Issue(ctx, testAddress, testCommunity)
	require.NoError(t, err)

	raw, err := hex.DecodeString(entry.Nonce)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.Equal(t, clock.Now().UnixMilli(), entry.Timestamp)
	assert.Equal(t, clock.Now().Add(DefaultNonceTTL), entry.ExpiresAt)

	stored, err := s.Get(ctx, entry.Nonce)
	require.NoError(t, err)
	assert.Equal(t, entry, stored)

	other, err := m.Issue(ctx, testAddress, testCommunity)
	require.NoError(t, err)
	assert.NotEqual(t, entry.Nonce, other.Nonce)
}

func TestValidateAndConsumeSingleUse(t *testing.T) {
	clock := newFakeClock()
	m, s := newTestNonceManager(clock)
	ctx := context.Background()

	entry, err := m.Issue(ctx, testAddress, testCommunity)
	require.NoError(t, err)

	outcome, err := m.ValidateAndConsume(ctx, entry.Nonce, testAddress, testCommunity, entry.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, core.NonceValid, outcome)

	_, err = s.Get(ctx, entry.Nonce)
	assert.ErrorIs(t, err, core.ErrNotFound)

	outcome, err = m.ValidateAndConsume(ctx, entry.Nonce, testAddress, testCommunity, entry.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, core.NonceUnknown, outcome)
	assert.EqualError(t, outcome.Err(), "Invalid or expired nonce")
}

func TestValidateAndConsumeMismatchKeepsEntry(t *testing.T) {
	clock := newFakeClock()
	m, s := newTestNonceManager(clock)
	ctx := context.Background()

	entry, err := m.Issue(ctx, testAddress, testCommunity)
	require.NoError(t, err)

	tests := []struct {
		name        string
		address     string
		communityID string
		timestamp   int64
		want        core.NonceOutcome
	}{
		{"address", "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty", testCommunity, entry.Timestamp, core.NonceAddressMismatch},
		{"community", testAddress, "otherCommunity1", entry.Timestamp, core.NonceCommunityMismatch},
		{"timestamp", testAddress, testCommunity, entry.Timestamp + 1, core.NonceTimestampMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := m.ValidateAndConsume(ctx, entry.Nonce, tt.address, tt.communityID, tt.timestamp)
			require.NoError(t, err)
			assert.Equal(t, tt.want, outcome)
			assert.ErrorIs(t, outcome.Err(), core.ErrInvalidNonce)

			_, err = s.Get(ctx, entry.Nonce)
			assert.NoError(t, err)
		})
	}

	outcome, err := m.ValidateAndConsume(ctx, entry.Nonce, testAddress, testCommunity, entry.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, core.NonceValid, outcome)
}

func TestValidateAndConsumeExpiredDeletes(t *testing.T) {
	clock := newFakeClock()
	m, s := newTestNonceManager(clock)
	ctx := context.Background()

	entry, err := m.Issue(ctx, testAddress, testCommunity)
	require.NoError(t, err)

	clock.Advance(DefaultNonceTTL)
	outcome, err := m.ValidateAndConsume(ctx, entry.Nonce, testAddress, "otherCommunity1", entry.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, core.NonceCommunityMismatch, outcome, "expiry is inclusive of the last instant")

	clock.Advance(time.Millisecond)
	outcome, err = m.ValidateAndConsume(ctx, entry.Nonce, testAddress, testCommunity, entry.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, core.NonceExpired, outcome)
	assert.EqualError(t, outcome.Err(), "Nonce expired")

	_, err = s.Get(ctx, entry.Nonce)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestValidateAndConsumeConcurrent(t *testing.T) {
	clock := newFakeClock()
	m, _ := newTestNonceManager(clock)
	ctx := context.Background()

	entry, err := m.Issue(ctx, testAddress, testCommunity)
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		valid atomic.Int32
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := m.ValidateAndConsume(ctx, entry.Nonce, testAddress, testCommunity, entry.Timestamp)
			if err == nil && outcome == core.NonceValid {
				valid.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), valid.Load())
}

func TestNonceReap(t *testing.T) {
	clock := newFakeClock()
	m, s := newTestNonceManager(clock)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := m.Issue(ctx, testAddress, testCommunity)
		require.NoError(t, err)
	}
	clock.Advance(DefaultNonceTTL + time.Second)
	fresh, err := m.Issue(ctx, testAddress, testCommunity)
	require.NoError(t, err)

	removed, err := m.Reap(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, s.Len())

	_, err = s.Get(ctx, fresh.Nonce)
	assert.NoError(t, err)
}

func TestRunReaper(t *testing.T) {
	clock := newFakeClock()
	m, s := newTestNonceManager(clock)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := m.Issue(ctx, testAddress, testCommunity)
	require.NoError(t, err)
	clock.Advance(DefaultNonceTTL + time.Second)

	done := make(chan error, 1)
	go func() { done <- m.RunReaper(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}

func TestValidateAndConsumeExpiredOnRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := newFakeClock()
	nonces := NewNonceManager(store.NewRedisNonceStore(client), DefaultNonceTTL, WithClock(clock.Now))
	ctx := context.Background()

	entry, err := nonces.Issue(ctx, testAddress, testCommunity)
	require.NoError(t, err)

	clock.Advance(DefaultNonceTTL + time.Second)

	outcome, err := nonces.ValidateAndConsume(ctx, entry.Nonce, testAddress, testCommunity, entry.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, core.NonceExpired, outcome)

	outcome, err = nonces.ValidateAndConsume(ctx, entry.Nonce, testAddress, testCommunity, entry.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, core.NonceUnknown, outcome)
}
