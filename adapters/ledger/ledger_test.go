package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/ccgate/adapters/signature"
	"github.com/layer-3/ccgate/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceAddress = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	community    = "u0qj944rhWE"
)

func TestTwox128(t *testing.T) {
	assert.Equal(t, "26aa394eea5630e07c48ae0c9558cef7", hex.EncodeToString(Twox128([]byte("System"))))
	assert.Equal(t, "b99d880ec681799c0cf30e8886371da9", hex.EncodeToString(Twox128([]byte("Account"))))
}

func TestBlake2_128Concat(t *testing.T) {
	out := Blake2_128Concat([]byte("abc"))
	require.Len(t, out, 16+3)
	assert.Equal(t, []byte("abc"), out[16:])
}

func TestEncodeCommunityID(t *testing.T) {
	encoded, err := EncodeCommunityID(community)
	require.NoError(t, err)
	require.Len(t, encoded, geohashLength+digestLength)
	assert.Equal(t, []byte("u0qj9"), encoded[:geohashLength])

	for _, bad := range []string{"u0qj9", "aaaaa44rhWE", "u0qj9000000", "u0qj944rhWE44rhWE"} {
		_, err := EncodeCommunityID(bad)
		assert.Error(t, err, bad)
	}
}

func TestBalanceStorageKey(t *testing.T) {
	accountID, _, err := signature.DecodeAddress(aliceAddress)
	require.NoError(t, err)

	key, err := BalanceStorageKey(community, accountID)
	require.NoError(t, err)

	assert.Equal(t, Twox128([]byte("EncointerBalances")), key[:16])
	assert.Equal(t, Twox128([]byte("Balance")), key[16:32])
	assert.Len(t, key, 32+16+9+16+32)
	assert.Equal(t, accountID, key[len(key)-32:])
}

func TestBalanceEntryCodec(t *testing.T) {
	tests := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(-1),
		new(big.Int).Lsh(big.NewInt(3), 64),
		new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1)),
		new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127)),
	}

	for _, principal := range tests {
		t.Run(principal.String(), func(t *testing.T) {
			data, err := EncodeBalanceEntry(core.BalanceEntry{Principal: principal, LastUpdate: 1234})
			require.NoError(t, err)
			require.Len(t, data, balanceEntryLength)

			entry, err := DecodeBalanceEntry(data)
			require.NoError(t, err)
			assert.Equal(t, 0, principal.Cmp(entry.Principal))
			assert.Equal(t, uint32(1234), entry.LastUpdate)
		})
	}

	_, err := EncodeBalanceEntry(core.BalanceEntry{Principal: new(big.Int).Lsh(big.NewInt(1), 127)})
	assert.Error(t, err)

	_, err = DecodeBalanceEntry([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeBalanceEntryNegative(t *testing.T) {
	data := make([]byte, balanceEntryLength)
	for i := 0; i < i128Bytes; i++ {
		data[i] = 0xff
	}

	entry, err := DecodeBalanceEntry(data)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), entry.Principal.Int64())
}

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params []string        `json:"params"`
}

// fakeNode answers state_getStorage from an in-memory map
type fakeNode struct {
	mu      sync.Mutex
	storage map[string]string
	keys    []string
	fail    bool
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	switch {
	case n.fail:
		resp["error"] = map[string]any{"code": -32000, "message": "node unavailable"}
	case req.Method != "state_getStorage" || len(req.Params) != 1:
		resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
	default:
		n.keys = append(n.keys, req.Params[0])
		if value, ok := n.storage[req.Params[0]]; ok {
			resp["result"] = value
		} else {
			resp["result"] = nil
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestClient(t *testing.T, node *fakeNode) *EncointerClient {
	server := httptest.NewServer(node)
	t.Cleanup(server.Close)

	client, err := DialEncointer(context.Background(), server.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestEncointerQueryBalance(t *testing.T) {
	accountID, _, err := signature.DecodeAddress(aliceAddress)
	require.NoError(t, err)
	key, err := BalanceStorageKey(community, accountID)
	require.NoError(t, err)

	principal := core.FixedFromDecimal(decimal.RequireFromString("2.5"), false)
	value, err := EncodeBalanceEntry(core.BalanceEntry{Principal: principal, LastUpdate: 77})
	require.NoError(t, err)

	node := &fakeNode{storage: map[string]string{hexutil.Encode(key): hexutil.Encode(value)}}
	client := newTestClient(t, node)

	entry, err := client.QueryBalance(context.Background(), aliceAddress, community)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 0, principal.Cmp(entry.Principal))
	assert.Equal(t, uint32(77), entry.LastUpdate)
	assert.Equal(t, []string{hexutil.Encode(key)}, node.keys)
}

func TestEncointerQueryBalanceAbsent(t *testing.T) {
	node := &fakeNode{storage: map[string]string{}}
	client := newTestClient(t, node)

	entry, err := client.QueryBalance(context.Background(), aliceAddress, community)
	require.NoError(t, err)
	assert.Nil(t, entry)

	// Not a geohash, so no query is made
	entry, err = client.QueryBalance(context.Background(), aliceAddress, "aaaaaaaaaaa")
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Len(t, node.keys, 1)
}

func TestEncointerQueryBalanceErrors(t *testing.T) {
	node := &fakeNode{fail: true}
	client := newTestClient(t, node)

	_, err := client.QueryBalance(context.Background(), aliceAddress, community)
	assert.Error(t, err)

	_, err = client.QueryBalance(context.Background(), "garbage", community)
	assert.ErrorIs(t, err, core.ErrInvalidAddress)
}

func TestStatic(t *testing.T) {
	ledger := NewStatic()
	ctx := context.Background()

	entry, err := ledger.QueryBalance(ctx, aliceAddress, community)
	require.NoError(t, err)
	assert.Nil(t, entry)

	ledger.Set(aliceAddress, community, decimal.RequireFromString("1.5"))
	entry, err = ledger.QueryBalance(ctx, aliceAddress, community)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "1.5", core.FixedToDecimal(entry.Principal).String())

	ledger.SetDefault(decimal.NewFromInt(3))
	entry, err = ledger.QueryBalance(ctx, "someone", community)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "3", core.FixedToDecimal(entry.Principal).String())
}
