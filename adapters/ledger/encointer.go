package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/layer-3/ccgate/adapters/signature"
	"github.com/layer-3/ccgate/core"
	"github.com/layer-3/ccgate/ports"
	"github.com/rs/zerolog/log"
)

const (
	i128Bytes = 16
	signBit   = byte(0x80)

	// balanceEntryLength is an i128 principal followed by a u32 block number
	balanceEntryLength = i128Bytes + 4
)

// EncointerClient reads community currency balances over Substrate JSON-RPC
type EncointerClient struct {
	client *rpc.Client
}

var _ ports.BalanceQuerier = (*EncointerClient)(nil)

// DialEncointer connects to a node. Both ws(s):// and http(s):// endpoints work.
func DialEncointer(ctx context.Context, url string) (*EncointerClient, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ledger %s: %w", url, err)
	}
	return NewEncointerClient(client), nil
}

// NewEncointerClient wraps an existing RPC client
func NewEncointerClient(client *rpc.Client) *EncointerClient {
	return &EncointerClient{client: client}
}

// QueryBalance implements ports.BalanceQuerier
func (c *EncointerClient) QueryBalance(ctx context.Context, address, communityID string) (*core.BalanceEntry, error) {
	accountID, _, err := signature.DecodeAddress(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidAddress, err)
	}

	key, err := BalanceStorageKey(communityID, accountID)
	if err != nil {
		// A community that cannot exist on chain has no balances
		log.Debug().Err(err).Str("community_id", communityID).Msg("community id not encodable")
		return nil, nil
	}

	var raw *string
	if err := c.client.CallContext(ctx, &raw, "state_getStorage", hexutil.Encode(key)); err != nil {
		return nil, fmt.Errorf("state_getStorage failed: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	data, err := hexutil.Decode(*raw)
	if err != nil {
		return nil, fmt.Errorf("malformed storage value: %w", err)
	}

	return DecodeBalanceEntry(data)
}

// Close closes the RPC connection
func (c *EncointerClient) Close() error {
	c.client.Close()
	return nil
}

// DecodeBalanceEntry decodes a SCALE encoded BalanceEntry
func DecodeBalanceEntry(data []byte) (*core.BalanceEntry, error) {
	if len(data) < balanceEntryLength {
		return nil, fmt.Errorf("balance entry is %d bytes, want %d", len(data), balanceEntryLength)
	}

	return &core.BalanceEntry{
		Principal:  decodeI128(data[:i128Bytes]),
		LastUpdate: binary.LittleEndian.Uint32(data[i128Bytes:balanceEntryLength]),
	}, nil
}

// EncodeBalanceEntry is the inverse of DecodeBalanceEntry
func EncodeBalanceEntry(entry core.BalanceEntry) ([]byte, error) {
	principal, err := encodeI128(entry.Principal)
	if err != nil {
		return nil, err
	}
	return binary.LittleEndian.AppendUint32(principal, entry.LastUpdate), nil
}

var (
	two128  = new(big.Int).Lsh(big.NewInt(1), 128)
	maxI128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minI128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))

	errI128 = errors.New("value out of i128 range")
)

// decodeI128 reads a little-endian two's complement i128
func decodeI128(le []byte) *big.Int {
	be := make([]byte, i128Bytes)
	for i := 0; i < i128Bytes; i++ {
		be[i128Bytes-1-i] = le[i]
	}

	v := new(big.Int).SetBytes(be)
	if be[0]&signBit != 0 {
		v.Sub(v, two128)
	}
	return v
}

func encodeI128(v *big.Int) ([]byte, error) {
	if v == nil {
		v = new(big.Int)
	}
	if v.Cmp(maxI128) > 0 || v.Cmp(minI128) < 0 {
		return nil, errI128
	}

	u := new(big.Int).Set(v)
	if u.Sign() < 0 {
		u.Add(u, two128)
	}

	be := u.FillBytes(make([]byte, i128Bytes))
	le := make([]byte, i128Bytes)
	for i := 0; i < i128Bytes; i++ {
		le[i] = be[i128Bytes-1-i]
	}
	return le, nil
}
