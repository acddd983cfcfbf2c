package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	geohashLength = 5
	digestLength  = 4

	geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"
)

var errInvalidCommunity = errors.New("invalid community identifier")

// Twox128 is the 128-bit xxhash used for pallet and item prefixes
func Twox128(data []byte) []byte {
	out := make([]byte, 0, 16)
	for seed := uint64(0); seed < 2; seed++ {
		h := xxhash.NewWithSeed(seed)
		_, _ = h.Write(data)
		out = binary.LittleEndian.AppendUint64(out, h.Sum64())
	}
	return out
}

// Blake2_128Concat hashes data with blake2b-128 and appends data itself
func Blake2_128Concat(data []byte) []byte {
	h, _ := blake2b.New(16, nil)
	_, _ = h.Write(data)
	return append(h.Sum(nil), data...)
}

// EncodeCommunityID returns the SCALE encoding of a community identifier:
// five geohash characters followed by the base58-decoded four byte digest.
func EncodeCommunityID(communityID string) ([]byte, error) {
	if len(communityID) <= geohashLength {
		return nil, fmt.Errorf("%w: %q is too short", errInvalidCommunity, communityID)
	}

	geohash := communityID[:geohashLength]
	for _, c := range geohash {
		if !strings.ContainsRune(geohashAlphabet, c) {
			return nil, fmt.Errorf("%w: %q is not a geohash character", errInvalidCommunity, c)
		}
	}

	digest, err := base58.Decode(communityID[geohashLength:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidCommunity, err)
	}
	if len(digest) != digestLength {
		return nil, fmt.Errorf("%w: digest is %d bytes", errInvalidCommunity, len(digest))
	}

	return append([]byte(geohash), digest...), nil
}

// BalanceStorageKey builds the storage key of EncointerBalances.Balance(cid, account)
func BalanceStorageKey(communityID string, accountID []byte) ([]byte, error) {
	cid, err := EncodeCommunityID(communityID)
	if err != nil {
		return nil, err
	}

	key := make([]byte, 0, 32+16+len(cid)+16+len(accountID))
	key = append(key, Twox128([]byte("EncointerBalances"))...)
	key = append(key, Twox128([]byte("Balance"))...)
	key = append(key, Blake2_128Concat(cid)...)
	key = append(key, Blake2_128Concat(accountID)...)
	return key, nil
}
