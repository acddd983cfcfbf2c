package signature

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// AccountIDLength is the size of a Substrate account id
const AccountIDLength = 32

const checksumLength = 2

// AnyNetwork disables the network prefix check
const AnyNetwork = -1

var ss58Preimage = []byte("SS58PRE")

// ErrInvalidAddress is returned for strings that are not SS58 account addresses
var ErrInvalidAddress = errors.New("invalid ss58 address")

// DecodeAddress returns the account id and network prefix encoded in an SS58 address
func DecodeAddress(address string) ([]byte, uint16, error) {
	if address == "" {
		return nil, 0, ErrInvalidAddress
	}

	raw, err := base58.Decode(address)
	if err != nil || len(raw) < 2 {
		return nil, 0, ErrInvalidAddress
	}

	var prefixLen int
	var network uint16
	switch b0 := raw[0]; {
	case b0 < 64:
		prefixLen = 1
		network = uint16(b0)
	case b0 < 128:
		lower := (b0 << 2) | (raw[1] >> 6)
		upper := raw[1] & 0b0011_1111
		prefixLen = 2
		network = uint16(lower) | uint16(upper)<<8
	default:
		return nil, 0, fmt.Errorf("reserved prefix byte %d: %w", b0, ErrInvalidAddress)
	}

	if len(raw) != prefixLen+AccountIDLength+checksumLength {
		return nil, 0, fmt.Errorf("unexpected length %d: %w", len(raw), ErrInvalidAddress)
	}

	body := raw[:len(raw)-checksumLength]
	if !bytes.Equal(ss58Checksum(body), raw[len(raw)-checksumLength:]) {
		return nil, 0, fmt.Errorf("checksum mismatch: %w", ErrInvalidAddress)
	}

	accountID := make([]byte, AccountIDLength)
	copy(accountID, raw[prefixLen:prefixLen+AccountIDLength])
	return accountID, network, nil
}

// EncodeAddress renders an account id as an SS58 address for the given network
func EncodeAddress(accountID []byte, network uint16) (string, error) {
	if len(accountID) != AccountIDLength {
		return "", fmt.Errorf("account id must be %d bytes: %w", AccountIDLength, ErrInvalidAddress)
	}

	var prefix []byte
	switch {
	case network < 64:
		prefix = []byte{byte(network)}
	case network < 16384:
		prefix = []byte{
			byte((network&0b1111_1100)>>2) | 0b0100_0000,
			byte(network>>8) | byte((network&0b11)<<6),
		}
	default:
		return "", fmt.Errorf("network %d out of range: %w", network, ErrInvalidAddress)
	}

	body := make([]byte, 0, len(prefix)+AccountIDLength+checksumLength)
	body = append(body, prefix...)
	body = append(body, accountID...)
	body = append(body, ss58Checksum(body)...)

	return base58.Encode(body), nil
}

func ss58Checksum(body []byte) []byte {
	preimage := make([]byte, 0, len(ss58Preimage)+len(body))
	preimage = append(preimage, ss58Preimage...)
	preimage = append(preimage, body...)

	sum := blake2b.Sum512(preimage)
	return sum[:checksumLength]
}
