package signature

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/ccgate/ports"
)

// Wallet extensions wrap raw payloads in these markers before signing
const (
	bytesOpen  = "<Bytes>"
	bytesClose = "</Bytes>"
)

// Verifier checks challenge signatures for one deployment-selected scheme
type Verifier struct {
	scheme  Scheme
	network int
}

var _ ports.SignatureVerifier = (*Verifier)(nil)

// NewVerifier returns a ready verifier or fails when the scheme is unknown.
// network restricts accepted SS58 prefixes; AnyNetwork accepts all of them.
func NewVerifier(schemeName string, network int) (*Verifier, error) {
	scheme, err := NewScheme(schemeName)
	if err != nil {
		return nil, err
	}
	if network < AnyNetwork || network >= 16384 {
		return nil, fmt.Errorf("ss58 network prefix %d out of range", network)
	}

	return &Verifier{scheme: scheme, network: network}, nil
}

// Scheme returns the active signature scheme
func (v *Verifier) Scheme() Scheme {
	return v.scheme
}

// ValidAddress reports whether address is a well-formed SS58 address for the network
func (v *Verifier) ValidAddress(address string) bool {
	_, err := v.accountID(address)
	return err == nil
}

// Verify reports whether signature is a valid signature of message by address.
// Both the raw message and its <Bytes>-wrapped form are accepted.
func (v *Verifier) Verify(message, signature, address string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	accountID, err := v.accountID(address)
	if err != nil {
		return false
	}

	sig, err := DecodeSignature(signature)
	if err != nil {
		return false
	}

	if v.scheme.Verify(accountID, []byte(message), sig) {
		return true
	}
	return v.scheme.Verify(accountID, []byte(bytesOpen+message+bytesClose), sig)
}

func (v *Verifier) accountID(address string) ([]byte, error) {
	accountID, network, err := DecodeAddress(address)
	if err != nil {
		return nil, err
	}
	if v.network != AnyNetwork && int(network) != v.network {
		return nil, fmt.Errorf("network %d not accepted: %w", network, ErrInvalidAddress)
	}
	return accountID, nil
}

// DecodeSignature parses a hex signature with or without the 0x prefix
func DecodeSignature(signature string) ([]byte, error) {
	if !strings.HasPrefix(signature, "0x") && !strings.HasPrefix(signature, "0X") {
		signature = "0x" + signature
	}
	return hexutil.Decode(signature)
}
