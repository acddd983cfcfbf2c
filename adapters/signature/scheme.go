package signature

import (
	"crypto/ed25519"
	"crypto/subtle"
	"fmt"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/ccgate/core"
	"golang.org/x/crypto/blake2b"
)

const (
	SchemeSr25519 = "sr25519"
	SchemeEd25519 = "ed25519"
	SchemeECDSA   = "ecdsa"
)

// substrateContext is the signing context used by Substrate wallets for sr25519
var substrateContext = []byte("substrate")

// Scheme checks a signature against the account id it claims to come from
type Scheme interface {
	Name() string
	Verify(accountID, message, sig []byte) bool
}

// NewScheme returns the scheme registered under name
func NewScheme(name string) (Scheme, error) {
	switch name {
	case SchemeSr25519:
		return Sr25519{}, nil
	case SchemeEd25519:
		return Ed25519{}, nil
	case SchemeECDSA:
		return ECDSA{}, nil
	default:
		return nil, fmt.Errorf("%q: %w", name, core.ErrUnsupportedScheme)
	}
}

// Sr25519 verifies Schnorr signatures over Ristretto25519; the account id is the public key
type Sr25519 struct{}

func (Sr25519) Name() string { return SchemeSr25519 }

func (Sr25519) Verify(accountID, message, sig []byte) bool {
	if len(accountID) != AccountIDLength || len(sig) != 64 {
		return false
	}

	var keyBytes [32]byte
	copy(keyBytes[:], accountID)
	pub := &schnorrkel.PublicKey{}
	if err := pub.Decode(keyBytes); err != nil {
		return false
	}

	var sigBytes [64]byte
	copy(sigBytes[:], sig)
	s := &schnorrkel.Signature{}
	if err := s.Decode(sigBytes); err != nil {
		return false
	}

	ok, err := pub.Verify(s, schnorrkel.NewSigningContext(substrateContext, message))
	return err == nil && ok
}

// Ed25519 verifies RFC 8032 signatures; the account id is the public key
type Ed25519 struct{}

func (Ed25519) Name() string { return SchemeEd25519 }

func (Ed25519) Verify(accountID, message, sig []byte) bool {
	if len(accountID) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(accountID), message, sig)
}

// ECDSA verifies recoverable secp256k1 signatures over blake2-256(message).
// The account id is the blake2-256 hash of the compressed public key.
type ECDSA struct{}

func (ECDSA) Name() string { return SchemeECDSA }

func (ECDSA) Verify(accountID, message, sig []byte) bool {
	if len(accountID) != AccountIDLength || len(sig) != 65 {
		return false
	}

	recoverable := make([]byte, 65)
	copy(recoverable, sig)
	if recoverable[64] >= 27 {
		recoverable[64] -= 27
	}

	hash := blake2b.Sum256(message)
	pub, err := crypto.SigToPub(hash[:], recoverable)
	if err != nil {
		return false
	}

	derived := blake2b.Sum256(crypto.CompressPubkey(pub))
	return subtle.ConstantTimeCompare(derived[:], accountID) == 1
}
