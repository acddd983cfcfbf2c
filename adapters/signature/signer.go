package signature

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

// Signer holds a private key and the SS58 address derived from it
type Signer interface {
	Address() string
	Sign(message []byte) ([]byte, error)
}

// GenerateSigner creates a fresh keypair for the named scheme
func GenerateSigner(schemeName string, network uint16) (Signer, error) {
	switch schemeName {
	case SchemeSr25519:
		return GenerateSr25519Signer(network)
	case SchemeEd25519:
		return GenerateEd25519Signer(network)
	case SchemeECDSA:
		return GenerateECDSASigner(network)
	default:
		_, err := NewScheme(schemeName)
		return nil, err
	}
}

// Sr25519Signer signs with the substrate signing context
type Sr25519Signer struct {
	secret  *schnorrkel.SecretKey
	address string
}

func GenerateSr25519Signer(network uint16) (*Sr25519Signer, error) {
	secret, public, err := schnorrkel.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate sr25519 keypair: %w", err)
	}

	pub := public.Encode()
	address, err := EncodeAddress(pub[:], network)
	if err != nil {
		return nil, err
	}

	return &Sr25519Signer{secret: secret, address: address}, nil
}

func (s *Sr25519Signer) Address() string { return s.address }

func (s *Sr25519Signer) Sign(message []byte) ([]byte, error) {
	sig, err := s.secret.Sign(schnorrkel.NewSigningContext(substrateContext, message))
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	encoded := sig.Encode()
	return encoded[:], nil
}

type Ed25519Signer struct {
	key     ed25519.PrivateKey
	address string
}

func GenerateEd25519Signer(network uint16) (*Ed25519Signer, error) {
	pub, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 keypair: %w", err)
	}

	address, err := EncodeAddress(pub, network)
	if err != nil {
		return nil, err
	}

	return &Ed25519Signer{key: key, address: address}, nil
}

func (s *Ed25519Signer) Address() string { return s.address }

func (s *Ed25519Signer) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(s.key, message), nil
}

// ECDSASigner produces 65-byte recoverable secp256k1 signatures over blake2-256(message)
type ECDSASigner struct {
	key     *ecdsa.PrivateKey
	address string
}

func GenerateECDSASigner(network uint16) (*ECDSASigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secp256k1 key: %w", err)
	}

	accountID := blake2b.Sum256(crypto.CompressPubkey(&key.PublicKey))
	address, err := EncodeAddress(accountID[:], network)
	if err != nil {
		return nil, err
	}

	return &ECDSASigner{key: key, address: address}, nil
}

func (s *ECDSASigner) Address() string { return s.address }

func (s *ECDSASigner) Sign(message []byte) ([]byte, error) {
	hash := blake2b.Sum256(message)
	return crypto.Sign(hash[:], s.key)
}
