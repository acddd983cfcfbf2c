package ccgate

import (
	"context"
	"io"
)

// Signer signs challenge messages on behalf of an SS58 address
type Signer interface {
	// Address returns the SS58 address of the key
	Address() string

	// Sign signs message and returns the raw signature bytes
	Sign(message []byte) ([]byte, error)
}

// API represents the public interface of a gateway
type API interface {
	// Challenge asks for a nonce bound to address and community
	Challenge(ctx context.Context, address, communityID string) (*Challenge, error)

	// Verify exchanges a signed challenge for an access token
	Verify(ctx context.Context, req VerifyRequest) (*Token, error)

	// Authenticate runs the full challenge, sign and verify exchange
	Authenticate(ctx context.Context, signer Signer, communityID string) (*Token, error)

	// Upload stores content, counting against the holder's daily quota
	Upload(ctx context.Context, token *Token, filename string, r io.Reader) (*UploadResult, error)

	// Cat downloads content by CID
	Cat(ctx context.Context, cid string) (io.ReadCloser, error)
}
