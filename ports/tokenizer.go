package ports

import "github.com/layer-3/ccgate/core"

// Tokenizer converts between claims and bearer tokens
type Tokenizer interface {
	ClaimsToToken(claims *core.Claims) (string, error)

	// TokenToClaims verifies integrity and expiry
	TokenToClaims(token string) (*core.Claims, error)
}
