package tokenizer

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/ccgate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClaims(expiresAt time.Time) *core.Claims {
	return &core.Claims{
		ID:          "7f1c0a4e-5c52-4bd6-8d0c-9a3c1c0f5a11",
		Subject:     "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
		CommunityID: "sqm1v79dF6b",
		Scope:       core.ScopeIPFSWrite,
		IssuedAt:    time.Now().Truncate(time.Second),
		ExpiresAt:   expiresAt,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tok, err := NewJWTTokenizer([]byte("secret"))
	require.NoError(t, err)

	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := tok.ClaimsToToken(newClaims(expiresAt))
	require.NoError(t, err)

	claims, err := tok.TokenToClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY", claims.Subject)
	assert.Equal(t, "sqm1v79dF6b", claims.CommunityID)
	assert.Equal(t, core.ScopeIPFSWrite, claims.Scope)
	assert.True(t, expiresAt.Equal(claims.ExpiresAt))
}

func TestTokenRejectsOtherSecret(t *testing.T) {
	issuer, err := NewJWTTokenizer([]byte("secret"))
	require.NoError(t, err)
	verifier, err := NewJWTTokenizer([]byte("another secret"))
	require.NoError(t, err)

	token, err := issuer.ClaimsToToken(newClaims(time.Now().Add(time.Hour)))
	require.NoError(t, err)

	_, err = verifier.TokenToClaims(token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestTokenExpired(t *testing.T) {
	tok, err := NewJWTTokenizer([]byte("secret"))
	require.NoError(t, err)

	token, err := tok.ClaimsToToken(newClaims(time.Now().Add(-time.Minute)))
	require.NoError(t, err)

	_, err = tok.TokenToClaims(token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestTokenRejectsTampering(t *testing.T) {
	tok, err := NewJWTTokenizer([]byte("secret"))
	require.NoError(t, err)

	token, err := tok.ClaimsToToken(newClaims(time.Now().Add(time.Hour)))
	require.NoError(t, err)

	other := newClaims(time.Now().Add(time.Hour))
	other.Subject = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
	otherToken, err := tok.ClaimsToToken(other)
	require.NoError(t, err)

	// Payload of one token with the signature of another
	parts := strings.Split(token, ".")
	otherParts := strings.Split(otherToken, ".")
	tampered := parts[0] + "." + otherParts[1] + "." + parts[2]

	_, err = tok.TokenToClaims(tampered)
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	_, err = tok.TokenToClaims("not-a-token")
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestTokenRejectsUnsignedAlgorithm(t *testing.T) {
	tok, err := NewJWTTokenizer([]byte("secret"))
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scope: string(core.ScopeIPFSWrite),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tok.TokenToClaims(token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestNewJWTTokenizerRequiresSecret(t *testing.T) {
	_, err := NewJWTTokenizer(nil)
	assert.Error(t, err)
}
