package core

import "errors"

var (
	ErrTokenExpired       = errors.New("token has expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInsufficientScope  = errors.New("insufficient scope")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrInvalidNonce       = errors.New("invalid nonce")
	ErrInvalidAddress     = errors.New("invalid address")
	ErrInvalidCommunityID = errors.New("invalid community id")
	ErrNotMember          = errors.New("membership threshold not met")
	ErrLedgerUnavailable  = errors.New("membership could not be determined")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrNotFound           = errors.New("not found")
	ErrStoreOperation     = errors.New("store operation failed")
	ErrContentUnavailable = errors.New("content backend unavailable")
	ErrUnsupportedScheme  = errors.New("unsupported signature scheme")
)
