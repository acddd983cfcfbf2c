package core

import (
	"fmt"
	"math/big"
	"time"
)

// Scope is a capability tag carried by an issued token
type Scope string

// ScopeIPFSWrite authorizes content uploads
const ScopeIPFSWrite Scope = "ipfs:write"

// NonceEntry represents an outstanding authentication challenge
type NonceEntry struct {
	Nonce       string    `json:"nonce"`
	Address     string    `json:"address"`
	CommunityID string    `json:"community_id"`
	Timestamp   int64     `json:"timestamp"` // Epoch milliseconds embedded in the challenge message
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its expiry at now
func (e NonceEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// NonceOutcome is the result of validating a nonce
type NonceOutcome int

const (
	NonceValid NonceOutcome = iota
	NonceUnknown
	NonceExpired
	NonceAddressMismatch
	NonceCommunityMismatch
	NonceTimestampMismatch
)

// String returns the client-facing message for the outcome
func (o NonceOutcome) String() string {
	switch o {
	case NonceValid:
		return "Valid"
	case NonceUnknown:
		return "Invalid or expired nonce"
	case NonceExpired:
		return "Nonce expired"
	case NonceAddressMismatch:
		return "Address mismatch"
	case NonceCommunityMismatch:
		return "Community ID mismatch"
	case NonceTimestampMismatch:
		return "Timestamp mismatch"
	default:
		return fmt.Sprintf("NonceOutcome(%d)", int(o))
	}
}

// Reason returns a short label suitable for metrics and logs
func (o NonceOutcome) Reason() string {
	switch o {
	case NonceValid:
		return "valid"
	case NonceUnknown:
		return "unknown"
	case NonceExpired:
		return "expired"
	case NonceAddressMismatch:
		return "address_mismatch"
	case NonceCommunityMismatch:
		return "community_mismatch"
	case NonceTimestampMismatch:
		return "timestamp_mismatch"
	default:
		return "invalid"
	}
}

// Err returns nil for a valid outcome and a wrapped ErrInvalidNonce otherwise
func (o NonceOutcome) Err() error {
	if o == NonceValid {
		return nil
	}
	return &NonceError{Outcome: o}
}

// NonceError carries the rejection reason of a nonce
type NonceError struct {
	Outcome NonceOutcome
}

func (e *NonceError) Error() string { return e.Outcome.String() }

func (e *NonceError) Unwrap() error { return ErrInvalidNonce }

// Claims represents what an issued token asserts about its holder
type Claims struct {
	ID          string    // Unique token identifier
	Subject     string    // SS58 address that passed the gate
	CommunityID string    // Community the holder is a member of
	Scope       Scope     // Capability granted
	IssuedAt    time.Time // When the token was minted
	ExpiresAt   time.Time // When the token stops being accepted
}

// RateLimitEntry is the fixed-window counter of one identity
type RateLimitEntry struct {
	Identity      string    `json:"identity"`
	Count         int       `json:"count"`
	WindowResetAt time.Time `json:"window_reset_at"`
}

// RateLimitDecision is returned for every attempted protected operation
type RateLimitDecision struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// BalanceEntry is a community currency balance as stored by the ledger.
// Principal holds the raw bits of a signed I64F64 fixed-point number.
type BalanceEntry struct {
	Principal  *big.Int
	LastUpdate uint32
}

// Challenge is handed to a client to sign
type Challenge struct {
	Nonce     string
	Timestamp int64
	Message   string
	ExpiresAt time.Time
}

// IssuedToken is the credential minted after a successful verification
type IssuedToken struct {
	Token     string
	Claims    Claims
	ExpiresAt time.Time
}
