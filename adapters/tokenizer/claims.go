package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims combines standard claims with the community gate assertions
type AccessClaims struct {
	jwt.RegisteredClaims
	CommunityID string `json:"cid"`   // Community the subject is a member of
	Scope       string `json:"scope"` // Capability granted to the bearer
}
