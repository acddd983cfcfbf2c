package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/ccgate/core"
	"github.com/layer-3/ccgate/internal/metrics"
	"github.com/layer-3/ccgate/ports"
	"github.com/rs/zerolog/log"
)

// DefaultTokenTTL is the lifetime of an issued access token
const DefaultTokenTTL = time.Hour

// VerifyRequest is a signed answer to a challenge
type VerifyRequest struct {
	Address     string
	CommunityID string
	Signature   string
	Nonce       string
	Timestamp   int64
}

// AuthService handles authentication business logic
type AuthService struct {
	verifier  ports.SignatureVerifier
	tokenizer ports.Tokenizer
	nonces    *NonceManager
	gate      *MembershipGate
	limiter   *RateLimiter
	eventPub  ports.EventPublisher

	tokenTTL time.Duration
	now      func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(
	verifier ports.SignatureVerifier,
	tokenizer ports.Tokenizer,
	nonces *NonceManager,
	gate *MembershipGate,
	limiter *RateLimiter,
	eventPub ports.EventPublisher,
	tokenTTL time.Duration,
	opts ...Option,
) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	o := applyOptions(opts)

	return &AuthService{
		verifier:  verifier,
		tokenizer: tokenizer,
		nonces:    nonces,
		gate:      gate,
		limiter:   limiter,
		eventPub:  eventPub,
		tokenTTL:  tokenTTL,
		now:       o.now,
	}
}

// CreateChallenge issues a nonce for address and community and returns the
// message the client has to sign
func (s *AuthService) CreateChallenge(ctx context.Context, address, communityID string) (*core.Challenge, error) {
	if err := s.validateIdentity(address, communityID); err != nil {
		return nil, err
	}

	entry, err := s.nonces.Issue(ctx, address, communityID)
	if err != nil {
		return nil, err
	}
	metrics.ChallengesTotal.Inc()

	return &core.Challenge{
		Nonce:     entry.Nonce,
		Timestamp: entry.Timestamp,
		Message:   core.BuildChallengeMessage(entry.Nonce, entry.Timestamp, communityID),
		ExpiresAt: entry.ExpiresAt,
	}, nil
}

// Verify checks a signed challenge, consumes its nonce, applies the membership
// gate and mints an access token.
func (s *AuthService) Verify(ctx context.Context, req VerifyRequest) (*core.IssuedToken, error) {
	metrics.VerifyTotal.Inc()

	token, reason, err := s.verify(ctx, req)
	if err != nil {
		metrics.VerifyFailureTotal.WithLabelValues(reason).Inc()
		log.Info().
			Err(err).
			Str("address", req.Address).
			Str("community_id", req.CommunityID).
			Str("reason", reason).
			Msg("verification rejected")
		return nil, err
	}
	metrics.VerifySuccessTotal.WithLabelValues(req.CommunityID).Inc()

	if err := s.eventPub.PublishAuthenticated(ctx, req.Address, req.CommunityID, token.Claims.ID); err != nil {
		// The token is already minted, a lost event is not a reason to fail
		log.Warn().Err(err).Str("address", req.Address).Msg("failed to publish authenticated event")
	}

	return token, nil
}

func (s *AuthService) verify(ctx context.Context, req VerifyRequest) (*core.IssuedToken, string, error) {
	if err := s.validateIdentity(req.Address, req.CommunityID); err != nil {
		return nil, "invalid_input", err
	}

	message := core.BuildChallengeMessage(req.Nonce, req.Timestamp, req.CommunityID)
	if !s.verifier.Verify(message, req.Signature, req.Address) {
		return nil, "invalid_signature", core.ErrInvalidSignature
	}

	outcome, err := s.nonces.ValidateAndConsume(ctx, req.Nonce, req.Address, req.CommunityID, req.Timestamp)
	if err != nil {
		return nil, "store_error", err
	}
	if err := outcome.Err(); err != nil {
		return nil, "nonce_" + outcome.Reason(), err
	}

	member, err := s.gate.IsMember(ctx, req.Address, req.CommunityID)
	if err != nil {
		return nil, "ledger_unavailable", err
	}
	if !member {
		return nil, "not_member", fmt.Errorf("%w: minimum balance is %s", core.ErrNotMember, s.gate.MinimumDisplay())
	}

	token, err := s.issueToken(req.Address, req.CommunityID, core.ScopeIPFSWrite)
	if err != nil {
		return nil, "token_error", err
	}
	return token, "", nil
}

func (s *AuthService) issueToken(subject, communityID string, scope core.Scope) (*core.IssuedToken, error) {
	now := s.now()
	claims := core.Claims{
		ID:          uuid.New().String(),
		Subject:     subject,
		CommunityID: communityID,
		Scope:       scope,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.tokenTTL),
	}

	token, err := s.tokenizer.ClaimsToToken(&claims)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	return &core.IssuedToken{
		Token:     token,
		Claims:    claims,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

func (s *AuthService) validateIdentity(address, communityID string) error {
	if !s.verifier.ValidAddress(address) {
		return core.ErrInvalidAddress
	}
	if !core.ValidCommunityID(communityID) {
		return core.ErrInvalidCommunityID
	}
	return nil
}

// ValidateAccessToken parses and validates an access token
func (s *AuthService) ValidateAccessToken(accessToken string) (*core.Claims, error) {
	claims, err := s.tokenizer.TokenToClaims(accessToken)
	if err != nil {
		if errors.Is(err, core.ErrTokenExpired) || errors.Is(err, core.ErrInvalidToken) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidToken, err)
	}

	if s.now().After(claims.ExpiresAt) {
		return nil, core.ErrTokenExpired
	}

	return claims, nil
}

// Authorize validates an access token and checks it grants scope
func (s *AuthService) Authorize(accessToken string, scope core.Scope) (*core.Claims, error) {
	claims, err := s.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	if claims.Scope != scope {
		return nil, core.ErrInsufficientScope
	}
	return claims, nil
}

// CheckUploadQuota counts one upload attempt for the token holder.
// The decision is returned together with core.ErrRateLimited when denied.
func (s *AuthService) CheckUploadQuota(ctx context.Context, claims *core.Claims) (core.RateLimitDecision, error) {
	decision, err := s.limiter.CheckAndRecord(ctx, Identity(claims.Subject, claims.CommunityID))
	if err != nil {
		return decision, err
	}
	if !decision.Allowed {
		metrics.RateLimitExceededTotal.WithLabelValues(claims.CommunityID).Inc()
		return decision, core.ErrRateLimited
	}
	return decision, nil
}

// RecordUpload publishes an upload event for stored content
func (s *AuthService) RecordUpload(ctx context.Context, claims *core.Claims, cid string, size int64) {
	metrics.UploadSuccessTotal.WithLabelValues(claims.CommunityID).Inc()
	metrics.UploadBytesTotal.Add(float64(size))

	log.Info().
		Str("address", claims.Subject).
		Str("community_id", claims.CommunityID).
		Str("cid", cid).
		Int64("size", size).
		Msg("content uploaded")

	if err := s.eventPub.PublishUpload(ctx, claims.Subject, claims.CommunityID, cid, size); err != nil {
		log.Warn().Err(err).Str("cid", cid).Msg("failed to publish upload event")
	}
}

// MinimumBalance returns the membership threshold for client-facing messages
func (s *AuthService) MinimumBalance() string {
	return s.gate.MinimumDisplay()
}

// UploadLimit returns the per-window upload ceiling
func (s *AuthService) UploadLimit() int {
	return s.limiter.Limit()
}
