package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/ccgate/core"
	"github.com/layer-3/ccgate/service"
	"github.com/rs/zerolog/log"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

// Challenge handles the challenge request
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req struct {
		Address     string `json:"address" binding:"required"`
		CommunityID string `json:"communityId" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	challenge, err := h.authService.CreateChallenge(c.Request.Context(), req.Address, req.CommunityID)
	if err != nil {
		if status, msg, ok := inputError(err); ok {
			c.JSON(status, gin.H{"error": msg})
			return
		}
		log.Error().Err(err).Msg("failed to create challenge")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create challenge"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":     challenge.Nonce,
		"timestamp": challenge.Timestamp,
		"message":   challenge.Message,
	})
}

// Verify handles the signed challenge and issues an access token
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		Address     string `json:"address" binding:"required"`
		CommunityID string `json:"communityId" binding:"required"`
		Signature   string `json:"signature" binding:"required"`
		Nonce       string `json:"nonce" binding:"required"`
		Timestamp   int64  `json:"timestamp" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, err := h.authService.Verify(c.Request.Context(), service.VerifyRequest{
		Address:     req.Address,
		CommunityID: req.CommunityID,
		Signature:   req.Signature,
		Nonce:       req.Nonce,
		Timestamp:   req.Timestamp,
	})
	if err != nil {
		h.verifyError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token.Token,
		"expires_at": token.ExpiresAt.UnixMilli(),
	})
}

func (h *AuthHandlers) verifyError(c *gin.Context, err error) {
	if status, msg, ok := inputError(err); ok {
		c.JSON(status, gin.H{"error": msg})
		return
	}

	var nonceErr *core.NonceError
	switch {
	case errors.As(err, &nonceErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": nonceErr.Error()})
	case errors.Is(err, core.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
	case errors.Is(err, core.ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "Not a CC holder",
			"details": fmt.Sprintf("Minimum balance of %s CC required", h.authService.MinimumBalance()),
		})
	case errors.Is(err, core.ErrLedgerUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Membership could not be determined",
			"details": "Ledger unavailable, retry later",
		})
	default:
		log.Error().Err(err).Msg("verification failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func inputError(err error) (int, string, bool) {
	switch {
	case errors.Is(err, core.ErrInvalidAddress):
		return http.StatusBadRequest, "Invalid SS58 address", true
	case errors.Is(err, core.ErrInvalidCommunityID):
		return http.StatusBadRequest, "Invalid community ID", true
	default:
		return 0, "", false
	}
}

// Health reports liveness
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
