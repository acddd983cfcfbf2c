package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/ccgate/core"
	"github.com/layer-3/ccgate/internal/metrics"
	"github.com/layer-3/ccgate/ports"
	"github.com/layer-3/ccgate/service"
	"github.com/rs/zerolog/log"
)

// DefaultMaxUploadBytes caps a single uploaded file
const DefaultMaxUploadBytes = 10 << 20

// multipartOverhead is the body allowance on top of the file for form framing
const multipartOverhead = 64 << 10

var cidPattern = regexp.MustCompile(`^Qm[a-zA-Z0-9]{44}$|^bafy[a-zA-Z0-9]{50,}$`)

var errFileTooLarge = errors.New("file too large")

// ContentHandlers proxies uploads and downloads to the content store
type ContentHandlers struct {
	authService *service.AuthService
	store       ports.ContentStore
	maxBytes    int64
}

// NewContentHandlers creates new content handlers
func NewContentHandlers(authService *service.AuthService, store ports.ContentStore, maxBytes int64) *ContentHandlers {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &ContentHandlers{
		authService: authService,
		store:       store,
		maxBytes:    maxBytes,
	}
}

// Add streams the multipart "file" field to the content store
func (h *ContentHandlers) Add(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	metrics.UploadsTotal.WithLabelValues(claims.CommunityID).Inc()

	decision, err := h.authService.CheckUploadQuota(c.Request.Context(), claims)
	if err != nil {
		if errors.Is(err, core.ErrRateLimited) {
			log.Warn().
				Str("address", claims.Subject).
				Str("community_id", claims.CommunityID).
				Msg("upload rate limit exceeded")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"details": fmt.Sprintf("Maximum %d uploads per day", decision.Limit),
			})
			return
		}
		log.Error().Err(err).Msg("rate limit check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	form, err := c.Request.MultipartReader()
	if err != nil {
		h.fail(c, http.StatusBadRequest, "No file provided", "no_file")
		return
	}

	for {
		part, err := form.NextPart()
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				h.fail(c, http.StatusRequestEntityTooLarge, "File too large", "too_large")
				return
			}
			h.fail(c, http.StatusBadRequest, "No file provided", "no_file")
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}

		h.upload(c, claims, decision, part.FileName(), part)
		_ = part.Close()
		return
	}
}

func (h *ContentHandlers) upload(c *gin.Context, claims *core.Claims, decision core.RateLimitDecision, filename string, r io.Reader) {
	body := &limitedReader{r: r, limit: h.maxBytes}

	result, err := h.store.Add(c.Request.Context(), filename, body)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case body.exceeded || errors.As(err, &maxErr):
			h.fail(c, http.StatusRequestEntityTooLarge, "File too large", "too_large")
		case errors.Is(err, core.ErrContentUnavailable):
			log.Error().Err(err).Msg("ipfs upload failed")
			h.fail(c, http.StatusBadGateway, "IPFS upload failed", "ipfs_error")
		default:
			log.Error().Err(err).Msg("ipfs proxy error")
			h.fail(c, http.StatusInternalServerError, "Internal server error", "internal_error")
		}
		return
	}

	h.authService.RecordUpload(c.Request.Context(), claims, result.Hash, body.read)

	c.JSON(http.StatusOK, gin.H{
		"Hash":              result.Hash,
		"Name":              result.Name,
		"Size":              result.Size,
		"remaining_uploads": decision.Remaining,
	})
}

func (h *ContentHandlers) fail(c *gin.Context, status int, msg, reason string) {
	metrics.UploadFailureTotal.WithLabelValues(reason).Inc()
	c.JSON(status, gin.H{"error": msg})
}

// Cat streams content by CID. It is public.
func (h *ContentHandlers) Cat(c *gin.Context) {
	cid := c.Param("cid")
	if !cidPattern.MatchString(cid) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid CID"})
		return
	}

	rc, err := h.store.Cat(c.Request.Context(), cid)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Content not found"})
		case errors.Is(err, core.ErrContentUnavailable):
			log.Error().Err(err).Str("cid", cid).Msg("ipfs cat failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "IPFS unavailable"})
		default:
			log.Error().Err(err).Str("cid", cid).Msg("ipfs cat error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", rc, nil)
}

// limitedReader fails once more than limit bytes have been read
type limitedReader struct {
	r        io.Reader
	limit    int64
	read     int64
	exceeded bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, errFileTooLarge
	}
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.limit {
		l.exceeded = true
		return n, errFileTooLarge
	}
	return n, err
}
