// Package ccgate is a client for the community currency gated upload proxy.
//
// A holder proves control of an SS58 address by signing a server issued
// challenge, and receives a short-lived bearer token if the address holds
// enough of the community's currency. The token authorizes uploads.
package ccgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Challenge is the message a holder must sign
type Challenge struct {
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
}

// VerifyRequest carries a signed challenge
type VerifyRequest struct {
	Address     string `json:"address"`
	CommunityID string `json:"communityId"`
	Signature   string `json:"signature"`
	Nonce       string `json:"nonce"`
	Timestamp   int64  `json:"timestamp"`
}

// Token is an issued bearer token
type Token struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"` // epoch milliseconds
}

// Expiry returns the expiry as a time
func (t *Token) Expiry() time.Time {
	return time.UnixMilli(t.ExpiresAt)
}

// UploadResult describes stored content
type UploadResult struct {
	Hash             string `json:"Hash"`
	Name             string `json:"Name"`
	Size             string `json:"Size"`
	RemainingUploads int    `json:"remaining_uploads"`
}

// Client talks to a gateway over HTTP
type Client struct {
	baseURL string
	http    *http.Client
}

var _ API = (*Client)(nil)

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a client for the gateway at baseURL
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Challenge asks for a nonce bound to address and community
func (c *Client) Challenge(ctx context.Context, address, communityID string) (*Challenge, error) {
	var out Challenge
	body := map[string]string{"address": address, "communityId": communityID}
	if err := c.postJSON(ctx, "/auth/challenge", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify exchanges a signed challenge for an access token
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (*Token, error) {
	var out Token
	if err := c.postJSON(ctx, "/auth/verify", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Authenticate runs challenge, sign and verify for signer in communityID
func (c *Client) Authenticate(ctx context.Context, signer Signer, communityID string) (*Token, error) {
	challenge, err := c.Challenge(ctx, signer.Address(), communityID)
	if err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}

	sig, err := signer.Sign([]byte(challenge.Message))
	if err != nil {
		return nil, fmt.Errorf("failed to sign challenge: %w", err)
	}

	token, err := c.Verify(ctx, VerifyRequest{
		Address:     signer.Address(),
		CommunityID: communityID,
		Signature:   hexutil.Encode(sig),
		Nonce:       challenge.Nonce,
		Timestamp:   challenge.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	return token, nil
}

// Upload streams r as a multipart file
func (c *Client) Upload(ctx context.Context, token *Token, filename string, r io.Reader) (*UploadResult, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		part, err := form.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ipfs/add", pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token.Token)

	var out UploadResult
	if err := c.do(req, &out); err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	return &out, nil
}

// Cat downloads content by CID. The caller must close the reader.
func (c *Client) Cat(ctx context.Context, cid string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ipfs/cat/"+url.PathEscape(cid), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp.Body, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
