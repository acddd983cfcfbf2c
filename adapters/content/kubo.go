package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/layer-3/ccgate/core"
	"github.com/layer-3/ccgate/ports"
)

const maxErrorBody = 4 << 10

// KuboClient talks to the HTTP RPC API of a Kubo (go-ipfs) node
type KuboClient struct {
	baseURL string
	client  *http.Client
}

var _ ports.ContentStore = (*KuboClient)(nil)

// NewKuboClient creates a client for the node at apiURL, e.g. http://localhost:5001
func NewKuboClient(apiURL string, timeout time.Duration) (*KuboClient, error) {
	u, err := url.Parse(apiURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ipfs api url %q", apiURL)
	}

	return &KuboClient{
		baseURL: strings.TrimRight(apiURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Add streams r to the node as a multipart upload and pins the result
func (c *KuboClient) Add(ctx context.Context, filename string, r io.Reader) (ports.AddResult, error) {
	if filename == "" {
		filename = "file"
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	// The writer must be done with r before Add returns, the caller owns it
	done := make(chan struct{})
	defer func() {
		pr.Close()
		<-done
	}()

	go func() {
		defer close(done)
		part, err := form.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v0/add?pin=true", pr)
	if err != nil {
		return ports.AddResult{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return ports.AddResult{}, fmt.Errorf("%w: %w", core.ErrContentUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.AddResult{}, fmt.Errorf("%w: add returned %s: %s", core.ErrContentUnavailable, resp.Status, readErrorBody(resp.Body))
	}

	var result ports.AddResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ports.AddResult{}, fmt.Errorf("%w: malformed add response: %w", core.ErrContentUnavailable, err)
	}
	if result.Hash == "" {
		return ports.AddResult{}, fmt.Errorf("%w: add response has no hash", core.ErrContentUnavailable)
	}

	return result, nil
}

// Cat returns the content behind cid. The caller must close the reader.
func (c *KuboClient) Cat(ctx context.Context, cid string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v0/cat?arg="+url.QueryEscape(cid), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", core.ErrContentUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("%w: cat returned %s: %s", core.ErrNotFound, resp.Status, readErrorBody(resp.Body))
	}

	return resp.Body, nil
}

func readErrorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}
