package ports

import (
	"context"
	"io"
)

// AddResult describes content stored by the backend
type AddResult struct {
	Hash string `json:"Hash"`
	Name string `json:"Name"`
	Size string `json:"Size"`
}

// ContentStore is the content-addressed storage backend
type ContentStore interface {
	Add(ctx context.Context, filename string, r io.Reader) (AddResult, error)

	// Cat returns core.ErrNotFound when the backend does not have the content
	Cat(ctx context.Context, cid string) (io.ReadCloser, error)
}
