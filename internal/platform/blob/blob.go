package blob

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("blob not found")

// Object describes one stored blob. URL is the opaque locator handed to
// callers; DownloadURL can be fetched directly.
type Object struct {
	Pathname    string
	URL         string
	DownloadURL string
	UploadedAt  time.Time
	Size        int64
}

type ListOptions struct {
	Prefix string
	Limit  int
}

type ListResult struct {
	Objects []Object
	HasMore bool
	Cursor  string
}

// Store is a flat key/value blob store addressed by pathname on write and by
// locator on read/delete.
type Store interface {
	Put(ctx context.Context, pathname string, body []byte, contentType string) (*Object, error)
	List(ctx context.Context, opts ListOptions) (*ListResult, error)
	Get(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, locator string) error
	Close() error
}
