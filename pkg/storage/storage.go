// Package storage holds the blob store backends used for artifact payloads.
// Keys are treated as immutable handles: callers write new keys and repoint
// references instead of overwriting stored objects.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/noah-isme/content-admin-api/pkg/config"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("storage: object not found")

// ErrInvalidKey rejects empty keys and keys escaping the store root.
var ErrInvalidKey = errors.New("storage: invalid key")

// BlobStore is the put/get/exists/delete surface shared by all backends.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// New selects the backend configured by cfg.Driver.
func New(ctx context.Context, cfg config.BlobConfig) (BlobStore, error) {
	switch cfg.Driver {
	case "", config.BlobDriverLocal:
		return NewLocalStorage(cfg.LocalDir)
	case config.BlobDriverS3:
		return NewS3Storage(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported blob driver %q", cfg.Driver)
	}
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
