// Package storage uploads listing images to an object store and returns
// the URL the image is served from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/campusolx/backend/internal/config"
)

var ErrDisabled = errors.New("object storage is not configured")

type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// New builds the store selected by STORAGE_DRIVER.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Driver {
	case "gcs":
		return NewGCSStore(ctx, cfg.Bucket, cfg.CredentialsFile)
	case "minio":
		return NewMinioStore(ctx, cfg)
	case "", "none":
		return DisabledStore{}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// DisabledStore rejects every upload. Listings are then created without images.
type DisabledStore struct{}

func (DisabledStore) Put(context.Context, string, io.Reader, int64, string) (string, error) {
	return "", ErrDisabled
}
