package imagepipeline

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for variant byte storage backends
type BlobStore interface {
	// Upload writes the bytes for a storage key
	Upload(ctx context.Context, key string, reader io.Reader) error

	// Download reads the bytes for a storage key
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether the key currently has bytes in storage
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the bytes for a storage key
	Delete(ctx context.Context, key string) error
}

// Repository defines the interface for image metadata persistence. A
// record is inserted exactly once, after all variant files exist.
type Repository interface {
	CreateImage(ctx context.Context, meta *ImageMetadata) error
	GetImage(ctx context.Context, id uuid.UUID) (*ImageMetadata, error)
	UpdateImage(ctx context.Context, meta *ImageMetadata) error
	DeleteImage(ctx context.Context, id uuid.UUID) error
	ListImagesByTenant(ctx context.Context, tenantID string) ([]*ImageMetadata, error)
}

// Cache is the injected read-through cache consulted on delivery hot
// paths. Implementations define per-query-kind TTLs; there is no hidden
// process-wide instance.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
}

// ReferrerSource supplies the entities that may reference asset URLs.
// The admin delete endpoint scans everything it returns before
// destroying bytes.
type ReferrerSource interface {
	Referrers(ctx context.Context, tenantID string) ([]ImageReferrer, error)
}
