package imagepipeline

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service is the main interface of the image asset pipeline: variant
// generation at upload, variant delivery, usage-protected deletion and
// coordinated replacement.
type Service interface {
	// Generate validates an upload, derives every encoded variant, writes
	// them all-or-nothing and commits the metadata record.
	Generate(ctx context.Context, req GenerateRequest) (*ImageMetadata, error)

	// GetImage looks up an asset's metadata record.
	GetImage(ctx context.Context, id uuid.UUID) (*ImageMetadata, error)

	// ListImagesByTenant lists all assets owned by a tenant.
	ListImagesByTenant(ctx context.Context, tenantID string) ([]*ImageMetadata, error)

	// OpenVariant opens the stored bytes of one variant. Size is empty for
	// full-size. A missing blob surfaces as ErrBlobNotFound so callers can
	// degrade to a placeholder.
	OpenVariant(ctx context.Context, meta *ImageMetadata, size SizeName, format Format) (io.ReadCloser, error)

	// Delete removes an asset and all its stored files, unless any
	// supplied referrer still names one of the asset's URLs.
	Delete(ctx context.Context, req DeleteRequest) (*DeleteResult, error)

	// Replace swaps one asset URL for another inside an entity's ordered
	// image list, then cleans up the superseded asset's files.
	Replace(ctx context.Context, req ReplaceRequest) (*ReplaceResult, error)

	// ReplaceAll applies the same substitution across entities, each
	// independently.
	ReplaceAll(ctx context.Context, entities []EntityImages, oldURL, newURL string) ([]EntityReplaceResult, error)
}
