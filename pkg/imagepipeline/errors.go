package imagepipeline

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrUnsupportedFormat indicates the uploaded mime type is not accepted
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrInvalidSizeToken indicates a thumbnail size argument that is neither
	// a named bucket nor a positive pixel hint
	ErrInvalidSizeToken = errors.New("invalid thumbnail size token")

	// ErrAssetNotFound indicates an unknown asset id
	ErrAssetNotFound = errors.New("asset not found")

	// ErrAssetInUse indicates deletion was blocked because at least one
	// entity still references the asset
	ErrAssetInUse = errors.New("asset is referenced by existing entities")

	// ErrOldImageNotFound indicates the replacement target is absent from
	// the entity's image list
	ErrOldImageNotFound = errors.New("old image url not found in entity images")

	// ErrPartialWriteAborted indicates variant generation failed mid-commit;
	// all partially written files were removed before this surfaced
	ErrPartialWriteAborted = errors.New("variant write aborted, partial files removed")

	// ErrIncompleteVariants indicates a metadata record with a partial
	// thumbnail set; such a record is never servable
	ErrIncompleteVariants = errors.New("incomplete variant set")

	// ErrMissingTenant indicates a record without an owning tenant
	ErrMissingTenant = errors.New("tenant id is required")
)

// AssetError wraps an error from an operation on a specific asset
type AssetError struct {
	AssetID uuid.UUID
	Op      string
	Err     error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset operation %s failed for asset %s: %v", e.Op, e.AssetID, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

// StorageError wraps a blob store failure. Read/write/unlink failures are
// potentially retryable; callers decide based on the wrapped error.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
