package imagepipeline

import (
	"context"

	"github.com/google/uuid"
)

// GenerateRequest carries one upload into the variant generator.
type GenerateRequest struct {
	TenantID         string
	OriginalFilename string
	MimeType         string
	Data             []byte
	UploadedBy       string
}

// DeleteRequest asks the usage protector to delete an asset.
type DeleteRequest struct {
	AssetID uuid.UUID
	// Referrers is the externally supplied set of entities that may
	// reference image URLs. The scan covers all of them.
	Referrers []ImageReferrer
	// Force skips the in-use check.
	Force bool
}

// DeleteResult reports the outcome of a protected delete.
type DeleteResult struct {
	Success      bool        `json:"success"`
	UsedBy       []EntityRef `json:"used_by,omitempty"`
	FilesDeleted []string    `json:"files_deleted,omitempty"`
	Errors       []string    `json:"errors,omitempty"`
}

// CommitFunc durably stores a swapped image list on the owning entity.
// The entity is the single place its list is mutated.
type CommitFunc func(ctx context.Context, newImages []string) error

// ReplaceRequest swaps one asset URL for another inside an entity's
// ordered image list.
type ReplaceRequest struct {
	EntityImages []string
	OldURL       string
	NewURL       string
	// Commit persists the new list. Cleanup of the superseded asset's
	// files runs only after it returns nil.
	Commit CommitFunc
}

// ReplaceResult reports the outcome of a replacement.
type ReplaceResult struct {
	Success        bool     `json:"success"`
	NewImages      []string `json:"new_images,omitempty"`
	OrderPreserved bool     `json:"order_preserved"`
	FilesDeleted   []string `json:"files_deleted,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// EntityImages names one entity's image list for a bulk replacement.
type EntityImages struct {
	EntityType string
	EntityID   string
	Images     []string
	Commit     CommitFunc
}

// EntityReplaceResult is one entity's outcome within a bulk replacement.
type EntityReplaceResult struct {
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Result     *ReplaceResult `json:"result"`
}
