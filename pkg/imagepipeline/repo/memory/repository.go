package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/stayops/imagepipeline/pkg/imagepipeline"
)

// Repository implements imagepipeline.Repository using in-memory storage
type Repository struct {
	mu     sync.RWMutex
	images map[uuid.UUID]*imagepipeline.ImageMetadata
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		images: make(map[uuid.UUID]*imagepipeline.ImageMetadata),
	}
}

func (r *Repository) CreateImage(ctx context.Context, meta *imagepipeline.ImageMetadata) error {
	if err := meta.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Copy to avoid external modifications
	r.images[meta.ID] = copyMeta(meta)
	return nil
}

func (r *Repository) GetImage(ctx context.Context, id uuid.UUID) (*imagepipeline.ImageMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, exists := r.images[id]
	if !exists {
		return nil, imagepipeline.ErrAssetNotFound
	}
	return copyMeta(meta), nil
}

func (r *Repository) UpdateImage(ctx context.Context, meta *imagepipeline.ImageMetadata) error {
	if err := meta.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.images[meta.ID]; !exists {
		return imagepipeline.ErrAssetNotFound
	}
	r.images[meta.ID] = copyMeta(meta)
	return nil
}

func (r *Repository) DeleteImage(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.images[id]; !exists {
		return imagepipeline.ErrAssetNotFound
	}
	delete(r.images, id)
	return nil
}

func (r *Repository) ListImagesByTenant(ctx context.Context, tenantID string) ([]*imagepipeline.ImageMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*imagepipeline.ImageMetadata
	for _, meta := range r.images {
		if meta.TenantID == tenantID {
			result = append(result, copyMeta(meta))
		}
	}

	// Newest first
	sort.Slice(result, func(i, j int) bool {
		return result[i].UploadedAt.After(result[j].UploadedAt)
	})
	return result, nil
}

func copyMeta(meta *imagepipeline.ImageMetadata) *imagepipeline.ImageMetadata {
	c := *meta
	c.Thumbnails = make(map[imagepipeline.SizeName]imagepipeline.ThumbnailVariant, len(meta.Thumbnails))
	for k, v := range meta.Thumbnails {
		c.Thumbnails[k] = v
	}
	return &c
}
