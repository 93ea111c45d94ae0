package imagepipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stayops/imagepipeline/pkg/imagepipeline/layout"
)

// ErrBlobNotFound is returned by blob stores when a key has no bytes.
// Delivery treats it as a degradation signal, not a failure.
var ErrBlobNotFound = errors.New("blob not found")

const metadataCacheTTL = 5 * time.Minute

// service implements the Service interface
type service struct {
	repository Repository
	blobStore  BlobStore
	cache      Cache
	urlPrefix  string
	ioTimeout  time.Duration

	webpQuality float32
	jpegQuality int

	locks assetLocks
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the metadata repository
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the variant byte store
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithCache sets the injected metadata cache
func WithCache(cache Cache) Option {
	return func(s *service) {
		s.cache = cache
	}
}

// WithURLPrefix sets the public URL prefix recorded in metadata URLs
func WithURLPrefix(prefix string) Option {
	return func(s *service) {
		s.urlPrefix = strings.TrimRight(prefix, "/")
	}
}

// WithIOTimeout bounds every storage call made by the service
func WithIOTimeout(d time.Duration) Option {
	return func(s *service) {
		s.ioTimeout = d
	}
}

// WithEncodingQuality overrides the variant encoder qualities
func WithEncodingQuality(webp float32, jpeg int) Option {
	return func(s *service) {
		s.webpQuality = webp
		s.jpegQuality = jpeg
	}
}

// New creates a new pipeline service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		urlPrefix:   "/uploads",
		ioTimeout:   30 * time.Second,
		webpQuality: 85,
		jpegQuality: 90,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}

	return s, nil
}

func (s *service) GetImage(ctx context.Context, id uuid.UUID) (*ImageMetadata, error) {
	cacheKey := "image:" + id.String()
	if s.cache != nil {
		if v, ok := s.cache.Get(cacheKey); ok {
			if meta, ok := v.(*ImageMetadata); ok {
				return meta, nil
			}
		}
	}

	meta, err := s.repository.GetImage(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(cacheKey, meta, metadataCacheTTL)
	}
	return meta, nil
}

func (s *service) ListImagesByTenant(ctx context.Context, tenantID string) ([]*ImageMetadata, error) {
	return s.repository.ListImagesByTenant(ctx, tenantID)
}

func (s *service) OpenVariant(ctx context.Context, meta *ImageMetadata, size SizeName, format Format) (io.ReadCloser, error) {
	key, err := s.variantKey(meta, size, format)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.ioTimeout)
	defer cancel()

	rc, err := s.blobStore.Download(ctx, key)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		return nil, &StorageError{Key: key, Op: "download", Err: err}
	}
	return rc, nil
}

// variantKey resolves a (size, format) pair to the storage key via the
// layout convention, using only the metadata record.
func (s *service) variantKey(meta *ImageMetadata, size SizeName, format Format) (string, error) {
	if size == "" {
		return layout.FullSizeKey(meta.TenantID, meta.ID, meta.UploadedAt, format.Ext()), nil
	}
	t, ok := meta.Thumbnails[size]
	if !ok {
		return "", ErrIncompleteVariants
	}
	return layout.ThumbnailKey(meta.TenantID, meta.ID, meta.UploadedAt, string(size), t.Width, t.Height, format.Ext()), nil
}

// urlFor maps a storage key to the public URL recorded in metadata.
func (s *service) urlFor(key string) string {
	return s.urlPrefix + "/" + key
}

func (s *service) invalidate(id uuid.UUID) {
	if s.cache != nil {
		s.cache.Delete("image:" + id.String())
	}
}

// assetLocks serializes check-then-act sequences per asset so a racing
// reference add cannot interleave with a delete that already decided the
// asset was unused.
type assetLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func (l *assetLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[uuid.UUID]*sync.Mutex)
	}
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
