package imagepipeline

import (
	"time"

	"github.com/google/uuid"
)

// Format is an encoded image format served by the pipeline.
type Format string

const (
	// FormatWebP is the modern primary encoding.
	FormatWebP Format = "webp"
	// FormatJPEG is the legacy fallback encoding.
	FormatJPEG Format = "jpeg"
)

// Ext returns the file extension for the format, without a dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/webp"
}

// SizeName is one of the four fixed thumbnail buckets.
type SizeName string

const (
	SizeSmall  SizeName = "small"
	SizeMedium SizeName = "medium"
	SizeLarge  SizeName = "large"
	SizeXLarge SizeName = "xlarge"
)

// ThumbnailSizes lists the buckets in ascending order. Every committed
// asset carries a thumbnail for each of them.
var ThumbnailSizes = []SizeName{SizeSmall, SizeMedium, SizeLarge, SizeXLarge}

// TargetBox returns the bounding box thumbnails of this bucket are fit into.
func (s SizeName) TargetBox() (width, height int) {
	switch s {
	case SizeSmall:
		return 150, 150
	case SizeMedium:
		return 300, 300
	case SizeLarge:
		return 600, 400
	case SizeXLarge:
		return 1200, 800
	}
	return 0, 0
}

// IsValid reports whether s names a known bucket.
func (s SizeName) IsValid() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge, SizeXLarge:
		return true
	}
	return false
}

// Dimensions holds pixel dimensions of a decoded image.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ThumbnailVariant describes one stored thumbnail encoding pair. Path and
// URL point at the webp encoding; the jpeg sibling is derived from the
// storage layout.
type ThumbnailVariant struct {
	Path          string `json:"path"`
	URL           string `json:"url"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	FileSizeBytes int64  `json:"file_size_bytes"`
}

// ImageMetadata is the one record the pipeline keeps per uploaded asset.
// It is immutable after creation except through coordinated replacement.
type ImageMetadata struct {
	ID               uuid.UUID                     `json:"id"`
	TenantID         string                        `json:"tenant_id"`
	OriginalFilename string                        `json:"original_filename"`
	MimeType         string                        `json:"mime_type"`
	FileSizeBytes    int64                         `json:"file_size_bytes"`
	Dimensions       Dimensions                    `json:"dimensions"`
	PrimaryURL       string                        `json:"primary_url"`
	FallbackURL      string                        `json:"fallback_url"`
	Thumbnails       map[SizeName]ThumbnailVariant `json:"thumbnails"`
	UploadedAt       time.Time                     `json:"uploaded_at"`
	UploadedBy       string                        `json:"uploaded_by"`
}

// Validate reports whether the record is servable: a record is never
// valid with a partial thumbnail set.
func (m *ImageMetadata) Validate() error {
	if m.TenantID == "" {
		return ErrMissingTenant
	}
	if m.PrimaryURL == "" || m.FallbackURL == "" {
		return ErrIncompleteVariants
	}
	if len(m.Thumbnails) != len(ThumbnailSizes) {
		return ErrIncompleteVariants
	}
	for _, size := range ThumbnailSizes {
		if _, ok := m.Thumbnails[size]; !ok {
			return ErrIncompleteVariants
		}
	}
	return nil
}

// URLs returns every URL under which this asset is referenced: full-size
// primary and fallback plus all thumbnail URLs. Usage protection matches
// entity image lists against this set.
func (m *ImageMetadata) URLs() []string {
	urls := make([]string, 0, 2+len(m.Thumbnails))
	urls = append(urls, m.PrimaryURL, m.FallbackURL)
	for _, size := range ThumbnailSizes {
		if t, ok := m.Thumbnails[size]; ok && t.URL != "" {
			urls = append(urls, t.URL)
		}
	}
	return urls
}

// ImageReferrer is the narrow view of any tenant-owned entity that
// carries an ordered list of asset URLs. The pipeline treats that list
// as ground truth for "is this asset in use".
type ImageReferrer interface {
	EntityType() string
	EntityID() string
	EntityName() string
	ImageURLs() []string
}

// EntityRef identifies one referencing entity in a DeleteResult.
type EntityRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}
