package imagepipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	// Register the webp decoder so image.Decode accepts webp uploads.
	_ "golang.org/x/image/webp"

	"github.com/stayops/imagepipeline/pkg/imagepipeline/layout"
)

// acceptedMimeTypes is the upload allow list. Everything else is
// rejected before any decode work.
var acceptedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

func (s *service) Generate(ctx context.Context, req GenerateRequest) (*ImageMetadata, error) {
	if !acceptedMimeTypes[req.MimeType] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.MimeType)
	}
	if req.TenantID == "" {
		return nil, ErrMissingTenant
	}

	src, err := imaging.Decode(bytes.NewReader(req.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	bounds := src.Bounds()

	assetID := uuid.New()
	uploadedAt := time.Now().UTC()

	meta := &ImageMetadata{
		ID:               assetID,
		TenantID:         req.TenantID,
		OriginalFilename: req.OriginalFilename,
		MimeType:         req.MimeType,
		FileSizeBytes:    int64(len(req.Data)),
		Dimensions:       Dimensions{Width: bounds.Dx(), Height: bounds.Dy()},
		Thumbnails:       make(map[SizeName]ThumbnailVariant, len(ThumbnailSizes)),
		UploadedAt:       uploadedAt,
		UploadedBy:       req.UploadedBy,
	}

	// Stage every file first; the metadata record is committed only once
	// all ten writes have succeeded.
	var written []string
	rollback := func(cause error) error {
		for _, key := range written {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), s.ioTimeout)
			_ = s.blobStore.Delete(cleanupCtx, key)
			cancel()
		}
		return &AssetError{AssetID: assetID, Op: "generate", Err: fmt.Errorf("%w: %v", ErrPartialWriteAborted, cause)}
	}

	write := func(key string, img image.Image, format Format) (int64, error) {
		encoded, err := s.encode(img, format)
		if err != nil {
			return 0, err
		}
		ioCtx, cancel := context.WithTimeout(ctx, s.ioTimeout)
		defer cancel()
		if err := s.blobStore.Upload(ioCtx, key, bytes.NewReader(encoded)); err != nil {
			return 0, &StorageError{Key: key, Op: "upload", Err: err}
		}
		written = append(written, key)
		return int64(len(encoded)), nil
	}

	// Full-size encodings.
	primaryKey := layout.FullSizeKey(req.TenantID, assetID, uploadedAt, FormatWebP.Ext())
	fallbackKey := layout.FullSizeKey(req.TenantID, assetID, uploadedAt, FormatJPEG.Ext())
	if _, err := write(primaryKey, src, FormatWebP); err != nil {
		return nil, rollback(err)
	}
	if _, err := write(fallbackKey, src, FormatJPEG); err != nil {
		return nil, rollback(err)
	}
	meta.PrimaryURL = s.urlFor(primaryKey)
	meta.FallbackURL = s.urlFor(fallbackKey)

	// Four thumbnails, each in both formats. Fit preserves the aspect
	// ratio inside the target box without cropping.
	for _, size := range ThumbnailSizes {
		boxW, boxH := size.TargetBox()
		thumb := imaging.Fit(src, boxW, boxH, imaging.Lanczos)
		tb := thumb.Bounds()

		webpKey := layout.ThumbnailKey(req.TenantID, assetID, uploadedAt, string(size), tb.Dx(), tb.Dy(), FormatWebP.Ext())
		jpegKey := layout.ThumbnailKey(req.TenantID, assetID, uploadedAt, string(size), tb.Dx(), tb.Dy(), FormatJPEG.Ext())
		encodedSize, err := write(webpKey, thumb, FormatWebP)
		if err != nil {
			return nil, rollback(err)
		}
		if _, err := write(jpegKey, thumb, FormatJPEG); err != nil {
			return nil, rollback(err)
		}

		meta.Thumbnails[size] = ThumbnailVariant{
			Path:          webpKey,
			URL:           s.urlFor(webpKey),
			Width:         tb.Dx(),
			Height:        tb.Dy(),
			FileSizeBytes: encodedSize,
		}
	}

	if err := meta.Validate(); err != nil {
		return nil, rollback(err)
	}

	if err := s.repository.CreateImage(ctx, meta); err != nil {
		return nil, rollback(err)
	}

	return meta, nil
}

func (s *service) encode(img image.Image, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatWebP:
		opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, s.webpQuality)
		if err != nil {
			return nil, fmt.Errorf("webp encoder options: %w", err)
		}
		if err := webp.Encode(&buf, img, opts); err != nil {
			return nil, fmt.Errorf("webp encode: %w", err)
		}
	case FormatJPEG:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(s.jpegQuality)); err != nil {
			return nil, fmt.Errorf("jpeg encode: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown variant format %q", format)
	}
	return buf.Bytes(), nil
}
