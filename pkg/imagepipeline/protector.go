package imagepipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/stayops/imagepipeline/pkg/imagepipeline/layout"
)

// Delete implements the usage-protection invariant: an asset's bytes are
// never removed while any entity's reference list still names one of its
// URLs, unless Force is set. The per-asset lock spans the scan and the
// delete so a racing reference add cannot interleave.
func (s *service) Delete(ctx context.Context, req DeleteRequest) (*DeleteResult, error) {
	unlock := s.locks.lock(req.AssetID)
	defer unlock()

	meta, err := s.repository.GetImage(ctx, req.AssetID)
	if err != nil {
		return nil, err
	}

	if !req.Force {
		usedBy := scanReferrers(req.Referrers, meta.URLs())
		if len(usedBy) > 0 {
			return &DeleteResult{
				Success: false,
				UsedBy:  usedBy,
				Errors:  []string{fmt.Sprintf("asset %s is referenced by %d entities", req.AssetID, len(usedBy))},
			}, ErrAssetInUse
		}
	}

	result := &DeleteResult{Success: true}
	result.FilesDeleted, result.Errors = s.deleteAssetFiles(ctx, meta)

	if err := s.repository.DeleteImage(ctx, req.AssetID); err != nil {
		result.Success = false
		result.Errors = append(result.Errors, err.Error())
		return result, &AssetError{AssetID: req.AssetID, Op: "delete", Err: err}
	}

	s.invalidate(req.AssetID)
	return result, nil
}

// scanReferrers returns every entity whose image list contains any of the
// asset's URLs.
func scanReferrers(referrers []ImageReferrer, assetURLs []string) []EntityRef {
	urlSet := make(map[string]bool, len(assetURLs))
	for _, u := range assetURLs {
		urlSet[u] = true
	}

	var usedBy []EntityRef
	for _, ref := range referrers {
		for _, u := range ref.ImageURLs() {
			if urlSet[u] {
				usedBy = append(usedBy, EntityRef{
					Type: ref.EntityType(),
					ID:   ref.EntityID(),
					Name: ref.EntityName(),
				})
				break
			}
		}
	}
	return usedBy
}

// deleteAssetFiles removes every stored variant of an asset: both
// full-size encodings plus both encodings of each thumbnail, up to ten
// files. Missing blobs are skipped silently; other failures are
// collected.
func (s *service) deleteAssetFiles(ctx context.Context, meta *ImageMetadata) (deleted []string, errs []string) {
	keys := make([]string, 0, 2+2*len(meta.Thumbnails))
	keys = append(keys,
		layout.FullSizeKey(meta.TenantID, meta.ID, meta.UploadedAt, FormatWebP.Ext()),
		layout.FullSizeKey(meta.TenantID, meta.ID, meta.UploadedAt, FormatJPEG.Ext()),
	)
	for _, size := range ThumbnailSizes {
		t, ok := meta.Thumbnails[size]
		if !ok {
			continue
		}
		keys = append(keys,
			layout.ThumbnailKey(meta.TenantID, meta.ID, meta.UploadedAt, string(size), t.Width, t.Height, FormatWebP.Ext()),
			layout.ThumbnailKey(meta.TenantID, meta.ID, meta.UploadedAt, string(size), t.Width, t.Height, FormatJPEG.Ext()),
		)
	}

	for _, key := range keys {
		ioCtx, cancel := context.WithTimeout(ctx, s.ioTimeout)
		err := s.blobStore.Delete(ioCtx, key)
		cancel()
		switch {
		case err == nil:
			deleted = append(deleted, key)
		case errors.Is(err, ErrBlobNotFound):
			// Already gone; nothing to report.
		default:
			errs = append(errs, (&StorageError{Key: key, Op: "delete", Err: err}).Error())
		}
	}
	return deleted, errs
}
