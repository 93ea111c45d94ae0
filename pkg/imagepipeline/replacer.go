package imagepipeline

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Replace swaps OldURL for NewURL at the exact index OldURL occupies in
// the entity's ordered image list. The swap is the source of truth: file
// cleanup for the superseded asset runs only after Commit persisted the
// new list, and a cleanup failure is reported without rolling the swap
// back. Orphaned bytes are a recoverable leak; a dangling reference is
// not.
func (s *service) Replace(ctx context.Context, req ReplaceRequest) (*ReplaceResult, error) {
	idx := -1
	for i, u := range req.EntityImages {
		if u == req.OldURL {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &ReplaceResult{Success: false, Errors: []string{ErrOldImageNotFound.Error()}}, ErrOldImageNotFound
	}

	newImages := make([]string, len(req.EntityImages))
	copy(newImages, req.EntityImages)
	newImages[idx] = req.NewURL

	result := &ReplaceResult{
		Success:        true,
		NewImages:      newImages,
		OrderPreserved: true,
	}

	if req.Commit != nil {
		if err := req.Commit(ctx, newImages); err != nil {
			return &ReplaceResult{Success: false, Errors: []string{err.Error()}}, err
		}
	}

	// The swap is durable; schedule removal of the superseded files.
	oldID, ok := AssetIDFromURL(req.OldURL)
	if !ok {
		result.Errors = append(result.Errors, "old url does not name a pipeline asset, skipping cleanup")
		return result, nil
	}

	unlock := s.locks.lock(oldID)
	defer unlock()

	meta, err := s.repository.GetImage(ctx, oldID)
	if err != nil {
		if errors.Is(err, ErrAssetNotFound) {
			return result, nil
		}
		result.Errors = append(result.Errors, err.Error())
		return result, nil
	}

	result.FilesDeleted, result.Errors = s.deleteAssetFiles(ctx, meta)
	if err := s.repository.DeleteImage(ctx, oldID); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	s.invalidate(oldID)

	return result, nil
}

// ReplaceAll applies the same substitution across entities. Each entity
// is an independent operation; partial success is allowed and every
// outcome is reported individually. File cleanup happens through the
// per-entity Replace calls (the first successful one removes the files,
// later ones find them already gone).
func (s *service) ReplaceAll(ctx context.Context, entities []EntityImages, oldURL, newURL string) ([]EntityReplaceResult, error) {
	results := make([]EntityReplaceResult, 0, len(entities))
	for _, e := range entities {
		res, _ := s.Replace(ctx, ReplaceRequest{
			EntityImages: e.Images,
			OldURL:       oldURL,
			NewURL:       newURL,
			Commit:       e.Commit,
		})
		results = append(results, EntityReplaceResult{
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Result:     res,
		})
	}
	return results, nil
}

// AssetIDFromURL extracts the asset id embedded in a pipeline URL. The
// layout convention puts the id at the start of the base filename, for
// both full-size keys and thumbnail keys ({id}_{w}x{h}).
func AssetIDFromURL(url string) (uuid.UUID, bool) {
	base := path.Base(url)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if i := strings.IndexByte(base, '_'); i >= 0 {
		base = base[:i]
	}
	id, err := uuid.Parse(base)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
