package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/stayops/imagepipeline/pkg/imagepipeline"
)

// maxUploadBytes caps multipart upload memory and body size.
const maxUploadBytes = 20 << 20 // 20 MB

// Handler exposes the image pipeline over HTTP
type Handler struct {
	svc       imagepipeline.Service
	referrers imagepipeline.ReferrerSource
}

// NewHandler creates a new image handler. referrers may be nil when no
// usage scan source is registered; deletes then only honor force checks
// against an empty referrer set.
func NewHandler(svc imagepipeline.Service, referrers imagepipeline.ReferrerSource) *Handler {
	return &Handler{
		svc:       svc,
		referrers: referrers,
	}
}

// Routes returns the router for image endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.UploadImage)
	r.Get("/{id}", h.ServeFullSize)
	r.Get("/{id}/thumbnail/{size}", h.ServeThumbnail)
	r.Get("/{id}/info", h.GetImageInfo)
	r.Delete("/{id}", h.DeleteImage)
	r.Post("/{id}/replace", h.ReplaceImage)

	return r
}

// UploadImage accepts a multipart upload and runs the full variant
// pipeline on it, returning the committed metadata record.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	if principal.TenantID == "" {
		http.Error(w, "Missing tenant", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		slog.Error("Fail to parse multipart form", "error", err)
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing 'file' field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error("Fail to read upload", "filename", header.Filename, "error", err)
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}

	meta, err := h.svc.Generate(r.Context(), imagepipeline.GenerateRequest{
		TenantID:         principal.TenantID,
		OriginalFilename: header.Filename,
		MimeType:         header.Header.Get("Content-Type"),
		Data:             data,
		UploadedBy:       principal.Subject,
	})
	if err != nil {
		if errors.Is(err, imagepipeline.ErrUnsupportedFormat) {
			http.Error(w, "Unsupported image format", http.StatusUnsupportedMediaType)
			return
		}
		slog.Error("Fail to generate variants", "tenant_id", principal.TenantID, "filename", header.Filename, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("Image uploaded", "image_id", meta.ID.String(), "tenant_id", meta.TenantID, "filename", header.Filename)

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, meta)
}

// GetImageInfo returns the metadata record for an asset
func (h *Handler) GetImageInfo(w http.ResponseWriter, r *http.Request) {
	meta, ok := h.lookupImage(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, meta)
}

// DeleteImage deletes an asset unless a referrer still uses one of its
// URLs. ?force=true skips the usage scan.
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid image ID", http.StatusBadRequest)
		return
	}

	force := r.URL.Query().Get("force") == "true"

	var referrers []imagepipeline.ImageReferrer
	if h.referrers != nil && !force {
		meta, err := h.svc.GetImage(r.Context(), id)
		if err != nil {
			if errors.Is(err, imagepipeline.ErrAssetNotFound) {
				http.Error(w, "Image not found", http.StatusNotFound)
				return
			}
			slog.Error("Fail to get image", "image_id", idStr, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		referrers, err = h.referrers.Referrers(r.Context(), meta.TenantID)
		if err != nil {
			slog.Error("Fail to load referrers", "tenant_id", meta.TenantID, "error", err)
			http.Error(w, "Failed to scan references", http.StatusInternalServerError)
			return
		}
	}

	result, err := h.svc.Delete(r.Context(), imagepipeline.DeleteRequest{
		AssetID:   id,
		Referrers: referrers,
		Force:     force,
	})
	if err != nil {
		switch {
		case errors.Is(err, imagepipeline.ErrAssetInUse):
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, result)
			return
		case errors.Is(err, imagepipeline.ErrAssetNotFound):
			http.Error(w, "Image not found", http.StatusNotFound)
			return
		default:
			slog.Error("Fail to delete image", "image_id", idStr, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	slog.Info("Image deleted", "image_id", idStr, "files_deleted", len(result.FilesDeleted), "force", force)

	render.JSON(w, r, result)
}

// ReplaceImageRequest is the request body for a replacement
type ReplaceImageRequest struct {
	EntityImages []string `json:"entity_images"`
	OldURL       string   `json:"old_url"`
	NewURL       string   `json:"new_url"`
}

// ReplaceImage swaps one asset URL for another inside an ordered image
// list. The caller persists the returned list; the superseded asset's
// files are cleaned up once the swap is acknowledged.
func (h *Handler) ReplaceImage(w http.ResponseWriter, r *http.Request) {
	var req ReplaceImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Fail to decode request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.OldURL == "" || req.NewURL == "" {
		http.Error(w, "old_url and new_url are required", http.StatusBadRequest)
		return
	}

	result, err := h.svc.Replace(r.Context(), imagepipeline.ReplaceRequest{
		EntityImages: req.EntityImages,
		OldURL:       req.OldURL,
		NewURL:       req.NewURL,
		// The HTTP caller owns the durable list; returning the swapped
		// list in the response is the commit acknowledgement.
		Commit: func(ctx context.Context, newImages []string) error { return nil },
	})
	if err != nil {
		if errors.Is(err, imagepipeline.ErrOldImageNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, result)
			return
		}
		slog.Error("Fail to replace image", "old_url", req.OldURL, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("Image replaced", "old_url", req.OldURL, "new_url", req.NewURL, "files_deleted", len(result.FilesDeleted))

	render.JSON(w, r, result)
}
