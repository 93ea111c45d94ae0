package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stayops/imagepipeline/pkg/imagepipeline"
)

// ServeFullSize serves the full-size variant of an asset with content
// negotiation and the long-lived caching header set.
func (h *Handler) ServeFullSize(w http.ResponseWriter, r *http.Request) {
	meta, ok := h.lookupImage(w, r)
	if !ok {
		return
	}
	h.serveVariant(w, r, meta, "")
}

// ServeThumbnail serves one thumbnail bucket of an asset. The size token
// may be a bucket name or a pixel hint; unknown tokens are a 400 with no
// fallback bucket.
func (h *Handler) ServeThumbnail(w http.ResponseWriter, r *http.Request) {
	meta, ok := h.lookupImage(w, r)
	if !ok {
		return
	}

	size, err := imagepipeline.ResolveSize(chi.URLParam(r, "size"))
	if err != nil {
		http.Error(w, "Invalid thumbnail size", http.StatusBadRequest)
		return
	}
	h.serveVariant(w, r, meta, size)
}

func (h *Handler) lookupImage(w http.ResponseWriter, r *http.Request) (*imagepipeline.ImageMetadata, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid image ID", http.StatusBadRequest)
		return nil, false
	}

	meta, err := h.svc.GetImage(r.Context(), id)
	if err != nil {
		if errors.Is(err, imagepipeline.ErrAssetNotFound) {
			http.Error(w, "Image not found", http.StatusNotFound)
			return nil, false
		}
		slog.Error("Fail to get image", "image_id", idStr, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return meta, true
}

// serveVariant writes one variant response. size is empty for full-size.
func (h *Handler) serveVariant(w http.ResponseWriter, r *http.Request, meta *imagepipeline.ImageMetadata, size imagepipeline.SizeName) {
	format := imagepipeline.PreferredFormat(r.Header.Get("Accept"))
	etag := imagepipeline.ETagFor(meta, string(size))

	setSecurityHeaders(w)
	w.Header().Set("X-Image-Id", meta.ID.String())
	w.Header().Set("X-Tenant-Id", meta.TenantID)
	if size != "" {
		w.Header().Set("X-Thumbnail-Size", string(size))
		w.Header().Set("X-Original-Dimensions", fmt.Sprintf("%dx%d", meta.Dimensions.Width, meta.Dimensions.Height))
	}

	if r.Header.Get("If-None-Match") == etag {
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", imagepipeline.AssetCacheControl)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	body, err := h.svc.OpenVariant(r.Context(), meta, size, format)
	if err != nil {
		if errors.Is(err, imagepipeline.ErrBlobNotFound) {
			h.servePlaceholder(w, meta, size)
			return
		}
		slog.Error("Fail to open variant", "image_id", meta.ID.String(), "size", size, "format", format, "error", err)
		http.Error(w, "Failed to read image", http.StatusInternalServerError)
		return
	}
	defer body.Close()

	now := time.Now().UTC()
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", imagepipeline.AssetCacheControl)
	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", meta.UploadedAt.UTC().Format(http.TimeFormat))
	w.Header().Set("Expires", now.Add(imagepipeline.AssetMaxAge).Format(http.TimeFormat))

	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("Fail to write variant body", "image_id", meta.ID.String(), "error", err)
	}
}

// servePlaceholder degrades a request whose bytes are missing from
// storage: 200 with a short-lived SVG stand-in instead of a 404, so
// pages keep rendering while storage recovers.
func (h *Handler) servePlaceholder(w http.ResponseWriter, meta *imagepipeline.ImageMetadata, size imagepipeline.SizeName) {
	width, height := meta.Dimensions.Width, meta.Dimensions.Height
	if size != "" {
		if t, ok := meta.Thumbnails[size]; ok {
			width, height = t.Width, t.Height
		} else {
			width, height = size.TargetBox()
		}
	}

	slog.Warn("Serving placeholder for missing blob", "image_id", meta.ID.String(), "size", size)

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", imagepipeline.PlaceholderCacheControl)
	w.Header().Set("X-Image-Placeholder", "true")
	w.WriteHeader(http.StatusOK)
	w.Write(imagepipeline.PlaceholderSVG(width, height))
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "no-referrer")
}
