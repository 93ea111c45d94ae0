package api_test

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayops/imagepipeline/pkg/imagepipeline"
	"github.com/stayops/imagepipeline/pkg/imagepipeline/api"
	"github.com/stayops/imagepipeline/pkg/imagepipeline/repo/memory"
	memorystorage "github.com/stayops/imagepipeline/pkg/imagepipeline/storage/memory"
)

type testEnv struct {
	svc       imagepipeline.Service
	store     *memorystorage.Backend
	router    chi.Router
	referrers *stubReferrerSource
}

type stubReferrerSource struct {
	refs []imagepipeline.ImageReferrer
}

func (s *stubReferrerSource) Referrers(ctx context.Context, tenantID string) ([]imagepipeline.ImageReferrer, error) {
	return s.refs, nil
}

type stubReferrer struct {
	entityType, entityID, entityName string
	images                           []string
}

func (r stubReferrer) EntityType() string  { return r.entityType }
func (r stubReferrer) EntityID() string    { return r.entityID }
func (r stubReferrer) EntityName() string  { return r.entityName }
func (r stubReferrer) ImageURLs() []string { return r.images }

func setupTestEnv(t *testing.T) *testEnv {
	store := memorystorage.New()

	svc, err := imagepipeline.New(
		imagepipeline.WithRepository(memory.New()),
		imagepipeline.WithBlobStore(store),
	)
	require.NoError(t, err)

	refs := &stubReferrerSource{}
	handler := api.NewHandler(svc, refs)

	router := chi.NewRouter()
	router.Mount("/images", handler.Routes())

	return &testEnv{svc: svc, store: store, router: router, referrers: refs}
}

func (e *testEnv) generate(t *testing.T, tenantID string) *imagepipeline.ImageMetadata {
	img := imaging.New(1920, 1080, color.NRGBA{R: 10, G: 120, B: 40, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))

	meta, err := e.svc.Generate(context.Background(), imagepipeline.GenerateRequest{
		TenantID:         tenantID,
		OriginalFilename: "scene.png",
		MimeType:         "image/png",
		Data:             buf.Bytes(),
	})
	require.NoError(t, err)
	return meta
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestServeFullSize(t *testing.T) {
	env := setupTestEnv(t)
	meta := env.generate(t, "acme")

	t.Run("WebPWhenAccepted", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/images/"+meta.ID.String(), nil)
		req.Header.Set("Accept", "image/webp,image/*,*/*")
		rec := env.do(req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))
		assert.Equal(t, "public, max-age=31536000, immutable", rec.Header().Get("Cache-Control"))
		assert.NotEmpty(t, rec.Header().Get("ETag"))
		assert.NotEmpty(t, rec.Header().Get("Last-Modified"))
		assert.NotEmpty(t, rec.Header().Get("Expires"))
		assert.Equal(t, meta.ID.String(), rec.Header().Get("X-Image-Id"))
		assert.Equal(t, "acme", rec.Header().Get("X-Tenant-Id"))
		assert.NotEmpty(t, rec.Body.Bytes())
	})

	t.Run("JPEGFallback", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/images/"+meta.ID.String(), nil)
		req.Header.Set("Accept", "image/jpeg, image/*")
		rec := env.do(req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	})

	t.Run("SecurityHeaders", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/images/"+meta.ID.String(), nil)
		rec := env.do(req)

		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "default-src 'none'", rec.Header().Get("Content-Security-Policy"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	})

	t.Run("NotModified", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/images/"+meta.ID.String(), nil)
		rec := env.do(req)
		etag := rec.Header().Get("ETag")
		require.NotEmpty(t, etag)

		req = httptest.NewRequest("GET", "/images/"+meta.ID.String(), nil)
		req.Header.Set("If-None-Match", etag)
		rec = env.do(req)

		assert.Equal(t, http.StatusNotModified, rec.Code)
		assert.Equal(t, etag, rec.Header().Get("ETag"))
		assert.Equal(t, "public, max-age=31536000, immutable", rec.Header().Get("Cache-Control"))
		assert.Empty(t, rec.Body.Bytes())

		// Revalidation is repeatable.
		req = httptest.NewRequest("GET", "/images/"+meta.ID.String(), nil)
		req.Header.Set("If-None-Match", etag)
		rec = env.do(req)
		assert.Equal(t, http.StatusNotModified, rec.Code)
	})

	t.Run("UnknownID", func(t *testing.T) {
		rec := env.do(httptest.NewRequest("GET", "/images/"+uuid.NewString(), nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("MalformedID", func(t *testing.T) {
		rec := env.do(httptest.NewRequest("GET", "/images/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServeThumbnail(t *testing.T) {
	env := setupTestEnv(t)
	meta := env.generate(t, "acme")

	t.Run("NamedBucket", func(t *testing.T) {
		req := httptest.NewRequest("GET", fmt.Sprintf("/images/%s/thumbnail/medium", meta.ID), nil)
		req.Header.Set("Accept", "image/webp")
		rec := env.do(req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))
		assert.Equal(t, "medium", rec.Header().Get("X-Thumbnail-Size"))
		assert.Equal(t, "1920x1080", rec.Header().Get("X-Original-Dimensions"))
	})

	t.Run("PixelHintResolvesToBucket", func(t *testing.T) {
		// 240px falls in the medium bucket.
		req := httptest.NewRequest("GET", fmt.Sprintf("/images/%s/thumbnail/240", meta.ID), nil)
		rec := env.do(req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "medium", rec.Header().Get("X-Thumbnail-Size"))
	})

	t.Run("ETagVariesPerSize", func(t *testing.T) {
		recSmall := env.do(httptest.NewRequest("GET", fmt.Sprintf("/images/%s/thumbnail/small", meta.ID), nil))
		recLarge := env.do(httptest.NewRequest("GET", fmt.Sprintf("/images/%s/thumbnail/large", meta.ID), nil))
		assert.NotEqual(t, recSmall.Header().Get("ETag"), recLarge.Header().Get("ETag"))
	})

	t.Run("InvalidToken", func(t *testing.T) {
		for _, token := range []string{"huge", "0", "-100", "12.5"} {
			rec := env.do(httptest.NewRequest("GET", fmt.Sprintf("/images/%s/thumbnail/%s", meta.ID, token), nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code, "token %q", token)
		}
	})
}

func TestServePlaceholder(t *testing.T) {
	env := setupTestEnv(t)
	meta := env.generate(t, "acme")

	// Drop the medium thumbnail bytes out from under the record.
	medium := meta.Thumbnails[imagepipeline.SizeMedium]
	require.NoError(t, env.store.Delete(context.Background(), medium.Path))

	req := httptest.NewRequest("GET", fmt.Sprintf("/images/%s/thumbnail/medium", meta.ID), nil)
	req.Header.Set("Accept", "image/webp")
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "true", rec.Header().Get("X-Image-Placeholder"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	body := rec.Body.String()
	assert.Contains(t, body, fmt.Sprintf(`width="%d"`, medium.Width))
	assert.Contains(t, body, fmt.Sprintf(`height="%d"`, medium.Height))
}
