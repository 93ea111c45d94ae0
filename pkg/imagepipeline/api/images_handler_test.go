package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayops/imagepipeline/pkg/imagepipeline"
)

func multipartUpload(t *testing.T, fieldName, filename, contentType string, payload []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fieldName, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func pngPayload(t *testing.T, width, height int) []byte {
	img := imaging.New(width, height, color.NRGBA{R: 200, G: 30, B: 60, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestUploadImage(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("Success", func(t *testing.T) {
		body, contentType := multipartUpload(t, "file", "room.png", "image/png", pngPayload(t, 1280, 720))

		req := httptest.NewRequest("POST", "/images", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("X-Tenant-Id", "hotel-aurora")
		req.Header.Set("X-Uploaded-By", "manager-7")
		rec := env.do(req)

		require.Equal(t, http.StatusCreated, rec.Code)

		var meta imagepipeline.ImageMetadata
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
		assert.Equal(t, "hotel-aurora", meta.TenantID)
		assert.Equal(t, "room.png", meta.OriginalFilename)
		assert.Equal(t, "manager-7", meta.UploadedBy)
		assert.Equal(t, 1280, meta.Dimensions.Width)
		assert.Len(t, meta.Thumbnails, 4)

		// Ten files landed in storage.
		assert.Equal(t, 10, env.store.Len())
	})

	t.Run("MissingTenant", func(t *testing.T) {
		body, contentType := multipartUpload(t, "file", "x.png", "image/png", pngPayload(t, 10, 10))
		req := httptest.NewRequest("POST", "/images", body)
		req.Header.Set("Content-Type", contentType)
		rec := env.do(req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MissingFileField", func(t *testing.T) {
		body, contentType := multipartUpload(t, "image", "x.png", "image/png", pngPayload(t, 10, 10))
		req := httptest.NewRequest("POST", "/images", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("X-Tenant-Id", "t")
		rec := env.do(req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnsupportedFormat", func(t *testing.T) {
		body, contentType := multipartUpload(t, "file", "x.gif", "image/gif", []byte("GIF89a"))
		req := httptest.NewRequest("POST", "/images", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("X-Tenant-Id", "t")
		rec := env.do(req)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
}

func TestGetImageInfo(t *testing.T) {
	env := setupTestEnv(t)
	meta := env.generate(t, "acme")

	rec := env.do(httptest.NewRequest("GET", fmt.Sprintf("/images/%s/info", meta.ID), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got imagepipeline.ImageMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, meta.ID, got.ID)
	assert.Equal(t, meta.PrimaryURL, got.PrimaryURL)
	assert.Len(t, got.Thumbnails, 4)

	rec = env.do(httptest.NewRequest("GET", fmt.Sprintf("/images/%s/info", uuid.New()), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteImageEndpoint(t *testing.T) {
	t.Run("ReferencedReturnsConflict", func(t *testing.T) {
		env := setupTestEnv(t)
		meta := env.generate(t, "acme")
		env.referrers.refs = []imagepipeline.ImageReferrer{
			stubReferrer{
				entityType: "room",
				entityID:   "room-3",
				entityName: "Garden View",
				images:     []string{meta.PrimaryURL},
			},
		}

		rec := env.do(httptest.NewRequest("DELETE", "/images/"+meta.ID.String(), nil))
		require.Equal(t, http.StatusConflict, rec.Code)

		var result imagepipeline.DeleteResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.False(t, result.Success)
		require.Len(t, result.UsedBy, 1)
		assert.Equal(t, "room-3", result.UsedBy[0].ID)

		// Nothing was destroyed.
		assert.Equal(t, 10, env.store.Len())
	})

	t.Run("UnreferencedDeletes", func(t *testing.T) {
		env := setupTestEnv(t)
		meta := env.generate(t, "acme")

		rec := env.do(httptest.NewRequest("DELETE", "/images/"+meta.ID.String(), nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var result imagepipeline.DeleteResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.True(t, result.Success)
		assert.Len(t, result.FilesDeleted, 10)
		assert.Equal(t, 0, env.store.Len())
	})

	t.Run("ForceBypassesReferences", func(t *testing.T) {
		env := setupTestEnv(t)
		meta := env.generate(t, "acme")
		env.referrers.refs = []imagepipeline.ImageReferrer{
			stubReferrer{entityType: "room", entityID: "r", images: []string{meta.PrimaryURL}},
		}

		rec := env.do(httptest.NewRequest("DELETE", "/images/"+meta.ID.String()+"?force=true", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, env.store.Len())
	})

	t.Run("UnknownID", func(t *testing.T) {
		env := setupTestEnv(t)
		rec := env.do(httptest.NewRequest("DELETE", "/images/"+uuid.NewString(), nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestReplaceImageEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	old := env.generate(t, "acme")
	replacement := env.generate(t, "acme")

	t.Run("Success", func(t *testing.T) {
		payload, err := json.Marshal(map[string]interface{}{
			"entity_images": []string{"/a.jpg", old.PrimaryURL, "/c.jpg"},
			"old_url":       old.PrimaryURL,
			"new_url":       replacement.PrimaryURL,
		})
		require.NoError(t, err)

		req := httptest.NewRequest("POST", fmt.Sprintf("/images/%s/replace", old.ID), bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := env.do(req)

		require.Equal(t, http.StatusOK, rec.Code)

		var result imagepipeline.ReplaceResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.True(t, result.Success)
		assert.True(t, result.OrderPreserved)
		assert.Equal(t, []string{"/a.jpg", replacement.PrimaryURL, "/c.jpg"}, result.NewImages)
		assert.Len(t, result.FilesDeleted, 10)

		// The superseded record is gone; the replacement still resolves.
		_, err = env.svc.GetImage(context.Background(), old.ID)
		assert.ErrorIs(t, err, imagepipeline.ErrAssetNotFound)
		_, err = env.svc.GetImage(context.Background(), replacement.ID)
		assert.NoError(t, err)
	})

	t.Run("OldURLNotInList", func(t *testing.T) {
		payload, err := json.Marshal(map[string]interface{}{
			"entity_images": []string{"/a.jpg"},
			"old_url":       "/not-present.jpg",
			"new_url":       "/new.jpg",
		})
		require.NoError(t, err)

		req := httptest.NewRequest("POST", fmt.Sprintf("/images/%s/replace", replacement.ID), bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := env.do(req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("MissingURLs", func(t *testing.T) {
		req := httptest.NewRequest("POST", fmt.Sprintf("/images/%s/replace", replacement.ID), bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")
		rec := env.do(req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
