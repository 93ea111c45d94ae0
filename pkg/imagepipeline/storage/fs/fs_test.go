package fs_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayops/imagepipeline/pkg/imagepipeline"
	"github.com/stayops/imagepipeline/pkg/imagepipeline/storage/fs"
)

func newBackend(t *testing.T) (imagepipeline.BlobStore, string) {
	dir := t.TempDir()
	backend, err := fs.New(fs.Config{BaseDir: dir})
	require.NoError(t, err)
	return backend, dir
}

func TestNewRequiresBaseDir(t *testing.T) {
	_, err := fs.New(fs.Config{})
	assert.Error(t, err)
}

func TestUploadCreatesNestedDirectories(t *testing.T) {
	backend, dir := newBackend(t)
	ctx := context.Background()

	key := "acme/2025/03/thumbnails/small/abc_150x84.webp"
	require.NoError(t, backend.Upload(ctx, key, bytes.NewReader([]byte("bytes"))))

	_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(key)))
	assert.NoError(t, err)
}

func TestDownloadRoundTrip(t *testing.T) {
	backend, _ := newBackend(t)
	ctx := context.Background()

	content := []byte("image bytes")
	require.NoError(t, backend.Upload(ctx, "t/a.jpg", bytes.NewReader(content)))

	rc, err := backend.Download(ctx, "t/a.jpg")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestDownloadMissingMapsToBlobNotFound(t *testing.T) {
	backend, _ := newBackend(t)

	_, err := backend.Download(context.Background(), "t/missing.webp")
	assert.ErrorIs(t, err, imagepipeline.ErrBlobNotFound)
}

func TestExists(t *testing.T) {
	backend, _ := newBackend(t)
	ctx := context.Background()

	ok, err := backend.Exists(ctx, "t/a.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, backend.Upload(ctx, "t/a.jpg", bytes.NewReader([]byte("x"))))

	ok, err = backend.Exists(ctx, "t/a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteCleansEmptyDirectories(t *testing.T) {
	backend, dir := newBackend(t)
	ctx := context.Background()

	key := "acme/2025/03/a.webp"
	require.NoError(t, backend.Upload(ctx, key, bytes.NewReader([]byte("x"))))
	require.NoError(t, backend.Delete(ctx, key))

	// The now-empty year/month tree is removed, the base dir stays.
	_, err := os.Stat(filepath.Join(dir, "acme"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(dir)
	assert.NoError(t, err)

	assert.ErrorIs(t, backend.Delete(ctx, key), imagepipeline.ErrBlobNotFound)
}
