package memory_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayops/imagepipeline/pkg/imagepipeline"
	"github.com/stayops/imagepipeline/pkg/imagepipeline/storage/memory"
)

func TestUploadAndDownload(t *testing.T) {
	backend := memory.New()
	ctx := context.Background()

	key := "acme/2025/03/test.webp"
	content := []byte("webp bytes")

	require.NoError(t, backend.Upload(ctx, key, bytes.NewReader(content)))

	rc, err := backend.Download(ctx, key)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestDownloadMissing(t *testing.T) {
	backend := memory.New()

	_, err := backend.Download(context.Background(), "nope")
	assert.ErrorIs(t, err, imagepipeline.ErrBlobNotFound)
}

func TestExists(t *testing.T) {
	backend := memory.New()
	ctx := context.Background()

	ok, err := backend.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, backend.Upload(ctx, "k", bytes.NewReader([]byte("x"))))

	ok, err = backend.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDelete(t *testing.T) {
	backend := memory.New()
	ctx := context.Background()

	require.NoError(t, backend.Upload(ctx, "k", bytes.NewReader([]byte("x"))))
	require.NoError(t, backend.Delete(ctx, "k"))
	assert.Equal(t, 0, backend.Len())

	assert.ErrorIs(t, backend.Delete(ctx, "k"), imagepipeline.ErrBlobNotFound)
}
