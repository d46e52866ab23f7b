package storage

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"comic-server/internal/model"
)

func TestFileStore_SaveBase64(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static/book-images/", zap.NewNop())
	require.NoError(t, err)

	content := []byte("fake png bytes")
	encoded := base64.StdEncoding.EncodeToString(content)

	url, err := store.SaveBase64(context.Background(), "book-1", "page.png", encoded)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/static/book-images/book-1/page.png", url)

	saved, err := os.ReadFile(filepath.Join(dir, "book-1", "page.png"))
	require.NoError(t, err)
	assert.Equal(t, content, saved)
}

func TestFileStore_SaveBase64_RootDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static/book-images", zap.NewNop())
	require.NoError(t, err)

	url, err := store.SaveBase64(context.Background(), "", "solo.png", base64.StdEncoding.EncodeToString([]byte("x")))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/static/book-images/solo.png", url)

	_, err = os.Stat(filepath.Join(dir, "solo.png"))
	assert.NoError(t, err)
}

func TestFileStore_SaveBase64_InvalidContent(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost", zap.NewNop())
	require.NoError(t, err)

	_, err = store.SaveBase64(context.Background(), "b", "x.png", "!!! not base64 !!!")
	assert.ErrorIs(t, err, model.ErrUpload)
}

func TestFileStore_SaveBase64_CancelledContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost", zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.SaveBase64(ctx, "b", "x.png", "Zm9v")
	assert.ErrorIs(t, err, context.Canceled)
}
