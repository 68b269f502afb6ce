package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/content-admin-api/pkg/config"
)

func TestLocalStoragePutOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	payload := []byte("png-bytes")
	require.NoError(t, store.Put(ctx, "artifacts/a-1/pending/one.png", bytes.NewReader(payload), int64(len(payload)), "image/png"))

	exists, err := store.Exists(ctx, "artifacts/a-1/pending/one.png")
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := store.Open(ctx, "artifacts/a-1/pending/one.png")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, payload, got)

	require.NoError(t, store.Delete(ctx, "artifacts/a-1/pending/one.png"))
	require.NoError(t, store.Delete(ctx, "artifacts/a-1/pending/one.png"))
	_, err = store.Open(ctx, "artifacts/a-1/pending/one.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorageShortWriteLeavesNothing(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	err = store.Put(ctx, "k/short.bin", bytes.NewReader([]byte("abc")), 10, "")
	require.Error(t, err)
	exists, err := store.Exists(ctx, "k/short.bin")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, store.Put(ctx, "../evil", bytes.NewReader(nil), 0, ""), ErrInvalidKey)
	assert.ErrorIs(t, store.Delete(ctx, "/abs/path"), ErrInvalidKey)
	_, err = store.Exists(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLocalStorageHonoursCancelledContext(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = store.Put(ctx, "k/cancelled.bin", bytes.NewReader([]byte("abc")), 3, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSelectsDriver(t *testing.T) {
	store, err := New(context.Background(), config.BlobConfig{Driver: config.BlobDriverLocal, LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, store)

	_, err = New(context.Background(), config.BlobConfig{Driver: config.BlobDriverS3})
	assert.Error(t, err)

	_, err = New(context.Background(), config.BlobConfig{Driver: "ftp"})
	assert.Error(t, err)
}
