package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key, err := store.Write(ctx, "user-1/job-1/edge.png", []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, "user-1/job-1/edge.png", key)

	data, err := store.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestFileStoreMissingKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read(context.Background(), "user-1/gone.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	base := t.TempDir()
	store, err := NewFileStore(base)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Write(ctx, "../escape.txt", []byte("nope"))
	assert.Error(t, err)

	_, err = store.Write(ctx, "a/../../escape.txt", []byte("nope"))
	assert.Error(t, err)

	// Nothing may land outside the base directory.
	_, statErr := os.Stat(filepath.Join(filepath.Dir(base), "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileStoreRequiresBasePath(t *testing.T) {
	_, err := NewFileStore("  ")
	assert.Error(t, err)
}
