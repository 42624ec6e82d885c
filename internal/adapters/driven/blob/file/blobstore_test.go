package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-labs/haven/internal/core/domain"
)

func TestBlobStore_PutGetRoundTrip(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("attachment payload")
	key, err := store.Put(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, domain.HashBytes(data), key)

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestBlobStore_PutIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBlobStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("same bytes")
	key1, err := store.Put(ctx, data)
	require.NoError(t, err)
	key2, err := store.Put(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, key1, key2)

	// One sharded file on disk.
	path := filepath.Join(dir, key1[:2], key1)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.Size())
}

func TestBlobStore_GetMissing(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), domain.HashBytes([]byte("never stored")))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
