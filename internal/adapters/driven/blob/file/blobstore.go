// Package file provides a content-addressed blob store on the local
// filesystem. Blobs are sharded by the first two hex characters of
// their content hash so no single directory grows unbounded.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/haven-labs/haven/internal/core/domain"
	"github.com/haven-labs/haven/internal/core/ports/driven"
)

// Ensure BlobStore implements the interface.
var _ driven.BlobStore = (*BlobStore)(nil)

// BlobStore stores attachment bytes under a root directory.
type BlobStore struct {
	root string
}

// NewBlobStore creates a blob store rooted at dir. If dir is empty,
// defaults to ~/.haven/blobs.
func NewBlobStore(dir string) (*BlobStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".haven", "blobs")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &BlobStore{root: dir}, nil
}

// Put stores the bytes and returns their content hash key. Storing the
// same bytes twice is a no-op returning the same key.
func (s *BlobStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := domain.HashBytes(data)
	path := s.path(key)

	if _, err := os.Stat(path); err == nil {
		return key, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("creating shard directory: %w", err)
	}

	// Write-then-rename keeps a crashed Put from leaving a partial
	// blob under the final name.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating temp blob: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("closing blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalising blob: %w", err)
	}

	return key, nil
}

// Get retrieves the bytes for a content hash key.
func (s *BlobStore) Get(ctx context.Context, contentHash string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(contentHash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("reading blob: %w", err)
	}
	return data, nil
}

// path maps a content hash onto its sharded file path.
func (s *BlobStore) path(key string) string {
	shard := "00"
	if len(key) >= 2 {
		shard = key[:2]
	}
	return filepath.Join(s.root, shard, key)
}
