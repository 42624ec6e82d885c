package driven

import "context"

// BlobStore is an opaque content-addressed byte store. Putting the
// same bytes twice yields the same key and stores them once.
type BlobStore interface {
	// Put stores the bytes and returns their content hash key.
	Put(ctx context.Context, data []byte) (string, error)

	// Get retrieves the bytes for a content hash key.
	Get(ctx context.Context, contentHash string) ([]byte, error)
}
