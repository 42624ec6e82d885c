package driven

import (
	"context"
	"time"

	"github.com/haven-labs/haven/internal/core/domain"
)

// ChunkQueue is the embedding work queue. It lives on the same store as
// the catalog; the claim is a single atomic update, which is the only
// thing that keeps two workers off the same chunk - there is no
// external lock manager.
type ChunkQueue interface {
	// Claim atomically selects up to limit pending chunks and flips
	// them to processing, stamping the claim time. Returns the claimed
	// chunks. Safe to call from any number of concurrent workers.
	Claim(ctx context.Context, limit int) ([]domain.Chunk, error)

	// MarkEmbedded stores the vector and model and transitions the
	// chunk to embedded. A nil vector is valid for whitespace-only
	// chunks.
	MarkEmbedded(ctx context.Context, chunkID string, vector []float32, model string) error

	// MarkFailed transitions the chunk to failed with error detail.
	// Failed chunks are never retried automatically.
	MarkFailed(ctx context.Context, chunkID string, detail string) error

	// ResetStale sweeps processing chunks claimed before the cutoff
	// back to pending. Idempotent; returns the number reset.
	ResetStale(ctx context.Context, olderThan time.Duration) (int, error)

	// ResetFailed is the explicit operator reset of failed chunks back
	// to pending. Returns the number reset.
	ResetFailed(ctx context.Context) (int, error)

	// DocumentsForChunk lists the IDs of active documents linked to a
	// chunk, for status rollup after embedding.
	DocumentsForChunk(ctx context.Context, chunkID string) ([]string, error)

	// MarkIndexedIfComplete advances a document to indexed when all of
	// its chunks are embedded. Returns true when the transition fired.
	MarkIndexedIfComplete(ctx context.Context, documentID string) (bool, error)

	// PendingCount returns the number of pending chunks.
	PendingCount(ctx context.Context) (int, error)
}
