package driven

import (
	"context"

	"github.com/haven-labs/haven/internal/core/domain"
)

// VectorIndex provides the semantic leg: similarity search over
// embedded chunks. Only chunks with status embedded participate;
// everything else is absent from this leg but still reachable through
// the lexical leg.
type VectorIndex interface {
	// Upsert stores or replaces the vector for a chunk.
	Upsert(ctx context.Context, chunkID string, vector []float32) error

	// Search finds the k nearest chunks to the query vector within the
	// filtered active-document population.
	Search(ctx context.Context, query []float32, filter domain.SearchFilter, k int) ([]VectorHit, error)
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// DocumentID is the active version the chunk is linked to.
	DocumentID string

	// Similarity is the cosine similarity score (0-1).
	Similarity float64
}
