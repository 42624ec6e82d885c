package driven

import (
	"context"

	"github.com/haven-labs/haven/internal/core/domain"
)

// SearchEngine provides the lexical leg: full-text search over chunks
// of active document versions. Backed by SQLite FTS5.
type SearchEngine interface {
	// Search runs a full-text query restricted by filter and returns
	// matching chunks with relevance scores, best first. Chunks are
	// lexically searchable regardless of embedding status.
	Search(ctx context.Context, query string, filter domain.SearchFilter, limit int) ([]LexicalHit, error)
}

// LexicalHit is a full-text match.
type LexicalHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// DocumentID is the active version the chunk is linked to.
	DocumentID string

	// Score is the relevance score (BM25-derived, higher is better).
	Score float64
}
