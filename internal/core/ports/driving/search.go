package driving

import (
	"context"

	"github.com/haven-labs/haven/internal/core/domain"
)

// SearchService provides hybrid search to external actors.
type SearchService interface {
	// Search runs the lexical and vector legs over active documents,
	// merges and ranks, and applies filters and context expansion.
	Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error)
}
