package driven

import (
	"context"

	"github.com/haven-labs/haven/internal/core/domain"
)

// EnrichmentService derives OCR text, captions and entities from file
// bytes. It is opaque to the catalog: the output is stored on the File
// row and computed once per distinct content hash.
type EnrichmentService interface {
	// Enrich analyses the bytes and returns the enrichment payload.
	Enrich(ctx context.Context, data []byte, mimeType string) (*domain.Enrichment, error)
}
