package driving

import (
	"context"

	"github.com/haven-labs/haven/internal/core/domain"
)

// CatalogService is the ingestion/versioning engine consumed by
// collectors and operator tooling.
type CatalogService interface {
	// Ingest processes one document envelope with exactly-once
	// semantics under the envelope's idempotency key.
	Ingest(ctx context.Context, req *domain.IngestRequest) (*domain.IngestResult, error)

	// IngestBatch processes a batch of envelopes, returning per-item
	// results and an aggregate status. Retrying a whole batch is safe.
	IngestBatch(ctx context.Context, reqs []*domain.IngestRequest) (*domain.BatchResult, error)

	// Version applies a partial update as a new version of the
	// document; the existing version is never mutated.
	Version(ctx context.Context, documentID string, patch *domain.VersionPatch) (*domain.IngestResult, error)

	// Delete soft-deletes a document version: no successor, links for
	// that version removed, shared files and chunks persist.
	Delete(ctx context.Context, documentID string) error

	// SubmissionStatus reports workflow state and chunk counts for a
	// submission ID or document ID.
	SubmissionStatus(ctx context.Context, ref string) (*domain.StatusReport, error)
}
