package driven

import (
	"context"
	"time"

	"github.com/haven-labs/haven/internal/core/domain"
)

// CatalogStore persists the document catalog. Cross-document invariants
// (single active version, unique content hash, unique idempotency key)
// are enforced by store-level uniqueness constraints, not application
// locking, because multiple processes operate against the same store.
type CatalogStore interface {
	// WithTx runs fn inside a single transaction. A returned error or a
	// cancelled context rolls back every write.
	WithTx(ctx context.Context, fn func(tx CatalogTx) error) error

	// GetSubmissionByKey retrieves a submission by idempotency key.
	GetSubmissionByKey(ctx context.Context, key string) (*domain.Submission, error)

	// GetSubmission retrieves a submission by ID.
	GetSubmission(ctx context.Context, id string) (*domain.Submission, error)

	// GetDocument retrieves one version row by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetActiveVersion retrieves the active version for an external ID.
	GetActiveVersion(ctx context.Context, externalID string) (*domain.Document, error)

	// GetFileByHash retrieves a file by content hash.
	GetFileByHash(ctx context.Context, contentHash string) (*domain.File, error)

	// ListFileLinks returns one document version's file links in link
	// order.
	ListFileLinks(ctx context.Context, documentID string) ([]domain.FileLink, error)

	// GetThread retrieves a thread by ID.
	GetThread(ctx context.Context, id string) (*domain.Thread, error)

	// GetChunk retrieves a chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// CountChunksByStatus tallies a document's linked chunks by
	// embedding status.
	CountChunksByStatus(ctx context.Context, documentID string) (domain.ChunkStatusCounts, error)

	// ListThreadNeighbours returns up to window active documents on
	// each side of ts within a thread, ordered by content timestamp.
	// The document at ts itself is excluded.
	ListThreadNeighbours(ctx context.Context, threadID string, ts time.Time, window int) ([]domain.Document, error)
}

// CatalogTx is the write surface available inside one transaction.
type CatalogTx interface {
	// GetSubmissionByKey retrieves a submission by idempotency key.
	GetSubmissionByKey(key string) (*domain.Submission, error)

	// InsertSubmission records a submission. Returns
	// domain.ErrAlreadyExists when the idempotency key is taken; the
	// caller re-reads the winner's row.
	InsertSubmission(sub *domain.Submission) error

	// GetActiveVersion retrieves the active version for an external ID.
	GetActiveVersion(externalID string) (*domain.Document, error)

	// InsertDocumentVersion inserts a new version row. When
	// doc.PreviousVersionID is set, the predecessor's active flag is
	// cleared in the same statement batch, keeping invariant (a).
	InsertDocumentVersion(doc *domain.Document) error

	// DeactivateDocument clears the active flag with no successor
	// (soft delete).
	DeactivateDocument(id string) error

	// SetDocumentStatus updates the workflow status and failure flags
	// of one version row.
	SetDocumentStatus(id string, status domain.DocumentStatus, extractionFailed, enrichmentFailed bool) error

	// GetFileByHash retrieves a file by content hash.
	GetFileByHash(contentHash string) (*domain.File, error)

	// InsertFile records a new content-addressed file. Returns
	// domain.ErrAlreadyExists when the hash is taken.
	InsertFile(f *domain.File) error

	// LinkFile associates a file with a document version in a role.
	// Re-linking the same triple is a no-op.
	LinkFile(link domain.FileLink) error

	// UnlinkFiles removes all file links of one document version.
	UnlinkFiles(documentID string) error

	// ListFileLinks returns one document version's file links in link
	// order.
	ListFileLinks(documentID string) ([]domain.FileLink, error)

	// GetChunkByTextHash retrieves a chunk by its text hash.
	GetChunkByTextHash(textHash string) (*domain.Chunk, error)

	// InsertChunk records a new chunk in pending state.
	InsertChunk(c *domain.Chunk) error

	// LinkChunk associates a chunk with a document version.
	LinkChunk(link domain.ChunkLink) error

	// UnlinkChunks removes all chunk links of one document version.
	// The chunks themselves persist; other documents may share them.
	UnlinkChunks(documentID string) error

	// GetThreadByExternalID retrieves a thread by external ID.
	GetThreadByExternalID(externalID string) (*domain.Thread, error)

	// UpsertThread creates the thread on first reference or refreshes
	// its rollup fields (participants, first/last message at).
	UpsertThread(t *domain.Thread) error
}
