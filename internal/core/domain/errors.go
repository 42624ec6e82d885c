package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a uniqueness constraint fired. The
	// idempotency race resolves through this: the loser re-reads the
	// winner's row instead of erroring.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates a malformed or incomplete envelope,
	// rejected before any write.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotActive indicates an operation targeted a superseded or
	// deleted document version.
	ErrNotActive = errors.New("document version is not active")

	// ErrEmbeddingUnavailable indicates the embedding provider is not
	// configured. The vector search leg is disabled without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not
	// configured. Search degrades to lexical-only.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrSearchUnavailable indicates the lexical engine is not
	// configured. Nothing can degrade past this.
	ErrSearchUnavailable = errors.New("search engine unavailable")

	// ErrEnrichmentUnavailable indicates the enrichment provider is not
	// configured. Attachments are stored without enrichment.
	ErrEnrichmentUnavailable = errors.New("enrichment service unavailable")
)
