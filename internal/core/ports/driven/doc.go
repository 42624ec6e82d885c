// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - CatalogStore: transactional document/file/chunk/thread persistence
//   - ChunkQueue: claim-based embedding work queue over the same store
//   - SearchEngine: lexical full-text search over active chunks
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - VectorIndex: vector similarity search. Search degrades to
//     lexical-only without it.
//   - EmbeddingService: generates vectors. Without it the pipeline and
//     the vector leg are disabled.
//   - EnrichmentService: OCR/caption/entities for files. Without it
//     attachments are stored unenriched.
//   - BlobStore: content-addressed bytes. Without it attachment bytes
//     are not retained (metadata and dedup still work).
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: any adapter package
package driven
