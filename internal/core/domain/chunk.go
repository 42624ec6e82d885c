package domain

import "time"

// EmbeddingStatus is the lifecycle state of a chunk's embedding.
// It only moves forward: pending -> processing -> embedded or failed.
// failed -> pending happens only through an explicit operator reset.
type EmbeddingStatus string

// Embedding lifecycle states.
const (
	EmbeddingPending    EmbeddingStatus = "pending"
	EmbeddingProcessing EmbeddingStatus = "processing"
	EmbeddingEmbedded   EmbeddingStatus = "embedded"
	EmbeddingFailed     EmbeddingStatus = "failed"
)

// Chunk is a bounded text segment, the unit of embedding and lexical
// indexing. Chunk text is immutable once created; a document edit
// creates new chunks and unlinks the old associations. Identical text
// (by TextHash) is stored once and shared across documents.
type Chunk struct {
	// ID is the unique chunk identifier.
	ID string

	// Text is the segment content.
	Text string

	// TextHash is the content hash of Text, the dedup key for reuse.
	TextHash string

	// Status is the embedding lifecycle state.
	Status EmbeddingStatus

	// Embedding is the vector, present only once Status is embedded.
	// Whitespace-only chunks are embedded with a nil vector.
	Embedding []float32

	// Model names the embedding model that produced the vector.
	Model string

	// SourceRef points back into the source text for citation,
	// e.g. "chars=120-960".
	SourceRef string

	// ErrorDetails records the provider failure when Status is failed.
	ErrorDetails string

	// ClaimedAt is set when a worker flips the chunk to processing.
	// Stale claims older than a threshold are swept back to pending.
	ClaimedAt *time.Time

	CreatedAt time.Time
}

// ChunkLink associates a chunk with a document version. Ordinal is the
// chunk's position within the document; Weight is its share of the
// document's relevance. Weights are positive and need not sum to 1.
type ChunkLink struct {
	ChunkID    string
	DocumentID string
	Ordinal    int
	Weight     float64
}

// ChunkStatusCounts tallies a document's chunks by embedding status.
type ChunkStatusCounts map[EmbeddingStatus]int

// Total returns the number of chunks across all statuses.
func (c ChunkStatusCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// AllEmbedded reports whether every chunk has reached the embedded
// state. An empty count set is considered complete.
func (c ChunkStatusCounts) AllEmbedded() bool {
	return c[EmbeddingPending] == 0 && c[EmbeddingProcessing] == 0 && c[EmbeddingFailed] == 0
}
