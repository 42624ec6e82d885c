package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// This is an optional service - when nil, the embedding pipeline and
// the vector search leg are disabled.
//
// Note: this is separate from VectorIndex, which stores and searches
// vectors. EmbeddingService generates them.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
//   - Local models via inference servers
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 768, 1536).
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable with a lightweight
	// request, used at startup before committing to a search mode.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
