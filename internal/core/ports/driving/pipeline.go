package driving

import (
	"context"
	"time"
)

// PipelineEventKind classifies pipeline progress events.
type PipelineEventKind string

// Pipeline event kinds.
const (
	EventChunkEmbedded PipelineEventKind = "chunk_embedded"
	EventChunkFailed   PipelineEventKind = "chunk_failed"
	EventDocIndexed    PipelineEventKind = "doc_indexed"
	EventStaleReset    PipelineEventKind = "stale_reset"
)

// PipelineEvent is a progress notification emitted by the workers.
type PipelineEvent struct {
	Kind       PipelineEventKind
	ChunkID    string
	DocumentID string
	Detail     string
	At         time.Time
}

// EmbedPipeline drives the asynchronous chunk embedding workers.
type EmbedPipeline interface {
	// Start launches the worker pool and the staleness sweeper and
	// blocks until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop shuts the workers down and waits for in-flight chunks.
	Stop() error

	// RunOnce claims and processes a single batch, for tests and the
	// one-shot CLI mode. Returns the number of chunks processed.
	RunOnce(ctx context.Context) (int, error)

	// Events exposes the progress stream. The channel is never closed
	// while the pipeline runs; slow consumers miss events rather than
	// blocking workers.
	Events() <-chan PipelineEvent
}
