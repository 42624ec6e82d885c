package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/haven-labs/haven/internal/core/domain"
	"github.com/haven-labs/haven/internal/core/ports/driven"
	"github.com/haven-labs/haven/internal/core/ports/driving"
	"github.com/haven-labs/haven/internal/logger"
)

// Ensure EmbedPipeline implements the interface.
var _ driving.EmbedPipeline = (*EmbedPipeline)(nil)

// PipelineConfig tunes the embedding workers.
type PipelineConfig struct {
	// Workers is the number of concurrent claim-and-embed loops.
	Workers int

	// BatchSize is the maximum chunks claimed per poll.
	BatchSize int

	// PollInterval is how long an idle worker waits before re-polling.
	PollInterval time.Duration

	// StaleAfter is the claim age past which the sweeper returns
	// processing chunks to pending.
	StaleAfter time.Duration

	// SweepInterval is how often the staleness sweep runs.
	SweepInterval time.Duration

	// ProviderTimeout bounds a single embedding call.
	ProviderTimeout time.Duration

	// RatePerSecond and Burst bound provider calls across all workers.
	// Zero RatePerSecond means unlimited.
	RatePerSecond float64
	Burst         int
}

// DefaultPipelineConfig returns the stock tuning.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Workers:         4,
		BatchSize:       8,
		PollInterval:    2 * time.Second,
		StaleAfter:      10 * time.Minute,
		SweepInterval:   time.Minute,
		ProviderTimeout: 30 * time.Second,
		RatePerSecond:   10,
		Burst:           20,
	}
}

// EmbedPipeline drains the chunk queue through the embedding provider.
// Workers are stateless: all coordination lives in the queue's claim
// semantics, so any number of processes can run workers safely.
type EmbedPipeline struct {
	config   PipelineConfig
	queue    driven.ChunkQueue
	embedder driven.EmbeddingService
	limiter  *rate.Limiter
	events   chan driving.PipelineEvent

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewEmbedPipeline creates a pipeline over the queue and provider.
func NewEmbedPipeline(config PipelineConfig, queue driven.ChunkQueue, embedder driven.EmbeddingService) *EmbedPipeline {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.ProviderTimeout <= 0 {
		config.ProviderTimeout = 30 * time.Second
	}

	limit := rate.Inf
	if config.RatePerSecond > 0 {
		limit = rate.Limit(config.RatePerSecond)
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}

	return &EmbedPipeline{
		config:   config,
		queue:    queue,
		embedder: embedder,
		limiter:  rate.NewLimiter(limit, burst),
		events:   make(chan driving.PipelineEvent, 64),
	}
}

// Events exposes the progress stream.
func (p *EmbedPipeline) Events() <-chan driving.PipelineEvent {
	return p.events
}

// Start launches the workers and the staleness sweeper, blocking until
// ctx is cancelled or Stop is called. Starting twice is a no-op.
func (p *EmbedPipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	if p.embedder == nil {
		p.mu.Unlock()
		return domain.ErrEmbeddingUnavailable
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.mu.Unlock()

	logger.Info("Embedding pipeline starting: %d workers, batch %d, model %s",
		p.config.Workers, p.config.BatchSize, p.embedder.ModelName())

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.workerLoop(ctx)
		}()
	}

	if p.config.StaleAfter > 0 && p.config.SweepInterval > 0 {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.sweepLoop(ctx)
		}()
	}

	<-ctx.Done()
	p.wg.Wait()

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// Stop shuts the workers down and waits for in-flight chunks.
func (p *EmbedPipeline) Stop() error {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	return nil
}

// RunOnce claims and processes a single batch.
func (p *EmbedPipeline) RunOnce(ctx context.Context) (int, error) {
	if p.embedder == nil {
		return 0, domain.ErrEmbeddingUnavailable
	}
	return p.processBatch(ctx)
}

// workerLoop polls the queue until ctx is cancelled.
func (p *EmbedPipeline) workerLoop(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		n, err := p.processBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("Embedding batch failed: %v", err)
		}

		// Drain continuously while there is work; idle on the ticker.
		if n > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sweepLoop periodically returns stale claims to pending.
func (p *EmbedPipeline) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(p.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.queue.ResetStale(ctx, p.config.StaleAfter)
			if err != nil {
				logger.Error("Stale claim sweep failed: %v", err)
				continue
			}
			if n > 0 {
				logger.Warn("Reset %d stale chunk claims", n)
				p.emit(driving.PipelineEvent{
					Kind:   driving.EventStaleReset,
					Detail: fmt.Sprintf("%d claims reset", n),
					At:     time.Now().UTC(),
				})
			}
		}
	}
}

// processBatch claims up to BatchSize chunks and embeds each one.
// Returns the number of chunks processed, successfully or not.
func (p *EmbedPipeline) processBatch(ctx context.Context) (int, error) {
	chunks, err := p.queue.Claim(ctx, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("claiming chunks: %w", err)
	}

	for i := range chunks {
		if ctx.Err() != nil {
			// Unprocessed claims go back via the staleness sweep.
			return i, ctx.Err()
		}
		p.processChunk(ctx, &chunks[i])
	}
	return len(chunks), nil
}

// processChunk embeds one claimed chunk and records the outcome.
func (p *EmbedPipeline) processChunk(ctx context.Context, chunk *domain.Chunk) {
	// Whitespace-only text has nothing to embed; it completes with no
	// vector so its documents can still reach indexed.
	if strings.TrimSpace(chunk.Text) == "" {
		if err := p.queue.MarkEmbedded(ctx, chunk.ID, nil, ""); err != nil {
			logger.Error("Marking empty chunk %s embedded: %v", chunk.ID, err)
			return
		}
		p.emit(driving.PipelineEvent{
			Kind:    driving.EventChunkEmbedded,
			ChunkID: chunk.ID,
			Detail:  "empty text, no vector",
			At:      time.Now().UTC(),
		})
		p.rollupDocuments(ctx, chunk.ID)
		return
	}

	vector, err := p.embed(ctx, chunk.Text)
	if err != nil {
		detail := err.Error()
		if markErr := p.queue.MarkFailed(ctx, chunk.ID, detail); markErr != nil {
			logger.Error("Marking chunk %s failed: %v", chunk.ID, markErr)
			return
		}
		logger.Warn("Chunk %s embedding failed: %v", chunk.ID, err)
		p.emit(driving.PipelineEvent{
			Kind:    driving.EventChunkFailed,
			ChunkID: chunk.ID,
			Detail:  detail,
			At:      time.Now().UTC(),
		})
		return
	}

	if err := p.queue.MarkEmbedded(ctx, chunk.ID, vector, p.embedder.ModelName()); err != nil {
		logger.Error("Marking chunk %s embedded: %v", chunk.ID, err)
		return
	}
	logger.Debug("Chunk %s embedded (%d dims)", chunk.ID, len(vector))
	p.emit(driving.PipelineEvent{
		Kind:    driving.EventChunkEmbedded,
		ChunkID: chunk.ID,
		At:      time.Now().UTC(),
	})
	p.rollupDocuments(ctx, chunk.ID)
}

// embed calls the provider under the shared rate limit and timeout.
func (p *EmbedPipeline) embed(ctx context.Context, text string) ([]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	callCtx := ctx
	if p.config.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.config.ProviderTimeout)
		defer cancel()
	}
	return p.embedder.Embed(callCtx, text)
}

// rollupDocuments advances every owning document that just became
// fully embedded.
func (p *EmbedPipeline) rollupDocuments(ctx context.Context, chunkID string) {
	docIDs, err := p.queue.DocumentsForChunk(ctx, chunkID)
	if err != nil {
		logger.Error("Listing documents for chunk %s: %v", chunkID, err)
		return
	}

	for _, docID := range docIDs {
		done, err := p.queue.MarkIndexedIfComplete(ctx, docID)
		if err != nil {
			logger.Error("Rolling up document %s: %v", docID, err)
			continue
		}
		if done {
			logger.Info("Document %s fully indexed", docID)
			p.emit(driving.PipelineEvent{
				Kind:       driving.EventDocIndexed,
				DocumentID: docID,
				At:         time.Now().UTC(),
			})
		}
	}
}

// emit publishes an event without ever blocking a worker.
func (p *EmbedPipeline) emit(ev driving.PipelineEvent) {
	select {
	case p.events <- ev:
	default:
	}
}
