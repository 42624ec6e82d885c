package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/haven-labs/haven/internal/core/domain"
	"github.com/haven-labs/haven/internal/core/ports/driven"
	"github.com/haven-labs/haven/internal/core/ports/driving"
	"github.com/haven-labs/haven/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

const (
	// defaultLimit caps results when the caller does not set one.
	defaultLimit = 20

	// candidateMultiplier oversamples each leg so document-level
	// aggregation and pagination still have enough material.
	candidateMultiplier = 4

	// recencyWeight and recencyHalfLife shape the monotonic decay
	// added to every combined score.
	recencyWeight   = 0.1
	recencyHalfLife = 30 * 24 * time.Hour

	// attachmentBoost is the fixed bonus for documents with attachments.
	attachmentBoost = 0.05

	// snippetRadius is how many characters of chunk text surround a
	// matched term in a highlight.
	snippetRadius = 60
)

// sourceTypeWeights break score ties deterministically. Unlisted
// source types weigh zero.
var sourceTypeWeights = map[string]float64{
	"email":   3,
	"message": 2,
	"note":    1,
}

// SearchService runs hybrid lexical/vector search over the active
// document population.
type SearchService struct {
	store    driven.CatalogStore
	lexical  driven.SearchEngine
	vectors  driven.VectorIndex
	embedder driven.EmbeddingService
}

// NewSearchService creates a search service. vectors and embedder are
// optional; without both the service is lexical-only and every
// response reports Degraded.
func NewSearchService(
	store driven.CatalogStore,
	lexical driven.SearchEngine,
	vectors driven.VectorIndex,
	embedder driven.EmbeddingService,
) *SearchService {
	return &SearchService{
		store:    store,
		lexical:  lexical,
		vectors:  vectors,
		embedder: embedder,
	}
}

// chunkScore accumulates per-leg scores for one chunk/document pair.
type chunkScore struct {
	chunkID    string
	documentID string
	lexical    float64
	vector     float64
}

// Search runs both legs, merges by chunk, aggregates per document and
// ranks. A failed or absent vector leg degrades to lexical-only.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}

	candidates := (opts.Limit + opts.Offset) * candidateMultiplier

	lexHits, vecHits, degraded, err := s.runLegs(ctx, query, opts.Filter, candidates)
	if err != nil {
		return nil, err
	}

	merged := mergeLegs(lexHits, vecHits)
	hits, err := s.rankDocuments(ctx, merged, query)
	if err != nil {
		return nil, err
	}

	resp := &domain.SearchResponse{
		Facets:   facetRollup(hits),
		Degraded: degraded,
	}
	resp.Timeline = timelineRollup(hits)

	// Pagination happens after the rollups so facets and timeline
	// describe the whole matched set, not one page of it.
	if opts.Offset >= len(hits) {
		resp.Hits = []domain.SearchHit{}
		return resp, nil
	}
	hits = hits[opts.Offset:]
	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}

	if opts.Filter.ThreadID != "" && opts.ContextWindow > 0 {
		if err := s.attachContext(ctx, hits, opts.Filter.ThreadID, opts.ContextWindow); err != nil {
			return nil, err
		}
	}

	resp.Hits = hits
	return resp, nil
}

// runLegs issues the lexical and vector searches concurrently.
// degraded reports that one leg was dropped from the answer.
func (s *SearchService) runLegs(
	ctx context.Context, query string, filter domain.SearchFilter, limit int,
) ([]driven.LexicalHit, []driven.VectorHit, bool, error) {
	var lexHits []driven.LexicalHit
	var vecHits []driven.VectorHit
	var lexErr, vecErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		lexHits, lexErr = s.lexical.Search(ctx, query, filter, limit)
	}()

	go func() {
		defer wg.Done()
		vecHits, vecErr = s.vectorLeg(ctx, query, filter, limit)
	}()

	wg.Wait()

	if vecErr != nil {
		logger.Warn("Vector leg unavailable, degrading to lexical-only: %v", vecErr)
	}

	if lexErr != nil {
		if vecErr != nil {
			return nil, nil, false, fmt.Errorf("%w: lexical=%v, vector=%v",
				domain.ErrSearchUnavailable, lexErr, vecErr)
		}
		// Vector-only is still degraded: recall depends on which
		// chunks have been embedded so far.
		logger.Warn("Lexical leg failed, using vector results only: %v", lexErr)
		return nil, vecHits, true, nil
	}

	if vecErr != nil {
		return lexHits, nil, true, nil
	}
	return lexHits, vecHits, false, nil
}

// vectorLeg embeds the query and searches the vector index.
func (s *SearchService) vectorLeg(
	ctx context.Context, query string, filter domain.SearchFilter, limit int,
) ([]driven.VectorHit, error) {
	if s.embedder == nil || s.vectors == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", domain.ErrEmbeddingUnavailable, err)
	}
	return s.vectors.Search(ctx, vec, filter, limit)
}

// mergeLegs joins per-leg hits by chunk/document pair. Lexical scores
// are normalised to [0, 1] against the best lexical hit; vector
// similarities already live in that range.
func mergeLegs(lexHits []driven.LexicalHit, vecHits []driven.VectorHit) map[string]*chunkScore {
	maxLex := 0.0
	for _, h := range lexHits {
		if h.Score > maxLex {
			maxLex = h.Score
		}
	}

	merged := make(map[string]*chunkScore, len(lexHits)+len(vecHits))
	for _, h := range lexHits {
		key := h.ChunkID + "\x00" + h.DocumentID
		score := 0.0
		if maxLex > 0 {
			score = h.Score / maxLex
		}
		merged[key] = &chunkScore{
			chunkID:    h.ChunkID,
			documentID: h.DocumentID,
			lexical:    score,
		}
	}
	for _, h := range vecHits {
		key := h.ChunkID + "\x00" + h.DocumentID
		cs, ok := merged[key]
		if !ok {
			cs = &chunkScore{chunkID: h.ChunkID, documentID: h.DocumentID}
			merged[key] = cs
		}
		cs.vector = h.Similarity
	}
	return merged
}

// rankDocuments aggregates chunk scores per document by best chunk,
// hydrates rows, applies recency and attachment boosts and sorts.
func (s *SearchService) rankDocuments(
	ctx context.Context, merged map[string]*chunkScore, query string,
) ([]domain.SearchHit, error) {
	best := make(map[string]*chunkScore)
	for _, cs := range merged {
		cur, ok := best[cs.documentID]
		if !ok || cs.lexical+cs.vector > cur.lexical+cur.vector {
			best[cs.documentID] = cs
		}
	}

	now := time.Now().UTC()
	hits := make([]domain.SearchHit, 0, len(best))
	for docID, cs := range best {
		doc, err := s.store.GetDocument(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("hydrating document %s: %w", docID, err)
		}
		if !doc.ActiveVersion {
			continue // superseded since the leg queries ran
		}

		chunk, err := s.store.GetChunk(ctx, cs.chunkID)
		if err != nil {
			return nil, fmt.Errorf("hydrating chunk %s: %w", cs.chunkID, err)
		}

		score := cs.lexical + cs.vector + recencyDecay(now, doc.ContentTimestamp)
		if doc.HasAttachments {
			score += attachmentBoost
		}

		hits = append(hits, domain.SearchHit{
			Document:     *doc,
			Chunk:        *chunk,
			Score:        score,
			LexicalScore: cs.lexical,
			VectorScore:  cs.vector,
			Highlights:   highlightSnippets(chunk.Text, query),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		wi := sourceTypeWeights[hits[i].Document.SourceType]
		wj := sourceTypeWeights[hits[j].Document.SourceType]
		if wi != wj {
			return wi > wj
		}
		return hits[i].Document.ID < hits[j].Document.ID
	})
	return hits, nil
}

// recencyDecay returns a bonus that shrinks monotonically with content
// age. Half of the weight is gone after one half-life.
func recencyDecay(now, contentTS time.Time) float64 {
	age := now.Sub(contentTS)
	if age < 0 {
		age = 0
	}
	return recencyWeight * math.Exp2(-float64(age)/float64(recencyHalfLife))
}

// attachContext loads thread neighbours for each hit as non-scored
// context documents.
func (s *SearchService) attachContext(
	ctx context.Context, hits []domain.SearchHit, threadID string, window int,
) error {
	for i := range hits {
		neighbours, err := s.store.ListThreadNeighbours(
			ctx, threadID, hits[i].Document.ContentTimestamp, window)
		if err != nil {
			return fmt.Errorf("loading thread context: %w", err)
		}
		hits[i].Context = neighbours
	}
	return nil
}

// highlightSnippets extracts a snippet around each query term present
// in the chunk text, one per term, capped at three.
func highlightSnippets(text, query string) []string {
	lower := strings.ToLower(text)
	var snippets []string

	for _, term := range strings.Fields(strings.ToLower(query)) {
		idx := strings.Index(lower, term)
		if idx < 0 {
			continue
		}

		start := idx - snippetRadius
		if start < 0 {
			start = 0
		}
		end := idx + len(term) + snippetRadius
		if end > len(text) {
			end = len(text)
		}

		snippet := strings.TrimSpace(text[start:end])
		if start > 0 {
			snippet = "…" + snippet
		}
		if end < len(text) {
			snippet += "…"
		}
		snippets = append(snippets, snippet)

		if len(snippets) == 3 {
			break
		}
	}
	return snippets
}

// facetRollup tallies the full ranked hit set for faceted display.
func facetRollup(hits []domain.SearchHit) domain.FacetCounts {
	facets := domain.FacetCounts{BySourceType: make(map[string]int)}
	for _, h := range hits {
		facets.BySourceType[h.Document.SourceType]++
		if h.Document.HasAttachments {
			facets.WithAttachments++
		}
	}
	return facets
}

// timelineRollup bounds the hit set by content timestamp. Nil when
// there are no hits.
func timelineRollup(hits []domain.SearchHit) *domain.Timeline {
	if len(hits) == 0 {
		return nil
	}
	tl := &domain.Timeline{
		Earliest: hits[0].Document.ContentTimestamp,
		Latest:   hits[0].Document.ContentTimestamp,
	}
	for _, h := range hits[1:] {
		ts := h.Document.ContentTimestamp
		if ts.Before(tl.Earliest) {
			tl.Earliest = ts
		}
		if ts.After(tl.Latest) {
			tl.Latest = ts
		}
	}
	return tl
}
