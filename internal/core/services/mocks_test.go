package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/haven-labs/haven/internal/core/domain"
	"github.com/haven-labs/haven/internal/core/ports/driven"
)

// memStore is an in-memory CatalogStore + ChunkQueue. Transactions are
// serialised under one mutex, which is enough to exercise the
// duplicate-key race handling.
type memStore struct {
	mu sync.Mutex

	submissions map[string]*domain.Submission // by idempotency key
	subsByID    map[string]*domain.Submission
	documents   map[string]*domain.Document
	files       map[string]*domain.File // by content hash
	fileLinks   []domain.FileLink
	chunks      map[string]*domain.Chunk
	chunkByHash map[string]string // text hash -> chunk id
	chunkLinks  []domain.ChunkLink
	threads     map[string]*domain.Thread
	threadByExt map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		submissions: make(map[string]*domain.Submission),
		subsByID:    make(map[string]*domain.Submission),
		documents:   make(map[string]*domain.Document),
		files:       make(map[string]*domain.File),
		chunks:      make(map[string]*domain.Chunk),
		chunkByHash: make(map[string]string),
		threads:     make(map[string]*domain.Thread),
		threadByExt: make(map[string]string),
	}
}

var (
	_ driven.CatalogStore = (*memStore)(nil)
	_ driven.ChunkQueue   = (*memStore)(nil)
)

func (m *memStore) WithTx(_ context.Context, fn func(tx driven.CatalogTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memTx{store: m})
}

func (m *memStore) GetSubmissionByKey(_ context.Context, key string) (*domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.submissions[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *memStore) GetSubmission(_ context.Context, id string) (*domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subsByID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *memStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *memStore) GetActiveVersion(_ context.Context, externalID string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeVersionLocked(externalID)
}

func (m *memStore) activeVersionLocked(externalID string) (*domain.Document, error) {
	for _, doc := range m.documents {
		if doc.ExternalID == externalID && doc.ActiveVersion {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) GetFileByHash(_ context.Context, contentHash string) (*domain.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[contentHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memStore) ListFileLinks(_ context.Context, documentID string) ([]domain.FileLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fileLinksLocked(documentID), nil
}

func (m *memStore) fileLinksLocked(documentID string) []domain.FileLink {
	var links []domain.FileLink
	for _, l := range m.fileLinks {
		if l.DocumentID == documentID {
			links = append(links, l)
		}
	}
	return links
}

func (m *memStore) GetThread(_ context.Context, id string) (*domain.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	th, ok := m.threads[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *th
	return &cp, nil
}

func (m *memStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) CountChunksByStatus(_ context.Context, documentID string) (domain.ChunkStatusCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(domain.ChunkStatusCounts)
	for _, link := range m.chunkLinks {
		if link.DocumentID != documentID {
			continue
		}
		if c, ok := m.chunks[link.ChunkID]; ok {
			counts[c.Status]++
		}
	}
	return counts, nil
}

func (m *memStore) ListThreadNeighbours(
	_ context.Context, threadID string, ts time.Time, window int,
) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var before, after []domain.Document
	for _, doc := range m.documents {
		if doc.ThreadID != threadID || !doc.ActiveVersion {
			continue
		}
		switch {
		case doc.ContentTimestamp.Before(ts):
			before = append(before, *doc)
		case doc.ContentTimestamp.After(ts):
			after = append(after, *doc)
		}
	}

	sort.Slice(before, func(i, j int) bool { return before[i].ContentTimestamp.Before(before[j].ContentTimestamp) })
	sort.Slice(after, func(i, j int) bool { return after[i].ContentTimestamp.Before(after[j].ContentTimestamp) })

	if len(before) > window {
		before = before[len(before)-window:]
	}
	if len(after) > window {
		after = after[:window]
	}
	return append(before, after...), nil
}

// ==================== ChunkQueue ====================

func (m *memStore) Claim(_ context.Context, limit int) ([]domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []*domain.Chunk
	for _, c := range m.chunks {
		if c.Status == domain.EmbeddingPending {
			pending = append(pending, c)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	if len(pending) > limit {
		pending = pending[:limit]
	}

	now := time.Now().UTC()
	claimed := make([]domain.Chunk, 0, len(pending))
	for _, c := range pending {
		c.Status = domain.EmbeddingProcessing
		c.ClaimedAt = &now
		claimed = append(claimed, *c)
	}
	return claimed, nil
}

func (m *memStore) MarkEmbedded(_ context.Context, chunkID string, vector []float32, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chunks[chunkID]
	if !ok || c.Status != domain.EmbeddingProcessing {
		return domain.ErrNotFound
	}
	c.Status = domain.EmbeddingEmbedded
	c.Embedding = vector
	c.Model = model
	c.ClaimedAt = nil
	c.ErrorDetails = ""
	return nil
}

func (m *memStore) MarkFailed(_ context.Context, chunkID string, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chunks[chunkID]
	if !ok || c.Status != domain.EmbeddingProcessing {
		return domain.ErrNotFound
	}
	c.Status = domain.EmbeddingFailed
	c.ErrorDetails = detail
	c.ClaimedAt = nil
	return nil
}

func (m *memStore) ResetStale(_ context.Context, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	n := 0
	for _, c := range m.chunks {
		if c.Status == domain.EmbeddingProcessing && c.ClaimedAt != nil && c.ClaimedAt.Before(cutoff) {
			c.Status = domain.EmbeddingPending
			c.ClaimedAt = nil
			n++
		}
	}
	return n, nil
}

func (m *memStore) ResetFailed(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.chunks {
		if c.Status == domain.EmbeddingFailed {
			c.Status = domain.EmbeddingPending
			c.ErrorDetails = ""
			n++
		}
	}
	return n, nil
}

func (m *memStore) DocumentsForChunk(_ context.Context, chunkID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, link := range m.chunkLinks {
		if link.ChunkID != chunkID {
			continue
		}
		if doc, ok := m.documents[link.DocumentID]; ok && doc.ActiveVersion {
			ids = append(ids, link.DocumentID)
		}
	}
	return ids, nil
}

func (m *memStore) MarkIndexedIfComplete(_ context.Context, documentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[documentID]
	if !ok || doc.Status == domain.StatusIndexed {
		return false, nil
	}
	for _, link := range m.chunkLinks {
		if link.DocumentID != documentID {
			continue
		}
		if c, ok := m.chunks[link.ChunkID]; ok && c.Status != domain.EmbeddingEmbedded {
			return false, nil
		}
	}
	doc.Status = domain.StatusIndexed
	return true, nil
}

func (m *memStore) PendingCount(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.chunks {
		if c.Status == domain.EmbeddingPending {
			n++
		}
	}
	return n, nil
}

// ==================== Transaction ====================

// memTx applies writes directly; the store mutex held by WithTx keeps
// transactions serialised.
type memTx struct {
	store *memStore
}

var _ driven.CatalogTx = (*memTx)(nil)

func (t *memTx) GetSubmissionByKey(key string) (*domain.Submission, error) {
	sub, ok := t.store.submissions[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (t *memTx) InsertSubmission(sub *domain.Submission) error {
	if _, exists := t.store.submissions[sub.IdempotencyKey]; exists {
		return domain.ErrAlreadyExists
	}
	cp := *sub
	t.store.submissions[sub.IdempotencyKey] = &cp
	t.store.subsByID[sub.ID] = &cp
	return nil
}

func (t *memTx) GetActiveVersion(externalID string) (*domain.Document, error) {
	return t.store.activeVersionLocked(externalID)
}

func (t *memTx) InsertDocumentVersion(doc *domain.Document) error {
	if doc.PreviousVersionID != nil {
		if prev, ok := t.store.documents[*doc.PreviousVersionID]; ok {
			prev.ActiveVersion = false
		}
	}
	for _, existing := range t.store.documents {
		if existing.ExternalID == doc.ExternalID && existing.ActiveVersion && doc.ActiveVersion {
			return domain.ErrAlreadyExists
		}
	}
	cp := *doc
	t.store.documents[doc.ID] = &cp
	return nil
}

func (t *memTx) DeactivateDocument(id string) error {
	doc, ok := t.store.documents[id]
	if !ok || !doc.ActiveVersion {
		return domain.ErrNotFound
	}
	doc.ActiveVersion = false
	return nil
}

func (t *memTx) SetDocumentStatus(id string, status domain.DocumentStatus, extractionFailed, enrichmentFailed bool) error {
	doc, ok := t.store.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = status
	doc.ExtractionFailed = extractionFailed
	doc.EnrichmentFailed = enrichmentFailed
	return nil
}

func (t *memTx) GetFileByHash(contentHash string) (*domain.File, error) {
	f, ok := t.store.files[contentHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (t *memTx) InsertFile(f *domain.File) error {
	if _, exists := t.store.files[f.ContentHash]; exists {
		return domain.ErrAlreadyExists
	}
	cp := *f
	t.store.files[f.ContentHash] = &cp
	return nil
}

func (t *memTx) LinkFile(link domain.FileLink) error {
	for _, l := range t.store.fileLinks {
		if l == link {
			return nil
		}
	}
	t.store.fileLinks = append(t.store.fileLinks, link)
	return nil
}

func (t *memTx) UnlinkFiles(documentID string) error {
	kept := t.store.fileLinks[:0]
	for _, l := range t.store.fileLinks {
		if l.DocumentID != documentID {
			kept = append(kept, l)
		}
	}
	t.store.fileLinks = kept
	return nil
}

func (t *memTx) ListFileLinks(documentID string) ([]domain.FileLink, error) {
	return t.store.fileLinksLocked(documentID), nil
}

func (t *memTx) GetChunkByTextHash(textHash string) (*domain.Chunk, error) {
	id, ok := t.store.chunkByHash[textHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t.store.chunks[id]
	return &cp, nil
}

func (t *memTx) InsertChunk(c *domain.Chunk) error {
	if _, exists := t.store.chunkByHash[c.TextHash]; exists {
		return domain.ErrAlreadyExists
	}
	cp := *c
	t.store.chunks[c.ID] = &cp
	t.store.chunkByHash[c.TextHash] = c.ID
	return nil
}

func (t *memTx) LinkChunk(link domain.ChunkLink) error {
	for i, l := range t.store.chunkLinks {
		if l.ChunkID == link.ChunkID && l.DocumentID == link.DocumentID {
			t.store.chunkLinks[i] = link
			return nil
		}
	}
	t.store.chunkLinks = append(t.store.chunkLinks, link)
	return nil
}

func (t *memTx) UnlinkChunks(documentID string) error {
	kept := t.store.chunkLinks[:0]
	for _, l := range t.store.chunkLinks {
		if l.DocumentID != documentID {
			kept = append(kept, l)
		}
	}
	t.store.chunkLinks = kept
	return nil
}

func (t *memTx) GetThreadByExternalID(externalID string) (*domain.Thread, error) {
	id, ok := t.store.threadByExt[externalID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t.store.threads[id]
	return &cp, nil
}

func (t *memTx) UpsertThread(th *domain.Thread) error {
	if id, ok := t.store.threadByExt[th.ExternalID]; ok {
		existing := t.store.threads[id]
		if th.Title != "" {
			existing.Title = th.Title
		}
		existing.Participants = th.Participants
		if th.FirstMessageAt.Before(existing.FirstMessageAt) {
			existing.FirstMessageAt = th.FirstMessageAt
		}
		if th.LastMessageAt.After(existing.LastMessageAt) {
			existing.LastMessageAt = th.LastMessageAt
		}
		existing.UpdatedAt = th.UpdatedAt
		return nil
	}
	cp := *th
	t.store.threads[th.ID] = &cp
	t.store.threadByExt[th.ExternalID] = th.ID
	return nil
}

// ==================== Provider mocks ====================

// mockEmbedder is a deterministic EmbeddingService.
type mockEmbedder struct {
	mu    sync.Mutex
	dims  int
	err   error
	calls int
}

var _ driven.EmbeddingService = (*mockEmbedder)(nil)

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims}
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	// Deterministic vector from the text bytes.
	vec := make([]float32, m.dims)
	for i, b := range []byte(text) {
		vec[i%m.dims] += float32(b) / 255
	}
	return vec, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int              { return m.dims }
func (m *mockEmbedder) ModelName() string            { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return m.err }
func (m *mockEmbedder) Close() error                 { return nil }

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockSearchEngine returns canned lexical hits.
type mockSearchEngine struct {
	hits []driven.LexicalHit
	err  error
}

var _ driven.SearchEngine = (*mockSearchEngine)(nil)

func (m *mockSearchEngine) Search(
	_ context.Context, _ string, _ domain.SearchFilter, limit int,
) ([]driven.LexicalHit, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.hits) > limit {
		return m.hits[:limit], nil
	}
	return m.hits, nil
}

// mockVectorIndex returns canned vector hits.
type mockVectorIndex struct {
	hits []driven.VectorHit
	err  error
}

var _ driven.VectorIndex = (*mockVectorIndex)(nil)

func (m *mockVectorIndex) Upsert(_ context.Context, _ string, _ []float32) error { return nil }

func (m *mockVectorIndex) Search(
	_ context.Context, _ []float32, _ domain.SearchFilter, k int,
) ([]driven.VectorHit, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.hits) > k {
		return m.hits[:k], nil
	}
	return m.hits, nil
}

// mockEnricher is a canned EnrichmentService counting its calls.
type mockEnricher struct {
	mu     sync.Mutex
	result *domain.Enrichment
	err    error
	calls  int
}

var _ driven.EnrichmentService = (*mockEnricher)(nil)

func (m *mockEnricher) Enrich(_ context.Context, _ []byte, _ string) (*domain.Enrichment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &domain.Enrichment{Caption: "mock caption"}, nil
}

func (m *mockEnricher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockBlobStore keeps blobs in a map keyed by content hash.
type mockBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	err   error
}

var _ driven.BlobStore = (*mockBlobStore)(nil)

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{blobs: make(map[string][]byte)}
}

func (m *mockBlobStore) Put(_ context.Context, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	key := domain.HashBytes(data)
	m.blobs[key] = data
	return key, nil
}

func (m *mockBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

var errProviderDown = errors.New("provider down")
