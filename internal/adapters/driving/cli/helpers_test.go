package cli

import (
	"context"
	"errors"
	"time"

	"github.com/haven-labs/haven/internal/core/domain"
	"github.com/haven-labs/haven/internal/core/ports/driving"
)

// setupTestServices swaps the package services for mocks and returns a
// cleanup restoring the previous state.
func setupTestServices() func() {
	oldCatalog, oldSearch, oldPipeline := catalogService, searchService, embedPipeline

	catalogService = &mockCatalogService{}
	searchService = &mockSearchService{}
	embedPipeline = &mockPipeline{}

	return func() {
		catalogService = oldCatalog
		searchService = oldSearch
		embedPipeline = oldPipeline
	}
}

type mockCatalogService struct {
	lastIngest *domain.IngestRequest
	ingestErr  error
	deleted    []string
}

func (m *mockCatalogService) Ingest(_ context.Context, req *domain.IngestRequest) (*domain.IngestResult, error) {
	m.lastIngest = req
	if m.ingestErr != nil {
		return nil, m.ingestErr
	}
	return &domain.IngestResult{
		SubmissionID:  "sub-1",
		DocumentID:    "doc-1",
		ExternalID:    req.ExternalID,
		VersionNumber: 1,
		Status:        domain.StatusEnriched,
	}, nil
}

func (m *mockCatalogService) IngestBatch(ctx context.Context, reqs []*domain.IngestRequest) (*domain.BatchResult, error) {
	batch := &domain.BatchResult{Status: domain.BatchCompleted}
	keys := make([]string, 0, len(reqs))
	for _, req := range reqs {
		keys = append(keys, req.IdempotencyKey)
		result, err := m.Ingest(ctx, req)
		if err != nil {
			batch.Failed++
			batch.Items = append(batch.Items, domain.BatchItemResult{Error: err.Error()})
			continue
		}
		batch.Succeeded++
		batch.Items = append(batch.Items, domain.BatchItemResult{Result: result})
	}
	batch.BatchKey = domain.BatchKey(keys)
	if batch.Failed > 0 {
		batch.Status = domain.BatchPartial
	}
	return batch, nil
}

func (m *mockCatalogService) Version(_ context.Context, documentID string, _ *domain.VersionPatch) (*domain.IngestResult, error) {
	return &domain.IngestResult{DocumentID: documentID, VersionNumber: 2}, nil
}

func (m *mockCatalogService) Delete(_ context.Context, documentID string) error {
	m.deleted = append(m.deleted, documentID)
	return nil
}

func (m *mockCatalogService) SubmissionStatus(_ context.Context, ref string) (*domain.StatusReport, error) {
	if ref == "missing" {
		return nil, domain.ErrNotFound
	}
	return &domain.StatusReport{
		DocumentID:    "doc-1",
		ExternalID:    "msg-001",
		VersionNumber: 1,
		Status:        domain.StatusIndexed,
		ChunkCounts: domain.ChunkStatusCounts{
			domain.EmbeddingEmbedded: 2,
		},
	}, nil
}

type mockSearchService struct {
	err error
}

func (m *mockSearchService) Search(_ context.Context, query string, _ domain.SearchOptions) (*domain.SearchResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return &domain.SearchResponse{
		Hits: []domain.SearchHit{
			{
				Document: domain.Document{
					ID:               "doc-1",
					ExternalID:       "msg-001",
					SourceType:       "email",
					ContentTimestamp: now,
				},
				Score:      0.92,
				Highlights: []string{"a matching snippet"},
			},
		},
		Facets:   domain.FacetCounts{BySourceType: map[string]int{"email": 1}},
		Timeline: &domain.Timeline{Earliest: now, Latest: now},
	}, nil
}

type mockPipeline struct {
	events chan driving.PipelineEvent
}

func (m *mockPipeline) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (m *mockPipeline) Stop() error { return nil }

func (m *mockPipeline) RunOnce(_ context.Context) (int, error) {
	return 3, nil
}

func (m *mockPipeline) Events() <-chan driving.PipelineEvent {
	if m.events == nil {
		m.events = make(chan driving.PipelineEvent)
	}
	return m.events
}

var errServiceDown = errors.New("service down")
