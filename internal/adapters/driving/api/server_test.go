package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-labs/haven/internal/core/domain"
)

type mockCatalog struct {
	ingestResult *domain.IngestResult
	ingestErr    error
	batchResult  *domain.BatchResult
	report       *domain.StatusReport
	deleteErr    error
	lastRequest  *domain.IngestRequest
}

func (m *mockCatalog) Ingest(_ context.Context, req *domain.IngestRequest) (*domain.IngestResult, error) {
	m.lastRequest = req
	return m.ingestResult, m.ingestErr
}

func (m *mockCatalog) IngestBatch(_ context.Context, reqs []*domain.IngestRequest) (*domain.BatchResult, error) {
	if m.batchResult == nil {
		return nil, m.ingestErr
	}
	return m.batchResult, nil
}

func (m *mockCatalog) Version(_ context.Context, documentID string, _ *domain.VersionPatch) (*domain.IngestResult, error) {
	if m.ingestErr != nil {
		return nil, m.ingestErr
	}
	return m.ingestResult, nil
}

func (m *mockCatalog) Delete(_ context.Context, _ string) error {
	return m.deleteErr
}

func (m *mockCatalog) SubmissionStatus(_ context.Context, _ string) (*domain.StatusReport, error) {
	if m.report == nil {
		return nil, domain.ErrNotFound
	}
	return m.report, nil
}

type mockSearch struct {
	resp *domain.SearchResponse
	err  error
}

func (m *mockSearch) Search(_ context.Context, _ string, _ domain.SearchOptions) (*domain.SearchResponse, error) {
	return m.resp, m.err
}

func newTestServer(catalog *mockCatalog, search *mockSearch) *Server {
	return NewServer(catalog, search, nil, "test")
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&mockCatalog{}, &mockSearch{})

	rec := doRequest(t, srv, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
}

func TestIngest_Created(t *testing.T) {
	catalog := &mockCatalog{
		ingestResult: &domain.IngestResult{
			SubmissionID:  "sub-1",
			DocumentID:    "doc-1",
			ExternalID:    "msg-001",
			VersionNumber: 1,
		},
	}
	srv := newTestServer(catalog, &mockSearch{})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/ingest", domain.IngestRequest{
		SourceType:     "email",
		ExternalID:     "msg-001",
		IdempotencyKey: "key-1",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, catalog.lastRequest)
	assert.Equal(t, "msg-001", catalog.lastRequest.ExternalID)
}

func TestIngest_DuplicateIsOK(t *testing.T) {
	catalog := &mockCatalog{
		ingestResult: &domain.IngestResult{DocumentID: "doc-1", Duplicate: true},
	}
	srv := newTestServer(catalog, &mockSearch{})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/ingest", domain.IngestRequest{
		ExternalID: "msg-001", IdempotencyKey: "key-1",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIngest_ValidationError(t *testing.T) {
	catalog := &mockCatalog{
		ingestErr: fmt.Errorf("%w: external_id is required", domain.ErrInvalidInput),
	}
	srv := newTestServer(catalog, &mockSearch{})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/ingest", domain.IngestRequest{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "external_id")
}

func TestIngest_MalformedBody(t *testing.T) {
	srv := newTestServer(&mockCatalog{}, &mockSearch{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestBatch(t *testing.T) {
	catalog := &mockCatalog{
		batchResult: &domain.BatchResult{
			BatchKey:  "batch-key",
			Status:    domain.BatchPartial,
			Succeeded: 1,
			Failed:    1,
		},
	}
	srv := newTestServer(catalog, &mockSearch{})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/ingest/batch", []domain.IngestRequest{
		{ExternalID: "a", IdempotencyKey: "k1"},
		{ExternalID: "b", IdempotencyKey: "k2"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
}

func TestVersion(t *testing.T) {
	catalog := &mockCatalog{
		ingestResult: &domain.IngestResult{DocumentID: "doc-1", VersionNumber: 2},
	}
	srv := newTestServer(catalog, &mockSearch{})

	text := "updated"
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/documents/doc-1/version", domain.VersionPatch{Text: &text})

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestVersion_NotActive(t *testing.T) {
	catalog := &mockCatalog{ingestErr: domain.ErrNotActive}
	srv := newTestServer(catalog, &mockSearch{})

	text := "updated"
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/documents/doc-1/version", domain.VersionPatch{Text: &text})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDelete(t *testing.T) {
	srv := newTestServer(&mockCatalog{}, &mockSearch{})

	rec := doRequest(t, srv, http.MethodDelete, "/api/v1/documents/doc-1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDelete_NotFound(t *testing.T) {
	srv := newTestServer(&mockCatalog{deleteErr: domain.ErrNotFound}, &mockSearch{})

	rec := doRequest(t, srv, http.MethodDelete, "/api/v1/documents/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmissionStatus(t *testing.T) {
	catalog := &mockCatalog{
		report: &domain.StatusReport{
			DocumentID: "doc-1",
			Status:     domain.StatusIndexed,
			ChunkCounts: domain.ChunkStatusCounts{
				domain.EmbeddingEmbedded: 3,
			},
		},
	}
	srv := newTestServer(catalog, &mockSearch{})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/submissions/doc-1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "indexed")
}

func TestSubmissionStatus_NotFound(t *testing.T) {
	srv := newTestServer(&mockCatalog{}, &mockSearch{})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/submissions/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearch(t *testing.T) {
	search := &mockSearch{
		resp: &domain.SearchResponse{
			Hits: []domain.SearchHit{
				{Document: domain.Document{ID: "doc-1", ExternalID: "msg-001"}, Score: 0.9},
			},
			Facets: domain.FacetCounts{BySourceType: map[string]int{"email": 1}},
		},
	}
	srv := newTestServer(&mockCatalog{}, search)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/search", searchRequest{Query: "budget"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "msg-001")
}

func TestSearch_EmptyQuery(t *testing.T) {
	search := &mockSearch{err: fmt.Errorf("%w: query is required", domain.ErrInvalidInput)}
	srv := newTestServer(&mockCatalog{}, search)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/search", searchRequest{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch_Unavailable(t *testing.T) {
	search := &mockSearch{err: domain.ErrSearchUnavailable}
	srv := newTestServer(&mockCatalog{}, search)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/search", searchRequest{Query: "q"})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
