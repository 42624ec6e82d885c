// Package http provides an enrichment service adapter that calls an
// external HTTP enrichment endpoint. The endpoint runs OCR, captioning
// and entity extraction; the catalog treats it as opaque.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/haven-labs/haven/internal/core/domain"
	"github.com/haven-labs/haven/internal/core/ports/driven"
)

// Ensure EnrichmentService implements the interface.
var _ driven.EnrichmentService = (*EnrichmentService)(nil)

// DefaultTimeout bounds one enrichment call.
const DefaultTimeout = 60 * time.Second

// Config holds configuration for the HTTP enrichment service.
type Config struct {
	// BaseURL is the enrichment endpoint base URL (required).
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration
}

// EnrichmentService derives enrichment payloads over HTTP.
type EnrichmentService struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// enrichRequest is the wire format sent to the endpoint. Data is
// base64-encoded by the JSON marshaller.
type enrichRequest struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
}

// enrichResponse is the wire format returned by the endpoint.
type enrichResponse struct {
	OCRText  string   `json:"ocr_text"`
	Caption  string   `json:"caption"`
	Entities []string `json:"entities"`
	Error    string   `json:"error,omitempty"`
}

// NewEnrichmentService creates an HTTP enrichment service.
func NewEnrichmentService(cfg Config) (*EnrichmentService, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("enrichment: base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &EnrichmentService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}, nil
}

// Enrich analyses the bytes and returns the enrichment payload.
func (s *EnrichmentService) Enrich(ctx context.Context, data []byte, mimeType string) (*domain.Enrichment, error) {
	jsonBody, err := json.Marshal(enrichRequest{Data: data, MimeType: mimeType})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/v1/enrich",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEnrichmentUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("%w: status %d", domain.ErrEnrichmentUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrEnrichmentUnavailable, resp.StatusCode, string(body))
	}

	var enrichResp enrichResponse
	if err := json.NewDecoder(resp.Body).Decode(&enrichResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if enrichResp.Error != "" {
		return nil, fmt.Errorf("enrichment error: %s", enrichResp.Error)
	}

	return &domain.Enrichment{
		OCRText:  enrichResp.OCRText,
		Caption:  enrichResp.Caption,
		Entities: enrichResp.Entities,
	}, nil
}
