package domain

import "time"

// SearchFilter narrows the searched document population. The zero
// value matches every active document.
type SearchFilter struct {
	// SourceType restricts hits to one producing source.
	SourceType string `json:"source_type,omitempty"`

	// HasAttachments, when set, restricts by the attachment facet.
	HasAttachments *bool `json:"has_attachments,omitempty"`

	// Person restricts to documents listing this participant identifier.
	Person string `json:"person,omitempty"`

	// ThreadID restricts to one thread.
	ThreadID string `json:"thread_id,omitempty"`

	// StartDate and EndDate bound the content timestamp, inclusive.
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// SearchOptions configures a search query.
type SearchOptions struct {
	// Limit is the maximum number of scored hits (default 20).
	Limit int

	// Offset is the number of hits to skip.
	Offset int

	// Filter narrows the searched population.
	Filter SearchFilter

	// ContextWindow, with Filter.ThreadID set, attaches this many
	// neighbouring thread documents on each side of a hit as
	// non-scored context. Context does not count toward Limit.
	ContextWindow int
}

// SearchHit is a single scored result.
type SearchHit struct {
	// Document is the matched active version.
	Document Document

	// Chunk is the best-scoring chunk that matched.
	Chunk Chunk

	// Score is the combined lexical + vector + boost score.
	Score float64

	// LexicalScore and VectorScore are the per-leg contributions.
	LexicalScore float64
	VectorScore  float64

	// Highlights contains snippets with matched terms.
	Highlights []string

	// Context holds surrounding thread documents, non-scored.
	Context []Document
}

// FacetCounts summarises the hit set for faceted display.
type FacetCounts struct {
	// BySourceType counts hits per source type.
	BySourceType map[string]int `json:"by_source_type"`

	// WithAttachments counts hits carrying attachments.
	WithAttachments int `json:"with_attachments"`
}

// Timeline bounds the hit set by content timestamp.
type Timeline struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// SearchResponse is the full answer to a query.
type SearchResponse struct {
	Hits   []SearchHit `json:"hits"`
	Facets FacetCounts `json:"facets"`

	// Timeline is present when there is at least one hit.
	Timeline *Timeline `json:"timeline,omitempty"`

	// Degraded is set when the vector leg was unavailable and the
	// response is lexical-only.
	Degraded bool `json:"degraded"`
}
