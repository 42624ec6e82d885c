package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// HashBytes returns the hex-encoded SHA-256 digest of b. It is the
// content hash used for file dedup and change detection.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashText returns the content hash of a text segment.
func HashText(s string) string {
	return HashBytes([]byte(s))
}

// Attachment is a binary payload submitted alongside a document.
type Attachment struct {
	// Filename is the producer-supplied name, display only.
	Filename string `json:"filename,omitempty"`

	// Data is the raw content. Dedup is by hash of these bytes.
	Data []byte `json:"data"`

	// MimeType is the declared media type.
	MimeType string `json:"mime_type"`

	// Role says how the file relates to the document.
	Role FileRole `json:"role"`
}

// IngestRequest is the normalised document envelope accepted by the
// catalog. Collectors produce these; the catalog owns everything after.
type IngestRequest struct {
	SourceType       string         `json:"source_type"`
	ExternalID       string         `json:"external_id"`
	Text             string         `json:"text"`
	ContentHash      string         `json:"content_hash,omitempty"`
	ContentTimestamp time.Time      `json:"content_timestamp"`
	TimestampType    TimestampType  `json:"content_timestamp_type"`
	People           []Person       `json:"people,omitempty"`
	Thread           *ThreadRef     `json:"thread,omitempty"`
	Attachments      []Attachment   `json:"attachments,omitempty"`
	DueDate          *time.Time     `json:"due_date,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	IdempotencyKey   string         `json:"idempotency_key"`
}

// Validate rejects malformed envelopes before any write happens.
func (r *IngestRequest) Validate() error {
	if strings.TrimSpace(r.ExternalID) == "" {
		return fmt.Errorf("%w: external_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(r.SourceType) == "" {
		return fmt.Errorf("%w: source_type is required", ErrInvalidInput)
	}
	if r.ContentTimestamp.IsZero() {
		return fmt.Errorf("%w: content_timestamp is required", ErrInvalidInput)
	}
	if r.TimestampType == "" {
		return fmt.Errorf("%w: content_timestamp_type is required", ErrInvalidInput)
	}
	if strings.TrimSpace(r.IdempotencyKey) == "" {
		return fmt.Errorf("%w: idempotency_key is required", ErrInvalidInput)
	}
	if r.Thread != nil && strings.TrimSpace(r.Thread.ExternalID) == "" {
		return fmt.Errorf("%w: thread.external_id is required when thread is set", ErrInvalidInput)
	}
	return nil
}

// EffectiveContentHash returns the producer-supplied content hash, or
// the hash of the text when the producer did not send one.
func (r *IngestRequest) EffectiveContentHash() string {
	if r.ContentHash != "" {
		return r.ContentHash
	}
	return HashText(r.Text)
}

// VersionPatch is a partial update applied on top of the active
// version. Nil fields keep the current value.
type VersionPatch struct {
	Text             *string        `json:"text,omitempty"`
	ContentTimestamp *time.Time     `json:"content_timestamp,omitempty"`
	TimestampType    *TimestampType `json:"content_timestamp_type,omitempty"`
	People           []Person       `json:"people,omitempty"`
	Attachments      []Attachment   `json:"attachments,omitempty"`
	DueDate          *time.Time     `json:"due_date,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// SubmissionStatus is the outcome recorded for an ingest submission.
type SubmissionStatus string

// Submission outcomes.
const (
	SubmissionCompleted SubmissionStatus = "completed"
	SubmissionFailed    SubmissionStatus = "failed"
)

// Submission is the durable record keyed by idempotency key. The same
// key always resolves to the same result; a re-submission is a lookup.
type Submission struct {
	ID             string
	IdempotencyKey string
	Status         SubmissionStatus
	DocumentID     string
	VersionNumber  int
	ErrorDetails   string
	CreatedAt      time.Time
}

// IngestResult is returned to the producer for one envelope.
type IngestResult struct {
	SubmissionID  string         `json:"submission_id"`
	DocumentID    string         `json:"doc_id"`
	ExternalID    string         `json:"external_id"`
	VersionNumber int            `json:"version_number"`
	ThreadID      string         `json:"thread_id,omitempty"`
	FileIDs       []string       `json:"file_ids,omitempty"`
	Duplicate     bool           `json:"duplicate"`
	Status        DocumentStatus `json:"status"`

	// AttachmentErrors lists per-attachment failures. They never block
	// ingestion of the text portion.
	AttachmentErrors []string `json:"attachment_errors,omitempty"`
}

// BatchStatus is the aggregate outcome of a batch submission.
type BatchStatus string

// Batch outcomes.
const (
	BatchCompleted BatchStatus = "completed"
	BatchPartial   BatchStatus = "partial"
	BatchFailed    BatchStatus = "failed"
)

// BatchItemResult is the per-envelope outcome inside a batch.
type BatchItemResult struct {
	Result *IngestResult `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// BatchResult is the aggregate response for a batch submission.
type BatchResult struct {
	// BatchKey is derived deterministically from the member keys, so a
	// retried batch maps to the same identity.
	BatchKey  string            `json:"batch_key"`
	Status    BatchStatus       `json:"status"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Items     []BatchItemResult `json:"items"`
}

// BatchKey derives the batch identity from member idempotency keys.
// Keys are sorted first so ordering differences between retries do not
// change the identity.
func BatchKey(keys []string) string {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)
	return HashText(strings.Join(sorted, "\n"))
}

// StatusReport is the submission-status view: workflow state plus
// chunk counts by embedding status.
type StatusReport struct {
	SubmissionID  string            `json:"submission_id,omitempty"`
	DocumentID    string            `json:"doc_id"`
	ExternalID    string            `json:"external_id"`
	VersionNumber int               `json:"version_number"`
	Status        DocumentStatus    `json:"status"`
	ChunkCounts   ChunkStatusCounts `json:"chunk_counts"`
}
