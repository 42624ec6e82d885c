package domain

import "time"

// TimestampType tags what a document's content timestamp means.
type TimestampType string

// Known timestamp meanings.
const (
	TimestampSent     TimestampType = "sent"
	TimestampReceived TimestampType = "received"
	TimestampCreated  TimestampType = "created"
	TimestampModified TimestampType = "modified"
	TimestampDue      TimestampType = "due"
)

// DocumentStatus is the workflow state of a document. A document is
// searchable at every stage; later stages only add signal.
type DocumentStatus string

// Workflow states, in order of progression.
const (
	StatusSubmitted  DocumentStatus = "submitted"
	StatusExtracting DocumentStatus = "extracting"
	StatusExtracted  DocumentStatus = "extracted"
	StatusEnriching  DocumentStatus = "enriching"
	StatusEnriched   DocumentStatus = "enriched"
	StatusIndexed    DocumentStatus = "indexed"
)

// Person identifies a participant on a document or thread.
type Person struct {
	// Identifier is the raw identity (email address, phone number, handle).
	Identifier string `json:"identifier"`

	// IdentifierType says how to interpret Identifier (email, phone, handle).
	IdentifierType string `json:"identifier_type"`

	// Role is the person's relation to the document (from, to, cc, attendee).
	Role string `json:"role"`
}

// Document is one immutable version of a logical document. A logical
// document is identified by ExternalID; each edit creates a new row and
// exactly one row per ExternalID is the active version at any time.
type Document struct {
	// ID is the unique identifier for this version row.
	ID string

	// ExternalID is the producer-assigned identity, stable across versions.
	ExternalID string

	// SourceType names the producing source (message, file, contact, mail).
	SourceType string

	// VersionNumber starts at 1 and increments per edit.
	VersionNumber int

	// PreviousVersionID back-links to the superseded version, nil for v1.
	PreviousVersionID *string

	// ActiveVersion marks the single current row for this ExternalID.
	ActiveVersion bool

	// Text is the full normalised text content.
	Text string

	// TextHash is the content hash of Text, used for change detection.
	TextHash string

	// ContentHash is the producer-supplied hash of the submitted content.
	ContentHash string

	// ContentTimestamp is the document's own time, tagged by TimestampType.
	ContentTimestamp time.Time

	// TimestampType says what ContentTimestamp means.
	TimestampType TimestampType

	// People is the ordered participant list.
	People []Person

	// Facet flags, precomputed at ingest for fast filtering.
	HasAttachments  bool
	AttachmentCount int
	HasDueDate      bool
	DueDate         *time.Time

	// Metadata is the open source-specific payload, never read by core logic.
	Metadata map[string]any

	// Status is the workflow state.
	Status DocumentStatus

	// Failure flags. Neither blocks progression to indexed.
	ExtractionFailed bool
	EnrichmentFailed bool

	// ThreadID optionally groups this document into a thread.
	ThreadID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Thread groups documents under a producer-assigned external ID.
// Rollup fields are refreshed on every ingest that touches the thread.
type Thread struct {
	// ID is the unique thread identifier.
	ID string

	// ExternalID is the producer-assigned thread identity.
	ExternalID string

	// Title is an optional display title.
	Title string

	// Participants is the union of people seen on the thread's documents.
	Participants []Person

	// FirstMessageAt and LastMessageAt are content-timestamp rollups.
	FirstMessageAt time.Time
	LastMessageAt  time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ThreadRef is the thread descriptor supplied on an ingest request.
type ThreadRef struct {
	ExternalID   string   `json:"external_id"`
	Title        string   `json:"title,omitempty"`
	Participants []Person `json:"participants,omitempty"`
}

// FileRole says how a file relates to a document.
type FileRole string

// File link roles. A file may be linked to the same document in
// several roles at once.
const (
	FileRoleAttachment      FileRole = "attachment"
	FileRoleThumbnail       FileRole = "thumbnail"
	FileRoleExtractedSource FileRole = "extracted-source"
)

// File is a content-addressed binary. The content hash is the sole
// identity: the same bytes submitted through any number of documents
// resolve to one File row, and enrichment is computed once for it.
type File struct {
	// ID is the unique file identifier.
	ID string

	// ContentHash is the cryptographic hash of the file bytes.
	ContentHash string

	// StorageKey locates the bytes in the blob store.
	StorageKey string

	// MimeType is the detected or declared media type.
	MimeType string

	// SizeBytes is the byte length of the content.
	SizeBytes int64

	// Enrichment holds the provider output, shared by every linking document.
	Enrichment *Enrichment

	CreatedAt time.Time
}

// Enrichment is the opaque provider output attached to a File.
type Enrichment struct {
	OCRText  string   `json:"ocr_text,omitempty"`
	Caption  string   `json:"caption,omitempty"`
	Entities []string `json:"entities,omitempty"`
}

// FileLink associates a file with one document version in one role.
type FileLink struct {
	DocumentID string
	FileID     string
	Role       FileRole
}
