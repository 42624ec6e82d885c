package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/haven-labs/haven/internal/core/domain"
	"github.com/haven-labs/haven/internal/core/ports/driven"
)

// documentColumns is the canonical select list for document rows.
const documentColumns = `id, external_id, source_type, version_number, previous_version_id,
	is_active, content, text_hash, content_hash, content_timestamp,
	content_timestamp_type, people, has_attachments, attachment_count,
	has_due_date, due_date, metadata, status, extraction_failed,
	enrichment_failed, thread_id, created_at, updated_at`

// catalogStore implements driven.CatalogStore.
type catalogStore struct {
	store *Store
}

var _ driven.CatalogStore = (*catalogStore)(nil)

// WithTx runs fn inside a single transaction.
func (s *catalogStore) WithTx(ctx context.Context, fn func(tx driven.CatalogTx) error) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	ct := &catalogTx{ctx: ctx, tx: tx}
	if err := fn(ct); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetSubmissionByKey retrieves a submission by idempotency key.
func (s *catalogStore) GetSubmissionByKey(ctx context.Context, key string) (*domain.Submission, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, idempotency_key, status, document_id, version_number, error_details, created_at
		FROM ingest_submissions WHERE idempotency_key = ?
	`, key)
	return scanSubmission(row)
}

// GetSubmission retrieves a submission by ID.
func (s *catalogStore) GetSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, idempotency_key, status, document_id, version_number, error_details, created_at
		FROM ingest_submissions WHERE id = ?
	`, id)
	return scanSubmission(row)
}

// GetDocument retrieves one version row by ID.
func (s *catalogStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// GetActiveVersion retrieves the active version for an external ID.
func (s *catalogStore) GetActiveVersion(ctx context.Context, externalID string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE external_id = ? AND is_active = 1`, externalID)
	return scanDocument(row)
}

// GetFileByHash retrieves a file by content hash.
func (s *catalogStore) GetFileByHash(ctx context.Context, contentHash string) (*domain.File, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, content_hash, storage_key, mime_type, size_bytes, enrichment, created_at
		FROM files WHERE content_hash = ?
	`, contentHash)
	return scanFile(row)
}

// ListFileLinks returns one document version's file links in link
// order.
func (s *catalogStore) ListFileLinks(ctx context.Context, documentID string) ([]domain.FileLink, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT document_id, file_id, role
		FROM document_files WHERE document_id = ? ORDER BY rowid
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("listing file links: %w", err)
	}
	return scanFileLinks(rows)
}

// GetThread retrieves a thread by ID.
func (s *catalogStore) GetThread(ctx context.Context, id string) (*domain.Thread, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, external_id, title, participants, first_message_at, last_message_at, created_at, updated_at
		FROM threads WHERE id = ?
	`, id)
	return scanThread(row)
}

// GetChunk retrieves a chunk by ID.
func (s *catalogStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, content, text_hash, embedding, embedding_status, embedding_model,
		       source_ref, error_details, claimed_at, created_at
		FROM chunks WHERE id = ?
	`, id)
	return scanChunk(row)
}

// CountChunksByStatus tallies a document's chunks by embedding status.
func (s *catalogStore) CountChunksByStatus(ctx context.Context, documentID string) (domain.ChunkStatusCounts, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT c.embedding_status, COUNT(*)
		FROM chunk_documents cd
		JOIN chunks c ON c.id = cd.chunk_id
		WHERE cd.document_id = ?
		GROUP BY c.embedding_status
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	defer rows.Close()

	counts := make(domain.ChunkStatusCounts)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning chunk count: %w", err)
		}
		counts[domain.EmbeddingStatus(status)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk counts: %w", err)
	}
	return counts, nil
}

// ListThreadNeighbours returns up to window active documents on each
// side of ts within a thread, ordered by content timestamp.
func (s *catalogStore) ListThreadNeighbours(
	ctx context.Context, threadID string, ts time.Time, window int,
) ([]domain.Document, error) {
	if window <= 0 {
		return nil, nil
	}

	before, err := s.queryDocuments(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE thread_id = ? AND is_active = 1 AND content_timestamp < ?
		ORDER BY content_timestamp DESC LIMIT ?
	`, threadID, ts, window)
	if err != nil {
		return nil, err
	}

	after, err := s.queryDocuments(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE thread_id = ? AND is_active = 1 AND content_timestamp > ?
		ORDER BY content_timestamp ASC LIMIT ?
	`, threadID, ts, window)
	if err != nil {
		return nil, err
	}

	// before came back newest-first; reverse into chronological order.
	out := make([]domain.Document, 0, len(before)+len(after))
	for i := len(before) - 1; i >= 0; i-- {
		out = append(out, before[i])
	}
	out = append(out, after...)
	return out, nil
}

// queryDocuments runs a document query and scans every row.
func (s *catalogStore) queryDocuments(ctx context.Context, query string, args ...any) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// ==================== Catalog Transaction ====================

// catalogTx implements driven.CatalogTx over one *sql.Tx.
type catalogTx struct {
	ctx context.Context
	tx  *sql.Tx
}

var _ driven.CatalogTx = (*catalogTx)(nil)

// GetSubmissionByKey retrieves a submission by idempotency key.
func (t *catalogTx) GetSubmissionByKey(key string) (*domain.Submission, error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT id, idempotency_key, status, document_id, version_number, error_details, created_at
		FROM ingest_submissions WHERE idempotency_key = ?
	`, key)
	return scanSubmission(row)
}

// InsertSubmission records a submission. The unique constraint on the
// idempotency key is the sole arbiter of duplicate-submission races.
func (t *catalogTx) InsertSubmission(sub *domain.Submission) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO ingest_submissions (id, idempotency_key, status, document_id, version_number, error_details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sub.ID, sub.IdempotencyKey, string(sub.Status), sub.DocumentID,
		sub.VersionNumber, sub.ErrorDetails, sub.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("inserting submission: %w", err)
	}
	return nil
}

// GetActiveVersion retrieves the active version for an external ID.
func (t *catalogTx) GetActiveVersion(externalID string) (*domain.Document, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT `+documentColumns+` FROM documents WHERE external_id = ? AND is_active = 1`, externalID)
	return scanDocument(row)
}

// InsertDocumentVersion inserts a new version row, deactivating the
// predecessor first so the partial unique index stays satisfied.
func (t *catalogTx) InsertDocumentVersion(doc *domain.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if doc.PreviousVersionID != nil {
		if _, err := t.tx.ExecContext(t.ctx,
			`UPDATE documents SET is_active = 0, updated_at = ? WHERE id = ?`,
			now, *doc.PreviousVersionID); err != nil {
			return fmt.Errorf("deactivating previous version: %w", err)
		}
	}

	people, err := peopleJSON(doc.People)
	if err != nil {
		return fmt.Errorf("marshalling people: %w", err)
	}
	meta, err := metadataJSON(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.ExternalID, doc.SourceType, doc.VersionNumber, doc.PreviousVersionID,
		boolToInt(doc.ActiveVersion), doc.Text, doc.TextHash, doc.ContentHash, doc.ContentTimestamp,
		string(doc.TimestampType), people, boolToInt(doc.HasAttachments), doc.AttachmentCount,
		boolToInt(doc.HasDueDate), doc.DueDate, meta, string(doc.Status), boolToInt(doc.ExtractionFailed),
		boolToInt(doc.EnrichmentFailed), nullString(doc.ThreadID), doc.CreatedAt, doc.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("inserting document version: %w", err)
	}
	return nil
}

// DeactivateDocument clears the active flag with no successor.
func (t *catalogTx) DeactivateDocument(id string) error {
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE documents SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivating document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivating document: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetDocumentStatus updates the workflow status and failure flags.
func (t *catalogTx) SetDocumentStatus(
	id string, status domain.DocumentStatus, extractionFailed, enrichmentFailed bool,
) error {
	_, err := t.tx.ExecContext(t.ctx, `
		UPDATE documents SET status = ?, extraction_failed = ?, enrichment_failed = ?, updated_at = ?
		WHERE id = ?
	`, string(status), boolToInt(extractionFailed), boolToInt(enrichmentFailed), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	return nil
}

// GetFileByHash retrieves a file by content hash.
func (t *catalogTx) GetFileByHash(contentHash string) (*domain.File, error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT id, content_hash, storage_key, mime_type, size_bytes, enrichment, created_at
		FROM files WHERE content_hash = ?
	`, contentHash)
	return scanFile(row)
}

// InsertFile records a new content-addressed file.
func (t *catalogTx) InsertFile(f *domain.File) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	var enrichment any
	if f.Enrichment != nil {
		b, err := json.Marshal(f.Enrichment)
		if err != nil {
			return fmt.Errorf("marshalling enrichment: %w", err)
		}
		enrichment = string(b)
	}

	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO files (id, content_hash, storage_key, mime_type, size_bytes, enrichment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.ContentHash, f.StorageKey, f.MimeType, f.SizeBytes, enrichment, f.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("inserting file: %w", err)
	}
	return nil
}

// LinkFile associates a file with a document version in a role.
func (t *catalogTx) LinkFile(link domain.FileLink) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO document_files (document_id, file_id, role)
		VALUES (?, ?, ?)
		ON CONFLICT(document_id, file_id, role) DO NOTHING
	`, link.DocumentID, link.FileID, string(link.Role))
	if err != nil {
		return fmt.Errorf("linking file: %w", err)
	}
	return nil
}

// UnlinkFiles removes all file links of one document version.
func (t *catalogTx) UnlinkFiles(documentID string) error {
	_, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM document_files WHERE document_id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("unlinking files: %w", err)
	}
	return nil
}

// ListFileLinks returns one document version's file links in link
// order.
func (t *catalogTx) ListFileLinks(documentID string) ([]domain.FileLink, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT document_id, file_id, role
		FROM document_files WHERE document_id = ? ORDER BY rowid
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("listing file links: %w", err)
	}
	return scanFileLinks(rows)
}

// GetChunkByTextHash retrieves a chunk by its text hash.
func (t *catalogTx) GetChunkByTextHash(textHash string) (*domain.Chunk, error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT id, content, text_hash, embedding, embedding_status, embedding_model,
		       source_ref, error_details, claimed_at, created_at
		FROM chunks WHERE text_hash = ?
	`, textHash)
	return scanChunk(row)
}

// InsertChunk records a new chunk in pending state.
func (t *catalogTx) InsertChunk(c *domain.Chunk) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = domain.EmbeddingPending
	}

	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO chunks (id, content, text_hash, embedding, embedding_status, embedding_model,
		                    source_ref, error_details, claimed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Text, c.TextHash, float32SliceToBytes(c.Embedding), string(c.Status),
		c.Model, c.SourceRef, c.ErrorDetails, c.ClaimedAt, c.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("inserting chunk: %w", err)
	}
	return nil
}

// LinkChunk associates a chunk with a document version.
func (t *catalogTx) LinkChunk(link domain.ChunkLink) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO chunk_documents (chunk_id, document_id, ordinal, weight)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chunk_id, document_id) DO UPDATE SET
			ordinal = excluded.ordinal,
			weight = excluded.weight
	`, link.ChunkID, link.DocumentID, link.Ordinal, link.Weight)
	if err != nil {
		return fmt.Errorf("linking chunk: %w", err)
	}
	return nil
}

// UnlinkChunks removes all chunk links of one document version.
func (t *catalogTx) UnlinkChunks(documentID string) error {
	_, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM chunk_documents WHERE document_id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("unlinking chunks: %w", err)
	}
	return nil
}

// GetThreadByExternalID retrieves a thread by external ID.
func (t *catalogTx) GetThreadByExternalID(externalID string) (*domain.Thread, error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT id, external_id, title, participants, first_message_at, last_message_at, created_at, updated_at
		FROM threads WHERE external_id = ?
	`, externalID)
	return scanThread(row)
}

// UpsertThread creates the thread or refreshes its rollup fields.
func (t *catalogTx) UpsertThread(th *domain.Thread) error {
	now := time.Now().UTC()
	if th.CreatedAt.IsZero() {
		th.CreatedAt = now
	}
	th.UpdatedAt = now

	participants, err := peopleJSON(th.Participants)
	if err != nil {
		return fmt.Errorf("marshalling participants: %w", err)
	}

	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO threads (id, external_id, title, participants, first_message_at, last_message_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE threads.title END,
			participants = excluded.participants,
			first_message_at = MIN(COALESCE(threads.first_message_at, excluded.first_message_at), excluded.first_message_at),
			last_message_at = MAX(COALESCE(threads.last_message_at, excluded.last_message_at), excluded.last_message_at),
			updated_at = excluded.updated_at
	`, th.ID, th.ExternalID, th.Title, participants,
		th.FirstMessageAt, th.LastMessageAt, th.CreatedAt, th.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting thread: %w", err)
	}
	return nil
}

// ==================== Scan Helpers ====================

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSubmission scans one submission row.
func scanSubmission(row rowScanner) (*domain.Submission, error) {
	var sub domain.Submission
	var status string
	var docID sql.NullString
	if err := row.Scan(&sub.ID, &sub.IdempotencyKey, &status, &docID,
		&sub.VersionNumber, &sub.ErrorDetails, &sub.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning submission: %w", err)
	}
	sub.Status = domain.SubmissionStatus(status)
	sub.DocumentID = docID.String
	return &sub, nil
}

// scanDocument scans one document row in documentColumns order.
func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var prevID, threadID sql.NullString
	var active, hasAttachments, hasDueDate, extractionFailed, enrichmentFailed int
	var dueDate sql.NullTime
	var tsType, peopleRaw, metaRaw, status string

	if err := row.Scan(&doc.ID, &doc.ExternalID, &doc.SourceType, &doc.VersionNumber, &prevID,
		&active, &doc.Text, &doc.TextHash, &doc.ContentHash, &doc.ContentTimestamp,
		&tsType, &peopleRaw, &hasAttachments, &doc.AttachmentCount,
		&hasDueDate, &dueDate, &metaRaw, &status, &extractionFailed,
		&enrichmentFailed, &threadID, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	if prevID.Valid {
		doc.PreviousVersionID = &prevID.String
	}
	doc.ActiveVersion = active == 1
	doc.TimestampType = domain.TimestampType(tsType)
	doc.HasAttachments = hasAttachments == 1
	doc.HasDueDate = hasDueDate == 1
	if dueDate.Valid {
		doc.DueDate = &dueDate.Time
	}
	doc.Status = domain.DocumentStatus(status)
	doc.ExtractionFailed = extractionFailed == 1
	doc.EnrichmentFailed = enrichmentFailed == 1
	doc.ThreadID = threadID.String

	if err := json.Unmarshal([]byte(peopleRaw), &doc.People); err != nil {
		return nil, fmt.Errorf("unmarshalling people: %w", err)
	}
	if err := json.Unmarshal([]byte(metaRaw), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}

	return &doc, nil
}

// scanFile scans one file row.
func scanFile(row rowScanner) (*domain.File, error) {
	var f domain.File
	var enrichmentRaw sql.NullString
	if err := row.Scan(&f.ID, &f.ContentHash, &f.StorageKey, &f.MimeType,
		&f.SizeBytes, &enrichmentRaw, &f.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning file: %w", err)
	}

	if enrichmentRaw.Valid && enrichmentRaw.String != "" {
		var e domain.Enrichment
		if err := json.Unmarshal([]byte(enrichmentRaw.String), &e); err != nil {
			return nil, fmt.Errorf("unmarshalling enrichment: %w", err)
		}
		f.Enrichment = &e
	}

	return &f, nil
}

// scanFileLinks drains a document_files result set.
func scanFileLinks(rows *sql.Rows) ([]domain.FileLink, error) {
	defer rows.Close()

	var links []domain.FileLink //nolint:prealloc // size unknown from query
	for rows.Next() {
		var link domain.FileLink
		var role string
		if err := rows.Scan(&link.DocumentID, &link.FileID, &role); err != nil {
			return nil, fmt.Errorf("scanning file link: %w", err)
		}
		link.Role = domain.FileRole(role)
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating file links: %w", err)
	}
	return links, nil
}

// scanThread scans one thread row.
func scanThread(row rowScanner) (*domain.Thread, error) {
	var th domain.Thread
	var participantsRaw string
	var first, last sql.NullTime
	if err := row.Scan(&th.ID, &th.ExternalID, &th.Title, &participantsRaw,
		&first, &last, &th.CreatedAt, &th.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning thread: %w", err)
	}

	if first.Valid {
		th.FirstMessageAt = first.Time
	}
	if last.Valid {
		th.LastMessageAt = last.Time
	}
	if err := json.Unmarshal([]byte(participantsRaw), &th.Participants); err != nil {
		return nil, fmt.Errorf("unmarshalling participants: %w", err)
	}

	return &th, nil
}

// scanChunk scans one chunk row.
func scanChunk(row rowScanner) (*domain.Chunk, error) {
	var c domain.Chunk
	var embedding []byte
	var status string
	var claimedAt sql.NullTime
	if err := row.Scan(&c.ID, &c.Text, &c.TextHash, &embedding, &status, &c.Model,
		&c.SourceRef, &c.ErrorDetails, &claimedAt, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	c.Embedding = bytesToFloat32Slice(embedding)
	c.Status = domain.EmbeddingStatus(status)
	if claimedAt.Valid {
		c.ClaimedAt = &claimedAt.Time
	}

	return &c, nil
}

// boolToInt maps a bool onto its SQLite integer form.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullString maps "" onto NULL for nullable text columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
