package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/haven-labs/haven/internal/chunker"
	"github.com/haven-labs/haven/internal/core/domain"
	"github.com/haven-labs/haven/internal/core/ports/driven"
	"github.com/haven-labs/haven/internal/core/ports/driving"
	"github.com/haven-labs/haven/internal/logger"
)

// Ensure CatalogService implements the interface.
var _ driving.CatalogService = (*CatalogService)(nil)

// CatalogService is the ingestion/versioning engine. It owns the
// single-transaction ingest algorithm: idempotency, versioning, file
// dedup, chunk creation and thread rollups.
type CatalogService struct {
	store      driven.CatalogStore
	blobs      driven.BlobStore
	enrichment driven.EnrichmentService
	splitter   *chunker.Chunker
}

// NewCatalogService creates a catalog service. blobs and enrichment
// are optional (can be nil); without them attachment bytes are not
// retained and files are stored unenriched.
func NewCatalogService(
	store driven.CatalogStore,
	blobs driven.BlobStore,
	enrichment driven.EnrichmentService,
	splitter *chunker.Chunker,
) *CatalogService {
	if splitter == nil {
		splitter = chunker.New()
	}
	return &CatalogService{
		store:      store,
		blobs:      blobs,
		enrichment: enrichment,
		splitter:   splitter,
	}
}

// preparedFile is an attachment resolved outside the transaction:
// blob stored, enrichment computed (or failed). dropped means the
// content itself could not be kept; an enrichment failure alone still
// links the file, just without enrichment.
type preparedFile struct {
	file    domain.File
	role    domain.FileRole
	err     error
	dropped bool
	name    string
}

// ingestRetries bounds re-runs of the ingest transaction after an
// active-version conflict.
const ingestRetries = 3

// Ingest processes one envelope with exactly-once semantics.
func (s *CatalogService) Ingest(ctx context.Context, req *domain.IngestRequest) (*domain.IngestResult, error) {
	return s.ingest(ctx, req, nil)
}

// ingest runs the full algorithm, optionally carrying file links
// forward from a predecessor version (see Version).
func (s *CatalogService) ingest(
	ctx context.Context, req *domain.IngestRequest, carried []domain.FileLink,
) (*domain.IngestResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("Ingest: external_id=%s source=%s key=%s", req.ExternalID, req.SourceType, req.IdempotencyKey)

	// Fast path: the key has been seen before. The transaction checks
	// again, so a racing duplicate still resolves correctly.
	if sub, err := s.store.GetSubmissionByKey(ctx, req.IdempotencyKey); err == nil {
		return s.resultFromSubmission(ctx, sub)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}

	// Attachment blob puts and enrichment calls are external and
	// idempotent by content hash, so they run before the transaction.
	prepared := s.prepareAttachments(ctx, req.Attachments)

	// ErrAlreadyExists from the transaction covers two distinct
	// uniqueness conflicts. A submission row under our key means a
	// concurrent duplicate won the key race: return its result
	// unchanged. No such row means the active-version index fired
	// because a different key landed a version for the same external
	// id first: re-read the new active version and retry.
	for attempt := 0; attempt < ingestRetries; attempt++ {
		res, err := s.ingestTx(ctx, req, prepared, carried)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}

		sub, lookupErr := s.store.GetSubmissionByKey(ctx, req.IdempotencyKey)
		if lookupErr == nil {
			return s.resultFromSubmission(ctx, sub)
		}
		if !errors.Is(lookupErr, domain.ErrNotFound) {
			return nil, fmt.Errorf("re-reading winning submission: %w", lookupErr)
		}
		logger.Debug("Retrying ingest of %s after version conflict", req.ExternalID)
	}
	return nil, fmt.Errorf("ingesting %s: %w", req.ExternalID, domain.ErrAlreadyExists)
}

// ingestTx runs steps 1-6 of the ingest algorithm in one transaction.
func (s *CatalogService) ingestTx(
	ctx context.Context, req *domain.IngestRequest, prepared []preparedFile, carried []domain.FileLink,
) (*domain.IngestResult, error) {
	var res *domain.IngestResult

	err := s.store.WithTx(ctx, func(tx driven.CatalogTx) error {
		// Step 1: idempotency key governs, content does not. A row that
		// appeared since the fast-path check means a concurrent
		// duplicate won; surface the conflict so the caller re-reads.
		if _, err := tx.GetSubmissionByKey(req.IdempotencyKey); err == nil {
			return domain.ErrAlreadyExists
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("idempotency lookup: %w", err)
		}

		contentHash := req.EffectiveContentHash()

		// Step 2: unchanged content for a known external id is a
		// no-op version-wise, but the submission is still recorded so
		// later retries by key short-circuit.
		active, err := tx.GetActiveVersion(req.ExternalID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("active version lookup: %w", err)
		}

		if active != nil && active.ContentHash == contentHash {
			sub := &domain.Submission{
				ID:             uuid.New().String(),
				IdempotencyKey: req.IdempotencyKey,
				Status:         domain.SubmissionCompleted,
				DocumentID:     active.ID,
				VersionNumber:  active.VersionNumber,
			}
			if err := tx.InsertSubmission(sub); err != nil {
				return err
			}
			links, err := tx.ListFileLinks(active.ID)
			if err != nil {
				return err
			}
			res = &domain.IngestResult{
				SubmissionID:  sub.ID,
				DocumentID:    active.ID,
				ExternalID:    active.ExternalID,
				VersionNumber: active.VersionNumber,
				ThreadID:      active.ThreadID,
				FileIDs:       linkedFileIDs(links),
				Duplicate:     true,
				Status:        active.Status,
			}
			return nil
		}

		// Step 5 runs early so the document row can carry the thread id.
		threadID, err := s.rollupThread(tx, req)
		if err != nil {
			return err
		}

		doc := s.buildVersion(req, active, contentHash, threadID, prepared, carried)
		if err := tx.InsertDocumentVersion(doc); err != nil {
			return err
		}

		// Step 3: file dedup and links. Carried links re-attach the
		// predecessor's files to the new version untouched.
		fileIDs, attachmentErrs, err := s.linkFiles(tx, doc.ID, prepared)
		if err != nil {
			return err
		}
		for _, link := range carried {
			if err := tx.LinkFile(domain.FileLink{
				DocumentID: doc.ID,
				FileID:     link.FileID,
				Role:       link.Role,
			}); err != nil {
				return err
			}
			fileIDs = append(fileIDs, link.FileID)
		}

		// Step 4: chunks for the new version; the superseded version's
		// links go away, shared chunks persist.
		if active != nil {
			if err := tx.UnlinkChunks(active.ID); err != nil {
				return err
			}
		}
		allEmbedded, err := s.linkChunks(tx, doc)
		if err != nil {
			return err
		}

		// When every linked chunk is already embedded (all reused, or
		// there are none at all), the pipeline will never see this
		// document; it is indexed the moment it lands.
		if allEmbedded {
			if err := tx.SetDocumentStatus(doc.ID, domain.StatusIndexed, doc.ExtractionFailed, doc.EnrichmentFailed); err != nil {
				return err
			}
			doc.Status = domain.StatusIndexed
		}

		// Step 6: the durable submission record.
		sub := &domain.Submission{
			ID:             uuid.New().String(),
			IdempotencyKey: req.IdempotencyKey,
			Status:         domain.SubmissionCompleted,
			DocumentID:     doc.ID,
			VersionNumber:  doc.VersionNumber,
			ErrorDetails:   strings.Join(attachmentErrs, "; "),
		}
		if err := tx.InsertSubmission(sub); err != nil {
			return err
		}

		res = &domain.IngestResult{
			SubmissionID:     sub.ID,
			DocumentID:       doc.ID,
			ExternalID:       doc.ExternalID,
			VersionNumber:    doc.VersionNumber,
			ThreadID:         threadID,
			FileIDs:          fileIDs,
			Duplicate:        false,
			Status:           doc.Status,
			AttachmentErrors: attachmentErrs,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// prepareAttachments stores blobs and computes enrichment for each
// attachment. Failures are recorded per attachment and never block the
// text portion of the document.
func (s *CatalogService) prepareAttachments(ctx context.Context, attachments []domain.Attachment) []preparedFile {
	prepared := make([]preparedFile, 0, len(attachments))
	for _, att := range attachments {
		p := preparedFile{role: att.Role, name: att.Filename}
		if p.role == "" {
			p.role = domain.FileRoleAttachment
		}

		if len(att.Data) == 0 {
			p.err = errors.New("attachment content unreadable")
			p.dropped = true
			prepared = append(prepared, p)
			continue
		}

		hash := domain.HashBytes(att.Data)
		p.file = domain.File{
			ID:          uuid.New().String(),
			ContentHash: hash,
			MimeType:    att.MimeType,
			SizeBytes:   int64(len(att.Data)),
		}

		if s.blobs != nil {
			key, err := s.blobs.Put(ctx, att.Data)
			if err != nil {
				p.err = fmt.Errorf("storing attachment: %w", err)
				p.dropped = true
				prepared = append(prepared, p)
				continue
			}
			p.file.StorageKey = key
		}

		// Enrichment is computed once per content hash; a file row
		// that already carries it is reused as-is by linkFiles.
		if s.enrichment != nil {
			if existing, err := s.store.GetFileByHash(ctx, hash); err == nil && existing.Enrichment != nil {
				p.file.Enrichment = existing.Enrichment
			} else {
				enriched, err := s.enrichment.Enrich(ctx, att.Data, att.MimeType)
				if err != nil {
					logger.Warn("Enrichment failed for %s: %v", p.name, err)
					p.err = fmt.Errorf("enrichment: %w", err)
				} else {
					p.file.Enrichment = enriched
				}
			}
		}

		prepared = append(prepared, p)
	}
	return prepared
}

// buildVersion assembles the new version row from the request and the
// (possibly nil) active predecessor.
func (s *CatalogService) buildVersion(
	req *domain.IngestRequest, active *domain.Document, contentHash, threadID string,
	prepared []preparedFile, carried []domain.FileLink,
) *domain.Document {
	attachmentCount := 0
	enrichmentFailed := false
	for _, p := range prepared {
		if p.err != nil {
			enrichmentFailed = true
		}
		if !p.dropped {
			attachmentCount++
		}
	}
	for _, link := range carried {
		if link.Role == domain.FileRoleAttachment {
			attachmentCount++
		}
	}

	doc := &domain.Document{
		ID:               uuid.New().String(),
		ExternalID:       req.ExternalID,
		SourceType:       req.SourceType,
		VersionNumber:    1,
		ActiveVersion:    true,
		Text:             req.Text,
		TextHash:         domain.HashText(req.Text),
		ContentHash:      contentHash,
		ContentTimestamp: req.ContentTimestamp.UTC(),
		TimestampType:    req.TimestampType,
		People:           req.People,
		HasAttachments:   attachmentCount > 0,
		AttachmentCount:  attachmentCount,
		HasDueDate:       req.DueDate != nil,
		DueDate:          req.DueDate,
		Metadata:         req.Metadata,
		Status:           domain.StatusEnriched,
		EnrichmentFailed: enrichmentFailed,
		ThreadID:         threadID,
	}
	if active != nil {
		doc.VersionNumber = active.VersionNumber + 1
		doc.PreviousVersionID = &active.ID
	}
	return doc
}

// linkFiles resolves-or-creates each prepared file by content hash and
// links it to the new version. Returns linked file IDs and the
// per-attachment error strings.
func (s *CatalogService) linkFiles(
	tx driven.CatalogTx, documentID string, prepared []preparedFile,
) ([]string, []string, error) {
	var fileIDs []string
	var attachmentErrs []string

	for _, p := range prepared {
		if p.err != nil {
			name := p.name
			if name == "" {
				name = "attachment"
			}
			attachmentErrs = append(attachmentErrs, fmt.Sprintf("%s: %v", name, p.err))
		}
		if p.dropped {
			continue
		}

		fileID := p.file.ID
		existing, err := tx.GetFileByHash(p.file.ContentHash)
		switch {
		case err == nil:
			fileID = existing.ID
		case errors.Is(err, domain.ErrNotFound):
			f := p.file
			if insertErr := tx.InsertFile(&f); insertErr != nil {
				if !errors.Is(insertErr, domain.ErrAlreadyExists) {
					return nil, nil, insertErr
				}
				winner, lookupErr := tx.GetFileByHash(p.file.ContentHash)
				if lookupErr != nil {
					return nil, nil, lookupErr
				}
				fileID = winner.ID
			}
		default:
			return nil, nil, err
		}

		if err := tx.LinkFile(domain.FileLink{
			DocumentID: documentID,
			FileID:     fileID,
			Role:       p.role,
		}); err != nil {
			return nil, nil, err
		}
		fileIDs = append(fileIDs, fileID)
	}

	return fileIDs, attachmentErrs, nil
}

// linkChunks splits the document text and links each segment, reusing
// existing chunk rows on text-hash match so verbatim text is embedded
// once no matter how many documents carry it. Reports whether every
// linked chunk is already embedded, which is trivially true when the
// text yields no segments.
func (s *CatalogService) linkChunks(tx driven.CatalogTx, doc *domain.Document) (bool, error) {
	segments := s.splitter.Split(doc.Text)
	if len(segments) == 0 {
		return true, nil
	}

	allEmbedded := true
	weight := 1.0 / float64(len(segments))
	for _, seg := range segments {
		chunkID := ""
		existing, err := tx.GetChunkByTextHash(seg.TextHash)
		switch {
		case err == nil:
			chunkID = existing.ID
			if existing.Status != domain.EmbeddingEmbedded {
				allEmbedded = false
			}
		case errors.Is(err, domain.ErrNotFound):
			c := &domain.Chunk{
				ID:        uuid.New().String(),
				Text:      seg.Text,
				TextHash:  seg.TextHash,
				Status:    domain.EmbeddingPending,
				SourceRef: seg.SourceRef,
			}
			if insertErr := tx.InsertChunk(c); insertErr != nil {
				if !errors.Is(insertErr, domain.ErrAlreadyExists) {
					return false, insertErr
				}
				winner, lookupErr := tx.GetChunkByTextHash(seg.TextHash)
				if lookupErr != nil {
					return false, lookupErr
				}
				c = winner
			}
			chunkID = c.ID
			if c.Status != domain.EmbeddingEmbedded {
				allEmbedded = false
			}
		default:
			return false, err
		}

		if err := tx.LinkChunk(domain.ChunkLink{
			ChunkID:    chunkID,
			DocumentID: doc.ID,
			Ordinal:    seg.Ordinal,
			Weight:     weight,
		}); err != nil {
			return false, err
		}
	}
	return allEmbedded, nil
}

// rollupThread creates or refreshes the referenced thread and returns
// its ID, or "" when the request names no thread.
func (s *CatalogService) rollupThread(tx driven.CatalogTx, req *domain.IngestRequest) (string, error) {
	if req.Thread == nil {
		return "", nil
	}

	ts := req.ContentTimestamp.UTC()
	th := &domain.Thread{
		ID:             uuid.New().String(),
		ExternalID:     req.Thread.ExternalID,
		Title:          req.Thread.Title,
		Participants:   mergeParticipants(req.Thread.Participants, req.People),
		FirstMessageAt: ts,
		LastMessageAt:  ts,
	}

	if existing, err := tx.GetThreadByExternalID(req.Thread.ExternalID); err == nil {
		th.ID = existing.ID
		th.CreatedAt = existing.CreatedAt
		th.Participants = mergeParticipants(existing.Participants, th.Participants)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("thread lookup: %w", err)
	}

	if err := tx.UpsertThread(th); err != nil {
		return "", err
	}
	return th.ID, nil
}

// mergeParticipants unions two participant lists by identifier,
// preserving first-seen order.
func mergeParticipants(a, b []domain.Person) []domain.Person {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]domain.Person, 0, len(a)+len(b))
	for _, p := range a {
		if !seen[p.Identifier] {
			seen[p.Identifier] = true
			out = append(out, p)
		}
	}
	for _, p := range b {
		if !seen[p.Identifier] {
			seen[p.Identifier] = true
			out = append(out, p)
		}
	}
	return out
}

// resultFromSubmission rebuilds the original response for a duplicate
// submission so retries observe identical results.
func (s *CatalogService) resultFromSubmission(ctx context.Context, sub *domain.Submission) (*domain.IngestResult, error) {
	res := &domain.IngestResult{
		SubmissionID:  sub.ID,
		DocumentID:    sub.DocumentID,
		VersionNumber: sub.VersionNumber,
		Duplicate:     true,
	}
	if sub.ErrorDetails != "" {
		res.AttachmentErrors = strings.Split(sub.ErrorDetails, "; ")
	}
	if sub.DocumentID != "" {
		doc, err := s.store.GetDocument(ctx, sub.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("loading submitted document: %w", err)
		}
		res.ExternalID = doc.ExternalID
		res.ThreadID = doc.ThreadID
		res.Status = doc.Status

		links, err := s.store.ListFileLinks(ctx, sub.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("loading submitted file links: %w", err)
		}
		res.FileIDs = linkedFileIDs(links)
	}
	return res, nil
}

// linkedFileIDs projects file links onto their file IDs, keeping link
// order so retries observe the original ID list.
func linkedFileIDs(links []domain.FileLink) []string {
	if len(links) == 0 {
		return nil
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.FileID)
	}
	return ids
}

// IngestBatch processes each envelope and aggregates the outcome.
func (s *CatalogService) IngestBatch(ctx context.Context, reqs []*domain.IngestRequest) (*domain.BatchResult, error) {
	keys := make([]string, 0, len(reqs))
	for _, req := range reqs {
		keys = append(keys, req.IdempotencyKey)
	}

	batch := &domain.BatchResult{
		BatchKey: domain.BatchKey(keys),
		Items:    make([]domain.BatchItemResult, 0, len(reqs)),
	}

	for _, req := range reqs {
		res, err := s.Ingest(ctx, req)
		if err != nil {
			batch.Failed++
			batch.Items = append(batch.Items, domain.BatchItemResult{Error: err.Error()})
			continue
		}
		batch.Succeeded++
		batch.Items = append(batch.Items, domain.BatchItemResult{Result: res})
	}

	switch {
	case batch.Failed == 0:
		batch.Status = domain.BatchCompleted
	case batch.Succeeded == 0:
		batch.Status = domain.BatchFailed
	default:
		batch.Status = domain.BatchPartial
	}

	logger.Info("Batch %s: %d succeeded, %d failed", batch.BatchKey[:12], batch.Succeeded, batch.Failed)
	return batch, nil
}

// Version applies a partial update as a new version. The patch is
// merged over the active version and steps 3-6 re-run; the existing
// row is never mutated.
func (s *CatalogService) Version(
	ctx context.Context, documentID string, patch *domain.VersionPatch,
) (*domain.IngestResult, error) {
	current, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !current.ActiveVersion {
		return nil, domain.ErrNotActive
	}

	req := &domain.IngestRequest{
		SourceType:       current.SourceType,
		ExternalID:       current.ExternalID,
		Text:             current.Text,
		ContentTimestamp: current.ContentTimestamp,
		TimestampType:    current.TimestampType,
		People:           current.People,
		DueDate:          current.DueDate,
		Metadata:         current.Metadata,
		IdempotencyKey:   uuid.New().String(),
	}
	if current.ThreadID != "" {
		if th, err := s.store.GetThread(ctx, current.ThreadID); err == nil {
			req.Thread = &domain.ThreadRef{ExternalID: th.ExternalID, Title: th.Title}
		}
	}

	applyPatch(req, patch)
	req.ContentHash = domain.HashText(req.Text)

	// A patch that does not touch attachments keeps the predecessor's
	// files on the new version.
	var carried []domain.FileLink
	if patch == nil || patch.Attachments == nil {
		carried, err = s.store.ListFileLinks(ctx, documentID)
		if err != nil {
			return nil, fmt.Errorf("loading current file links: %w", err)
		}
	}

	res, err := s.ingest(ctx, req, carried)
	if err != nil {
		return nil, err
	}
	if res.Duplicate && res.VersionNumber == current.VersionNumber {
		// Patch did not change the content.
		return res, nil
	}
	return res, nil
}

// applyPatch merges non-nil patch fields over the request.
func applyPatch(req *domain.IngestRequest, patch *domain.VersionPatch) {
	if patch == nil {
		return
	}
	if patch.Text != nil {
		req.Text = *patch.Text
	}
	if patch.ContentTimestamp != nil {
		req.ContentTimestamp = *patch.ContentTimestamp
	}
	if patch.TimestampType != nil {
		req.TimestampType = *patch.TimestampType
	}
	if patch.People != nil {
		req.People = patch.People
	}
	if patch.Attachments != nil {
		req.Attachments = patch.Attachments
	}
	if patch.DueDate != nil {
		req.DueDate = patch.DueDate
	}
	if patch.Metadata != nil {
		req.Metadata = patch.Metadata
	}
}

// Delete soft-deletes a document version. Files and chunks persist;
// only this version's links go away.
func (s *CatalogService) Delete(ctx context.Context, documentID string) error {
	return s.store.WithTx(ctx, func(tx driven.CatalogTx) error {
		if err := tx.DeactivateDocument(documentID); err != nil {
			return err
		}
		if err := tx.UnlinkFiles(documentID); err != nil {
			return err
		}
		return tx.UnlinkChunks(documentID)
	})
}

// SubmissionStatus reports workflow state and chunk counts for a
// submission ID or document ID.
func (s *CatalogService) SubmissionStatus(ctx context.Context, ref string) (*domain.StatusReport, error) {
	report := &domain.StatusReport{}

	docID := ref
	if sub, err := s.store.GetSubmission(ctx, ref); err == nil {
		report.SubmissionID = sub.ID
		docID = sub.DocumentID
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}

	counts, err := s.store.CountChunksByStatus(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	report.DocumentID = doc.ID
	report.ExternalID = doc.ExternalID
	report.VersionNumber = doc.VersionNumber
	report.Status = doc.Status
	report.ChunkCounts = counts
	return report, nil
}
