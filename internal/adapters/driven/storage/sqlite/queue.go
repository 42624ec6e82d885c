package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/haven-labs/haven/internal/core/domain"
	"github.com/haven-labs/haven/internal/core/ports/driven"
)

// chunkQueue implements driven.ChunkQueue. The claim is a single
// UPDATE ... RETURNING statement, so concurrent workers can never hold
// the same chunk: SQLite serialises the write and each row flips from
// pending to processing exactly once.
type chunkQueue struct {
	store *Store
}

var _ driven.ChunkQueue = (*chunkQueue)(nil)

// Claim atomically flips up to limit pending chunks to processing.
func (q *chunkQueue) Claim(ctx context.Context, limit int) ([]domain.Chunk, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := q.store.db.QueryContext(ctx, `
		UPDATE chunks
		SET embedding_status = ?, claimed_at = ?
		WHERE id IN (
			SELECT id FROM chunks
			WHERE embedding_status = ?
			ORDER BY created_at, id
			LIMIT ?
		)
		RETURNING id, content, text_hash, embedding, embedding_status, embedding_model,
		          source_ref, error_details, claimed_at, created_at
	`, string(domain.EmbeddingProcessing), time.Now().UTC(), string(domain.EmbeddingPending), limit)
	if err != nil {
		return nil, fmt.Errorf("claiming chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating claimed chunks: %w", err)
	}
	return chunks, nil
}

// MarkEmbedded stores the vector and transitions processing -> embedded.
func (q *chunkQueue) MarkEmbedded(ctx context.Context, chunkID string, vector []float32, model string) error {
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE chunks
		SET embedding = ?, embedding_model = ?, embedding_status = ?, error_details = '', claimed_at = NULL
		WHERE id = ? AND embedding_status = ?
	`, float32SliceToBytes(vector), model, string(domain.EmbeddingEmbedded),
		chunkID, string(domain.EmbeddingProcessing))
	if err != nil {
		return fmt.Errorf("marking chunk embedded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking chunk embedded: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkFailed transitions processing -> failed with error detail.
func (q *chunkQueue) MarkFailed(ctx context.Context, chunkID string, detail string) error {
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE chunks
		SET embedding_status = ?, error_details = ?, claimed_at = NULL
		WHERE id = ? AND embedding_status = ?
	`, string(domain.EmbeddingFailed), detail, chunkID, string(domain.EmbeddingProcessing))
	if err != nil {
		return fmt.Errorf("marking chunk failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking chunk failed: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ResetStale sweeps processing chunks claimed before the cutoff back
// to pending. A worker that crashed after claiming leaves its chunks
// here; the sweep is idempotent.
func (q *chunkQueue) ResetStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE chunks
		SET embedding_status = ?, claimed_at = NULL
		WHERE embedding_status = ? AND claimed_at IS NOT NULL AND claimed_at < ?
	`, string(domain.EmbeddingPending), string(domain.EmbeddingProcessing), cutoff)
	if err != nil {
		return 0, fmt.Errorf("resetting stale chunks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("resetting stale chunks: %w", err)
	}
	return int(n), nil
}

// ResetFailed is the explicit operator reset of failed chunks.
func (q *chunkQueue) ResetFailed(ctx context.Context) (int, error) {
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE chunks
		SET embedding_status = ?, error_details = '', claimed_at = NULL
		WHERE embedding_status = ?
	`, string(domain.EmbeddingPending), string(domain.EmbeddingFailed))
	if err != nil {
		return 0, fmt.Errorf("resetting failed chunks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("resetting failed chunks: %w", err)
	}
	return int(n), nil
}

// DocumentsForChunk lists active documents linked to a chunk.
func (q *chunkQueue) DocumentsForChunk(ctx context.Context, chunkID string) ([]string, error) {
	rows, err := q.store.db.QueryContext(ctx, `
		SELECT d.id
		FROM chunk_documents cd
		JOIN documents d ON d.id = cd.document_id
		WHERE cd.chunk_id = ? AND d.is_active = 1
	`, chunkID)
	if err != nil {
		return nil, fmt.Errorf("querying chunk documents: %w", err)
	}
	defer rows.Close()

	var ids []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk documents: %w", err)
	}
	return ids, nil
}

// MarkIndexedIfComplete advances a document to indexed once every one
// of its chunks is embedded.
func (q *chunkQueue) MarkIndexedIfComplete(ctx context.Context, documentID string) (bool, error) {
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, updated_at = ?
		WHERE id = ? AND status != ?
		  AND NOT EXISTS (
			SELECT 1 FROM chunk_documents cd
			JOIN chunks c ON c.id = cd.chunk_id
			WHERE cd.document_id = documents.id AND c.embedding_status != ?
		  )
	`, string(domain.StatusIndexed), time.Now().UTC(), documentID,
		string(domain.StatusIndexed), string(domain.EmbeddingEmbedded))
	if err != nil {
		return false, fmt.Errorf("marking document indexed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("marking document indexed: %w", err)
	}
	return n > 0, nil
}

// PendingCount returns the number of pending chunks.
func (q *chunkQueue) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := q.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE embedding_status = ?`,
		string(domain.EmbeddingPending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting pending chunks: %w", err)
	}
	return n, nil
}
