package sqlite

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/haven-labs/haven/internal/core/domain"
	"github.com/haven-labs/haven/internal/core/ports/driven"
)

// searchEngine implements driven.SearchEngine over the FTS5 index.
// Chunks participate regardless of embedding status; only the linked
// document must be an active version and pass the filters.
type searchEngine struct {
	store *Store
}

var _ driven.SearchEngine = (*searchEngine)(nil)

// Search runs a full-text query restricted by filter.
func (e *searchEngine) Search(
	ctx context.Context, query string, filter domain.SearchFilter, limit int,
) ([]driven.LexicalHit, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	where, args := filterClauses(filter)
	args = append([]any{match}, args...)
	args = append(args, limit)

	//nolint:gosec // where is built from fixed clause strings, values are bound
	rows, err := e.store.db.QueryContext(ctx, `
		SELECT c.id, d.id, -bm25(chunks_fts) AS score
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		JOIN chunk_documents cd ON cd.chunk_id = c.id
		JOIN documents d ON d.id = cd.document_id
		WHERE chunks_fts MATCH ? AND d.is_active = 1`+where+`
		ORDER BY bm25(chunks_fts)
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var hits []driven.LexicalHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var hit driven.LexicalHit
		if err := rows.Scan(&hit.ChunkID, &hit.DocumentID, &hit.Score); err != nil {
			return nil, fmt.Errorf("scanning lexical hit: %w", err)
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lexical hits: %w", err)
	}
	return hits, nil
}

// vectorIndex implements driven.VectorIndex with a brute-force cosine
// scan over embedded chunks. Vectors live in the chunks table, so
// Upsert during normal operation is already done by MarkEmbedded; it
// exists for out-of-band vector writes.
type vectorIndex struct {
	store *Store
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// Upsert stores or replaces the vector for a chunk.
func (v *vectorIndex) Upsert(ctx context.Context, chunkID string, vector []float32) error {
	res, err := v.store.db.ExecContext(ctx,
		`UPDATE chunks SET embedding = ? WHERE id = ?`,
		float32SliceToBytes(vector), chunkID)
	if err != nil {
		return fmt.Errorf("upserting vector: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("upserting vector: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Search finds the k nearest embedded chunks within the filtered
// active-document population.
func (v *vectorIndex) Search(
	ctx context.Context, query []float32, filter domain.SearchFilter, k int,
) ([]driven.VectorHit, error) {
	if len(query) == 0 || k <= 0 {
		return nil, nil
	}

	where, args := filterClauses(filter)
	args = append([]any{string(domain.EmbeddingEmbedded)}, args...)

	//nolint:gosec // where is built from fixed clause strings, values are bound
	rows, err := v.store.db.QueryContext(ctx, `
		SELECT c.id, d.id, c.embedding
		FROM chunks c
		JOIN chunk_documents cd ON cd.chunk_id = c.id
		JOIN documents d ON d.id = cd.document_id
		WHERE c.embedding_status = ? AND c.embedding IS NOT NULL AND d.is_active = 1`+where+`
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunkID, docID string
		var blob []byte
		if err := rows.Scan(&chunkID, &docID, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector row: %w", err)
		}

		sim, ok := cosineSimilarity(query, bytesToFloat32Slice(blob))
		if !ok {
			continue // dimension mismatch or zero vector
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    chunkID,
			DocumentID: docID,
			Similarity: sim,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector rows: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// cosineSimilarity returns the cosine of the angle between a and b,
// rescaled from [-1, 1] to [0, 1]. ok is false for mismatched
// dimensions or zero vectors.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2, true
}

// filterClauses renders a SearchFilter as AND clauses against the
// documents table alias d, returning the SQL fragment and bound args.
func filterClauses(f domain.SearchFilter) (string, []any) {
	var sb strings.Builder
	var args []any

	if f.SourceType != "" {
		sb.WriteString(" AND d.source_type = ?")
		args = append(args, f.SourceType)
	}
	if f.HasAttachments != nil {
		sb.WriteString(" AND d.has_attachments = ?")
		args = append(args, boolToInt(*f.HasAttachments))
	}
	if f.Person != "" {
		sb.WriteString(` AND EXISTS (
			SELECT 1 FROM json_each(d.people) je
			WHERE json_extract(je.value, '$.identifier') = ?)`)
		args = append(args, f.Person)
	}
	if f.ThreadID != "" {
		sb.WriteString(" AND d.thread_id = ?")
		args = append(args, f.ThreadID)
	}
	if f.StartDate != nil {
		sb.WriteString(" AND d.content_timestamp >= ?")
		args = append(args, *f.StartDate)
	}
	if f.EndDate != nil {
		sb.WriteString(" AND d.content_timestamp <= ?")
		args = append(args, *f.EndDate)
	}

	return sb.String(), args
}

// ftsQuery turns free text into an FTS5 match expression. Each token
// is quoted so user punctuation cannot produce syntax errors, and
// tokens are OR-ed for recall; ranking sorts the rest out.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}

	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " OR ")
}
