package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/ragengine/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore keeps chunk vectors in the chunks table, one collection per
// store. Candidates are selected by the filter in SQL and ranked by exact
// cosine similarity in Go.
type VectorStore struct {
	store      *Store
	collection string
	owned      bool
}

// OpenVectorStore opens the database at path and returns the collection's
// vector store. Closing the vector store closes the database.
func OpenVectorStore(path, collection string) (*VectorStore, error) {
	s, err := NewStore(path)
	if err != nil {
		return nil, err
	}
	vs := s.VectorStore(collection)
	vs.owned = true
	return vs, nil
}

// AddChunks upserts chunks keyed by composite id.
func (v *VectorStore) AddChunks(ctx context.Context, items []domain.ChunkEmbedding) error {
	if len(items) == 0 {
		return nil
	}

	dim, err := v.dimension(ctx)
	if err != nil {
		return err
	}
	for _, it := range items {
		if len(it.Vector) == 0 {
			return fmt.Errorf("%w: chunk %s has no vector", domain.ErrInvalidInput, it.Chunk.CompositeID())
		}
		if dim == 0 {
			dim = len(it.Vector)
		}
		if len(it.Vector) != dim {
			return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(it.Vector), dim)
		}
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (collection, id, source_type, source_id, chunk_index, text, metadata, dimension, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			text = excluded.text,
			metadata = excluded.metadata,
			dimension = excluded.dimension,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		metadata, err := json.Marshal(it.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata: %w", err)
		}
		c := it.Chunk
		if _, err := stmt.ExecContext(ctx, v.collection, c.CompositeID(), string(c.SourceType), c.SourceID,
			c.Index, c.Text, string(metadata), len(it.Vector), vecmath.Encode(it.Vector)); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.CompositeID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	return nil
}

// Search returns up to limit chunks matching filter, most similar first.
func (v *VectorStore) Search(
	ctx context.Context, query []float32, limit int, filter domain.SearchFilter,
) ([]domain.SearchResult, error) {
	results := []domain.SearchResult{}
	if limit <= 0 {
		return results, nil
	}

	where, args := v.filterClause(filter)
	rows, err := v.store.db.QueryContext(ctx,
		"SELECT id, source_type, source_id, chunk_index, text, metadata, embedding FROM chunks WHERE "+where, args...)
	if err != nil {
		return results, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, sourceType, sourceID, text, metadata string
			index                                    int
			blob                                     []byte
		)
		if err := rows.Scan(&id, &sourceType, &sourceID, &index, &text, &metadata, &blob); err != nil {
			return results, fmt.Errorf("scanning chunk: %w", err)
		}
		vec, err := vecmath.Decode(blob)
		if err != nil {
			return results, err
		}
		if len(vec) != len(query) {
			return []domain.SearchResult{}, fmt.Errorf("%w: query has %d, index has %d",
				domain.ErrDimensionMismatch, len(query), len(vec))
		}

		chunk := domain.Chunk{
			Text:       text,
			Index:      index,
			SourceID:   sourceID,
			SourceType: domain.SourceType(sourceType),
		}
		if metadata != "" && metadata != "null" {
			if err := json.Unmarshal([]byte(metadata), &chunk.Metadata); err != nil {
				return results, fmt.Errorf("unmarshalling metadata of %s: %w", id, err)
			}
		}

		results = append(results, domain.SearchResult{
			Chunk:    chunk,
			Score:    vecmath.CosineSimilarity(query, vec),
			Metadata: map[string]any{"id": id},
		})
	}
	if err := rows.Err(); err != nil {
		return []domain.SearchResult{}, fmt.Errorf("iterating chunks: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.CompositeID() < results[j].Chunk.CompositeID()
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// filterClause renders the filter as a WHERE clause over the collection.
func (v *VectorStore) filterClause(filter domain.SearchFilter) (string, []any) {
	clauses := []string{"collection = ?"}
	args := []any{v.collection}

	if filter.SourceType != "" {
		clauses = append(clauses, "source_type = ?")
		args = append(args, string(filter.SourceType))
	}
	switch len(filter.SourceIDs) {
	case 0:
	case 1:
		clauses = append(clauses, "source_id = ?")
		args = append(args, filter.SourceIDs[0])
	default:
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.SourceIDs)), ",")
		clauses = append(clauses, "source_id IN ("+placeholders+")")
		for _, id := range filter.SourceIDs {
			args = append(args, id)
		}
	}
	return strings.Join(clauses, " AND "), args
}

// DeleteBySource removes every chunk of the source.
func (v *VectorStore) DeleteBySource(ctx context.Context, ref domain.SourceRef) error {
	_, err := v.store.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE collection = ? AND source_type = ? AND source_id = ?",
		v.collection, string(ref.Type), ref.ID)
	if err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", ref, err)
	}
	return nil
}

// Count returns the number of chunks in the collection.
func (v *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := v.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE collection = ?", v.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Close closes the database if the vector store opened it.
func (v *VectorStore) Close() error {
	if v.owned {
		return v.store.Close()
	}
	return nil
}

// dimension returns the vector size already stored in the collection, or 0.
func (v *VectorStore) dimension(ctx context.Context) (int, error) {
	var dim int
	err := v.store.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(dimension), 0) FROM chunks WHERE collection = ?", v.collection).Scan(&dim)
	if err != nil {
		return 0, fmt.Errorf("reading dimension: %w", err)
	}
	return dim, nil
}
