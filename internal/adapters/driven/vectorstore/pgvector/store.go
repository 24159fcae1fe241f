// Package pgvector provides a VectorStore on PostgreSQL with the pgvector
// extension. Each collection is one table; scores are 1 - cosine distance.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
	"github.com/custodia-labs/ragengine/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

var log = logger.For("pgvector")

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Store is a pgvector-backed vector store over one table.
type Store struct {
	db    *sql.DB
	table string

	mu        sync.Mutex
	dimension int
}

// New opens the database named by dsn and attaches to the collection
// table, which is created on the first AddChunks.
func New(ctx context.Context, dsn, collection string) (*Store, error) {
	if !identPattern.MatchString(collection) {
		return nil, fmt.Errorf("%w: collection %q is not a valid table name", domain.ErrInvalidInput, collection)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening postgres: %v", domain.ErrVectorStoreUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: connecting to postgres: %v", domain.ErrVectorStoreUnavailable, err)
	}

	s := &Store{db: db, table: collection}
	if s.dimension, err = s.tableDimension(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// tableDimension returns the declared vector size of the table, or 0 if
// the table does not exist yet.
func (s *Store) tableDimension(ctx context.Context) (int, error) {
	var dim sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = to_regclass($1) AND attname = 'embedding'
	`, s.table).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("inspecting table %s: %w", s.table, err)
	}
	return int(dim.Int64), nil
}

func (s *Store) ensureTable(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension != 0 {
		if dim != s.dimension {
			return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, dim, s.dimension)
		}
		return nil
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          TEXT PRIMARY KEY,
			source_type TEXT NOT NULL,
			source_id   TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			text        TEXT NOT NULL,
			metadata    JSONB NOT NULL DEFAULT '{}',
			embedding   vector(%d) NOT NULL
		)`, s.table, dim),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_source_idx ON %s (source_type, source_id)", s.table, s.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)",
			s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating table %s: %w", s.table, err)
		}
	}
	log.Info("created table %s (dim %d)", s.table, dim)
	s.dimension = dim
	return nil
}

// AddChunks upserts chunks keyed by composite id.
func (s *Store) AddChunks(ctx context.Context, items []domain.ChunkEmbedding) error {
	if len(items) == 0 {
		return nil
	}
	dim := len(items[0].Vector)
	for _, it := range items {
		if len(it.Vector) == 0 {
			return fmt.Errorf("%w: chunk %s has no vector", domain.ErrInvalidInput, it.Chunk.CompositeID())
		}
		if len(it.Vector) != dim {
			return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(it.Vector), dim)
		}
	}
	if err := s.ensureTable(ctx, dim); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	//nolint:gosec // G201: table name is validated against identPattern
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, source_type, source_id, chunk_index, text, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding
	`, s.table))
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		c := it.Chunk
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata: %w", err)
		}
		if string(meta) == "null" {
			meta = []byte("{}")
		}
		if _, err := stmt.ExecContext(ctx, c.CompositeID(), string(c.SourceType), c.SourceID, c.Index,
			c.Text, meta, pgvector.NewVector(it.Vector)); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.CompositeID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	return nil
}

// FilterClause renders filter as a WHERE condition whose placeholders
// start at $first. An empty filter renders as "TRUE".
func FilterClause(filter domain.SearchFilter, first int) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	next := func() string { return "$" + strconv.Itoa(first+len(args)) }

	if filter.SourceType != "" {
		clauses = append(clauses, "source_type = "+next())
		args = append(args, string(filter.SourceType))
	}
	switch len(filter.SourceIDs) {
	case 0:
	case 1:
		clauses = append(clauses, "source_id = "+next())
		args = append(args, filter.SourceIDs[0])
	default:
		clauses = append(clauses, "source_id = ANY("+next()+")")
		args = append(args, pq.Array(filter.SourceIDs))
	}

	if len(clauses) == 0 {
		return "TRUE", nil
	}
	return strings.Join(clauses, " AND "), args
}

// Search returns up to limit chunks matching filter, most similar first.
func (s *Store) Search(
	ctx context.Context, query []float32, limit int, filter domain.SearchFilter,
) ([]domain.SearchResult, error) {
	results := []domain.SearchResult{}
	if limit <= 0 {
		return results, nil
	}

	s.mu.Lock()
	dim := s.dimension
	s.mu.Unlock()
	if dim == 0 {
		return results, nil
	}
	if len(query) != dim {
		return results, fmt.Errorf("%w: query has %d, index has %d", domain.ErrDimensionMismatch, len(query), dim)
	}

	where, args := FilterClause(filter, 3)
	//nolint:gosec // G201: table name is validated against identPattern
	q := fmt.Sprintf(`
		SELECT id, source_type, source_id, chunk_index, text, metadata, 1 - (embedding <=> $1::vector) AS score
		FROM %s WHERE %s
		ORDER BY embedding <=> $1::vector
		LIMIT $2
	`, s.table, where)

	rows, err := s.db.QueryContext(ctx, q, append([]any{pgvector.NewVector(query), limit}, args...)...)
	if err != nil {
		return results, fmt.Errorf("searching %s: %w", s.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, sourceType, sourceID, text string
			index                          int
			meta                           []byte
			score                          float64
		)
		if err := rows.Scan(&id, &sourceType, &sourceID, &index, &text, &meta, &score); err != nil {
			return []domain.SearchResult{}, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk := domain.Chunk{
			Text:       text,
			Index:      index,
			SourceID:   sourceID,
			SourceType: domain.SourceType(sourceType),
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &chunk.Metadata); err != nil {
				return []domain.SearchResult{}, fmt.Errorf("unmarshalling metadata of %s: %w", id, err)
			}
		}
		results = append(results, domain.SearchResult{
			Chunk:    chunk,
			Score:    score,
			Metadata: map[string]any{"id": id},
		})
	}
	if err := rows.Err(); err != nil {
		return []domain.SearchResult{}, fmt.Errorf("iterating chunks: %w", err)
	}
	return results, nil
}

// DeleteBySource removes every chunk of the source.
func (s *Store) DeleteBySource(ctx context.Context, ref domain.SourceRef) error {
	if !s.hasTable() {
		return nil
	}
	where, args := FilterClause(domain.ForSource(ref), 1)
	//nolint:gosec // G201: table name is validated against identPattern
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", s.table, where), args...); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", ref, err)
	}
	return nil
}

// Count returns the number of chunks in the table.
func (s *Store) Count(ctx context.Context) (int, error) {
	if !s.hasTable() {
		return 0, nil
	}
	var n int
	//nolint:gosec // G201: table name is validated against identPattern
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", s.table, err)
	}
	return n, nil
}

// Close closes the database pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) hasTable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dimension != 0
}
