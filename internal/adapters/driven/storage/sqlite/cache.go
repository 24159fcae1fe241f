package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/ragengine/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
	"github.com/custodia-labs/ragengine/internal/logger"
)

// Ensure EmbeddingCache implements the interface.
var _ driven.EmbeddingCache = (*EmbeddingCache)(nil)

var cacheLog = logger.For("sqlite-cache")

// EmbeddingCache stores vectors in the embedding_cache table.
// Timestamps are unix nanoseconds.
type EmbeddingCache struct {
	store *Store
	owned bool
	now   func() time.Time
}

// OpenEmbeddingCache opens the database at path and returns its cache.
// Closing the cache closes the database.
func OpenEmbeddingCache(path string) (*EmbeddingCache, error) {
	s, err := NewStore(path)
	if err != nil {
		return nil, err
	}
	c := s.EmbeddingCache()
	c.owned = true
	return c, nil
}

func (c *EmbeddingCache) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// Get returns the cached vector unless it is older than maxAge.
// Read errors are logged and reported as a miss.
func (c *EmbeddingCache) Get(ctx context.Context, text, model string, maxAge time.Duration) ([]float32, bool) {
	var (
		blob      []byte
		createdAt int64
	)
	err := c.store.db.QueryRowContext(ctx,
		"SELECT embedding, created_at FROM embedding_cache WHERE key = ?",
		domain.EmbeddingCacheKey(text, model)).Scan(&blob, &createdAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			cacheLog.Warn("cache read failed: %v", err)
		}
		return nil, false
	}

	if maxAge > 0 && c.clock().Sub(time.Unix(0, createdAt)) > maxAge {
		return nil, false
	}

	vec, err := vecmath.Decode(blob)
	if err != nil {
		cacheLog.Warn("corrupt cache entry: %v", err)
		return nil, false
	}
	return vec, true
}

// Set stores vector for (text, model), replacing any previous entry.
func (c *EmbeddingCache) Set(ctx context.Context, text, model string, vector []float32) error {
	_, err := c.store.db.ExecContext(ctx, `
		INSERT INTO embedding_cache (key, model, embedding, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET embedding = excluded.embedding, created_at = excluded.created_at
	`, domain.EmbeddingCacheKey(text, model), model, vecmath.Encode(vector), c.clock().UnixNano())
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Clear deletes entries older than maxAge.
func (c *EmbeddingCache) Clear(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := c.clock().Add(-maxAge).UnixNano()
	res, err := c.store.db.ExecContext(ctx, "DELETE FROM embedding_cache WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("clearing cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting cleared entries: %w", err)
	}
	return int(n), nil
}

// Close closes the database if the cache opened it.
func (c *EmbeddingCache) Close() error {
	if c.owned {
		return c.store.Close()
	}
	return nil
}
