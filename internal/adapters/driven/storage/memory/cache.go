package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
)

// Ensure EmbeddingCache implements the interface.
var _ driven.EmbeddingCache = (*EmbeddingCache)(nil)

type cacheEntry struct {
	vector    []float32
	createdAt time.Time
}

// EmbeddingCache is an in-memory implementation of driven.EmbeddingCache.
type EmbeddingCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewEmbeddingCache creates a new in-memory embedding cache.
func NewEmbeddingCache() *EmbeddingCache {
	return &EmbeddingCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached vector unless it is older than maxAge.
// A non-positive maxAge disables expiry.
func (c *EmbeddingCache) Get(_ context.Context, text, model string, maxAge time.Duration) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[domain.EmbeddingCacheKey(text, model)]
	if !ok {
		return nil, false
	}
	if maxAge > 0 && c.now().Sub(e.createdAt) > maxAge {
		return nil, false
	}
	return append([]float32(nil), e.vector...), true
}

// Set stores vector for (text, model).
func (c *EmbeddingCache) Set(_ context.Context, text, model string, vector []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[domain.EmbeddingCacheKey(text, model)] = cacheEntry{
		vector:    append([]float32(nil), vector...),
		createdAt: c.now(),
	}
	return nil
}

// Clear removes entries older than maxAge.
func (c *EmbeddingCache) Clear(_ context.Context, maxAge time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-maxAge)
	removed := 0
	for k, e := range c.entries {
		if e.createdAt.Before(cutoff) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the memory cache.
func (c *EmbeddingCache) Close() error {
	return nil
}
