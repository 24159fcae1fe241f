package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/ragengine/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

type entry struct {
	chunk  domain.Chunk
	vector []float32
}

// VectorStore is an in-memory implementation of driven.VectorStore.
// Search is an exact cosine scan; scores are cosine similarities.
type VectorStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	dimension int
}

// NewVectorStore creates a new in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		entries: make(map[string]entry),
	}
}

// AddChunks upserts chunks keyed by composite id.
// The first vector fixes the store's dimension.
func (s *VectorStore) AddChunks(_ context.Context, items []domain.ChunkEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range items {
		if len(it.Vector) == 0 {
			return fmt.Errorf("%w: chunk %s has no vector", domain.ErrInvalidInput, it.Chunk.CompositeID())
		}
		if s.dimension != 0 && len(it.Vector) != s.dimension {
			return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(it.Vector), s.dimension)
		}
	}
	for _, it := range items {
		if s.dimension == 0 {
			s.dimension = len(it.Vector)
		}
		vec := make([]float32, len(it.Vector))
		copy(vec, it.Vector)
		s.entries[it.Chunk.CompositeID()] = entry{chunk: it.Chunk, vector: vec}
	}
	return nil
}

// Search returns up to limit chunks matching filter, most similar first.
func (s *VectorStore) Search(
	_ context.Context, query []float32, limit int, filter domain.SearchFilter,
) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []domain.SearchResult{}
	if limit <= 0 || len(s.entries) == 0 {
		return results, nil
	}
	if len(query) != s.dimension {
		return results, fmt.Errorf("%w: query has %d, index has %d", domain.ErrDimensionMismatch, len(query), s.dimension)
	}

	for id, e := range s.entries {
		if !filter.Matches(e.chunk) {
			continue
		}
		results = append(results, domain.SearchResult{
			Chunk:    e.chunk,
			Score:    vecmath.CosineSimilarity(query, e.vector),
			Metadata: map[string]any{"id": id},
		})
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

// DeleteBySource removes every chunk of the source.
func (s *VectorStore) DeleteBySource(_ context.Context, ref domain.SourceRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if e.chunk.Source() == ref {
			delete(s.entries, id)
		}
	}
	return nil
}

// Count returns the number of indexed chunks.
func (s *VectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Close is a no-op for the memory store.
func (s *VectorStore) Close() error {
	return nil
}
