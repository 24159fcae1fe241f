package driven

import (
	"context"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

// VectorStore indexes chunk vectors for similarity search.
// Implementations must be safe for concurrent use.
type VectorStore interface {
	// AddChunks upserts each (chunk, vector) pair keyed by the chunk's
	// composite id. Re-adding the same composite id overwrites.
	AddChunks(ctx context.Context, items []domain.ChunkEmbedding) error

	// Search returns up to limit nearest neighbours of query that satisfy
	// filter, ordered by descending score. Scores are 1 - distance.
	Search(ctx context.Context, query []float32, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error)

	// DeleteBySource removes every chunk of the source. No-op if none match.
	DeleteBySource(ctx context.Context, ref domain.SourceRef) error

	// Count returns the total number of indexed chunks.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}
