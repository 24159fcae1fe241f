package driving

import (
	"context"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

// RetrievalService is the engine's inbound surface: process sources,
// search them and assemble context for a downstream language model.
type RetrievalService interface {
	// ProcessSource chunks, embeds and indexes text for one source,
	// replacing anything indexed for it before. Errors propagate.
	ProcessSource(ctx context.Context, ref domain.SourceRef, text string, metadata map[string]any) ([]domain.ChunkEmbedding, error)

	// ProcessStoredSource loads a source from the catalog, processes it
	// and replaces its chunk records. Returns the number of chunks indexed.
	ProcessStoredSource(ctx context.Context, ref domain.SourceRef) (int, error)

	// Search embeds query and returns ranked results plus the query vector.
	// Backend failures degrade to an empty, non-nil result list.
	Search(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.SearchResult, []float32)

	// SearchOutcome is Search with the degraded flag exposed.
	// The error is only non-nil for a malformed filter.
	SearchOutcome(ctx context.Context, query string, limit int, filter domain.SearchFilter) (domain.SearchOutcome, []float32, error)

	// GetContextForQuery searches the active sources (or the whole index
	// when none are active) and assembles a context string with attributions.
	GetContextForQuery(ctx context.Context, query string, active *domain.ActiveSources, limit int) (string, []domain.ContextSource)

	// AvailableSources lists the corpora and notes a caller could activate.
	AvailableSources(ctx context.Context) (*domain.AvailableSources, error)

	// Statistics reports index size, configuration and queue depth.
	Statistics(ctx context.Context) domain.Statistics

	// Queue returns the background processing queue.
	Queue() ProcessingQueue

	// Close stops the queue and releases the vector store.
	Close(ctx context.Context) error
}
