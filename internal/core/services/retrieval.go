package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
	"github.com/custodia-labs/ragengine/internal/core/ports/driving"
	"github.com/custodia-labs/ragengine/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// DefaultSearchLimit is used when a caller passes a non-positive limit.
const DefaultSearchLimit = 5

var retrievalLog = logger.For("retrieval")

// RetrievalOption configures a RetrievalService.
type RetrievalOption func(*RetrievalService)

// WithCatalog attaches the source catalog used for stored sources and corpora.
func WithCatalog(catalog driven.SourceCatalog) RetrievalOption {
	return func(s *RetrievalService) {
		s.catalog = catalog
	}
}

// WithChunkRecords attaches the store that receives chunk records.
func WithChunkRecords(records driven.ChunkRecordStore) RetrievalOption {
	return func(s *RetrievalService) {
		s.records = records
	}
}

// WithQueueSettings sizes the processing queue.
func WithQueueSettings(settings domain.QueueSettings) RetrievalOption {
	return func(s *RetrievalService) {
		s.queueOpts = append(s.queueOpts, WithWorkers(settings.Workers), WithCapacity(settings.Capacity))
	}
}

// WithRetrievalMetrics records degraded searches and queue activity.
func WithRetrievalMetrics(m driven.EngineMetrics) RetrievalOption {
	return func(s *RetrievalService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// RetrievalService chunks, embeds and indexes sources, and answers
// searches and context requests over the index.
type RetrievalService struct {
	chunker  driven.Chunker
	embedder *Embedder
	store    driven.VectorStore
	builder  *ContextBuilder
	catalog  driven.SourceCatalog
	records  driven.ChunkRecordStore
	metrics  driven.EngineMetrics

	queueOpts []QueueOption
	queue     *ProcessingQueue
}

// NewRetrievalService wires the engine and starts its processing queue.
// The queue's unit of work is ProcessStoredSource.
func NewRetrievalService(
	chunker driven.Chunker,
	embedder *Embedder,
	store driven.VectorStore,
	builder *ContextBuilder,
	opts ...RetrievalOption,
) *RetrievalService {
	s := &RetrievalService{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		builder:  builder,
		metrics:  driven.NopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}

	queueOpts := append([]QueueOption{WithQueueMetrics(s.metrics)}, s.queueOpts...)
	s.queue = NewProcessingQueue(func(ctx context.Context, ref domain.SourceRef) error {
		_, err := s.ProcessStoredSource(ctx, ref)
		return err
	}, queueOpts...)

	return s
}

// ProcessSource replaces the indexed chunks of a source with freshly
// embedded chunks of text. Chunks the model could not embed are dropped.
func (s *RetrievalService) ProcessSource(
	ctx context.Context, ref domain.SourceRef, text string, metadata map[string]any,
) ([]domain.ChunkEmbedding, error) {
	_, valid, err := s.process(ctx, ref, text, metadata)
	return valid, err
}

// ProcessStoredSource loads a source from the catalog, indexes it and
// replaces its chunk records.
func (s *RetrievalService) ProcessStoredSource(ctx context.Context, ref domain.SourceRef) (int, error) {
	if s.catalog == nil {
		return 0, domain.ErrCatalogUnavailable
	}

	src, err := s.catalog.LoadSource(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("loading %s: %w", ref, err)
	}

	all, valid, err := s.process(ctx, ref, src.Text, src.Metadata)
	if err != nil {
		return 0, err
	}

	if s.records != nil {
		records := make([]domain.ChunkRecord, len(all))
		for i, ce := range all {
			records[i] = domain.ChunkRecord{
				ID:           uuid.New().String(),
				SourceID:     ce.Chunk.SourceID,
				SourceType:   ce.Chunk.SourceType,
				ChunkText:    ce.Chunk.Text,
				ChunkIndex:   ce.Chunk.Index,
				HasEmbedding: ce.HasVector(),
				Embedding:    ce.Vector,
			}
		}
		if err := s.records.ReplaceChunkRecords(ctx, ref, records); err != nil {
			return 0, fmt.Errorf("saving chunk records for %s: %w", ref, err)
		}
	}

	return len(valid), nil
}

// process returns every chunk with its vector (nil when the model failed)
// and the subset that was indexed.
func (s *RetrievalService) process(
	ctx context.Context, ref domain.SourceRef, text string, metadata map[string]any,
) (all, valid []domain.ChunkEmbedding, err error) {
	if err := ref.Validate(); err != nil {
		return nil, nil, err
	}

	chunks, err := s.chunker.ChunkText(text, ref, metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("chunking %s: %w", ref, err)
	}

	all, err = s.embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding %s: %w", ref, err)
	}

	valid = make([]domain.ChunkEmbedding, 0, len(all))
	for _, ce := range all {
		if !ce.HasVector() {
			retrievalLog.Warn("dropping chunk %d of %s: no embedding", ce.Chunk.Index, ref)
			continue
		}
		valid = append(valid, ce)
	}

	if err := s.store.DeleteBySource(ctx, ref); err != nil {
		return nil, nil, fmt.Errorf("deleting old chunks of %s: %w", ref, err)
	}
	if len(valid) > 0 {
		if err := s.store.AddChunks(ctx, valid); err != nil {
			return nil, nil, fmt.Errorf("indexing %s: %w", ref, err)
		}
	}

	retrievalLog.Info("indexed %d of %d chunks for %s", len(valid), len(all), ref)
	return all, valid, nil
}

// Search embeds query and returns ranked results plus the query vector.
// Backend failures yield an empty list.
func (s *RetrievalService) Search(
	ctx context.Context, query string, limit int, filter domain.SearchFilter,
) ([]domain.SearchResult, []float32) {
	outcome, vector, err := s.SearchOutcome(ctx, query, limit, filter)
	if err != nil {
		retrievalLog.Warn("search rejected: %v", err)
	}
	return outcome.Results, vector
}

// SearchOutcome is Search with backend failures reported as Degraded.
func (s *RetrievalService) SearchOutcome(
	ctx context.Context, query string, limit int, filter domain.SearchFilter,
) (domain.SearchOutcome, []float32, error) {
	if err := filter.Validate(); err != nil {
		return domain.SearchOutcome{Results: []domain.SearchResult{}}, nil, err
	}
	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return s.degraded(fmt.Errorf("embedding query: %w", err)), nil, nil
	}

	return s.searchVector(ctx, vector, limit, filter), vector, nil
}

func (s *RetrievalService) searchVector(
	ctx context.Context, vector []float32, limit int, filter domain.SearchFilter,
) domain.SearchOutcome {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	results, err := s.store.Search(ctx, vector, limit, filter)
	if err != nil {
		return s.degraded(fmt.Errorf("vector search: %w", err))
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	return domain.SearchOutcome{Results: results}
}

func (s *RetrievalService) degraded(err error) domain.SearchOutcome {
	retrievalLog.Warn("search degraded: %v", err)
	s.metrics.SearchDegraded()
	return domain.DegradedOutcome(err)
}

// GetContextForQuery retrieves the best chunks for query and assembles them.
// With no active sources one unfiltered search runs. Otherwise each active
// note and each document of each active corpus is searched on its own, the
// union is ranked by score and cut to limit.
func (s *RetrievalService) GetContextForQuery(
	ctx context.Context, query string, active *domain.ActiveSources, limit int,
) (string, []domain.ContextSource) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.degraded(fmt.Errorf("embedding query: %w", err))
		return s.builder.Build(nil, query)
	}

	if active.IsEmpty() {
		outcome := s.searchVector(ctx, vector, limit, domain.SearchFilter{})
		return s.builder.Build(outcome.Results, query)
	}

	var results []domain.SearchResult
	for _, noteID := range active.NoteIDs {
		ref := domain.SourceRef{Type: domain.SourceTypeNote, ID: noteID}
		results = append(results, s.searchVector(ctx, vector, limit, domain.ForSource(ref)).Results...)
	}

	for _, corpusID := range active.CorpusIDs {
		docIDs, err := s.corpusDocuments(ctx, corpusID)
		if err != nil {
			retrievalLog.Warn("skipping corpus %s: %v", corpusID, err)
			continue
		}
		if len(docIDs) == 0 {
			continue
		}

		perDoc := max(1, limit/len(docIDs))
		retrievalLog.Debug("corpus %s: %d documents, %d results each", corpusID, len(docIDs), perDoc)
		for _, docID := range docIDs {
			ref := domain.SourceRef{Type: domain.SourceTypeDocument, ID: docID}
			results = append(results, s.searchVector(ctx, vector, perDoc, domain.ForSource(ref)).Results...)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}

	return s.builder.Build(results, query)
}

func (s *RetrievalService) corpusDocuments(ctx context.Context, corpusID string) ([]string, error) {
	if s.catalog == nil {
		return nil, domain.ErrCatalogUnavailable
	}
	return s.catalog.CorpusDocumentIDs(ctx, corpusID)
}

// AvailableSources lists the corpora and notes in the catalog.
func (s *RetrievalService) AvailableSources(ctx context.Context) (*domain.AvailableSources, error) {
	if s.catalog == nil {
		return nil, domain.ErrCatalogUnavailable
	}
	return s.catalog.AvailableSources(ctx)
}

// Statistics reports the state of the engine. Backend failures report zero.
func (s *RetrievalService) Statistics(ctx context.Context) domain.Statistics {
	stats := domain.Statistics{
		ChunkerStrategy:       s.chunker.Strategy(),
		EmbeddingModel:        s.embedder.ModelName(),
		ProcessingQueueLength: s.queue.Len(),
	}

	if n, err := s.store.Count(ctx); err != nil {
		retrievalLog.Warn("counting chunks: %v", err)
	} else {
		stats.ChunkCount = n
	}

	if dim, err := s.embedder.Dimension(ctx); err != nil {
		retrievalLog.Warn("loading embedding model: %v", err)
	} else {
		stats.EmbeddingDimension = dim
	}

	if s.catalog != nil {
		if counts, err := s.catalog.Counts(ctx); err != nil {
			retrievalLog.Warn("counting catalog: %v", err)
		} else {
			stats.Catalog = &counts
		}
	}

	return stats
}

// Queue returns the background processing queue.
func (s *RetrievalService) Queue() driving.ProcessingQueue {
	return s.queue
}

// Close drains the queue, then releases the vector store and the embedder.
func (s *RetrievalService) Close(ctx context.Context) error {
	return errors.Join(
		s.queue.Shutdown(ctx),
		s.store.Close(),
		s.embedder.Close(),
	)
}
