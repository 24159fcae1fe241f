package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
	"github.com/custodia-labs/ragengine/internal/logger"
)

var embedLog = logger.For("embedder")

// EmbeddingLoader opens the embedding service. It is called lazily on the
// first request that needs the model.
type EmbeddingLoader func(ctx context.Context) (driven.EmbeddingService, error)

// EmbedderOption configures an Embedder.
type EmbedderOption func(*Embedder)

// WithEmbeddingCache attaches a cache whose entries expire after maxAge.
func WithEmbeddingCache(cache driven.EmbeddingCache, maxAge time.Duration) EmbedderOption {
	return func(e *Embedder) {
		e.cache = cache
		e.maxAge = maxAge
	}
}

// WithBatchSize caps the number of texts sent in one provider call.
func WithBatchSize(n int) EmbedderOption {
	return func(e *Embedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithEmbedderMetrics records cache and provider measurements.
func WithEmbedderMetrics(m driven.EngineMetrics) EmbedderOption {
	return func(e *Embedder) {
		if m != nil {
			e.metrics = m
		}
	}
}

// Embedder turns text into vectors through a cache-first, batched path.
// The model is loaded on first use; a failed load is retried on the next call.
type Embedder struct {
	model     string
	load      EmbeddingLoader
	cache     driven.EmbeddingCache
	maxAge    time.Duration
	batchSize int
	metrics   driven.EngineMetrics

	mu  sync.Mutex
	svc driven.EmbeddingService
}

// NewEmbedder creates an embedder for model. The model name also keys the cache.
func NewEmbedder(model string, load EmbeddingLoader, opts ...EmbedderOption) *Embedder {
	e := &Embedder{
		model:     model,
		load:      load,
		maxAge:    domain.DefaultCacheMaxAge,
		batchSize: domain.DefaultEmbeddingBatchSize,
		metrics:   driven.NopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewEmbedderFromService wraps an already opened embedding service.
func NewEmbedderFromService(svc driven.EmbeddingService, opts ...EmbedderOption) *Embedder {
	e := NewEmbedder(svc.ModelName(), nil, opts...)
	e.svc = svc
	return e
}

// ModelName returns the configured model identifier.
func (e *Embedder) ModelName() string {
	return e.model
}

// Dimension returns the model's vector size, loading the model if needed.
func (e *Embedder) Dimension(ctx context.Context) (int, error) {
	svc, err := e.service(ctx)
	if err != nil {
		return 0, err
	}
	return svc.Dimensions(), nil
}

// EmbedText returns the vector of one text.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if vectors[0] == nil {
		return nil, fmt.Errorf("%w: model returned an empty vector", domain.ErrEmbeddingUnavailable)
	}
	return vectors[0], nil
}

// EmbedTexts returns one vector per text in input order.
// Cached vectors are reused; every miss goes to the model in batches and
// valid results are written back to the cache. A vector the model returned
// empty or with the wrong size is reported as nil.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	var missIdx []int
	for i, text := range texts {
		if v, ok := e.cacheGet(ctx, text); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
	}
	hits := len(texts) - len(missIdx)
	e.metrics.CacheLookups(hits, len(missIdx))
	if e.cache != nil {
		embedLog.Debug("%d cache hits, %d misses", hits, len(missIdx))
	}

	if len(missIdx) == 0 {
		return out, nil
	}

	svc, err := e.service(ctx)
	if err != nil {
		return nil, err
	}
	dim := svc.Dimensions()

	for start := 0; start < len(missIdx); start += e.batchSize {
		end := min(start+e.batchSize, len(missIdx))
		batch := missIdx[start:end]

		batchTexts := make([]string, len(batch))
		for j, idx := range batch {
			batchTexts[j] = texts[idx]
		}

		began := time.Now()
		vectors, err := svc.EmbedBatch(ctx, batchTexts)
		e.metrics.EmbeddingCall(len(batchTexts), time.Since(began), err)
		if err != nil {
			return nil, fmt.Errorf("embedding batch of %d: %w", len(batchTexts), err)
		}
		if len(vectors) != len(batchTexts) {
			return nil, fmt.Errorf("embedding batch of %d: model returned %d vectors", len(batchTexts), len(vectors))
		}

		for j, idx := range batch {
			v := vectors[j]
			if len(v) == 0 || (dim > 0 && len(v) != dim) {
				embedLog.Warn("discarding invalid vector of length %d for input %d", len(v), idx)
				continue
			}
			out[idx] = v
			e.cacheSet(ctx, texts[idx], v)
		}
	}

	return out, nil
}

// EmbedChunks pairs every chunk with its vector. Chunks whose vector is
// invalid are returned with a nil Vector for the caller to drop.
func (e *Embedder) EmbedChunks(ctx context.Context, chunks []domain.Chunk) ([]domain.ChunkEmbedding, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := e.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ChunkEmbedding, len(chunks))
	for i, c := range chunks {
		out[i] = domain.ChunkEmbedding{Chunk: c, Vector: vectors[i]}
	}
	return out, nil
}

// Close releases the embedding service and the cache.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if e.svc != nil {
		errs = append(errs, e.svc.Close())
		e.svc = nil
	}
	if e.cache != nil {
		errs = append(errs, e.cache.Close())
	}
	return errors.Join(errs...)
}

// service loads the model once. Concurrent callers wait on the same load.
func (e *Embedder) service(ctx context.Context) (driven.EmbeddingService, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.svc != nil {
		return e.svc, nil
	}
	if e.load == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	svc, err := e.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	embedLog.Info("loaded embedding model %s (%d dimensions)", svc.ModelName(), svc.Dimensions())
	e.svc = svc
	return svc, nil
}

func (e *Embedder) cacheGet(ctx context.Context, text string) ([]float32, bool) {
	if e.cache == nil {
		return nil, false
	}
	return e.cache.Get(ctx, text, e.model, e.maxAge)
}

func (e *Embedder) cacheSet(ctx context.Context, text string, v []float32) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, text, e.model, v); err != nil {
		embedLog.Warn("cache write failed: %v", err)
	}
}
