package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbeddingService implements driven.EmbeddingService for testing.
// Vectors are derived from the text length so results are deterministic.
type mockEmbeddingService struct {
	mu        sync.Mutex
	dims      int
	calls     int
	inputs    [][]string
	embedErr  error
	emptyFor  map[string]bool
	closed    bool
	shortRead bool
}

var _ driven.EmbeddingService = (*mockEmbeddingService)(nil)

func newMockEmbeddingService(dims int) *mockEmbeddingService {
	return &mockEmbeddingService{dims: dims, emptyFor: map[string]bool{}}
}

func (m *mockEmbeddingService) vectorFor(text string) []float32 {
	v := make([]float32, m.dims)
	v[0] = float32(len(text))
	if m.dims > 1 {
		v[1] = 1
	}
	return v
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.inputs = append(m.inputs, append([]string(nil), texts...))
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if m.emptyFor[t] {
			continue
		}
		out[i] = m.vectorFor(t)
	}
	if m.shortRead {
		return out[:len(out)-1], nil
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int   { return m.dims }
func (m *mockEmbeddingService) ModelName() string { return "mock-model" }
func (m *mockEmbeddingService) Ping(_ context.Context) error {
	return nil
}

func (m *mockEmbeddingService) Close() error {
	m.closed = true
	return nil
}

func (m *mockEmbeddingService) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockCache implements driven.EmbeddingCache for testing.
type mockCache struct {
	mu       sync.Mutex
	entries  map[string][]float32
	setErr   error
	clearN   int
	clearErr error
	clearAge time.Duration
	closed   bool

	// clearHook runs at the start of Clear when set.
	clearHook func()
}

var _ driven.EmbeddingCache = (*mockCache)(nil)

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string][]float32)}
}

func (m *mockCache) Get(_ context.Context, text, model string, _ time.Duration) ([]float32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[domain.EmbeddingCacheKey(text, model)]
	return v, ok
}

func (m *mockCache) Set(_ context.Context, text, model string, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[domain.EmbeddingCacheKey(text, model)] = vector
	return nil
}

func (m *mockCache) Clear(_ context.Context, maxAge time.Duration) (int, error) {
	if m.clearHook != nil {
		m.clearHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearAge = maxAge
	return m.clearN, m.clearErr
}

func (m *mockCache) Close() error {
	m.closed = true
	return nil
}

// mockVectorStore implements driven.VectorStore for testing.
// It keeps chunks in a map and records every search filter.
type mockVectorStore struct {
	mu        sync.Mutex
	items     map[string]domain.ChunkEmbedding
	scores    map[string]float64
	searches  []domain.SearchFilter
	limits    []int
	calls     []string
	searchErr error
	addErr    error
	deleteErr error
	countErr  error
	closed    bool
}

var _ driven.VectorStore = (*mockVectorStore)(nil)

func newMockVectorStore() *mockVectorStore {
	return &mockVectorStore{
		items:  make(map[string]domain.ChunkEmbedding),
		scores: make(map[string]float64),
	}
}

func (m *mockVectorStore) AddChunks(_ context.Context, items []domain.ChunkEmbedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "add")
	if m.addErr != nil {
		return m.addErr
	}
	for _, it := range items {
		m.items[it.Chunk.CompositeID()] = it
	}
	return nil
}

func (m *mockVectorStore) Search(
	_ context.Context, _ []float32, limit int, filter domain.SearchFilter,
) ([]domain.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, filter)
	m.limits = append(m.limits, limit)
	if m.searchErr != nil {
		return nil, m.searchErr
	}

	var out []domain.SearchResult
	for id, it := range m.items {
		if filter.Matches(it.Chunk) {
			out = append(out, domain.SearchResult{Chunk: it.Chunk, Score: m.scores[id]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockVectorStore) DeleteBySource(_ context.Context, ref domain.SourceRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "delete")
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for id, it := range m.items {
		if it.Chunk.Source() == ref {
			delete(m.items, id)
		}
	}
	return nil
}

func (m *mockVectorStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.items), nil
}

func (m *mockVectorStore) Close() error {
	m.closed = true
	return nil
}

// put seeds one chunk with a fixed score.
func (m *mockVectorStore) put(sourceType domain.SourceType, sourceID string, index int, score float64) {
	c := domain.Chunk{Text: sourceID, Index: index, SourceID: sourceID, SourceType: sourceType}
	m.items[c.CompositeID()] = domain.ChunkEmbedding{Chunk: c, Vector: []float32{1}}
	m.scores[c.CompositeID()] = score
}

// mockCatalog implements driven.SourceCatalog for testing.
type mockCatalog struct {
	sources map[domain.SourceRef]*domain.Source
	corpora map[string][]string
	loadErr error
}

var _ driven.SourceCatalog = (*mockCatalog)(nil)

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		sources: make(map[domain.SourceRef]*domain.Source),
		corpora: make(map[string][]string),
	}
}

func (m *mockCatalog) LoadSource(_ context.Context, ref domain.SourceRef) (*domain.Source, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	src, ok := m.sources[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return src, nil
}

func (m *mockCatalog) CorpusDocumentIDs(_ context.Context, corpusID string) ([]string, error) {
	ids, ok := m.corpora[corpusID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ids, nil
}

func (m *mockCatalog) AvailableSources(_ context.Context) (*domain.AvailableSources, error) {
	out := &domain.AvailableSources{}
	for id, docs := range m.corpora {
		out.Corpora = append(out.Corpora, domain.Corpus{ID: id, DocumentCount: len(docs)})
	}
	return out, nil
}

func (m *mockCatalog) Counts(_ context.Context) (domain.CatalogCounts, error) {
	return domain.CatalogCounts{Corpora: len(m.corpora), Notes: 1}, nil
}

func (m *mockCatalog) CreateCorpus(_ context.Context, c domain.Corpus) (*domain.Corpus, error) {
	return &c, nil
}

func (m *mockCatalog) AddDocument(_ context.Context, d domain.DocumentRecord) (*domain.DocumentRecord, error) {
	return &d, nil
}

func (m *mockCatalog) SaveNote(_ context.Context, n domain.Note) (*domain.Note, error) {
	return &n, nil
}

func (m *mockCatalog) DeleteNote(_ context.Context, id string) error {
	ref := domain.SourceRef{Type: domain.SourceTypeNote, ID: id}
	if _, ok := m.sources[ref]; !ok {
		return domain.ErrNotFound
	}
	delete(m.sources, ref)
	return nil
}

// mockRecords implements driven.ChunkRecordStore for testing.
type mockRecords struct {
	mu      sync.Mutex
	records map[domain.SourceRef][]domain.ChunkRecord
	err     error
}

var _ driven.ChunkRecordStore = (*mockRecords)(nil)

func newMockRecords() *mockRecords {
	return &mockRecords{records: make(map[domain.SourceRef][]domain.ChunkRecord)}
}

func (m *mockRecords) ReplaceChunkRecords(_ context.Context, ref domain.SourceRef, records []domain.ChunkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records[ref] = records
	return nil
}

func (m *mockRecords) ChunkRecords(_ context.Context, ref domain.SourceRef) ([]domain.ChunkRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[ref], nil
}

// mockChunker implements driven.Chunker by splitting on "|".
type mockChunker struct {
	err error
}

var _ driven.Chunker = (*mockChunker)(nil)

func (m *mockChunker) Strategy() string { return "mock" }

func (m *mockChunker) ChunkText(text string, ref domain.SourceRef, metadata map[string]any) ([]domain.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Chunk
	if text == "" {
		return out, nil
	}
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '|' {
			out = append(out, domain.Chunk{
				Text:       text[start:i],
				Index:      len(out),
				SourceID:   ref.ID,
				SourceType: ref.Type,
				Metadata:   metadata,
			})
			start = i + 1
		}
	}
	return out, nil
}

// recordingMetrics implements driven.EngineMetrics and remembers calls.
type recordingMetrics struct {
	mu       sync.Mutex
	hits     int
	misses   int
	calls    int
	finished map[domain.TaskStatus]int
	degraded int
}

var _ driven.EngineMetrics = (*recordingMetrics)(nil)

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{finished: make(map[domain.TaskStatus]int)}
}

func (m *recordingMetrics) CacheLookups(hits, misses int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits += hits
	m.misses += misses
}

func (m *recordingMetrics) EmbeddingCall(int, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
}

func (m *recordingMetrics) TaskFinished(status domain.TaskStatus, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[status]++
}

func (m *recordingMetrics) QueueDepth(int) {}

func (m *recordingMetrics) SearchDegraded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.degraded++
}

var errBackend = errors.New("backend down")
