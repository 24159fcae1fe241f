package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

type retrievalFixture struct {
	svc      *RetrievalService
	embed    *mockEmbeddingService
	store    *mockVectorStore
	catalog  *mockCatalog
	records  *mockRecords
	metrics  *recordingMetrics
	chunker  *mockChunker
	embedder *Embedder
}

func newRetrievalFixture(t *testing.T) *retrievalFixture {
	t.Helper()
	f := &retrievalFixture{
		embed:   newMockEmbeddingService(3),
		store:   newMockVectorStore(),
		catalog: newMockCatalog(),
		records: newMockRecords(),
		metrics: newRecordingMetrics(),
		chunker: &mockChunker{},
	}
	f.embedder = NewEmbedderFromService(f.embed)
	f.svc = NewRetrievalService(f.chunker, f.embedder, f.store, NewContextBuilder(1000),
		WithCatalog(f.catalog),
		WithChunkRecords(f.records),
		WithRetrievalMetrics(f.metrics),
		WithQueueSettings(domain.QueueSettings{Workers: 1, Capacity: 8}),
	)
	t.Cleanup(func() { _ = f.svc.queue.Shutdown(context.Background()) })
	return f
}

func TestRetrievalService_ProcessSource(t *testing.T) {
	f := newRetrievalFixture(t)
	ref := noteRef("5")

	pairs, err := f.svc.ProcessSource(context.Background(), ref, "one|two|three", map[string]any{"title": "T"})
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	for i, p := range pairs {
		assert.Equal(t, i, p.Chunk.Index)
		assert.True(t, p.HasVector())
	}

	n, _ := f.store.Count(context.Background())
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"delete", "add"}, f.store.calls)
}

func TestRetrievalService_ProcessSource_ReplacesOldChunks(t *testing.T) {
	f := newRetrievalFixture(t)
	ref := noteRef("5")

	_, err := f.svc.ProcessSource(context.Background(), ref, "a|b|c|d", nil)
	require.NoError(t, err)
	_, err = f.svc.ProcessSource(context.Background(), ref, "a|b", nil)
	require.NoError(t, err)

	n, _ := f.store.Count(context.Background())
	assert.Equal(t, 2, n)
}

func TestRetrievalService_ProcessSource_DropsEmptyVectors(t *testing.T) {
	f := newRetrievalFixture(t)
	f.embed.emptyFor["bad"] = true

	pairs, err := f.svc.ProcessSource(context.Background(), noteRef("1"), "good|bad|fine", nil)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, 0, pairs[0].Chunk.Index)
	assert.Equal(t, 2, pairs[1].Chunk.Index)
}

func TestRetrievalService_ProcessSource_ErrorsPropagate(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *retrievalFixture)
	}{
		{"chunking", func(f *retrievalFixture) { f.chunker.err = errors.New("bad strategy") }},
		{"embedding", func(f *retrievalFixture) { f.embed.embedErr = errBackend }},
		{"delete", func(f *retrievalFixture) { f.store.deleteErr = errBackend }},
		{"add", func(f *retrievalFixture) { f.store.addErr = errBackend }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRetrievalFixture(t)
			tt.setup(f)
			_, err := f.svc.ProcessSource(context.Background(), noteRef("1"), "x|y", nil)
			assert.Error(t, err)
		})
	}
}

func TestRetrievalService_ProcessSource_InvalidRef(t *testing.T) {
	f := newRetrievalFixture(t)
	_, err := f.svc.ProcessSource(context.Background(), domain.SourceRef{Type: domain.SourceTypeNote}, "x", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRetrievalService_ProcessStoredSource(t *testing.T) {
	f := newRetrievalFixture(t)
	f.embed.emptyFor["skip"] = true
	ref := domain.SourceRef{Type: domain.SourceTypeDocument, ID: "9"}
	f.catalog.sources[ref] = &domain.Source{Ref: ref, Text: "first|skip|third", Metadata: map[string]any{"filename": "a.txt"}}

	n, err := f.svc.ProcessStoredSource(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records := f.records.records[ref]
	require.Len(t, records, 3)
	assert.True(t, records[0].HasEmbedding)
	assert.False(t, records[1].HasEmbedding)
	assert.Equal(t, "skip", records[1].ChunkText)
	assert.Equal(t, 2, records[2].ChunkIndex)
	assert.NotEqual(t, records[0].ID, records[2].ID)
}

func TestRetrievalService_ProcessStoredSource_NotFound(t *testing.T) {
	f := newRetrievalFixture(t)
	_, err := f.svc.ProcessStoredSource(context.Background(), noteRef("404"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRetrievalService_ProcessStoredSource_NoCatalog(t *testing.T) {
	svc := NewRetrievalService(&mockChunker{}, NewEmbedderFromService(newMockEmbeddingService(2)),
		newMockVectorStore(), NewContextBuilder(10))
	defer func() { _ = svc.Close(context.Background()) }()

	_, err := svc.ProcessStoredSource(context.Background(), noteRef("1"))
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)

	_, err = svc.AvailableSources(context.Background())
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
}

func TestRetrievalService_QueueRunsStoredSource(t *testing.T) {
	f := newRetrievalFixture(t)
	ok := noteRef("1")
	f.catalog.sources[ok] = &domain.Source{Ref: ok, Text: "hello|world"}

	okID, err := f.svc.Queue().AddTask(ok)
	require.NoError(t, err)
	missingID, err := f.svc.Queue().AddTask(noteRef("2"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		a, _ := f.svc.Queue().GetTask(okID)
		b, _ := f.svc.Queue().GetTask(missingID)
		return a.Status.IsTerminal() && b.Status.IsTerminal()
	}, 2*time.Second, 5*time.Millisecond)

	a, _ := f.svc.Queue().GetTask(okID)
	b, _ := f.svc.Queue().GetTask(missingID)
	assert.Equal(t, domain.TaskCompleted, a.Status)
	assert.Equal(t, domain.TaskError, b.Status)
	assert.NotEmpty(t, b.Error)
}

func TestRetrievalService_Search(t *testing.T) {
	f := newRetrievalFixture(t)
	f.store.put(domain.SourceTypeNote, "1", 0, 0.9)
	f.store.put(domain.SourceTypeDocument, "2", 0, 0.4)

	results, vector := f.svc.Search(context.Background(), "query", 10, domain.SearchFilter{SourceType: domain.SourceTypeNote})
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].Chunk.SourceID)
	assert.Len(t, vector, 3)
}

func TestRetrievalService_Search_DegradesOnBackendError(t *testing.T) {
	t.Run("vector store", func(t *testing.T) {
		f := newRetrievalFixture(t)
		f.store.searchErr = errBackend

		results, vector := f.svc.Search(context.Background(), "query", 5, domain.SearchFilter{})
		assert.NotNil(t, results)
		assert.Empty(t, results)
		assert.NotNil(t, vector)

		outcome, _, err := f.svc.SearchOutcome(context.Background(), "query", 5, domain.SearchFilter{})
		require.NoError(t, err)
		assert.True(t, outcome.Degraded)
		assert.ErrorIs(t, outcome.Err, errBackend)
		assert.Equal(t, 2, f.metrics.degraded)
	})

	t.Run("embedding", func(t *testing.T) {
		f := newRetrievalFixture(t)
		f.embed.embedErr = errBackend

		results, vector := f.svc.Search(context.Background(), "query", 5, domain.SearchFilter{})
		assert.NotNil(t, results)
		assert.Empty(t, results)
		assert.Nil(t, vector)
	})
}

func TestRetrievalService_SearchOutcome_ZeroMatchesIsNotDegraded(t *testing.T) {
	f := newRetrievalFixture(t)

	outcome, _, err := f.svc.SearchOutcome(context.Background(), "query", 5, domain.SearchFilter{})
	require.NoError(t, err)
	assert.False(t, outcome.Degraded)
	assert.NotNil(t, outcome.Results)
	assert.Empty(t, outcome.Results)
}

func TestRetrievalService_SearchOutcome_InvalidFilter(t *testing.T) {
	f := newRetrievalFixture(t)

	_, _, err := f.svc.SearchOutcome(context.Background(), "q", 5, domain.SearchFilter{SourceType: "email"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, f.store.searches)
}

func TestRetrievalService_Search_DefaultLimit(t *testing.T) {
	f := newRetrievalFixture(t)
	f.svc.Search(context.Background(), "q", 0, domain.SearchFilter{})
	require.Len(t, f.store.limits, 1)
	assert.Equal(t, DefaultSearchLimit, f.store.limits[0])
}

func TestRetrievalService_GetContext_NoActiveSourcesSearchesOnce(t *testing.T) {
	f := newRetrievalFixture(t)
	f.store.put(domain.SourceTypeNote, "1", 0, 0.9)

	text, sources := f.svc.GetContextForQuery(context.Background(), "q", nil, 5)

	require.Len(t, f.store.searches, 1)
	assert.True(t, f.store.searches[0].IsEmpty())
	assert.Contains(t, text, "[Content from note 1, relevance: 0.90]")
	require.Len(t, sources, 1)

	f.store.searches = nil
	f.svc.GetContextForQuery(context.Background(), "q", &domain.ActiveSources{}, 5)
	assert.Len(t, f.store.searches, 1)
}

func TestRetrievalService_BlankQueryStillSearches(t *testing.T) {
	f := newRetrievalFixture(t)
	f.store.put(domain.SourceTypeNote, "1", 0, 0.9)

	results, vector := f.svc.Search(context.Background(), "", 5, domain.SearchFilter{})
	assert.Len(t, results, 1)
	assert.NotNil(t, vector)

	f.store.searches = nil
	text, sources := f.svc.GetContextForQuery(context.Background(), "  ", nil, 5)
	require.Len(t, f.store.searches, 1)
	assert.True(t, f.store.searches[0].IsEmpty())
	assert.NotEmpty(t, text)
	assert.Len(t, sources, 1)
	assert.Equal(t, 2, f.embed.calls)
}

func TestRetrievalService_GetContext_FansOutPerSource(t *testing.T) {
	f := newRetrievalFixture(t)
	f.catalog.corpora["c1"] = []string{"10", "11"}
	f.catalog.corpora["c2"] = []string{"20"}
	f.store.put(domain.SourceTypeNote, "1", 0, 0.3)
	f.store.put(domain.SourceTypeNote, "2", 0, 0.8)
	f.store.put(domain.SourceTypeDocument, "10", 0, 0.95)
	f.store.put(domain.SourceTypeDocument, "10", 1, 0.5)
	f.store.put(domain.SourceTypeDocument, "11", 0, 0.6)
	f.store.put(domain.SourceTypeDocument, "20", 0, 0.1)
	f.store.put(domain.SourceTypeDocument, "99", 0, 1.0) // not active

	active := &domain.ActiveSources{CorpusIDs: []string{"c1", "c2"}, NoteIDs: []string{"1", "2"}}
	_, sources := f.svc.GetContextForQuery(context.Background(), "q", active, 4)

	// Two notes plus three documents.
	require.Len(t, f.store.searches, 5)
	assert.Equal(t, domain.ForSource(noteRef("1")), f.store.searches[0])
	assert.Equal(t, domain.ForSource(noteRef("2")), f.store.searches[1])
	assert.Equal(t, []string{"10"}, f.store.searches[2].SourceIDs)
	assert.Equal(t, domain.SourceTypeDocument, f.store.searches[2].SourceType)

	// The limit is divided across a corpus's documents.
	assert.Equal(t, []int{4, 4, 2, 2, 4}, f.store.limits)

	require.Len(t, sources, 4)
	scores := make([]float64, len(sources))
	for i, s := range sources {
		scores[i] = s.Score
	}
	assert.Equal(t, []float64{0.95, 0.8, 0.6, 0.5}, scores)
}

func TestRetrievalService_GetContext_UnknownCorpusSkipped(t *testing.T) {
	f := newRetrievalFixture(t)
	f.store.put(domain.SourceTypeNote, "1", 0, 0.5)

	active := &domain.ActiveSources{CorpusIDs: []string{"missing"}, NoteIDs: []string{"1"}}
	_, sources := f.svc.GetContextForQuery(context.Background(), "q", active, 5)

	assert.Len(t, f.store.searches, 1)
	assert.Len(t, sources, 1)
}

func TestRetrievalService_GetContext_DegradesToEmpty(t *testing.T) {
	f := newRetrievalFixture(t)
	f.store.searchErr = errBackend

	text, sources := f.svc.GetContextForQuery(context.Background(), "q", nil, 5)
	assert.Equal(t, "", text)
	assert.NotNil(t, sources)
	assert.Empty(t, sources)
}

func TestRetrievalService_Statistics(t *testing.T) {
	f := newRetrievalFixture(t)
	f.store.put(domain.SourceTypeNote, "1", 0, 0.5)
	f.store.put(domain.SourceTypeNote, "1", 1, 0.5)

	stats := f.svc.Statistics(context.Background())
	assert.Equal(t, 2, stats.ChunkCount)
	assert.Equal(t, "mock", stats.ChunkerStrategy)
	assert.Equal(t, "mock-model", stats.EmbeddingModel)
	assert.Equal(t, 3, stats.EmbeddingDimension)
	assert.Equal(t, 0, stats.ProcessingQueueLength)
	require.NotNil(t, stats.Catalog)
	assert.Equal(t, 1, stats.Catalog.Notes)
}

func TestRetrievalService_Statistics_CountFailure(t *testing.T) {
	f := newRetrievalFixture(t)
	f.store.countErr = errBackend

	stats := f.svc.Statistics(context.Background())
	assert.Equal(t, 0, stats.ChunkCount)
	assert.Equal(t, "mock", stats.ChunkerStrategy)
}

func TestRetrievalService_Close(t *testing.T) {
	f := newRetrievalFixture(t)
	require.NoError(t, f.svc.Close(context.Background()))
	assert.True(t, f.store.closed)
	assert.True(t, f.embed.closed)

	_, err := f.svc.Queue().AddTask(noteRef("1"))
	assert.ErrorIs(t, err, domain.ErrQueueClosed)
}
