package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

func newTestServer(t *testing.T, svc *mockRetrievalService) *Server {
	t.Helper()
	server, err := NewServer(&Ports{Retrieval: svc})
	require.NoError(t, err)
	return server
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns search results", func(t *testing.T) {
		svc := &mockRetrievalService{
			outcome: domain.SearchOutcome{Results: []domain.SearchResult{{
				Chunk: domain.Chunk{
					Text:       "Paris is the capital of France.",
					Index:      2,
					SourceID:   "7",
					SourceType: domain.SourceTypeNote,
				},
				Score: 0.91,
			}}},
		}
		server := newTestServer(t, svc)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{
			Query:      "capital",
			Limit:      3,
			SourceType: "note",
			SourceIDs:  []string{"7"},
		})

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		assert.False(t, output.Degraded)
		assert.Equal(t, SearchResultOutput{
			SourceType: "note",
			SourceID:   "7",
			ChunkIndex: 2,
			Score:      0.91,
			Text:       "Paris is the capital of France.",
		}, output.Results[0])
		assert.Equal(t, 3, svc.lastLimit)
		assert.Equal(t, domain.SearchFilter{SourceType: domain.SourceTypeNote, SourceIDs: []string{"7"}}, svc.lastFilter)
	})

	t.Run("default limit", func(t *testing.T) {
		svc := &mockRetrievalService{}
		server := newTestServer(t, svc)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "q"})
		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.NotNil(t, output.Results)
		assert.Equal(t, defaultLimit, svc.lastLimit)
	})

	t.Run("reports degraded search", func(t *testing.T) {
		svc := &mockRetrievalService{outcome: domain.DegradedOutcome(errors.New("store down"))}
		server := newTestServer(t, svc)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "q"})
		require.NoError(t, err)
		assert.True(t, output.Degraded)
	})

	t.Run("invalid source type", func(t *testing.T) {
		server := newTestServer(t, &mockRetrievalService{})

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "q", SourceType: "email"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("malformed filter", func(t *testing.T) {
		svc := &mockRetrievalService{searchErr: domain.ErrInvalidInput}
		server := newTestServer(t, svc)

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "q", SourceIDs: []string{""}})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestServer_handleGetContext(t *testing.T) {
	ctx := context.Background()

	svc := &mockRetrievalService{
		context: "[Content from note 1, relevance: 0.90]\nhello",
		sources: []domain.ContextSource{{SourceType: domain.SourceTypeNote, SourceID: "1", Score: 0.9}},
	}
	server := newTestServer(t, svc)

	_, output, err := server.handleGetContext(ctx, nil, ContextInput{
		Query:     "hello?",
		CorpusIDs: []string{"c1"},
		NoteIDs:   []string{"1"},
	})
	require.NoError(t, err)
	assert.Equal(t, svc.context, output.Context)
	assert.Len(t, output.Sources, 1)
	assert.Equal(t, []string{"c1"}, svc.lastActive.CorpusIDs)
	assert.Equal(t, []string{"1"}, svc.lastActive.NoteIDs)
	assert.Equal(t, defaultLimit, svc.lastLimit)

	t.Run("empty context has empty sources", func(t *testing.T) {
		server := newTestServer(t, &mockRetrievalService{})
		_, output, err := server.handleGetContext(ctx, nil, ContextInput{Query: "q"})
		require.NoError(t, err)
		assert.Equal(t, "", output.Context)
		assert.NotNil(t, output.Sources)
		assert.Empty(t, output.Sources)
	})
}

func TestServer_handleProcessSource(t *testing.T) {
	ctx := context.Background()

	t.Run("queues a task", func(t *testing.T) {
		svc := &mockRetrievalService{}
		server := newTestServer(t, svc)

		_, output, err := server.handleProcessSource(ctx, nil, SourceInput{SourceType: "document", SourceID: "42"})
		require.NoError(t, err)
		assert.Equal(t, "task-42", output.TaskID)
		assert.Equal(t, []domain.SourceRef{{Type: domain.SourceTypeDocument, ID: "42"}}, svc.queue.added)
	})

	t.Run("rejects invalid source", func(t *testing.T) {
		server := newTestServer(t, &mockRetrievalService{})

		_, _, err := server.handleProcessSource(ctx, nil, SourceInput{SourceType: "document"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("queue full", func(t *testing.T) {
		svc := &mockRetrievalService{queue: &mockQueue{addErr: domain.ErrQueueFull}}
		server := newTestServer(t, svc)

		_, _, err := server.handleProcessSource(ctx, nil, SourceInput{SourceType: "note", SourceID: "1"})
		assert.ErrorIs(t, err, domain.ErrQueueFull)
	})
}

func TestServer_handleTaskStatus(t *testing.T) {
	ctx := context.Background()
	svc := &mockRetrievalService{}
	server := newTestServer(t, svc)

	_, err := svc.Queue().AddTask(domain.SourceRef{Type: domain.SourceTypeNote, ID: "3"})
	require.NoError(t, err)
	started := time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC)
	svc.queue.tasks[0].StartTime = &started

	t.Run("by task id", func(t *testing.T) {
		_, output, err := server.handleTaskStatus(ctx, nil, TaskStatusInput{TaskID: "task-3"})
		require.NoError(t, err)
		require.Len(t, output.Tasks, 1)
		assert.Equal(t, "pending", output.Tasks[0].Status)
		assert.Equal(t, "2024-05-01T12:00:00Z", output.Tasks[0].CreatedAt)
		assert.Equal(t, "2024-05-01T12:00:01Z", output.Tasks[0].StartTime)
		assert.Empty(t, output.Tasks[0].EndTime)
	})

	t.Run("unknown task id", func(t *testing.T) {
		_, _, err := server.handleTaskStatus(ctx, nil, TaskStatusInput{TaskID: "nope"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("by source", func(t *testing.T) {
		_, output, err := server.handleTaskStatus(ctx, nil, TaskStatusInput{SourceType: "note", SourceID: "3"})
		require.NoError(t, err)
		assert.Len(t, output.Tasks, 1)

		_, output, err = server.handleTaskStatus(ctx, nil, TaskStatusInput{SourceType: "note", SourceID: "9"})
		require.NoError(t, err)
		assert.NotNil(t, output.Tasks)
		assert.Empty(t, output.Tasks)
	})

	t.Run("no selector", func(t *testing.T) {
		_, _, err := server.handleTaskStatus(ctx, nil, TaskStatusInput{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestServer_handleStatistics(t *testing.T) {
	stats := domain.Statistics{
		ChunkCount:         12,
		ChunkerStrategy:    "sentence",
		EmbeddingModel:     "all-minilm",
		EmbeddingDimension: 384,
	}
	server := newTestServer(t, &mockRetrievalService{stats: stats})

	_, output, err := server.handleStatistics(context.Background(), nil, StatisticsInput{})
	require.NoError(t, err)
	assert.Equal(t, stats, output)
}
