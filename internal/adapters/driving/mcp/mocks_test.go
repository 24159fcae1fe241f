package mcp

import (
	"context"
	"time"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driving"
)

// Ensure mocks implement the interfaces.
var (
	_ driving.RetrievalService = (*mockRetrievalService)(nil)
	_ driving.ProcessingQueue  = (*mockQueue)(nil)
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	outcome   domain.SearchOutcome
	searchErr error
	context   string
	sources   []domain.ContextSource
	available *domain.AvailableSources
	stats     domain.Statistics
	err       error
	queue     *mockQueue

	lastQuery  string
	lastLimit  int
	lastFilter domain.SearchFilter
	lastActive *domain.ActiveSources
}

func (m *mockRetrievalService) ProcessSource(
	_ context.Context, _ domain.SourceRef, _ string, _ map[string]any,
) ([]domain.ChunkEmbedding, error) {
	return nil, m.err
}

func (m *mockRetrievalService) ProcessStoredSource(_ context.Context, _ domain.SourceRef) (int, error) {
	return 0, m.err
}

func (m *mockRetrievalService) Search(
	ctx context.Context, query string, limit int, filter domain.SearchFilter,
) ([]domain.SearchResult, []float32) {
	outcome, _, _ := m.SearchOutcome(ctx, query, limit, filter)
	return outcome.Results, nil
}

func (m *mockRetrievalService) SearchOutcome(
	_ context.Context, query string, limit int, filter domain.SearchFilter,
) (domain.SearchOutcome, []float32, error) {
	m.lastQuery = query
	m.lastLimit = limit
	m.lastFilter = filter
	if m.searchErr != nil {
		return domain.SearchOutcome{Results: []domain.SearchResult{}}, nil, m.searchErr
	}
	if m.outcome.Results == nil {
		m.outcome.Results = []domain.SearchResult{}
	}
	return m.outcome, nil, nil
}

func (m *mockRetrievalService) GetContextForQuery(
	_ context.Context, query string, active *domain.ActiveSources, limit int,
) (string, []domain.ContextSource) {
	m.lastQuery = query
	m.lastActive = active
	m.lastLimit = limit
	return m.context, m.sources
}

func (m *mockRetrievalService) AvailableSources(_ context.Context) (*domain.AvailableSources, error) {
	return m.available, m.err
}

func (m *mockRetrievalService) Statistics(_ context.Context) domain.Statistics {
	return m.stats
}

func (m *mockRetrievalService) Queue() driving.ProcessingQueue {
	if m.queue == nil {
		m.queue = &mockQueue{}
	}
	return m.queue
}

func (m *mockRetrievalService) Close(_ context.Context) error {
	return m.err
}

// mockQueue is a mock implementation of driving.ProcessingQueue.
type mockQueue struct {
	tasks  []domain.ProcessingTask
	addErr error
	added  []domain.SourceRef
}

func (q *mockQueue) AddTask(ref domain.SourceRef) (string, error) {
	if q.addErr != nil {
		return "", q.addErr
	}
	q.added = append(q.added, ref)
	id := "task-" + ref.ID
	q.tasks = append(q.tasks, domain.ProcessingTask{
		ID:         id,
		SourceType: ref.Type,
		SourceID:   ref.ID,
		Status:     domain.TaskPending,
		CreatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	return id, nil
}

func (q *mockQueue) GetTask(taskID string) (domain.ProcessingTask, bool) {
	for _, t := range q.tasks {
		if t.ID == taskID {
			return t, true
		}
	}
	return domain.ProcessingTask{}, false
}

func (q *mockQueue) GetTasksBySource(ref domain.SourceRef) []domain.ProcessingTask {
	var out []domain.ProcessingTask
	for _, t := range q.tasks {
		if t.Source() == ref {
			out = append(out, t)
		}
	}
	return out
}

func (q *mockQueue) Tasks() []domain.ProcessingTask { return q.tasks }

func (q *mockQueue) Len() int { return len(q.tasks) }

func (q *mockQueue) PruneFinished(_ time.Time) int { return 0 }

func (q *mockQueue) Shutdown(_ context.Context) error { return nil }
