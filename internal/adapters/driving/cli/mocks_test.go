package cli

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/ragengine/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driving"
)

// Ensure mocks implement the interfaces.
var (
	_ driving.RetrievalService = (*mockRetrievalService)(nil)
	_ driving.ProcessingQueue  = (*mockQueue)(nil)
)

// processCall records one ProcessSource call.
type processCall struct {
	ref  domain.SourceRef
	text string
}

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	mu sync.Mutex

	outcome   domain.SearchOutcome
	searchErr error
	context   string
	sources   []domain.ContextSource
	available *domain.AvailableSources
	stats     domain.Statistics
	chunks    int
	err       error
	queue     *mockQueue

	processed  []processCall
	stored     []domain.SourceRef
	lastQuery  string
	lastLimit  int
	lastFilter domain.SearchFilter
	lastActive *domain.ActiveSources
}

func (m *mockRetrievalService) ProcessSource(
	_ context.Context, ref domain.SourceRef, text string, _ map[string]any,
) ([]domain.ChunkEmbedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed = append(m.processed, processCall{ref: ref, text: text})
	if m.err != nil {
		return nil, m.err
	}
	return make([]domain.ChunkEmbedding, m.chunks), nil
}

func (m *mockRetrievalService) ProcessStoredSource(_ context.Context, ref domain.SourceRef) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, ref)
	return m.chunks, m.err
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
	if m.err != nil {
		return nil, m.err
	}
	if m.available == nil {
		return &domain.AvailableSources{}, nil
	}
	return m.available, nil
}

func (m *mockRetrievalService) Statistics(_ context.Context) domain.Statistics {
	return m.stats
}

func (m *mockRetrievalService) Queue() driving.ProcessingQueue {
	return m.queue
}

func (m *mockRetrievalService) Close(_ context.Context) error {
	return nil
}

// mockQueue is a mock implementation of driving.ProcessingQueue.
// Tasks it creates report finalStatus after pollsUntilDone lookups.
type mockQueue struct {
	mu sync.Mutex

	tasks          map[string]*domain.ProcessingTask
	lookups        map[string]int
	finalStatus    domain.TaskStatus
	finalError     string
	pollsUntilDone int
	addErr         error
	added          []domain.SourceRef
}

func newMockQueue() *mockQueue {
	return &mockQueue{
		tasks:       make(map[string]*domain.ProcessingTask),
		lookups:     make(map[string]int),
		finalStatus: domain.TaskCompleted,
	}
}

func (q *mockQueue) AddTask(ref domain.SourceRef) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.addErr != nil {
		return "", q.addErr
	}
	q.added = append(q.added, ref)
	id := fmt.Sprintf("task-%d", len(q.added))
	q.tasks[id] = &domain.ProcessingTask{
		ID:         id,
		SourceID:   ref.ID,
		SourceType: ref.Type,
		Status:     domain.TaskPending,
		CreatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	return id, nil
}

func (q *mockQueue) GetTask(taskID string) (domain.ProcessingTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[taskID]
	if !ok {
		return domain.ProcessingTask{}, false
	}
	q.lookups[taskID]++
	if q.lookups[taskID] > q.pollsUntilDone {
		start := task.CreatedAt
		end := start.Add(1500 * time.Millisecond)
		task.Status = q.finalStatus
		task.Error = q.finalError
		task.StartTime = &start
		task.EndTime = &end
	}
	return *task, true
}

func (q *mockQueue) GetTasksBySource(ref domain.SourceRef) []domain.ProcessingTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []domain.ProcessingTask
	for _, t := range q.tasks {
		if t.Source() == ref {
			out = append(out, *t)
		}
	}
	return out
}

func (q *mockQueue) Tasks() []domain.ProcessingTask { return nil }

func (q *mockQueue) Len() int { return 0 }

func (q *mockQueue) PruneFinished(_ time.Time) int { return 0 }

func (q *mockQueue) Shutdown(_ context.Context) error { return nil }

func (q *mockQueue) addedRefs() []domain.SourceRef {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.SourceRef(nil), q.added...)
}

// setupTestServices installs mock services and returns them with a cleanup
// function that restores the previous state.
func setupTestServices() (*mockRetrievalService, *memory.Catalog, func()) {
	oldEngine, oldSetup := engine, setup

	retrieval := &mockRetrievalService{queue: newMockQueue()}
	catalog := memory.NewCatalog(nil)
	engine = &Services{
		Retrieval: retrieval,
		Catalog:   catalog,
		Settings:  domain.DefaultSettings(),
	}

	return retrieval, catalog, func() {
		engine, setup = oldEngine, oldSetup
	}
}

// runCommand executes rootCmd with args and returns its output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// resetFlags restores every flag to its default so tests do not leak
// values into each other.
func resetFlags() {
	var reset func(c *cobra.Command)
	reset = func(c *cobra.Command) {
		c.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
		for _, sub := range c.Commands() {
			reset(sub)
		}
	}
	reset(rootCmd)

	searchLimit, searchJSON, searchType, searchSourceIDs = 5, false, "", nil
	contextCorpora, contextNotes, contextLimit, contextJSON = nil, nil, 5, false
	processAsync, processTextType, processTextID = false, string(domain.SourceTypeNote), ""
	statsJSON, sourcesJSON = false, false
	corpusDescription, documentProcess = "", false
	noteTitle, noteID, noteProcess = "", "", false
	cacheMaxAge, servePort = 0, 0
	configPath, verbose = "", false
	configModel, configAPIKey = "", ""
}
