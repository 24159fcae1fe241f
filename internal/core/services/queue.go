package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
	"github.com/custodia-labs/ragengine/internal/core/ports/driving"
	"github.com/custodia-labs/ragengine/internal/logger"
)

// Ensure ProcessingQueue implements the interface.
var _ driving.ProcessingQueue = (*ProcessingQueue)(nil)

var queueLog = logger.For("queue")

// ProcessFunc is the unit of work run for each task.
type ProcessFunc func(ctx context.Context, ref domain.SourceRef) error

// QueueOption configures a ProcessingQueue.
type QueueOption func(*ProcessingQueue)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) QueueOption {
	return func(q *ProcessingQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithCapacity sets how many tasks may wait for a worker.
func WithCapacity(n int) QueueOption {
	return func(q *ProcessingQueue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithQueueMetrics records queue depth and task outcomes.
func WithQueueMetrics(m driven.EngineMetrics) QueueOption {
	return func(q *ProcessingQueue) {
		if m != nil {
			q.metrics = m
		}
	}
}

// ProcessingQueue runs tasks FIFO on a fixed pool of workers.
// Submitting a source that already has a pending or processing task
// returns the outstanding task instead of racing a second one.
type ProcessingQueue struct {
	process  ProcessFunc
	workers  int
	capacity int
	metrics  driven.EngineMetrics

	mu       sync.Mutex
	tasks    map[string]*domain.ProcessingTask
	order    []string
	inflight map[domain.SourceRef]string
	pending  int
	closed   bool

	jobs chan string
	wg   sync.WaitGroup
}

// NewProcessingQueue creates a queue and starts its workers.
func NewProcessingQueue(process ProcessFunc, opts ...QueueOption) *ProcessingQueue {
	q := &ProcessingQueue{
		process:  process,
		workers:  domain.DefaultQueueWorkers,
		capacity: domain.DefaultQueueCapacity,
		metrics:  driven.NopMetrics{},
		tasks:    make(map[string]*domain.ProcessingTask),
		inflight: make(map[domain.SourceRef]string),
	}
	for _, opt := range opts {
		opt(q)
	}

	q.jobs = make(chan string, q.capacity)
	for range q.workers {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// AddTask enqueues a source and returns its task id.
func (q *ProcessingQueue) AddTask(ref domain.SourceRef) (string, error) {
	if err := ref.Validate(); err != nil {
		return "", err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return "", domain.ErrQueueClosed
	}
	if id, ok := q.inflight[ref]; ok {
		queueLog.Debug("%s already queued as %s", ref, id)
		return id, nil
	}

	task := &domain.ProcessingTask{
		ID:         uuid.New().String(),
		SourceID:   ref.ID,
		SourceType: ref.Type,
		Status:     domain.TaskPending,
		CreatedAt:  time.Now(),
	}

	select {
	case q.jobs <- task.ID:
	default:
		return "", fmt.Errorf("%w: %d tasks waiting", domain.ErrQueueFull, q.pending)
	}

	q.tasks[task.ID] = task
	q.order = append(q.order, task.ID)
	q.inflight[ref] = task.ID
	q.pending++
	q.metrics.QueueDepth(q.pending)
	queueLog.Debug("queued %s as %s", ref, task.ID)

	return task.ID, nil
}

// GetTask returns a copy of the task.
func (q *ProcessingQueue) GetTask(taskID string) (domain.ProcessingTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return domain.ProcessingTask{}, false
	}
	return *task, true
}

// GetTasksBySource returns every task of a source, oldest first.
func (q *ProcessingQueue) GetTasksBySource(ref domain.SourceRef) []domain.ProcessingTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []domain.ProcessingTask
	for _, id := range q.order {
		if t := q.tasks[id]; t.Source() == ref {
			out = append(out, *t)
		}
	}
	return out
}

// Tasks returns every recorded task, oldest first.
func (q *ProcessingQueue) Tasks() []domain.ProcessingTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.ProcessingTask, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, *q.tasks[id])
	}
	return out
}

// Len returns the number of tasks waiting for a worker.
func (q *ProcessingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// PruneFinished deletes completed and failed tasks that ended before the cutoff.
func (q *ProcessingQueue) PruneFinished(before time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.order[:0]
	removed := 0
	for _, id := range q.order {
		t := q.tasks[id]
		if t.Status.IsTerminal() && t.EndTime != nil && t.EndTime.Before(before) {
			delete(q.tasks, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
	return removed
}

// Shutdown stops accepting tasks and waits until every queued task has
// run or ctx is done.
func (q *ProcessingQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ProcessingQueue) worker() {
	defer q.wg.Done()
	for id := range q.jobs {
		q.run(id)
	}
}

func (q *ProcessingQueue) run(id string) {
	ref, ok := q.start(id)
	if !ok {
		return
	}

	err := q.safeProcess(ref)

	q.mu.Lock()
	defer q.mu.Unlock()

	task := q.tasks[id]
	end := time.Now()
	task.EndTime = &end
	if err != nil {
		task.Status = domain.TaskError
		task.Error = err.Error()
		queueLog.Warn("task %s for %s failed: %v", id, ref, err)
	} else {
		task.Status = domain.TaskCompleted
		queueLog.Info("task %s for %s completed in %s", id, ref, task.Duration())
	}
	delete(q.inflight, ref)
	q.metrics.TaskFinished(task.Status, task.Duration())
}

// start moves a task to processing.
func (q *ProcessingQueue) start(id string) (domain.SourceRef, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok {
		return domain.SourceRef{}, false
	}
	now := time.Now()
	task.Status = domain.TaskProcessing
	task.StartTime = &now
	q.pending--
	q.metrics.QueueDepth(q.pending)
	return task.Source(), true
}

// safeProcess turns a panic in the unit of work into a task error.
func (q *ProcessingQueue) safeProcess(ref domain.SourceRef) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return q.process(context.Background(), ref)
}
