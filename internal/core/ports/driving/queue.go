package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

// ProcessingQueue runs source processing in the background.
type ProcessingQueue interface {
	// AddTask enqueues processing of a source and returns the task id.
	// While a task for the same source is pending or processing, its id
	// is returned instead of creating a new task.
	AddTask(ref domain.SourceRef) (string, error)

	// GetTask returns a copy of the task, or false if unknown.
	GetTask(taskID string) (domain.ProcessingTask, bool)

	// GetTasksBySource returns every task recorded for a source, oldest first.
	GetTasksBySource(ref domain.SourceRef) []domain.ProcessingTask

	// Tasks returns every recorded task, oldest first.
	Tasks() []domain.ProcessingTask

	// Len returns the number of pending tasks.
	Len() int

	// PruneFinished deletes terminal tasks that ended before the cutoff.
	PruneFinished(before time.Time) int

	// Shutdown stops accepting tasks and waits for running ones.
	Shutdown(ctx context.Context) error
}
