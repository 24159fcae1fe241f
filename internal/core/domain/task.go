package domain

import "time"

// TaskStatus is the lifecycle state of a ProcessingTask.
// Transitions: pending -> processing -> {completed, error}.
type TaskStatus string

// Task states.
const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskError      TaskStatus = "error"
)

// IsTerminal returns true for completed and error.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskError
}

// String returns the string representation.
func (s TaskStatus) String() string {
	return string(s)
}

// ProcessingTask tracks one background ingestion job.
type ProcessingTask struct {
	// ID is an opaque unique identifier.
	ID string `json:"task_id"`

	// SourceID identifies the source being processed.
	SourceID string `json:"source_id"`

	// SourceType is the kind of source being processed.
	SourceType SourceType `json:"source_type"`

	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`

	// Error holds the failure message when Status is error.
	Error string `json:"error,omitempty"`

	// CreatedAt is when the task was enqueued.
	CreatedAt time.Time `json:"created_at"`

	// StartTime is set on the transition to processing.
	StartTime *time.Time `json:"start_time,omitempty"`

	// EndTime is set on the transition to a terminal state.
	EndTime *time.Time `json:"end_time,omitempty"`
}

// Source returns the task's source reference.
func (t ProcessingTask) Source() SourceRef {
	return SourceRef{Type: t.SourceType, ID: t.SourceID}
}

// Duration returns the processing time, or zero if not finished.
func (t ProcessingTask) Duration() time.Duration {
	if t.StartTime == nil || t.EndTime == nil {
		return 0
	}
	return t.EndTime.Sub(*t.StartTime)
}
