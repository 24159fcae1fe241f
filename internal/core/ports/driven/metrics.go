package driven

import (
	"time"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

// EngineMetrics records operational measurements of the engine.
type EngineMetrics interface {
	// CacheLookups records hits and misses of one embedding batch.
	CacheLookups(hits, misses int)

	// EmbeddingCall records one provider call.
	EmbeddingCall(batchSize int, elapsed time.Duration, err error)

	// TaskFinished records a task reaching a terminal state.
	TaskFinished(status domain.TaskStatus, elapsed time.Duration)

	// QueueDepth records the number of pending tasks.
	QueueDepth(n int)

	// SearchDegraded records a search whose backend failure was swallowed.
	SearchDegraded()
}

// NopMetrics discards every measurement.
type NopMetrics struct{}

var _ EngineMetrics = NopMetrics{}

func (NopMetrics) CacheLookups(int, int) {}
func (NopMetrics) EmbeddingCall(int, time.Duration, error) {}
func (NopMetrics) TaskFinished(domain.TaskStatus, time.Duration) {}
func (NopMetrics) QueueDepth(int) {}
func (NopMetrics) SearchDegraded() {}
