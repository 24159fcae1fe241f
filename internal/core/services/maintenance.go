package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
	"github.com/custodia-labs/ragengine/internal/core/ports/driving"
	"github.com/custodia-labs/ragengine/internal/logger"
)

// Ensure Maintenance implements the interface.
var _ driving.MaintenanceService = (*Maintenance)(nil)

var maintenanceLog = logger.For("maintenance")

// MaintenanceConfig controls what a maintenance run removes.
type MaintenanceConfig struct {
	// Schedule is a cron expression.
	Schedule string

	// CacheMaxAge is the age past which cache entries are deleted.
	CacheMaxAge time.Duration

	// TaskRetention is the age past which finished tasks are pruned.
	// Zero keeps tasks forever.
	TaskRetention time.Duration
}

// Maintenance expires embedding cache entries and prunes finished tasks
// on a cron schedule.
type Maintenance struct {
	config   MaintenanceConfig
	schedule *cronexpr.Expression
	cache    driven.EmbeddingCache
	queue    driving.ProcessingQueue
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	last    *domain.MaintenanceResult
}

// NewMaintenance creates a maintenance service. cache and queue may be nil.
func NewMaintenance(
	config MaintenanceConfig,
	cache driven.EmbeddingCache,
	queue driving.ProcessingQueue,
) (*Maintenance, error) {
	if config.Schedule == "" {
		config.Schedule = domain.DefaultPruneSchedule
	}
	expr, err := cronexpr.Parse(config.Schedule)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule %q: %w", domain.ErrInvalidInput, config.Schedule, err)
	}
	if config.CacheMaxAge <= 0 {
		config.CacheMaxAge = domain.DefaultCacheMaxAge
	}

	return &Maintenance{
		config:   config,
		schedule: expr,
		cache:    cache,
		queue:    queue,
		now:      time.Now,
	}, nil
}

// NextRun returns when the schedule next fires after t.
func (m *Maintenance) NextRun(t time.Time) time.Time {
	return m.schedule.Next(t)
}

// Start runs maintenance whenever the schedule fires.
// It blocks until ctx is cancelled or Stop is called.
func (m *Maintenance) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil // Already running
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	for {
		now := m.now()
		next := m.schedule.Next(now)
		if next.IsZero() {
			maintenanceLog.Warn("schedule %q never fires again", m.config.Schedule)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-stopCh:
				return nil
			}
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-stopCh:
			timer.Stop()
			return nil
		case <-timer.C:
			if !m.beginRun(stopCh) {
				return nil
			}
			m.RunNow(ctx)
			m.wg.Done()
		}
	}
}

// beginRun registers a scheduled run with the WaitGroup unless Stop has
// already closed stopCh. Stop closes stopCh under mu before it waits.
func (m *Maintenance) beginRun(stopCh chan struct{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-stopCh:
		return false
	default:
	}
	m.wg.Add(1)
	return true
}

// Stop ends the schedule and waits for a run in progress.
func (m *Maintenance) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

// RunNow clears expired cache entries and prunes finished tasks.
func (m *Maintenance) RunNow(ctx context.Context) domain.MaintenanceResult {
	result := domain.MaintenanceResult{StartedAt: m.now()}

	var errs []error
	if m.cache != nil {
		n, err := m.cache.Clear(ctx, m.config.CacheMaxAge)
		if err != nil {
			errs = append(errs, fmt.Errorf("clearing cache: %w", err))
		}
		result.CacheEntriesRemoved = n
	}
	if m.queue != nil && m.config.TaskRetention > 0 {
		result.TasksPruned = m.queue.PruneFinished(result.StartedAt.Add(-m.config.TaskRetention))
	}

	result.EndedAt = m.now()
	if err := errors.Join(errs...); err != nil {
		result.Error = err.Error()
		maintenanceLog.Error("%v", err)
	} else {
		result.Success = true
	}
	maintenanceLog.Info("removed %d cache entries, pruned %d tasks",
		result.CacheEntriesRemoved, result.TasksPruned)

	m.mu.Lock()
	m.last = &result
	m.mu.Unlock()

	return result
}

// LastResult returns a copy of the most recent result, or nil.
func (m *Maintenance) LastResult() *domain.MaintenanceResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil
	}
	r := *m.last
	return &r
}
