package driving

import (
	"context"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

// MaintenanceService runs periodic housekeeping: expiring embedding cache
// entries and pruning finished processing tasks.
type MaintenanceService interface {
	// Start runs maintenance on its schedule.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the schedule.
	Stop() error

	// RunNow performs one maintenance pass immediately.
	RunNow(ctx context.Context) domain.MaintenanceResult

	// LastResult returns the most recent result, or nil if none ran.
	LastResult() *domain.MaintenanceResult
}
