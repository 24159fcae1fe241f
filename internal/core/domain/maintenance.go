package domain

import "time"

// MaintenanceResult represents the outcome of one maintenance run.
type MaintenanceResult struct {
	// StartedAt is when the run started.
	StartedAt time.Time

	// EndedAt is when the run completed.
	EndedAt time.Time

	// Success indicates whether every step completed without error.
	Success bool

	// Error contains the joined error messages if Success is false.
	Error string

	// CacheEntriesRemoved counts expired embedding cache entries deleted.
	CacheEntriesRemoved int

	// TasksPruned counts finished processing tasks deleted.
	TasksPruned int
}
