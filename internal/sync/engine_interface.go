package sync

import (
	"context"
	"time"
)

// Orchestrator defines the surface the rest of the application sees:
// the scheduler and the status API depend on this interface, which
// allows for mocking in tests.
type Orchestrator interface {
	// Sync performs one full synchronization run.
	Sync(ctx context.Context) (*SyncResult, error)

	// Status returns the current sync status.
	Status() SyncStatus

	// LastSync returns the timestamp of the last successful sync.
	LastSync() *time.Time

	// LastError returns the last error that occurred during sync.
	LastError() error

	// Mode returns the connectivity mode observed by the latest probe.
	Mode() Mode

	// Checkpoint returns the current checkpoint value.
	Checkpoint() (string, error)
}
