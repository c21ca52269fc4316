package sync

import (
	"context"
	"sync"
	"time"

	"github.com/sahelpos/terminal/internal/db"
	apperrors "github.com/sahelpos/terminal/internal/errors"
	"github.com/sahelpos/terminal/internal/logging"
	"github.com/sahelpos/terminal/internal/models"
)

// SyncStatus represents the current sync status.
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusRunning SyncStatus = "running"
	SyncStatusFailed  SyncStatus = "failed"
)

// SyncResult represents the result of one orchestration run.
type SyncResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Mode       Mode
	Pushed     int    // rows transmitted to the server
	Pulled     int    // rows received from the server
	Merged     int    // rows written locally
	Unchanged  int    // rows already up to date locally
	Rejected   int    // rows skipped during merge
	PushError  string `json:",omitempty"`
	PullError  string `json:",omitempty"`
	Checkpoint string // checkpoint value after the run
}

// Engine sequences probe, push, pull and checkpoint commit. It is the
// single public entry point of the synchronization subsystem and the
// only component allowed to advance the checkpoint.
//
// Checkpoint policy: the checkpoint advances when at least one direction
// succeeded. That deliberately favors making progress over strict
// all-or-nothing synchronization; a deployment wanting stricter
// semantics would keep one checkpoint per direction instead.
type Engine struct {
	store     *db.Store
	prober    *Prober
	extractor *Extractor
	client    *Client
	merger    *Merger

	mu       sync.Mutex
	running  bool
	status   SyncStatus
	lastSync *time.Time
	lastErr  error
}

// NewEngine wires the orchestrator from its parts.
func NewEngine(store *db.Store, prober *Prober, extractor *Extractor, client *Client, merger *Merger) *Engine {
	return &Engine{
		store:     store,
		prober:    prober,
		extractor: extractor,
		client:    client,
		merger:    merger,
		status:    SyncStatusIdle,
	}
}

// Status returns the current sync status.
func (e *Engine) Status() SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// LastSync returns the timestamp of the last successful sync.
func (e *Engine) LastSync() *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

// LastError returns the last sync error.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Mode returns the connectivity mode observed by the latest probe.
func (e *Engine) Mode() Mode {
	return e.prober.Mode()
}

// Checkpoint returns the current checkpoint value.
func (e *Engine) Checkpoint() (string, error) {
	return e.store.Checkpoint()
}

// Sync performs one full synchronization run. A call while a run is in
// flight is rejected, not queued: the periodic trigger simply skips its
// tick and the cashier's "sync now" button reports "already syncing".
func (e *Engine) Sync(ctx context.Context) (*SyncResult, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrSyncInProgress, "sync already in progress")
	}
	e.running = true
	e.status = SyncStatusRunning
	e.lastErr = nil
	e.mu.Unlock()

	result := &SyncResult{StartTime: time.Now()}

	var runErr error
	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)

		e.mu.Lock()
		e.running = false
		e.lastErr = runErr
		if runErr != nil {
			e.status = SyncStatusFailed
		} else {
			e.status = SyncStatusIdle
			e.lastSync = &result.EndTime
		}
		e.mu.Unlock()
	}()

	// Step 1: probe. Offline means stop here, checkpoint untouched.
	result.Mode = e.prober.Probe(ctx)
	if result.Mode == ModeOffline {
		runErr = apperrors.New(apperrors.ErrSyncOffline, "server unreachable")
		e.finishResult(result)
		return result, runErr
	}

	since, err := e.store.Checkpoint()
	if err != nil {
		runErr = apperrors.Wrap(apperrors.ErrDatabase, "failed to read checkpoint", err)
		e.finishResult(result)
		return result, runErr
	}

	// Step 2: push local changes.
	pushErr := e.push(ctx, since, result)

	// Step 3: pull remote changes, independently of the push outcome.
	pullErr := e.pull(ctx, since, result)

	// Step 4: advance the checkpoint if either direction worked.
	if pushErr == nil || pullErr == nil {
		if err := e.store.AdvanceCheckpoint(models.FormatTime(result.StartTime)); err != nil {
			logging.Error("Failed to advance checkpoint", err)
		}
	}

	if pushErr != nil && pullErr != nil {
		runErr = apperrors.New(apperrors.ErrSyncFailed, "offline or error")
	}

	e.finishResult(result)
	logging.Info("Sync run finished",
		map[string]interface{}{
			"mode":       result.Mode,
			"pushed":     result.Pushed,
			"pulled":     result.Pulled,
			"merged":     result.Merged,
			"unchanged":  result.Unchanged,
			"rejected":   result.Rejected,
			"push_error": result.PushError,
			"pull_error": result.PullError,
			"checkpoint": result.Checkpoint,
		})
	return result, runErr
}

// push extracts and transmits the local changes. An empty changeset is
// a success without a network call.
func (e *Engine) push(ctx context.Context, since string, result *SyncResult) error {
	cs, err := e.extractor.Extract(since)
	if err != nil {
		err = apperrors.Wrap(apperrors.ErrPushFailed, "extraction failed", err)
		result.PushError = err.Error()
		logging.ErrorWithCode("Push failed", string(apperrors.ErrPushFailed), err)
		return err
	}

	if err := e.client.Push(ctx, cs); err != nil {
		result.PushError = err.Error()
		logging.ErrorWithCode("Push failed", string(apperrors.ErrPushFailed), err,
			map[string]interface{}{"rows": cs.Size()})
		return err
	}

	result.Pushed = cs.Size()
	return nil
}

// pull retrieves the server's changes and merges them. Merge failures
// are per-row and never fail the direction.
func (e *Engine) pull(ctx context.Context, since string, result *SyncResult) error {
	remote, err := e.client.Pull(ctx, since)
	if err != nil {
		result.PullError = err.Error()
		logging.ErrorWithCode("Pull failed", string(apperrors.ErrPullFailed), err)
		return err
	}

	result.Pulled = remote.Size()
	stats := e.merger.Apply(remote)
	result.Merged = stats.Applied
	result.Unchanged = stats.Unchanged
	result.Rejected = stats.Rejected
	return nil
}

func (e *Engine) finishResult(result *SyncResult) {
	if cp, err := e.store.Checkpoint(); err == nil {
		result.Checkpoint = cp
	}
}
