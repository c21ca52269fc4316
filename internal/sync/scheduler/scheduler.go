// Package scheduler provides the periodic background sync trigger.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sahelpos/terminal/internal/errors"
	"github.com/sahelpos/terminal/internal/logging"
	syncpkg "github.com/sahelpos/terminal/internal/sync"
)

// Scheduler fires the sync engine on a fixed interval. It holds no
// retry state of its own: a failed run is simply retried on the next
// tick, and a tick that lands while a run is still active is skipped,
// never queued.
type Scheduler struct {
	engine   syncpkg.Orchestrator
	interval time.Duration
	timeout  time.Duration

	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// Config holds scheduler configuration.
type Config struct {
	Interval time.Duration // how often to trigger a sync (default: 5 minutes)
	Timeout  time.Duration // upper bound on one run (default: 2 minutes)
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		Interval: 5 * time.Minute,
		Timeout:  2 * time.Minute,
	}
}

// New creates a Scheduler around the engine.
func New(engine syncpkg.Orchestrator, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Scheduler{
		engine:   engine,
		interval: config.Interval,
		timeout:  config.Timeout,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the background trigger loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	logging.Info("Background sync scheduler started",
		map[string]interface{}{"interval": s.interval.String()})
}

// Stop stops the trigger loop and waits for it to exit, so application
// teardown is deterministic.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	logging.Info("Background sync scheduler stopped", nil)
}

// IsRunning returns whether the scheduler loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce triggers a single sync run. The engine's own single-flight
// guard turns an overlapping trigger into a no-op.
func (s *Scheduler) runOnce(ctx context.Context) {
	syncCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.engine.Sync(syncCtx)
	if err != nil {
		if errors.Is(err, errors.ErrSyncInProgress) {
			logging.Debug("Sync already in progress, skipping tick", nil)
			return
		}
		if errors.Is(err, errors.ErrSyncOffline) {
			logging.Debug("Server unreachable, will retry next tick", nil)
			return
		}
		logging.ErrorWithCode("Periodic sync failed", string(errors.CodeOf(err)), err)
		return
	}

	logging.Info("Periodic sync completed",
		map[string]interface{}{
			"pushed":   result.Pushed,
			"pulled":   result.Pulled,
			"merged":   result.Merged,
			"rejected": result.Rejected,
		})
}
