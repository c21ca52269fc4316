package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahelpos/terminal/internal/errors"
	"github.com/sahelpos/terminal/internal/models"
	syncpkg "github.com/sahelpos/terminal/internal/sync"
)

type mockOrchestrator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockOrchestrator) Sync(ctx context.Context) (*syncpkg.SyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &syncpkg.SyncResult{Mode: syncpkg.ModeCloud}, nil
}

func (m *mockOrchestrator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockOrchestrator) Status() syncpkg.SyncStatus  { return syncpkg.SyncStatusIdle }
func (m *mockOrchestrator) LastSync() *time.Time        { return nil }
func (m *mockOrchestrator) LastError() error            { return nil }
func (m *mockOrchestrator) Mode() syncpkg.Mode          { return syncpkg.ModeCloud }
func (m *mockOrchestrator) Checkpoint() (string, error) { return models.TimeSentinel, nil }

func TestScheduler_TicksTriggerSync(t *testing.T) {
	engine := &mockOrchestrator{}
	s := New(engine, &Config{Interval: 10 * time.Millisecond, Timeout: time.Second})

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return engine.callCount() >= 2
	}, time.Second, time.Millisecond)
}

func TestScheduler_StopIsDeterministic(t *testing.T) {
	engine := &mockOrchestrator{}
	s := New(engine, &Config{Interval: 5 * time.Millisecond, Timeout: time.Second})

	s.Start(context.Background())
	require.Eventually(t, func() bool {
		return engine.callCount() >= 1
	}, time.Second, time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())

	// No further triggers after Stop returns.
	n := engine.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, engine.callCount())
}

func TestScheduler_StartTwiceSpawnsOneLoop(t *testing.T) {
	engine := &mockOrchestrator{}
	s := New(engine, &Config{Interval: time.Hour, Timeout: time.Second})

	s.Start(context.Background())
	s.Start(context.Background())
	assert.True(t, s.IsRunning())

	// A second Stop must not panic on a closed channel.
	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
}

// A failing run never stops the loop: the next tick retries.
func TestScheduler_KeepsTickingThroughFailures(t *testing.T) {
	engine := &mockOrchestrator{err: errors.New(errors.ErrSyncOffline, "server unreachable")}
	s := New(engine, &Config{Interval: 5 * time.Millisecond, Timeout: time.Second})

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return engine.callCount() >= 3
	}, time.Second, time.Millisecond)
}

func TestScheduler_ContextCancelStopsLoop(t *testing.T) {
	engine := &mockOrchestrator{}
	s := New(engine, &Config{Interval: 5 * time.Millisecond, Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool {
		return engine.callCount() >= 1
	}, time.Second, time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	n := engine.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, engine.callCount(), "cancelled context halts triggering")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5*time.Minute, cfg.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
}
