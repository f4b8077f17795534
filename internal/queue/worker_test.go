package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpulse/stockpulse-api/internal/domain"
)

// stubAnalyzer implements analysis.Analyzer for testing
type stubAnalyzer struct {
	fn func(ctx context.Context, symbol, strategy string) (*domain.AnalysisResult, error)
}

func (s *stubAnalyzer) Analyze(
	ctx context.Context,
	symbol, strategy string,
) (*domain.AnalysisResult, error) {
	return s.fn(ctx, symbol, strategy)
}

func succeedingAnalyzer() *stubAnalyzer {
	return &stubAnalyzer{fn: func(ctx context.Context, symbol, strategy string) (*domain.AnalysisResult, error) {
		return &domain.AnalysisResult{
			Symbol:         symbol,
			Strategy:       strategy,
			Score:          61.5,
			Recommendation: domain.RecommendationBuy,
			GeneratedAt:    time.Now().UTC(),
		}, nil
	}}
}

// faultyBackend wraps a memory backend and fails every pop while tripped,
// to drive the worker's backend-fault path.
type faultyBackend struct {
	*MemoryBackend
	mu      sync.Mutex
	failing bool
}

func (f *faultyBackend) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func (f *faultyBackend) PopPending(ctx context.Context, timeout time.Duration) (string, error) {
	f.mu.Lock()
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return "", errors.New("connection reset")
	}
	return f.MemoryBackend.PopPending(ctx, timeout)
}

func fastPoolConfig(workers int) WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount:        workers,
		PopTimeout:         50 * time.Millisecond,
		TaskTimeout:        5 * time.Second,
		InitialBackoff:     10 * time.Millisecond,
		MaxBackoff:         50 * time.Millisecond,
		UnhealthyThreshold: 3,
	}
}

// startPool wires a queue facade and worker pool over the backend and starts
// the workers. The pool is stopped on test cleanup.
func startPool(t *testing.T, backend Backend, analyzer *stubAnalyzer, workers int) (*Queue, *WorkerPool) {
	t.Helper()

	registry := NewWorkerRegistry()
	metrics := NewMetrics(prometheus.NewRegistry())
	q := New(backend, registry, Config{CleanupAge: time.Hour}, metrics, testLogger())
	pool := NewWorkerPool(backend, analyzer, registry, fastPoolConfig(workers), metrics, testLogger())
	pool.Start()
	t.Cleanup(pool.Stop)
	return q, pool
}

func waitTerminal(t *testing.T, q *Queue, id string, timeout time.Duration) *StatusSnapshot {
	t.Helper()

	var snapshot *StatusSnapshot
	require.Eventually(t, func() bool {
		snap, err := q.GetStatus(context.Background(), id)
		if err != nil {
			return false
		}
		if snap.Status != domain.TaskStatusCompleted && snap.Status != domain.TaskStatusFailed {
			return false
		}
		snapshot = snap
		return true
	}, timeout, 10*time.Millisecond, "task %s did not reach a terminal state", id)
	return snapshot
}

func TestWorkerPool_SingleTaskCompletes(t *testing.T) {
	q, _ := startPool(t, NewMemoryBackend(), succeedingAnalyzer(), 1)

	id, err := q.Submit(context.Background(), "AAPL", "growth_investor")
	require.NoError(t, err)

	snapshot := waitTerminal(t, q, id, 5*time.Second)

	assert.Equal(t, domain.TaskStatusCompleted, snapshot.Status)
	require.NotNil(t, snapshot.Result)
	assert.Equal(t, "AAPL", snapshot.Result.Symbol)
	assert.Empty(t, snapshot.Error)
	require.NotNil(t, snapshot.StartedAt)
	require.NotNil(t, snapshot.CompletedAt)
	assert.False(t, snapshot.StartedAt.Before(snapshot.CreatedAt))
	assert.False(t, snapshot.CompletedAt.Before(*snapshot.StartedAt))
	require.NotNil(t, snapshot.ProcessingTimeMs)
	assert.GreaterOrEqual(t, *snapshot.ProcessingTimeMs, int64(0))
}

func TestWorkerPool_DrainsManyTasks(t *testing.T) {
	q, _ := startPool(t, NewMemoryBackend(), succeedingAnalyzer(), 3)
	ctx := context.Background()

	const total = 50
	ids := make([]string, 0, total)
	for i := 0; i < total; i++ {
		id, err := q.Submit(ctx, fmt.Sprintf("SYM%d", i), "")
		require.NoError(t, err)
		ids = append(ids, id)
	}

	for _, id := range ids {
		snapshot := waitTerminal(t, q, id, 10*time.Second)
		assert.Equal(t, domain.TaskStatusCompleted, snapshot.Status)
	}

	stats, err := q.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.QueueLength, "queue should drain to empty")
	assert.Equal(t, total, stats.Completed)

	var processed int64
	for _, w := range stats.Workers {
		processed += w.TasksProcessed
	}
	assert.Equal(t, int64(total), processed,
		"worker counters should account for every task that left pending")
}

func TestWorkerPool_FailedTaskCountsOnce(t *testing.T) {
	analyzer := &stubAnalyzer{fn: func(ctx context.Context, symbol, strategy string) (*domain.AnalysisResult, error) {
		return nil, errors.New("provider exploded")
	}}
	q, _ := startPool(t, NewMemoryBackend(), analyzer, 1)

	id, err := q.Submit(context.Background(), "AAPL", "")
	require.NoError(t, err)

	snapshot := waitTerminal(t, q, id, 5*time.Second)
	assert.Equal(t, domain.TaskStatusFailed, snapshot.Status)
	assert.Contains(t, snapshot.Error, "provider exploded")
	assert.Nil(t, snapshot.Result)

	stats, err := q.GetStats(context.Background())
	require.NoError(t, err)

	var processed, failures int64
	for _, w := range stats.Workers {
		processed += w.TasksProcessed
		failures += w.Errors
	}
	assert.Equal(t, int64(0), processed, "tasks_processed counts successes only")
	assert.Equal(t, int64(1), failures)
	assert.InDelta(t, 0.0, stats.SuccessRate, 0.01)
}

func TestWorkerPool_FailureDoesNotBlockLaterTasks(t *testing.T) {
	analyzer := &stubAnalyzer{fn: func(ctx context.Context, symbol, strategy string) (*domain.AnalysisResult, error) {
		if symbol == "BAD" {
			return nil, errors.New("no data for symbol")
		}
		return &domain.AnalysisResult{Symbol: symbol}, nil
	}}
	q, _ := startPool(t, NewMemoryBackend(), analyzer, 1)
	ctx := context.Background()

	badID, err := q.Submit(ctx, "BAD", "")
	require.NoError(t, err)
	goodID, err := q.Submit(ctx, "GOOD", "")
	require.NoError(t, err)

	badSnap := waitTerminal(t, q, badID, 5*time.Second)
	goodSnap := waitTerminal(t, q, goodID, 5*time.Second)

	assert.Equal(t, domain.TaskStatusFailed, badSnap.Status)
	assert.Equal(t, domain.TaskStatusCompleted, goodSnap.Status)
}

func TestWorkerPool_PanicIsIsolated(t *testing.T) {
	analyzer := &stubAnalyzer{fn: func(ctx context.Context, symbol, strategy string) (*domain.AnalysisResult, error) {
		if symbol == "PANIC" {
			panic("scorer blew up")
		}
		return &domain.AnalysisResult{Symbol: symbol}, nil
	}}
	q, _ := startPool(t, NewMemoryBackend(), analyzer, 1)
	ctx := context.Background()

	panicID, err := q.Submit(ctx, "PANIC", "")
	require.NoError(t, err)
	okID, err := q.Submit(ctx, "OK", "")
	require.NoError(t, err)

	panicSnap := waitTerminal(t, q, panicID, 5*time.Second)
	assert.Equal(t, domain.TaskStatusFailed, panicSnap.Status)
	assert.Contains(t, panicSnap.Error, "panic")

	okSnap := waitTerminal(t, q, okID, 5*time.Second)
	assert.Equal(t, domain.TaskStatusCompleted, okSnap.Status,
		"a panicking task must not take the worker down")
}

func TestWorkerPool_WatchdogTimesOutHungTask(t *testing.T) {
	analyzer := &stubAnalyzer{fn: func(ctx context.Context, symbol, strategy string) (*domain.AnalysisResult, error) {
		// Ignores cancellation on purpose to simulate a hung provider call.
		time.Sleep(2 * time.Second)
		return &domain.AnalysisResult{Symbol: symbol}, nil
	}}

	backend := NewMemoryBackend()
	registry := NewWorkerRegistry()
	metrics := NewMetrics(prometheus.NewRegistry())
	q := New(backend, registry, Config{CleanupAge: time.Hour}, metrics, testLogger())

	config := fastPoolConfig(1)
	config.TaskTimeout = 100 * time.Millisecond
	pool := NewWorkerPool(backend, analyzer, registry, config, metrics, testLogger())
	pool.Start()
	t.Cleanup(pool.Stop)

	id, err := q.Submit(context.Background(), "HUNG", "")
	require.NoError(t, err)

	snapshot := waitTerminal(t, q, id, 5*time.Second)
	assert.Equal(t, domain.TaskStatusFailed, snapshot.Status)
	assert.Contains(t, snapshot.Error, "timed out")

	// The worker must be free for new work well before the hung call returns.
	nextID, err := q.Submit(context.Background(), "NEXT", "")
	require.NoError(t, err)
	next := waitTerminal(t, q, nextID, 5*time.Second)
	assert.Equal(t, domain.TaskStatusFailed, next.Status, "stub still sleeps, but the worker picked it up")
}

func TestWorkerPool_TerminalSnapshotIsStable(t *testing.T) {
	q, _ := startPool(t, NewMemoryBackend(), succeedingAnalyzer(), 1)

	id, err := q.Submit(context.Background(), "AAPL", "")
	require.NoError(t, err)
	first := waitTerminal(t, q, id, 5*time.Second)

	time.Sleep(100 * time.Millisecond)

	second, err := q.GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, first, second, "terminal snapshots never change")
}

func TestWorkerPool_RegistryReportsWorkers(t *testing.T) {
	_, pool := startPool(t, NewMemoryBackend(), succeedingAnalyzer(), 3)

	require.Eventually(t, func() bool {
		return len(pool.registry.Snapshot()) == 3
	}, time.Second, 10*time.Millisecond)

	for _, stats := range pool.registry.Snapshot() {
		assert.Equal(t, WorkerStatusRunning, stats.Status)
		assert.False(t, stats.StartTime.IsZero())
		assert.False(t, stats.LastHeartbeat.IsZero())
	}
}

func TestWorkerPool_StopSetsWorkersStopped(t *testing.T) {
	backend := NewMemoryBackend()
	registry := NewWorkerRegistry()
	pool := NewWorkerPool(
		backend,
		succeedingAnalyzer(),
		registry,
		fastPoolConfig(2),
		NewMetrics(prometheus.NewRegistry()),
		testLogger(),
	)
	pool.Start()
	pool.Stop()

	for _, stats := range registry.Snapshot() {
		assert.Equal(t, WorkerStatusStopped, stats.Status)
	}
}

func TestWorkerPool_RepeatedFaultsMarkWorkerUnhealthy(t *testing.T) {
	backend := &faultyBackend{MemoryBackend: NewMemoryBackend(), failing: true}
	registry := NewWorkerRegistry()
	metrics := NewMetrics(prometheus.NewRegistry())
	q := New(backend, registry, Config{CleanupAge: time.Hour}, metrics, testLogger())

	// fastPoolConfig sets UnhealthyThreshold to 3, so three consecutive
	// faults should flip the status.
	pool := NewWorkerPool(backend, succeedingAnalyzer(), registry, fastPoolConfig(1), metrics, testLogger())
	pool.Start()
	t.Cleanup(pool.Stop)

	require.Eventually(t, func() bool {
		workers := registry.Snapshot()
		return len(workers) == 1 && workers[0].Status == WorkerStatusUnhealthy
	}, 3*time.Second, 10*time.Millisecond,
		"worker should report unhealthy after repeated backend faults")

	// Heal the backend and hand the worker a task; a successful pop resets
	// the fault count and the status.
	backend.setFailing(false)
	id, err := q.Submit(context.Background(), "AAPL", "")
	require.NoError(t, err)

	snapshot := waitTerminal(t, q, id, 5*time.Second)
	assert.Equal(t, domain.TaskStatusCompleted, snapshot.Status)

	require.Eventually(t, func() bool {
		workers := registry.Snapshot()
		return len(workers) == 1 && workers[0].Status == WorkerStatusRunning
	}, time.Second, 10*time.Millisecond,
		"worker should return to running once pops succeed again")
}

func TestWorkerPool_RedisModeEndToEnd(t *testing.T) {
	server := miniredis.RunT(t)
	backend, err := NewRedisBackend("redis://"+server.Addr(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	q, _ := startPool(t, backend, succeedingAnalyzer(), 2)
	ctx := context.Background()

	ids := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		id, err := q.Submit(ctx, fmt.Sprintf("SYM%d", i), "value_investor")
		require.NoError(t, err)
		ids = append(ids, id)
	}

	for _, id := range ids {
		snapshot := waitTerminal(t, q, id, 10*time.Second)
		assert.Equal(t, domain.TaskStatusCompleted, snapshot.Status)
		assert.Equal(t, "redis", snapshot.Backend)
	}

	stats, err := q.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.QueueLength)
	assert.Equal(t, 10, stats.Completed)
}
