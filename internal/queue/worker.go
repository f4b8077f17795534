package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stockpulse/stockpulse-api/internal/analysis"
	"github.com/stockpulse/stockpulse-api/internal/domain"
)

// WorkerStatus represents the health of a single worker
type WorkerStatus string

// Possible worker status values
const (
	WorkerStatusRunning   WorkerStatus = "running"
	WorkerStatusUnhealthy WorkerStatus = "unhealthy"
	WorkerStatusStopped   WorkerStatus = "stopped"
)

// WorkerStats is a snapshot of one worker's counters. TasksProcessed counts
// successful executions and Errors counts failed ones; the two never overlap.
type WorkerStats struct {
	ID             int          `json:"id"`
	Status         WorkerStatus `json:"status"`
	TasksProcessed int64        `json:"tasks_processed"`
	Errors         int64        `json:"errors"`
	StartTime      time.Time    `json:"start_time"`
	LastHeartbeat  time.Time    `json:"last_heartbeat"`
}

// workerState is the mutable stat record owned by one worker goroutine.
// Only that worker writes it; the registry takes locked snapshots for reads.
type workerState struct {
	mu    sync.Mutex
	stats WorkerStats
}

func (s *workerState) heartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.LastHeartbeat = time.Now().UTC()
}

func (s *workerState) setStatus(status WorkerStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Status = status
}

func (s *workerState) recordProcessed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TasksProcessed++
}

func (s *workerState) recordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Errors++
}

func (s *workerState) snapshot() WorkerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// WorkerRegistry aggregates per-worker stat records for the stats API.
type WorkerRegistry struct {
	mu      sync.Mutex
	workers map[int]*workerState
}

// NewWorkerRegistry creates an empty registry.
func NewWorkerRegistry() *WorkerRegistry {
	return &WorkerRegistry{workers: make(map[int]*workerState)}
}

// register creates the stat record for a starting worker.
func (r *WorkerRegistry) register(id int) *workerState {
	state := &workerState{stats: WorkerStats{
		ID:            id,
		Status:        WorkerStatusRunning,
		StartTime:     time.Now().UTC(),
		LastHeartbeat: time.Now().UTC(),
	}}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[id] = state
	return state
}

// Snapshot returns the current stats of every registered worker, ordered by
// worker ID.
func (r *WorkerRegistry) Snapshot() []WorkerStats {
	r.mu.Lock()
	states := make([]*workerState, 0, len(r.workers))
	maxID := -1
	for id := range r.workers {
		if id > maxID {
			maxID = id
		}
	}
	for id := 0; id <= maxID; id++ {
		if state, ok := r.workers[id]; ok {
			states = append(states, state)
		}
	}
	r.mu.Unlock()

	stats := make([]WorkerStats, 0, len(states))
	for _, state := range states {
		stats = append(stats, state.snapshot())
	}
	return stats
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent workers to start.
	// If zero or negative, defaults to 3.
	WorkerCount int

	// PopTimeout bounds each blocking pop so the shutdown signal is checked
	// periodically even with no work. Defaults to 1s. The redis backend has
	// one-second BLPOP resolution and treats smaller values as 1s.
	PopTimeout time.Duration

	// TaskTimeout is the per-task execution deadline enforced by the
	// watchdog. Defaults to 2 minutes.
	TaskTimeout time.Duration

	// InitialBackoff is the first sleep after a backend fault. Defaults to 250ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff between backend fault retries.
	// Defaults to 15s.
	MaxBackoff time.Duration

	// UnhealthyThreshold is the number of consecutive backend faults after
	// which a worker reports unhealthy. Defaults to 5.
	UnhealthyThreshold int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount:        3,
		PopTimeout:         time.Second,
		TaskTimeout:        2 * time.Minute,
		InitialBackoff:     250 * time.Millisecond,
		MaxBackoff:         15 * time.Second,
		UnhealthyThreshold: 5,
	}
}

// WorkerPool manages the fixed set of goroutines draining the pending queue
// and executing the analysis pipeline. It handles graceful shutdown, per-task
// deadlines and worker health bookkeeping.
type WorkerPool struct {
	backend  Backend
	analyzer analysis.Analyzer
	registry *WorkerRegistry
	config   WorkerPoolConfig
	metrics  *Metrics
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// NewWorkerPool creates a worker pool over the given backend and analyzer.
// Worker stats are published through the provided registry.
func NewWorkerPool(
	backend Backend,
	analyzer analysis.Analyzer,
	registry *WorkerRegistry,
	config WorkerPoolConfig,
	metrics *Metrics,
	logger *slog.Logger,
) *WorkerPool {
	defaults := DefaultWorkerPoolConfig()
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", defaults.WorkerCount)
		config.WorkerCount = defaults.WorkerCount
	}
	if config.PopTimeout <= 0 {
		config.PopTimeout = defaults.PopTimeout
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = defaults.TaskTimeout
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.UnhealthyThreshold <= 0 {
		config.UnhealthyThreshold = defaults.UnhealthyThreshold
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		backend:  backend,
		analyzer: analyzer,
		registry: registry,
		config:   config,
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
	}
}

// Start launches the worker goroutines.
func (p *WorkerPool) Start() {
	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started", "worker_count", p.config.WorkerCount)
}

// Stop signals every worker to finish its current task and waits for them.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// worker is the loop run by each pool goroutine: heartbeat, pop with timeout,
// process, repeat. Backend faults back off with a cap instead of terminating
// the worker; task failures never escape the loop.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	state := p.registry.register(id)
	defer state.setStatus(WorkerStatusStopped)

	logger := p.logger.With("worker_id", id)
	logger.Debug("starting worker")

	backoff := p.config.InitialBackoff
	consecutiveFaults := 0

	for {
		select {
		case <-p.ctx.Done():
			logger.Debug("stopping worker")
			return
		default:
		}

		state.heartbeat()

		taskID, err := p.backend.PopPending(p.ctx, p.config.PopTimeout)
		switch {
		case errors.Is(err, ErrNoTask):
			continue
		case errors.Is(err, context.Canceled), errors.Is(err, ErrBackendClosed):
			logger.Debug("stopping worker")
			return
		case err != nil:
			consecutiveFaults++
			if consecutiveFaults >= p.config.UnhealthyThreshold {
				state.setStatus(WorkerStatusUnhealthy)
			}
			logger.Error("failed to pop pending task",
				"error", err,
				"consecutive_faults", consecutiveFaults,
				"backoff", backoff)
			p.sleep(backoff)
			backoff = minDuration(backoff*2, p.config.MaxBackoff)
			continue
		}

		consecutiveFaults = 0
		backoff = p.config.InitialBackoff
		state.setStatus(WorkerStatusRunning)

		p.processTask(taskID, state, logger)
	}
}

// processTask handles execution of a single task
func (p *WorkerPool) processTask(taskID string, state *workerState, logger *slog.Logger) {
	ctx := p.ctx
	logger = logger.With("task_id", taskID)

	task, err := p.backend.GetTask(ctx, taskID)
	if err != nil {
		// The record can be gone if a cleanup raced the pop.
		logger.Error("failed to load popped task", "error", err)
		return
	}
	if task.IsTerminal() {
		logger.Warn("skipping task already in terminal state", "status", task.Status)
		return
	}

	if err := task.MarkProcessing(); err != nil {
		logger.Error("failed to transition task to processing", "error", err)
		return
	}
	if err := p.backend.SaveTask(ctx, task); err != nil {
		logger.Error("failed to persist processing state", "error", err)
		return
	}

	logger.Info("processing task", "symbol", task.Symbol, "strategy", task.Strategy)

	result, err := p.runAnalysis(task)

	if err != nil {
		logger.Error("task execution failed", "error", err)
		if trErr := task.MarkFailed(err.Error()); trErr != nil {
			logger.Error("failed to transition task to failed", "error", trErr)
			return
		}
		state.recordError()
		p.metrics.TaskFailed()
	} else {
		logger.Info("task completed successfully",
			"score", result.Score,
			"recommendation", result.Recommendation,
			"processing_time", task.ProcessingTime())
		if trErr := task.MarkCompleted(result); trErr != nil {
			logger.Error("failed to transition task to completed", "error", trErr)
			return
		}
		state.recordProcessed()
		p.metrics.TaskCompleted(task.ProcessingTime())
	}

	if err := p.backend.SaveTask(ctx, task); err != nil {
		logger.Error("failed to persist terminal state", "error", err)
	}
}

// runAnalysis invokes the analyzer under the per-task deadline. The select
// frees the worker when the deadline fires even if the analyzer ignores its
// context; the buffered channel lets the straggler goroutine finish without
// leaking.
func (p *WorkerPool) runAnalysis(task *domain.AnalysisTask) (*domain.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.config.TaskTimeout)
	defer cancel()

	type outcome struct {
		result *domain.AnalysisResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("analysis panicked: %v", r)}
			}
		}()
		result, err := p.analyzer.Analyze(ctx, task.Symbol, task.Strategy)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		if p.ctx.Err() != nil {
			// Pool shutdown, not a task fault.
			return nil, fmt.Errorf("analysis aborted: %w", p.ctx.Err())
		}
		return nil, fmt.Errorf("analysis timed out after %s", p.config.TaskTimeout)
	}
}

// sleep waits for d or until the pool shuts down.
func (p *WorkerPool) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-p.ctx.Done():
	case <-timer.C:
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
