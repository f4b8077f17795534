package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stockpulse/stockpulse-api/internal/domain"
)

// StatusSnapshot is the read-only projection of a task returned to callers.
// QueuePosition is only meaningful while the task is pending and
// ProcessingTimeMs only once it is terminal; both are omitted otherwise.
type StatusSnapshot struct {
	ID               string                 `json:"id"`
	Symbol           string                 `json:"symbol"`
	Strategy         string                 `json:"strategy"`
	Status           domain.TaskStatus      `json:"status"`
	Backend          string                 `json:"backend"`
	CreatedAt        time.Time              `json:"created_at"`
	StartedAt        *time.Time             `json:"started_at,omitempty"`
	CompletedAt      *time.Time             `json:"completed_at,omitempty"`
	Result           *domain.AnalysisResult `json:"result,omitempty"`
	Error            string                 `json:"error,omitempty"`
	QueuePosition    *int                   `json:"queue_position,omitempty"`
	ProcessingTimeMs *int64                 `json:"processing_time_ms,omitempty"`
}

// Stats is the aggregate snapshot returned by the stats operation.
type Stats struct {
	Backend         string        `json:"backend"`
	QueueLength     int64         `json:"queue_length"`
	Pending         int           `json:"pending"`
	Processing      int           `json:"processing"`
	Completed       int           `json:"completed"`
	Failed          int           `json:"failed"`
	TotalTasks      int           `json:"total_tasks"`
	AvgProcessingMs float64       `json:"avg_processing_ms"`
	SuccessRate     float64       `json:"success_rate"`
	Workers         []WorkerStats `json:"workers"`
}

// Config holds configuration options for the queue facade
type Config struct {
	// CleanupAge is how old a terminal task must be before the janitor
	// removes it. Defaults to 1 hour.
	CleanupAge time.Duration

	// CleanupInterval is how often the janitor runs. Zero disables the
	// janitor goroutine; CleanupOldTasks can still be called directly.
	CleanupInterval time.Duration
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		CleanupAge:      time.Hour,
		CleanupInterval: 10 * time.Minute,
	}
}

// Queue is the single entry point callers use to submit analysis work and
// poll for results. The backend choice is made once, before construction,
// and never re-evaluated: whichever mode the service starts in, it stays in
// (see SelectBackend).
type Queue struct {
	backend  Backend
	registry *WorkerRegistry
	config   Config
	metrics  *Metrics
	logger   *slog.Logger

	cancel  context.CancelFunc
	janitor sync.WaitGroup
}

// SelectBackend probes Redis once and returns the backend the process will
// use for its whole lifetime. Any probe failure, including an unparseable
// URL, selects the in-memory backend; the degradation is logged and sticky
// rather than silently re-decided per operation.
func SelectBackend(ctx context.Context, redisURL string, logger *slog.Logger) Backend {
	if redisURL == "" {
		logger.Info("no redis URL configured, using in-memory backend")
		return NewMemoryBackend()
	}

	backend, err := NewRedisBackend(redisURL, logger)
	if err != nil {
		logger.Warn("invalid redis configuration, using in-memory backend", "error", err)
		return NewMemoryBackend()
	}

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := backend.Ping(probeCtx); err != nil {
		logger.Warn("redis unreachable, using in-memory backend", "error", err)
		if closeErr := backend.Close(); closeErr != nil {
			logger.Debug("failed to close unused redis client", "error", closeErr)
		}
		return NewMemoryBackend()
	}

	logger.Info("using redis backend")
	return backend
}

// New creates a queue facade over the given backend. Worker stats are read
// from the provided registry, which the worker pool shares.
func New(
	backend Backend,
	registry *WorkerRegistry,
	config Config,
	metrics *Metrics,
	logger *slog.Logger,
) *Queue {
	defaults := DefaultConfig()
	if config.CleanupAge <= 0 {
		config.CleanupAge = defaults.CleanupAge
	}

	return &Queue{
		backend:  backend,
		registry: registry,
		config:   config,
		metrics:  metrics,
		logger:   logger,
	}
}

// Backend returns the active backend mode label.
func (q *Queue) Backend() string {
	return q.backend.Name()
}

// CleanupAge returns the configured default age for cleanup operations.
func (q *Queue) CleanupAge() time.Duration {
	return q.config.CleanupAge
}

// Submit creates a pending task for the symbol and strategy, stores it and
// pushes its ID onto the pending queue. It returns the task ID immediately
// and never waits for execution.
func (q *Queue) Submit(ctx context.Context, symbol, strategy string) (string, error) {
	task, err := domain.NewAnalysisTask(symbol, strategy)
	if err != nil {
		return "", err
	}
	task.Backend = q.backend.Name()

	if err := q.backend.SaveTask(ctx, task); err != nil {
		return "", fmt.Errorf("failed to save task: %w", err)
	}
	if err := q.backend.PushPending(ctx, task.ID); err != nil {
		// Don't leave an orphaned record no worker will ever pick up.
		if delErr := q.backend.DeleteTask(ctx, task.ID); delErr != nil {
			q.logger.Error("failed to delete orphaned task", "task_id", task.ID, "error", delErr)
		}
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.metrics.TaskSubmitted()
	if length, err := q.backend.QueueLength(ctx); err == nil {
		q.metrics.SetQueueDepth(length)
	}

	q.logger.Info("task submitted",
		"task_id", task.ID,
		"symbol", task.Symbol,
		"strategy", task.Strategy,
		"backend", task.Backend)

	return task.ID, nil
}

// GetStatus returns the task's status snapshot, or ErrTaskNotFound for an
// unknown ID.
func (q *Queue) GetStatus(ctx context.Context, id string) (*StatusSnapshot, error) {
	task, err := q.backend.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	snapshot := &StatusSnapshot{
		ID:          task.ID,
		Symbol:      task.Symbol,
		Strategy:    task.Strategy,
		Status:      task.Status,
		Backend:     task.Backend,
		CreatedAt:   task.CreatedAt,
		StartedAt:   task.StartedAt,
		CompletedAt: task.CompletedAt,
		Result:      task.Result,
		Error:       task.Error,
	}

	if task.Status == domain.TaskStatusPending {
		if pos, err := q.backend.QueuePosition(ctx, id); err == nil && pos >= 0 {
			snapshot.QueuePosition = &pos
		}
	}
	if task.IsTerminal() {
		ms := task.ProcessingTime().Milliseconds()
		snapshot.ProcessingTimeMs = &ms
	}

	return snapshot, nil
}

// GetStats returns the aggregate queue snapshot: counts by status, queue
// length, worker stat records and the derived averages.
func (q *Queue) GetStats(ctx context.Context) (*Stats, error) {
	tasks, err := q.backend.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	length, err := q.backend.QueueLength(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue length: %w", err)
	}
	q.metrics.SetQueueDepth(length)

	stats := &Stats{
		Backend:     q.backend.Name(),
		QueueLength: length,
		TotalTasks:  len(tasks),
		Workers:     q.registry.Snapshot(),
	}

	var totalProcessingMs int64
	for _, task := range tasks {
		switch task.Status {
		case domain.TaskStatusPending:
			stats.Pending++
		case domain.TaskStatusProcessing:
			stats.Processing++
		case domain.TaskStatusCompleted:
			stats.Completed++
			totalProcessingMs += task.ProcessingTime().Milliseconds()
		case domain.TaskStatusFailed:
			stats.Failed++
		}
	}

	if stats.Completed > 0 {
		stats.AvgProcessingMs = float64(totalProcessingMs) / float64(stats.Completed)
	}

	finished := stats.Completed + stats.Failed
	if finished == 0 {
		// Nothing has finished yet, so nothing has failed yet either.
		stats.SuccessRate = 100
	} else {
		stats.SuccessRate = float64(stats.Completed) / float64(finished) * 100
	}

	return stats, nil
}

// CleanupOldTasks removes terminal tasks whose completion is older than
// maxAge and returns how many were deleted. Pending and processing tasks are
// never touched.
func (q *Queue) CleanupOldTasks(ctx context.Context, maxAge time.Duration) (int, error) {
	tasks, err := q.backend.ListTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0
	for _, task := range tasks {
		if !task.IsTerminal() || task.CompletedAt == nil {
			continue
		}
		if task.CompletedAt.After(cutoff) {
			continue
		}
		if err := q.backend.DeleteTask(ctx, task.ID); err != nil {
			q.logger.Error("failed to delete old task", "task_id", task.ID, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		q.logger.Info("cleaned up old tasks", "removed", removed, "max_age", maxAge)
	}
	return removed, nil
}

// Start launches the janitor goroutine that periodically garbage-collects
// terminal tasks, keeping the task map from growing unboundedly. A zero
// cleanup interval disables it.
func (q *Queue) Start() {
	if q.config.CleanupInterval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel

	q.janitor.Add(1)
	go func() {
		defer q.janitor.Done()

		ticker := time.NewTicker(q.config.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := q.CleanupOldTasks(ctx, q.config.CleanupAge); err != nil {
					q.logger.Error("task cleanup failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the janitor. The backend is closed by whoever owns it.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.janitor.Wait()
}
