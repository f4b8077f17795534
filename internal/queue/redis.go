package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stockpulse/stockpulse-api/internal/domain"
)

// Redis key layout: one hash for the ID-to-record map, one list for the
// pending FIFO. Both live under a common prefix so several deployments can
// share an instance.
const (
	redisTasksKey = "stockpulse:tasks"
	redisQueueKey = "stockpulse:queue"
)

// RedisBackend is the remote Backend. Task records are stored as JSON hash
// fields and the pending queue is a Redis list consumed with BLPOP, which
// makes the pop atomic across workers and processes.
type RedisBackend struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisBackend creates a RedisBackend from a redis:// URL. The connection
// is not probed here; callers decide liveness with Ping.
func NewRedisBackend(redisURL string, logger *slog.Logger) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	return &RedisBackend{
		client: redis.NewClient(opts),
		logger: logger,
	}, nil
}

// Name identifies the backend mode.
func (r *RedisBackend) Name() string { return "redis" }

// SaveTask stores the task record as a JSON hash field.
func (r *RedisBackend) SaveTask(ctx context.Context, task *domain.AnalysisTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}
	if err := r.client.HSet(ctx, redisTasksKey, task.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask returns the task record, or ErrTaskNotFound.
func (r *RedisBackend) GetTask(ctx context.Context, id string) (*domain.AnalysisTask, error) {
	data, err := r.client.HGet(ctx, redisTasksKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}

	var task domain.AnalysisTask
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task %s: %w", id, err)
	}
	return &task, nil
}

// ListTasks returns all stored task records.
func (r *RedisBackend) ListTasks(ctx context.Context) ([]*domain.AnalysisTask, error) {
	fields, err := r.client.HGetAll(ctx, redisTasksKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]*domain.AnalysisTask, 0, len(fields))
	for id, data := range fields {
		var task domain.AnalysisTask
		if err := json.Unmarshal([]byte(data), &task); err != nil {
			// A corrupt record should not hide every other task.
			r.logger.Warn("skipping unreadable task record", "task_id", id, "error", err)
			continue
		}
		tasks = append(tasks, &task)
	}
	return tasks, nil
}

// DeleteTask removes the task record.
func (r *RedisBackend) DeleteTask(ctx context.Context, id string) error {
	if err := r.client.HDel(ctx, redisTasksKey, id).Err(); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return nil
}

// PushPending appends the task ID to the tail of the pending list.
func (r *RedisBackend) PushPending(ctx context.Context, id string) error {
	if err := r.client.RPush(ctx, redisQueueKey, id).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task %s: %w", id, err)
	}
	return nil
}

// PopPending blocks on BLPOP up to timeout. Returns ErrNoTask when the
// timeout elapses with the list empty. BLPOP has one-second resolution, so
// timeouts below a second are clamped to it rather than silently stretched
// by the driver.
func (r *RedisBackend) PopPending(ctx context.Context, timeout time.Duration) (string, error) {
	if timeout < time.Second {
		timeout = time.Second
	}
	reply, err := r.client.BLPop(ctx, timeout, redisQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoTask
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("failed to pop pending task: %w", err)
	}
	// BLPOP replies with [key, value].
	if len(reply) != 2 {
		return "", fmt.Errorf("unexpected BLPOP reply length %d", len(reply))
	}
	return reply[1], nil
}

// QueueLength returns the length of the pending list.
func (r *RedisBackend) QueueLength(ctx context.Context) (int64, error) {
	length, err := r.client.LLen(ctx, redisQueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return length, nil
}

// QueuePosition scans the pending list for the ID. The snapshot can be
// stale the moment it returns.
func (r *RedisBackend) QueuePosition(ctx context.Context, id string) (int, error) {
	ids, err := r.client.LRange(ctx, redisQueueKey, 0, -1).Result()
	if err != nil {
		return -1, fmt.Errorf("failed to scan queue: %w", err)
	}
	for i, pending := range ids {
		if pending == id {
			return i, nil
		}
	}
	return -1, nil
}

// Ping probes the Redis connection.
func (r *RedisBackend) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close releases the client's connection pool.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
