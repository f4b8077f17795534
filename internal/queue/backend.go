package queue

import (
	"context"
	"errors"
	"time"

	"github.com/stockpulse/stockpulse-api/internal/domain"
)

// Common errors returned by queue backends
var (
	// ErrTaskNotFound is returned when a task ID is unknown to the backend
	ErrTaskNotFound = errors.New("task not found")

	// ErrNoTask is returned by PopPending when no task became available
	// within the timeout
	ErrNoTask = errors.New("no task available")

	// ErrBackendClosed is returned when an operation is attempted on a
	// closed backend
	ErrBackendClosed = errors.New("backend is closed")
)

// Backend is the storage substrate shared by the queue facade and the worker
// pool: a task-ID-to-record map plus a FIFO queue of pending task IDs.
// Implementations must be safe for concurrent use, and PopPending must hand
// each pending ID to exactly one caller.
type Backend interface {
	// Name identifies the backend mode ("memory" or "redis").
	Name() string

	// SaveTask inserts or replaces the task record.
	SaveTask(ctx context.Context, task *domain.AnalysisTask) error

	// GetTask returns a copy of the task record, or ErrTaskNotFound.
	GetTask(ctx context.Context, id string) (*domain.AnalysisTask, error)

	// ListTasks returns copies of all stored task records in no particular order.
	ListTasks(ctx context.Context) ([]*domain.AnalysisTask, error)

	// DeleteTask removes the task record. Deleting an unknown ID is not an error.
	DeleteTask(ctx context.Context, id string) error

	// PushPending appends the task ID to the tail of the pending queue.
	PushPending(ctx context.Context, id string) error

	// PopPending removes and returns the ID at the head of the pending
	// queue, blocking up to timeout. Returns ErrNoTask when the timeout
	// elapses with the queue empty, or the context error on cancellation.
	PopPending(ctx context.Context, timeout time.Duration) (string, error)

	// QueueLength returns the number of pending task IDs.
	QueueLength(ctx context.Context) (int64, error)

	// QueuePosition returns the zero-based position of the ID in the pending
	// queue, or -1 if it is not queued.
	QueuePosition(ctx context.Context, id string) (int, error)

	// Ping checks backend liveness.
	Ping(ctx context.Context) error

	// Close releases backend resources and unblocks pending pops.
	Close() error
}
