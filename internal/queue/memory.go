package queue

import (
	"context"
	"sync"
	"time"

	"github.com/stockpulse/stockpulse-api/internal/domain"
)

// MemoryBackend is the in-process Backend used when Redis is unavailable.
// A single mutex guards both the task map and the pending slice so that
// compound read-modify-write sequences are atomic, and a signal channel
// wakes blocked pops when work arrives.
type MemoryBackend struct {
	mu      sync.Mutex
	tasks   map[string]*domain.AnalysisTask
	pending []string
	notify  chan struct{}
	closed  bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		tasks:  make(map[string]*domain.AnalysisTask),
		notify: make(chan struct{}, 1),
	}
}

// Name identifies the backend mode.
func (m *MemoryBackend) Name() string { return "memory" }

// SaveTask inserts or replaces the task record. The backend stores its own
// copy so callers cannot mutate a record it owns.
func (m *MemoryBackend) SaveTask(ctx context.Context, task *domain.AnalysisTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrBackendClosed
	}
	m.tasks[task.ID] = cloneTask(task)
	return nil
}

// GetTask returns a copy of the task record.
func (m *MemoryBackend) GetTask(ctx context.Context, id string) (*domain.AnalysisTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return cloneTask(task), nil
}

// ListTasks returns copies of all stored task records.
func (m *MemoryBackend) ListTasks(ctx context.Context) ([]*domain.AnalysisTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tasks := make([]*domain.AnalysisTask, 0, len(m.tasks))
	for _, task := range m.tasks {
		tasks = append(tasks, cloneTask(task))
	}
	return tasks, nil
}

// DeleteTask removes the task record.
func (m *MemoryBackend) DeleteTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

// PushPending appends the task ID to the pending queue and wakes one
// blocked pop.
func (m *MemoryBackend) PushPending(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrBackendClosed
	}
	m.pending = append(m.pending, id)
	m.signal()
	return nil
}

// PopPending removes and returns the head of the pending queue, blocking up
// to timeout. The pop is exclusive: each ID is handed to exactly one caller.
func (m *MemoryBackend) PopPending(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return "", ErrBackendClosed
		}
		if len(m.pending) > 0 {
			id := m.pending[0]
			m.pending = m.pending[1:]
			// Other waiters may still have work to claim.
			if len(m.pending) > 0 {
				m.signal()
			}
			m.mu.Unlock()
			return id, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
			return "", ErrNoTask
		case <-m.notify:
			// Re-check the queue; another waiter may have won the race.
		}
	}
}

// QueueLength returns the number of pending task IDs.
func (m *MemoryBackend) QueueLength(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.pending)), nil
}

// QueuePosition returns the zero-based position of the ID in the pending
// queue, or -1 if it is not queued.
func (m *MemoryBackend) QueuePosition(ctx context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, pending := range m.pending {
		if pending == id {
			return i, nil
		}
	}
	return -1, nil
}

// Ping always succeeds for the in-memory backend.
func (m *MemoryBackend) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrBackendClosed
	}
	return nil
}

// Close marks the backend closed and wakes blocked pops.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	// Closing the channel wakes every blocked pop at once.
	close(m.notify)
	return nil
}

// signal wakes one blocked PopPending. Callers must hold m.mu so a signal
// can never race a Close of the channel.
func (m *MemoryBackend) signal() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// cloneTask copies a task record so backend-held state is never aliased by
// callers. Result and timestamp values are treated as immutable once set.
func cloneTask(task *domain.AnalysisTask) *domain.AnalysisTask {
	clone := *task
	return &clone
}
