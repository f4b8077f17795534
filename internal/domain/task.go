package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the processing state of an analysis task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// DefaultStrategy is applied when a task is submitted without one.
const DefaultStrategy = "balanced"

// Common validation errors for AnalysisTask
var (
	ErrEmptyTaskID         = errors.New("task ID cannot be empty")
	ErrEmptySymbol         = errors.New("symbol cannot be empty")
	ErrInvalidTaskStatus   = errors.New("invalid task status")
	ErrTaskAlreadyTerminal = errors.New("task is already in a terminal state")
	ErrTaskNotProcessing   = errors.New("task is not in processing state")
)

// AnalysisTask represents one unit of requested analysis work.
// The ID, Symbol and Strategy are fixed at submission time; Status and the
// lifecycle timestamps are mutated only through the transition helpers so the
// state machine invariants hold everywhere a task is touched.
type AnalysisTask struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Strategy    string          `json:"strategy"`
	Status      TaskStatus      `json:"status"`
	Backend     string          `json:"backend"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Result      *AnalysisResult `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// NewAnalysisTask creates a pending task for the given symbol and strategy.
// The symbol is uppercased and must be non-empty; an empty strategy falls
// back to DefaultStrategy. Returns an error if validation fails.
func NewAnalysisTask(symbol, strategy string) (*AnalysisTask, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if strategy == "" {
		strategy = DefaultStrategy
	}

	task := &AnalysisTask{
		ID:        uuid.New().String(),
		Symbol:    symbol,
		Strategy:  strategy,
		Status:    TaskStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the AnalysisTask has valid data.
// Returns an error if any field fails validation.
func (t *AnalysisTask) Validate() error {
	if t.ID == "" {
		return ErrEmptyTaskID
	}

	if t.Symbol == "" {
		return ErrEmptySymbol
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	return nil
}

// IsTerminal reports whether the task has reached a final state.
// Terminal tasks never transition again.
func (t *AnalysisTask) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// MarkProcessing transitions a pending task to processing and records the
// start time. Returns an error if the task is already terminal.
func (t *AnalysisTask) MarkProcessing() error {
	if t.IsTerminal() {
		return ErrTaskAlreadyTerminal
	}

	now := time.Now().UTC()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	return nil
}

// MarkCompleted transitions a processing task to completed with its result.
// Returns an error if the task is not processing.
func (t *AnalysisTask) MarkCompleted(result *AnalysisResult) error {
	if t.Status != TaskStatusProcessing {
		return ErrTaskNotProcessing
	}

	now := time.Now().UTC()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.Result = result
	t.Error = ""
	return nil
}

// MarkFailed transitions a processing task to failed with an error message.
// Returns an error if the task is not processing.
func (t *AnalysisTask) MarkFailed(errMsg string) error {
	if t.Status != TaskStatusProcessing {
		return ErrTaskNotProcessing
	}

	now := time.Now().UTC()
	t.Status = TaskStatusFailed
	t.CompletedAt = &now
	t.Result = nil
	t.Error = errMsg
	return nil
}

// ProcessingTime returns the wall-clock duration between start and completion.
// It returns zero until both timestamps are set.
func (t *AnalysisTask) ProcessingTime() time.Duration {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(*t.StartedAt)
}

// isValidTaskStatus checks if the given status is valid
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}
