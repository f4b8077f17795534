package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockpulse/stockpulse-api/internal/api/shared"
	"github.com/stockpulse/stockpulse-api/internal/queue"
	"github.com/stockpulse/stockpulse-api/internal/redact"
)

// SubmitAnalysisRequest is the request body for submitting an analysis task.
type SubmitAnalysisRequest struct {
	Symbol   string `json:"symbol"   validate:"required,max=12"`
	Strategy string `json:"strategy" validate:"omitempty,oneof=balanced growth_investor value_investor dividend_hunter day_trader"`
}

// SubmitAnalysisResponse is returned when a task is accepted for processing.
type SubmitAnalysisResponse struct {
	TaskID   string `json:"task_id"`
	Symbol   string `json:"symbol"`
	Strategy string `json:"strategy"`
	Status   string `json:"status"`
	Backend  string `json:"backend"`
}

// CleanupRequest is the request body for the cleanup operation. A zero
// MaxAgeMinutes uses the configured default.
type CleanupRequest struct {
	MaxAgeMinutes int `json:"max_age_minutes" validate:"omitempty,min=1"`
}

// CleanupResponse reports how many terminal tasks were removed.
type CleanupResponse struct {
	Removed int `json:"removed"`
}

// TaskHandler holds dependencies for the analysis task endpoints.
type TaskHandler struct {
	queue     *queue.Queue
	validator *validator.Validate
	logger    *slog.Logger
}

// NewTaskHandler creates a new TaskHandler with the given dependencies.
func NewTaskHandler(q *queue.Queue, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		queue:     q,
		validator: validator.New(),
		logger:    logger.With("component", "task_handler"),
	}
}

// SubmitAnalysis handles POST /api/v1/analyses. The task is queued and the
// response returns immediately with 202 Accepted; callers poll GetAnalysis
// for the result.
func (h *TaskHandler) SubmitAnalysis(w http.ResponseWriter, r *http.Request) {
	var req SubmitAnalysisRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Debug("validation error in submit request", "error", redact.Error(err))
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	taskID, err := h.queue.Submit(r.Context(), req.Symbol, req.Strategy)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	snapshot, err := h.queue.GetStatus(r.Context(), taskID)
	if err != nil {
		// The task was accepted even if the read-back failed.
		h.logger.Warn("failed to read back submitted task", "task_id", taskID, "error", redact.Error(err))
		shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitAnalysisResponse{
			TaskID:  taskID,
			Symbol:  req.Symbol,
			Status:  "pending",
			Backend: h.queue.Backend(),
		})
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitAnalysisResponse{
		TaskID:   snapshot.ID,
		Symbol:   snapshot.Symbol,
		Strategy: snapshot.Strategy,
		Status:   string(snapshot.Status),
		Backend:  snapshot.Backend,
	})
}

// GetAnalysis handles GET /api/v1/analyses/{id}. It returns the task's
// current status snapshot, including the result once the task completes.
func (h *TaskHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	if taskID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Task ID is required")
		return
	}

	snapshot, err := h.queue.GetStatus(r.Context(), taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, snapshot)
}

// GetQueueStats handles GET /api/v1/queue/stats.
func (h *TaskHandler) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.GetStats(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// CleanupTasks handles POST /api/v1/queue/cleanup. It removes terminal tasks
// older than the requested age and reports how many were deleted.
func (h *TaskHandler) CleanupTasks(w http.ResponseWriter, r *http.Request) {
	req := CleanupRequest{}
	if r.ContentLength > 0 {
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
			return
		}
	}

	maxAge := h.queue.CleanupAge()
	if req.MaxAgeMinutes > 0 {
		maxAge = time.Duration(req.MaxAgeMinutes) * time.Minute
	}

	removed, err := h.queue.CleanupOldTasks(r.Context(), maxAge)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, CleanupResponse{Removed: removed})
}
