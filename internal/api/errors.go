package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stockpulse/stockpulse-api/internal/analysis"
	"github.com/stockpulse/stockpulse-api/internal/domain"
	"github.com/stockpulse/stockpulse-api/internal/queue"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, queue.ErrTaskNotFound),
		errors.Is(err, analysis.ErrUnknownSymbol):
		return http.StatusNotFound

	// Bad request errors
	case errors.Is(err, domain.ErrEmptySymbol),
		errors.Is(err, domain.ErrInvalidTaskStatus),
		errors.Is(err, analysis.ErrUnknownStrategy):
		return http.StatusBadRequest

	// Backend unavailable
	case errors.Is(err, queue.ErrBackendClosed),
		errors.Is(err, analysis.ErrProviderUnavailable):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, queue.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, analysis.ErrUnknownSymbol):
		return "Unknown symbol"

	case errors.Is(err, domain.ErrEmptySymbol):
		return "Symbol is required"

	case errors.Is(err, analysis.ErrUnknownStrategy):
		return "Unknown analysis strategy"

	case errors.Is(err, domain.ErrInvalidTaskStatus):
		return "Invalid task status"

	case errors.Is(err, queue.ErrBackendClosed):
		return "Queue is shutting down"

	case errors.Is(err, analysis.ErrProviderUnavailable):
		return "Market data provider unavailable"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Example format: "Key: 'SubmitAnalysisRequest.Symbol' Error:Field validation for 'Symbol' failed on the 'required' tag"
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}

				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
