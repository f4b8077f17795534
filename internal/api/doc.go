// Package api implements the HTTP handlers for the analysis task queue:
// submitting analyses, polling task status, reading queue statistics and
// triggering cleanup. Handlers validate input, translate internal errors to
// safe HTTP responses and never leak backend details to clients.
package api
