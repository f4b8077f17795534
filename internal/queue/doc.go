// Package queue implements the asynchronous analysis task queue: a backend
// abstraction with interchangeable in-memory and Redis implementations, a
// facade for submitting work and polling status, and a fixed worker pool
// that drains the pending queue and executes the analysis pipeline. Long
// analyses run off the request path here so HTTP handlers only ever touch
// the backend store.
package queue
