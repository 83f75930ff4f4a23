// Package handlers implements the HTTP endpoints of the sync API. Handlers
// are transport-thin: they validate input, call the engine, and translate
// results into HTTP responses with a stable error-code taxonomy.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeSendFailed       = "send_failed"
	ErrCodeResyncFailed     = "resync_failed"
	ErrCodeLoadTimeout      = "load_timeout"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
