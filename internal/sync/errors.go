package sync

import "errors"

// Sentinel errors returned by the engine. Callers branch on these with
// errors.Is; the HTTP layer maps them to status codes.
var (
	// ErrNotSignedIn is returned when an operation needs a session and
	// none has begun.
	ErrNotSignedIn = errors.New("no active session")

	// ErrEmptyContent is returned when a text message has no content
	// after trimming.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrUnknownConversation is returned when the target conversation is
	// not in the registry.
	ErrUnknownConversation = errors.New("unknown conversation")

	// ErrColdLoadTimeout is returned when the blocking first load did not
	// finish inside its deadline.
	ErrColdLoadTimeout = errors.New("cold load timed out")
)
