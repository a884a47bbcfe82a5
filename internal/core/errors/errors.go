// Package errors provides centralized error definitions for the application.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Entity lookup errors.
var (
	// ErrMessageNotFound indicates a message could not be found in the store.
	ErrMessageNotFound = errors.New("message not found")

	// ErrConversationNotFound indicates a conversation could not be found.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrNotFound is a generic not found error.
	ErrNotFound = errors.New("not found")
)

// Dependency errors.
var (
	// ErrCircuitBreakerOpen indicates the circuit breaker has tripped and requests are blocked.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

	// ErrEmptyResponse indicates an empty response was received from a provider.
	ErrEmptyResponse = errors.New("empty response")

	// ErrDependencyUnavailable indicates a critical downstream dependency is unreachable.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// Dispatch errors.
var (
	// ErrQueueFull indicates the background dispatcher rejected a task.
	ErrQueueFull = errors.New("dispatch queue full")
)

// Validation errors.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
