package core

import "fmt"

var (
	// ErrNotFound is returned when a session, pattern, message or learning
	// record does not exist in the underlying store. A lookup miss is a
	// normal outcome, not a failure; callers must be able to distinguish it
	// from ErrStoreUnavailable.
	ErrNotFound = fmt.Errorf("record not found")

	// ErrStoreUnavailable is returned when the backing store connection is
	// lost or an operation timed out. Components fail fast with this error
	// until reconnection succeeds.
	ErrStoreUnavailable = fmt.Errorf("backing store unavailable")

	// ErrSessionExists is returned when starting a coordination session with
	// an id that already maps to an active session.
	ErrSessionExists = fmt.Errorf("session already active")
)

// ValidationError represents malformed input to a public operation. It is
// rejected before any store interaction takes place.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError constructs a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
