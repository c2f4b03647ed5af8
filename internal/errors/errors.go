package errors

import (
	"errors"
	"fmt"
)

// Domain conditions. Callers branch on them with errors.Is; none of them is
// a fault of the process.
var (
	// ErrNotFound means the record a transition acts on does not exist or was
	// already resolved. The caller re-renders current state.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means the transition is not allowed from the current
	// pairing or approval status.
	ErrInvalidState = errors.New("invalid state for transition")

	// ErrAccessDenied is returned for admin operations by non-admins.
	ErrAccessDenied = errors.New("access denied")

	// ErrBanned is returned when a banned user tries to act.
	ErrBanned = errors.New("user is banned")

	// ErrAlreadyPending is returned when an open unpair request already exists.
	ErrAlreadyPending = errors.New("request already pending")
)

// ValidationError reports malformed input for a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
