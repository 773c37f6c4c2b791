package collab

import (
	"errors"
	"fmt"
)

// Errors returned by the Service. Handlers map them to HTTP statuses with
// errors.Is; wrapped causes are for logs only.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrNotAParticipant     = errors.New("not a participant")
	ErrItemNotFound        = errors.New("item not found in session")
	ErrValidation          = errors.New("validation failed")
	ErrPersistence         = errors.New("persistence failure")
	ErrConcurrencyConflict = errors.New("concurrent update conflict, retry")
)

// ValidationError describes rejected input. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) succeed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// IsRetryable reports whether the caller may safely retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrPersistence)
}
