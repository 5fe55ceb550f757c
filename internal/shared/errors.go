package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated covers missing, malformed and expired credentials.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates a valid principal lacking the required grant.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates a uniqueness violation on an authoritative write.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates a malformed request payload.
	ErrValidation = errors.New("validation failed")
	// ErrUnprocessable indicates a referential or semantic violation.
	ErrUnprocessable = errors.New("unprocessable entity")
)

// ConflictError is returned by store adapters when a write hits a unique constraint.
type ConflictError struct {
	Entity     string
	Constraint string
}

func (e *ConflictError) Error() string {
	if e.Constraint == "" {
		return fmt.Sprintf("%s: duplicate entry", e.Entity)
	}
	return fmt.Sprintf("%s: duplicate entry (%s)", e.Entity, e.Constraint)
}

// Is makes errors.Is(err, ErrConflict) hold for every ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Unprocessable wraps ErrUnprocessable with a caller-facing message.
func Unprocessable(msg string) error {
	return fmt.Errorf("%w: %s", ErrUnprocessable, msg)
}

// Invalid wraps ErrValidation with a caller-facing message.
func Invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
