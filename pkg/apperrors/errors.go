package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrPermissionDenied = errors.New("permission denied")
	ErrLocked           = errors.New("record is locked")
	ErrValidation       = errors.New("validation failed")

	// ErrConsistency marks invariant violations that should be impossible
	// by construction (a sign-off flag without its signer/timestamp pair,
	// a document with no resolvable engagement). Operations reject with
	// this error instead of persisting corrupt state.
	ErrConsistency = errors.New("consistency violation")
)

// ValidationError carries enough detail for the caller to self-correct:
// which rows of a batch were rejected and which identifiers collided.
type ValidationError struct {
	Message    string
	RowNumbers []int    // 1-based offending row numbers, if row-scoped
	Duplicates []string // offending identifiers, if a uniqueness check failed
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.RowNumbers) > 0 {
		b.WriteString(fmt.Sprintf(" (rows %v)", e.RowNumbers))
	}
	if len(e.Duplicates) > 0 {
		b.WriteString(fmt.Sprintf(" (identifiers %v)", e.Duplicates))
	}
	return b.String()
}

// Is makes errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError with a plain message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
