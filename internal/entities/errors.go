package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable is returned when a store has no open connection,
	// either because its file is missing or because a repoint failed.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrBusy is returned when a repoint and a reconciliation pass would overlap.
	ErrBusy = errors.New("store busy")

	ErrNotFound = errors.New("not found")

	// ErrPartialWrite means the catalog committed but a later step did not. A
	// reconciliation pass repairs the remaining stores.
	ErrPartialWrite = errors.New("partial write")
)

// ValidationError rejects input before any store is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
