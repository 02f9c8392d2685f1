package knowledge

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for an unknown knowledge point
	ErrNotFound = errors.New("knowledge point not found")
	// ErrPointDeleted is returned when mutating a soft-deleted point
	ErrPointDeleted = errors.New("knowledge point is deleted")
	// ErrDuplicate is returned when an edit or restore would give two active
	// points the same semantic key
	ErrDuplicate = errors.New("an active knowledge point with the same key already exists")
	// ErrQuotaExceeded is returned when today's limit for a category is used up
	ErrQuotaExceeded = errors.New("daily knowledge limit reached")
	// ErrConcurrencyConflict is returned when a point kept changing under a
	// writer for every retry
	ErrConcurrencyConflict = errors.New("knowledge point changed concurrently")
	// ErrPendingNotFound is returned for an unknown or expired pending token
	ErrPendingNotFound = errors.New("pending candidates not found or expired")
)

// ValidationError reports one malformed input field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
