package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrTransient marks timeouts, unavailability and network failures that
	// are worth retrying.
	ErrTransient = errors.New("persistence: transient failure")
	// ErrConflict is returned when a transaction kept losing write conflicts
	// after the store's own retries.
	ErrConflict = errors.New("persistence: write conflict")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
