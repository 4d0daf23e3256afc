package checkin

import (
	"errors"

	"github.com/hray3182/lifeline-checkin/internal/persistence"
)

var (
	// ErrInvalidArgument is returned before any I/O for an empty user id, an
	// unparsable schedule time or an inverted date range.
	ErrInvalidArgument = errors.New("checkin: invalid argument")
	// ErrNotFound is returned when the user has no stored state.
	ErrNotFound = errors.New("checkin: user not found")
)

// ErrorKind maps errors to a stable logging label.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return "not_found"
	case errors.Is(err, persistence.ErrTransient):
		return "transient"
	case errors.Is(err, persistence.ErrConflict):
		return "conflict"
	default:
		return "permanent"
	}
}
