package service

import "errors"

// Error kinds of the booking core. Service errors wrap one of these with
// context; callers match them with errors.Is.
var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
	ErrFull     = errors.New("slot is full")
	ErrConflict = errors.New("conflicting booking")
)

// ErrorKind returns a stable label for err, used in metrics and API bodies.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalid):
		return "invalid"
	case errors.Is(err, ErrFull):
		return "full"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
