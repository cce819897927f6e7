package shared

import "errors"

// Error kinds. Domain errors wrap exactly one of these so callers can branch
// on the kind with errors.Is regardless of the specific failure.
var (
	// ErrValidation indicates malformed input rejected before any state change.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates an unknown request or good.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates an invalid state transition or a lost race.
	ErrConflict = errors.New("conflict")
	// ErrPersistence indicates a storage failure; the operation was rolled back and may be retried.
	ErrPersistence = errors.New("persistence failure")
)

// Kind names the error kind of err for API responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "internal"
	}
}

// UserSafeMessage returns err's message unless the error is not one of the known kinds.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	if Kind(err) == "internal" {
		return "internal error"
	}
	return err.Error()
}
