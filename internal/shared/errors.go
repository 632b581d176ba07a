package shared

import "errors"

// Sentinel error classes shared by every module. Domain errors wrap one of
// these so the HTTP layer can map them without knowing the module.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates a uniqueness constraint was hit.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrForbidden indicates the actor lacks rights on the target.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates no acting user was supplied.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnavailable indicates a transient backing-store failure; callers may retry.
	ErrUnavailable = errors.New("service unavailable")
)

// UserSafeMessage returns a message that can be shown to end users.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidActor):
		return "Invalid identity headers"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrValidation),
		errors.Is(err, ErrDuplicate), errors.Is(err, ErrForbidden):
		return err.Error()
	case errors.Is(err, ErrUnauthorized):
		return "Authentication required"
	case errors.Is(err, ErrUnavailable):
		return "Service temporarily unavailable, please retry"
	default:
		return "Unexpected error"
	}
}
