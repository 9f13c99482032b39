package app

import "errors"

var (
	// ErrNotFound means the resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the resource belongs to another user.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized means credentials did not check out.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict means a uniqueness constraint was violated.
	ErrConflict = errors.New("conflict")
	// ErrUpstream means the generative API call failed.
	ErrUpstream = errors.New("upstream model error")
)

// ValidationError carries a user-facing message for a 400 response.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Invalid builds a validation error with the given message.
func Invalid(msg string) error {
	return &ValidationError{msg: msg}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
