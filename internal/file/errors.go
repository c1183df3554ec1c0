package file

import "errors"

// ErrNotFound is returned when a record does not exist or is hidden by the
// soft-delete filter.
var ErrNotFound = errors.New("file not found")

// ValidationError rejects bad input: a missing required field or an oversized
// upload. It surfaces to the caller as a rejected request, never a 500.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
