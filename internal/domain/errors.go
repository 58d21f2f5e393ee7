package domain

import "errors"

// ErrNotFound signals a missing record in the store.
var ErrNotFound = errors.New("not found")

// ValidationError reports unusable caller input. The HTTP layer maps it to a
// 400 response with the message as-is, so keep messages user-facing.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationError builds a ValidationError with the given message.
func NewValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}
