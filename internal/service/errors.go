// Package service provides business logic for the application.
package service

import (
	"errors"
	"fmt"
)

// Error categories. Handlers map these to HTTP status codes with errors.Is.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")
)

// Specific service errors.
var (
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrItemNotFound       = fmt.Errorf("item %w", ErrNotFound)
	ErrUserExists         = fmt.Errorf("%w: user already exists", ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Msg
}

// Unwrap makes errors.Is(err, ErrBadRequest) true.
func (e *ValidationError) Unwrap() error {
	return ErrBadRequest
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// internalError wraps a dependency failure so both ErrInternal and the
// cause stay visible to errors.Is.
func internalError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}
