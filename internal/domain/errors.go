package domain

import (
	"errors"
	"fmt"
)

// Error kinds shared by services and the HTTP layer. Handlers map them to status codes.
var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateTitle     = errors.New("duplicate project title")
	ErrDuplicateEmail     = errors.New("duplicate member email")
	ErrReferenceNotFound  = errors.New("referenced member not found")
	ErrInvalidIdentifier  = errors.New("invalid identifier")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthenticated    = errors.New("authentication failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrStoreUnavailable   = errors.New("store unavailable")
)

// Error carries a client-facing message alongside one of the kinds above.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NewError builds an *Error of the given kind with a formatted message.
func NewError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// StoreFailure wraps a backend failure as ErrStoreUnavailable, keeping the cause for logs.
func StoreFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

// Message returns the client-facing text of err, or fallback when err carries none.
func Message(err error, fallback string) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return fallback
}
