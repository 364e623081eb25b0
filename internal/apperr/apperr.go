// Package apperr classifies failures so handlers can decide between a flash
// message and a generic error page.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	// KindValidation is a user input problem, recovered with a message.
	KindValidation
	// KindRateLimited is a login rejected by the attempt limiter.
	KindRateLimited
	// KindStore is an unreachable or failing backing store.
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindStore:
		return "store"
	default:
		return "internal"
	}
}

var (
	ErrInvalidCredentials     = errors.New("invalid student code or password")
	ErrRateLimited            = errors.New("too many failed login attempts")
	ErrCurrentPasswordInvalid = errors.New("current password invalid")
	ErrPasswordTooShort       = errors.New("password too short")
	ErrPasswordMismatch       = errors.New("new passwords do not match")
	ErrPasswordTooLong        = errors.New("password too long")

	// Login failure reasons. They are wrapped by ErrInvalidCredentials and
	// only ever reach the logs.
	ErrNoSuchStudent = errors.New("no such student")
	ErrNoPassword    = errors.New("no password configured")
	ErrWrongPassword = errors.New("wrong credentials")
	ErrMissingFields = errors.New("missing student code or password")
)

// Error carries a Kind and a user-facing Message alongside the cause.
type Error struct {
	Kind    Kind
	Err     error
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Err: err, Message: message}
}

func Validation(err error, message string) *Error {
	return New(KindValidation, err, message)
}

// Store wraps a backing store failure. The message is for logs only.
func Store(err error, op string) *Error {
	return New(KindStore, err, op)
}

// KindOf reports the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// UserMessage returns the message safe to show to the user.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindStore && e.Kind != KindInternal {
		return e.Message
	}
	return "Ha ocurrido un error. Intenta nuevamente."
}
