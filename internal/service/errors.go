package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure. The set is closed; the HTTP layer maps
// each kind to exactly one status code.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindUnauthenticated   Kind = "unauthenticated"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindInvalidState      Kind = "invalid_state"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Kind    Kind
	Message string
	// Reason refines Unauthenticated: invalid_token or unknown_user.
	Reason string
	Fields []FieldError
	// ConflictID is the id of the existing resource for Conflict.
	ConflictID uint64
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

var (
	ErrMissingToken = &Error{Kind: KindUnauthenticated, Reason: "missing_token", Message: "access token required"}
	ErrInvalidToken = &Error{Kind: KindUnauthenticated, Reason: "invalid_token", Message: "invalid or expired token"}
	ErrUnknownUser  = &Error{Kind: KindUnauthenticated, Reason: "unknown_user", Message: "user no longer exists"}
)

func Validation(msg string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Conflict(msg string, existingID uint64) *Error {
	return &Error{Kind: KindConflict, Message: msg, ConflictID: existingID}
}

func InvalidTransition(msg string) *Error {
	return &Error{Kind: KindInvalidTransition, Message: msg}
}

func InvalidState(msg string) *Error {
	return &Error{Kind: KindInvalidState, Message: msg}
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

// AsError unwraps err into a *Error if it is one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func IsKind(err error, k Kind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == k
}
