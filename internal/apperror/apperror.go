// Package apperror defines the error taxonomy shared by the service and HTTP
// layers. Each error carries the HTTP status it is reported with.
package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an error.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindForbidden  Kind = "forbidden"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindUnexpected Kind = "unexpected"
)

// Error is a classified, user-presentable error.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with an explicit kind and status.
func New(kind Kind, status int, msg string) *Error {
	return &Error{Kind: kind, Status: status, Message: msg}
}

// Validation reports malformed or missing input (400).
func Validation(msg string) *Error {
	return New(KindValidation, http.StatusBadRequest, msg)
}

// Auth reports a credential problem. Status is 401 for bad credentials and
// 500 for provider misconfiguration.
func Auth(status int, msg string) *Error {
	return New(KindAuth, status, msg)
}

// Forbidden reports an authenticated caller acting outside its rights (403).
func Forbidden(msg string) *Error {
	return New(KindForbidden, http.StatusForbidden, msg)
}

// NotFound reports a referenced entity that does not exist (404).
func NotFound(msg string) *Error {
	return New(KindNotFound, http.StatusNotFound, msg)
}

// Conflict reports a state machine violation or uniqueness race (409).
func Conflict(msg string) *Error {
	return New(KindConflict, http.StatusConflict, msg)
}

// Unexpected wraps an unhandled storage or transport failure (500).
func Unexpected(err error) *Error {
	return &Error{Kind: KindUnexpected, Status: http.StatusInternalServerError, Message: "internal server error", Err: err}
}

// As extracts an *Error from err. Unclassified errors become Unexpected.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Unexpected(err)
}

// StatusOf returns the HTTP status err should be reported with.
func StatusOf(err error) int {
	return As(err).Status
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
