// Package apperror defines the error-kind taxonomy of the job pipeline:
// BadRequest, NotFound, Internal, Storage, Download, Processing, Timeout.
// Ported from original_source/src/error.rs (AppError/ResponseError), which
// this package's Error/StatusCode/ErrorType split mirrors directly.
package apperror

import (
	"fmt"
	"net/http"
)

// Kind is one of the seven error kinds spec.md §7 names.
type Kind string

const (
	BadRequest Kind = "bad_request"
	NotFound   Kind = "not_found"
	Internal   Kind = "internal_error"
	Storage    Kind = "storage_error"
	Download   Kind = "download_error"
	Processing Kind = "processing_error"
	Timeout    Kind = "timeout_error"
)

// Error is the single error type every package in ingestd returns across
// package boundaries once the error escapes a low-level wrapper (os/exec,
// database/sql, etc).
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// StatusCode maps a Kind to the HTTP status spec.md §7 assigns it.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case BadRequest, Download:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Timeout:
		return http.StatusRequestTimeout
	case Internal, Storage, Processing:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// As extracts an *Error from err, or returns (nil, false) if err is not one.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}

// Reportable reports whether an error kind represents an unexpected
// failure worth sending to Sentry, as opposed to an expected client-facing
// condition (BadRequest/NotFound) or an already-handled stage failure.
func (e *Error) Reportable() bool {
	switch e.Kind {
	case Internal, Storage:
		return true
	default:
		return false
	}
}
