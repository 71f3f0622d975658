// Package domainerrors defines the coded error model used across service
// boundaries. Services return these errors; the HTTP layer maps codes to
// status codes and a JSON envelope. Infrastructure facts (row missing, key
// conflict) are sentinel errors in pkg/platform/sentinel and get translated
// into coded errors at the service layer.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	CodeInvalidInput       Code = "invalid_input"
	CodeBadRequest         Code = "bad_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInvalidTransition  Code = "invalid_transition"
	CodeDeadlineExceeded   Code = "deadline_exceeded"
	CodeUnavailable        Code = "unavailable"
	CodeInternal           Code = "internal"
)

// Error is a coded domain error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with a human-readable message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause stays
// reachable through errors.Is/errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	for errors.As(err, &domainErr) {
		if domainErr.Code == code {
			return true
		}
		err = domainErr.cause
		domainErr = nil
	}
	return false
}

// CodeOf returns the outermost code carried by err, or CodeInternal when err
// is not a domain error.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status the transport layer should emit.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidTransition, CodeInvariantViolation:
		return http.StatusConflict
	case CodeDeadlineExceeded:
		return http.StatusUnprocessableEntity
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
