// Package apperr defines the error taxonomy shared by the commenting core.
package apperr

import (
	"fmt"
	"net/http"
)

const (
	CodeNotFound           = "NOT_FOUND"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeValidation         = "VALIDATION_ERROR"
	CodeStorage            = "STORAGE_FAILURE"
)

// Sentinels for errors.Is; they match any *Error carrying the same code.
var (
	ErrNotFound           = &Error{Code: CodeNotFound}
	ErrServiceUnavailable = &Error{Code: CodeServiceUnavailable}
	ErrValidation         = &Error{Code: CodeValidation}
	ErrStorage            = &Error{Code: CodeStorage}
)

type Error struct {
	Status  int
	Code    string
	Op      string
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func NotFound(op, message string, details any) *Error {
	return newError(http.StatusNotFound, CodeNotFound, op, message, details)
}

func ServiceUnavailable(op, message string, details any) *Error {
	return newError(http.StatusServiceUnavailable, CodeServiceUnavailable, op, message, details)
}

func Validation(op, message string, details any) *Error {
	return newError(http.StatusUnprocessableEntity, CodeValidation, op, message, details)
}

// Storage wraps a persistence failure; err is kept for errors.Is/As.
func Storage(op, message string, err error) *Error {
	e := newError(http.StatusInternalServerError, CodeStorage, op, message, nil)
	e.Err = err
	return e
}

func newError(status int, code, op, message string, details any) *Error {
	return &Error{
		Status:  status,
		Code:    code,
		Op:      op,
		Message: message,
		Details: details,
	}
}
