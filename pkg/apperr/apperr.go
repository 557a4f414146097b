package apperr

import (
	"fmt"
	"net/http"
)

// Error is a typed domain error carrying an HTTP-equivalent status and a
// stable machine-readable code alongside the human message.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

func NotFound(message string) *Error {
	return New("NOT_FOUND", http.StatusNotFound, message)
}

func Validation(message string) *Error {
	return New("VALIDATION", http.StatusBadRequest, message)
}

func Conflict(message string) *Error {
	return New("CONFLICT", http.StatusConflict, message)
}

// Policy marks a request that is well-formed but rejected by tenant policy,
// e.g. cancelling inside the minimum-notice window.
func Policy(message string) *Error {
	return New("POLICY_VIOLATION", http.StatusBadRequest, message)
}

var (
	ErrNotFound     = NotFound("resource not found")
	ErrConflict     = Conflict("conflict")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
)
