package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by adapters, domain services and the HTTP layer.
const (
	CodeInvalidInput    = "invalid_input"
	CodeUnauthorized    = "unauthorized"
	CodeNotFound        = "not_found"
	CodeDuplicateHandle = "duplicate_handle"
	CodeUpstream        = "upstream_error"
	CodeDecode          = "decode_error"
	CodeIO              = "io_error"
)

// AppError encodes domain specific error details.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap produces a new AppError instance.
func Wrap(code, message string, err error) error {
	if err == nil {
		return &AppError{Code: code, Message: message}
	}
	return &AppError{Code: code, Message: message, Err: err}
}

// IsCode helps handler differentiate failures.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost AppError in the chain.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// StatusError keeps the HTTP status and body returned by a remote API.
type StatusError struct {
	Service string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request error: status=%d body=%s", e.Service, e.Status, e.Body)
}

// FromStatus classifies a non-2xx response into an AppError wrapping a StatusError.
func FromStatus(service string, status int, body string) error {
	statusErr := &StatusError{Service: service, Status: status, Body: body}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return Wrap(CodeUnauthorized, service+" rejected credentials", statusErr)
	case http.StatusNotFound:
		return Wrap(CodeNotFound, service+" resource not found", statusErr)
	default:
		return Wrap(CodeUpstream, service+" request failed", statusErr)
	}
}
