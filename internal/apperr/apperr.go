// Package apperr carries the error taxonomy shared by services and handlers.
// Every error a handler can turn into an HTTP status is an *Error.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuth
	KindConfig
	KindUpstream
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindConfig:
		return "config"
	case KindUpstream:
		return "upstream"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind
	Status  int
	Message string
	// Details is passed to the client verbatim, e.g. the gateway's error body.
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: message}
}

// Auth builds a credential failure. Status is 401 or 403 depending on the endpoint.
func Auth(status int, message string) *Error {
	return &Error{Kind: KindAuth, Status: status, Message: message}
}

func Config(message string) *Error {
	return &Error{Kind: KindConfig, Status: http.StatusInternalServerError, Message: message}
}

func Upstream(status int, message string, err error) *Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &Error{Kind: KindUpstream, Status: status, Message: message, Err: err}
}

// Internal wraps a database or unexpected failure. The message is the error text.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
}

func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// Status reports the HTTP status for err, 500 when err is not an *Error.
func Status(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
