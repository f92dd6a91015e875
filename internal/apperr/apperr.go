// Package apperr defines the error codes shared by the studio front-ends.
//
// Every failure that reaches a user is one of a small set of kinds:
// invalid input, an external (generative API) failure, a composite failure,
// an unparseable AI response, a timeout, or a missing resource. Front-ends
// map the code to an HTTP status or a chat reply and show UserMessage.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeExternal     Code = "EXTERNAL"
	CodeComposite    Code = "COMPOSITE"
	CodeParse        Code = "PARSE"
	CodeTimeout      Code = "TIMEOUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeInternal     Code = "INTERNAL"
)

// ParseMessage is the only message surfaced for unparseable structured
// responses. The raw payload is logged, never shown.
const ParseMessage = "could not parse AI response"

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether any *Error in err's chain carries code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the first *Error in the chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a message safe to show to a user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "something went wrong, please try again"
	}
	switch e.Code {
	case CodeParse:
		return ParseMessage
	case CodeTimeout:
		return e.Message + " (timed out, please retry)"
	case CodeInternal:
		return "something went wrong, please try again"
	}
	return e.Message
}

// HTTPStatus maps an error to the response status used by the web API.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeExternal, CodeParse:
		return http.StatusBadGateway
	case CodeComposite:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
