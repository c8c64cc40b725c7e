package service

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies an AppError for callers that translate service
// failures into transport responses.
type ErrorKind int

const (
	// KindBadRequest means caller-supplied input failed a precondition.
	KindBadRequest ErrorKind = iota + 1
	// KindNotFound means the referenced user does not exist.
	KindNotFound
	// KindServerError means stored state was inconsistent or a collaborator failed.
	KindServerError
)

// String returns the kind's name.
func (k ErrorKind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// StatusCode returns the HTTP status associated with the kind.
func (k ErrorKind) StatusCode() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Public messages shown to end users.
const (
	MsgTokenInvalid      = "Token is invalid."
	MsgPasswordsMismatch = "Passwords do not match."
	MsgUserNotFound      = "User not found."
	MsgServerError       = "Something went wrong. Please try again later."
)

// AppError is the only error type returned by AccountService.
// Message is diagnostic and may be logged; PublicMessage is safe to show to
// end users.
type AppError struct {
	Kind          ErrorKind
	Message       string
	PublicMessage string
	Err           error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrBadRequest  = &AppError{Kind: KindBadRequest}
	ErrNotFound    = &AppError{Kind: KindNotFound}
	ErrServerError = &AppError{Kind: KindServerError}
)

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError of the same kind when that target carries no
// message, which is how the ErrBadRequest/ErrNotFound/ErrServerError
// sentinels are defined.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Message == "" {
		return t.Kind == e.Kind
	}
	return t == e
}

// StatusCode returns the HTTP status for the error's kind.
func (e *AppError) StatusCode() int {
	return e.Kind.StatusCode()
}

func newBadRequest(message, public string, err error) *AppError {
	return &AppError{Kind: KindBadRequest, Message: message, PublicMessage: public, Err: err}
}

func newNotFound(message string, err error) *AppError {
	return &AppError{Kind: KindNotFound, Message: message, PublicMessage: MsgUserNotFound, Err: err}
}

func newServerError(message string, err error) *AppError {
	return &AppError{Kind: KindServerError, Message: message, PublicMessage: MsgServerError, Err: err}
}

// asAppError returns err unchanged when it already is an AppError and
// otherwise wraps it as a server error.
func asAppError(err error, message string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return newServerError(message, err)
}
