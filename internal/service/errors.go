package service

import (
	"errors"
	"fmt"
	"net/http"

	"teamboard/internal/repository"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindUnavailable
	KindUnsupported
	KindUnprocessable
)

// HTTPStatus maps a kind onto its response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindUnsupported:
		return http.StatusUnsupportedMediaType
	case KindUnprocessable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is returned by every service operation that fails for a reason the
// caller should see. Message is safe to show; Err is the cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(msg string) *Error   { return &Error{Kind: KindNotFound, Message: msg} }
func BadRequest(msg string) *Error { return &Error{Kind: KindBadRequest, Message: msg} }

func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }

func Unavailable(msg string, err error) *Error {
	return &Error{Kind: KindUnavailable, Message: msg, Err: err}
}

func Unsupported(msg string, err error) *Error {
	return &Error{Kind: KindUnsupported, Message: msg, Err: err}
}

func Unprocessable(msg string, err error) *Error {
	return &Error{Kind: KindUnprocessable, Message: msg, Err: err}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf extracts the kind of err; plain errors are internal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// storeErr converts a repository error, turning not-found into a NotFound
// with the given message.
func storeErr(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return &Error{Kind: KindNotFound, Message: notFoundMsg, Err: err}
	}
	return Internal("Server Error", err)
}
