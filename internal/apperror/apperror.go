// Package apperror defines the error kinds shared by every domain package and
// their mapping to HTTP status codes.
package apperror

import (
	"errors"
	"net/http"
)

// Kind sentinels. Domain errors match one of these through errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrInternal     = errors.New("internal error")
)

// kindError is a message bound to a kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string        { return e.msg }
func (e *kindError) Is(target error) bool { return target == e.kind }

func Validation(msg string) error   { return &kindError{kind: ErrValidation, msg: msg} }
func Unauthorized(msg string) error { return &kindError{kind: ErrUnauthorized, msg: msg} }
func Forbidden(msg string) error    { return &kindError{kind: ErrForbidden, msg: msg} }
func NotFound(msg string) error     { return &kindError{kind: ErrNotFound, msg: msg} }
func Internal(msg string) error     { return &kindError{kind: ErrInternal, msg: msg} }

// HTTPStatus maps err to the status code of its kind. Unclassified errors are 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether err carries a kind the caller can act on.
func IsClientError(err error) bool {
	return HTTPStatus(err) < http.StatusInternalServerError
}
