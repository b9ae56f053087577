// Package apperr defines the error kinds shared across the shuffler.
//
// Kinds are attached with errors.Mark so that callers can test them with
// errors.Is regardless of how many times an error has been wrapped. User-facing
// text travels as an error hint.
package apperr

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrSdkUnavailable      = errors.New("provider sdk unavailable")
	ErrConfiguration       = errors.New("configuration error")
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrAuthorizationFailed = errors.New("authorization failed")
	ErrAuthExpired         = errors.New("authorization expired")
	ErrNetwork             = errors.New("network error")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNameConflict        = errors.New("playlist name conflict")
	ErrPublishFailed       = errors.New("publish failed")
	ErrPartialFetchFailure = errors.New("partial fetch failure")
)

var kinds = []error{
	ErrSdkUnavailable,
	ErrConfiguration,
	ErrAuthorizationDenied,
	ErrAuthorizationFailed,
	ErrAuthExpired,
	ErrNetwork,
	ErrInvalidInput,
	ErrNameConflict,
	ErrPublishFailed,
	ErrPartialFetchFailure,
}

// StatusCoder is implemented by transport errors carrying an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// New creates an error of the given kind with a user-facing hint.
func New(kind error, hint string, format string, args ...any) error {
	err := errors.Mark(errors.Newf(format, args...), kind)
	if hint != "" {
		err = errors.WithHint(err, hint)
	}
	return err
}

// Wrap marks err with kind and attaches a user-facing hint.
func Wrap(err error, kind error, hint string) error {
	if err == nil {
		return nil
	}
	err = errors.Mark(err, kind)
	if hint != "" {
		err = errors.WithHint(err, hint)
	}
	return err
}

// Kind returns the kind sentinel err is marked with, or nil.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return 0
}

// IsAuthStatus reports whether status is 401 or 403.
func IsAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// IsAuthError reports whether err represents an expired or rejected session.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	return IsAuthStatus(StatusCode(err)) || errors.Is(err, ErrAuthExpired)
}

// UserMessage returns the hint attached to err, or fallback when there is none.
func UserMessage(err error, fallback string) string {
	hints := errors.GetAllHints(err)
	if len(hints) == 0 {
		return fallback
	}
	return strings.Join(hints, " ")
}
