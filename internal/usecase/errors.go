package usecase

import (
	"errors"
	"fmt"
	"net/http"

	"lifestory-agent/internal/domain"
)

type ErrorCode string

const (
	ErrorInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrorNotFound        ErrorCode = "NOT_FOUND"
	ErrorForbidden       ErrorCode = "FORBIDDEN"
	ErrorEmptyTranscript ErrorCode = "EMPTY_TRANSCRIPT"
	ErrorRateLimited     ErrorCode = "RATE_LIMITED"
	ErrorUpstream        ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal        ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// IsCode reports whether err carries the given usecase error code.
func IsCode(err error, code ErrorCode) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Code == code
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

// providerFailure classifies a backend error. A 429 from the backend becomes
// RATE_LIMITED, everything else UPSTREAM_ERROR.
func providerFailure(reason string, err error) *Error {
	if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
		return newError(ErrorRateLimited, reason+"_rate_limited", err)
	}
	return newError(ErrorUpstream, reason, err)
}

// storeFailure maps a storage error onto NOT_FOUND or INTERNAL_ERROR.
func storeFailure(reason string, err error) *Error {
	if isNotFound(err) {
		return newError(ErrorNotFound, reason, err)
	}
	return newError(ErrorInternal, reason, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
