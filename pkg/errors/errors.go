package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidSyntax    = errors.New("invalid query syntax")
	ErrQueryTooComplex  = errors.New("query too complex")
	ErrStoreUnavailable = errors.New("corpus store unavailable")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Syntaxf reports a malformed query.
func Syntaxf(format string, args ...any) *AppError {
	return Newf(ErrInvalidSyntax, http.StatusBadRequest, format, args...)
}

// TooComplexf reports a query whose expansion exceeds the configured limits.
func TooComplexf(format string, args ...any) *AppError {
	return Newf(ErrQueryTooComplex, http.StatusUnprocessableEntity, format, args...)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidSyntax):
		return http.StatusBadRequest
	case errors.Is(err, ErrQueryTooComplex):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that is safe to show a caller. Internal
// failures never leak their cause.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	switch HTTPStatusCode(err) {
	case http.StatusServiceUnavailable:
		return "search temporarily unavailable"
	case http.StatusInternalServerError:
		return "search failed"
	default:
		return err.Error()
	}
}

// Reason returns a short machine-readable label for err, used as a metric
// label and analytics field.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidSyntax):
		return "invalid_syntax"
	case errors.Is(err, ErrQueryTooComplex):
		return "too_complex"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "internal"
	}
}
