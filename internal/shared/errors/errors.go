package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types.
var (
	ErrNotFound             = errors.New("resource not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrValidation           = errors.New("validation failed")
	ErrConflict             = errors.New("resource conflict")
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrRateLimited          = errors.New("rate limited")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrInternal             = errors.New("internal error")
)

// AppError represents an application error with HTTP status and error code.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// ErrorResponse represents the JSON error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NotFound creates a not found error.
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
		Err:        ErrNotFound,
	}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return &AppError{
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		Err:        ErrUnauthorized,
	}
}

// Forbidden creates a forbidden error.
func Forbidden(message string) *AppError {
	if message == "" {
		message = "access denied"
	}
	return &AppError{
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
		Err:        ErrForbidden,
	}
}

// Validation creates a validation error.
func Validation(message string) *AppError {
	return &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Err:        ErrValidation,
	}
}

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...any) *AppError {
	return Validation(fmt.Sprintf(format, args...))
}

// Conflict creates a conflict error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
		Err:        ErrConflict,
	}
}

// TransportUnavailable creates a transport error for a session that can no longer accept messages.
func TransportUnavailable(sessionID string) *AppError {
	return &AppError{
		Code:       "TRANSPORT_UNAVAILABLE",
		Message:    fmt.Sprintf("session %s cannot accept messages", sessionID),
		StatusCode: http.StatusServiceUnavailable,
		Err:        ErrTransportUnavailable,
	}
}

// RateLimited creates a rate limited error.
func RateLimited(message string) *AppError {
	if message == "" {
		message = "too many requests"
	}
	return &AppError{
		Code:       "RATE_LIMITED",
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
		Err:        ErrRateLimited,
	}
}

// StoreUnavailable creates an error for a backing store that rejected the call outright.
func StoreUnavailable(err error) *AppError {
	return &AppError{
		Code:       "STORE_UNAVAILABLE",
		Message:    "store temporarily unavailable",
		StatusCode: http.StatusServiceUnavailable,
		Err:        errors.Join(ErrStoreUnavailable, err),
	}
}

// Internal creates an internal error.
func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToResponse converts an AppError to ErrorResponse.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetail{
			Code:    e.Code,
			Message: e.Message,
		},
	}
}

// GetStatusCode returns the appropriate HTTP status code for an error.
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrTransportUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ToAppError converts any error to an AppError, preserving the taxonomy of known sentinels.
func ToAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return &AppError{Code: "NOT_FOUND", Message: err.Error(), StatusCode: http.StatusNotFound, Err: err}
	case errors.Is(err, ErrUnauthorized):
		return &AppError{Code: "UNAUTHORIZED", Message: err.Error(), StatusCode: http.StatusUnauthorized, Err: err}
	case errors.Is(err, ErrForbidden):
		return &AppError{Code: "FORBIDDEN", Message: err.Error(), StatusCode: http.StatusForbidden, Err: err}
	case errors.Is(err, ErrValidation):
		return &AppError{Code: "VALIDATION_FAILED", Message: err.Error(), StatusCode: http.StatusUnprocessableEntity, Err: err}
	case errors.Is(err, ErrConflict):
		return &AppError{Code: "CONFLICT", Message: err.Error(), StatusCode: http.StatusConflict, Err: err}
	default:
		return Internal("internal server error", err)
	}
}

// RetryOnConflict runs fn and, if it fails with ErrConflict, runs it exactly once more.
// A second conflict is returned to the caller unchanged.
func RetryOnConflict(fn func() error) error {
	err := fn()
	if err == nil || !errors.Is(err, ErrConflict) {
		return err
	}
	return fn()
}
