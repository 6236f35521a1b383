package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by every layer of the checkout engine.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternal         = errors.New("internal error")
	ErrConflict         = errors.New("conflict")
	ErrPrecondition     = errors.New("precondition failed")
	ErrSubmissionFailed = errors.New("order submission failed")
	ErrServiceUnavail   = errors.New("service unavailable")
)

// AppError is a structured application error carrying an HTTP status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// PreconditionFailed creates a 412 error for a blocking, non-field condition
// such as an empty cart or unaccepted terms. The message is meant to be shown
// to the user as-is.
func PreconditionFailed(message string) *AppError {
	return &AppError{
		Code:    "PRECONDITION_FAILED",
		Message: message,
		Status:  http.StatusPreconditionFailed,
		Err:     ErrPrecondition,
	}
}

// SubmissionFailed creates a retryable 503 error for a failed order submission.
func SubmissionFailed(message string, cause error) *AppError {
	err := ErrSubmissionFailed
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrSubmissionFailed, cause)
	}
	return &AppError{
		Code:    "SUBMISSION_FAILED",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

// ServiceUnavailable creates a 503 error for an unreachable dependency.
func ServiceUnavailable(message string) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     ErrServiceUnavail,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// IsRetryable reports whether the caller may retry the same request unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSubmissionFailed) || errors.Is(err, ErrServiceUnavail)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrPrecondition):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrSubmissionFailed), errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
