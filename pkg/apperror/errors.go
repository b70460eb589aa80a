package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses. Details are
// merged into the serialized error envelope alongside error/message/status.
type AppError struct {
	Code       string                 `json:"error"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"status"`
	Details    map[string]interface{} `json:"-"`
	Err        error                  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Envelope returns the wire form of the error:
// {"error": code, "message": msg, "status": n, ...details}.
func (e *AppError) Envelope() map[string]interface{} {
	env := map[string]interface{}{
		"error":   e.Code,
		"message": e.Message,
		"status":  e.HTTPStatus,
	}
	for k, v := range e.Details {
		env[k] = v
	}
	return env
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// WithDetails attaches envelope details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// ---- Input errors (rejected before any state change) ----

func ErrInvalidKey() *AppError {
	return New("INVALID_KEY", "Idempotency-Key header is required and must be at most 100 characters", http.StatusBadRequest)
}

func ErrBodyMismatch() *AppError {
	return New("BODY_MISMATCH", "Request body differs from original request with this idempotency key", http.StatusConflict)
}

// ---- Flow-control errors (derived from record state) ----

func ErrProcessing() *AppError {
	return New("PROCESSING", "Request is currently being processed. Please wait.", http.StatusAccepted)
}

func ErrAlreadySucceeded(details map[string]interface{}) *AppError {
	return New("ALREADY_SUCCEEDED", "Operation already completed successfully and its replay budget is exhausted", http.StatusTooManyRequests).WithDetails(details)
}

func ErrMaxRetriesExceeded(details map[string]interface{}) *AppError {
	return New("MAX_RETRIES_EXCEEDED", "Maximum retry attempts exceeded", http.StatusTooManyRequests).WithDetails(details)
}

// ---- Operation errors ----

func ErrOperationFailed(message string, details map[string]interface{}) *AppError {
	return New("OPERATION_FAILED", message, http.StatusInternalServerError).WithDetails(details)
}

// ---- Validation & system ----

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("VALIDATION_ERROR", message, http.StatusBadRequest)
}

// ErrRateLimitExceeded signals a caller exceeded its request budget.
func ErrRateLimitExceeded() *AppError {
	return New("RATE_LIMIT_EXCEEDED", "Rate limit exceeded", http.StatusTooManyRequests)
}

// InternalError wraps a store or infrastructure failure.
func InternalError(err error) *AppError {
	return Wrap("INTERNAL_ERROR", "Internal server error", http.StatusInternalServerError, err)
}
