package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("BODY_MISMATCH", "Body differs", http.StatusConflict),
			expected: "[BODY_MISMATCH] Body differs",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("INTERNAL_ERROR", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[INTERNAL_ERROR] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("INTERNAL_ERROR", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("INVALID_KEY", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestMediatorErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidKey", ErrInvalidKey(), "INVALID_KEY", 400},
		{"BodyMismatch", ErrBodyMismatch(), "BODY_MISMATCH", 409},
		{"Processing", ErrProcessing(), "PROCESSING", 202},
		{"AlreadySucceeded", ErrAlreadySucceeded(nil), "ALREADY_SUCCEEDED", 429},
		{"MaxRetriesExceeded", ErrMaxRetriesExceeded(nil), "MAX_RETRIES_EXCEEDED", 429},
		{"OperationFailed", ErrOperationFailed("failed", nil), "OPERATION_FAILED", 500},
		{"Validation", Validation("bad input"), "VALIDATION_ERROR", 400},
		{"RateLimitExceeded", ErrRateLimitExceeded(), "RATE_LIMIT_EXCEEDED", 429},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestEnvelope_MergesDetails(t *testing.T) {
	err := ErrMaxRetriesExceeded(map[string]interface{}{
		"retryCount": 3,
		"maxRetries": 3,
	})

	env := err.Envelope()
	assert.Equal(t, "MAX_RETRIES_EXCEEDED", env["error"])
	assert.Equal(t, "Maximum retry attempts exceeded", env["message"])
	assert.Equal(t, 429, env["status"])
	assert.Equal(t, 3, env["retryCount"])
	assert.Equal(t, 3, env["maxRetries"])
}

func TestEnvelope_DetailsCannotShadowCode(t *testing.T) {
	// The "cause" key is used for the underlying failure so envelope fields
	// keep their meaning even when details are attached.
	err := ErrOperationFailed("failed", map[string]interface{}{
		"cause": "downstream timeout",
	})

	env := err.Envelope()
	assert.Equal(t, "OPERATION_FAILED", env["error"])
	assert.Equal(t, "downstream timeout", env["cause"])
}

func TestInternalError(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	err := InternalError(inner)
	assert.Equal(t, "INTERNAL_ERROR", err.Code)
	assert.Equal(t, 500, err.HTTPStatus)
	assert.True(t, errors.Is(err, inner))
}
