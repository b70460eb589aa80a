package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"idempotency-gateway/internal/core/ports"
	"idempotency-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestReply_WritesBodyVerbatim(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	stored := []byte(`{"paymentId":"p-1","amount":100}`)
	Reply(c, &ports.Reply{StatusCode: http.StatusCreated, Body: stored})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, stored, w.Body.Bytes())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Header().Get(HeaderErrorCode))
}

func TestReply_SetsErrorCodeHeader(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Reply(c, &ports.Reply{
		StatusCode: http.StatusAccepted,
		Body:       []byte(`{"error":"PROCESSING"}`),
		ErrorCode:  "PROCESSING",
	})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "PROCESSING", w.Header().Get(HeaderErrorCode))
}

func TestReply_EmptyBody(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Reply(c, &ports.Reply{StatusCode: http.StatusNoContent})
	// Gin defers WriteHeader until a body write or the handler chain ends;
	// with a bare test context we must flush explicitly to observe the status.
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

func TestOK(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	OK(c, map[string]string{"status": "healthy"})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestError_AppError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, apperror.ErrBodyMismatch())

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "BODY_MISMATCH", w.Header().Get(HeaderErrorCode))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "BODY_MISMATCH", resp["error"])
	assert.Equal(t, float64(409), resp["status"])
	assert.NotEmpty(t, resp["message"])
}

func TestError_WrappedAppError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	wrappedErr := fmt.Errorf("outer: %w", apperror.ErrInvalidKey())
	Error(c, wrappedErr)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_KEY", w.Header().Get(HeaderErrorCode))
}

func TestError_UnknownError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, fmt.Errorf("something unexpected"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL_ERROR", resp["error"])
	assert.Equal(t, "Internal server error", resp["message"])
}
