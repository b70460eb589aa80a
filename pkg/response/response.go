package response

import (
	"errors"
	"net/http"

	"idempotency-gateway/internal/core/ports"
	"idempotency-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// HeaderErrorCode carries the mediator error code alongside error envelopes.
const HeaderErrorCode = "X-Error-Code"

// Reply writes a mediator reply. The body bytes are written verbatim so that
// replayed responses are byte-identical to the originally stored ones.
func Reply(c *gin.Context, r *ports.Reply) {
	if r.ErrorCode != "" {
		c.Header(HeaderErrorCode, r.ErrorCode)
	}
	if len(r.Body) == 0 {
		c.Status(r.StatusCode)
		return
	}
	c.Data(r.StatusCode, "application/json", r.Body)
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Error sends an error envelope. It checks if err is an *apperror.AppError
// and maps it accordingly, otherwise returns 500.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.Header(HeaderErrorCode, appErr.Code)
		c.JSON(appErr.HTTPStatus, appErr.Envelope())
		return
	}

	// Unknown error -> 500
	fallback := apperror.InternalError(err)
	c.Header(HeaderErrorCode, fallback.Code)
	c.JSON(http.StatusInternalServerError, fallback.Envelope())
}
