package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"idempotency-gateway/internal/adapter/http/dto"
	"idempotency-gateway/internal/core/domain"
	"idempotency-gateway/internal/core/ports"
	"idempotency-gateway/pkg/apperror"
	"idempotency-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// HeaderIdempotencyKey names the header clients use to identify a logical
// operation across retries.
const HeaderIdempotencyKey = "Idempotency-Key"

// PaymentHandler handles payment endpoints. It is the thin facade in front
// of the mediator: it parses the key header and body, wraps the downstream
// operation in a closure, and writes back whatever the mediator returns.
type PaymentHandler struct {
	mediator   ports.Mediator
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(mediator ports.Mediator, paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{mediator: mediator, paymentSvc: paymentSvc}
}

// CreatePayment handles POST /api/v1/payments.
// The optional simulateFailure query parameter forces the wrapped operation
// to fail, for demoing the retry path.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	key := c.GetHeader(HeaderIdempotencyKey)
	if !domain.ValidKey(key) {
		response.Error(c, apperror.ErrInvalidKey())
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	// The fingerprint is computed over the decoded body, not the raw bytes,
	// so the same payload with reordered fields hashes identically.
	var body interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			response.Error(c, apperror.Validation("request body must be valid JSON"))
			return
		}
	}

	var req dto.CreatePaymentRequest
	if err := binding.JSON.BindBody(raw, &req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	simulateFailure := c.Query("simulateFailure") == "true"

	op := func(ctx context.Context) (*ports.OpResult, error) {
		if simulateFailure {
			return nil, errors.New("simulated payment failure")
		}
		payment, err := h.paymentSvc.CreatePayment(ctx, ports.PaymentRequest{
			Amount:    req.Amount,
			Currency:  req.Currency,
			Reference: req.Reference,
		})
		if err != nil {
			return nil, err
		}
		return &ports.OpResult{StatusCode: http.StatusCreated, Body: payment}, nil
	}

	reply, err := h.mediator.Handle(c.Request.Context(), key, body, op)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Reply(c, reply)
}

// GetStatus handles GET /api/v1/payments/status/:key.
func (h *PaymentHandler) GetStatus(c *gin.Context) {
	key := c.Param("key")
	if !domain.ValidKey(key) {
		response.Error(c, apperror.ErrInvalidKey())
		return
	}

	report, err := h.mediator.Status(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !report.Exists {
		response.OK(c, gin.H{
			"exists":  false,
			"key":     key,
			"message": "no record found for this idempotency key",
		})
		return
	}
	response.OK(c, dto.ToStatusReportResponse(report))
}
