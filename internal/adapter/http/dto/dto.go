package dto

import (
	"time"

	"idempotency-gateway/internal/core/ports"
)

// CreatePaymentRequest is the request body for payment creation.
type CreatePaymentRequest struct {
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	Currency  string `json:"currency" binding:"required,len=3"`
	Reference string `json:"reference" binding:"required,max=100,safe_id"`
}

// StatusReportResponse is the response body for idempotency status lookups.
type StatusReportResponse struct {
	Exists             bool   `json:"exists"`
	Key                string `json:"key"`
	Status             string `json:"status"`
	RetryCount         int    `json:"retryCount"`
	MaxRetries         int    `json:"maxRetries"`
	CanRetry           bool   `json:"canRetry"`
	ResponseStatusCode *int   `json:"responseStatusCode,omitempty"`
	CreatedAt          string `json:"createdAt"`
	UpdatedAt          string `json:"updatedAt"`
}

// ToStatusReportResponse converts a mediator status report to its DTO.
func ToStatusReportResponse(r *ports.StatusReport) StatusReportResponse {
	return StatusReportResponse{
		Exists:             r.Exists,
		Key:                r.Key,
		Status:             string(r.Status),
		RetryCount:         r.RetryCount,
		MaxRetries:         r.MaxRetries,
		CanRetry:           r.CanRetry,
		ResponseStatusCode: r.ResponseStatusCode,
		CreatedAt:          r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
