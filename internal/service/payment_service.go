package service

import (
	"context"
	"time"

	"idempotency-gateway/internal/core/domain"
	"idempotency-gateway/internal/core/ports"
	"idempotency-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PaymentServiceImpl implements ports.PaymentService. It is the demo
// downstream business logic the mediator wraps; it stands in for whatever
// side-effecting operation a real deployment would protect.
type PaymentServiceImpl struct {
	log zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(log zerolog.Logger) *PaymentServiceImpl {
	return &PaymentServiceImpl{log: log}
}

// CreatePayment processes a payment request and returns the created payment.
func (s *PaymentServiceImpl) CreatePayment(ctx context.Context, req ports.PaymentRequest) (*domain.Payment, error) {
	if req.Amount <= 0 {
		return nil, apperror.Validation("amount must be positive")
	}

	payment := &domain.Payment{
		PaymentID: uuid.New().String(),
		Amount:    req.Amount,
		Currency:  req.Currency,
		Reference: req.Reference,
		Status:    domain.PaymentStatusSuccess,
		CreatedAt: time.Now().UTC(),
	}

	s.log.Info().
		Str("payment_id", payment.PaymentID).
		Int64("amount", payment.Amount).
		Str("currency", payment.Currency).
		Msg("payment processed")

	return payment, nil
}
