package domain

import "time"

// PaymentStatusSuccess is the terminal status of a processed demo payment.
const PaymentStatusSuccess = "SUCCESS"

// Payment is the demo downstream resource created by the wrapped operation.
type Payment struct {
	PaymentID string    `json:"paymentId"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Reference string    `json:"reference"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
