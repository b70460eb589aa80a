package ports

import (
	"context"
	"time"

	"idempotency-gateway/internal/core/domain"
)

// Operation is the wrapped downstream business operation. It is executed at
// most once per attempt and must not assume it holds any database lock.
type Operation func(ctx context.Context) (*OpResult, error)

// OpResult is the (status, body) pair produced by a successful operation.
type OpResult struct {
	StatusCode int
	Body       interface{}
}

// Reply is the response the HTTP adapter should send. Body holds the exact
// bytes to write; replays of a stored response are byte-identical.
type Reply struct {
	StatusCode int
	Body       []byte
	ErrorCode  string // set for mediator-produced error envelopes (X-Error-Code header)
}

// StatusReport is a pure projection of a record's state.
type StatusReport struct {
	Exists             bool
	Key                string
	Status             domain.RecordStatus
	RetryCount         int
	MaxRetries         int
	CanRetry           bool
	ResponseStatusCode *int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Mediator guarantees at-most-once execution of an operation per idempotency
// key, with bounded retry of failed attempts and replay of stored responses.
type Mediator interface {
	Handle(ctx context.Context, key string, body interface{}, op Operation) (*Reply, error)
	Status(ctx context.Context, key string) (*StatusReport, error)
}

// ReplayCache is a best-effort fast path for replaying stored SUCCESS
// responses without touching the database.
type ReplayCache interface {
	Get(ctx context.Context, key string) (*CachedReply, error) // nil, nil on miss
	Set(ctx context.Context, key string, reply *CachedReply, ttl time.Duration) error
}

// CachedReply is the cached form of a stored response. RequestHash is kept so
// the fast path can still reject a reused key with a divergent body.
type CachedReply struct {
	RequestHash string `json:"request_hash"`
	StatusCode  int    `json:"status_code"`
	Body        []byte `json:"body"`
}

// PaymentService is the demo downstream business logic wrapped by the mediator.
type PaymentService interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (*domain.Payment, error)
}

// PaymentRequest holds validated input for payment creation.
type PaymentRequest struct {
	Amount    int64
	Currency  string
	Reference string
}
