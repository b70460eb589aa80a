package domain

import (
	"errors"
	"time"
)

// RecordStatus is the lifecycle state of an idempotency record.
type RecordStatus string

const (
	StatusProcessing RecordStatus = "PROCESSING"
	StatusSuccess    RecordStatus = "SUCCESS"
	StatusFailed     RecordStatus = "FAILED"
)

// MaxKeyLength is the longest accepted idempotency key.
const MaxKeyLength = 100

// ErrDuplicateKey is returned by the record store when an insert loses the
// race against another committed transaction creating the same key.
var ErrDuplicateKey = errors.New("idempotency key already exists")

// Record tracks one idempotency key's lifecycle. A record is created on the
// first request bearing an unseen key and is never deleted; expiry is an
// external concern.
type Record struct {
	ID                 int64        `json:"id"`
	Key                string       `json:"key"`
	RequestHash        string       `json:"request_hash"` // SHA-256 hex of the canonical request body
	Status             RecordStatus `json:"status"`
	RetryCount         int          `json:"retry_count"`
	ResponseStatusCode *int         `json:"response_status_code,omitempty"` // nil while PROCESSING
	ResponseBody       []byte       `json:"response_body,omitempty"`        // nil while PROCESSING
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// NewRecord builds a fresh PROCESSING record for a first-time key.
func NewRecord(key, requestHash string) *Record {
	now := time.Now().UTC()
	return &Record{
		Key:         key,
		RequestHash: requestHash,
		Status:      StatusProcessing,
		RetryCount:  0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ValidKey reports whether key is a usable idempotency key.
func ValidKey(key string) bool {
	return key != "" && len(key) <= MaxKeyLength
}

// CanRetry reports whether a failed operation may be attempted again
// under the given retry budget.
func (r *Record) CanRetry(maxRetries int) bool {
	return r.Status == StatusFailed && r.RetryCount < maxRetries
}

// IsFinal reports whether the record carries a stored response.
func (r *Record) IsFinal() bool {
	return r.Status == StatusSuccess || r.Status == StatusFailed
}
