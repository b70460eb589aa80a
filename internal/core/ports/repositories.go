package ports

import (
	"context"

	"idempotency-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// RecordRepository defines persistence operations for idempotency records.
// Methods accepting pgx.Tx run inside transaction blocks; FindForUpdate takes
// a row-level exclusive lock held until the transaction commits or rolls back.
type RecordRepository interface {
	// Find performs a snapshot read. Returns nil, nil when the key is unknown.
	Find(ctx context.Context, key string) (*domain.Record, error)
	// FindForUpdate reads the record under a row-level exclusive lock.
	FindForUpdate(ctx context.Context, tx pgx.Tx, key string) (*domain.Record, error)
	// Insert creates a new record and assigns its ID. Returns
	// domain.ErrDuplicateKey when another committed transaction already
	// created the same key.
	Insert(ctx context.Context, tx pgx.Tx, rec *domain.Record) error
	// Update writes all mutable fields and bumps updated_at.
	Update(ctx context.Context, tx pgx.Tx, rec *domain.Record) error
	// IncrementRetryIfBelow atomically bumps retry_count while it is below
	// max. Returns the number of rows affected: 0 means the cap is reached.
	IncrementRetryIfBelow(ctx context.Context, tx pgx.Tx, id int64, max int) (int64, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
