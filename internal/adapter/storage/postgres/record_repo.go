package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"idempotency-gateway/internal/core/domain"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const recordColumns = `id, key, request_hash, status, retry_count, response_status_code, response_body, created_at, updated_at`

// RecordRepo implements ports.RecordRepository.
type RecordRepo struct {
	pool Pool
}

// NewRecordRepo creates a new RecordRepo.
func NewRecordRepo(pool Pool) *RecordRepo {
	return &RecordRepo{pool: pool}
}

// Find fetches a record by key without locking.
func (r *RecordRepo) Find(ctx context.Context, key string) (*domain.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM idempotency_records WHERE key = $1`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// FindForUpdate fetches a record by key with a row-level exclusive lock.
// This MUST be called within a transaction; the lock is held until the
// transaction commits or rolls back.
func (r *RecordRepo) FindForUpdate(ctx context.Context, tx pgx.Tx, key string) (*domain.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM idempotency_records WHERE key = $1 FOR UPDATE`

	rec, err := scanRecord(tx.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get record for update: %w", err)
	}
	return rec, nil
}

// Insert creates a new record and assigns its ID. The unique index on key
// turns a lost insert race into domain.ErrDuplicateKey.
func (r *RecordRepo) Insert(ctx context.Context, tx pgx.Tx, rec *domain.Record) error {
	query := `INSERT INTO idempotency_records (key, request_hash, status, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

	err := tx.QueryRow(ctx, query,
		rec.Key, rec.RequestHash, rec.Status, rec.RetryCount, rec.CreatedAt, rec.UpdatedAt,
	).Scan(&rec.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.ErrDuplicateKey
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Update writes all mutable fields and bumps updated_at. request_hash and
// created_at are immutable after insert.
func (r *RecordRepo) Update(ctx context.Context, tx pgx.Tx, rec *domain.Record) error {
	query := `UPDATE idempotency_records
		SET status = $1, retry_count = $2, response_status_code = $3, response_body = $4, updated_at = $5
		WHERE id = $6`

	rec.UpdatedAt = time.Now().UTC()
	tag, err := tx.Exec(ctx, query,
		rec.Status, rec.RetryCount, rec.ResponseStatusCode, rec.ResponseBody, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record not found: %d", rec.ID)
	}
	return nil
}

// IncrementRetryIfBelow atomically bumps retry_count while it is below max.
// The database enforces atomicity, so concurrent callers cannot collectively
// push the counter past the cap.
func (r *RecordRepo) IncrementRetryIfBelow(ctx context.Context, tx pgx.Tx, id int64, max int) (int64, error) {
	query := `UPDATE idempotency_records
		SET retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $1 AND retry_count < $2`

	tag, err := tx.Exec(ctx, query, id, max)
	if err != nil {
		return 0, fmt.Errorf("increment retry count: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (*domain.Record, error) {
	rec := &domain.Record{}
	err := row.Scan(
		&rec.ID, &rec.Key, &rec.RequestHash, &rec.Status, &rec.RetryCount,
		&rec.ResponseStatusCode, &rec.ResponseBody, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
