package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"idempotency-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Record Repo ---

// inMemoryRecordRepo emulates the Postgres record store: a map guarded by a
// mutex stands in for the table, and Insert's uniqueness check under that
// mutex reproduces the unique-index race semantics.
type inMemoryRecordRepo struct {
	mu      sync.RWMutex
	nextID  int64
	records map[string]*domain.Record
}

func newInMemoryRecordRepo() *inMemoryRecordRepo {
	return &inMemoryRecordRepo{records: make(map[string]*domain.Record)}
}

func copyRecord(r *domain.Record) *domain.Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.ResponseStatusCode != nil {
		code := *r.ResponseStatusCode
		c.ResponseStatusCode = &code
	}
	if r.ResponseBody != nil {
		c.ResponseBody = append([]byte(nil), r.ResponseBody...)
	}
	return &c
}

func (r *inMemoryRecordRepo) Find(ctx context.Context, key string) (*domain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyRecord(r.records[key]), nil
}

func (r *inMemoryRecordRepo) FindForUpdate(ctx context.Context, tx pgx.Tx, key string) (*domain.Record, error) {
	return r.Find(ctx, key)
}

func (r *inMemoryRecordRepo) Insert(ctx context.Context, tx pgx.Tx, rec *domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[rec.Key]; exists {
		return domain.ErrDuplicateKey
	}
	r.nextID++
	rec.ID = r.nextID
	r.records[rec.Key] = copyRecord(rec)
	return nil
}

func (r *inMemoryRecordRepo) Update(ctx context.Context, tx pgx.Tx, rec *domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.records[rec.Key]
	if !ok {
		return fmt.Errorf("record not found: %d", rec.ID)
	}
	rec.UpdatedAt = time.Now().UTC()
	updated := copyRecord(rec)
	updated.ID = stored.ID
	r.records[rec.Key] = updated
	return nil
}

func (r *inMemoryRecordRepo) IncrementRetryIfBelow(ctx context.Context, tx pgx.Tx, id int64, max int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			if rec.RetryCount >= max {
				return 0, nil
			}
			rec.RetryCount++
			rec.UpdatedAt = time.Now().UTC()
			return 1, nil
		}
	}
	return 0, nil
}

// get returns the stored record for assertions.
func (r *inMemoryRecordRepo) get(key string) *domain.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyRecord(r.records[key])
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
