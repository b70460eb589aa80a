package postgres

import (
	"context"
	"fmt"
)

// schema is the persistent state layout: one table, a primary key on id and
// a unique index on key.
const schema = `
CREATE TABLE IF NOT EXISTS idempotency_records (
	id                   BIGSERIAL PRIMARY KEY,
	key                  VARCHAR(100) NOT NULL,
	request_hash         CHAR(64) NOT NULL,
	status               VARCHAR(20) NOT NULL,
	retry_count          INT NOT NULL DEFAULT 0,
	response_status_code INT,
	response_body        TEXT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT uk_idempotency_key UNIQUE (key)
);`

// Migrate applies the schema. Idempotent; safe to run on every start.
func Migrate(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
