package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"idempotency-gateway/config"
	"idempotency-gateway/internal/core/domain"
	"idempotency-gateway/internal/core/ports"
	"idempotency-gateway/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// MediatorImpl implements ports.Mediator. It is stateless; all shared state
// lives in the record store and is serialized there. The row lock taken while
// inspecting or transitioning a record is always released (the claim
// transaction commits or rolls back) before the wrapped operation runs, so
// concurrent requests for an in-flight key get 202 instead of blocking.
type MediatorImpl struct {
	repo       ports.RecordRepository
	transactor ports.DBTransactor
	cache      ports.ReplayCache // nil = fast path disabled
	cfg        config.IdempotencyConfig
	log        zerolog.Logger
}

// NewMediator creates a new MediatorImpl. cache may be nil.
func NewMediator(
	repo ports.RecordRepository,
	transactor ports.DBTransactor,
	cache ports.ReplayCache,
	cfg config.IdempotencyConfig,
	log zerolog.Logger,
) *MediatorImpl {
	return &MediatorImpl{
		repo:       repo,
		transactor: transactor,
		cache:      cache,
		cfg:        cfg,
		log:        log,
	}
}

// Handle runs op at most once for the given key and returns the response the
// caller should send. Input and flow-control outcomes are returned as replies
// carrying a serialized error envelope; store failures are returned as errors
// and leave the record in its previous committed state.
func (m *MediatorImpl) Handle(ctx context.Context, key string, body interface{}, op ports.Operation) (*ports.Reply, error) {
	if !domain.ValidKey(key) {
		return errorReply(apperror.ErrInvalidKey()), nil
	}

	hash, err := Fingerprint(body)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("fingerprint request: %w", err))
	}

	// Fast path: replay from cache. Only safe when replays are uncapped,
	// otherwise every replay must go through the counter in the store.
	if m.cache != nil && !m.cfg.ReplayBudgetCap {
		if reply := m.replayFromCache(ctx, key, hash); reply != nil {
			return reply, nil
		}
	}

	reply, restart, err := m.dispatch(ctx, key, hash, op)
	if err != nil {
		return nil, err
	}
	if restart {
		// Lost the first-insert race; the winner's record now exists, so a
		// single re-dispatch lands on the existing-record branch.
		reply, restart, err = m.dispatch(ctx, key, hash, op)
		if err != nil {
			return nil, err
		}
		if restart {
			return nil, fmt.Errorf("idempotency record for key %q disappeared after concurrent insert", key)
		}
	}
	return reply, nil
}

// Status returns a pure projection of the record for key. It never mutates.
func (m *MediatorImpl) Status(ctx context.Context, key string) (*ports.StatusReport, error) {
	rec, err := m.repo.Find(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find record: %w", err))
	}
	if rec == nil {
		return &ports.StatusReport{Exists: false, Key: key}, nil
	}
	return &ports.StatusReport{
		Exists:             true,
		Key:                rec.Key,
		Status:             rec.Status,
		RetryCount:         rec.RetryCount,
		MaxRetries:         m.cfg.MaxRetries,
		CanRetry:           rec.CanRetry(m.cfg.MaxRetries),
		ResponseStatusCode: rec.ResponseStatusCode,
		CreatedAt:          rec.CreatedAt,
		UpdatedAt:          rec.UpdatedAt,
	}, nil
}

// dispatch opens the claim transaction and resolves the record state. It
// returns restart=true when an insert lost the unique-index race and the
// whole flow should re-enter against the now-existing record.
func (m *MediatorImpl) dispatch(ctx context.Context, key, hash string, op ports.Operation) (*ports.Reply, bool, error) {
	tx, err := m.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var rec *domain.Record
	if m.cfg.LockMode == config.LockModeNone {
		rec, err = m.repo.Find(ctx, key)
	} else {
		rec, err = m.repo.FindForUpdate(ctx, tx, key)
	}
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("find record for update: %w", err))
	}

	if rec == nil {
		rec = domain.NewRecord(key, hash)
		if err := m.repo.Insert(ctx, tx, rec); err != nil {
			if errors.Is(err, domain.ErrDuplicateKey) {
				m.log.Info().Str("key", key).Msg("concurrent record creation detected, re-entering")
				return nil, true, nil
			}
			return nil, false, apperror.InternalError(fmt.Errorf("insert record: %w", err))
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("commit claim tx: %w", err))
		}
		m.log.Info().Str("key", key).Msg("created idempotency record")

		reply, err := m.execute(ctx, rec, 1, op)
		return reply, false, err
	}

	if rec.RequestHash != hash {
		m.log.Warn().Str("key", key).Msg("idempotency key reused with different request body")
		return errorReply(apperror.ErrBodyMismatch()), false, nil
	}

	switch rec.Status {
	case domain.StatusProcessing:
		// Never wait on the in-flight attempt; the client polls.
		return errorReply(apperror.ErrProcessing()), false, nil

	case domain.StatusSuccess:
		return m.replaySuccess(ctx, tx, rec)

	case domain.StatusFailed:
		if rec.RetryCount >= m.cfg.MaxRetries {
			m.log.Warn().Str("key", key).Int("retry_count", rec.RetryCount).Msg("retry budget exhausted")
			return errorReply(apperror.ErrMaxRetriesExceeded(map[string]interface{}{
				"retryCount":   rec.RetryCount,
				"maxRetries":   m.cfg.MaxRetries,
				"lastFailedAt": rec.UpdatedAt.UTC().Format(time.RFC3339),
			})), false, nil
		}
		// Consume the attempt before re-executing so a crash mid-operation
		// still counts against the budget.
		attempt := rec.RetryCount + 1
		rec.Status = domain.StatusProcessing
		rec.RetryCount = attempt
		rec.ResponseStatusCode = nil
		rec.ResponseBody = nil
		if err := m.repo.Update(ctx, tx, rec); err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("mark record processing: %w", err))
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("commit claim tx: %w", err))
		}
		m.log.Info().Str("key", key).Int("attempt", attempt).Int("max_retries", m.cfg.MaxRetries).Msg("retrying failed operation")

		reply, err := m.execute(ctx, rec, attempt, op)
		return reply, false, err
	}

	return nil, false, fmt.Errorf("unexpected record state %q for key %q", rec.Status, key)
}

// replaySuccess re-serves the stored response of a SUCCESS record, counting
// the replay against the budget when the cap is enabled.
func (m *MediatorImpl) replaySuccess(ctx context.Context, tx pgx.Tx, rec *domain.Record) (*ports.Reply, bool, error) {
	if m.cfg.ReplayBudgetCap {
		rows, err := m.repo.IncrementRetryIfBelow(ctx, tx, rec.ID, m.cfg.MaxReplays)
		if err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("increment replay count: %w", err))
		}
		if rows == 0 {
			m.log.Warn().Str("key", rec.Key).Int("retry_count", rec.RetryCount).Msg("replay budget exhausted")
			return errorReply(apperror.ErrAlreadySucceeded(map[string]interface{}{
				"originalStatusCode": derefStatus(rec.ResponseStatusCode),
				"completedAt":        rec.UpdatedAt.UTC().Format(time.RFC3339),
				"retryCount":         rec.RetryCount,
			})), false, nil
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("commit replay count: %w", err))
		}
	}

	m.log.Debug().Str("key", rec.Key).Msg("replaying stored response")
	m.cacheReply(ctx, rec)
	return &ports.Reply{StatusCode: derefStatus(rec.ResponseStatusCode), Body: rec.ResponseBody}, false, nil
}

// execute runs op with no row lock held, then finalizes the outcome in a
// second transaction. attempt is 1-based.
func (m *MediatorImpl) execute(ctx context.Context, rec *domain.Record, attempt int, op ports.Operation) (*ports.Reply, error) {
	res, opErr := runOperation(ctx, op)

	var reply *ports.Reply
	if opErr == nil {
		status, body, err := EncodeResponse(res.StatusCode, res.Body)
		if err != nil {
			// An unserializable result is indistinguishable from a failed
			// operation as far as the record is concerned.
			opErr = err
		} else {
			rec.Status = domain.StatusSuccess
			rec.ResponseStatusCode = &status
			rec.ResponseBody = body
			reply = &ports.Reply{StatusCode: status, Body: body}
			m.log.Info().Str("key", rec.Key).Int("attempt", attempt).Int("status", status).Msg("operation succeeded")
		}
	}
	if opErr != nil {
		appErr := m.operationError(opErr, attempt)
		body, _ := json.Marshal(appErr.Envelope())
		status := appErr.HTTPStatus
		rec.Status = domain.StatusFailed
		rec.RetryCount = attempt
		rec.ResponseStatusCode = &status
		rec.ResponseBody = body
		reply = &ports.Reply{StatusCode: status, Body: body, ErrorCode: appErr.Code}
		m.log.Error().Err(opErr).Str("key", rec.Key).Int("attempt", attempt).Msg("operation failed")
	}

	if err := m.finalize(ctx, rec); err != nil {
		return nil, err
	}
	if rec.Status == domain.StatusSuccess {
		m.cacheReply(ctx, rec)
	}
	return reply, nil
}

// finalize re-acquires the row and persists the attempt outcome.
func (m *MediatorImpl) finalize(ctx context.Context, rec *domain.Record) error {
	tx, err := m.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin finalize tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if m.cfg.LockMode != config.LockModeNone {
		if _, err := m.repo.FindForUpdate(ctx, tx, rec.Key); err != nil {
			return apperror.InternalError(fmt.Errorf("relock record: %w", err))
		}
	}
	if err := m.repo.Update(ctx, tx, rec); err != nil {
		return apperror.InternalError(fmt.Errorf("persist outcome: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit finalize tx: %w", err))
	}
	return nil
}

// operationError synthesizes the stored error envelope for a failed attempt.
func (m *MediatorImpl) operationError(opErr error, attempt int) *apperror.AppError {
	canRetry := attempt < m.cfg.MaxRetries
	msg := fmt.Sprintf("Operation failed on attempt %d of %d. You can retry.", attempt, m.cfg.MaxRetries)
	if !canRetry {
		msg = fmt.Sprintf("Operation failed after %d attempts. Maximum retries reached.", m.cfg.MaxRetries)
	}
	return apperror.ErrOperationFailed(msg, map[string]interface{}{
		"attemptNumber": attempt,
		"maxRetries":    m.cfg.MaxRetries,
		"canRetry":      canRetry,
		"cause":         opErr.Error(),
	})
}

// replayFromCache serves a cached SUCCESS reply, still enforcing body
// equivalence. Returns nil on miss or cache failure.
func (m *MediatorImpl) replayFromCache(ctx context.Context, key, hash string) *ports.Reply {
	cached, err := m.cache.Get(ctx, key)
	if err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("replay cache check failed, falling through to store")
		return nil
	}
	if cached == nil {
		return nil
	}
	if cached.RequestHash != hash {
		return errorReply(apperror.ErrBodyMismatch())
	}
	m.log.Debug().Str("key", key).Msg("replaying cached response")
	return &ports.Reply{StatusCode: cached.StatusCode, Body: cached.Body}
}

// cacheReply stores a SUCCESS reply in the replay cache (best-effort).
func (m *MediatorImpl) cacheReply(ctx context.Context, rec *domain.Record) {
	if m.cache == nil || m.cfg.ReplayBudgetCap {
		return
	}
	entry := &ports.CachedReply{
		RequestHash: rec.RequestHash,
		StatusCode:  derefStatus(rec.ResponseStatusCode),
		Body:        rec.ResponseBody,
	}
	if err := m.cache.Set(ctx, rec.Key, entry, m.cfg.CacheTTL); err != nil {
		m.log.Warn().Err(err).Str("key", rec.Key).Msg("failed to cache reply")
	}
}

// runOperation invokes op, converting a panic into an operation error.
func runOperation(ctx context.Context, op ports.Operation) (res *ports.OpResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	res, err = op(ctx)
	if err == nil && res == nil {
		err = errors.New("operation returned no result")
	}
	return res, err
}

// errorReply serializes an AppError into the reply the adapter should write.
// The bytes are also what gets stored when the error is recorded.
func errorReply(e *apperror.AppError) *ports.Reply {
	body, _ := json.Marshal(e.Envelope())
	return &ports.Reply{StatusCode: e.HTTPStatus, Body: body, ErrorCode: e.Code}
}

func derefStatus(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
