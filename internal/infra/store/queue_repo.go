package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"shiftsync/internal/domain/action"
	"shiftsync/internal/domain/request"
	"shiftsync/internal/infra"
	"shiftsync/internal/pkg/ptr"

	"github.com/google/uuid"
)

const entryColumns = `position, entry_id, request_id, action_type, payload,
	prior_state, prior_origin, attempt_count, enqueued_at, last_attempt_at, next_retry_at`

type QueueRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewQueueRepository(db *DB, logger *slog.Logger) *QueueRepository {
	return &QueueRepository{db: db, logger: logger}
}

// Append adds an entry at the tail and returns it with its assigned FIFO
// position. A duplicate idempotency key is rejected as DUPLICATE_KEY.
func (r *QueueRepository) Append(ctx context.Context, e action.Entry) (action.Entry, error) {
	var priorState, priorOrigin sql.NullString
	if e.PriorState != "" {
		priorState = sql.NullString{String: string(e.PriorState), Valid: true}
	}
	if e.PriorOrigin != "" {
		priorOrigin = sql.NullString{String: string(e.PriorOrigin), Valid: true}
	}

	res, err := r.db.db.ExecContext(ctx, `
		INSERT INTO queue_entries
			(entry_id, request_id, action_type, payload, prior_state, prior_origin,
			 attempt_count, enqueued_at, last_attempt_at, next_retry_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.EntryID.String(),
		e.RequestID.String(),
		string(e.Type),
		[]byte(e.Payload),
		priorState,
		priorOrigin,
		e.AttemptCount,
		e.EnqueuedAt,
		ptr.NullFromTime(e.LastAttemptAt),
		ptr.NullFromTime(e.NextRetryAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return action.Entry{}, infra.WrapRepoErr(r.logger, infra.KindDuplicateKey, "duplicate idempotency key", err)
		}
		return action.Entry{}, infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to append queue entry", err)
	}

	out := e.Clone()
	if pos, err := res.LastInsertId(); err == nil {
		out.Position = pos
	}
	return out, nil
}

// PeekNext returns the head of the queue without removing it. NOT_FOUND
// means the queue is empty.
func (r *QueueRepository) PeekNext(ctx context.Context) (action.Entry, error) {
	row := r.db.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries ORDER BY position ASC LIMIT 1
	`)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// steady state between syncs; not worth a log line
			return action.Entry{}, infra.RepoErr(infra.KindNotFound, "queue is empty", err)
		}
		return action.Entry{}, infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to peek queue", err)
	}
	return e, nil
}

func (r *QueueRepository) Find(ctx context.Context, entryID uuid.UUID) (action.Entry, error) {
	row := r.db.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries WHERE entry_id = ?
	`, entryID.String())
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return action.Entry{}, infra.WrapRepoErr(r.logger, infra.KindNotFound, "queue entry not found", err)
		}
		return action.Entry{}, infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to find queue entry", err)
	}
	return e, nil
}

// Remove dequeues by idempotency key. Callers only do this after the server
// acknowledged the action, successfully or definitively.
func (r *QueueRepository) Remove(ctx context.Context, entryID uuid.UUID) error {
	res, err := r.db.db.ExecContext(ctx, `DELETE FROM queue_entries WHERE entry_id = ?`, entryID.String())
	if err != nil {
		return infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to remove queue entry", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return infra.WrapRepoErr(r.logger, infra.KindNotFound, "queue entry not found", sql.ErrNoRows)
	}
	return nil
}

// ReassignRequest repoints queued entries from a provisional request id to
// the server-assigned one. Positions are untouched, so FIFO order holds.
// Zero affected rows is fine; most creates have nothing queued behind them.
func (r *QueueRepository) ReassignRequest(ctx context.Context, from, to uuid.UUID) error {
	_, err := r.db.db.ExecContext(ctx, `
		UPDATE queue_entries SET request_id = ? WHERE request_id = ?
	`, to.String(), from.String())
	if err != nil {
		return infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to reassign queue entries", err)
	}
	return nil
}

// HasPending reports whether any queued action still references the request.
func (r *QueueRepository) HasPending(ctx context.Context, requestID uuid.UUID) (bool, error) {
	var n int
	err := r.db.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM queue_entries WHERE request_id = ?
	`, requestID.String()).Scan(&n)
	if err != nil {
		return false, infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to count queue entries", err)
	}
	return n > 0, nil
}

// UpdateRetry persists the retry bookkeeping after a transient failure. The
// entry itself stays in place at its original position.
func (r *QueueRepository) UpdateRetry(ctx context.Context, e action.Entry) error {
	res, err := r.db.db.ExecContext(ctx, `
		UPDATE queue_entries
		SET attempt_count = ?, last_attempt_at = ?, next_retry_at = ?
		WHERE entry_id = ?
	`,
		e.AttemptCount,
		ptr.NullFromTime(e.LastAttemptAt),
		ptr.NullFromTime(e.NextRetryAt),
		e.EntryID.String(),
	)
	if err != nil {
		return infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to update queue entry", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return infra.WrapRepoErr(r.logger, infra.KindNotFound, "queue entry not found", sql.ErrNoRows)
	}
	return nil
}

// List returns all entries in FIFO order, for pending/failed visibility in
// the UI layer.
func (r *QueueRepository) List(ctx context.Context) ([]action.Entry, error) {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries ORDER BY position ASC
	`)
	if err != nil {
		return nil, infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to list queue entries", err)
	}
	defer rows.Close()

	out := []action.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to scan queue entry", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to iterate queue entries", err)
	}
	return out, nil
}

func scanEntry(row rowScanner) (action.Entry, error) {
	var (
		position                 int64
		entryID, requestID, kind string
		payload                  []byte
		priorState, priorOrigin  sql.NullString
		attemptCount             int
		enqueuedAt               time.Time
		lastAttemptAt, nextRetry sql.NullTime
	)

	if err := row.Scan(&position, &entryID, &requestID, &kind, &payload,
		&priorState, &priorOrigin, &attemptCount, &enqueuedAt, &lastAttemptAt, &nextRetry); err != nil {
		return action.Entry{}, err
	}

	eid, err := uuid.Parse(entryID)
	if err != nil {
		return action.Entry{}, err
	}
	rid, err := uuid.Parse(requestID)
	if err != nil {
		return action.Entry{}, err
	}

	e := action.Entry{
		EntryID:       eid,
		RequestID:     rid,
		Type:          action.Type(kind),
		Payload:       payload,
		Position:      position,
		AttemptCount:  attemptCount,
		EnqueuedAt:    enqueuedAt,
		LastAttemptAt: ptr.TimeFromNull(lastAttemptAt),
		NextRetryAt:   ptr.TimeFromNull(nextRetry),
	}
	if priorState.Valid {
		e.PriorState = request.State(priorState.String)
	}
	if priorOrigin.Valid {
		e.PriorOrigin = request.Origin(priorOrigin.String)
	}
	return e, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
