package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"shiftsync/internal/domain/request"
	"shiftsync/internal/infra"
	"shiftsync/internal/pkg/ptr"

	"github.com/google/uuid"
)

const requestColumns = `id, kind, subject_shift_id, counterpart_shift_id, requesting_party,
	target_party, state, created_at, expires_at, origin, version, notes`

type RequestRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewRequestRepository(db *DB, logger *slog.Logger) *RequestRepository {
	return &RequestRepository{db: db, logger: logger}
}

// Save replaces the stored copy wholesale. There is no field-level update
// path on purpose: every mutation arrives as a complete Request produced by
// a lifecycle transition or a server merge.
func (r *RequestRepository) Save(ctx context.Context, req request.Request) error {
	var counterpart sql.NullString
	if req.CounterpartShiftID != nil {
		counterpart = sql.NullString{String: req.CounterpartShiftID.String(), Valid: true}
	}

	_, err := r.db.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO requests
			(id, kind, subject_shift_id, counterpart_shift_id, requesting_party,
			 target_party, state, created_at, expires_at, origin, version, notes, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		req.ID.String(),
		string(req.Kind),
		req.SubjectShiftID.String(),
		counterpart,
		req.RequestingParty.String(),
		req.TargetParty.String(),
		string(req.State),
		req.CreatedAt,
		ptr.NullFromTime(req.ExpiresAt),
		string(req.Origin),
		ptr.NullFromInt64(req.Version),
		req.Notes,
		time.Now().UTC(),
	)
	if err != nil {
		return infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to save request", err)
	}
	return nil
}

func (r *RequestRepository) Find(ctx context.Context, id uuid.UUID) (request.Request, error) {
	row := r.db.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM requests WHERE id = ?
	`, id.String())

	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return request.Request{}, infra.WrapRepoErr(r.logger, infra.KindNotFound, "request not found", err)
		}
		return request.Request{}, infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to find request", err)
	}
	return req, nil
}

// Delete removes a request outright. Used only to roll back a cancelled
// local create that the server never saw.
func (r *RequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.db.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id.String())
	if err != nil {
		return infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to delete request", err)
	}
	return nil
}

// Snapshot returns every known request ordered by creation time. Callers
// get value copies; mutating them never touches the store.
func (r *RequestRepository) Snapshot(ctx context.Context) ([]request.Request, error) {
	return r.list(ctx, `
		SELECT `+requestColumns+`
		FROM requests ORDER BY created_at ASC, id ASC
	`)
}

func (r *RequestRepository) ListByParty(ctx context.Context, party uuid.UUID) ([]request.Request, error) {
	return r.list(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE requesting_party = ? OR target_party = ?
		ORDER BY created_at ASC, id ASC
	`, party.String(), party.String())
}

func (r *RequestRepository) ListByState(ctx context.Context, state request.State) ([]request.Request, error) {
	return r.list(ctx, `
		SELECT `+requestColumns+`
		FROM requests WHERE state = ?
		ORDER BY created_at ASC, id ASC
	`, string(state))
}

// PruneTerminal deletes server-acknowledged terminal requests whose last
// write is older than the cutoff. Local-pending copies are never pruned.
func (r *RequestRepository) PruneTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.db.ExecContext(ctx, `
		DELETE FROM requests
		WHERE origin = ?
		  AND state IN (?, ?, ?, ?, ?, ?)
		  AND stored_at < ?
	`,
		string(request.OriginServer),
		string(request.StateAccepted), string(request.StateFailed), string(request.StateRejected),
		string(request.StateExpired), string(request.StateCancelled), string(request.StateApproved),
		cutoff,
	)
	if err != nil {
		return 0, infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to prune terminal requests", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *RequestRepository) list(ctx context.Context, query string, args ...any) ([]request.Request, error) {
	rows, err := r.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to query requests", err)
	}
	defer rows.Close()

	out := []request.Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to scan request", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to iterate requests", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (request.Request, error) {
	var (
		id, kind, subjectShift, requestingParty, targetParty, state, origin, notes string
		counterpart                                                               sql.NullString
		createdAt                                                                 time.Time
		expiresAt                                                                 sql.NullTime
		version                                                                   sql.NullInt64
	)

	if err := row.Scan(&id, &kind, &subjectShift, &counterpart, &requestingParty,
		&targetParty, &state, &createdAt, &expiresAt, &origin, &version, &notes); err != nil {
		return request.Request{}, err
	}

	reqID, err := uuid.Parse(id)
	if err != nil {
		return request.Request{}, err
	}
	shiftID, err := uuid.Parse(subjectShift)
	if err != nil {
		return request.Request{}, err
	}
	reqParty, err := uuid.Parse(requestingParty)
	if err != nil {
		return request.Request{}, err
	}
	tgtParty, err := uuid.Parse(targetParty)
	if err != nil {
		return request.Request{}, err
	}

	var counterpartID *uuid.UUID
	if counterpart.Valid {
		parsed, err := uuid.Parse(counterpart.String)
		if err != nil {
			return request.Request{}, err
		}
		counterpartID = &parsed
	}

	return request.Reconstruct(
		reqID,
		request.Kind(kind),
		shiftID,
		counterpartID,
		reqParty,
		tgtParty,
		request.State(state),
		createdAt,
		ptr.TimeFromNull(expiresAt),
		request.Origin(origin),
		ptr.Int64FromNull(version),
		notes,
	), nil
}
