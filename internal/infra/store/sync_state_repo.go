package store

import (
	"context"
	"log/slog"
	"time"

	"shiftsync/internal/infra"
)

// SyncStateRepository holds the pull cursor so a restart resumes where the
// last successful pull left off instead of refetching history.
type SyncStateRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewSyncStateRepository(db *DB, logger *slog.Logger) *SyncStateRepository {
	return &SyncStateRepository{db: db, logger: logger}
}

func (r *SyncStateRepository) Cursor(ctx context.Context) (string, error) {
	var cursor string
	err := r.db.db.QueryRowContext(ctx, `SELECT cursor FROM sync_state WHERE id = 1`).Scan(&cursor)
	if err != nil {
		return "", infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to read sync cursor", err)
	}
	return cursor, nil
}

func (r *SyncStateRepository) SetCursor(ctx context.Context, cursor string) error {
	_, err := r.db.db.ExecContext(ctx, `
		UPDATE sync_state SET cursor = ?, updated_at = ? WHERE id = 1
	`, cursor, time.Now().UTC())
	if err != nil {
		return infra.WrapRepoErr(r.logger, infra.KindStoreFailure, "failed to persist sync cursor", err)
	}
	return nil
}
