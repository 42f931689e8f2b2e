package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/mealkiosk/internal/model"
)

// StartSyncRun appends a started entry and returns its id.
func (s *Store) StartSyncRun(ctx context.Context, op model.SyncOp, at time.Time) (int64, error) {
	var id int64
	err := s.inTx(ctx, "start sync run", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO sync_runs (type, status, record_count, started_at)
			VALUES (?, ?, 0, ?)
		`, string(op), string(model.RunStarted), formatTime(at))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	}, TableSyncRuns)
	return id, err
}

// FinishSyncRun moves a started entry to success or failed. runErr, when
// non-nil, marks the run failed and records its message.
func (s *Store) FinishSyncRun(ctx context.Context, id int64, count int, runErr error, at time.Time) error {
	status := model.RunSuccess
	var errText sql.NullString
	if runErr != nil {
		status = model.RunFailed
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}
	return s.inTx(ctx, "finish sync run", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE sync_runs
			SET status = ?, record_count = ?, completed_at = ?, error = ?
			WHERE id = ? AND status = ?
		`, string(status), count, formatTime(at), errText, id, string(model.RunStarted))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("sync run %d is not started", id)
		}
		return nil
	}, TableSyncRuns)
}

// RecentSyncRuns returns up to limit entries, newest first.
func (s *Store) RecentSyncRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, status, record_count, started_at, completed_at, error
		FROM sync_runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync runs: %w", err)
	}
	defer rows.Close()

	runs := []model.SyncRun{}
	for rows.Next() {
		var (
			r                     model.SyncRun
			op, status, startedAt string
			completedAt, errText  sql.NullString
		)
		if err := rows.Scan(&r.ID, &op, &status, &r.RecordCount, &startedAt, &completedAt, &errText); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		r.Type = model.SyncOp(op)
		r.Status = model.SyncRunStatus(status)
		if r.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if r.CompletedAt, err = parseNullTime(completedAt); err != nil {
			return nil, err
		}
		r.Error = errText.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync runs: %w", err)
	}
	return runs, nil
}
