package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/mealkiosk/internal/model"
)

const mealLogColumns = `id, user_id, idcard_number, employee_name, meal_type, dining_hall_id, date,
	scanned_at, sync_status, is_extra_serving, is_manual_override, chef_id, device_uuid, sync_key`

func scanMealLog(row interface{ Scan(...any) error }) (model.MealLog, error) {
	var (
		l         model.MealLog
		scannedAt string
		status    string
		chefID    sql.NullInt64
		device    sql.NullString
	)
	err := row.Scan(
		&l.ID, &l.UserID, &l.IDCardNumber, &l.EmployeeName, &l.MealType, &l.DiningHallID, &l.Date,
		&scannedAt, &status, &l.IsExtraServing, &l.IsManualOverride, &chefID, &device, &l.SyncKey,
	)
	if err != nil {
		return model.MealLog{}, err
	}
	t, err := parseTime(scannedAt)
	if err != nil {
		return model.MealLog{}, err
	}
	l.ScannedAt = t
	l.SyncStatus = model.SyncStatus(status)
	l.ChefID = int64Ptr(chefID)
	l.DeviceUUID = stringPtr(device)
	return l, nil
}

// CreateMealLog appends an attendance record. If a record with the same sync
// key already exists the insert is ignored, inserted is false and the stored
// record is returned instead.
//
// An empty SyncStatus is stored as pending.
func (s *Store) CreateMealLog(ctx context.Context, l model.MealLog) (stored model.MealLog, inserted bool, err error) {
	if l.SyncKey == "" {
		return model.MealLog{}, false, fmt.Errorf("create meal log: empty sync key")
	}
	if l.SyncStatus == "" {
		l.SyncStatus = model.SyncPending
	}

	err = s.inTx(ctx, "create meal log", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO meal_logs
			(user_id, idcard_number, employee_name, meal_type, dining_hall_id, date,
			 scanned_at, sync_status, is_extra_serving, is_manual_override, chef_id, device_uuid, sync_key)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(sync_key) DO NOTHING
		`,
			l.UserID, l.IDCardNumber, l.EmployeeName, l.MealType, l.DiningHallID, l.Date,
			formatTime(l.ScannedAt), string(l.SyncStatus), l.IsExtraServing, l.IsManualOverride,
			nullInt64(l.ChefID), nullString(l.DeviceUUID), l.SyncKey,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		inserted = n > 0

		row := tx.QueryRowContext(ctx, `SELECT `+mealLogColumns+` FROM meal_logs WHERE sync_key = ?`, l.SyncKey)
		stored, err = scanMealLog(row)
		return err
	}, TableMealLogs)
	if err != nil {
		return model.MealLog{}, false, err
	}
	return stored, inserted, nil
}

// FindMealLog returns the earliest record for (user, meal, date), whatever its
// flags.
func (s *Store) FindMealLog(ctx context.Context, userID, mealType, date string) (model.MealLog, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+mealLogColumns+`
		FROM meal_logs
		WHERE user_id = ? AND meal_type = ? AND date = ?
		ORDER BY id ASC
		LIMIT 1
	`, userID, mealType, date)
	l, err := scanMealLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MealLog{}, false, nil
	}
	if err != nil {
		return model.MealLog{}, false, fmt.Errorf("find meal log: %w", err)
	}
	return l, true, nil
}

// PendingMealLogs returns every pending record in insertion order.
func (s *Store) PendingMealLogs(ctx context.Context) ([]model.MealLog, error) {
	return s.MealLogs(ctx, MealLogFilter{Status: model.SyncPending, Ascending: true})
}

// CountPending returns the number of records awaiting push.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM meal_logs WHERE sync_status = ?
	`, string(model.SyncPending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

// MarkSynced flips exactly the given records to synced.
func (s *Store) MarkSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, string(model.SyncSynced))
	for _, id := range ids {
		args = append(args, id)
	}
	return s.inTx(ctx, "mark synced", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE meal_logs SET sync_status = ? WHERE id IN (`+placeholders(len(ids))+`)
		`, args...)
		return err
	}, TableMealLogs)
}

// MealLogFilter narrows MealLogs. Zero fields are ignored.
type MealLogFilter struct {
	Date         string
	MealType     string
	DiningHallID int64
	Status       model.SyncStatus
	Limit        int
	// Ascending orders oldest first; the default is newest first.
	Ascending bool
}

// MealLogs returns records matching f.
func (s *Store) MealLogs(ctx context.Context, f MealLogFilter) ([]model.MealLog, error) {
	var (
		where []string
		args  []any
	)
	if f.Date != "" {
		where = append(where, "date = ?")
		args = append(args, f.Date)
	}
	if f.MealType != "" {
		where = append(where, "meal_type = ?")
		args = append(args, f.MealType)
	}
	if f.DiningHallID != 0 {
		where = append(where, "dining_hall_id = ?")
		args = append(args, f.DiningHallID)
	}
	if f.Status != "" {
		where = append(where, "sync_status = ?")
		args = append(args, string(f.Status))
	}

	query := `SELECT ` + mealLogColumns + ` FROM meal_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if f.Ascending {
		query += ` ORDER BY id ASC`
	} else {
		query += ` ORDER BY id DESC`
	}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query meal logs: %w", err)
	}
	defer rows.Close()

	logs := []model.MealLog{}
	for rows.Next() {
		l, err := scanMealLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meal log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meal logs: %w", err)
	}
	return logs, nil
}

// ServedCounts summarizes the records for one date, meal and hall.
type ServedCounts struct {
	Total  int `json:"total"`
	Manual int `json:"manual"`
	Extra  int `json:"extra"`
}

// ServedCounts counts records for date, meal and hall, broken out by the
// manual-override and extra-serving flags.
func (s *Store) ServedCounts(ctx context.Context, date, mealType string, hallID int64) (ServedCounts, error) {
	var c ServedCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_manual_override = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_extra_serving = 1 THEN 1 ELSE 0 END), 0)
		FROM meal_logs
		WHERE date = ? AND meal_type = ? AND dining_hall_id = ?
	`, date, mealType, hallID).Scan(&c.Total, &c.Manual, &c.Extra)
	if err != nil {
		return ServedCounts{}, fmt.Errorf("served counts: %w", err)
	}
	return c, nil
}
