package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/mealkiosk/internal/model"
)

// MealSlots returns every configured slot, active or not, by sort order.
func (s *Store) MealSlots(ctx context.Context) ([]model.MealSlot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, start_time, end_time, is_active, sort_order
		FROM meal_slots
		ORDER BY sort_order ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query meal slots: %w", err)
	}
	defer rows.Close()

	slots := []model.MealSlot{}
	for rows.Next() {
		var m model.MealSlot
		if err := rows.Scan(&m.ID, &m.Name, &m.StartTime, &m.EndTime, &m.IsActive, &m.SortOrder); err != nil {
			return nil, fmt.Errorf("scan meal slot: %w", err)
		}
		slots = append(slots, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meal slots: %w", err)
	}
	return slots, nil
}

// UpsertMealSlot inserts or replaces one slot.
func (s *Store) UpsertMealSlot(ctx context.Context, m model.MealSlot) error {
	return s.inTx(ctx, "upsert meal slot", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO meal_slots (id, name, start_time, end_time, is_active, sort_order)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				start_time = excluded.start_time,
				end_time = excluded.end_time,
				is_active = excluded.is_active,
				sort_order = excluded.sort_order
		`, m.ID, m.Name, m.StartTime, m.EndTime, m.IsActive, m.SortOrder)
		return err
	}, TableMealSlots)
}
