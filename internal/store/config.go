package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/mealkiosk/internal/model"
)

// GetConfig returns the value stored under key.
func (s *Store) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kiosk_config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get config %s: %w", key, err)
	}
	return value, true, nil
}

// SetConfig stores value under key, replacing any previous value.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	return s.inTx(ctx, "set config "+key, func(tx *sql.Tx) error {
		return setConfig(ctx, tx, key, value, true)
	}, TableKioskConfig)
}

// SetConfigs stores every pair in one transaction.
func (s *Store) SetConfigs(ctx context.Context, values map[string]string) error {
	return s.inTx(ctx, "set config", func(tx *sql.Tx) error {
		for k, v := range values {
			if err := setConfig(ctx, tx, k, v, true); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
		return nil
	}, TableKioskConfig)
}

// DeleteConfig removes keys. Deleting a missing key is not an error.
func (s *Store) DeleteConfig(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return s.inTx(ctx, "delete config", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM kiosk_config WHERE key IN (`+placeholders(len(keys))+`)`, args...)
		return err
	}, TableKioskConfig)
}

// AllConfig returns every stored key/value pair.
func (s *Store) AllConfig(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kiosk_config ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("query config: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate config: %w", err)
	}
	return values, nil
}

func setConfig(ctx context.Context, tx *sql.Tx, key, value string, overwrite bool) error {
	conflict := `ON CONFLICT(key) DO NOTHING`
	if overwrite {
		conflict = `ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO kiosk_config (key, value, updated_at)
		VALUES (?, ?, ?)
		`+conflict, key, value, formatTime(time.Now()))
	return err
}

// DiningHallID returns the kiosk's configured hall. ok is false when no hall
// is configured or the stored value is not a number.
func (s *Store) DiningHallID(ctx context.Context) (id int64, ok bool, err error) {
	v, found, err := s.GetConfig(ctx, model.KeyDiningHallID)
	if err != nil || !found {
		return 0, false, err
	}
	id, perr := strconv.ParseInt(v, 10, 64)
	if perr != nil {
		return 0, false, nil
	}
	return id, true, nil
}

// KioskSettings reads the configuration consulted on every scan.
func (s *Store) KioskSettings(ctx context.Context) (model.KioskSettings, error) {
	values, err := s.AllConfig(ctx)
	if err != nil {
		return model.KioskSettings{}, err
	}

	var ks model.KioskSettings
	if v, ok := values[model.KeyDiningHallID]; ok {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			ks.DiningHallID = id
			ks.HasDiningHall = true
		}
	}
	if v, ok := values[model.KeyActiveChefID]; ok {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			ks.ActiveChefID = &id
		}
	}
	ks.ActiveChefName = values[model.KeyActiveChefName]
	ks.DeviceUUID = values[model.KeyDeviceUUID]
	return ks, nil
}

// SeedDefaults inserts the default meal slots, admin PIN, sync interval and a
// freshly generated device UUID. Existing rows are never overwritten, so the
// device UUID is generated exactly once per database.
func (s *Store) SeedDefaults(ctx context.Context) error {
	deviceID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("seed defaults: generate device uuid: %w", err)
	}

	return s.inTx(ctx, "seed defaults", func(tx *sql.Tx) error {
		for _, slot := range model.DefaultMealSlots() {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO meal_slots (id, name, start_time, end_time, is_active, sort_order)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO NOTHING
			`, slot.ID, slot.Name, slot.StartTime, slot.EndTime, slot.IsActive, slot.SortOrder)
			if err != nil {
				return fmt.Errorf("slot %s: %w", slot.ID, err)
			}
		}

		defaults := [][2]string{
			{model.KeyAdminPIN, model.DefaultAdminPIN},
			{model.KeySyncIntervalMinutes, "5"},
			{model.KeyDeviceUUID, deviceID.String()},
		}
		for _, kv := range defaults {
			if err := setConfig(ctx, tx, kv[0], kv[1], false); err != nil {
				return fmt.Errorf("config %s: %w", kv[0], err)
			}
		}
		return nil
	}, TableMealSlots, TableKioskConfig)
}
