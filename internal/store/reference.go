package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/mealkiosk/internal/model"
)

// ReplaceDiningHalls clears the dining hall table and inserts halls.
func (s *Store) ReplaceDiningHalls(ctx context.Context, halls []model.DiningHall) error {
	return s.inTx(ctx, "replace dining halls", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM dining_halls`); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		for _, h := range halls {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO dining_halls (id, name, location)
				VALUES (?, ?, ?)
				ON CONFLICT(id) DO NOTHING
			`, h.ID, h.Name, h.Location)
			if err != nil {
				return fmt.Errorf("insert hall %d: %w", h.ID, err)
			}
		}
		return nil
	}, TableDiningHalls)
}

// DiningHall returns the hall with the given id.
func (s *Store) DiningHall(ctx context.Context, id int64) (model.DiningHall, bool, error) {
	var h model.DiningHall
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, location FROM dining_halls WHERE id = ?
	`, id).Scan(&h.ID, &h.Name, &h.Location)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DiningHall{}, false, nil
	}
	if err != nil {
		return model.DiningHall{}, false, fmt.Errorf("get dining hall: %w", err)
	}
	return h, true, nil
}

// DiningHalls returns all halls ordered by id.
func (s *Store) DiningHalls(ctx context.Context) ([]model.DiningHall, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, location FROM dining_halls ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query dining halls: %w", err)
	}
	defer rows.Close()

	halls := []model.DiningHall{}
	for rows.Next() {
		var h model.DiningHall
		if err := rows.Scan(&h.ID, &h.Name, &h.Location); err != nil {
			return nil, fmt.Errorf("scan dining hall: %w", err)
		}
		halls = append(halls, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dining halls: %w", err)
	}
	return halls, nil
}

// ReplaceChefs clears the chef table and inserts chefs.
func (s *Store) ReplaceChefs(ctx context.Context, chefs []model.Chef) error {
	return s.inTx(ctx, "replace chefs", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chefs`); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		for _, c := range chefs {
			if err := insertChef(ctx, tx, c, false); err != nil {
				return err
			}
		}
		return nil
	}, TableChefs)
}

// UpsertChef mirrors a single chef created or changed remotely.
func (s *Store) UpsertChef(ctx context.Context, c model.Chef) error {
	return s.inTx(ctx, "upsert chef", func(tx *sql.Tx) error {
		return insertChef(ctx, tx, c, true)
	}, TableChefs)
}

func insertChef(ctx context.Context, tx *sql.Tx, c model.Chef, replace bool) error {
	conflict := "ON CONFLICT(id) DO NOTHING"
	if replace {
		conflict = `ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			dining_hall_id = excluded.dining_hall_id,
			pin = excluded.pin,
			is_active = excluded.is_active`
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO chefs (id, name, dining_hall_id, pin, is_active)
		VALUES (?, ?, ?, ?, ?)
		`+conflict,
		c.ID, c.Name, c.DiningHallID, c.PIN, c.IsActive,
	)
	if err != nil {
		return fmt.Errorf("insert chef %d: %w", c.ID, err)
	}
	return nil
}

// SetChefActive flips a chef's active flag locally.
func (s *Store) SetChefActive(ctx context.Context, id int64, active bool) error {
	return s.inTx(ctx, "set chef active", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE chefs SET is_active = ? WHERE id = ?`, active, id)
		return err
	}, TableChefs)
}

// Chefs returns chefs ordered by id. hallID 0 returns every chef.
func (s *Store) Chefs(ctx context.Context, hallID int64) ([]model.Chef, error) {
	query := `SELECT id, name, dining_hall_id, pin, is_active FROM chefs`
	var args []any
	if hallID != 0 {
		query += ` WHERE dining_hall_id = ?`
		args = append(args, hallID)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chefs: %w", err)
	}
	defer rows.Close()

	chefs := []model.Chef{}
	for rows.Next() {
		var c model.Chef
		if err := rows.Scan(&c.ID, &c.Name, &c.DiningHallID, &c.PIN, &c.IsActive); err != nil {
			return nil, fmt.Errorf("scan chef: %w", err)
		}
		chefs = append(chefs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chefs: %w", err)
	}
	return chefs, nil
}

// ChefByPIN returns the first active chef with the given PIN.
func (s *Store) ChefByPIN(ctx context.Context, pin string) (model.Chef, bool, error) {
	var c model.Chef
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, dining_hall_id, pin, is_active
		FROM chefs
		WHERE pin = ? AND is_active = 1
		ORDER BY id ASC
		LIMIT 1
	`, pin).Scan(&c.ID, &c.Name, &c.DiningHallID, &c.PIN, &c.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Chef{}, false, nil
	}
	if err != nil {
		return model.Chef{}, false, fmt.Errorf("get chef by pin: %w", err)
	}
	return c, true, nil
}

// ReplaceEmployeesAndConfigs replaces both employees and meal configs in one
// transaction. Duplicate keys keep the first row.
func (s *Store) ReplaceEmployeesAndConfigs(ctx context.Context, employees []model.Employee, configs []model.MealConfig) error {
	return s.inTx(ctx, "replace employees", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM employees`); err != nil {
			return fmt.Errorf("clear employees: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM meal_configs`); err != nil {
			return fmt.Errorf("clear meal configs: %w", err)
		}

		for _, e := range employees {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO employees
				(id, employee_code, idcard_number, name, department, position, heltes_name, is_active)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO NOTHING
			`, e.ID, e.EmployeeCode, e.IDCardNumber, e.Name, e.Department, e.Position, e.HeltesName, e.IsActive)
			if err != nil {
				return fmt.Errorf("insert employee %s: %w", e.ID, err)
			}
		}

		for _, c := range configs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO meal_configs
				(user_id, breakfast_location, lunch_location, dinner_location, night_meal_location, morning_meal_location)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(user_id) DO NOTHING
			`, c.UserID, nullInt64(c.Breakfast), nullInt64(c.Lunch), nullInt64(c.Dinner), nullInt64(c.NightMeal), nullInt64(c.MorningMeal))
			if err != nil {
				return fmt.Errorf("insert meal config %s: %w", c.UserID, err)
			}
		}
		return nil
	}, TableEmployees, TableMealConfigs)
}

const employeeColumns = `id, employee_code, idcard_number, name, department, position, heltes_name, is_active`

func scanEmployee(row interface{ Scan(...any) error }) (model.Employee, error) {
	var e model.Employee
	err := row.Scan(&e.ID, &e.EmployeeCode, &e.IDCardNumber, &e.Name, &e.Department, &e.Position, &e.HeltesName, &e.IsActive)
	return e, err
}

func (s *Store) employeeWhere(ctx context.Context, column, value string) (model.Employee, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+employeeColumns+`
		FROM employees
		WHERE `+column+` = ?
		ORDER BY rowid ASC
		LIMIT 1
	`, value)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Employee{}, false, nil
	}
	if err != nil {
		return model.Employee{}, false, fmt.Errorf("get employee by %s: %w", column, err)
	}
	return e, true, nil
}

// EmployeeByIDCard returns the first employee with the id-card number.
func (s *Store) EmployeeByIDCard(ctx context.Context, idcard string) (model.Employee, bool, error) {
	return s.employeeWhere(ctx, "idcard_number", idcard)
}

// EmployeeByCode returns the first employee with the employee code.
func (s *Store) EmployeeByCode(ctx context.Context, code string) (model.Employee, bool, error) {
	return s.employeeWhere(ctx, "employee_code", code)
}

// Employee returns the employee with the given id.
func (s *Store) Employee(ctx context.Context, id string) (model.Employee, bool, error) {
	return s.employeeWhere(ctx, "id", id)
}

// Employees returns every employee in insertion order.
func (s *Store) Employees(ctx context.Context) ([]model.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	employees := []model.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return employees, nil
}

// EmployeeIDs returns the ids of every local employee.
func (s *Store) EmployeeIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM employees ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query employee ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan employee id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employee ids: %w", err)
	}
	return ids, nil
}

// SearchLimit caps SearchEmployees results.
const SearchLimit = 50

// SearchEmployees returns employees whose name, code, id-card number or
// department contains query, compared case-insensitively with Unicode case
// folding (names are mostly Cyrillic, which SQLite's LOWER does not fold).
// An empty query returns the first SearchLimit employees.
func (s *Store) SearchEmployees(ctx context.Context, query string) ([]model.Employee, error) {
	all, err := s.Employees(ctx)
	if err != nil {
		return nil, err
	}

	fold := cases.Fold()
	q := fold.String(strings.TrimSpace(query))

	matches := []model.Employee{}
	for _, e := range all {
		if len(matches) >= SearchLimit {
			break
		}
		if q == "" ||
			strings.Contains(fold.String(e.Name), q) ||
			strings.Contains(fold.String(e.EmployeeCode), q) ||
			strings.Contains(fold.String(e.IDCardNumber), q) ||
			strings.Contains(fold.String(e.Department), q) {
			matches = append(matches, e)
		}
	}
	return matches, nil
}

const mealConfigColumns = `user_id, breakfast_location, lunch_location, dinner_location, night_meal_location, morning_meal_location`

func scanMealConfig(row interface{ Scan(...any) error }) (model.MealConfig, error) {
	var (
		c                                            model.MealConfig
		breakfast, lunch, dinner, night, morningMeal sql.NullInt64
	)
	if err := row.Scan(&c.UserID, &breakfast, &lunch, &dinner, &night, &morningMeal); err != nil {
		return model.MealConfig{}, err
	}
	c.Breakfast = int64Ptr(breakfast)
	c.Lunch = int64Ptr(lunch)
	c.Dinner = int64Ptr(dinner)
	c.NightMeal = int64Ptr(night)
	c.MorningMeal = int64Ptr(morningMeal)
	return c, nil
}

// MealConfig returns the employee's default meal configuration.
func (s *Store) MealConfig(ctx context.Context, userID string) (model.MealConfig, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mealConfigColumns+` FROM meal_configs WHERE user_id = ?`, userID)
	c, err := scanMealConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MealConfig{}, false, nil
	}
	if err != nil {
		return model.MealConfig{}, false, fmt.Errorf("get meal config: %w", err)
	}
	return c, true, nil
}

// MealConfigs returns every meal configuration ordered by user id.
func (s *Store) MealConfigs(ctx context.Context) ([]model.MealConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+mealConfigColumns+` FROM meal_configs ORDER BY user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query meal configs: %w", err)
	}
	defer rows.Close()

	configs := []model.MealConfig{}
	for rows.Next() {
		c, err := scanMealConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meal config: %w", err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meal configs: %w", err)
	}
	return configs, nil
}

// ReplaceOverrides clears the override table and inserts overrides.
func (s *Store) ReplaceOverrides(ctx context.Context, overrides []model.Override) error {
	return s.inTx(ctx, "replace overrides", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM daily_overrides`); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		for _, o := range overrides {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO daily_overrides (id, user_id, bteg_id, date, meal_type, dining_hall_id, note)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO NOTHING
			`, o.ID, o.UserID, o.BtegID, o.Date, o.MealType, o.DiningHallID, nullString(o.Note))
			if err != nil {
				return fmt.Errorf("insert override %d: %w", o.ID, err)
			}
		}
		return nil
	}, TableOverrides)
}

const overrideColumns = `id, user_id, bteg_id, date, meal_type, dining_hall_id, note`

func scanOverride(row interface{ Scan(...any) error }) (model.Override, error) {
	var (
		o    model.Override
		note sql.NullString
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.BtegID, &o.Date, &o.MealType, &o.DiningHallID, &note); err != nil {
		return model.Override{}, err
	}
	o.Note = stringPtr(note)
	return o, nil
}

// OverrideFor returns the first override (lowest id) for the employee, date
// and meal slot.
func (s *Store) OverrideFor(ctx context.Context, userID, date, mealType string) (model.Override, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+overrideColumns+`
		FROM daily_overrides
		WHERE user_id = ? AND date = ? AND meal_type = ?
		ORDER BY id ASC
		LIMIT 1
	`, userID, date, mealType)
	o, err := scanOverride(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Override{}, false, nil
	}
	if err != nil {
		return model.Override{}, false, fmt.Errorf("get override: %w", err)
	}
	return o, true, nil
}

// OverridesOn returns every override for date ordered by id.
func (s *Store) OverridesOn(ctx context.Context, date string) ([]model.Override, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+overrideColumns+`
		FROM daily_overrides
		WHERE date = ?
		ORDER BY id ASC
	`, date)
	if err != nil {
		return nil, fmt.Errorf("query overrides: %w", err)
	}
	defer rows.Close()

	overrides := []model.Override{}
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		overrides = append(overrides, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overrides: %w", err)
	}
	return overrides, nil
}

// ClearReferenceData empties employees, meal configs, dining halls and chefs
// ahead of a forced resync.
func (s *Store) ClearReferenceData(ctx context.Context) error {
	return s.inTx(ctx, "clear reference data", func(tx *sql.Tx) error {
		for _, table := range []Table{TableEmployees, TableMealConfigs, TableDiningHalls, TableChefs} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+string(table)); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	}, TableEmployees, TableMealConfigs, TableDiningHalls, TableChefs)
}

// Wipe is the administrative reset: it clears employees, meal configs,
// dining halls, chefs, meal logs, daily overrides and sync history. Meal slots
// and kiosk configuration are preserved.
func (s *Store) Wipe(ctx context.Context) error {
	tables := []Table{TableEmployees, TableMealConfigs, TableDiningHalls, TableChefs, TableMealLogs, TableOverrides, TableSyncRuns}
	return s.inTx(ctx, "wipe", func(tx *sql.Tx) error {
		for _, table := range tables {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+string(table)); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	}, tables...)
}
