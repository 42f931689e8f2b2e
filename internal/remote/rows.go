package remote

import (
	"strings"
	"time"

	"github.com/roach88/mealkiosk/internal/model"
)

// Column lists requested from each table.
var (
	UserColumns = []string{
		"id", "bteg_id", "idcard_number", "first_name", "last_name", "nice_name",
		"department_name", "heltes_name", "position_name", "is_active",
	}
	DiningHallColumns = []string{"id", "name", "location"}
	ChefColumns       = []string{"id", "name", "dining_hall_id", "pin", "is_active"}
	OverrideColumns   = []string{"id", "user_id", "bteg_id", "date", "meal_type", "dining_hall_id", "note"}
)

// MealLocationColumns are the per-meal hall columns of user_meal_configs.
var MealLocationColumns = []string{
	"breakfast_location",
	"lunch_location",
	"dinner_location",
	"night_meal_location",
	"morning_meal_location",
}

// DefaultChefPIN is used when the backend has no PIN for a chef.
const DefaultChefPIN = "0000"

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// UserRow is a users row.
type UserRow struct {
	ID             string  `json:"id"`
	BtegID         *string `json:"bteg_id"`
	IDCardNumber   *string `json:"idcard_number"`
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	NiceName       *string `json:"nice_name"`
	DepartmentName *string `json:"department_name"`
	HeltesName     *string `json:"heltes_name"`
	PositionName   *string `json:"position_name"`
	IsActive       *bool   `json:"is_active"`
}

// Employee maps the row to the local record. The display name prefers
// nice_name and falls back to "last first". A missing is_active counts as
// active.
func (u UserRow) Employee() model.Employee {
	name := str(u.NiceName)
	if name == "" {
		name = strings.TrimSpace(str(u.LastName) + " " + str(u.FirstName))
	}
	return model.Employee{
		ID:           u.ID,
		EmployeeCode: str(u.BtegID),
		IDCardNumber: str(u.IDCardNumber),
		Name:         name,
		Department:   str(u.DepartmentName),
		Position:     str(u.PositionName),
		HeltesName:   str(u.HeltesName),
		IsActive:     u.IsActive == nil || *u.IsActive,
	}
}

// MealConfigRow is a user_meal_configs row.
type MealConfigRow struct {
	UserID              string `json:"user_id"`
	BreakfastLocation   *int64 `json:"breakfast_location"`
	LunchLocation       *int64 `json:"lunch_location"`
	DinnerLocation      *int64 `json:"dinner_location"`
	NightMealLocation   *int64 `json:"night_meal_location"`
	MorningMealLocation *int64 `json:"morning_meal_location"`
}

// MealConfig maps the row to the local record.
func (c MealConfigRow) MealConfig() model.MealConfig {
	return model.MealConfig{
		UserID:      c.UserID,
		Breakfast:   c.BreakfastLocation,
		Lunch:       c.LunchLocation,
		Dinner:      c.DinnerLocation,
		NightMeal:   c.NightMealLocation,
		MorningMeal: c.MorningMealLocation,
	}
}

// DiningHallRow is a dining_hall row.
type DiningHallRow struct {
	ID       int64   `json:"id"`
	Name     *string `json:"name"`
	Location *string `json:"location"`
}

// DiningHall maps the row to the local record.
func (h DiningHallRow) DiningHall() model.DiningHall {
	return model.DiningHall{ID: h.ID, Name: str(h.Name), Location: str(h.Location)}
}

// ChefRow is a chefs row. ID is omitted on insert so the backend assigns it.
type ChefRow struct {
	ID           int64   `json:"id,omitempty"`
	Name         *string `json:"name"`
	DiningHallID int64   `json:"dining_hall_id"`
	PIN          *string `json:"pin"`
	IsActive     *bool   `json:"is_active"`
}

// Chef maps the row to the local record.
func (c ChefRow) Chef() model.Chef {
	pin := str(c.PIN)
	if pin == "" {
		pin = DefaultChefPIN
	}
	return model.Chef{
		ID:           c.ID,
		Name:         str(c.Name),
		DiningHallID: c.DiningHallID,
		PIN:          pin,
		IsActive:     c.IsActive == nil || *c.IsActive,
	}
}

// OverrideRow is a meal_location_overrides row.
type OverrideRow struct {
	ID           int64   `json:"id"`
	UserID       string  `json:"user_id"`
	BtegID       *string `json:"bteg_id"`
	Date         string  `json:"date"`
	MealType     string  `json:"meal_type"`
	DiningHallID int64   `json:"dining_hall_id"`
	Note         *string `json:"note"`
}

// Override maps the row to the local record. An empty note is dropped.
func (o OverrideRow) Override() model.Override {
	var note *string
	if str(o.Note) != "" {
		note = o.Note
	}
	return model.Override{
		ID:           o.ID,
		UserID:       o.UserID,
		BtegID:       str(o.BtegID),
		Date:         o.Date,
		MealType:     o.MealType,
		DiningHallID: o.DiningHallID,
		Note:         note,
	}
}

// MealLogRow is the pushed form of an attendance record.
type MealLogRow struct {
	UserID           string  `json:"user_id"`
	DiningHallID     int64   `json:"dining_hall_id"`
	MealType         string  `json:"meal_type"`
	ScannedAt        string  `json:"scanned_at"`
	Date             string  `json:"date"`
	ChefID           *int64  `json:"chef_id"`
	IsExtraServing   bool    `json:"is_extra_serving"`
	IsManualOverride bool    `json:"is_manual_override"`
	DeviceUUID       *string `json:"device_uuid"`
	SyncKey          string  `json:"sync_key"`
}

// NewMealLogRow builds the pushed form of l.
func NewMealLogRow(l model.MealLog) MealLogRow {
	return MealLogRow{
		UserID:           l.UserID,
		DiningHallID:     l.DiningHallID,
		MealType:         l.MealType,
		ScannedAt:        l.ScannedAt.UTC().Format(time.RFC3339Nano),
		Date:             l.Date,
		ChefID:           l.ChefID,
		IsExtraServing:   l.IsExtraServing,
		IsManualOverride: l.IsManualOverride,
		DeviceUUID:       l.DeviceUUID,
		SyncKey:          l.SyncKey,
	}
}

// KioskRow is a kiosks row, keyed by device_uuid.
type KioskRow struct {
	DeviceName    string `json:"device_name"`
	DiningHallID  *int64 `json:"dining_hall_id"`
	DeviceUUID    string `json:"device_uuid"`
	IsActive      bool   `json:"is_active"`
	LastHeartbeat string `json:"last_heartbeat"`
}
