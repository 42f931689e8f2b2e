package model

import "time"

// Employee is a replicated identity record.
type Employee struct {
	ID           string `json:"id"`
	EmployeeCode string `json:"employee_code"`
	IDCardNumber string `json:"idcard_number"`
	Name         string `json:"name"`
	Department   string `json:"department"`
	Position     string `json:"position"`
	HeltesName   string `json:"heltes_name"`
	IsActive     bool   `json:"is_active"`
}

// MealConfig is an employee's standing per-meal dining hall assignment.
// A nil field means the meal is not configured.
type MealConfig struct {
	UserID      string `json:"user_id"`
	Breakfast   *int64 `json:"breakfast_location"`
	Lunch       *int64 `json:"lunch_location"`
	Dinner      *int64 `json:"dinner_location"`
	NightMeal   *int64 `json:"night_meal_location"`
	MorningMeal *int64 `json:"morning_meal_location"`
}

// Override redirects one employee to a dining hall for one meal on one date.
type Override struct {
	ID           int64   `json:"id"`
	UserID       string  `json:"user_id"`
	BtegID       string  `json:"bteg_id"`
	Date         string  `json:"date"`
	MealType     string  `json:"meal_type"`
	DiningHallID int64   `json:"dining_hall_id"`
	Note         *string `json:"note,omitempty"`
}

// DiningHall is a physical serving location.
type DiningHall struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Chef is an operator allowed to authenticate at the kiosk.
type Chef struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	DiningHallID int64  `json:"dining_hall_id"`
	PIN          string `json:"-"`
	IsActive     bool   `json:"is_active"`
}

// MealSlot is a named period of the day. When EndTime <= StartTime the slot
// spans midnight.
type MealSlot struct {
	ID        string `json:"id" validate:"required,max=64"`
	Name      string `json:"name" validate:"required"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
	IsActive  bool   `json:"is_active"`
	SortOrder int    `json:"sort_order" validate:"gte=0"`
}

// SyncStatus is the delivery state of a MealLog.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// MealLog is one attendance record. Employee fields are a snapshot taken at
// scan time.
type MealLog struct {
	ID               int64      `json:"id"`
	UserID           string     `json:"user_id"`
	IDCardNumber     string     `json:"idcard_number"`
	EmployeeName     string     `json:"employee_name"`
	MealType         string     `json:"meal_type"`
	DiningHallID     int64      `json:"dining_hall_id"`
	Date             string     `json:"date"`
	ScannedAt        time.Time  `json:"scanned_at"`
	SyncStatus       SyncStatus `json:"sync_status"`
	IsExtraServing   bool       `json:"is_extra_serving"`
	IsManualOverride bool       `json:"is_manual_override"`
	ChefID           *int64     `json:"chef_id"`
	DeviceUUID       *string    `json:"device_uuid"`
	SyncKey          string     `json:"sync_key"`
}

// UnknownUserID is the sentinel employee id for manually approved scans of
// codes that matched no local employee.
const UnknownUserID = "unknown"

// SyncOp names a sync operation in the run history.
type SyncOp string

const (
	OpPullDiningHalls SyncOp = "pull-dining-halls"
	OpPullChefs       SyncOp = "pull-chefs"
	OpPullEmployees   SyncOp = "pull-employees"
	OpPullOverrides   SyncOp = "pull-overrides"
	OpPushMealLogs    SyncOp = "push-meal-logs"
	OpHeartbeat       SyncOp = "heartbeat"
)

// SyncRunStatus is the lifecycle state of a SyncRun.
type SyncRunStatus string

const (
	RunStarted SyncRunStatus = "started"
	RunSuccess SyncRunStatus = "success"
	RunFailed  SyncRunStatus = "failed"
)

// SyncRun is one entry of the append-only sync history.
type SyncRun struct {
	ID          int64         `json:"id"`
	Type        SyncOp        `json:"type"`
	Status      SyncRunStatus `json:"status"`
	RecordCount int           `json:"record_count"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Kiosk configuration keys.
const (
	KeyDiningHallID        = "dining_hall_id"
	KeyBackendURL          = "backend_url"
	KeyBackendKey          = "backend_key"
	KeyDeviceUUID          = "device_uuid"
	KeyDeviceName          = "device_name"
	KeyAdminPIN            = "admin_pin"
	KeySyncIntervalMinutes = "sync_interval_minutes"
	KeyLastPullAt          = "last_pull_at"
	KeyLastPushAt          = "last_push_at"
	KeyActiveChefID        = "active_chef_id"
	KeyActiveChefName      = "active_chef_name"
)

// ConfigKeys lists every recognised kiosk configuration key.
var ConfigKeys = []string{
	KeyDiningHallID,
	KeyBackendURL,
	KeyBackendKey,
	KeyDeviceUUID,
	KeyDeviceName,
	KeyAdminPIN,
	KeySyncIntervalMinutes,
	KeyLastPullAt,
	KeyLastPushAt,
	KeyActiveChefID,
	KeyActiveChefName,
}

// DefaultAdminPIN is seeded on first run.
const DefaultAdminPIN = "1234"

// KioskSettings is the subset of kiosk configuration read on every scan.
type KioskSettings struct {
	DiningHallID   int64
	HasDiningHall  bool
	ActiveChefID   *int64
	ActiveChefName string
	DeviceUUID     string
}
