package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/mealkiosk/internal/model"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEmployee creates an active employee whose id-card number and code
// are derived from id.
func createTestEmployee(id string) model.Employee {
	return model.Employee{
		ID:           id,
		EmployeeCode: "E-" + id,
		IDCardNumber: "CARD-" + id,
		Name:         "Employee " + id,
		Department:   "Ops",
		IsActive:     true,
	}
}

// createTestMealLog creates a pending ordinary lunch log at hall 3.
func createTestMealLog(userID, date string) model.MealLog {
	return model.MealLog{
		UserID:       userID,
		IDCardNumber: "CARD-" + userID,
		EmployeeName: "Employee " + userID,
		MealType:     model.SlotLunch,
		DiningHallID: 3,
		Date:         date,
		ScannedAt:    time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		SyncKey:      model.SyncKey(userID, model.SlotLunch, date),
	}
}
