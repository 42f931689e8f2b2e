package model

import (
	"fmt"
	"time"
)

// SyncKey is the idempotency key of an ordinary attendance record. It is
// deterministic, so a second non-extra record for the same employee, meal and
// date collides locally and is ignored remotely.
func SyncKey(userID, mealType, date string) string {
	return fmt.Sprintf("%s-%s-%s", userID, mealType, date)
}

// ExtraSyncKey salts the ordinary key with the approval time so extra
// servings never collide with each other or with the first serving.
func ExtraSyncKey(userID, mealType, date string, at time.Time) string {
	return fmt.Sprintf("%s-extra-%d", SyncKey(userID, mealType, date), at.UnixMilli())
}

// ManualSyncKey is used for operator-entered records. subject is the employee
// id, or the scanned code for unknown employees.
func ManualSyncKey(subject, mealType, date string, at time.Time) string {
	return fmt.Sprintf("manual-%s-%s-%s-%d", subject, mealType, date, at.UnixMilli())
}
