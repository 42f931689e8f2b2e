// Package clock abstracts wall-clock time for the kiosk.
//
// Meal periods, service dates and sync timestamps are all derived from the
// kiosk's local wall clock. Components take a Clock so tests can pin time.
package clock

import "time"

// DateLayout formats local calendar dates (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// Clock reports the current wall-clock time.
//
// Thread-safety: implementations must be safe for concurrent use.
type Clock interface {
	Now() time.Time
}

// System is the real wall clock in the process's local time zone.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time {
	return time.Now()
}

// Func adapts a function to the Clock interface.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time {
	return f()
}

// Date returns the local calendar date of t as YYYY-MM-DD.
func Date(t time.Time) string {
	return t.Format(DateLayout)
}

// MinuteOfDay returns minutes since local midnight.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
