// Package mealclock maps wall-clock time to the active meal slot.
//
// A slot whose end is not after its start spans midnight. When several active
// slots contain the current minute the one with the lowest sort order wins.
package mealclock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/roach88/mealkiosk/internal/clock"
	"github.com/roach88/mealkiosk/internal/model"
)

// ParseHHMM converts "HH:MM" to minutes since midnight.
func ParseHHMM(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether minute falls inside the slot. Slots with an
// unparseable start or end never match.
func Contains(slot model.MealSlot, minute int) bool {
	start, err := ParseHHMM(slot.StartTime)
	if err != nil {
		return false
	}
	end, err := ParseHHMM(slot.EndTime)
	if err != nil {
		return false
	}
	if end > start {
		return start <= minute && minute < end
	}
	return minute >= start || minute < end
}

// Active returns the active slot containing now, or nil.
func Active(slots []model.MealSlot, now time.Time) *model.MealSlot {
	minute := clock.MinuteOfDay(now)

	active := make([]model.MealSlot, 0, len(slots))
	for _, s := range slots {
		if s.IsActive {
			active = append(active, s)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].SortOrder < active[j].SortOrder
	})

	for i := range active {
		if Contains(active[i], minute) {
			slot := active[i]
			return &slot
		}
	}
	return nil
}

// SlotSource loads the configured schedule.
type SlotSource interface {
	MealSlots(ctx context.Context) ([]model.MealSlot, error)
}

// Tracker caches the active slot. The cache is recomputed when the
// wall-clock minute changes or after Invalidate.
type Tracker struct {
	source SlotSource
	clock  clock.Clock

	mu      sync.Mutex
	valid   bool
	minute  time.Time
	current *model.MealSlot
}

// NewTracker creates a tracker reading slots from source.
func NewTracker(source SlotSource, c clock.Clock) *Tracker {
	if c == nil {
		c = clock.System{}
	}
	return &Tracker{source: source, clock: c}
}

// Current returns the active slot at the clock's current time, or nil.
func (t *Tracker) Current(ctx context.Context) (*model.MealSlot, error) {
	now := t.clock.Now()
	minute := now.Truncate(time.Minute)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.valid && t.minute.Equal(minute) {
		return copySlot(t.current), nil
	}

	slots, err := t.source.MealSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load meal slots: %w", err)
	}
	t.current = Active(slots, now)
	t.minute = minute
	t.valid = true
	return copySlot(t.current), nil
}

// Invalidate forces the next Current call to reload the schedule. Wire it to
// meal slot changes in the store.
func (t *Tracker) Invalidate() {
	t.mu.Lock()
	t.valid = false
	t.mu.Unlock()
}

func copySlot(s *model.MealSlot) *model.MealSlot {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
