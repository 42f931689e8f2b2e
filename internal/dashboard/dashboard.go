// Package dashboard computes expected and served headcounts for a hall.
//
// Expected headcount applies the same override precedence as authz: an
// employee is counted at the hall their override names, or at their default
// hall when no override exists for the date and meal.
package dashboard

import (
	"context"
	"fmt"

	"github.com/roach88/mealkiosk/internal/clock"
	"github.com/roach88/mealkiosk/internal/model"
	"github.com/roach88/mealkiosk/internal/store"
)

// Counts is the headcount for one hall, meal and date.
type Counts struct {
	Expected  int `json:"expected"`
	Served    int `json:"served"`
	Manual    int `json:"manual"`
	Extra     int `json:"extra"`
	Remaining int `json:"remaining"`

	// Breakdown of Expected.
	DefaultHere int `json:"default_here"`
	Inbound     int `json:"inbound"`
	Away        int `json:"away"`
}

// Source is the local data the aggregator reads.
type Source interface {
	MealConfigs(ctx context.Context) ([]model.MealConfig, error)
	OverridesOn(ctx context.Context, date string) ([]model.Override, error)
	ServedCounts(ctx context.Context, date, mealType string, hallID int64) (store.ServedCounts, error)
	KioskSettings(ctx context.Context) (model.KioskSettings, error)
	CountPending(ctx context.Context) (int, error)
	DiningHall(ctx context.Context, id int64) (model.DiningHall, bool, error)
}

// SlotTracker reports the active meal slot.
type SlotTracker interface {
	Current(ctx context.Context) (*model.MealSlot, error)
}

// Aggregator computes Counts and Summary.
type Aggregator struct {
	src     Source
	tracker SlotTracker
	clock   clock.Clock
}

// New creates an aggregator.
func New(src Source, tracker SlotTracker, c clock.Clock) *Aggregator {
	if c == nil {
		c = clock.System{}
	}
	return &Aggregator{src: src, tracker: tracker, clock: c}
}

// Expected computes the expected headcount from configs and the date's
// overrides for slotID:
//
//	expected = defaultHere + inbound - away
//
// inbound counts overridden employees whose default is not already this hall,
// and away counts employees defaulting here who are overridden elsewhere, so
// nobody is counted twice and the result is never negative. Slots without a
// dedicated configuration field expect every configured employee.
func Expected(configs []model.MealConfig, overrides []model.Override, hallID int64, slotID string) (expected, defaultHere, inbound, away int) {
	if !model.HasDedicatedField(slotID) {
		return len(configs), len(configs), 0, 0
	}

	here := make(map[string]bool)
	for i := range configs {
		hall, _ := configs[i].HallFor(slotID)
		if hall != nil && *hall == hallID {
			here[configs[i].UserID] = true
		}
	}

	// The first override per employee (lowest id) is the effective one.
	effective := make(map[string]model.Override)
	for _, o := range overrides {
		if o.MealType != slotID {
			continue
		}
		if cur, ok := effective[o.UserID]; !ok || o.ID < cur.ID {
			effective[o.UserID] = o
		}
	}

	for userID, o := range effective {
		switch {
		case o.DiningHallID == hallID && !here[userID]:
			inbound++
		case o.DiningHallID != hallID && here[userID]:
			away++
		}
	}

	defaultHere = len(here)
	return defaultHere + inbound - away, defaultHere, inbound, away
}

// Counts returns the headcount for hallID, slotID and date.
func (a *Aggregator) Counts(ctx context.Context, hallID int64, slotID, date string) (Counts, error) {
	configs, err := a.src.MealConfigs(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("counts: %w", err)
	}
	overrides, err := a.src.OverridesOn(ctx, date)
	if err != nil {
		return Counts{}, fmt.Errorf("counts: %w", err)
	}
	served, err := a.src.ServedCounts(ctx, date, slotID, hallID)
	if err != nil {
		return Counts{}, fmt.Errorf("counts: %w", err)
	}

	var c Counts
	c.Expected, c.DefaultHere, c.Inbound, c.Away = Expected(configs, overrides, hallID, slotID)
	c.Served = served.Total
	c.Manual = served.Manual
	c.Extra = served.Extra
	c.Remaining = max(0, c.Expected-c.Served)
	return c, nil
}

// Summary is the kiosk status shown to operators.
type Summary struct {
	Date         string            `json:"date"`
	DiningHall   *model.DiningHall `json:"dining_hall,omitempty"`
	DiningHallID *int64            `json:"dining_hall_id,omitempty"`
	Meal         *model.MealSlot   `json:"meal,omitempty"`
	Counts       *Counts           `json:"counts,omitempty"`
	ChefName     string            `json:"chef_name,omitempty"`
	Pending      int               `json:"pending"`
}

// Summary reports today's counts for the configured hall and active meal.
// Counts is nil when no hall is configured or no meal is active.
func (a *Aggregator) Summary(ctx context.Context) (Summary, error) {
	now := a.clock.Now()
	s := Summary{Date: clock.Date(now)}

	ks, err := a.src.KioskSettings(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}
	s.ChefName = ks.ActiveChefName

	if s.Pending, err = a.src.CountPending(ctx); err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}
	if s.Meal, err = a.tracker.Current(ctx); err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}

	if !ks.HasDiningHall {
		return s, nil
	}
	hallID := ks.DiningHallID
	s.DiningHallID = &hallID
	if hall, ok, err := a.src.DiningHall(ctx, hallID); err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	} else if ok {
		s.DiningHall = &hall
	}

	if s.Meal == nil {
		return s, nil
	}
	c, err := a.Counts(ctx, hallID, s.Meal.ID, s.Date)
	if err != nil {
		return Summary{}, err
	}
	s.Counts = &c
	return s, nil
}
