// Package authz decides whether and where an employee may be served a meal.
//
// A daily override for (employee, date, meal) fully supersedes the default
// meal configuration. Slots without a dedicated configuration field are
// authorized anywhere for any employee who has a configuration row.
package authz

import (
	"context"
	"fmt"

	"github.com/roach88/mealkiosk/internal/model"
)

// Kind is the outcome category of a Decision.
type Kind int

const (
	// Denied means the employee is not authorized for the meal.
	Denied Kind = iota
	// Allowed means the employee is authorized at Decision.HallID.
	Allowed
	// AllowedAnywhere means the employee is authorized at every hall.
	AllowedAnywhere
)

func (k Kind) String() string {
	switch k {
	case Allowed:
		return "allowed"
	case AllowedAnywhere:
		return "allowed_anywhere"
	default:
		return "denied"
	}
}

// Denial reasons.
const (
	ReasonNoConfiguration   = "no configuration"
	ReasonMealNotConfigured = "meal not configured"
)

// Decision is the result of resolving one employee, meal and date.
type Decision struct {
	Kind   Kind
	HallID int64
	Reason string
	// FromOverride is true when HallID came from a daily override.
	FromOverride bool
}

// AllowsHall reports whether the decision permits service at hallID.
func (d Decision) AllowsHall(hallID int64) bool {
	switch d.Kind {
	case AllowedAnywhere:
		return true
	case Allowed:
		return d.HallID == hallID
	}
	return false
}

// Decide applies the authorization rule. cfg and ov may be nil; ov must
// already be the override for the same employee, date and slot.
func Decide(cfg *model.MealConfig, ov *model.Override, slotID string) Decision {
	if !model.HasDedicatedField(slotID) {
		if cfg == nil {
			return Decision{Kind: Denied, Reason: ReasonNoConfiguration}
		}
		return Decision{Kind: AllowedAnywhere}
	}

	if ov != nil {
		return Decision{Kind: Allowed, HallID: ov.DiningHallID, FromOverride: true}
	}

	if cfg == nil {
		return Decision{Kind: Denied, Reason: ReasonNoConfiguration}
	}
	hall, _ := cfg.HallFor(slotID)
	if hall == nil {
		return Decision{Kind: Denied, Reason: ReasonMealNotConfigured}
	}
	return Decision{Kind: Allowed, HallID: *hall}
}

// Source is the local data the resolver reads.
type Source interface {
	MealConfig(ctx context.Context, userID string) (model.MealConfig, bool, error)
	OverrideFor(ctx context.Context, userID, date, mealType string) (model.Override, bool, error)
}

// Resolver loads configuration and overrides and applies Decide.
type Resolver struct {
	src Source
}

// NewResolver creates a resolver over src.
func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// Resolve decides authorization for employeeID, slotID and date (YYYY-MM-DD).
func (r *Resolver) Resolve(ctx context.Context, employeeID, slotID, date string) (Decision, error) {
	if model.HasDedicatedField(slotID) {
		o, ok, err := r.src.OverrideFor(ctx, employeeID, date, slotID)
		if err != nil {
			return Decision{}, fmt.Errorf("resolve %s: %w", employeeID, err)
		}
		if ok {
			return Decide(nil, &o, slotID), nil
		}
	}

	c, ok, err := r.src.MealConfig(ctx, employeeID)
	if err != nil {
		return Decision{}, fmt.Errorf("resolve %s: %w", employeeID, err)
	}
	var cfg *model.MealConfig
	if ok {
		cfg = &c
	}
	return Decide(cfg, nil, slotID), nil
}
