package scan

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/roach88/mealkiosk/internal/clock"
	"github.com/roach88/mealkiosk/internal/model"
)

// ErrEmployeeNotFound is returned by ManualEntry for unknown employee ids.
var ErrEmployeeNotFound = errors.New("scan: employee not found")

// ManualEntry records the current meal for employeeID from the admin screen.
// It bypasses authorization but not the duplicate check, and does not touch
// the scan state machine. The record shares the ordinary per-day sync key, so
// it can never coexist with a scanned or approved record for the same meal.
func (p *Processor) ManualEntry(ctx context.Context, employeeID string) (Outcome, error) {
	emp, ok, err := p.store.Employee(ctx, employeeID)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return Outcome{}, ErrEmployeeNotFound
	}

	slot, err := p.slots.Current(ctx)
	if err != nil {
		return Outcome{}, err
	}
	ks, err := p.store.KioskSettings(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if slot == nil || !ks.HasDiningHall {
		return Outcome{Kind: KindError, Code: CodeNotMealPeriod, Message: "meal period or dining hall not configured", EmployeeName: emp.Name}, nil
	}

	now := p.clock.Now()
	date := clock.Date(now)

	existing, dup, err := p.store.FindMealLog(ctx, emp.ID, slot.ID, date)
	if err != nil {
		return Outcome{}, err
	}
	if dup {
		return *alreadyRecorded(emp.Name, slot.Name, existing), nil
	}

	l := newLog(ks, emp.ID, emp.IDCardNumber, emp.Name, slot.ID, date, now)
	l.IsManualOverride = true
	l.SyncKey = model.SyncKey(emp.ID, slot.ID, date)

	stored, inserted, err := p.store.CreateMealLog(ctx, l)
	if err != nil {
		return Outcome{}, err
	}
	if !inserted {
		return *alreadyRecorded(emp.Name, slot.Name, stored), nil
	}
	p.logger.Info("manual entry", zap.String("employee", emp.ID), zap.String("meal", slot.ID))
	return Outcome{Kind: KindSuccess, Code: CodeManualApproved, Message: "recorded", EmployeeName: emp.Name, MealName: slot.Name, Log: &stored}, nil
}

// Login authenticates an active chef by PIN and stores them as the kiosk's
// operator. Subsequent records carry their id.
func (p *Processor) Login(ctx context.Context, pin string) (model.Chef, error) {
	if pin == "" {
		return model.Chef{}, ErrInvalidPIN
	}
	chef, ok, err := p.store.ChefByPIN(ctx, pin)
	if err != nil {
		return model.Chef{}, err
	}
	if !ok {
		p.logger.Warn("chef login rejected")
		return model.Chef{}, ErrInvalidPIN
	}
	if err := p.store.SetConfigs(ctx, map[string]string{
		model.KeyActiveChefID:   strconv.FormatInt(chef.ID, 10),
		model.KeyActiveChefName: chef.Name,
	}); err != nil {
		return model.Chef{}, err
	}
	p.logger.Info("chef logged in", zap.Int64("chef", chef.ID))
	return chef, nil
}

// Logout clears the active chef.
func (p *Processor) Logout(ctx context.Context) error {
	return p.store.DeleteConfig(ctx, model.KeyActiveChefID, model.KeyActiveChefName)
}

// VerifyAdminPIN checks pin against the stored admin PIN, falling back to the
// seeded default when none is stored.
func (p *Processor) VerifyAdminPIN(ctx context.Context, pin string) error {
	want, ok, err := p.store.GetConfig(ctx, model.KeyAdminPIN)
	if err != nil {
		return err
	}
	if !ok {
		want = model.DefaultAdminPIN
	}
	if subtle.ConstantTimeCompare([]byte(pin), []byte(want)) != 1 {
		return ErrInvalidPIN
	}
	return nil
}
