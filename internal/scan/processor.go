// Package scan turns scanned badge payloads into attendance records.
//
// A Processor is a small state machine:
//
//	Idle -> Processing -> Result -> Idle
//	            |
//	            +-> AwaitingDecision -> Result | Idle
//
// Processing evaluates the checks in a fixed order and stops at the first
// failure. Unknown employees, missing authorization and double scans are
// escalated to the operator instead of failing. Every accepted path writes
// exactly one MealLog.
//
// Thread-safety: all methods are safe for concurrent use. A scan arriving
// while another is processing or while a decision is open returns ErrBusy.
package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/mealkiosk/internal/authz"
	"github.com/roach88/mealkiosk/internal/clock"
	"github.com/roach88/mealkiosk/internal/model"
)

// DefaultResultDisplay is how long a terminal outcome stays visible.
const DefaultResultDisplay = 4 * time.Second

// Store is the local data the processor reads and writes.
type Store interface {
	authz.Source
	KioskSettings(ctx context.Context) (model.KioskSettings, error)
	EmployeeByIDCard(ctx context.Context, idcard string) (model.Employee, bool, error)
	EmployeeByCode(ctx context.Context, code string) (model.Employee, bool, error)
	Employee(ctx context.Context, id string) (model.Employee, bool, error)
	DiningHall(ctx context.Context, id int64) (model.DiningHall, bool, error)
	FindMealLog(ctx context.Context, userID, mealType, date string) (model.MealLog, bool, error)
	CreateMealLog(ctx context.Context, l model.MealLog) (model.MealLog, bool, error)
	ChefByPIN(ctx context.Context, pin string) (model.Chef, bool, error)
	GetConfig(ctx context.Context, key string) (string, bool, error)
	SetConfigs(ctx context.Context, values map[string]string) error
	DeleteConfig(ctx context.Context, keys ...string) error
}

// SlotTracker reports the active meal slot.
type SlotTracker interface {
	Current(ctx context.Context) (*model.MealSlot, error)
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock sets the wall clock. Defaults to clock.System.
func WithClock(c clock.Clock) Option {
	return func(p *Processor) { p.clock = c }
}

// WithResultDisplay sets how long outcomes stay in the Result state.
func WithResultDisplay(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.display = d
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// Processor runs the scan decision procedure for one kiosk.
type Processor struct {
	store    Store
	resolver *authz.Resolver
	slots    SlotTracker
	clock    clock.Clock
	display  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	state   State
	outcome *Outcome
	prompt  *Prompt
	expires time.Time
}

// New creates an idle processor.
func New(st Store, slots SlotTracker, opts ...Option) *Processor {
	p := &Processor{
		store:    st,
		resolver: authz.NewResolver(st),
		slots:    slots,
		clock:    clock.System{},
		display:  DefaultResultDisplay,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current snapshot. An expired result reads as Idle.
func (p *Processor) State() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expireLocked(p.clock.Now())
	return p.snapshotLocked()
}

// Scan evaluates payload. It returns ErrBusy when a scan is processing or a
// decision is open; a visible result is replaced by the new scan.
func (p *Processor) Scan(ctx context.Context, payload string) (Snapshot, error) {
	if err := p.begin(func(s State) error {
		if s == Processing || s == AwaitingDecision {
			return ErrBusy
		}
		return nil
	}); err != nil {
		return p.State(), err
	}

	out, prompt := p.guard("scan", func() (*Outcome, *Prompt, error) {
		return p.evaluate(ctx, payload)
	})
	return p.finish(out, prompt), nil
}

// Cancel discards the open decision without side effects.
func (p *Processor) Cancel() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != AwaitingDecision {
		return ErrNoPendingDecision
	}
	p.logger.Debug("decision cancelled", zap.String("prompt", string(p.prompt.Kind)))
	p.resetLocked()
	return nil
}

// Dismiss clears a visible result. It is a no-op in other states.
func (p *Processor) Dismiss() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Result {
		p.resetLocked()
	}
}

// ApproveManual records the open unauthorized scan as a manual override.
func (p *Processor) ApproveManual(ctx context.Context) (Snapshot, error) {
	return p.decide(ctx, PromptUnauthorized, p.approveManual)
}

// ApproveExtra records the open double scan as an extra serving.
func (p *Processor) ApproveExtra(ctx context.Context) (Snapshot, error) {
	return p.decide(ctx, PromptDoubleScan, p.approveExtra)
}

func (p *Processor) decide(ctx context.Context, want PromptKind, fn func(context.Context, Prompt) (*Outcome, error)) (Snapshot, error) {
	var prompt Prompt
	if err := p.begin(func(s State) error {
		if s != AwaitingDecision {
			return ErrNoPendingDecision
		}
		if p.prompt.Kind != want {
			return ErrWrongDecision
		}
		prompt = *p.prompt
		return nil
	}); err != nil {
		return p.State(), err
	}

	out, _ := p.guard("approve "+string(want), func() (*Outcome, *Prompt, error) {
		o, err := fn(ctx, prompt)
		return o, nil, err
	})
	return p.finish(out, nil), nil
}

// begin moves to Processing when check passes.
func (p *Processor) begin(check func(State) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expireLocked(p.clock.Now())
	if err := check(p.state); err != nil {
		return err
	}
	p.state = Processing
	p.outcome = nil
	return nil
}

// finish leaves Processing with either a terminal outcome or a prompt.
func (p *Processor) finish(out *Outcome, prompt *Prompt) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prompt != nil {
		p.state = AwaitingDecision
		p.prompt = prompt
		p.outcome = nil
	} else {
		p.state = Result
		p.prompt = nil
		p.outcome = out
		p.expires = p.clock.Now().Add(p.display)
	}
	return p.snapshotLocked()
}

// guard runs fn and turns errors and panics into an internal error outcome so
// the machine never stays in Processing.
func (p *Processor) guard(op string, fn func() (*Outcome, *Prompt, error)) (out *Outcome, prompt *Prompt) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("scan panic", zap.String("op", op), zap.Any("panic", r), zap.Stack("stack"))
			out, prompt = internalError(), nil
		}
	}()

	out, prompt, err := fn()
	if err != nil {
		p.logger.Error("scan failed", zap.String("op", op), zap.Error(err))
		return internalError(), nil
	}
	return out, prompt
}

func internalError() *Outcome {
	return &Outcome{Kind: KindError, Code: CodeInternal, Message: "internal error"}
}

func (p *Processor) expireLocked(now time.Time) {
	if p.state == Result && !now.Before(p.expires) {
		p.resetLocked()
	}
}

func (p *Processor) resetLocked() {
	p.state = Idle
	p.outcome = nil
	p.prompt = nil
	p.expires = time.Time{}
}

func (p *Processor) snapshotLocked() Snapshot {
	snap := Snapshot{State: p.state}
	if p.outcome != nil {
		o := *p.outcome
		snap.Outcome = &o
	}
	if p.prompt != nil {
		pr := *p.prompt
		snap.Prompt = &pr
	}
	if p.state == Result {
		exp := p.expires
		snap.ExpiresAt = &exp
	}
	return snap
}

// evaluate applies the scan checks in order.
func (p *Processor) evaluate(ctx context.Context, payload string) (*Outcome, *Prompt, error) {
	now := p.clock.Now()
	date := clock.Date(now)

	slot, err := p.slots.Current(ctx)
	if err != nil {
		return nil, nil, err
	}
	if slot == nil {
		return &Outcome{Kind: KindWarning, Code: CodeNotMealPeriod, Message: "not a meal period"}, nil, nil
	}

	ks, err := p.store.KioskSettings(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !ks.HasDiningHall {
		return &Outcome{Kind: KindError, Code: CodeNoDiningHall, Message: "dining hall not configured", MealName: slot.Name}, nil, nil
	}

	code, ok := ParsePayload(payload)
	if !ok {
		return &Outcome{Kind: KindError, Code: CodeMalformed, Message: "malformed code", MealName: slot.Name}, nil, nil
	}

	emp, found, err := p.lookup(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		p.logger.Info("unknown employee", zap.String("code", code))
		return nil, &Prompt{
			Kind:        PromptUnauthorized,
			Reason:      ReasonUnknownEmployee,
			Message:     "unauthorized: " + ReasonUnknownEmployee,
			ScannedCode: code,
			Meal:        *slot,
			Date:        date,
			HallID:      ks.DiningHallID,
		}, nil
	}

	if !emp.IsActive {
		return &Outcome{Kind: KindError, Code: CodeInactive, Message: "inactive employee", EmployeeName: emp.Name, MealName: slot.Name}, nil, nil
	}

	d, err := p.resolver.Resolve(ctx, emp.ID, slot.ID, date)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case d.Kind == authz.Denied:
		return nil, &Prompt{
			Kind:        PromptUnauthorized,
			Reason:      d.Reason,
			Message:     "unauthorized: " + d.Reason,
			Employee:    &emp,
			ScannedCode: code,
			Meal:        *slot,
			Date:        date,
			HallID:      ks.DiningHallID,
		}, nil
	case !d.AllowsHall(ks.DiningHallID):
		hall, ok, err := p.store.DiningHall(ctx, d.HallID)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			hall = model.DiningHall{ID: d.HallID, Name: fmt.Sprintf("hall %d", d.HallID)}
		}
		return &Outcome{
			Kind:         KindError,
			Code:         CodeWrongHall,
			Message:      "wrong dining hall: go to " + hall.Name,
			EmployeeName: emp.Name,
			MealName:     slot.Name,
			CorrectHall:  &hall,
		}, nil, nil
	}

	existing, dup, err := p.store.FindMealLog(ctx, emp.ID, slot.ID, date)
	if err != nil {
		return nil, nil, err
	}
	if dup {
		return nil, &Prompt{
			Kind:        PromptDoubleScan,
			Message:     "double scan: already served at " + existing.ScannedAt.Local().Format("15:04"),
			Employee:    &emp,
			ScannedCode: code,
			Meal:        *slot,
			Date:        date,
			HallID:      ks.DiningHallID,
			Existing:    &existing,
		}, nil
	}

	l := newLog(ks, emp.ID, emp.IDCardNumber, emp.Name, slot.ID, date, now)
	l.SyncKey = model.SyncKey(emp.ID, slot.ID, date)
	stored, inserted, err := p.store.CreateMealLog(ctx, l)
	if err != nil {
		return nil, nil, err
	}
	if !inserted {
		return alreadyRecorded(emp.Name, slot.Name, stored), nil, nil
	}
	p.logger.Info("meal recorded",
		zap.String("employee", emp.ID),
		zap.String("meal", slot.ID),
		zap.Int64("dining_hall", ks.DiningHallID))
	return &Outcome{Kind: KindSuccess, Code: CodeSuccess, Message: "enjoy your meal", EmployeeName: emp.Name, MealName: slot.Name, Log: &stored}, nil, nil
}

// lookup matches the id-card number first, then the employee code.
func (p *Processor) lookup(ctx context.Context, code string) (model.Employee, bool, error) {
	emp, ok, err := p.store.EmployeeByIDCard(ctx, code)
	if err != nil || ok {
		return emp, ok, err
	}
	return p.store.EmployeeByCode(ctx, code)
}

func (p *Processor) approveManual(ctx context.Context, pr Prompt) (*Outcome, error) {
	ks, err := p.store.KioskSettings(ctx)
	if err != nil {
		return nil, err
	}
	now := p.clock.Now()

	var l model.MealLog
	if pr.Employee != nil {
		l = newLog(ks, pr.Employee.ID, pr.Employee.IDCardNumber, pr.Employee.Name, pr.Meal.ID, pr.Date, now)
		l.SyncKey = model.SyncKey(pr.Employee.ID, pr.Meal.ID, pr.Date)
	} else {
		l = newLog(ks, model.UnknownUserID, pr.ScannedCode, pr.ScannedCode, pr.Meal.ID, pr.Date, now)
		l.SyncKey = model.ManualSyncKey(pr.ScannedCode, pr.Meal.ID, pr.Date, now)
	}
	l.DiningHallID = pr.HallID
	l.IsManualOverride = true

	stored, inserted, err := p.store.CreateMealLog(ctx, l)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return alreadyRecorded(l.EmployeeName, pr.Meal.Name, stored), nil
	}
	p.logger.Info("manual approval",
		zap.String("employee", l.UserID),
		zap.String("reason", pr.Reason),
		zap.String("meal", pr.Meal.ID))
	return &Outcome{Kind: KindSuccess, Code: CodeManualApproved, Message: "manually approved", EmployeeName: l.EmployeeName, MealName: pr.Meal.Name, Log: &stored}, nil
}

func (p *Processor) approveExtra(ctx context.Context, pr Prompt) (*Outcome, error) {
	ks, err := p.store.KioskSettings(ctx)
	if err != nil {
		return nil, err
	}
	now := p.clock.Now()
	emp := pr.Employee

	l := newLog(ks, emp.ID, emp.IDCardNumber, emp.Name, pr.Meal.ID, pr.Date, now)
	l.DiningHallID = pr.HallID
	l.IsExtraServing = true
	l.SyncKey = model.ExtraSyncKey(emp.ID, pr.Meal.ID, pr.Date, now)

	stored, _, err := p.store.CreateMealLog(ctx, l)
	if err != nil {
		return nil, err
	}
	p.logger.Info("extra serving", zap.String("employee", emp.ID), zap.String("meal", pr.Meal.ID))
	return &Outcome{Kind: KindSuccess, Code: CodeExtraApproved, Message: "extra serving approved", EmployeeName: emp.Name, MealName: pr.Meal.Name, Log: &stored}, nil
}

func alreadyRecorded(name, meal string, existing model.MealLog) *Outcome {
	return &Outcome{Kind: KindWarning, Code: CodeAlreadyRecorded, Message: "already recorded", EmployeeName: name, MealName: meal, Log: &existing}
}

// newLog builds a pending record stamped with the active chef and device.
// The caller sets the sync key and flags.
func newLog(ks model.KioskSettings, userID, idcard, name, mealType, date string, now time.Time) model.MealLog {
	l := model.MealLog{
		UserID:       userID,
		IDCardNumber: idcard,
		EmployeeName: name,
		MealType:     mealType,
		DiningHallID: ks.DiningHallID,
		Date:         date,
		ScannedAt:    now,
		SyncStatus:   model.SyncPending,
		ChefID:       ks.ActiveChefID,
	}
	if ks.DeviceUUID != "" {
		dev := ks.DeviceUUID
		l.DeviceUUID = &dev
	}
	return l
}
