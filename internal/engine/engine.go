package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/mealkiosk/internal/clock"
	"github.com/roach88/mealkiosk/internal/model"
	"github.com/roach88/mealkiosk/internal/remote"
)

// DefaultBatchSize is the number of meal logs pushed per upsert.
const DefaultBatchSize = 100

// Store is the local data the engine reads and replaces.
type Store interface {
	GetConfig(ctx context.Context, key string) (string, bool, error)
	SetConfig(ctx context.Context, key, value string) error
	DiningHallID(ctx context.Context) (int64, bool, error)

	StartSyncRun(ctx context.Context, op model.SyncOp, at time.Time) (int64, error)
	FinishSyncRun(ctx context.Context, id int64, count int, runErr error, at time.Time) error

	ReplaceDiningHalls(ctx context.Context, halls []model.DiningHall) error
	ReplaceChefs(ctx context.Context, chefs []model.Chef) error
	UpsertChef(ctx context.Context, c model.Chef) error
	SetChefActive(ctx context.Context, id int64, active bool) error
	ReplaceEmployeesAndConfigs(ctx context.Context, employees []model.Employee, configs []model.MealConfig) error
	EmployeeIDs(ctx context.Context) ([]string, error)
	ReplaceOverrides(ctx context.Context, overrides []model.Override) error
	ClearReferenceData(ctx context.Context) error

	PendingMealLogs(ctx context.Context) ([]model.MealLog, error)
	MarkSynced(ctx context.Context, ids []int64) error
}

// GatewaySource builds a gateway per operation. *remote.Factory implements it.
type GatewaySource interface {
	Gateway(ctx context.Context) (remote.Gateway, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the wall clock. Defaults to clock.System.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithBatchSize sets the push batch size.
//
// Default: 100 (DefaultBatchSize)
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithChunkSize sets how many ids are sent per in-list lookup.
//
// Default: 200 (remote.DefaultChunkSize)
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// Engine runs sync operations against one store and backend.
//
// Thread-safety: operations are safe for concurrent use. FullSync and
// ForceResync are serialized; a concurrent request gets ErrSyncInProgress.
type Engine struct {
	store     Store
	gateways  GatewaySource
	clock     clock.Clock
	logger    *zap.Logger
	batchSize int
	chunkSize int

	syncing sync.Mutex

	interval          time.Duration
	heartbeatInterval time.Duration
	probeInterval     time.Duration
	queue             *eventQueue
	online            atomic.Bool
}

// New creates an engine.
func New(s Store, gateways GatewaySource, opts ...Option) *Engine {
	e := &Engine{
		store:             s,
		gateways:          gateways,
		clock:             clock.System{},
		logger:            zap.NewNop(),
		batchSize:         DefaultBatchSize,
		chunkSize:         remote.DefaultChunkSize,
		interval:          DefaultInterval,
		heartbeatInterval: DefaultHeartbeatInterval,
		probeInterval:     DefaultProbeInterval,
		queue:             newEventQueue(),
	}
	e.online.Store(true)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run wraps one pull or push: it records a SyncRun, builds a gateway and
// finalizes the run with fn's count and error.
func (e *Engine) run(ctx context.Context, op model.SyncOp, fn func(context.Context, remote.Gateway) (int, error)) (int, error) {
	runID, err := e.store.StartSyncRun(ctx, op, e.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	n, opErr := e.withGateway(ctx, func(gw remote.Gateway) (int, error) {
		return fn(ctx, gw)
	})

	if err := e.store.FinishSyncRun(ctx, runID, n, opErr, e.clock.Now()); err != nil {
		e.logger.Error("finish sync run", zap.String("op", string(op)), zap.Error(err))
	}
	if opErr != nil {
		return n, fmt.Errorf("%s: %w", op, opErr)
	}
	e.logger.Info("sync step complete", zap.String("op", string(op)), zap.Int("count", n))
	return n, nil
}

func (e *Engine) withGateway(ctx context.Context, fn func(remote.Gateway) (int, error)) (int, error) {
	gw, err := e.gateways.Gateway(ctx)
	if err != nil {
		return 0, err
	}
	defer gw.Close()
	return fn(gw)
}

func (e *Engine) today() string {
	return clock.Date(e.clock.Now())
}

func (e *Engine) stamp() string {
	return e.clock.Now().UTC().Format(time.RFC3339)
}

// PullDiningHalls replaces the local dining halls with every backend hall.
func (e *Engine) PullDiningHalls(ctx context.Context) (int, error) {
	return e.run(ctx, model.OpPullDiningHalls, func(ctx context.Context, gw remote.Gateway) (int, error) {
		var rows []remote.DiningHallRow
		if err := gw.Select(ctx, remote.TableDiningHalls, remote.Query{Columns: remote.DiningHallColumns}, &rows); err != nil {
			return 0, err
		}
		halls := make([]model.DiningHall, 0, len(rows))
		for _, r := range rows {
			halls = append(halls, r.DiningHall())
		}
		if err := e.store.ReplaceDiningHalls(ctx, halls); err != nil {
			return 0, err
		}
		return len(halls), nil
	})
}

// PullChefs replaces the local chefs, limited to the kiosk's hall when one is
// configured.
func (e *Engine) PullChefs(ctx context.Context) (int, error) {
	return e.run(ctx, model.OpPullChefs, func(ctx context.Context, gw remote.Gateway) (int, error) {
		hallID, ok, err := e.store.DiningHallID(ctx)
		if err != nil {
			return 0, err
		}
		q := remote.Query{Columns: remote.ChefColumns}
		if ok {
			q.Filters = []remote.Filter{remote.Eq("dining_hall_id", hallID)}
		}

		var rows []remote.ChefRow
		if err := gw.Select(ctx, remote.TableChefs, q, &rows); err != nil {
			return 0, err
		}
		chefs := make([]model.Chef, 0, len(rows))
		for _, r := range rows {
			chefs = append(chefs, r.Chef())
		}
		if err := e.store.ReplaceChefs(ctx, chefs); err != nil {
			return 0, err
		}
		return len(chefs), nil
	})
}

// PullEmployees replaces the local employees and meal configs with everyone
// who eats at this kiosk's hall: employees whose configuration names the hall
// for any meal, plus employees redirected here by today's overrides.
func (e *Engine) PullEmployees(ctx context.Context) (int, error) {
	return e.run(ctx, model.OpPullEmployees, func(ctx context.Context, gw remote.Gateway) (int, error) {
		hallID, hasHall, err := e.store.DiningHallID(ctx)
		if err != nil {
			return 0, err
		}

		q := remote.Query{}
		if hasHall {
			q.Filters = []remote.Filter{remote.AnyEq(hallID, remote.MealLocationColumns...)}
		}
		var cfgRows []remote.MealConfigRow
		if err := gw.Select(ctx, remote.TableMealConfigs, q, &cfgRows); err != nil {
			return 0, err
		}

		defaultIDs := make(map[string]bool, len(cfgRows))
		userIDs := make([]string, 0, len(cfgRows))
		for _, c := range cfgRows {
			if !defaultIDs[c.UserID] {
				defaultIDs[c.UserID] = true
				userIDs = append(userIDs, c.UserID)
			}
		}

		var overrideOnly []string
		if hasHall {
			var ovRows []remote.OverrideRow
			err := gw.Select(ctx, remote.TableOverrides, remote.Query{
				Columns: []string{"user_id"},
				Filters: []remote.Filter{
					remote.Eq("date", e.today()),
					remote.Eq("dining_hall_id", hallID),
				},
			}, &ovRows)
			if err != nil {
				return 0, err
			}
			seen := make(map[string]bool, len(ovRows))
			for _, o := range ovRows {
				if defaultIDs[o.UserID] || seen[o.UserID] {
					continue
				}
				seen[o.UserID] = true
				overrideOnly = append(overrideOnly, o.UserID)
				userIDs = append(userIDs, o.UserID)
			}
		}

		if len(userIDs) == 0 {
			if err := e.store.ReplaceEmployeesAndConfigs(ctx, nil, nil); err != nil {
				return 0, err
			}
			return 0, nil
		}

		for _, chunk := range remote.Chunk(overrideOnly, e.chunkSize) {
			var extra []remote.MealConfigRow
			if err := gw.Select(ctx, remote.TableMealConfigs, remote.Query{
				Filters: []remote.Filter{remote.In("user_id", chunk)},
			}, &extra); err != nil {
				return 0, err
			}
			cfgRows = append(cfgRows, extra...)
		}

		var userRows []remote.UserRow
		for _, chunk := range remote.Chunk(userIDs, e.chunkSize) {
			var batch []remote.UserRow
			if err := gw.Select(ctx, remote.TableUsers, remote.Query{
				Columns: remote.UserColumns,
				Filters: []remote.Filter{remote.In("id", chunk)},
			}, &batch); err != nil {
				return 0, err
			}
			userRows = append(userRows, batch...)
		}

		employees := make([]model.Employee, 0, len(userRows))
		for _, u := range userRows {
			employees = append(employees, u.Employee())
		}
		configs := make([]model.MealConfig, 0, len(cfgRows))
		for _, c := range cfgRows {
			configs = append(configs, c.MealConfig())
		}

		if err := e.store.ReplaceEmployeesAndConfigs(ctx, employees, configs); err != nil {
			return 0, err
		}
		if err := e.store.SetConfig(ctx, model.KeyLastPullAt, e.stamp()); err != nil {
			return 0, err
		}
		return len(employees), nil
	})
}

// PullOverrides replaces the local overrides with today's overrides for the
// employees already present locally, both toward and away from this hall.
// Run it after PullEmployees.
func (e *Engine) PullOverrides(ctx context.Context) (int, error) {
	return e.run(ctx, model.OpPullOverrides, func(ctx context.Context, gw remote.Gateway) (int, error) {
		ids, err := e.store.EmployeeIDs(ctx)
		if err != nil {
			return 0, err
		}
		if len(ids) == 0 {
			if err := e.store.ReplaceOverrides(ctx, nil); err != nil {
				return 0, err
			}
			return 0, nil
		}

		today := e.today()
		var overrides []model.Override
		for _, chunk := range remote.Chunk(ids, e.chunkSize) {
			var rows []remote.OverrideRow
			if err := gw.Select(ctx, remote.TableOverrides, remote.Query{
				Columns: remote.OverrideColumns,
				Filters: []remote.Filter{
					remote.Eq("date", today),
					remote.In("user_id", chunk),
				},
			}, &rows); err != nil {
				return 0, err
			}
			for _, r := range rows {
				overrides = append(overrides, r.Override())
			}
		}

		if err := e.store.ReplaceOverrides(ctx, overrides); err != nil {
			return 0, err
		}
		return len(overrides), nil
	})
}

// PushMealLogs sends every pending meal log. With nothing pending it returns
// zero without contacting the backend or recording a run. On failure the
// count of rows already marked synced is returned with the error.
func (e *Engine) PushMealLogs(ctx context.Context) (int, error) {
	pending, err := e.store.PendingMealLogs(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", model.OpPushMealLogs, err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	return e.run(ctx, model.OpPushMealLogs, func(ctx context.Context, gw remote.Gateway) (int, error) {
		synced := 0
		for start := 0; start < len(pending); start += e.batchSize {
			end := start + e.batchSize
			if end > len(pending) {
				end = len(pending)
			}
			batch := pending[start:end]

			rows := make([]remote.MealLogRow, len(batch))
			ids := make([]int64, len(batch))
			for i, l := range batch {
				rows[i] = remote.NewMealLogRow(l)
				ids[i] = l.ID
			}

			if err := gw.Upsert(ctx, remote.TableMealLogs, rows, remote.UpsertOptions{
				OnConflict:       "sync_key",
				IgnoreDuplicates: true,
			}); err != nil {
				return synced, err
			}
			if err := e.store.MarkSynced(ctx, ids); err != nil {
				return synced, err
			}
			synced += len(batch)
		}

		if err := e.store.SetConfig(ctx, model.KeyLastPushAt, e.stamp()); err != nil {
			return synced, err
		}
		return synced, nil
	})
}

// Heartbeat stamps this device's last_heartbeat. It is a no-op before the
// device UUID is seeded. Callers treat failures as non-critical.
func (e *Engine) Heartbeat(ctx context.Context) error {
	device, ok, err := e.store.GetConfig(ctx, model.KeyDeviceUUID)
	if err != nil {
		return err
	}
	if !ok || device == "" {
		return nil
	}
	_, err = e.withGateway(ctx, func(gw remote.Gateway) (int, error) {
		return 0, gw.Update(ctx, remote.TableKiosks,
			map[string]any{"last_heartbeat": e.stamp()},
			remote.Eq("device_uuid", device))
	})
	return err
}

// Result summarizes a full sync.
type Result struct {
	LogsPushed      int          `json:"logs_pushed"`
	HallsPulled     int          `json:"halls_pulled"`
	ChefsPulled     int          `json:"chefs_pulled"`
	EmployeesPulled int          `json:"employees_pulled"`
	OverridesPulled int          `json:"overrides_pulled"`
	Failures        []*StepError `json:"-"`
}

// Err joins the step failures, or returns nil.
func (r Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// FullSync pushes, then pulls halls, chefs, employees and overrides, then
// sends a heartbeat. Step failures are collected in the result; the returned
// error is only ErrSyncInProgress.
func (e *Engine) FullSync(ctx context.Context) (Result, error) {
	if !e.syncing.TryLock() {
		return Result{}, ErrSyncInProgress
	}
	defer e.syncing.Unlock()
	return e.fullSync(ctx), nil
}

// ForceResync clears the replicated reference data and runs a full sync.
// Meal logs are kept.
func (e *Engine) ForceResync(ctx context.Context) (Result, error) {
	if !e.syncing.TryLock() {
		return Result{}, ErrSyncInProgress
	}
	defer e.syncing.Unlock()

	if err := e.store.ClearReferenceData(ctx); err != nil {
		return Result{}, fmt.Errorf("clear reference data: %w", err)
	}
	return e.fullSync(ctx), nil
}

func (e *Engine) fullSync(ctx context.Context) Result {
	var res Result
	steps := []struct {
		op  model.SyncOp
		fn  func(context.Context) (int, error)
		dst *int
	}{
		{model.OpPushMealLogs, e.PushMealLogs, &res.LogsPushed},
		{model.OpPullDiningHalls, e.PullDiningHalls, &res.HallsPulled},
		{model.OpPullChefs, e.PullChefs, &res.ChefsPulled},
		{model.OpPullEmployees, e.PullEmployees, &res.EmployeesPulled},
		{model.OpPullOverrides, e.PullOverrides, &res.OverridesPulled},
	}
	for _, step := range steps {
		n, err := step.fn(ctx)
		*step.dst = n
		if err != nil {
			e.logger.Warn("sync step failed", zap.String("op", string(step.op)), zap.Error(err))
			res.Failures = append(res.Failures, &StepError{Op: step.op, Err: err})
		}
	}

	if err := e.Heartbeat(ctx); err != nil {
		e.logger.Debug("heartbeat failed", zap.String("op", string(model.OpHeartbeat)), zap.Error(err))
	}
	return res
}

// RegisterDevice upserts this kiosk into the backend's kiosks table keyed by
// device UUID and stores name locally.
func (e *Engine) RegisterDevice(ctx context.Context, name string) error {
	device, ok, err := e.store.GetConfig(ctx, model.KeyDeviceUUID)
	if err != nil {
		return err
	}
	if !ok || device == "" {
		return ErrDeviceNotSeeded
	}
	row := remote.KioskRow{
		DeviceName:    name,
		DeviceUUID:    device,
		IsActive:      true,
		LastHeartbeat: e.stamp(),
	}
	if hallID, ok, err := e.store.DiningHallID(ctx); err != nil {
		return err
	} else if ok {
		row.DiningHallID = &hallID
	}

	_, err = e.withGateway(ctx, func(gw remote.Gateway) (int, error) {
		return 0, gw.Upsert(ctx, remote.TableKiosks, []remote.KioskRow{row}, remote.UpsertOptions{OnConflict: "device_uuid"})
	})
	if err != nil {
		return fmt.Errorf("register device: %w", err)
	}
	if err := e.store.SetConfig(ctx, model.KeyDeviceName, name); err != nil {
		return err
	}
	e.logger.Info("device registered", zap.String("device", device), zap.String("name", name))
	return nil
}

// CreateChef inserts a chef for this kiosk's hall in the backend and mirrors
// the stored row locally.
func (e *Engine) CreateChef(ctx context.Context, name, pin string) (model.Chef, error) {
	hallID, ok, err := e.store.DiningHallID(ctx)
	if err != nil {
		return model.Chef{}, err
	}
	if !ok {
		return model.Chef{}, ErrNoDiningHall
	}

	active := true
	var stored remote.ChefRow
	_, err = e.withGateway(ctx, func(gw remote.Gateway) (int, error) {
		return 0, gw.Insert(ctx, remote.TableChefs, remote.ChefRow{
			Name:         &name,
			DiningHallID: hallID,
			PIN:          &pin,
			IsActive:     &active,
		}, &stored)
	})
	if err != nil {
		return model.Chef{}, fmt.Errorf("create chef: %w", err)
	}

	chef := stored.Chef()
	if err := e.store.UpsertChef(ctx, chef); err != nil {
		return model.Chef{}, err
	}
	return chef, nil
}

// SetChefActive toggles a chef in the backend and locally.
func (e *Engine) SetChefActive(ctx context.Context, id int64, active bool) error {
	_, err := e.withGateway(ctx, func(gw remote.Gateway) (int, error) {
		return 0, gw.Update(ctx, remote.TableChefs, map[string]any{"is_active": active}, remote.Eq("id", id))
	})
	if err != nil {
		return fmt.Errorf("set chef active: %w", err)
	}
	return e.store.SetChefActive(ctx, id, active)
}
