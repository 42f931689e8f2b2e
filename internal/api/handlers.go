package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/roach88/mealkiosk/internal/engine"
	"github.com/roach88/mealkiosk/internal/model"
	"github.com/roach88/mealkiosk/internal/scan"
	"github.com/roach88/mealkiosk/internal/store"
)

// recentRuns is how many sync runs /api/status reports.
const recentRuns = 10

type statusResponse struct {
	Online     bool            `json:"online"`
	Pending    int             `json:"pending"`
	DeviceUUID string          `json:"device_uuid,omitempty"`
	DeviceName string          `json:"device_name,omitempty"`
	LastPullAt string          `json:"last_pull_at,omitempty"`
	LastPushAt string          `json:"last_push_at,omitempty"`
	Runs       []model.SyncRun `json:"runs"`
}

func (s *Server) status(c *fiber.Ctx) error {
	ctx := c.UserContext()
	resp := statusResponse{Online: s.syncer != nil && s.syncer.Online()}

	var err error
	if resp.Pending, err = s.store.CountPending(ctx); err != nil {
		return err
	}
	for key, dst := range map[string]*string{
		model.KeyDeviceUUID: &resp.DeviceUUID,
		model.KeyDeviceName: &resp.DeviceName,
		model.KeyLastPullAt: &resp.LastPullAt,
		model.KeyLastPushAt: &resp.LastPushAt,
	} {
		if *dst, _, err = s.store.GetConfig(ctx, key); err != nil {
			return err
		}
	}
	if resp.Runs, err = s.store.RecentSyncRuns(ctx, recentRuns); err != nil {
		return err
	}
	return success(c, resp)
}

func (s *Server) dashboard(c *fiber.Ctx) error {
	summary, err := s.dash.Summary(c.UserContext())
	if err != nil {
		return err
	}
	return success(c, summary)
}

type scanRequest struct {
	Payload string `json:"payload" validate:"required,max=4096"`
}

func (s *Server) scanState(c *fiber.Ctx) error {
	return success(c, s.proc.State())
}

func (s *Server) scan(c *fiber.Ctx) error {
	var req scanRequest
	if ok, err := s.bind(c, &req); !ok {
		return err
	}
	snap, err := s.proc.Scan(c.UserContext(), req.Payload)
	if err != nil {
		return decisionError(err)
	}
	return success(c, snap)
}

func (s *Server) scanCancel(c *fiber.Ctx) error {
	if err := s.proc.Cancel(); err != nil {
		return decisionError(err)
	}
	return success(c, s.proc.State())
}

func (s *Server) scanApproveManual(c *fiber.Ctx) error {
	snap, err := s.proc.ApproveManual(c.UserContext())
	if err != nil {
		return decisionError(err)
	}
	return success(c, snap)
}

func (s *Server) scanApproveExtra(c *fiber.Ctx) error {
	snap, err := s.proc.ApproveExtra(c.UserContext())
	if err != nil {
		return decisionError(err)
	}
	return success(c, snap)
}

func (s *Server) scanDismiss(c *fiber.Ctx) error {
	s.proc.Dismiss()
	return success(c, s.proc.State())
}

// decisionError maps state machine refusals to 409 Conflict.
func decisionError(err error) error {
	switch {
	case errors.Is(err, scan.ErrBusy),
		errors.Is(err, scan.ErrNoPendingDecision),
		errors.Is(err, scan.ErrWrongDecision):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return err
}

func (s *Server) employees(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return success(c, []model.Employee{})
	}
	emps, err := s.store.SearchEmployees(c.UserContext(), q)
	if err != nil {
		return err
	}
	return success(c, emps)
}

type manualEntryRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
}

func (s *Server) manualEntry(c *fiber.Ctx) error {
	var req manualEntryRequest
	if ok, err := s.bind(c, &req); !ok {
		return err
	}
	out, err := s.proc.ManualEntry(c.UserContext(), req.EmployeeID)
	if errors.Is(err, scan.ErrEmployeeNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return success(c, out)
}

type logsQuery struct {
	Date   string `query:"date" validate:"omitempty,datetime=2006-01-02"`
	Meal   string `query:"meal" validate:"omitempty,max=64"`
	Status string `query:"status" validate:"omitempty,oneof=pending synced failed"`
	Limit  int    `query:"limit" validate:"gte=0,lte=1000"`
}

func (s *Server) logs(c *fiber.Ctx) error {
	var q logsQuery
	if err := c.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid query")
	}
	if err := s.validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if q.Limit == 0 {
		q.Limit = 100
	}
	logs, err := s.store.MealLogs(c.UserContext(), store.MealLogFilter{
		Date:     q.Date,
		MealType: q.Meal,
		Status:   model.SyncStatus(q.Status),
		Limit:    q.Limit,
	})
	if err != nil {
		return err
	}
	return success(c, logs)
}

type stepFailure struct {
	Op    model.SyncOp `json:"op"`
	Error string       `json:"error"`
}

type syncResponse struct {
	engine.Result
	Failures []stepFailure `json:"failures"`
}

func (s *Server) sync(c *fiber.Ctx) error {
	if s.syncer == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "sync is not available")
	}
	res, err := s.syncer.FullSync(c.UserContext())
	if errors.Is(err, engine.ErrSyncInProgress) {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	if err != nil {
		return err
	}
	resp := syncResponse{Result: res, Failures: []stepFailure{}}
	for _, f := range res.Failures {
		resp.Failures = append(resp.Failures, stepFailure{Op: f.Op, Error: f.Err.Error()})
	}
	return success(c, resp)
}

type pinRequest struct {
	PIN string `json:"pin" validate:"required,max=32"`
}

func (s *Server) chefLogin(c *fiber.Ctx) error {
	var req pinRequest
	if ok, err := s.bind(c, &req); !ok {
		return err
	}
	chef, err := s.proc.Login(c.UserContext(), req.PIN)
	if errors.Is(err, scan.ErrInvalidPIN) {
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}
	if err != nil {
		return err
	}
	return success(c, chef)
}

func (s *Server) chefLogout(c *fiber.Ctx) error {
	if err := s.proc.Logout(c.UserContext()); err != nil {
		return err
	}
	return success(c, nil)
}

type wipeRequest struct {
	PIN     string `json:"pin" validate:"required"`
	Confirm bool   `json:"confirm" validate:"required"`
}

func (s *Server) wipe(c *fiber.Ctx) error {
	var req wipeRequest
	if ok, err := s.bind(c, &req); !ok {
		return err
	}
	ctx := c.UserContext()
	if err := s.proc.VerifyAdminPIN(ctx, req.PIN); err != nil {
		if errors.Is(err, scan.ErrInvalidPIN) {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		return err
	}
	if err := s.store.Wipe(ctx); err != nil {
		return err
	}
	s.logger.Warn("local data wiped")
	return success(c, nil)
}
