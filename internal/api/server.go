// Package api serves the local HTTP API consumed by the kiosk screen.
//
// Responses use one envelope:
//
//	{"status": "success", "data": ...}
//	{"status": "error", "message": "...", "errors": {...}}
//
// The API binds to loopback by default; it carries no authentication beyond
// the admin PIN required for destructive operations.
package api

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/roach88/mealkiosk/internal/dashboard"
	"github.com/roach88/mealkiosk/internal/engine"
	"github.com/roach88/mealkiosk/internal/model"
	"github.com/roach88/mealkiosk/internal/scan"
	"github.com/roach88/mealkiosk/internal/store"
)

// ShutdownTimeout bounds graceful shutdown in Serve.
const ShutdownTimeout = 5 * time.Second

// Store is the local data the API reads and resets.
type Store interface {
	GetConfig(ctx context.Context, key string) (string, bool, error)
	CountPending(ctx context.Context) (int, error)
	RecentSyncRuns(ctx context.Context, limit int) ([]model.SyncRun, error)
	SearchEmployees(ctx context.Context, query string) ([]model.Employee, error)
	MealLogs(ctx context.Context, f store.MealLogFilter) ([]model.MealLog, error)
	Wipe(ctx context.Context) error
}

// Syncer runs full syncs on demand.
type Syncer interface {
	FullSync(ctx context.Context) (engine.Result, error)
	Online() bool
}

// Deps are the components behind the API.
type Deps struct {
	Store     Store
	Processor *scan.Processor
	Dashboard *dashboard.Aggregator
	Syncer    Syncer
	Logger    *zap.Logger
}

// Server is the local HTTP API.
type Server struct {
	app      *fiber.App
	store    Store
	proc     *scan.Processor
	dash     *dashboard.Aggregator
	syncer   Syncer
	logger   *zap.Logger
	validate *validator.Validate
}

// New builds the fiber app and registers every route.
func New(d Deps) *Server {
	s := &Server{
		store:    d.Store,
		proc:     d.Processor,
		dash:     d.Dashboard,
		syncer:   d.Syncer,
		logger:   d.Logger,
		validate: validator.New(),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "mealkiosk",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(s.requestLog)
	s.routes()
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listener(ln)
	}()
	s.logger.Info("api listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(ShutdownTimeout); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

func (s *Server) routes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	api := s.app.Group("/api")
	api.Get("/status", s.status)
	api.Get("/dashboard", s.dashboard)

	api.Get("/scan", s.scanState)
	api.Post("/scan", s.scan)
	api.Post("/scan/cancel", s.scanCancel)
	api.Post("/scan/approve-manual", s.scanApproveManual)
	api.Post("/scan/approve-extra", s.scanApproveExtra)
	api.Post("/scan/dismiss", s.scanDismiss)

	api.Get("/employees", s.employees)
	api.Post("/manual-entry", s.manualEntry)
	api.Get("/logs", s.logs)
	api.Post("/sync", s.sync)

	api.Post("/chef/login", s.chefLogin)
	api.Post("/chef/logout", s.chefLogout)
	api.Post("/admin/wipe", s.wipe)
}

func (s *Server) requestLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("duration", time.Since(start)))
	return err
}

// handleError renders returned errors in the error envelope.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		s.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{
		"status":  "error",
		"message": message,
	})
}

func success(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   data,
	})
}

// bind parses the JSON body into dst and validates it. Validation failures
// are written directly with the per-field tags.
func (s *Server) bind(c *fiber.Ctx, dst any) (bool, error) {
	if err := c.BodyParser(dst); err != nil {
		return false, fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	if err := s.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return false, fiber.NewError(fiber.StatusBadRequest, "invalid input")
		}
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "validation failed",
			"errors":  fields,
		})
	}
	return true, nil
}
