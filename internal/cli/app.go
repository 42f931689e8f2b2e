package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/mealkiosk/internal/clock"
	"github.com/roach88/mealkiosk/internal/config"
	"github.com/roach88/mealkiosk/internal/dashboard"
	"github.com/roach88/mealkiosk/internal/engine"
	"github.com/roach88/mealkiosk/internal/logging"
	"github.com/roach88/mealkiosk/internal/mealclock"
	"github.com/roach88/mealkiosk/internal/model"
	"github.com/roach88/mealkiosk/internal/remote"
	"github.com/roach88/mealkiosk/internal/scan"
	"github.com/roach88/mealkiosk/internal/store"
)

// kiosk is the wired runtime shared by every command.
type kiosk struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     *store.Store
	engine    *engine.Engine
	processor *scan.Processor
	dashboard *dashboard.Aggregator
	out       *OutputFormatter

	unsubscribe func()
}

// openKiosk loads configuration, opens and seeds the store and wires the
// components. Failures are command errors (exit code 2).
func openKiosk(opts *RootOptions, cmd *cobra.Command) (*kiosk, error) {
	cfg, err := config.Load(opts.ConfigPath, ".env")
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	logger, err := logging.New(cfg.Logging, opts.Verbose)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}

	st, err := store.Open(cfg.Database.Path, store.WithDriver(cfg.Database.Driver))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	ctx := cmd.Context()
	if err := st.SeedDefaults(ctx); err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to seed database", err)
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}

	var gateways engine.GatewaySource = opts.Gateways
	if gateways == nil {
		gateways = remote.NewFactory(cfg.RemoteSettings(), st)
	}

	tracker := mealclock.NewTracker(st, clk)
	unsubscribe := st.Subscribe(func(c store.Change) {
		if c.Touches(store.TableMealSlots) {
			tracker.Invalidate()
		}
	})

	interval := syncInterval(cmd, st, cfg)
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	out.Debugf("database %s (driver %s)", cfg.Database.Path, cfg.Database.Driver)
	out.Debugf("backend %s, sync every %s", cfg.Backend.Kind, interval)

	k := &kiosk{
		cfg:    cfg,
		logger: logger,
		store:  st,
		engine: engine.New(st, gateways,
			engine.WithClock(clk),
			engine.WithLogger(logger.Named("sync")),
			engine.WithBatchSize(cfg.Sync.PushBatchSize),
			engine.WithChunkSize(cfg.Sync.LookupChunkSize),
			engine.WithSchedule(interval, cfg.HeartbeatInterval(), cfg.ProbeInterval()),
		),
		processor: scan.New(st, tracker,
			scan.WithClock(clk),
			scan.WithResultDisplay(cfg.ResultDisplay()),
			scan.WithLogger(logger.Named("scan")),
		),
		dashboard:   dashboard.New(st, tracker, clk),
		out:         out,
		unsubscribe: unsubscribe,
	}
	return k, nil
}

// syncInterval uses sync.interval when the configuration sets one and the
// kiosk's persisted sync_interval_minutes otherwise.
func syncInterval(cmd *cobra.Command, st *store.Store, cfg *config.Config) time.Duration {
	d, set := cfg.SyncInterval()
	if set {
		return d
	}
	v, ok, err := st.GetConfig(cmd.Context(), model.KeySyncIntervalMinutes)
	if err != nil || !ok {
		return d
	}
	minutes, err := strconv.Atoi(v)
	if err != nil || minutes <= 0 {
		return d
	}
	return time.Duration(minutes) * time.Minute
}

func (k *kiosk) Close() {
	k.unsubscribe()
	if err := k.store.Close(); err != nil {
		k.logger.Error("error closing database", zap.Error(err))
	}
	_ = k.logger.Sync()
}
