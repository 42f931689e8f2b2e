package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/mealkiosk/internal/engine"
	"github.com/roach88/mealkiosk/internal/model"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Force bool
}

// SyncReport is the output of a sync command.
type SyncReport struct {
	engine.Result
	Op       string        `json:"op"`
	Records  int           `json:"records,omitempty"`
	Failures []StepFailure `json:"failures,omitempty"`
}

// StepFailure is one failed sync step.
type StepFailure struct {
	Op    model.SyncOp `json:"op"`
	Error string       `json:"error"`
}

var syncTargets = map[string]func(*engine.Engine, context.Context) (int, error){
	"push":      (*engine.Engine).PushMealLogs,
	"halls":     (*engine.Engine).PullDiningHalls,
	"chefs":     (*engine.Engine).PullChefs,
	"employees": (*engine.Engine).PullEmployees,
	"overrides": (*engine.Engine).PullOverrides,
	"heartbeat": func(e *engine.Engine, ctx context.Context) (int, error) {
		return 0, e.Heartbeat(ctx)
	},
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync [all|push|halls|chefs|employees|overrides|heartbeat]",
		Short: "Synchronize with the backend once",
		Long: `Run one sync against the backend and exit.

With no argument (or "all") the kiosk pushes pending meal logs, pulls dining
halls, chefs, employees and today's overrides, and sends a heartbeat. A failed
step does not stop the others; any failure makes the command exit 1.

Examples:
  mealkiosk sync
  mealkiosk sync push
  mealkiosk sync all --force --format json`,
		Args:          cobra.MaximumNArgs(1),
		ValidArgs:     []string{"all", "push", "halls", "chefs", "employees", "overrides", "heartbeat"},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "all"
			if len(args) == 1 {
				target = args[0]
			}
			return runSync(opts, cmd, target)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "clear replicated reference data before syncing (all only)")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command, target string) error {
	step, single := syncTargets[target]
	if target != "all" && !single {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown sync target %q", target))
	}
	if opts.Force && single {
		return NewExitError(ExitCommandError, "--force only applies to a full sync")
	}

	k, err := openKiosk(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer k.Close()
	ctx := cmd.Context()

	if single {
		n, err := step(k.engine, ctx)
		report := SyncReport{Op: target, Records: n}
		if err != nil {
			_ = k.out.Error("sync_failed", err.Error(), report)
			return WrapExitError(ExitFailure, target+" failed", err)
		}
		return k.out.Emit(report, func(w io.Writer) {
			fmt.Fprintf(w, "%s: %d records\n", target, n)
		})
	}

	var res engine.Result
	if opts.Force {
		res, err = k.engine.ForceResync(ctx)
	} else {
		res, err = k.engine.FullSync(ctx)
	}
	if errors.Is(err, engine.ErrSyncInProgress) {
		return WrapExitError(ExitFailure, "sync failed", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "sync failed", err)
	}

	report := SyncReport{Result: res, Op: "all"}
	for _, f := range res.Failures {
		report.Failures = append(report.Failures, StepFailure{Op: f.Op, Error: f.Err.Error()})
	}
	if err := k.out.Emit(report, func(w io.Writer) { writeSyncReport(w, report) }); err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d sync steps failed", len(res.Failures)), err)
	}
	return nil
}

func writeSyncReport(w io.Writer, r SyncReport) {
	fmt.Fprintf(w, "Meal logs pushed:  %d\n", r.LogsPushed)
	fmt.Fprintf(w, "Dining halls:      %d\n", r.HallsPulled)
	fmt.Fprintf(w, "Chefs:             %d\n", r.ChefsPulled)
	fmt.Fprintf(w, "Employees:         %d\n", r.EmployeesPulled)
	fmt.Fprintf(w, "Overrides:         %d\n", r.OverridesPulled)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "FAILED %s: %s\n", f.Op, f.Error)
	}
}
