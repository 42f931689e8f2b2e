package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/mealkiosk/internal/dashboard"
	"github.com/roach88/mealkiosk/internal/model"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Runs int
}

// StatusReport is the output of the status command.
type StatusReport struct {
	dashboard.Summary
	DeviceUUID string          `json:"device_uuid"`
	DeviceName string          `json:"device_name,omitempty"`
	LastPullAt string          `json:"last_pull_at,omitempty"`
	LastPushAt string          `json:"last_push_at,omitempty"`
	Runs       []model.SyncRun `json:"runs"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show today's counts and sync state",
		Long: `Show the kiosk's dining hall, the active meal and its headcount, the
number of meal logs waiting to be pushed and the most recent sync runs.

Examples:
  mealkiosk status
  mealkiosk status --runs 20 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Runs, "runs", 5, "number of recent sync runs to show")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	k, err := openKiosk(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer k.Close()
	ctx := cmd.Context()

	summary, err := k.dashboard.Summary(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load status", err)
	}
	cfg, err := k.store.AllConfig(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load status", err)
	}
	runs, err := k.store.RecentSyncRuns(ctx, opts.Runs)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load status", err)
	}

	report := StatusReport{
		Summary:    summary,
		DeviceUUID: cfg[model.KeyDeviceUUID],
		DeviceName: cfg[model.KeyDeviceName],
		LastPullAt: cfg[model.KeyLastPullAt],
		LastPushAt: cfg[model.KeyLastPushAt],
		Runs:       runs,
	}
	return k.out.Emit(report, func(w io.Writer) { writeStatus(w, report) })
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// writeStatus renders the report for humans. The device UUID is left out so
// the output is stable across kiosks.
func writeStatus(w io.Writer, r StatusReport) {
	fmt.Fprintf(w, "Date:          %s\n", r.Date)

	switch {
	case r.DiningHall != nil:
		fmt.Fprintf(w, "Dining hall:   %s (#%d)\n", r.DiningHall.Name, r.DiningHall.ID)
	case r.DiningHallID != nil:
		fmt.Fprintf(w, "Dining hall:   #%d\n", *r.DiningHallID)
	default:
		fmt.Fprintln(w, "Dining hall:   not configured")
	}

	if r.Meal != nil {
		fmt.Fprintf(w, "Meal:          %s (%s-%s)\n", r.Meal.Name, r.Meal.StartTime, r.Meal.EndTime)
	} else {
		fmt.Fprintln(w, "Meal:          none active")
	}
	fmt.Fprintf(w, "Chef:          %s\n", orDefault(r.ChefName, "-"))

	if c := r.Counts; c != nil {
		fmt.Fprintf(w, "Expected:      %d (here %d, inbound %d, away %d)\n", c.Expected, c.DefaultHere, c.Inbound, c.Away)
		fmt.Fprintf(w, "Served:        %d (manual %d, extra %d)\n", c.Served, c.Manual, c.Extra)
		fmt.Fprintf(w, "Remaining:     %d\n", c.Remaining)
	}

	fmt.Fprintf(w, "Pending:       %d\n", r.Pending)
	fmt.Fprintf(w, "Device:        %s\n", orDefault(r.DeviceName, "unregistered"))
	fmt.Fprintf(w, "Last pull:     %s\n", orDefault(r.LastPullAt, "never"))
	fmt.Fprintf(w, "Last push:     %s\n", orDefault(r.LastPushAt, "never"))

	if len(r.Runs) == 0 {
		fmt.Fprintln(w, "Recent syncs:  none")
		return
	}
	fmt.Fprintln(w, "Recent syncs:")
	for _, run := range r.Runs {
		line := fmt.Sprintf("  %s  %-18s %-8s %d", run.StartedAt.Format(time.DateTime), run.Type, run.Status, run.RecordCount)
		if run.Error != "" {
			line += "  " + run.Error
		}
		fmt.Fprintln(w, line)
	}
}
