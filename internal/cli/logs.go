package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/roach88/mealkiosk/internal/model"
	"github.com/roach88/mealkiosk/internal/store"
)

// LogsOptions holds flags for the logs command.
type LogsOptions struct {
	*RootOptions
	Date   string `validate:"omitempty,datetime=2006-01-02"`
	Meal   string `validate:"omitempty,max=64"`
	Status string `validate:"omitempty,oneof=pending synced failed"`
	Limit  int    `validate:"gte=0,lte=1000"`
}

// NewLogsCommand creates the logs command.
func NewLogsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List recorded meal logs",
		Long: `List meal logs stored on this kiosk, newest first.

Examples:
  mealkiosk logs --date 2026-10-19 --meal lunch
  mealkiosk logs --status pending --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "only logs for this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Meal, "meal", "", "only logs for this meal slot id")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only logs with this sync status (pending|synced|failed)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum number of logs (0 for all)")

	return cmd
}

func runLogs(opts *LogsOptions, cmd *cobra.Command) error {
	if err := validator.New().Struct(opts); err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	k, err := openKiosk(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer k.Close()

	logs, err := k.store.MealLogs(cmd.Context(), store.MealLogFilter{
		Date:     opts.Date,
		MealType: opts.Meal,
		Status:   model.SyncStatus(opts.Status),
		Limit:    opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list logs", err)
	}

	return k.out.Emit(logs, func(w io.Writer) { writeLogs(w, logs) })
}

func writeLogs(w io.Writer, logs []model.MealLog) {
	if len(logs) == 0 {
		fmt.Fprintln(w, "No meal logs.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tMEAL\tEMPLOYEE\tNAME\tSTATUS\tFLAGS")
	for _, l := range logs {
		flags := "-"
		switch {
		case l.IsManualOverride && l.IsExtraServing:
			flags = "manual,extra"
		case l.IsManualOverride:
			flags = "manual"
		case l.IsExtraServing:
			flags = "extra"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", l.ID, l.Date, l.MealType, l.UserID, l.EmployeeName, l.SyncStatus, flags)
	}
	_ = tw.Flush()
}
