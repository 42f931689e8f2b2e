package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/mealkiosk/internal/scan"
)

// ScanOptions holds flags for the scan command.
type ScanOptions struct {
	*RootOptions
	Approve string // "", "manual" or "extra"
	Manual  bool
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scan <payload>",
		Short: "Record a badge scan",
		Long: `Decide one badge scan against local data and record it.

Scans that need an operator decision (unknown or unauthorized employees,
second scans for the same meal) are cancelled unless --approve names the
decision to take. With --manual the argument is an employee id and the meal is
recorded without any authorization check.

A rejected scan exits 1.

Examples:
  mealkiosk scan '{"id_card_number":"C1"}'
  mealkiosk scan '{"id_card_number":"C2"}' --approve extra
  mealkiosk scan --manual 42`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Approve, "approve", "", "decision for an escalated scan (manual|extra)")
	cmd.Flags().BoolVar(&opts.Manual, "manual", false, "record a manual entry for an employee id")

	return cmd
}

func runScan(opts *ScanOptions, cmd *cobra.Command, arg string) error {
	switch opts.Approve {
	case "", "manual", "extra":
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --approve %q: must be manual or extra", opts.Approve))
	}
	if opts.Manual && opts.Approve != "" {
		return NewExitError(ExitCommandError, "--approve cannot be combined with --manual")
	}

	k, err := openKiosk(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer k.Close()
	ctx := cmd.Context()

	if opts.Manual {
		out, err := k.processor.ManualEntry(ctx, arg)
		if errors.Is(err, scan.ErrEmployeeNotFound) {
			return WrapExitError(ExitFailure, "manual entry failed", err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "manual entry failed", err)
		}
		return emitOutcome(k, scan.Snapshot{State: scan.Idle, Outcome: &out})
	}

	snap, err := k.processor.Scan(ctx, arg)
	if err != nil {
		return WrapExitError(ExitCommandError, "scan failed", err)
	}

	if snap.State == scan.AwaitingDecision {
		switch opts.Approve {
		case "manual":
			snap, err = k.processor.ApproveManual(ctx)
		case "extra":
			snap, err = k.processor.ApproveExtra(ctx)
		default:
			prompt := snap.Prompt
			_ = k.processor.Cancel()
			_ = k.out.Emit(snap, func(w io.Writer) {
				fmt.Fprintf(w, "Decision required (%s): %s\n", prompt.Kind, prompt.Message)
			})
			return NewExitError(ExitFailure, "scan needs an operator decision; re-run with --approve")
		}
		if err != nil {
			_ = k.processor.Cancel()
			return WrapExitError(ExitFailure, "approval rejected", err)
		}
	}
	return emitOutcome(k, snap)
}

func emitOutcome(k *kiosk, snap scan.Snapshot) error {
	out := snap.Outcome
	if out == nil {
		return NewExitError(ExitFailure, "scan produced no result")
	}
	err := k.out.Emit(snap, func(w io.Writer) {
		fmt.Fprintf(w, "[%s] %s\n", out.Kind, out.Message)
		if out.EmployeeName != "" {
			fmt.Fprintf(w, "Employee: %s\n", out.EmployeeName)
		}
		if out.MealName != "" {
			fmt.Fprintf(w, "Meal:     %s\n", out.MealName)
		}
		if out.CorrectHall != nil {
			fmt.Fprintf(w, "Go to:    %s\n", out.CorrectHall.Name)
		}
		if out.Log != nil {
			fmt.Fprintf(w, "Record:   %s\n", out.Log.SyncKey)
		}
	})
	if err != nil {
		return err
	}
	if out.Kind == scan.KindError {
		return NewExitError(ExitFailure, "scan rejected: "+out.Code)
	}
	return nil
}
