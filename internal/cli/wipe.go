package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/mealkiosk/internal/scan"
)

// WipeOptions holds flags for the wipe command.
type WipeOptions struct {
	*RootOptions
	Yes bool
	PIN string
}

// NewWipeCommand creates the wipe command.
func NewWipeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WipeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete all local data except the meal schedule and settings",
		Long: `Delete every meal log, replicated record and sync run from this kiosk.

Meal slots and kiosk settings are kept. Pending meal logs that were never
pushed are lost, so run "mealkiosk sync push" first.

Example:
  mealkiosk wipe --yes --pin 1234`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWipe(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "confirm the wipe")
	cmd.Flags().StringVar(&opts.PIN, "pin", "", "admin PIN (required)")
	_ = cmd.MarkFlagRequired("pin")

	return cmd
}

func runWipe(opts *WipeOptions, cmd *cobra.Command) error {
	if !opts.Yes {
		return NewExitError(ExitCommandError, "refusing to wipe without --yes")
	}

	k, err := openKiosk(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer k.Close()
	ctx := cmd.Context()

	if err := k.processor.VerifyAdminPIN(ctx, opts.PIN); err != nil {
		if errors.Is(err, scan.ErrInvalidPIN) {
			return WrapExitError(ExitFailure, "wipe refused", err)
		}
		return WrapExitError(ExitCommandError, "wipe failed", err)
	}

	pending, err := k.store.CountPending(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "wipe failed", err)
	}
	if err := k.store.Wipe(ctx); err != nil {
		return WrapExitError(ExitCommandError, "wipe failed", err)
	}
	k.logger.Warn("local data wiped")

	return k.out.Emit(map[string]int{"discarded_pending": pending}, func(w io.Writer) {
		fmt.Fprintf(w, "Local data wiped (%d pending meal logs discarded)\n", pending)
	})
}
