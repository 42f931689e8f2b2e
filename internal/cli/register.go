package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/mealkiosk/internal/engine"
)

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "register <name>",
		Short: "Register this kiosk with the backend",
		Long: `Register this kiosk in the backend's kiosk list under a display name.

The kiosk is keyed by its device UUID, so registering again renames it.

Example:
  mealkiosk register "East canteen, door 2"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(rootOpts, cmd, args[0])
		},
	}
}

func runRegister(opts *RootOptions, cmd *cobra.Command, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return NewExitError(ExitCommandError, "device name must not be empty")
	}

	k, err := openKiosk(opts, cmd)
	if err != nil {
		return err
	}
	defer k.Close()

	err = k.engine.RegisterDevice(cmd.Context(), name)
	if errors.Is(err, engine.ErrDeviceNotSeeded) {
		return WrapExitError(ExitCommandError, "registration failed", err)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "registration failed", err)
	}
	return k.out.Emit(map[string]string{"device_name": name}, func(w io.Writer) {
		fmt.Fprintf(w, "Registered as %s\n", name)
	})
}
