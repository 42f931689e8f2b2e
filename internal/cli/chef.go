package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/roach88/mealkiosk/internal/engine"
	"github.com/roach88/mealkiosk/internal/model"
	"github.com/roach88/mealkiosk/internal/scan"
)

type newChef struct {
	Name string `validate:"required,max=100"`
	PIN  string `validate:"required,number,min=4,max=8"`
}

// NewChefCommand creates the chef command.
func NewChefCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chef",
		Short: "Manage chefs and the active operator",
		Long: `Manage the chefs of this kiosk's dining hall.

Adding, enabling and disabling chefs writes through to the backend. Logging in
makes a chef the active operator; meal logs recorded afterwards carry their id.

Examples:
  mealkiosk chef list
  mealkiosk chef add "Bat Dorj" 4321
  mealkiosk chef disable 7
  mealkiosk chef login 4321`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List chefs of this kiosk's dining hall",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChefList(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "add <name> <pin>",
		Short:         "Create a chef in the backend",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChefAdd(rootOpts, cmd, newChef{Name: args[0], PIN: args[1]})
		},
	})
	for _, active := range []bool{true, false} {
		use, short := "enable <id>", "Reactivate a chef"
		if !active {
			use, short = "disable <id>", "Deactivate a chef"
		}
		cmd.AddCommand(&cobra.Command{
			Use:           use,
			Short:         short,
			Args:          cobra.ExactArgs(1),
			SilenceUsage:  true,
			SilenceErrors: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runChefSetActive(rootOpts, cmd, args[0], active)
			},
		})
	}
	cmd.AddCommand(&cobra.Command{
		Use:           "login <pin>",
		Short:         "Make the chef with this PIN the active operator",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChefLogin(rootOpts, cmd, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "logout",
		Short:         "Clear the active operator",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChefLogout(rootOpts, cmd)
		},
	})

	return cmd
}

func runChefList(opts *RootOptions, cmd *cobra.Command) error {
	k, err := openKiosk(opts, cmd)
	if err != nil {
		return err
	}
	defer k.Close()
	ctx := cmd.Context()

	hallID, ok, err := k.store.DiningHallID(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list chefs", err)
	}
	if !ok {
		return WrapExitError(ExitCommandError, "failed to list chefs", engine.ErrNoDiningHall)
	}
	chefs, err := k.store.Chefs(ctx, hallID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list chefs", err)
	}

	return k.out.Emit(chefs, func(w io.Writer) { writeChefs(w, chefs) })
}

func writeChefs(w io.Writer, chefs []model.Chef) {
	if len(chefs) == 0 {
		fmt.Fprintln(w, "No chefs.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tACTIVE")
	for _, c := range chefs {
		fmt.Fprintf(tw, "%d\t%s\t%t\n", c.ID, c.Name, c.IsActive)
	}
	_ = tw.Flush()
}

func runChefAdd(opts *RootOptions, cmd *cobra.Command, in newChef) error {
	if err := validator.New().Struct(in); err != nil {
		return WrapExitError(ExitCommandError, "invalid chef", err)
	}

	k, err := openKiosk(opts, cmd)
	if err != nil {
		return err
	}
	defer k.Close()

	chef, err := k.engine.CreateChef(cmd.Context(), in.Name, in.PIN)
	if errors.Is(err, engine.ErrNoDiningHall) {
		return WrapExitError(ExitCommandError, "failed to add chef", err)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to add chef", err)
	}
	return k.out.Emit(chef, func(w io.Writer) {
		fmt.Fprintf(w, "Added chef %s (#%d)\n", chef.Name, chef.ID)
	})
}

func runChefSetActive(opts *RootOptions, cmd *cobra.Command, arg string, active bool) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid chef id %q", arg))
	}

	k, err := openKiosk(opts, cmd)
	if err != nil {
		return err
	}
	defer k.Close()

	if err := k.engine.SetChefActive(cmd.Context(), id, active); err != nil {
		return WrapExitError(ExitFailure, "failed to update chef", err)
	}
	return k.out.Emit(map[string]any{"id": id, "is_active": active}, func(w io.Writer) {
		state := "enabled"
		if !active {
			state = "disabled"
		}
		fmt.Fprintf(w, "Chef #%d %s\n", id, state)
	})
}

func runChefLogin(opts *RootOptions, cmd *cobra.Command, pin string) error {
	k, err := openKiosk(opts, cmd)
	if err != nil {
		return err
	}
	defer k.Close()

	chef, err := k.processor.Login(cmd.Context(), pin)
	if errors.Is(err, scan.ErrInvalidPIN) {
		return WrapExitError(ExitFailure, "login failed", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "login failed", err)
	}
	return k.out.Emit(chef, func(w io.Writer) {
		fmt.Fprintf(w, "Logged in as %s\n", chef.Name)
	})
}

func runChefLogout(opts *RootOptions, cmd *cobra.Command) error {
	k, err := openKiosk(opts, cmd)
	if err != nil {
		return err
	}
	defer k.Close()

	if err := k.processor.Logout(cmd.Context()); err != nil {
		return WrapExitError(ExitCommandError, "logout failed", err)
	}
	return k.out.Emit(map[string]bool{"logged_out": true}, func(w io.Writer) {
		fmt.Fprintln(w, "Logged out")
	})
}
