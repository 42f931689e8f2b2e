package cli

import (
	"fmt"
	"io"
	"slices"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/roach88/mealkiosk/internal/model"
)

// keyRules are the validator tags applied by "config set". Keys missing from
// the map are maintained by the kiosk itself and cannot be set.
var keyRules = map[string]string{
	model.KeyDiningHallID:        "required,number,max=18",
	model.KeyBackendURL:          "omitempty,url",
	model.KeyBackendKey:          "omitempty",
	model.KeyDeviceName:          "required,max=100",
	model.KeyAdminPIN:            "required,number,min=4,max=8",
	model.KeySyncIntervalMinutes: "required,number,min=1,max=4",
}

const maskedValue = "********"

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and change kiosk settings",
		Long: `Read and change the settings stored in the kiosk database.

These are the values an operator changes at the kiosk: dining hall, backend
credentials, admin PIN and sync interval. Static settings live in the YAML
configuration file.

Examples:
  mealkiosk config list
  mealkiosk config get dining_hall_id
  mealkiosk config set dining_hall_id 3`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List all settings",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "get <key>",
		Short:         "Print one setting",
		Args:          cobra.ExactArgs(1),
		ValidArgs:     model.ConfigKeys,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(rootOpts, cmd, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "set <key> <value>",
		Short:         "Change one setting",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(rootOpts, cmd, args[0], args[1])
		},
	})

	return cmd
}

func checkKey(key string) error {
	if !slices.Contains(model.ConfigKeys, key) {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown key %q", key))
	}
	return nil
}

func displayValue(key, value string) string {
	if (key == model.KeyBackendKey || key == model.KeyAdminPIN) && value != "" {
		return maskedValue
	}
	return value
}

func runConfigList(opts *RootOptions, cmd *cobra.Command) error {
	k, err := openKiosk(opts, cmd)
	if err != nil {
		return err
	}
	defer k.Close()

	values, err := k.store.AllConfig(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read config", err)
	}
	for key, v := range values {
		values[key] = displayValue(key, v)
	}

	return k.out.Emit(values, func(w io.Writer) {
		keys := make([]string, 0, len(values))
		for key := range values {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(w, "%s=%s\n", key, values[key])
		}
	})
}

func runConfigGet(opts *RootOptions, cmd *cobra.Command, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	k, err := openKiosk(opts, cmd)
	if err != nil {
		return err
	}
	defer k.Close()

	v, ok, err := k.store.GetConfig(cmd.Context(), key)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read config", err)
	}
	if !ok {
		return NewExitError(ExitFailure, fmt.Sprintf("%s is not set", key))
	}
	v = displayValue(key, v)
	return k.out.Emit(map[string]string{key: v}, func(w io.Writer) {
		fmt.Fprintln(w, v)
	})
}

func runConfigSet(opts *RootOptions, cmd *cobra.Command, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	rule, settable := keyRules[key]
	if !settable {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s is maintained by the kiosk and cannot be set", key))
	}
	if err := validator.New().Var(value, rule); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid value for %s", key), err)
	}

	k, err := openKiosk(opts, cmd)
	if err != nil {
		return err
	}
	defer k.Close()

	if err := k.store.SetConfig(cmd.Context(), key, value); err != nil {
		return WrapExitError(ExitCommandError, "failed to write config", err)
	}
	shown := displayValue(key, value)
	return k.out.Emit(map[string]string{key: shown}, func(w io.Writer) {
		fmt.Fprintf(w, "%s=%s\n", key, shown)
	})
}
