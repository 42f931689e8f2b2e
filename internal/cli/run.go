package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/mealkiosk/internal/api"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	NoAPI bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the sync scheduler and the local API",
		Long: `Start the kiosk runtime.

The sync scheduler syncs at start, after every reconnect and on the sync
interval, and sends heartbeats while online. The local HTTP API serves the
scan screen unless disabled.

Example:
  mealkiosk run --config /etc/mealkiosk.yaml
  mealkiosk run --db ./kiosk.db --no-api --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKiosk(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.NoAPI, "no-api", false, "do not start the local HTTP API")

	return cmd
}

func runKiosk(opts *RunOptions, cmd *cobra.Command) error {
	k, err := openKiosk(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer k.Close()

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			k.logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return k.engine.Run(gctx)
	})

	if k.cfg.API.Enabled && !opts.NoAPI {
		ln, err := net.Listen("tcp", k.cfg.API.Listen)
		if err != nil {
			cancel()
			_ = g.Wait()
			return WrapExitError(ExitCommandError, "failed to listen", err)
		}
		srv := api.New(api.Deps{
			Store:     k.store,
			Processor: k.processor,
			Dashboard: k.dashboard,
			Syncer:    k.engine,
			Logger:    k.logger.Named("api"),
		})
		g.Go(func() error {
			return srv.Serve(gctx, ln)
		})
		fmt.Fprintf(cmd.OutOrStdout(), "API listening on %s\n", ln.Addr())
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Kiosk started. Press Ctrl-C to stop.")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "kiosk error", err)
	}

	k.logger.Info("kiosk stopped gracefully")
	return nil
}
