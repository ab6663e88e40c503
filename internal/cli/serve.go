package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/gymtrack/internal/engine"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Holder  string
	NoLease bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reconciler until interrupted",
		Long: `Run the lifecycle reconciler every tick_interval until SIGINT or SIGTERM.

Several serve processes may share one database: they coordinate through a
lease so that only one sweeps at a time. If ntp_server is configured the
host clock is checked once at start-up.

Example:
  gymtrack serve --db ./gym.db
  gymtrack serve --db ./gym.db --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Holder, "holder", "", "lease holder id (default hostname:pid)")
	cmd.Flags().BoolVar(&opts.NoLease, "no-lease", false, "tick without taking the reconciler lease")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	holder := leaseHolder(opts.Holder)

	recOpts := []engine.ReconcilerOption{
		engine.WithTickHook(func(r engine.TickReport) {
			if r.Changed() {
				opts.output(cmd).VerboseLog("%s", tickSummary(r))
			}
		}),
	}
	if !opts.NoLease {
		recOpts = append(recOpts, engine.WithLease(a.store, holder, a.cfg.LeaseTTL.Std()))
	}
	rec := a.reconciler(opts.RootOptions, recOpts...)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.store.Ping(ctx); err != nil {
		return WrapExitError(ExitCommandError, "database unavailable", err)
	}

	a.logger.Info("reconciler starting",
		"db", a.cfg.Database,
		"interval", a.cfg.TickInterval.Std(),
		"holder", holder,
		"lease", !opts.NoLease,
	)
	fmt.Fprintln(cmd.OutOrStdout(), InfoMsg("Reconciler started. Press Ctrl-C to stop."))

	g, ctx := errgroup.WithContext(ctx)
	if a.cfg.NTPServer != "" {
		g.Go(func() error {
			_, _ = checkClockOffset(a.cfg.NTPServer, a.logger)
			return nil
		})
	}
	g.Go(func() error { return rec.Run(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "reconciler error", err)
	}

	a.logger.Info("reconciler stopped gracefully")
	return nil
}
