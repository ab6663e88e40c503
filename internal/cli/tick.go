package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/gymtrack/internal/engine"
)

// TickOptions holds flags for the tick command.
type TickOptions struct {
	*RootOptions
	Holder  string
	NoLease bool
}

// NewTickCommand creates the tick command.
func NewTickCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TickOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one reconciler pass and exit",
		Long: `Run one reconciler pass: activate reservations whose window has opened,
complete those whose window has ended and repair stale machine status.

Useful from cron. The pass takes the same lease as serve, so it is skipped
(exit 0) while a serve process owns the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTick(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Holder, "holder", "", "lease holder id (default hostname:pid)")
	cmd.Flags().BoolVar(&opts.NoLease, "no-lease", false, "tick without taking the reconciler lease")

	return cmd
}

type tickSkipView struct {
	Skipped bool   `json:"skipped"`
	Holder  string `json:"holder,omitempty"`
}

func runTick(opts *TickOptions, cmd *cobra.Command) error {
	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var recOpts []engine.ReconcilerOption
	if !opts.NoLease {
		recOpts = append(recOpts, engine.WithLease(a.store, leaseHolder(opts.Holder), a.cfg.LeaseTTL.Std()))
	}
	rec := a.reconciler(opts.RootOptions, recOpts...)
	ctx := cmd.Context()

	var report engine.TickReport
	err = engine.Retry(ctx, func() error {
		var err error
		report, err = rec.TickOnce(ctx)
		return err
	})
	if errors.Is(err, engine.ErrLeaseHeld) {
		holder, _, _, _ := a.store.LeaseHolder(ctx, engine.DefaultLeaseName)
		return a.out.Success(WarnMsg("tick skipped: reconciler lease held by %s", holder),
			tickSkipView{Skipped: true, Holder: holder})
	}
	if err != nil {
		return a.out.Fail("tick", err)
	}
	if report.Failures > 0 {
		_ = a.out.Success(tickSummary(report), report)
		return NewExitError(ExitFailure, "tick completed with failures")
	}
	return a.out.Success(tickSummary(report), report)
}

// leaseHolder defaults an empty --holder to hostname:pid.
func leaseHolder(flag string) string {
	if flag != "" {
		return flag
	}
	host, _ := os.Hostname()
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
