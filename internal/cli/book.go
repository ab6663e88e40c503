package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/gymtrack/internal/engine"
	"github.com/roach88/gymtrack/internal/model"
)

// BookOptions holds flags for the book command.
type BookOptions struct {
	*RootOptions
	At       string
	In       time.Duration
	Minutes  int
	Occupant string
}

// NewBookCommand creates the book command.
func NewBookCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BookOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "book <resource-id>",
		Short: "Book a machine for a future window",
		Long: `Book a machine for a window starting at --at (RFC3339) or --in from now.
The start is truncated to the minute; --minutes must be a positive
multiple of the configured granularity.

Example:
  gymtrack book 0192f0c4-... --actor alice --at 2026-03-02T18:00:00Z --minutes 45
  gymtrack book 0192f0c4-... --actor alice --in 10m --minutes 30`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBook(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "", "window start (RFC3339)")
	cmd.Flags().DurationVar(&opts.In, "in", 0, "window start relative to now")
	cmd.Flags().IntVar(&opts.Minutes, "minutes", 0, "duration in minutes (required)")
	cmd.Flags().StringVar(&opts.Occupant, "occupant", "", "book on behalf of another user (staff only)")
	cmd.MarkFlagsMutuallyExclusive("at", "in")
	cmd.MarkFlagsOneRequired("at", "in")
	_ = cmd.MarkFlagRequired("minutes")

	return cmd
}

func runBook(opts *BookOptions, resourceID string, cmd *cobra.Command) error {
	actor, err := opts.actor()
	if err != nil {
		return err
	}
	occupant := actor.ID
	if opts.Occupant != "" && opts.Occupant != actor.ID {
		if !actor.IsStaff() {
			return opts.output(cmd).Fail("book", model.ErrForbidden.With("occupant_id", opts.Occupant))
		}
		occupant = opts.Occupant
	}

	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var start time.Time
	if opts.At != "" {
		start, err = time.Parse(time.RFC3339, opts.At)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --at", err)
		}
	} else {
		start = clockOf(opts.RootOptions).Now().Add(opts.In)
	}

	ctx := cmd.Context()
	var r model.Reservation
	err = engine.Retry(ctx, func() error {
		var err error
		r, err = a.svc.Book(ctx, resourceID, occupant, start, opts.Minutes)
		return err
	})
	if err != nil {
		return a.out.Fail("book", err)
	}

	return a.out.Success(
		SuccessMsg("booked %s on %s from %s to %s", r.ID, r.ResourceID,
			formatInstant(r.WindowStart), formatInstant(r.WindowEnd)),
		toReservationView(r),
	)
}

// NewCancelCommand creates the cancel command.
func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <reservation-id>",
		Short: "Cancel a scheduled or active reservation",
		Long: `Cancel a reservation. Only its occupant, a trainer or an admin may cancel.
Cancelling an active reservation frees the machine immediately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCancel(rootOpts, args[0], cmd)
		},
	}
}

func runCancel(opts *RootOptions, reservationID string, cmd *cobra.Command) error {
	actor, err := opts.actor()
	if err != nil {
		return err
	}

	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	var r model.Reservation
	err = engine.Retry(ctx, func() error {
		var err error
		r, err = a.svc.Cancel(ctx, reservationID, actor)
		return err
	})
	if err != nil {
		return a.out.Fail("cancel", err)
	}

	return a.out.Success(SuccessMsg("cancelled %s", r.ID), toReservationView(r))
}

// NewUpcomingCommand creates the upcoming command.
func NewUpcomingCommand(rootOpts *RootOptions) *cobra.Command {
	var occupant string

	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List scheduled and active reservations of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			who := occupant
			if who == "" {
				actor, err := rootOpts.actor()
				if err != nil {
					return err
				}
				who = actor.ID
			}
			return runUpcoming(rootOpts, who, cmd)
		},
	}

	cmd.Flags().StringVar(&occupant, "occupant", "", "user to list (default --actor)")
	return cmd
}

func runUpcoming(opts *RootOptions, occupant string, cmd *cobra.Command) error {
	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	rs, err := a.svc.ListUpcoming(cmd.Context(), occupant)
	if err != nil {
		return a.out.Fail("upcoming", err)
	}

	text := InfoMsg("no upcoming reservations for %s", occupant)
	if len(rs) > 0 {
		text = renderTable(reservationHeaders, reservationRows(rs))
	}
	return a.out.Success(text, toReservationViews(rs))
}

// NewAvailabilityCommand creates the availability command.
func NewAvailabilityCommand(rootOpts *RootOptions) *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "availability <resource-id>",
		Short: "List free windows of a machine for one day",
		Long: `List the free windows of a machine on a UTC day (default today).
Windows are aligned to the booking granularity; time already past is
not listed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAvailability(rootOpts, args[0], day, cmd)
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "day as YYYY-MM-DD (default today, UTC)")
	return cmd
}

func runAvailability(opts *RootOptions, resourceID, day string, cmd *cobra.Command) error {
	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	d := clockOf(opts).Now()
	if day != "" {
		d, err = time.Parse(time.DateOnly, day)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --day", err)
		}
	}

	windows, err := a.svc.Availability(cmd.Context(), resourceID, d)
	if err != nil {
		return a.out.Fail("availability", err)
	}

	text := InfoMsg("no free windows on %s", d.UTC().Format(time.DateOnly))
	if len(windows) > 0 {
		rows := make([][]string, len(windows))
		for i, w := range windows {
			rows[i] = []string{
				formatInstant(w.Start),
				formatInstant(w.End),
				fmt.Sprintf("%d min", int(w.Duration().Minutes())),
			}
		}
		text = renderTable([]string{"FROM", "TO", "LENGTH"}, rows)
	}
	return a.out.Success(text, toWindowViews(windows))
}

func clockOf(opts *RootOptions) engine.Clock {
	if opts.Clock != nil {
		return opts.Clock
	}
	return engine.SystemClock{}
}
