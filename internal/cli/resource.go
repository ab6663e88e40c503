package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/gymtrack/internal/engine"
	"github.com/roach88/gymtrack/internal/model"
	"github.com/roach88/gymtrack/internal/notify"
)

// NewResourceCommand creates the resource command group.
func NewResourceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resource",
		Aliases: []string{"machine"},
		Short:   "Manage machines",
	}

	cmd.AddCommand(newResourceAddCommand(rootOpts))
	cmd.AddCommand(newResourceListCommand(rootOpts))
	cmd.AddCommand(newResourceShowCommand(rootOpts))
	cmd.AddCommand(newResourceDeleteCommand(rootOpts))
	cmd.AddCommand(newResourceStatusCommand(rootOpts))
	return cmd
}

func newResourceAddCommand(rootOpts *RootOptions) *cobra.Command {
	var image string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a machine owned by --actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := rootOpts.actor()
			if err != nil {
				return err
			}
			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.svc.CreateResource(cmd.Context(), args[0], image, actor)
			if err != nil {
				return a.out.Fail("resource add", err)
			}
			return a.out.Success(SuccessMsg("added %s (%s)", r.Name, r.ID), toResourceView(r))
		},
	}

	cmd.Flags().StringVar(&image, "image", "", "image URL")
	return cmd
}

func newResourceListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		page, limit int
		owner       string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List machines, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if owner != "" {
				rs, err := a.svc.ListResourcesByOwner(ctx, owner)
				if err != nil {
					return a.out.Fail("resource list", err)
				}
				return a.out.Success(resourceTable(rs), toResourceViews(rs))
			}

			rs, total, err := a.svc.ListResources(ctx, page, limit)
			if err != nil {
				return a.out.Fail("resource list", err)
			}
			if page < 1 {
				page = 1
			}
			if limit < 1 {
				limit = 10
			}
			view := resourcePageView{
				Resources:  toResourceViews(rs),
				Page:       page,
				Total:      total,
				TotalPages: (total + limit - 1) / limit,
			}
			text := resourceTable(rs) + "\n" + mutedStyle.Render(fmt.Sprintf("page %d of %d, %d machines", view.Page, view.TotalPages, total))
			return a.out.Success(text, view)
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 10, "machines per page")
	cmd.Flags().StringVar(&owner, "owner", "", "only machines owned by this user")
	return cmd
}

func resourceTable(rs []model.Resource) string {
	if len(rs) == 0 {
		return InfoMsg("no machines")
	}
	rows := make([][]string, len(rs))
	for i, r := range rs {
		occupant := "-"
		if r.Occupancy != nil {
			occupant = r.Occupancy.OccupantID
		}
		rows[i] = []string{r.ID, r.Name, r.OwnerID, resourceStatus(r.Status), occupant}
	}
	return renderTable([]string{"ID", "NAME", "OWNER", "STATUS", "OCCUPANT"}, rows)
}

func newResourceShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <resource-id>",
		Short: "Show a machine and its reservations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			r, err := a.svc.GetResource(ctx, args[0])
			if err != nil {
				return a.out.Fail("resource show", err)
			}
			rs, err := a.svc.ListReservations(ctx, r.ID)
			if err != nil {
				return a.out.Fail("resource show", err)
			}

			pairs := []pair{
				kv("id", r.ID),
				kv("name", r.Name),
				kv("owner", r.OwnerID),
				kv("status", resourceStatus(r.Status)),
			}
			if r.ImageURL != "" {
				pairs = append(pairs, kv("image", r.ImageURL))
			}
			if o := r.Occupancy; o != nil {
				pairs = append(pairs, kv("occupant", fmt.Sprintf("%s until %s", o.OccupantID, formatInstant(o.WindowEnd))))
			}
			if in := r.LastIncident; in != nil {
				pairs = append(pairs, kv("incident", fmt.Sprintf("%q by %s at %s", in.Message, in.ReporterID, formatInstant(in.ReportedAt))))
			}
			text := keyValues(pairs...)
			if len(rs) > 0 {
				text += renderTable(reservationHeaders, reservationRows(rs))
			}

			return a.out.Success(text, struct {
				Resource     resourceView      `json:"resource"`
				Reservations []reservationView `json:"reservations"`
			}{toResourceView(r), toReservationViews(rs)})
		},
	}
}

func newResourceDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <resource-id>",
		Short: "Delete an idle machine (owner or admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := rootOpts.actor()
			if err != nil {
				return err
			}
			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.DeleteResource(cmd.Context(), args[0], actor); err != nil {
				return a.out.Fail("resource delete", err)
			}
			return a.out.Success(SuccessMsg("deleted %s", args[0]), map[string]string{"id": args[0]})
		},
	}
}

func newResourceStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "status <resource-id> <available|maintenance>",
		Short: "Report a machine broken or put it back in service",
		Long: `Change a machine's status.

Anyone may put a machine into maintenance; the administrators listed in
admin_recipients are notified. Only trainers and admins may return it to
available. Machines become reserved only through bookings.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := rootOpts.actor()
			if err != nil {
				return err
			}
			status, err := model.ParseResourceStatus(args[1])
			if err != nil {
				return rootOpts.output(cmd).Fail("resource status", err)
			}
			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			notifier := notify.NewAsync(notify.LogNotifier{Logger: a.logger}, a.logger)
			defer notifier.Wait()

			return setStatus(cmd, a, notifier, args[0], status, message, actor)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "what is wrong (maintenance only)")
	return cmd
}

// setStatus applies a status change and notifies administrators when a
// machine enters maintenance. A notification failure never fails the
// command.
func setStatus(cmd *cobra.Command, a *app, n notify.Notifier, id string, status model.ResourceStatus, message string, actor model.Actor) error {
	ctx := cmd.Context()
	var r model.Resource
	err := engine.Retry(ctx, func() error {
		var err error
		r, err = a.svc.SetStatus(ctx, id, status, message, actor)
		return err
	})
	if err != nil {
		return a.out.Fail("resource status", err)
	}

	if r.Status == model.ResourceMaintenance {
		_ = n.Notify(ctx, notify.MaintenanceReport(r, a.cfg.AdminRecipients))
	}
	return a.out.Success(SuccessMsg("%s is now %s", r.Name, resourceStatus(r.Status)), toResourceView(r))
}
