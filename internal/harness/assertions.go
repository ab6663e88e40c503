package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/gymtrack/internal/engine"
	"github.com/roach88/gymtrack/internal/model"
)

// EvaluateAssertions checks every assertion against the service's current
// state and returns one message per failed assertion.
func EvaluateAssertions(ctx context.Context, svc *engine.Service, result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(ctx, svc, result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d] (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(ctx context.Context, svc *engine.Service, result *Result, a Assertion) error {
	switch a.Type {
	case AssertReservationStatus:
		return assertReservationStatus(ctx, svc, result, a)
	case AssertResourceStatus:
		return assertResourceStatus(ctx, svc, result, a)
	case AssertNoOverlap:
		return assertNoOverlap(ctx, svc, a)
	case AssertUpcoming:
		return assertUpcoming(ctx, svc, result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertReservationStatus(ctx context.Context, svc *engine.Service, result *Result, a Assertion) error {
	r, err := svc.GetReservation(ctx, result.resolve(a.Reservation))
	if err != nil {
		return err
	}
	if string(r.Status) != a.Status {
		return fmt.Errorf("reservation %s: expected status %s, got %s", a.Reservation, a.Status, r.Status)
	}
	return nil
}

func assertResourceStatus(ctx context.Context, svc *engine.Service, result *Result, a Assertion) error {
	res, err := svc.GetResource(ctx, a.Resource)
	if err != nil {
		return err
	}
	if string(res.Status) != a.Status {
		return fmt.Errorf("resource %s: expected status %s, got %s", a.Resource, a.Status, res.Status)
	}

	switch {
	case a.Occupant == "":
	case a.Occupant == "-":
		if res.Occupancy != nil {
			return fmt.Errorf("resource %s: expected no occupancy, held by %s", a.Resource, res.Occupancy.OccupantID)
		}
	default:
		if res.Occupancy == nil {
			return fmt.Errorf("resource %s: expected occupancy by %s, got none", a.Resource, a.Occupant)
		}
		if res.Occupancy.OccupantID != a.Occupant {
			return fmt.Errorf("resource %s: expected occupancy by %s, got %s", a.Resource, a.Occupant, res.Occupancy.OccupantID)
		}
	}
	return nil
}

// assertNoOverlap checks that no two live reservations on the same resource
// overlap. With Resource empty every resource is checked.
func assertNoOverlap(ctx context.Context, svc *engine.Service, a Assertion) error {
	var ids []string
	if a.Resource != "" {
		ids = []string{a.Resource}
	} else {
		resources, _, err := svc.ListResources(ctx, 1, 1000)
		if err != nil {
			return err
		}
		for _, r := range resources {
			ids = append(ids, r.ID)
		}
	}

	for _, id := range ids {
		all, err := svc.ListReservations(ctx, id)
		if err != nil {
			return err
		}
		var live []model.Reservation
		for _, r := range all {
			if !r.Status.Terminal() {
				live = append(live, r)
			}
		}
		for i := range live {
			for j := i + 1; j < len(live); j++ {
				if live[i].Window().Overlaps(live[j].Window()) {
					return fmt.Errorf("resource %s: %s overlaps %s", id, live[i].ID, live[j].ID)
				}
			}
		}
	}
	return nil
}

func assertUpcoming(ctx context.Context, svc *engine.Service, result *Result, a Assertion) error {
	got, err := svc.ListUpcoming(ctx, a.Occupant)
	if err != nil {
		return err
	}

	gotIDs := make([]string, len(got))
	for i, r := range got {
		gotIDs[i] = r.ID
	}
	wantIDs := make([]string, len(a.Reservations))
	for i, name := range a.Reservations {
		wantIDs[i] = result.resolve(name)
	}

	if strings.Join(gotIDs, ",") != strings.Join(wantIDs, ",") {
		return fmt.Errorf("occupant %s: expected upcoming [%s], got [%s]",
			a.Occupant, strings.Join(wantIDs, ", "), strings.Join(gotIDs, ", "))
	}
	return nil
}
