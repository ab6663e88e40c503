package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the final state of a scenario run, in a stable form for
// golden comparison.
type Snapshot struct {
	Scenario     string                `json:"scenario"`
	Pass         bool                  `json:"pass"`
	Trace        []TraceEvent          `json:"trace"`
	Resources    []ResourceSnapshot    `json:"resources"`
	Reservations []ReservationSnapshot `json:"reservations"`
}

// ResourceSnapshot is one resource's final state.
type ResourceSnapshot struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Occupant string `json:"occupant,omitempty"`
	Holder   string `json:"holder,omitempty"`
}

// ReservationSnapshot is one reservation's final state.
type ReservationSnapshot struct {
	ID       string `json:"id"`
	Resource string `json:"resource"`
	Occupant string `json:"occupant"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Status   string `json:"status"`
}

// snapshot captures every scenario resource and its reservations in
// declaration order.
func (h *Harness) snapshot(ctx context.Context, result *Result) (*Snapshot, error) {
	snap := &Snapshot{
		Scenario:     h.scenario.Name,
		Pass:         result.Pass,
		Trace:        result.Trace,
		Resources:    []ResourceSnapshot{},
		Reservations: []ReservationSnapshot{},
	}

	for _, rs := range h.scenario.Resources {
		res, err := h.svc.GetResource(ctx, rs.Key)
		if err != nil {
			// Deleted during the scenario.
			continue
		}
		entry := ResourceSnapshot{ID: res.ID, Status: string(res.Status)}
		if res.Occupancy != nil {
			entry.Occupant = res.Occupancy.OccupantID
			entry.Holder = res.Occupancy.ReservationID
		}
		snap.Resources = append(snap.Resources, entry)

		reservations, err := h.svc.ListReservations(ctx, rs.Key)
		if err != nil {
			return nil, err
		}
		for _, r := range reservations {
			snap.Reservations = append(snap.Reservations, ReservationSnapshot{
				ID:       r.ID,
				Resource: r.ResourceID,
				Occupant: r.OccupantID,
				Start:    formatInstant(r.WindowStart),
				End:      formatInstant(r.WindowEnd),
				Status:   string(r.Status),
			})
		}
	}
	return snap, nil
}

// RunWithGolden executes a scenario and compares its snapshot with
// testdata/golden/<name>.golden. Run with -update to regenerate.
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, snap, err := RunWithSnapshot(scenario)
	if err != nil {
		t.Fatalf("failed to run scenario %s: %v", scenario.Name, err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal snapshot: %v", err)
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return result
}
