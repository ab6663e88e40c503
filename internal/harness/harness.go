package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/gymtrack/internal/engine"
	"github.com/roach88/gymtrack/internal/model"
	"github.com/roach88/gymtrack/internal/store"
	"github.com/roach88/gymtrack/internal/testutil"
)

// Harness executes one scenario.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	clock    *testutil.FakeClock
	svc      *engine.Service
	rec      *engine.Reconciler
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// A step whose outcome differs from its expectation is recorded as an
// error and execution continues. Run itself fails only on setup or
// infrastructure errors.
func Run(scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.store.Close()

	result, err := h.run(context.Background())
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RunWithSnapshot executes a scenario and also captures the final state.
func RunWithSnapshot(scenario *Scenario) (*Result, *Snapshot, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, nil, err
	}
	defer h.store.Close()

	ctx := context.Background()
	result, err := h.run(ctx)
	if err != nil {
		return nil, nil, err
	}
	snap, err := h.snapshot(ctx, result)
	if err != nil {
		return nil, nil, err
	}
	return result, snap, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	clock := testutil.NewFakeClock(scenario.Start)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	return &Harness{
		scenario: scenario,
		store:    st,
		clock:    clock,
		svc: engine.New(st,
			engine.WithClock(clock),
			engine.WithIDGenerator(testutil.NewSequenceGenerator("rsv")),
			engine.WithLogger(logger),
		),
		rec: engine.NewReconciler(st,
			engine.WithReconcilerClock(clock),
			engine.WithReconcilerLogger(logger),
		),
	}, nil
}

func (h *Harness) run(ctx context.Context) (*Result, error) {
	if err := h.setup(ctx); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	for i, step := range h.scenario.Steps {
		if err := h.execute(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("steps[%d] (%s): %w", i, step.Op, err)
		}
	}

	for _, msg := range EvaluateAssertions(ctx, h.svc, result, h.scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) setup(ctx context.Context) error {
	start := model.CanonicalInstant(h.scenario.Start)
	for _, rs := range h.scenario.Resources {
		status := model.ResourceAvailable
		if rs.Status != "" {
			parsed, err := model.ParseResourceStatus(rs.Status)
			if err != nil {
				return fmt.Errorf("resource %s: %w", rs.Key, err)
			}
			status = parsed
		}
		owner := rs.Owner
		if owner == "" {
			owner = "root"
		}
		name := rs.Name
		if name == "" {
			name = rs.Key
		}

		r := model.Resource{
			ID:        rs.Key,
			Name:      model.NormalizeName(name),
			OwnerID:   owner,
			Status:    status,
			CreatedAt: start,
			UpdatedAt: start,
		}
		if err := h.store.CreateResource(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// execute runs one step. Domain errors are compared against the step's
// expectation; anything else aborts the run.
func (h *Harness) execute(ctx context.Context, i int, step Step, result *Result) error {
	event := TraceEvent{
		Step:     i,
		Op:       step.Op,
		At:       formatInstant(h.clock.Now()),
		Resource: step.Resource,
	}

	var err error
	switch step.Op {
	case OpBook:
		var r model.Reservation
		r, err = h.svc.Book(ctx, step.Resource, step.Occupant, h.scenario.Start.Add(step.At), step.Minutes)
		if err == nil {
			event.Reservation = r.ID
			if step.As != "" {
				result.Names[step.As] = r.ID
			}
		}

	case OpCancel:
		id := result.resolve(step.Reservation)
		event.Reservation = id
		_, err = h.svc.Cancel(ctx, id, actorOf(step))

	case OpAdvance:
		h.clock.Advance(step.By)
		event.At = formatInstant(h.clock.Now())

	case OpTick:
		var report engine.TickReport
		report, err = h.rec.Tick(ctx)
		if err == nil {
			event.Tick = &TickCounts{
				Activated: report.Activated,
				Completed: report.Completed,
				Expired:   report.Expired,
				Released:  report.Released,
				Repaired:  report.Repaired,
				Failures:  report.Failures,
			}
			if step.Changed != nil && *step.Changed != report.Changed() {
				result.AddError(fmt.Sprintf("steps[%d] (tick): expected changed=%t, got %t", i, *step.Changed, report.Changed()))
			}
		}

	case OpSetStatus:
		_, err = h.svc.SetStatus(ctx, step.Resource, model.ResourceStatus(step.Status), step.Message, actorOf(step))

	case OpDelete:
		err = h.svc.DeleteResource(ctx, step.Resource, actorOf(step))
	}

	event.Outcome = ExpectOK
	if err != nil {
		code := model.CodeOf(err)
		if code == "" || code == model.CodeStoreUnavailable {
			return err
		}
		event.Outcome = string(code)
	}
	result.Trace = append(result.Trace, event)

	if want := step.expected(); event.Outcome != want {
		msg := fmt.Sprintf("steps[%d] (%s): expected %s, got %s", i, step.Op, want, event.Outcome)
		if err != nil {
			msg += ": " + err.Error()
		}
		result.AddError(msg)
	}
	return nil
}

// resolve maps a scenario reservation name to its ID. Unknown names are
// passed through so that scenarios can target IDs that do not exist.
func (r *Result) resolve(name string) string {
	if id, ok := r.Names[name]; ok {
		return id
	}
	return name
}

func actorOf(step Step) model.Actor {
	role, err := model.ParseRole(step.Role)
	if err != nil {
		role = model.Role(step.Role)
	}
	return model.Actor{ID: step.Actor, Role: role}
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
