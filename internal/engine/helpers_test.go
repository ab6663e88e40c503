package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/gymtrack/internal/model"
	"github.com/roach88/gymtrack/internal/store"
	"github.com/roach88/gymtrack/internal/testutil"
)

// start is a whole-minute instant so truncation never shifts test windows.
var start = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

var (
	alice   = model.Actor{ID: "alice", Role: model.RoleMember}
	bob     = model.Actor{ID: "bob", Role: model.RoleMember}
	trainer = model.Actor{ID: "tina", Role: model.RoleTrainer}
	admin   = model.Actor{ID: "root", Role: model.RoleAdmin}
)

type testEnv struct {
	store *store.Store
	clock *testutil.FakeClock
	svc   *Service
	rec   *Reconciler
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := testutil.NewFakeClock(start)
	base := []Option{
		WithClock(clock),
		WithIDGenerator(testutil.NewSequenceGenerator("id")),
		WithLogger(discardLogger()),
	}
	svc := New(st, append(base, opts...)...)
	rec := NewReconciler(st,
		WithReconcilerClock(clock),
		WithReconcilerLogger(discardLogger()),
	)

	return &testEnv{store: st, clock: clock, svc: svc, rec: rec}
}

func (e *testEnv) resource(t *testing.T, name string) model.Resource {
	t.Helper()
	r, err := e.svc.CreateResource(context.Background(), name, "", admin)
	require.NoError(t, err)
	return r
}

func (e *testEnv) tick(t *testing.T) TickReport {
	t.Helper()
	report, err := e.rec.Tick(context.Background())
	require.NoError(t, err)
	return report
}

func (e *testEnv) reservation(t *testing.T, id string) model.Reservation {
	t.Helper()
	r, err := e.svc.GetReservation(context.Background(), id)
	require.NoError(t, err)
	return r
}

func (e *testEnv) getResource(t *testing.T, id string) model.Resource {
	t.Helper()
	r, err := e.svc.GetResource(context.Background(), id)
	require.NoError(t, err)
	return r
}
