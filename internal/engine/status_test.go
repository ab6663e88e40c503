package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gymtrack/internal/model"
)

func TestCreateResource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	r, err := env.svc.CreateResource(ctx, "  Préss  ", "https://img/press.png", trainer)
	require.NoError(t, err)
	assert.Equal(t, "Préss", r.Name)
	assert.Equal(t, "tina", r.OwnerID)
	assert.Equal(t, model.ResourceAvailable, r.Status)

	_, err = env.svc.CreateResource(ctx, "   ", "", trainer)
	assert.ErrorIs(t, err, model.ErrInvalidResource)
}

func TestListResources(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		env.resource(t, name)
		env.clock.Advance(time.Minute)
	}
	_, err := env.svc.CreateResource(ctx, "Mine", "", alice)
	require.NoError(t, err)

	page, total, err := env.svc.ListResources(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 2)
	assert.Equal(t, "Mine", page[0].Name)
	assert.Equal(t, "C", page[1].Name)

	mine, err := env.svc.ListResourcesByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Mine", mine[0].Name)
}

func TestSetStatus_Maintenance(t *testing.T) {
	env := newTestEnv(t)
	m := env.resource(t, "Treadmill")
	ctx := context.Background()

	future, err := env.svc.Book(ctx, m.ID, "alice", start.Add(time.Hour), 30)
	require.NoError(t, err)

	got, err := env.svc.SetStatus(ctx, m.ID, model.ResourceMaintenance, "broken belt", bob)
	require.NoError(t, err)
	assert.Equal(t, model.ResourceMaintenance, got.Status)
	assert.Nil(t, got.Occupancy)
	require.NotNil(t, got.LastIncident)
	assert.Equal(t, "broken belt", got.LastIncident.Message)
	assert.Equal(t, "bob", got.LastIncident.ReporterID)
	assert.True(t, got.LastIncident.ReportedAt.Equal(start))

	// Future reservation untouched.
	assert.Equal(t, future, env.reservation(t, future.ID))

	// Stored state matches what was returned.
	assert.Equal(t, got, env.getResource(t, m.ID))

	err = env.svc.DeleteResource(ctx, m.ID, admin)
	assert.ErrorIs(t, err, model.ErrInMaintenance)
}

func TestSetStatus_MaintenanceClearsOccupancy(t *testing.T) {
	env := newTestEnv(t)
	m := env.resource(t, "Treadmill")
	ctx := context.Background()

	r, err := env.svc.Book(ctx, m.ID, "alice", start.Add(15*time.Minute), 30)
	require.NoError(t, err)
	env.clock.Advance(15 * time.Minute)
	env.tick(t)
	require.NotNil(t, env.getResource(t, m.ID).Occupancy)

	_, err = env.svc.SetStatus(ctx, m.ID, model.ResourceMaintenance, "smoke", alice)
	require.NoError(t, err)

	got := env.getResource(t, m.ID)
	assert.Nil(t, got.Occupancy)
	assert.Equal(t, model.ReservationActive, env.reservation(t, r.ID).Status)

	// Completion still closes the reservation and leaves maintenance alone.
	env.clock.Advance(time.Hour)
	report := env.tick(t)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 0, report.Released)
	assert.Equal(t, model.ResourceMaintenance, env.getResource(t, m.ID).Status)
}

func TestSetStatus_Available(t *testing.T) {
	env := newTestEnv(t)
	m := env.resource(t, "Treadmill")
	ctx := context.Background()

	_, err := env.svc.SetStatus(ctx, m.ID, model.ResourceMaintenance, "loose bolt", alice)
	require.NoError(t, err)

	_, err = env.svc.SetStatus(ctx, m.ID, model.ResourceAvailable, "", alice)
	assert.ErrorIs(t, err, model.ErrForbidden, "members cannot release")

	got, err := env.svc.SetStatus(ctx, m.ID, model.ResourceAvailable, "", trainer)
	require.NoError(t, err)
	assert.Equal(t, model.ResourceAvailable, got.Status)
	assert.Nil(t, got.LastIncident)
	assert.Nil(t, got.Occupancy)
}

func TestSetStatus_ManualReleaseOfActiveReservation(t *testing.T) {
	env := newTestEnv(t)
	m := env.resource(t, "Treadmill")
	ctx := context.Background()

	r, err := env.svc.Book(ctx, m.ID, "alice", start.Add(15*time.Minute), 60)
	require.NoError(t, err)
	env.clock.Advance(20 * time.Minute)
	env.tick(t)

	_, err = env.svc.SetStatus(ctx, m.ID, model.ResourceAvailable, "", admin)
	require.NoError(t, err)

	// The released cache stays released; the reservation still completes later.
	env.clock.Advance(time.Minute)
	report := env.tick(t)
	assert.False(t, report.Changed())
	assert.Equal(t, model.ResourceAvailable, env.getResource(t, m.ID).Status)

	env.clock.Advance(time.Hour)
	report = env.tick(t)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, model.ReservationCompleted, env.reservation(t, r.ID).Status)
}

func TestSetStatus_RejectsDirectReserve(t *testing.T) {
	env := newTestEnv(t)
	m := env.resource(t, "Treadmill")

	_, err := env.svc.SetStatus(context.Background(), m.ID, model.ResourceReserved, "", admin)
	assert.ErrorIs(t, err, model.ErrDirectReserveRejected)
	assert.Equal(t, model.ResourceAvailable, env.getResource(t, m.ID).Status)
}

func TestSetStatus_InvalidAndMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.SetStatus(ctx, "x", model.ResourceStatus("broken"), "", admin)
	assert.ErrorIs(t, err, model.ErrInvalidStatus)

	_, err = env.svc.SetStatus(ctx, "missing", model.ResourceMaintenance, "", admin)
	assert.ErrorIs(t, err, model.ErrResourceNotFound)
}

func TestSetStatus_ConcurrentWritersAllApply(t *testing.T) {
	env := newTestEnv(t)
	m := env.resource(t, "Treadmill")

	const n = 4
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.SetStatus(context.Background(), m.ID, model.ResourceMaintenance, "report", alice)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(n), env.getResource(t, m.ID).Version)
}

func TestDeleteResource(t *testing.T) {
	ctx := context.Background()

	t.Run("owner deletes idle resource", func(t *testing.T) {
		env := newTestEnv(t)
		m, err := env.svc.CreateResource(ctx, "Bike", "", alice)
		require.NoError(t, err)

		require.NoError(t, env.svc.DeleteResource(ctx, m.ID, alice))
		_, err = env.svc.GetResource(ctx, m.ID)
		assert.ErrorIs(t, err, model.ErrResourceNotFound)
	})

	t.Run("non-owner member is forbidden", func(t *testing.T) {
		env := newTestEnv(t)
		m, err := env.svc.CreateResource(ctx, "Bike", "", alice)
		require.NoError(t, err)

		assert.ErrorIs(t, env.svc.DeleteResource(ctx, m.ID, bob), model.ErrForbidden)
		assert.ErrorIs(t, env.svc.DeleteResource(ctx, m.ID, trainer), model.ErrForbidden)
		assert.NoError(t, env.svc.DeleteResource(ctx, m.ID, admin))
	})

	t.Run("future reservation refuses", func(t *testing.T) {
		env := newTestEnv(t)
		m := env.resource(t, "Bike")
		_, err := env.svc.Book(ctx, m.ID, "alice", start.Add(time.Hour), 15)
		require.NoError(t, err)

		assert.ErrorIs(t, env.svc.DeleteResource(ctx, m.ID, admin), model.ErrHasActiveOrFutureReservation)
	})

	t.Run("history does not refuse", func(t *testing.T) {
		env := newTestEnv(t)
		m := env.resource(t, "Bike")
		_, err := env.svc.Book(ctx, m.ID, "alice", start.Add(15*time.Minute), 15)
		require.NoError(t, err)
		env.clock.Advance(time.Hour)
		env.tick(t)

		assert.NoError(t, env.svc.DeleteResource(ctx, m.ID, admin))
	})

	t.Run("missing", func(t *testing.T) {
		env := newTestEnv(t)
		assert.ErrorIs(t, env.svc.DeleteResource(ctx, "missing", admin), model.ErrResourceNotFound)
	})
}
