package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gymtrack/internal/model"
)

func TestDueForActivation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestResource(t, s, "m1")

	insertReservation(t, s, testReservation("now", "m1", "alice", 0, 30*time.Minute))
	insertReservation(t, s, testReservation("later", "m1", "bob", 30*time.Minute, 30*time.Minute))

	due, err := s.DueForActivation(ctx, t0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "now", due[0].ID)

	// At the boundary the first window has ended and the second begins.
	due, err = s.DueForActivation(ctx, t0.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1, "a window that has ended is not activated")
	assert.Equal(t, "later", due[0].ID)
}

func TestActivateReservation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestResource(t, s, "m1")
	r := testReservation("r1", "m1", "alice", 0, 30*time.Minute)
	insertReservation(t, s, r)

	applied, mirrored, err := s.ActivateReservation(ctx, r, t0)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, mirrored)

	got, err := s.GetReservation(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationActive, got.Status)

	res, err := s.GetResource(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.ResourceReserved, res.Status)
	require.NotNil(t, res.Occupancy)
	assert.True(t, res.Occupancy.WindowEnd.Equal(r.WindowEnd))

	// Second activation is a no-op.
	applied, _, err = s.ActivateReservation(ctx, r, t0)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestDueForCompletion_IncludesMissedScheduled(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestResource(t, s, "m1")
	createTestResource(t, s, "m2")

	active := testReservation("active", "m1", "alice", 0, 15*time.Minute)
	insertReservation(t, s, active)
	_, _, err := s.ActivateReservation(ctx, active, t0)
	require.NoError(t, err)
	insertReservation(t, s, testReservation("missed", "m2", "bob", 0, 15*time.Minute))
	insertReservation(t, s, testReservation("future", "m2", "bob", time.Hour, 15*time.Minute))

	due, err := s.DueForCompletion(ctx, t0.Add(15*time.Minute))
	require.NoError(t, err)
	ids := []string{}
	for _, r := range due {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"active", "missed"}, ids)
}

func TestCompleteReservation_ReleasesOnlyOwnCache(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestResource(t, s, "m1")

	first := testReservation("first", "m1", "alice", 0, 30*time.Minute)
	second := testReservation("second", "m1", "bob", 30*time.Minute, 30*time.Minute)
	insertReservation(t, s, first)
	insertReservation(t, s, second)

	_, _, err := s.ActivateReservation(ctx, first, t0)
	require.NoError(t, err)

	// The next reservation takes over the cache before the first completes.
	boundary := t0.Add(30 * time.Minute)
	_, _, err = s.ActivateReservation(ctx, second, boundary)
	require.NoError(t, err)

	applied, released, err := s.CompleteReservation(ctx, first, boundary)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.False(t, released)

	res, err := s.GetResource(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.ResourceReserved, res.Status)
	require.NotNil(t, res.Occupancy)
	assert.Equal(t, "second", res.Occupancy.ReservationID)

	applied, released, err = s.CompleteReservation(ctx, second, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, released)

	res, err = s.GetResource(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.ResourceAvailable, res.Status)
	assert.Nil(t, res.Occupancy)
}

func TestReleaseStaleOccupancy(t *testing.T) {
	ctx := context.Background()

	t.Run("expired cache is released", func(t *testing.T) {
		s := createTestStore(t)
		r := model.Resource{
			ID:      "m1",
			Name:    "Bike",
			OwnerID: "owner-1",
			Status:  model.ResourceReserved,
			Occupancy: &model.Occupancy{
				OccupantID:  "alice",
				WindowStart: t0.Add(-time.Hour),
				WindowEnd:   t0.Add(-30 * time.Minute),
			},
			CreatedAt: t0,
			UpdatedAt: t0,
		}
		require.NoError(t, s.CreateResource(ctx, r))

		stale, err := s.StaleOccupancies(ctx, t0)
		require.NoError(t, err)
		assert.Equal(t, []string{"m1"}, stale)

		changed, err := s.ReleaseStaleOccupancy(ctx, "m1", t0)
		require.NoError(t, err)
		assert.True(t, changed)

		got, err := s.GetResource(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, model.ResourceAvailable, got.Status)
		assert.Nil(t, got.Occupancy)

		stale, err = s.StaleOccupancies(ctx, t0)
		require.NoError(t, err)
		assert.Empty(t, stale)
	})

	t.Run("active holder is re-pointed", func(t *testing.T) {
		s := createTestStore(t)
		createTestResource(t, s, "m1")
		r := testReservation("r1", "m1", "alice", -10*time.Minute, 30*time.Minute)
		insertReservation(t, s, r)
		_, _, err := s.ActivateReservation(ctx, r, t0.Add(-10*time.Minute))
		require.NoError(t, err)

		// Corrupt the cache end so it looks stale.
		_, err = s.db.Exec(`UPDATE resources SET occ_window_end = ? WHERE id = 'm1'`, toMillis(t0.Add(-time.Minute)))
		require.NoError(t, err)

		changed, err := s.ReleaseStaleOccupancy(ctx, "m1", t0)
		require.NoError(t, err)
		assert.True(t, changed)

		got, err := s.GetResource(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, model.ResourceReserved, got.Status)
		require.NotNil(t, got.Occupancy)
		assert.True(t, got.Occupancy.WindowEnd.Equal(r.WindowEnd))
	})
}
