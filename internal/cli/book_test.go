package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBook_Lifecycle(t *testing.T) {
	env := newCLIEnv(t)
	id := env.addResource(t, "Bench Press")

	out, _, err := env.run(t, "--format", "json", "--actor", "alice", "book", id, "--in", "10m", "--minutes", "30")
	require.NoError(t, err)
	booked := decodeData[reservationView](t, out)
	assert.Equal(t, "alice", booked.OccupantID)
	assert.Equal(t, "2026-03-02T09:10:00Z", booked.WindowStart)
	assert.Equal(t, "2026-03-02T09:40:00Z", booked.WindowEnd)
	assert.Equal(t, "scheduled", booked.Status)

	out, _, err = env.run(t, "--format", "json", "--actor", "alice", "upcoming")
	require.NoError(t, err)
	upcoming := decodeData[[]reservationView](t, out)
	require.Len(t, upcoming, 1)
	assert.Equal(t, booked.ID, upcoming[0].ID)

	env.clock.Advance(10 * time.Minute)
	_, _, err = env.run(t, "tick")
	require.NoError(t, err)

	out, _, err = env.run(t, "--format", "json", "resource", "show", id)
	require.NoError(t, err)
	shown := decodeData[struct {
		Resource     resourceView      `json:"resource"`
		Reservations []reservationView `json:"reservations"`
	}](t, out)
	assert.Equal(t, "reserved", shown.Resource.Status)
	require.NotNil(t, shown.Resource.Occupancy)
	assert.Equal(t, "alice", shown.Resource.Occupancy.OccupantID)
	require.Len(t, shown.Reservations, 1)
	assert.Equal(t, "active", shown.Reservations[0].Status)

	env.clock.Advance(30 * time.Minute)
	out, _, err = env.run(t, "--format", "json", "tick")
	require.NoError(t, err)
	report := decodeData[map[string]any](t, out)
	assert.EqualValues(t, 1, report["completed"])
	assert.EqualValues(t, 1, report["released"])
}

func TestBook_AbsoluteStart(t *testing.T) {
	env := newCLIEnv(t)
	id := env.addResource(t, "Rower")

	out, _, err := env.run(t, "--format", "json", "--actor", "alice", "book", id,
		"--at", "2026-03-02T18:00:45+01:00", "--minutes", "45")
	require.NoError(t, err)
	booked := decodeData[reservationView](t, out)
	assert.Equal(t, "2026-03-02T17:00:00Z", booked.WindowStart)
	assert.Equal(t, "2026-03-02T17:45:00Z", booked.WindowEnd)
}

func TestBook_Rejections(t *testing.T) {
	env := newCLIEnv(t)
	id := env.addResource(t, "Squat Rack")

	_, _, err := env.run(t, "--actor", "alice", "book", id, "--in", "5m", "--minutes", "30")
	require.NoError(t, err)

	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"overlap", []string{"--actor", "bob", "book", id, "--in", "20m", "--minutes", "15"}, "SLOT_CONFLICT"},
		{"bad duration", []string{"--actor", "bob", "book", id, "--in", "1h", "--minutes", "20"}, "INVALID_DURATION"},
		{"past", []string{"--actor", "bob", "book", id, "--at", "2026-03-02T08:00:00Z", "--minutes", "15"}, "WINDOW_IN_PAST"},
		{"unknown machine", []string{"--actor", "bob", "book", "ghost", "--in", "1h", "--minutes", "15"}, "RESOURCE_NOT_FOUND"},
		{"on behalf as member", []string{"--actor", "bob", "book", id, "--in", "2h", "--minutes", "15", "--occupant", "carol"}, "FORBIDDEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := env.run(t, append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			resp := decode(t, out)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestBook_OnBehalfAsStaff(t *testing.T) {
	env := newCLIEnv(t)
	id := env.addResource(t, "Cable Machine")

	out, _, err := env.run(t, "--format", "json", "--actor", "tina", "--role", "trainer",
		"book", id, "--in", "1h", "--minutes", "15", "--occupant", "carol")
	require.NoError(t, err)
	assert.Equal(t, "carol", decodeData[reservationView](t, out).OccupantID)
}

func TestBook_FlagValidation(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(t, "--actor", "alice", "book", "r1", "--minutes", "15")
	require.Error(t, err)

	_, _, err = env.run(t, "--actor", "alice", "book", "r1", "--at", "2026-03-02T10:00:00Z", "--in", "1h", "--minutes", "15")
	require.Error(t, err)

	_, _, err = env.run(t, "--actor", "alice", "book", "r1", "--at", "tomorrow", "--minutes", "15")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCancel(t *testing.T) {
	env := newCLIEnv(t)
	id := env.addResource(t, "Spin Bike")

	out, _, err := env.run(t, "--format", "json", "--actor", "alice", "book", id, "--in", "15m", "--minutes", "60")
	require.NoError(t, err)
	rid := decodeData[reservationView](t, out).ID

	out, _, err = env.run(t, "--format", "json", "--actor", "bob", "cancel", rid)
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", decode(t, out).Error.Code)

	out, _, err = env.run(t, "--format", "json", "--actor", "alice", "cancel", rid)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", decodeData[reservationView](t, out).Status)

	out, _, err = env.run(t, "--format", "json", "--actor", "alice", "cancel", rid)
	require.Error(t, err)
	assert.Equal(t, "ALREADY_FINALIZED", decode(t, out).Error.Code)
}

func TestUpcoming_TextOutput(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run(t, "--actor", "alice", "upcoming")
	require.NoError(t, err)
	assert.Contains(t, out, "no upcoming reservations for alice")

	id := env.addResource(t, "Leg Press")
	_, _, err = env.run(t, "--actor", "alice", "book", id, "--in", "30m", "--minutes", "15")
	require.NoError(t, err)

	out, _, err = env.run(t, "upcoming", "--occupant", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "2026-03-02T09:30:00Z")
}

func TestAvailability(t *testing.T) {
	env := newCLIEnv(t)
	id := env.addResource(t, "Treadmill")

	_, _, err := env.run(t, "--actor", "alice", "book", id, "--in", "1h", "--minutes", "30")
	require.NoError(t, err)

	out, _, err := env.run(t, "--format", "json", "availability", id)
	require.NoError(t, err)
	windows := decodeData[[]windowView](t, out)
	require.Len(t, windows, 2)
	assert.Equal(t, "2026-03-02T09:00:00Z", windows[0].Start)
	assert.Equal(t, "2026-03-02T10:00:00Z", windows[0].End)
	assert.Equal(t, "2026-03-02T10:30:00Z", windows[1].Start)
	assert.Equal(t, "2026-03-03T00:00:00Z", windows[1].End)

	out, _, err = env.run(t, "--format", "json", "availability", id, "--day", "2026-03-01")
	require.NoError(t, err)
	assert.Empty(t, decodeData[[]windowView](t, out))

	_, _, err = env.run(t, "availability", id, "--day", "03/02/2026")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
