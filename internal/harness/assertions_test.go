package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookingScenario(assertions ...Assertion) *Scenario {
	return &Scenario{
		Name:        "assertions",
		Description: "Two bookings by alice on one resource",
		Start:       start,
		Resources:   []ResourceSetup{{Key: "bench"}},
		Steps: []Step{
			{Op: OpBook, Resource: "bench", Occupant: "alice", At: time.Hour, Minutes: 15, As: "later"},
			{Op: OpBook, Resource: "bench", Occupant: "alice", At: 15 * time.Minute, Minutes: 15, As: "sooner"},
		},
		Assertions: assertions,
	}
}

func TestAssertions_Pass(t *testing.T) {
	result, err := Run(bookingScenario(
		Assertion{Type: AssertReservationStatus, Reservation: "later", Status: "scheduled"},
		Assertion{Type: AssertResourceStatus, Resource: "bench", Status: "available", Occupant: "-"},
		Assertion{Type: AssertNoOverlap, Resource: "bench"},
		Assertion{Type: AssertUpcoming, Occupant: "alice", Reservations: []string{"sooner", "later"}},
		Assertion{Type: AssertUpcoming, Occupant: "bob"},
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestAssertions_Fail(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{
			name:      "reservation status",
			assertion: Assertion{Type: AssertReservationStatus, Reservation: "later", Status: "active"},
			wantErr:   "expected status active, got scheduled",
		},
		{
			name:      "missing reservation",
			assertion: Assertion{Type: AssertReservationStatus, Reservation: "ghost", Status: "active"},
			wantErr:   "reservation not found",
		},
		{
			name:      "resource status",
			assertion: Assertion{Type: AssertResourceStatus, Resource: "bench", Status: "reserved"},
			wantErr:   "expected status reserved, got available",
		},
		{
			name:      "resource occupant",
			assertion: Assertion{Type: AssertResourceStatus, Resource: "bench", Status: "available", Occupant: "alice"},
			wantErr:   "expected occupancy by alice, got none",
		},
		{
			name:      "upcoming order",
			assertion: Assertion{Type: AssertUpcoming, Occupant: "alice", Reservations: []string{"later", "sooner"}},
			wantErr:   "expected upcoming [rsv-0001, rsv-0002], got [rsv-0002, rsv-0001]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(bookingScenario(tt.assertion))
			require.NoError(t, err)
			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.wantErr)
		})
	}
}
