package model

import (
	"fmt"
	"strings"
	"time"
)

// ReservationStatus tracks a booking through its lifecycle:
//
//	scheduled -> active -> completed
//	scheduled|active -> cancelled
type ReservationStatus string

const (
	ReservationScheduled ReservationStatus = "scheduled"
	ReservationActive    ReservationStatus = "active"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCompleted || s == ReservationCancelled
}

// ParseReservationStatus accepts the canonical lowercase names.
func ParseReservationStatus(s string) (ReservationStatus, error) {
	switch st := ReservationStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case ReservationScheduled, ReservationActive, ReservationCompleted, ReservationCancelled:
		return st, nil
	}
	return "", NewError(CodeInvalidStatus, fmt.Sprintf("unknown reservation status %q", s))
}

// Reservation is a time-bounded claim on a resource by an occupant.
type Reservation struct {
	ID          string
	ResourceID  string
	OccupantID  string
	WindowStart time.Time
	WindowEnd   time.Time
	Status      ReservationStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Window returns the reservation interval.
func (r Reservation) Window() Window {
	return Window{Start: r.WindowStart, End: r.WindowEnd}
}

// Occupancy builds the cache entry a resource carries while r is active.
func (r Reservation) Occupancy() *Occupancy {
	return &Occupancy{
		ReservationID: r.ID,
		OccupantID:    r.OccupantID,
		WindowStart:   r.WindowStart,
		WindowEnd:     r.WindowEnd,
	}
}

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Contains reports whether t falls in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Overlaps reports whether two half-open windows share any instant.
// Back-to-back windows (a.End == b.Start) do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// CanonicalInstant normalizes an instant at the system boundary: UTC,
// truncated to the minute.
func CanonicalInstant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}
