package model

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// ResourceStatus is the coarse state of a physical machine.
type ResourceStatus string

const (
	ResourceAvailable   ResourceStatus = "available"
	ResourceReserved    ResourceStatus = "reserved"
	ResourceMaintenance ResourceStatus = "maintenance"
)

// ParseResourceStatus accepts the canonical lowercase names.
func ParseResourceStatus(s string) (ResourceStatus, error) {
	switch ResourceStatus(strings.ToLower(strings.TrimSpace(s))) {
	case ResourceAvailable:
		return ResourceAvailable, nil
	case ResourceReserved:
		return ResourceReserved, nil
	case ResourceMaintenance:
		return ResourceMaintenance, nil
	}
	return "", NewError(CodeInvalidStatus, fmt.Sprintf("unknown resource status %q", s))
}

// Occupancy mirrors the reservation currently holding a resource.
type Occupancy struct {
	// ReservationID is empty only for rows written before reservations
	// were tracked.
	ReservationID string
	OccupantID    string
	WindowStart   time.Time
	WindowEnd     time.Time
}

// Window returns the occupancy interval.
func (o Occupancy) Window() Window {
	return Window{Start: o.WindowStart, End: o.WindowEnd}
}

// IncidentReport is the last maintenance report filed against a resource.
type IncidentReport struct {
	Message    string
	ReporterID string
	ReportedAt time.Time
}

// Resource is one bookable machine.
type Resource struct {
	ID           string
	Name         string
	ImageURL     string
	OwnerID      string
	Status       ResourceStatus
	Occupancy    *Occupancy
	LastIncident *IncidentReport
	// Version increments on every status write; conditional updates
	// compare against it.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OccupiedAt reports whether the occupancy cache claims the resource at t.
func (r Resource) OccupiedAt(t time.Time) bool {
	return r.Occupancy != nil && r.Occupancy.Window().Contains(t)
}

// NormalizeName trims surrounding space and folds the name to NFC so that
// visually identical names compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
