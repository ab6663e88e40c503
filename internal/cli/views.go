package cli

import (
	"time"

	"github.com/roach88/gymtrack/internal/engine"
	"github.com/roach88/gymtrack/internal/model"
)

// JSON shapes for command output. Instants are RFC3339 UTC.

type occupancyView struct {
	ReservationID string `json:"reservation_id,omitempty"`
	OccupantID    string `json:"occupant_id"`
	WindowStart   string `json:"window_start"`
	WindowEnd     string `json:"window_end"`
}

type incidentView struct {
	Message    string `json:"message"`
	ReporterID string `json:"reporter_id"`
	ReportedAt string `json:"reported_at"`
}

type resourceView struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	ImageURL     string         `json:"image_url,omitempty"`
	OwnerID      string         `json:"owner_id"`
	Status       string         `json:"status"`
	Occupancy    *occupancyView `json:"occupancy,omitempty"`
	LastIncident *incidentView  `json:"last_incident,omitempty"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

type reservationView struct {
	ID          string `json:"id"`
	ResourceID  string `json:"resource_id"`
	OccupantID  string `json:"occupant_id"`
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

type windowView struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type resourcePageView struct {
	Resources  []resourceView `json:"resources"`
	Page       int            `json:"page"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}

func formatInstant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toResourceView(r model.Resource) resourceView {
	v := resourceView{
		ID:        r.ID,
		Name:      r.Name,
		ImageURL:  r.ImageURL,
		OwnerID:   r.OwnerID,
		Status:    string(r.Status),
		CreatedAt: formatInstant(r.CreatedAt),
		UpdatedAt: formatInstant(r.UpdatedAt),
	}
	if o := r.Occupancy; o != nil {
		v.Occupancy = &occupancyView{
			ReservationID: o.ReservationID,
			OccupantID:    o.OccupantID,
			WindowStart:   formatInstant(o.WindowStart),
			WindowEnd:     formatInstant(o.WindowEnd),
		}
	}
	if in := r.LastIncident; in != nil {
		v.LastIncident = &incidentView{
			Message:    in.Message,
			ReporterID: in.ReporterID,
			ReportedAt: formatInstant(in.ReportedAt),
		}
	}
	return v
}

func toResourceViews(rs []model.Resource) []resourceView {
	out := make([]resourceView, len(rs))
	for i, r := range rs {
		out[i] = toResourceView(r)
	}
	return out
}

func toReservationView(r model.Reservation) reservationView {
	return reservationView{
		ID:          r.ID,
		ResourceID:  r.ResourceID,
		OccupantID:  r.OccupantID,
		WindowStart: formatInstant(r.WindowStart),
		WindowEnd:   formatInstant(r.WindowEnd),
		Status:      string(r.Status),
		CreatedAt:   formatInstant(r.CreatedAt),
	}
}

func toReservationViews(rs []model.Reservation) []reservationView {
	out := make([]reservationView, len(rs))
	for i, r := range rs {
		out[i] = toReservationView(r)
	}
	return out
}

func toWindowViews(ws []model.Window) []windowView {
	out := make([]windowView, len(ws))
	for i, w := range ws {
		out[i] = windowView{Start: formatInstant(w.Start), End: formatInstant(w.End)}
	}
	return out
}

// reservationRows renders reservations as table rows.
func reservationRows(rs []model.Reservation) [][]string {
	rows := make([][]string, len(rs))
	for i, r := range rs {
		rows[i] = []string{
			r.ID,
			r.ResourceID,
			r.OccupantID,
			formatInstant(r.WindowStart),
			formatInstant(r.WindowEnd),
			reservationStatus(r.Status),
		}
	}
	return rows
}

var reservationHeaders = []string{"ID", "RESOURCE", "OCCUPANT", "START", "END", "STATUS"}

func tickSummary(r engine.TickReport) string {
	if !r.Changed() && r.Failures == 0 {
		return InfoMsg("nothing to do at %s", formatInstant(r.At))
	}
	return InfoMsg("activated %d, completed %d (expired %d), released %d, repaired %d, failures %d",
		r.Activated, r.Completed, r.Expired, r.Released, r.Repaired, r.Failures)
}
