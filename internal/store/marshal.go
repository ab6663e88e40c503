package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/gymtrack/internal/model"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

const resourceColumns = `id, name, image_url, owner_id, status,
	occ_reservation_id, occ_occupant_id, occ_window_start, occ_window_end,
	incident_message, incident_reporter_id, incident_reported_at,
	version, created_at, updated_at`

const reservationColumns = `id, resource_id, occupant_id, window_start, window_end,
	status, created_at, updated_at`

// scanResource scans one resources row selected with resourceColumns.
func scanResource(row rowScanner) (model.Resource, error) {
	var (
		r                       model.Resource
		status                  string
		occResID, occOccupant   sql.NullString
		occStart, occEnd        sql.NullInt64
		incMessage, incReporter sql.NullString
		incAt                   sql.NullInt64
		createdAt, updatedAt    int64
	)

	if err := row.Scan(
		&r.ID, &r.Name, &r.ImageURL, &r.OwnerID, &status,
		&occResID, &occOccupant, &occStart, &occEnd,
		&incMessage, &incReporter, &incAt,
		&r.Version, &createdAt, &updatedAt,
	); err != nil {
		return model.Resource{}, err
	}

	r.Status = model.ResourceStatus(status)
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)

	if occOccupant.Valid && occStart.Valid && occEnd.Valid {
		r.Occupancy = &model.Occupancy{
			ReservationID: occResID.String,
			OccupantID:    occOccupant.String,
			WindowStart:   fromMillis(occStart.Int64),
			WindowEnd:     fromMillis(occEnd.Int64),
		}
	}

	if incAt.Valid {
		r.LastIncident = &model.IncidentReport{
			Message:    incMessage.String,
			ReporterID: incReporter.String,
			ReportedAt: fromMillis(incAt.Int64),
		}
	}

	return r, nil
}

// scanReservation scans one reservations row selected with reservationColumns.
func scanReservation(row rowScanner) (model.Reservation, error) {
	var (
		r                    model.Reservation
		status               string
		start, end           int64
		createdAt, updatedAt int64
	)

	if err := row.Scan(
		&r.ID, &r.ResourceID, &r.OccupantID, &start, &end,
		&status, &createdAt, &updatedAt,
	); err != nil {
		return model.Reservation{}, err
	}

	r.Status = model.ReservationStatus(status)
	r.WindowStart = fromMillis(start)
	r.WindowEnd = fromMillis(end)
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)
	return r, nil
}

// occupancyArgs flattens an optional occupancy into column arguments.
func occupancyArgs(o *model.Occupancy) (resID, occupant, start, end any) {
	if o == nil {
		return nil, nil, nil, nil
	}
	var rid any
	if o.ReservationID != "" {
		rid = o.ReservationID
	}
	return rid, o.OccupantID, toMillis(o.WindowStart), toMillis(o.WindowEnd)
}

// incidentArgs flattens an optional incident report into column arguments.
func incidentArgs(i *model.IncidentReport) (message, reporter, at any) {
	if i == nil {
		return nil, nil, nil
	}
	return i.Message, i.ReporterID, toMillis(i.ReportedAt)
}

func collectReservations(rows *sql.Rows, op string) ([]model.Reservation, error) {
	defer rows.Close()

	out := []model.Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return out, nil
}

func collectResources(rows *sql.Rows, op string) ([]model.Resource, error) {
	defer rows.Close()

	out := []model.Resource{}
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return out, nil
}
