package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/gymtrack/internal/model"
)

// Tx is a write transaction. Reads through Tx observe the transaction's
// own writes; nothing is visible to other connections until commit.
type Tx struct {
	tx querier
}

// InTx runs fn in a transaction, committing if fn returns nil and rolling
// back otherwise. fn's error is returned unchanged so domain errors keep
// their codes.
//
// The pool holds a single connection, so transactions are serialized:
// a concurrent InTx blocks until this one finishes. File databases begin
// IMMEDIATE, so a Store in another process waits on busy_timeout rather
// than failing mid-transaction. fn must not call non-Tx Store methods.
func (s *Store) InTx(ctx context.Context, fn func(*Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback() // No-op if committed

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetResource reads one resource inside the transaction.
func (t *Tx) GetResource(ctx context.Context, id string) (model.Resource, error) {
	return getResource(ctx, t.tx, id)
}

// GetReservation reads one reservation inside the transaction.
func (t *Tx) GetReservation(ctx context.Context, id string) (model.Reservation, error) {
	return getReservation(ctx, t.tx, id)
}

// InsertReservationIfFree inserts r unless a scheduled or active
// reservation on the same resource overlaps r's window. The overlap check
// and the insert are one statement. Returns false on conflict.
func (t *Tx) InsertReservationIfFree(ctx context.Context, r model.Reservation) (bool, error) {
	start, end := toMillis(r.WindowStart), toMillis(r.WindowEnd)

	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM reservations
			WHERE resource_id = ?
			  AND status IN ('scheduled', 'active')
			  AND window_start < ?
			  AND window_end > ?
		)
	`,
		r.ID, r.ResourceID, r.OccupantID, start, end,
		string(r.Status), toMillis(r.CreatedAt), toMillis(r.UpdatedAt),
		r.ResourceID, end, start,
	)
	if err != nil {
		return false, fmt.Errorf("insert reservation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert reservation: rows affected: %w", err)
	}
	return n == 1, nil
}

// FindOverlap returns the earliest scheduled or active reservation on
// resourceID overlapping w, or ok=false if there is none.
func (t *Tx) FindOverlap(ctx context.Context, resourceID string, w model.Window) (model.Reservation, bool, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE resource_id = ?
		  AND status IN ('scheduled', 'active')
		  AND window_start < ?
		  AND window_end > ?
		ORDER BY window_start ASC, id ASC
		LIMIT 1
	`, resourceID, toMillis(w.End), toMillis(w.Start))
	if err != nil {
		return model.Reservation{}, false, fmt.Errorf("find overlap: %w", err)
	}
	found, err := collectReservations(rows, "find overlap")
	if err != nil {
		return model.Reservation{}, false, err
	}
	if len(found) == 0 {
		return model.Reservation{}, false, nil
	}
	return found[0], true, nil
}

// MirrorOccupancy marks the resource reserved with r as its occupancy.
// Resources in maintenance are left alone. Returns whether the row changed.
func (t *Tx) MirrorOccupancy(ctx context.Context, r model.Reservation, now time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE resources
		SET status = 'reserved',
		    occ_reservation_id = ?, occ_occupant_id = ?, occ_window_start = ?, occ_window_end = ?,
		    version = version + 1,
		    updated_at = ?
		WHERE id = ? AND status != 'maintenance'
	`,
		r.ID, r.OccupantID, toMillis(r.WindowStart), toMillis(r.WindowEnd),
		toMillis(now), r.ResourceID,
	)
	if err != nil {
		return false, fmt.Errorf("mirror occupancy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mirror occupancy: rows affected: %w", err)
	}
	return n == 1, nil
}

// releaseIfHeldBy clears the occupancy cache and marks the resource
// available, but only while the cache still points at reservationID.
func (t *Tx) releaseIfHeldBy(ctx context.Context, resourceID, reservationID string, now time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE resources
		SET status = 'available',
		    occ_reservation_id = NULL, occ_occupant_id = NULL,
		    occ_window_start = NULL, occ_window_end = NULL,
		    version = version + 1,
		    updated_at = ?
		WHERE id = ? AND status = 'reserved' AND occ_reservation_id = ?
	`, toMillis(now), resourceID, reservationID)
	if err != nil {
		return false, fmt.Errorf("release resource %s: %w", resourceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release resource %s: rows affected: %w", resourceID, err)
	}
	return n == 1, nil
}

// transitionReservation moves a reservation from one status to another,
// guarded by the current status. Returns false if the row had moved on.
func (t *Tx) transitionReservation(ctx context.Context, id string, from []model.ReservationStatus, to model.ReservationStatus, now time.Time) (bool, error) {
	query := `UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status IN (`
	args := []any{string(to), toMillis(now), id}
	for i, st := range from {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, string(st))
	}
	query += ")"

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition reservation %s to %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition reservation %s: rows affected: %w", id, err)
	}
	return n == 1, nil
}
