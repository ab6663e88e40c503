package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/gymtrack/internal/model"
)

// DueForActivation returns scheduled reservations whose window contains now.
func (s *Store) DueForActivation(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	ms := toMillis(now)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE status = 'scheduled'
		  AND window_start <= ?
		  AND window_end > ?
		ORDER BY window_start ASC, id ASC
	`, ms, ms)
	if err != nil {
		return nil, fmt.Errorf("due for activation: %w", err)
	}
	return collectReservations(rows, "due for activation")
}

// ActivateReservation moves r from scheduled to active and mirrors it into
// its resource's occupancy cache. A resource in maintenance keeps its
// status; the reservation still activates so that it completes on time.
//
// Returns applied=false if r was no longer scheduled (already handled by an
// earlier tick or cancelled in between). mirrored reports whether the
// resource row was updated.
func (s *Store) ActivateReservation(ctx context.Context, r model.Reservation, now time.Time) (applied, mirrored bool, err error) {
	err = s.InTx(ctx, func(tx *Tx) error {
		ok, err := tx.transitionReservation(ctx, r.ID,
			[]model.ReservationStatus{model.ReservationScheduled},
			model.ReservationActive, now)
		if err != nil || !ok {
			return err
		}
		applied = true

		mirrored, err = tx.MirrorOccupancy(ctx, r, now)
		return err
	})
	if err != nil {
		return false, false, err
	}
	return applied, mirrored, nil
}

// DueForCompletion returns active reservations whose window has ended, and
// scheduled ones whose whole window passed without being activated.
func (s *Store) DueForCompletion(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE status IN ('scheduled', 'active')
		  AND window_end <= ?
		ORDER BY window_end ASC, id ASC
	`, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("due for completion: %w", err)
	}
	return collectReservations(rows, "due for completion")
}

// CompleteReservation moves r to completed and releases its resource if
// the occupancy cache still points at r. A resource already reassigned to
// a later reservation is left alone.
func (s *Store) CompleteReservation(ctx context.Context, r model.Reservation, now time.Time) (applied, released bool, err error) {
	err = s.InTx(ctx, func(tx *Tx) error {
		ok, err := tx.transitionReservation(ctx, r.ID,
			[]model.ReservationStatus{model.ReservationScheduled, model.ReservationActive},
			model.ReservationCompleted, now)
		if err != nil || !ok {
			return err
		}
		applied = true

		released, err = tx.releaseIfHeldBy(ctx, r.ResourceID, r.ID, now)
		return err
	})
	if err != nil {
		return false, false, err
	}
	return applied, released, nil
}

// StaleOccupancies returns ids of resources marked reserved whose occupancy
// cache is missing or has already ended.
func (s *Store) StaleOccupancies(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM resources
		WHERE status = 'reserved'
		  AND (occ_window_end IS NULL OR occ_window_end <= ?)
		ORDER BY id ASC
	`, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("stale occupancies: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("stale occupancies: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stale occupancies: iterate: %w", err)
	}
	return ids, nil
}

// ReleaseStaleOccupancy marks a reserved resource available when its
// cache is missing or ended, unless an active reservation still holds the
// resource at now, in which case the cache is re-pointed at that
// reservation instead.
func (s *Store) ReleaseStaleOccupancy(ctx context.Context, resourceID string, now time.Time) (bool, error) {
	var changed bool
	err := s.InTx(ctx, func(tx *Tx) error {
		ms := toMillis(now)

		row := tx.tx.QueryRowContext(ctx, `
			SELECT `+reservationColumns+`
			FROM reservations
			WHERE resource_id = ?
			  AND status = 'active'
			  AND window_start <= ?
			  AND window_end > ?
			ORDER BY window_start ASC, id ASC
			LIMIT 1
		`, resourceID, ms, ms)
		holder, err := scanReservation(row)
		switch {
		case err == nil:
			res, err := tx.tx.ExecContext(ctx, `
				UPDATE resources
				SET occ_reservation_id = ?, occ_occupant_id = ?,
				    occ_window_start = ?, occ_window_end = ?,
				    version = version + 1,
				    updated_at = ?
				WHERE id = ? AND status = 'reserved'
				  AND (occ_window_end IS NULL OR occ_window_end <= ?)
			`, holder.ID, holder.OccupantID, toMillis(holder.WindowStart), toMillis(holder.WindowEnd),
				ms, resourceID, ms)
			if err != nil {
				return fmt.Errorf("repoint occupancy %s: %w", resourceID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("repoint occupancy %s: rows affected: %w", resourceID, err)
			}
			changed = n == 1
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("find holder %s: %w", resourceID, err)
		}

		res, err := tx.tx.ExecContext(ctx, `
			UPDATE resources
			SET status = 'available',
			    occ_reservation_id = NULL, occ_occupant_id = NULL,
			    occ_window_start = NULL, occ_window_end = NULL,
			    version = version + 1,
			    updated_at = ?
			WHERE id = ? AND status = 'reserved'
			  AND (occ_window_end IS NULL OR occ_window_end <= ?)
		`, ms, resourceID, ms)
		if err != nil {
			return fmt.Errorf("release stale occupancy %s: %w", resourceID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("release stale occupancy %s: rows affected: %w", resourceID, err)
		}
		changed = n == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}
