package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/gymtrack/internal/model"
)

// GetReservation reads one reservation.
// Returns model.ErrReservationNotFound (with the id attached) if absent.
func (s *Store) GetReservation(ctx context.Context, id string) (model.Reservation, error) {
	return getReservation(ctx, s.db, id)
}

func getReservation(ctx context.Context, q querier, id string) (model.Reservation, error) {
	row := q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, model.ErrReservationNotFound.With("reservation_id", id)
	}
	if err != nil {
		return model.Reservation{}, fmt.Errorf("read reservation %s: %w", id, err)
	}
	return r, nil
}

// ListUpcoming returns the occupant's scheduled and active reservations
// whose window has not ended, ordered by window start.
func (s *Store) ListUpcoming(ctx context.Context, occupantID string, now time.Time) ([]model.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE occupant_id = ?
		  AND status IN ('scheduled', 'active')
		  AND window_end >= ?
		ORDER BY window_start ASC, id ASC
	`, occupantID, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("list upcoming: %w", err)
	}
	return collectReservations(rows, "list upcoming")
}

// ListReservationsByResource returns every reservation on a resource in
// any status, ordered by window start.
func (s *Store) ListReservationsByResource(ctx context.Context, resourceID string) ([]model.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE resource_id = ?
		ORDER BY window_start ASC, id ASC
	`, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list reservations by resource: %w", err)
	}
	return collectReservations(rows, "list reservations by resource")
}

// ListPendingInWindow returns scheduled and active reservations on a
// resource that overlap w, ordered by window start.
func (s *Store) ListPendingInWindow(ctx context.Context, resourceID string, w model.Window) ([]model.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE resource_id = ?
		  AND status IN ('scheduled', 'active')
		  AND window_start < ?
		  AND window_end > ?
		ORDER BY window_start ASC, id ASC
	`, resourceID, toMillis(w.End), toMillis(w.Start))
	if err != nil {
		return nil, fmt.Errorf("list pending in window: %w", err)
	}
	return collectReservations(rows, "list pending in window")
}

// CancelReservation moves a scheduled or active reservation to cancelled
// and, if the resource's occupancy cache points at it, releases the
// resource. check runs first with the current row so the caller can apply
// its own authorization; a non-nil result aborts.
//
// Returns model.ErrAlreadyFinalized if the reservation is terminal.
func (s *Store) CancelReservation(ctx context.Context, id string, now time.Time, check func(model.Reservation) error) (model.Reservation, error) {
	var out model.Reservation
	err := s.InTx(ctx, func(tx *Tx) error {
		r, err := tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(r); err != nil {
				return err
			}
		}
		if r.Status.Terminal() {
			return model.ErrAlreadyFinalized.
				With("reservation_id", id).
				With("status", string(r.Status))
		}

		ok, err := tx.transitionReservation(ctx, id,
			[]model.ReservationStatus{model.ReservationScheduled, model.ReservationActive},
			model.ReservationCancelled, now)
		if err != nil {
			return err
		}
		if !ok {
			return model.ErrAlreadyFinalized.With("reservation_id", id)
		}
		if _, err := tx.releaseIfHeldBy(ctx, r.ResourceID, r.ID, now); err != nil {
			return err
		}

		r.Status = model.ReservationCancelled
		r.UpdatedAt = now
		out = r
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return out, nil
}
