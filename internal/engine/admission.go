package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/gymtrack/internal/model"
	"github.com/roach88/gymtrack/internal/store"
)

// Book admits a reservation of minutes on resourceID for occupantID
// starting at windowStart.
//
// Checks run in order and the first failure wins:
//
//  1. minutes is a positive multiple of the granularity, at most the maximum (INVALID_DURATION)
//  2. windowStart is strictly after now (WINDOW_IN_PAST)
//  3. the resource exists (RESOURCE_NOT_FOUND)
//  4. the resource is not in maintenance (RESOURCE_UNAVAILABLE)
//  5. no scheduled or active reservation on it overlaps (SLOT_CONFLICT)
//
// The window start is truncated to the minute. If the resulting window
// already covers now, the resource's occupancy cache is mirrored in the
// same transaction; otherwise the Reconciler activates it later.
func (s *Service) Book(ctx context.Context, resourceID, occupantID string, windowStart time.Time, minutes int) (res model.Reservation, err error) {
	ctx, span := startSpan(ctx, s.tracer, "engine.Book",
		attribute.String("resource.id", resourceID),
		attribute.String("occupant.id", occupantID),
		attribute.Int("duration.minutes", minutes),
	)
	defer func() { endSpan(span, err) }()

	if err := s.validateDuration(minutes); err != nil {
		return model.Reservation{}, err
	}

	now := s.now()
	if !windowStart.After(now) {
		return model.Reservation{}, model.ErrWindowInPast.
			With("window_start", windowStart.UTC().Format(time.RFC3339)).
			With("now", now.Format(time.RFC3339))
	}

	start := model.CanonicalInstant(windowStart)
	r := model.Reservation{
		ID:          s.ids.Generate(),
		ResourceID:  resourceID,
		OccupantID:  occupantID,
		WindowStart: start,
		WindowEnd:   start.Add(time.Duration(minutes) * time.Minute),
		Status:      model.ReservationScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var mirrored bool
	err = s.store.InTx(ctx, func(tx *store.Tx) error {
		resource, err := tx.GetResource(ctx, resourceID)
		if err != nil {
			return err
		}
		if resource.Status == model.ResourceMaintenance {
			return model.ErrResourceUnavailable.
				With("resource_id", resourceID).
				With("status", string(resource.Status))
		}

		ok, err := tx.InsertReservationIfFree(ctx, r)
		if err != nil {
			return err
		}
		if !ok {
			conflict := model.ErrSlotConflict.With("resource_id", resourceID)
			if other, found, ferr := tx.FindOverlap(ctx, resourceID, r.Window()); ferr == nil && found {
				conflict = conflict.With("conflicting_reservation_id", other.ID)
			}
			return conflict
		}

		if r.Window().Contains(now) {
			mirrored, err = tx.MirrorOccupancy(ctx, r, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Reservation{}, storeErr("book", err)
	}

	span.SetAttributes(attribute.String("reservation.id", r.ID))
	s.logger.Debug("reservation booked",
		"reservation_id", r.ID,
		"resource_id", resourceID,
		"occupant_id", occupantID,
		"window_start", r.WindowStart,
		"window_end", r.WindowEnd,
		"mirrored", mirrored,
	)
	return r, nil
}

func (s *Service) validateDuration(minutes int) error {
	if minutes > 0 && minutes%s.granularity == 0 && minutes <= s.maxMinutes {
		return nil
	}
	return &model.Error{
		Code:    model.CodeInvalidDuration,
		Message: fmt.Sprintf("duration must be a multiple of %d minutes between %d and %d", s.granularity, s.granularity, s.maxMinutes),
		Details: map[string]string{
			"minutes":     strconv.Itoa(minutes),
			"granularity": strconv.Itoa(s.granularity),
			"max":         strconv.Itoa(s.maxMinutes),
		},
	}
}

// ListUpcoming returns occupantID's scheduled and active reservations that
// have not ended, earliest first.
func (s *Service) ListUpcoming(ctx context.Context, occupantID string) ([]model.Reservation, error) {
	out, err := s.store.ListUpcoming(ctx, occupantID, s.now())
	if err != nil {
		return nil, storeErr("list upcoming", err)
	}
	return out, nil
}

// GetReservation reads one reservation.
func (s *Service) GetReservation(ctx context.Context, id string) (model.Reservation, error) {
	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return model.Reservation{}, storeErr("get reservation", err)
	}
	return r, nil
}

// ListReservations returns every reservation on a resource, in any status.
func (s *Service) ListReservations(ctx context.Context, resourceID string) ([]model.Reservation, error) {
	if _, err := s.store.GetResource(ctx, resourceID); err != nil {
		return nil, storeErr("list reservations", err)
	}
	out, err := s.store.ListReservationsByResource(ctx, resourceID)
	if err != nil {
		return nil, storeErr("list reservations", err)
	}
	return out, nil
}

// Cancel moves a scheduled or active reservation to cancelled. Only the
// occupant or staff may cancel. If the resource's occupancy cache points
// at the reservation, the resource is released.
func (s *Service) Cancel(ctx context.Context, reservationID string, actor model.Actor) (res model.Reservation, err error) {
	ctx, span := startSpan(ctx, s.tracer, "engine.Cancel",
		attribute.String("reservation.id", reservationID),
		attribute.String("actor.id", actor.ID),
	)
	defer func() { endSpan(span, err) }()

	res, err = s.store.CancelReservation(ctx, reservationID, s.now(), func(r model.Reservation) error {
		if r.OccupantID != actor.ID && !actor.IsStaff() {
			return model.ErrForbidden.
				With("reservation_id", r.ID).
				With("actor_id", actor.ID)
		}
		return nil
	})
	if err != nil {
		return model.Reservation{}, storeErr("cancel", err)
	}

	s.logger.Info("reservation cancelled",
		"reservation_id", res.ID,
		"resource_id", res.ResourceID,
		"actor_id", actor.ID,
	)
	return res, nil
}

// Availability returns the free windows of a resource on the UTC day
// containing day, aligned to the booking granularity. Time already past
// and gaps shorter than one increment are excluded.
func (s *Service) Availability(ctx context.Context, resourceID string, day time.Time) ([]model.Window, error) {
	resource, err := s.store.GetResource(ctx, resourceID)
	if err != nil {
		return nil, storeErr("availability", err)
	}
	if resource.Status == model.ResourceMaintenance {
		return nil, model.ErrResourceUnavailable.
			With("resource_id", resourceID).
			With("status", string(resource.Status))
	}

	d := day.UTC()
	dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)
	step := time.Duration(s.granularity) * time.Minute

	from := dayStart
	if now := s.now(); now.After(from) {
		from = ceilTo(dayStart, now, step)
	}
	if !from.Before(dayEnd) {
		return []model.Window{}, nil
	}

	busy, err := s.store.ListPendingInWindow(ctx, resourceID, model.Window{Start: from, End: dayEnd})
	if err != nil {
		return nil, storeErr("availability", err)
	}

	return freeWindows(from, dayEnd, step, busy), nil
}

// ceilTo rounds t up to the next multiple of step counted from origin.
func ceilTo(origin, t time.Time, step time.Duration) time.Time {
	elapsed := t.Sub(origin)
	n := elapsed / step
	if elapsed%step != 0 {
		n++
	}
	return origin.Add(n * step)
}

// freeWindows returns the gaps in [from, to) left by busy, which must be
// sorted by start. Gap edges are aligned to step relative to from.
func freeWindows(from, to time.Time, step time.Duration, busy []model.Reservation) []model.Window {
	out := []model.Window{}
	cursor := from
	emit := func(end time.Time) {
		start := ceilTo(from, cursor, step)
		end = start.Add(end.Sub(start) / step * step)
		if end.Sub(start) >= step {
			out = append(out, model.Window{Start: start, End: end})
		}
	}

	for _, r := range busy {
		if r.WindowStart.After(cursor) {
			emit(r.WindowStart)
		}
		if r.WindowEnd.After(cursor) {
			cursor = r.WindowEnd
		}
	}
	if cursor.Before(to) {
		emit(to)
	}
	return out
}
