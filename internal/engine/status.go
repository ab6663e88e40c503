package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/gymtrack/internal/model"
)

// CreateResource registers a new machine owned by actor.
func (s *Service) CreateResource(ctx context.Context, name, imageURL string, actor model.Actor) (model.Resource, error) {
	name = model.NormalizeName(name)
	if name == "" {
		return model.Resource{}, model.ErrInvalidResource.With("field", "name")
	}

	now := s.now()
	r := model.Resource{
		ID:        s.ids.Generate(),
		Name:      name,
		ImageURL:  imageURL,
		OwnerID:   actor.ID,
		Status:    model.ResourceAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateResource(ctx, r); err != nil {
		return model.Resource{}, storeErr("create resource", err)
	}

	s.logger.Info("resource created", "resource_id", r.ID, "name", r.Name, "owner_id", r.OwnerID)
	return r, nil
}

// GetResource reads one resource.
func (s *Service) GetResource(ctx context.Context, id string) (model.Resource, error) {
	r, err := s.store.GetResource(ctx, id)
	if err != nil {
		return model.Resource{}, storeErr("get resource", err)
	}
	return r, nil
}

// ListResources returns one page of resources, newest first, and the total.
func (s *Service) ListResources(ctx context.Context, page, limit int) ([]model.Resource, int, error) {
	out, total, err := s.store.ListResources(ctx, page, limit)
	if err != nil {
		return nil, 0, storeErr("list resources", err)
	}
	return out, total, nil
}

// ListResourcesByOwner returns the resources ownerID created.
func (s *Service) ListResourcesByOwner(ctx context.Context, ownerID string) ([]model.Resource, error) {
	out, err := s.store.ListResourcesByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeErr("list resources by owner", err)
	}
	return out, nil
}

// SetStatus applies an administrative status change.
//
//   - maintenance: any actor. Records the incident report and clears the
//     occupancy cache. Scheduled reservations are left untouched.
//   - available: staff only. Clears the occupancy cache and the incident.
//   - reserved: always rejected with DIRECT_RESERVE_REJECTED; a resource
//     becomes reserved only through Book and the Reconciler.
//
// The write is conditional on the status and version that were read. When
// a concurrent writer wins, SetStatus re-reads and tries again, a bounded
// number of times.
func (s *Service) SetStatus(ctx context.Context, resourceID string, status model.ResourceStatus, message string, actor model.Actor) (res model.Resource, err error) {
	ctx, span := startSpan(ctx, s.tracer, "engine.SetStatus",
		attribute.String("resource.id", resourceID),
		attribute.String("status", string(status)),
		attribute.String("actor.id", actor.ID),
	)
	defer func() { endSpan(span, err) }()

	switch status {
	case model.ResourceMaintenance:
	case model.ResourceAvailable:
		if !actor.IsStaff() {
			return model.Resource{}, model.ErrForbidden.
				With("resource_id", resourceID).
				With("actor_id", actor.ID).
				With("required_role", "trainer")
		}
	case model.ResourceReserved:
		return model.Resource{}, model.ErrDirectReserveRejected.With("resource_id", resourceID)
	default:
		return model.Resource{}, model.NewError(model.CodeInvalidStatus, fmt.Sprintf("unknown resource status %q", status))
	}

	for attempt := 0; attempt <= s.statusRetries; attempt++ {
		cur, err := s.store.GetResource(ctx, resourceID)
		if err != nil {
			return model.Resource{}, storeErr("set status", err)
		}

		now := s.now()
		next := cur
		next.Status = status
		next.Occupancy = nil
		next.UpdatedAt = now
		if status == model.ResourceMaintenance {
			next.LastIncident = &model.IncidentReport{
				Message:    message,
				ReporterID: actor.ID,
				ReportedAt: now,
			}
		} else {
			next.LastIncident = nil
		}

		ok, err := s.store.UpdateResourceStatus(ctx, cur, next, now)
		if err != nil {
			return model.Resource{}, storeErr("set status", err)
		}
		if ok {
			next.Version = cur.Version + 1
			s.logger.Info("resource status changed",
				"resource_id", resourceID,
				"from", cur.Status,
				"to", status,
				"actor_id", actor.ID,
			)
			return next, nil
		}

		s.logger.Debug("status write lost race, retrying",
			"resource_id", resourceID,
			"attempt", attempt+1,
		)
	}

	return model.Resource{}, model.StoreUnavailable("set status",
		fmt.Errorf("resource %s changed concurrently %d times", resourceID, s.statusRetries+1))
}

// DeleteResource removes a resource. The actor must own it or be an admin.
// Refused with IN_MAINTENANCE while under maintenance, and with
// HAS_ACTIVE_OR_FUTURE_RESERVATION while any scheduled or active
// reservation references it. Completed and cancelled history goes with it.
func (s *Service) DeleteResource(ctx context.Context, resourceID string, actor model.Actor) (err error) {
	ctx, span := startSpan(ctx, s.tracer, "engine.DeleteResource",
		attribute.String("resource.id", resourceID),
		attribute.String("actor.id", actor.ID),
	)
	defer func() { endSpan(span, err) }()

	err = s.store.DeleteResourceIfIdle(ctx, resourceID, func(r model.Resource) error {
		if r.OwnerID != actor.ID && !actor.IsAdmin() {
			return model.ErrForbidden.
				With("resource_id", resourceID).
				With("actor_id", actor.ID)
		}
		return nil
	})
	if err != nil {
		return storeErr("delete resource", err)
	}

	s.logger.Info("resource deleted", "resource_id", resourceID, "actor_id", actor.ID)
	return nil
}
