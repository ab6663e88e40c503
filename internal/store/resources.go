package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/gymtrack/internal/model"
)

// CreateResource inserts a new resource row.
//
// Uses INSERT ... ON CONFLICT DO NOTHING; writing the same id twice is a
// no-op and the first row wins.
func (s *Store) CreateResource(ctx context.Context, r model.Resource) error {
	resID, occupant, occStart, occEnd := occupancyArgs(r.Occupancy)
	incMsg, incReporter, incAt := incidentArgs(r.LastIncident)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resources (`+resourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		r.ID, r.Name, r.ImageURL, r.OwnerID, string(r.Status),
		resID, occupant, occStart, occEnd,
		incMsg, incReporter, incAt,
		r.Version, toMillis(r.CreatedAt), toMillis(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("write resource: %w", err)
	}
	return nil
}

// GetResource reads one resource.
// Returns model.ErrResourceNotFound (with the id attached) if absent.
func (s *Store) GetResource(ctx context.Context, id string) (model.Resource, error) {
	return getResource(ctx, s.db, id)
}

func getResource(ctx context.Context, q querier, id string) (model.Resource, error) {
	row := q.QueryRowContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id)
	r, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Resource{}, model.ErrResourceNotFound.With("resource_id", id)
	}
	if err != nil {
		return model.Resource{}, fmt.Errorf("read resource %s: %w", id, err)
	}
	return r, nil
}

// ListResources returns one page of resources, newest first, plus the
// total number of resources. Pages are 1-based.
func (s *Store) ListResources(ctx context.Context, page, limit int) ([]model.Resource, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resources`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count resources: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+resourceColumns+`
		FROM resources
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list resources: %w", err)
	}
	out, err := collectResources(rows, "list resources")
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListResourcesByOwner returns every resource created by ownerID, newest first.
func (s *Store) ListResourcesByOwner(ctx context.Context, ownerID string) ([]model.Resource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+resourceColumns+`
		FROM resources
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list resources by owner: %w", err)
	}
	return collectResources(rows, "list resources by owner")
}

// UpdateResourceStatus writes next's status, occupancy and incident over
// the row, but only if the row still carries cur's status and version.
// Returns false when another writer got there first; the caller re-reads.
func (s *Store) UpdateResourceStatus(ctx context.Context, cur, next model.Resource, now time.Time) (bool, error) {
	resID, occupant, occStart, occEnd := occupancyArgs(next.Occupancy)
	incMsg, incReporter, incAt := incidentArgs(next.LastIncident)

	res, err := s.db.ExecContext(ctx, `
		UPDATE resources
		SET status = ?,
		    occ_reservation_id = ?, occ_occupant_id = ?, occ_window_start = ?, occ_window_end = ?,
		    incident_message = ?, incident_reporter_id = ?, incident_reported_at = ?,
		    version = version + 1,
		    updated_at = ?
		WHERE id = ? AND status = ? AND version = ?
	`,
		string(next.Status),
		resID, occupant, occStart, occEnd,
		incMsg, incReporter, incAt,
		toMillis(now),
		cur.ID, string(cur.Status), cur.Version,
	)
	if err != nil {
		return false, fmt.Errorf("update resource status %s: %w", cur.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update resource status %s: rows affected: %w", cur.ID, err)
	}
	return n == 1, nil
}

// DeleteResourceIfIdle removes a resource after checking, in one
// transaction, that it is not in maintenance and has no scheduled or
// active reservations. Terminal reservation history is removed with it.
//
// check runs first with the current row so the caller can apply its own
// authorization before the idle checks; a non-nil result aborts.
func (s *Store) DeleteResourceIfIdle(ctx context.Context, id string, check func(model.Resource) error) error {
	return s.InTx(ctx, func(tx *Tx) error {
		r, err := tx.GetResource(ctx, id)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(r); err != nil {
				return err
			}
		}
		if r.Status == model.ResourceMaintenance {
			return model.ErrInMaintenance.With("resource_id", id)
		}

		var pending int
		if err := tx.tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM reservations
			WHERE resource_id = ? AND status IN ('scheduled', 'active')
		`, id).Scan(&pending); err != nil {
			return fmt.Errorf("count pending reservations: %w", err)
		}
		if pending > 0 {
			return model.ErrHasActiveOrFutureReservation.
				With("resource_id", id).
				With("pending", fmt.Sprint(pending))
		}

		if _, err := tx.tx.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete resource %s: %w", id, err)
		}
		return nil
	})
}
