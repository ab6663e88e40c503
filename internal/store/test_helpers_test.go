package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/gymtrack/internal/model"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestResource inserts an available resource and returns it.
func createTestResource(t *testing.T, s *Store, id string) model.Resource {
	t.Helper()
	r := model.Resource{
		ID:        id,
		Name:      "Machine " + id,
		OwnerID:   "owner-1",
		Status:    model.ResourceAvailable,
		CreatedAt: t0,
		UpdatedAt: t0,
	}
	if err := s.CreateResource(context.Background(), r); err != nil {
		t.Fatalf("CreateResource() failed: %v", err)
	}
	return r
}

// testReservation builds a scheduled reservation starting offset after t0.
func testReservation(id, resourceID, occupantID string, offset, length time.Duration) model.Reservation {
	return model.Reservation{
		ID:          id,
		ResourceID:  resourceID,
		OccupantID:  occupantID,
		WindowStart: t0.Add(offset),
		WindowEnd:   t0.Add(offset + length),
		Status:      model.ReservationScheduled,
		CreatedAt:   t0,
		UpdatedAt:   t0,
	}
}

// insertReservation commits r through the conditional insert and fails the
// test on conflict.
func insertReservation(t *testing.T, s *Store, r model.Reservation) {
	t.Helper()
	err := s.InTx(context.Background(), func(tx *Tx) error {
		ok, err := tx.InsertReservationIfFree(context.Background(), r)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatalf("InsertReservationIfFree(%s) reported a conflict", r.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx() failed: %v", err)
	}
}
