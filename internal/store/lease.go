package store

import (
	"context"
	"fmt"
	"time"
)

// AcquireLease takes or renews the named lease for holder until now+ttl.
// It succeeds if the lease is free, expired, or already held by holder.
func (s *Store) AcquireLease(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reconciler_leases (name, holder, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE
		SET holder = excluded.holder, expires_at = excluded.expires_at
		WHERE reconciler_leases.holder = excluded.holder
		   OR reconciler_leases.expires_at <= ?
	`, name, holder, toMillis(now.Add(ttl)), toMillis(now))
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: rows affected: %w", name, err)
	}
	return n == 1, nil
}

// ReleaseLease drops the lease if holder still owns it.
func (s *Store) ReleaseLease(ctx context.Context, name, holder string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM reconciler_leases WHERE name = ? AND holder = ?
	`, name, holder); err != nil {
		return fmt.Errorf("release lease %s: %w", name, err)
	}
	return nil
}

// LeaseHolder returns the current holder of the named lease and when it
// expires. ok is false if nobody has taken it.
func (s *Store) LeaseHolder(ctx context.Context, name string) (holder string, expires time.Time, ok bool, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT holder, expires_at FROM reconciler_leases WHERE name = ?
	`, name)
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("read lease %s: %w", name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return "", time.Time{}, false, rows.Err()
	}
	var ms int64
	if err := rows.Scan(&holder, &ms); err != nil {
		return "", time.Time{}, false, fmt.Errorf("read lease %s: scan: %w", name, err)
	}
	return holder, fromMillis(ms), true, nil
}
