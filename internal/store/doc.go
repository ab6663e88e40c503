// Package store provides SQLite-backed persistence for gymtrack resources
// and reservations.
//
// # Critical Patterns
//
// Conditional writes: every state transition is an UPDATE guarded by the
// row's current status (and, for resources, its version). A transition that
// lost a race affects zero rows and is reported as "not applied", never as
// an error. This is what makes reconciler sweeps safe to retry.
//
// Atomic admission: InsertReservationIfFree is a single
// INSERT ... SELECT ... WHERE NOT EXISTS statement, so the overlap check and
// the insert cannot interleave with another booking.
//
// Deterministic ordering: list queries always end with "id ASC" so equal
// timestamps come back in a stable order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - one open connection: SQLite has a single writer, and serializing on
//     the pool keeps transactions from failing with SQLITE_BUSY
//
// Two drivers are supported: "sqlite3" (github.com/mattn/go-sqlite3, cgo)
// and "sqlite" (modernc.org/sqlite, pure Go).
package store
