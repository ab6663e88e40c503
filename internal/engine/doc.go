// Package engine implements the reservation lifecycle: admission of new
// bookings, direct status changes on resources, and the reconciler that
// advances reservations as time passes.
//
// ARCHITECTURE:
//
// Reservations are the source of truth. Each resource carries an occupancy
// cache that mirrors its currently active reservation; the cache exists
// for cheap reads and is repaired by the Reconciler, never the reverse.
//
// Every state change is a conditional write guarded by the row's current
// status (and, for resources, its version). A writer that loses a race
// observes zero affected rows and either reports a domain error or
// re-reads and retries. This is what lets Service calls, the Reconciler,
// and concurrent processes share one database safely.
//
// Admission:
// Book validates the request, then runs one transaction that reads the
// resource, inserts the reservation only if no scheduled or active
// reservation overlaps it, and mirrors the cache when the window already
// covers now. Concurrent conflicting bookings serialize on the store's
// single connection; exactly one wins and the others see SLOT_CONFLICT.
//
// Reconciliation:
// Reconciler.Tick runs three sweeps in order: activation, completion,
// stale-cache repair. Each row is its own transaction. A failing row is
// logged and counted; the sweep continues. A tick that starts while
// another is running is skipped.
//
// Time:
// All instants come from an injected Clock and are UTC. Booking windows
// are truncated to the minute; durations are whole minutes.
package engine
