// Package model defines the gymtrack domain types: bookable resources,
// reservations on them, the actors that act on both, and the error
// taxonomy shared by the store and the engine.
//
// # Invariants
//
//   - A resource is Reserved iff its Occupancy is set and Occupancy.WindowEnd
//     is after now. The engine reconciles this eventually; Occupancy is a
//     read cache of the active Reservation, never the source of truth.
//   - A resource in Maintenance has no Occupancy.
//   - Non-terminal reservations (Scheduled, Active) of one resource never
//     overlap. Windows are half-open, so back-to-back bookings are legal.
//
// All instants are UTC and truncated to the minute before they are stored.
package model
