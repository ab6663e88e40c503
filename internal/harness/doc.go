// Package harness runs reservation scenarios against the real engine.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: book_activate_complete
//	description: "What this scenario validates"
//	start: 2026-03-02T09:00:00Z
//	resources:
//	  - key: R
//	    name: Rower
//	steps:
//	  - op: book
//	    resource: R
//	    occupant: alice
//	    at: 10m          # offset from start
//	    minutes: 30
//	    as: A            # name for later steps and assertions
//	  - op: advance
//	    by: 10m
//	  - op: tick
//	  - op: set_status
//	    resource: R
//	    status: maintenance
//	    message: broken belt
//	    actor: alice
//	  - op: delete
//	    resource: R
//	    actor: root
//	    role: admin
//	    expect: IN_MAINTENANCE
//	assertions:
//	  - type: reservation_status
//	    reservation: A
//	    status: active
//	  - type: resource_status
//	    resource: R
//	    status: reserved
//	  - type: no_overlap
//
// A step's expect is "ok" (the default) or an error code. A tick step may
// also set changed: false to assert that the tick moved nothing.
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory SQLite database, a fake clock frozen at
// the scenario's start and sequential reservation IDs (rsv-0001, ...), so
// the same scenario always produces the same trace. RunWithGolden compares
// that trace and the final state against testdata/golden/<name>.golden.
package harness
