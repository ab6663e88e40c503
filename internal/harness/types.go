package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Step    int    `json:"step"`
	Op      string `json:"op"`
	At      string `json:"at"`
	Outcome string `json:"outcome"` // "ok" or an error code

	Reservation string      `json:"reservation,omitempty"`
	Resource    string      `json:"resource,omitempty"`
	Tick        *TickCounts `json:"tick,omitempty"`
}

// TickCounts is the part of a tick report worth snapshotting.
type TickCounts struct {
	Activated int `json:"activated"`
	Completed int `json:"completed"`
	Expired   int `json:"expired"`
	Released  int `json:"released"`
	Repaired  int `json:"repaired"`
	Failures  int `json:"failures"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step met its expectation and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Names maps scenario reservation names (the step's as) to IDs.
	Names map[string]string `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Names:  make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
