package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of engine operations with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the fake clock's initial instant.
	Start time.Time `yaml:"start"`

	// Resources exist before the first step.
	Resources []ResourceSetup `yaml:"resources"`

	// Steps run in order against the engine.
	Steps []Step `yaml:"steps"`

	// Assertions are checked against the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// ResourceSetup creates one resource with a fixed ID.
type ResourceSetup struct {
	// Key is both the resource ID and the name steps refer to it by.
	Key    string `yaml:"key"`
	Name   string `yaml:"name"`
	Owner  string `yaml:"owner,omitempty"`  // default "root"
	Status string `yaml:"status,omitempty"` // default "available"
}

// Step operations.
const (
	OpBook      = "book"
	OpCancel    = "cancel"
	OpAdvance   = "advance"
	OpTick      = "tick"
	OpSetStatus = "set_status"
	OpDelete    = "delete"
)

// ExpectOK is the default step expectation.
const ExpectOK = "ok"

// Step is one engine operation. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	Resource    string `yaml:"resource,omitempty"`
	Reservation string `yaml:"reservation,omitempty"`

	// book
	Occupant string        `yaml:"occupant,omitempty"`
	At       time.Duration `yaml:"at,omitempty"` // offset from Scenario.Start
	Minutes  int           `yaml:"minutes,omitempty"`
	As       string        `yaml:"as,omitempty"`

	// advance
	By time.Duration `yaml:"by,omitempty"`

	// set_status
	Status  string `yaml:"status,omitempty"`
	Message string `yaml:"message,omitempty"`

	// set_status, delete, cancel
	Actor string `yaml:"actor,omitempty"`
	Role  string `yaml:"role,omitempty"`

	// Expect is "ok" or an error code.
	Expect string `yaml:"expect,omitempty"`

	// Changed, for tick, asserts whether the tick moved any row.
	Changed *bool `yaml:"changed,omitempty"`
}

// expected returns the step's expectation with the default applied.
func (s Step) expected() string {
	if s.Expect == "" {
		return ExpectOK
	}
	return s.Expect
}

// Assertion types.
const (
	AssertReservationStatus = "reservation_status"
	AssertResourceStatus    = "resource_status"
	AssertNoOverlap         = "no_overlap"
	AssertUpcoming          = "upcoming"
)

// Assertion validates final state.
type Assertion struct {
	Type string `yaml:"type"`

	// reservation_status
	Reservation string `yaml:"reservation,omitempty"`

	// resource_status
	Resource string `yaml:"resource,omitempty"`
	// Occupant, for resource_status, is the expected occupancy holder;
	// "-" means no occupancy.
	Occupant string `yaml:"occupant,omitempty"`

	// reservation_status, resource_status
	Status string `yaml:"status,omitempty"`

	// upcoming: Reservations in order for Occupant.
	Reservations []string `yaml:"reservations,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Start.IsZero() {
		return fmt.Errorf("start is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	keys := make(map[string]bool, len(s.Resources))
	for i, r := range s.Resources {
		if r.Key == "" {
			return fmt.Errorf("resources[%d]: key is required", i)
		}
		if keys[r.Key] {
			return fmt.Errorf("resources[%d]: duplicate key %q", i, r.Key)
		}
		keys[r.Key] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(i int, s Step) error {
	switch s.Op {
	case OpBook:
		if s.Resource == "" || s.Occupant == "" {
			return fmt.Errorf("steps[%d]: book requires resource and occupant", i)
		}
	case OpCancel:
		if s.Reservation == "" || s.Actor == "" {
			return fmt.Errorf("steps[%d]: cancel requires reservation and actor", i)
		}
	case OpAdvance:
		if s.By <= 0 {
			return fmt.Errorf("steps[%d]: advance requires a positive by", i)
		}
	case OpTick:
	case OpSetStatus:
		if s.Resource == "" || s.Status == "" || s.Actor == "" {
			return fmt.Errorf("steps[%d]: set_status requires resource, status and actor", i)
		}
	case OpDelete:
		if s.Resource == "" || s.Actor == "" {
			return fmt.Errorf("steps[%d]: delete requires resource and actor", i)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", i, s.Op)
	}

	if s.Changed != nil && s.Op != OpTick {
		return fmt.Errorf("steps[%d]: changed only applies to tick", i)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case AssertReservationStatus:
		if a.Reservation == "" || a.Status == "" {
			return fmt.Errorf("assertions[%d]: reservation and status are required for reservation_status", index)
		}
	case AssertResourceStatus:
		if a.Resource == "" || a.Status == "" {
			return fmt.Errorf("assertions[%d]: resource and status are required for resource_status", index)
		}
	case AssertNoOverlap:
	case AssertUpcoming:
		if a.Occupant == "" {
			return fmt.Errorf("assertions[%d]: occupant is required for upcoming", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
