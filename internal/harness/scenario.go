package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cowork/internal/ir"
)

// Scenario is one scripted session against a fresh workspace.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// IDs are returned in order by the id generator handed to modules.
	// When empty, ids are "id-1", "id-2", ...
	IDs []string `yaml:"ids,omitempty"`

	// Present lists users in awareness before the first step.
	Present []string `yaml:"present,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`

	// Golden lists the containers RunWithGolden captures. Empty means all.
	Golden []string `yaml:"golden,omitempty"`
}

// Step is one action. Exactly one of Event, Tick, Join or Leave is set.
type Step struct {
	// User is the acting user for Event steps.
	User string `yaml:"user,omitempty"`

	// At is the offset from the scenario start (a Go duration string).
	// Offsets never move the clock backwards.
	At string `yaml:"at,omitempty"`

	// Event is the flattened envelope: type, optional sequence metadata
	// and domain fields.
	Event map[string]any `yaml:"event,omitempty"`

	// Tick runs one periodic heartbeat event.
	Tick bool `yaml:"tick,omitempty"`

	// Join marks a user present.
	Join string `yaml:"join,omitempty"`

	// Leave removes a user from awareness and processes user-leave.
	Leave string `yaml:"leave,omitempty"`

	// ExpectError is "", "any", "malformed" or a reducer error code.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion checks the final state or the trace.
//
// A path assertion sets Path plus at most one of Equals, Count or Absent;
// with none of them the path must simply exist. An outcome assertion sets
// only Outcomes, matched against the whole trace.
type Assertion struct {
	Path     string   `yaml:"path,omitempty"`
	Equals   any      `yaml:"equals,omitempty"`
	Count    *int     `yaml:"count,omitempty"`
	Absent   bool     `yaml:"absent,omitempty"`
	Outcomes []string `yaml:"outcomes,omitempty"`
}

// Expect-error keywords.
const (
	ExpectAny       = "any"
	ExpectMalformed = "malformed"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every .yaml and .yml file in dir, sorted by file
// name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
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

func validateStep(i int, step Step) error {
	kinds := 0
	if step.Event != nil {
		kinds++
	}
	if step.Tick {
		kinds++
	}
	if step.Join != "" {
		kinds++
	}
	if step.Leave != "" {
		kinds++
	}
	if kinds != 1 {
		return fmt.Errorf("steps[%d]: exactly one of event, tick, join, leave is required", i)
	}

	if step.At != "" {
		if d, err := time.ParseDuration(step.At); err != nil || d < 0 {
			return fmt.Errorf("steps[%d]: at must be a non-negative duration, got %q", i, step.At)
		}
	}
	if step.Event != nil {
		if step.User == "" {
			return fmt.Errorf("steps[%d]: user is required for events", i)
		}
		if _, err := toEvent(step.Event); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(i int, a Assertion) error {
	if a.Outcomes != nil {
		if a.Path != "" || a.Equals != nil || a.Count != nil || a.Absent {
			return fmt.Errorf("assertions[%d]: outcomes cannot be combined with path checks", i)
		}
		for _, o := range a.Outcomes {
			switch ir.Outcome(o) {
			case ir.OutcomeApplied, ir.OutcomeSkipped, ir.OutcomeFailed:
			default:
				return fmt.Errorf("assertions[%d]: unknown outcome %q", i, o)
			}
		}
		return nil
	}

	if a.Path == "" {
		return fmt.Errorf("assertions[%d]: path or outcomes is required", i)
	}
	checks := 0
	if a.Equals != nil {
		checks++
	}
	if a.Count != nil {
		checks++
	}
	if a.Absent {
		checks++
	}
	if checks > 1 {
		return fmt.Errorf("assertions[%d]: use at most one of equals, count, absent", i)
	}
	return nil
}

// toEvent converts a YAML envelope to an event. YAML floats are rejected
// by the IR conversion.
func toEvent(envelope map[string]any) (ir.Event, error) {
	v, err := ir.FromGo(envelope)
	if err != nil {
		return ir.Event{}, fmt.Errorf("event: %w", err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return ir.Event{}, fmt.Errorf("event: not an object")
	}
	return ir.EventFromEnvelope(obj)
}
