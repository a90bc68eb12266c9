package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/planq/internal/engine"
	"github.com/roach88/planq/internal/planner"
	"github.com/roach88/planq/internal/queryir"
)

// Scenario defines an end-to-end query scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixture maps table names to the rows seeded before the run.
	Fixture yaml.Node `yaml:"fixture"`

	// Query and Terms are resolved into entities that refine the plan.
	Query string   `yaml:"query,omitempty"`
	Terms []string `yaml:"terms,omitempty"`

	// Role and UserID scope the plan. Role defaults to staff.
	Role   string `yaml:"role,omitempty"`
	UserID string `yaml:"user_id,omitempty"`

	// Raw executes the plan as written, without canonicalization.
	Raw bool `yaml:"raw,omitempty"`

	// Plan is the plan document, in the same format `planq run` reads.
	Plan yaml.Node `yaml:"plan"`

	// ExpectError is the engine error code the run must fail with. Empty
	// means the run must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the trace and the returned rows.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is the fixed run ID. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// Assertion validates the trace or a step's rows.
type Assertion struct {
	// Type selects the check; see the Assert* constants.
	Type string `yaml:"type"`

	// Step is the index of the step the assertion is about.
	Step int `yaml:"step"`

	// Statement is the text a statement must contain (trace_contains).
	Statement string `yaml:"statement,omitempty"`

	// Statements are texts that must appear in order (trace_order).
	Statements []string `yaml:"statements,omitempty"`

	// Count is the expected number of statements (trace_count) or rows
	// (row_count).
	Count int `yaml:"count,omitempty"`

	// State is the expected step state (step_state).
	State string `yaml:"state,omitempty"`

	// Where picks the row to check (final_state). All fields must match.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertStepState     = "step_state"
	AssertRowCount      = "row_count"
	AssertFinalState    = "final_state"
)

const defaultRunID = "test-run-default"

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

// ParseScenario parses and validates a scenario document.
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

// LoadDir loads every *.yaml scenario in dir, ordered by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	sort.Strings(paths)

	out := make([]*Scenario, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if prev, ok := names[s.Name]; ok {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(p), s.Name, prev)
		}
		names[s.Name] = filepath.Base(p)
		out = append(out, s)
	}
	return out, nil
}

// DecodePlan decodes the scenario's plan document.
func (s *Scenario) DecodePlan() (queryir.Plan, error) {
	data, err := yaml.Marshal(&s.Plan)
	if err != nil {
		return queryir.Plan{}, fmt.Errorf("re-encode plan: %w", err)
	}
	return queryir.DecodePlan(data)
}

// FixtureYAML returns the fixture as a YAML document, or nil when the
// scenario has none.
func (s *Scenario) FixtureYAML() ([]byte, error) {
	if s.Fixture.Kind == 0 {
		return nil, nil
	}
	return yaml.Marshal(&s.Fixture)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !queryir.ValidIdentifier(s.Name) {
		return fmt.Errorf("name %q must be lower_snake_case", s.Name)
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Plan.Kind == 0 {
		return fmt.Errorf("plan is required")
	}
	if _, err := s.DecodePlan(); err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	if s.Fixture.Kind != 0 && s.Fixture.Kind != yaml.MappingNode {
		return fmt.Errorf("fixture must map table names to rows")
	}
	if _, err := planner.ParseRole(s.Role); err != nil {
		return err
	}
	if s.ExpectError != "" && !knownErrorCode(s.ExpectError) {
		return fmt.Errorf("expect_error: unknown error code %q", s.ExpectError)
	}
	if len(s.Assertions) == 0 && s.ExpectError == "" {
		return fmt.Errorf("assertions list is required unless expect_error is set")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func knownErrorCode(code string) bool {
	switch engine.ErrorCode(code) {
	case engine.ErrCodeStoreQuery, engine.ErrCodeMalformedPlan, engine.ErrCodeQuotaExceeded:
		return true
	}
	return false
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Step < 0 {
		return fmt.Errorf("assertions[%d]: step must be non-negative", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Statement == "" {
			return fmt.Errorf("assertions[%d]: statement is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Statements) == 0 {
			return fmt.Errorf("assertions[%d]: statements list is required for trace_order", index)
		}
	case AssertTraceCount, AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertStepState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for step_state", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
