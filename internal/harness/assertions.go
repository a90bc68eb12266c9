package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/planq/internal/engine"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] step %d: %s\n", i+1, event.Step, event.Statement)
		}
	}
	return buf.String()
}

// stepTrace returns the statements issued by one step.
func stepTrace(trace []TraceEvent, step int) []TraceEvent {
	var out []TraceEvent
	for _, e := range trace {
		if e.Step == step {
			out = append(out, e)
		}
	}
	return out
}

// assertTraceContains checks that a statement of the step contains the
// expected text.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range stepTrace(trace, assertion.Step) {
		if strings.Contains(event.Statement, assertion.Statement) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("step %d statement containing %q", assertion.Step, assertion.Statement),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that statements containing each text appear in
// the given order across the whole trace. Statements don't need to be
// consecutive.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// Step 1: find the first position of each expected text
	positions := make([]int, len(assertion.Statements))
	for i, want := range assertion.Statements {
		positions[i] = -1
		for pos, event := range trace {
			if strings.Contains(event.Statement, want) {
				positions[i] = pos
				break
			}
		}
		if positions[i] < 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all statements present: %q", assertion.Statements),
				Actual:   fmt.Sprintf("missing statement: %q", want),
				Trace:    trace,
			}
		}
	}

	// Step 2: verify order
	for i := 1; i < len(positions); i++ {
		if positions[i-1] >= positions[i] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("statements in order: %q", assertion.Statements),
				Actual: fmt.Sprintf("%q (pos %d) should be before %q (pos %d)",
					assertion.Statements[i-1], positions[i-1]+1, assertion.Statements[i], positions[i]+1),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the step issued exactly Count statements.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := len(stepTrace(trace, assertion.Step))
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d statement(s) for step %d", assertion.Count, assertion.Step),
			Actual:   fmt.Sprintf("%d statement(s)", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertStepState(step *engine.Result, assertion Assertion) error {
	if string(step.State) != strings.ToUpper(assertion.State) {
		return &AssertionError{
			Type:     AssertStepState,
			Expected: fmt.Sprintf("step %d in state %s", assertion.Step, strings.ToUpper(assertion.State)),
			Actual:   fmt.Sprintf("state %s (warnings: %v)", step.State, step.Warnings),
		}
	}
	return nil
}

// assertRowCount checks the step's row count, or its counted total for a
// COUNT step.
func assertRowCount(step *engine.Result, assertion Assertion) error {
	got := int64(len(step.Rows))
	what := "row(s)"
	if step.Count != nil {
		got = *step.Count
		what = "counted"
	}
	if got != int64(assertion.Count) {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d %s for step %d", assertion.Count, what, assertion.Step),
			Actual:   fmt.Sprintf("%d %s", got, what),
		}
	}
	return nil
}

// assertFinalState checks that exactly one row of the step matches Where
// and that it carries the expected values (subset semantics).
func assertFinalState(step *engine.Result, assertion Assertion) error {
	whereDesc := formatWhereClause(assertion.Where)

	var matched []engine.Row
	for _, row := range step.Rows {
		if matchRow(row, assertion.Where) {
			matched = append(matched, row)
		}
	}
	switch len(matched) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row of step %d where %s", assertion.Step, whereDesc),
			Actual:   fmt.Sprintf("row not found among %d row(s)", len(step.Rows)),
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row of step %d where %s", assertion.Step, whereDesc),
			Actual:   fmt.Sprintf("%d rows matched (assertion is ambiguous)", len(matched)),
		}
	}

	actualRow := matched[0]
	for _, key := range sortedKeys(assertion.Expect) {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in row columns: %v", key, sortedKeys(actualRow)),
			}
		}
		if !valuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}
	return nil
}

// matchRow checks if row contains all expected fields (subset match).
func matchRow(row engine.Row, where map[string]any) bool {
	for key, want := range where {
		got, ok := row[key]
		if !ok || !valuesEqual(want, got) {
			return false
		}
	}
	return true
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	parts := make([]string, 0, len(where))
	for _, k := range sortedKeys(where) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// valuesEqual compares a YAML-decoded expectation with a store value.
// Numbers compare by value whatever their Go type, since YAML yields int
// where the store yields int64 or float64.
func valuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	if e, ok := number(expected); ok {
		a, ok := number(actual)
		return ok && e == a
	}
	return reflect.DeepEqual(expected, actual)
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertStepState, AssertRowCount, AssertFinalState:
			step := result.step(assertion.Step)
			if step == nil {
				err = fmt.Errorf("assertion[%d]: plan has no step %d", i, assertion.Step)
				break
			}
			switch assertion.Type {
			case AssertStepState:
				err = assertStepState(step, assertion)
			case AssertRowCount:
				err = assertRowCount(step, assertion)
			default:
				err = assertFinalState(step, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
