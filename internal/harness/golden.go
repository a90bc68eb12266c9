package harness

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/planq/internal/engine"
)

// RenderTrace renders a result as stable text: one block per step with its
// state, statements and rows. Rows are printed with sorted columns and
// sorted among themselves, so chunk scheduling cannot change the output.
func RenderTrace(name string, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario %s\n", name)
	if result.ErrorCode != "" {
		fmt.Fprintf(&b, "error %s\n", result.ErrorCode)
	}

	for _, s := range result.Steps {
		fmt.Fprintf(&b, "step %d %s %s", s.Step, s.Table, s.State)
		if s.Retried {
			b.WriteString(" retried")
		}
		if s.Truncated {
			b.WriteString(" truncated")
		}
		b.WriteByte('\n')

		for _, e := range stepTrace(result.Trace, s.Step) {
			fmt.Fprintf(&b, "  > %s\n", e.Statement)
		}
		if s.Count != nil {
			fmt.Fprintf(&b, "  count %d\n", *s.Count)
		}
		for _, row := range renderRows(s.Rows) {
			fmt.Fprintf(&b, "  | %s\n", row)
		}
		for _, w := range s.Warnings {
			fmt.Fprintf(&b, "  ! %s\n", w)
		}
	}
	return []byte(b.String())
}

func renderRows(rows []engine.Row) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		parts := make([]string, 0, len(row))
		for _, k := range sortedKeys(row) {
			parts = append(parts, fmt.Sprintf("%s=%v", k, row[k]))
		}
		out[i] = strings.Join(parts, " ")
	}
	sort.Strings(out)
	return out
}

// RunWithGolden executes a scenario and compares the rendered trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, RenderTrace(scenarioName, result))
}
