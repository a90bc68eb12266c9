package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/planq/internal/engine"
)

func sampleResult() *Result {
	count := int64(7)
	r := NewResult()
	r.recordSteps(&engine.PlanResult{
		RunID: "run-1",
		Steps: []engine.Result{
			{
				Step:  0,
				Table: "students",
				State: engine.StateDone,
				Rows: []engine.Row{
					{"id": int64(1), "name": "Aisha Rahman", "overallcgpa": 3.8},
					{"id": int64(2), "name": "Ben Tan", "overallcgpa": 3.1},
				},
				Statements: []string{
					"SELECT id, name, overallcgpa FROM students WHERE overallcgpa > ?",
					"SELECT id, name, overallcgpa FROM students WHERE overallcgpa > ? ALLOW FILTERING",
				},
				Retried: true,
			},
			{
				Step:       1,
				Table:      "subjects",
				State:      engine.StateDone,
				Rows:       []engine.Row{},
				Count:      &count,
				Statements: []string{"SELECT COUNT(*) FROM subjects WHERE id IN (?, ?)"},
			},
		},
	})
	return r
}

func TestRecordSteps_FlattensTrace(t *testing.T) {
	r := sampleResult()
	require.Len(t, r.Trace, 3)
	assert.Equal(t, 0, r.Trace[1].Step)
	assert.Equal(t, "subjects", r.Trace[2].Table)
}

func TestEvaluateAssertions(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"contains", Assertion{Type: AssertTraceContains, Step: 0, Statement: "ALLOW FILTERING"}, ""},
		{"contains wrong step", Assertion{Type: AssertTraceContains, Step: 1, Statement: "ALLOW FILTERING"}, "not found in trace"},
		{"order", Assertion{Type: AssertTraceOrder, Statements: []string{"FROM students", "COUNT(*)"}}, ""},
		{"order reversed", Assertion{Type: AssertTraceOrder, Statements: []string{"COUNT(*)", "FROM students"}}, "should be before"},
		{"order missing", Assertion{Type: AssertTraceOrder, Statements: []string{"FROM grades"}}, "missing statement"},
		{"count", Assertion{Type: AssertTraceCount, Step: 0, Count: 2}, ""},
		{"count wrong", Assertion{Type: AssertTraceCount, Step: 1, Count: 2}, "1 statement(s)"},
		{"state lower case", Assertion{Type: AssertStepState, Step: 1, State: "done"}, ""},
		{"state wrong", Assertion{Type: AssertStepState, Step: 0, State: "SKIPPED"}, "state DONE"},
		{"rows", Assertion{Type: AssertRowCount, Step: 0, Count: 2}, ""},
		{"counted", Assertion{Type: AssertRowCount, Step: 1, Count: 7}, ""},
		{"counted wrong", Assertion{Type: AssertRowCount, Step: 1, Count: 2}, "7 counted"},
		{
			"final state",
			Assertion{Type: AssertFinalState, Step: 0, Where: map[string]any{"id": 2}, Expect: map[string]any{"name": "Ben Tan", "overallcgpa": 3.1}},
			"",
		},
		{
			"final state mismatch",
			Assertion{Type: AssertFinalState, Step: 0, Where: map[string]any{"id": 1}, Expect: map[string]any{"name": "Ben Tan"}},
			`field "name" = Ben Tan`,
		},
		{
			"final state missing column",
			Assertion{Type: AssertFinalState, Step: 0, Where: map[string]any{"id": 1}, Expect: map[string]any{"grade": "A"}},
			`field "grade" to exist`,
		},
		{
			"final state no row",
			Assertion{Type: AssertFinalState, Step: 0, Where: map[string]any{"id": 9}, Expect: map[string]any{"name": "x"}},
			"row not found among 2 row(s)",
		},
		{
			"final state ambiguous",
			Assertion{Type: AssertFinalState, Step: 0, Expect: map[string]any{"name": "x"}},
			"2 rows matched",
		},
		{"missing step", Assertion{Type: AssertRowCount, Step: 4}, "plan has no step 4"},
		{"unknown type", Assertion{Type: "trace_magic"}, "unknown assertion type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion})
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.wantErr)
		})
	}
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	r := sampleResult()
	errs := EvaluateAssertions(r, []Assertion{{Type: AssertTraceCount, Step: 0, Count: 5}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Assertion failed: trace_count")
	assert.Contains(t, errs[0], "[3] step 1: SELECT COUNT(*) FROM subjects")
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(1, int64(1)))
	assert.True(t, valuesEqual(88.5, 88.5))
	assert.True(t, valuesEqual(3, 3.0))
	assert.False(t, valuesEqual(1, "1"))
	assert.True(t, valuesEqual("A", "A"))
	assert.True(t, valuesEqual(false, false))
	assert.True(t, valuesEqual(nil, nil))
	assert.False(t, valuesEqual(nil, "x"))
}
