package harness

import (
	"github.com/roach88/planq/internal/engine"
	"github.com/roach88/planq/internal/queryir"
)

// TraceEvent is one statement issued while running a scenario.
type TraceEvent struct {
	Step      int    `json:"step"`
	Table     string `json:"table"`
	Statement string `json:"statement"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when the run matched expect_error and every assertion
	// held.
	Pass bool `json:"pass"`

	// Plan is the plan as executed, after canonicalization.
	Plan queryir.Plan `json:"plan"`

	// Trace lists every statement in issue order.
	Trace []TraceEvent `json:"trace"`

	// Steps are the executor's per-step results. Empty when the plan was
	// rejected before execution.
	Steps []engine.Result `json:"steps"`

	// ErrorCode is the engine error code of the run, if it failed.
	ErrorCode string `json:"error_code,omitempty"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Steps:  []engine.Result{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// step returns the result of step i, or nil when the plan has no such
// step.
func (r *Result) step(i int) *engine.Result {
	if i < 0 || i >= len(r.Steps) {
		return nil
	}
	return &r.Steps[i]
}

// recordSteps copies the executor's results and flattens their statements
// into the trace.
func (r *Result) recordSteps(res *engine.PlanResult) {
	if res == nil {
		return
	}
	r.Steps = res.Steps
	for _, s := range res.Steps {
		for _, stmt := range s.Statements {
			r.Trace = append(r.Trace, TraceEvent{Step: s.Step, Table: s.Table, Statement: stmt})
		}
	}
}
