package engine

// StepState is where a step is in its lifecycle.
//
//	PENDING -> EXECUTING -> [RETRY_WITH_FULL_SCAN] -> DONE | FAILED
//	PENDING -> SKIPPED | ABORTED
type StepState string

const (
	StatePending           StepState = "PENDING"
	StateExecuting         StepState = "EXECUTING"
	StateRetryWithFullScan StepState = "RETRY_WITH_FULL_SCAN"
	StateDone              StepState = "DONE"
	StateFailed            StepState = "FAILED"
	StateSkipped           StepState = "SKIPPED"
	StateAborted           StepState = "ABORTED"
)

// Result is the outcome of one step.
type Result struct {
	Step  int       `json:"step"`
	Table string    `json:"table"`
	State StepState `json:"state"`

	Rows      []Row    `json:"rows"`
	Count     *int64   `json:"count,omitempty"`
	Truncated bool     `json:"truncated"`
	Warnings  []string `json:"warnings,omitempty"`

	// Statements are the native statements issued, in chunk order. A
	// full-scan retry appears after the statement it replaced.
	Statements []string `json:"statements,omitempty"`
	// Retried is set when a missing-index rejection was recovered.
	Retried bool `json:"retried,omitempty"`
	// History lists every state the step went through, ending with State.
	History []StepState `json:"history,omitempty"`
}

func (r *Result) setState(s StepState) {
	r.State = s
	r.History = append(r.History, s)
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// failed reports whether linked steps must be aborted.
func (r *Result) failed() bool {
	return r.State == StateFailed || r.State == StateAborted
}

// PlanResult is the outcome of a whole plan.
type PlanResult struct {
	RunID string   `json:"run_id"`
	Steps []Result `json:"steps"`
}

// Final returns the result of the last step, which answers the request.
func (p *PlanResult) Final() *Result {
	if p == nil || len(p.Steps) == 0 {
		return nil
	}
	return &p.Steps[len(p.Steps)-1]
}

// Statements returns every statement issued by the plan, in order.
func (p *PlanResult) Statements() []string {
	var out []string
	for _, s := range p.Steps {
		out = append(out, s.Statements...)
	}
	return out
}

// Warnings returns every warning, in step order.
func (p *PlanResult) Warnings() []string {
	var out []string
	for _, s := range p.Steps {
		out = append(out, s.Warnings...)
	}
	return out
}
