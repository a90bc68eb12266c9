package queryir

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/planq/internal/schema"
)

// ValidationResult lists every problem found in a plan.
type ValidationResult struct {
	Valid    bool
	Problems []string
}

// Err returns nil for a valid plan and a single error naming every problem
// otherwise.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return errors.Newf("malformed plan: %s", strings.Join(r.Problems, "; "))
}

// String renders the result for CLI output.
func (r ValidationResult) String() string {
	if r.Valid {
		return "plan is valid"
	}
	return fmt.Sprintf("plan has %d problem(s):\n  - %s", len(r.Problems), strings.Join(r.Problems, "\n  - "))
}

// Validate checks a plan's shape before anything is sent to the store.
//
// Checked: identifiers, a non-empty projection without "*", operators, list
// arity (IN non-empty, BETWEEN exactly two), links pointing strictly
// backwards, a positive limit and a non-negative offset. When cat is non-nil tables and columns must also exist in it.
//
// Validate is a pure function with no side effects.
func Validate(plan Plan, cat *schema.Catalog) ValidationResult {
	v := &validator{catalog: cat}
	if len(plan.Steps) == 0 {
		v.addProblem("plan has no steps")
	}
	for i, step := range plan.Steps {
		v.validateStep(i, step)
	}
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	catalog  *schema.Catalog
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateStep(i int, step Step) {
	if !ValidIdentifier(step.Table) {
		v.addProblem("step %d: invalid table name %q", i, step.Table)
		return
	}

	var table *schema.Table
	if v.catalog != nil {
		t, ok := v.catalog.Table(step.Table)
		if !ok {
			v.addProblem("step %d: unknown table %q", i, step.Table)
			return
		}
		table = t
	}

	if len(step.Select) == 0 {
		v.addProblem("step %d: select is empty", i)
	}
	for _, item := range step.Select {
		switch {
		case strings.TrimSpace(item) == "*":
			v.addProblem("step %d: select \"*\" is not allowed, name the columns", i)
		case IsCountProjection(item):
		case !ValidIdentifier(item):
			v.addProblem("step %d: invalid select item %q", i, item)
		case table != nil && !table.Has(item):
			v.addProblem("step %d: table %s has no column %q", i, step.Table, item)
		}
	}

	for _, col := range step.Columns() {
		v.validateCondition(i, step, table, col, step.Where[col])
	}

	if step.LinkFromStep != nil {
		from := *step.LinkFromStep
		if from < 0 || from >= i {
			v.addProblem("step %d: link_from_step %d must reference an earlier step", i, from)
		}
		link := step.Link()
		if !ValidIdentifier(link) {
			v.addProblem("step %d: invalid link column %q", i, link)
		} else if table != nil && !table.Has(link) {
			v.addProblem("step %d: table %s has no link column %q", i, step.Table, link)
		}
	}

	if step.Limit != nil && *step.Limit <= 0 {
		v.addProblem("step %d: limit must be positive, got %d", i, *step.Limit)
	}
	if step.Offset != nil && *step.Offset < 0 {
		v.addProblem("step %d: negative offset %d", i, *step.Offset)
	}
}

func (v *validator) validateCondition(i int, step Step, table *schema.Table, col string, c Condition) {
	if !ValidIdentifier(col) {
		v.addProblem("step %d: invalid column name %q", i, col)
		return
	}
	if table != nil && !table.Has(col) {
		v.addProblem("step %d: table %s has no column %q", i, step.Table, col)
	}

	switch c.Op {
	case OpIN:
		if len(c.Values()) == 0 {
			v.addProblem("step %d: %s IN needs at least one value", i, col)
		}
	case OpBetween:
		if n := len(c.Values()); n != 2 {
			v.addProblem("step %d: %s BETWEEN needs exactly 2 values, got %d", i, col, n)
		}
	case OpEQ, OpGT, OpGTE, OpLT, OpLTE, OpNE, OpContains, OpLike:
		if isList(c.Value) {
			v.addProblem("step %d: %s %s needs a single value", i, col, c.Op)
		}
		if c.Value == nil {
			v.addProblem("step %d: %s %s has no value", i, col, c.Op)
		}
	default:
		v.addProblem("step %d: %s has unknown operator %q", i, col, c.Op)
	}
}

func isList(v any) bool {
	switch v.(type) {
	case []any, []string, []int, []int64, []float64:
		return true
	}
	return false
}
