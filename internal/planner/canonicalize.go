package planner

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/planq/internal/engine"
	"github.com/roach88/planq/internal/queryir"
	"github.com/roach88/planq/internal/resolve"
	"github.com/roach88/planq/internal/schema"
)

const statusColumn = "status"

// activeWords are status values that mean "any active status code".
var activeWords = map[string]bool{
	"active":             true,
	"currently active":   true,
	"enrolled":           true,
	"current":            true,
	"currently enrolled": true,
}

// CanonicalizePlan prepares a plan for execution.
//
// For each step it replaces a "*" or empty projection with the table's
// default columns, moves conditions on student columns out of unlinked steps
// over other tables into a linked students pre-step, folds in the entities
// with EnhanceStep, drops columns the table does not have and expands
// "status = active" to the catalog's active status codes. When the scope is
// a student every step is pinned to that student's ID. Ambiguous terms and
// unresolved fragments of the request are noted on the final step.
//
// The input plan is not modified.
func (p *Planner) CanonicalizePlan(plan queryir.Plan, ent resolve.Entities, scope Scope) (queryir.Plan, error) {
	pinned, pin, err := scope.pinnedID()
	if err != nil {
		return queryir.Plan{}, err
	}

	out := queryir.Plan{Intent: plan.Intent}
	// remap[i] is the new index of input step i.
	remap := make([]int, len(plan.Steps))

	for i, step := range plan.Steps {
		step = step.Clone()
		table, ok := p.schema.Table(step.Table)
		if !ok {
			// Left for validation to reject.
			remap[i] = len(out.Steps)
			out.Steps = append(out.Steps, step)
			continue
		}
		p.defaultProjection(&step, table)
		if step.LinkFromStep != nil {
			// Links point backwards; anything else is left for validation.
			if from := *step.LinkFromStep; from >= 0 && from < i {
				step.LinkFromStep = queryir.Ptr(remap[from])
			}
		}

		if pre, ok := p.splitStudentFilters(&step, table, ent); ok {
			if pre = p.finish(pre, ent); len(pre.Where) > 0 {
				step.LinkFromStep = queryir.Ptr(len(out.Steps))
				step.LinkColumn = queryir.DefaultLinkColumn
				out.Steps = append(out.Steps, pre)
				p.logger.Debug("added students pre-step",
					zap.Int("step", i),
					zap.Strings("columns", pre.Columns()))
			}
		}
		remap[i] = len(out.Steps)
		out.Steps = append(out.Steps, p.finish(step, ent))
	}

	if pin {
		for i := range out.Steps {
			p.pin(&out.Steps[i], pinned)
		}
	}
	if n := len(out.Steps); n > 0 {
		noteRequest(&out.Steps[n-1], ent)
	}
	return out, nil
}

// noteRequest records what the request asked for but the plan cannot
// answer exactly.
func noteRequest(step *queryir.Step, ent resolve.Entities) {
	for _, a := range ent.Ambiguous {
		step.Warn(engine.Warning(engine.ErrCodeInputAmbiguous, fmt.Sprintf(
			"%q could be subject %q (%d) or programme %q (%d)",
			a.Term, a.Subject, a.SubjectScore, a.Programme, a.ProgrammeScore)))
	}
	for _, u := range ent.Unresolved {
		step.Warn(engine.Warning(engine.ErrCodeUnresolvedValue, u))
	}
}

// finish enhances a step, prunes unknown columns and expands active status.
func (p *Planner) finish(step queryir.Step, ent resolve.Entities) queryir.Step {
	step = p.EnhanceStep(step, ent)
	table, _ := p.schema.Table(step.Table)
	prune(&step, table)
	p.expandActive(&step)
	return step
}

func (p *Planner) defaultProjection(step *queryir.Step, table *schema.Table) {
	if len(step.Select) == 0 || (len(step.Select) == 1 && strings.TrimSpace(step.Select[0]) == "*") {
		step.Select = append([]string(nil), table.DefaultSelect...)
	}
}

// splitStudentFilters moves student conditions off a step over another
// table. The returned pre-step collects the matching student IDs; the
// caller links the original step to it.
func (p *Planner) splitStudentFilters(step *queryir.Step, table *schema.Table, ent resolve.Entities) (queryir.Step, bool) {
	if table.Name == EntityTable || step.LinkFromStep != nil || !table.Has(queryir.DefaultLinkColumn) {
		return queryir.Step{}, false
	}
	students, ok := p.schema.Table(EntityTable)
	if !ok {
		return queryir.Step{}, false
	}

	moved := make(map[string]queryir.Condition)
	for col, c := range step.Where {
		if !table.Has(col) && students.Has(col) {
			moved[col] = c
			delete(step.Where, col)
		}
	}
	needed := len(moved) > 0
	for col := range ent.Filters {
		if p.applies(table, col) {
			continue
		}
		if students.Has(col) || col == "month" {
			needed = true
		}
	}
	if !needed {
		return queryir.Step{}, false
	}

	return queryir.Step{
		Table:         EntityTable,
		Select:        []string{students.Key},
		Where:         moved,
		Limit:         queryir.Ptr(PreStepLimit),
		AllowFullScan: true,
	}, true
}

// prune drops conditions and projected columns the table does not have.
// COUNT projections are kept. A projection left empty falls back to the
// table's default columns.
func prune(step *queryir.Step, table *schema.Table) {
	for col := range step.Where {
		if !table.Has(col) {
			delete(step.Where, col)
		}
	}
	kept := step.Select[:0]
	for _, col := range step.Select {
		if queryir.IsCountProjection(col) || table.Has(col) {
			kept = append(kept, col)
		}
	}
	step.Select = kept
	if len(step.Select) == 0 {
		step.Select = append([]string(nil), table.DefaultSelect...)
	}
}

// expandActive rewrites a student status = active into status IN (active
// codes).
func (p *Planner) expandActive(step *queryir.Step) {
	if step.Table != EntityTable {
		return
	}
	c, ok := step.Where[statusColumn]
	if !ok || c.Op != queryir.OpEQ {
		return
	}
	s, ok := c.Value.(string)
	if !ok || !activeWords[strings.ToLower(strings.Join(strings.Fields(s), " "))] {
		return
	}
	codes := p.values.ActiveStatuses()
	if len(codes) == 0 {
		p.logger.Warn("no active status codes known, keeping status filter as given")
		return
	}
	values := make([]any, len(codes))
	for i, code := range codes {
		values[i] = code
	}
	step.Where[statusColumn] = queryir.Condition{Column: statusColumn, Op: queryir.OpIN, Value: values}
}

// pin restricts a step to one key value.
func (p *Planner) pin(step *queryir.Step, id int64) {
	table, ok := p.schema.Table(step.Table)
	if !ok || !table.Has(table.Key) {
		return
	}
	if step.Where == nil {
		step.Where = make(map[string]queryir.Condition)
	}
	step.Where[table.Key] = queryir.Condition{Column: table.Key, Op: queryir.OpEQ, Value: id}
}
