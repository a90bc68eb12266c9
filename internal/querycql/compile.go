// Package querycql compiles plan steps into parameterized statements for a
// wide-column store with a restricted query model.
//
// The store evaluates only =, <, <=, >, >=, IN and the BETWEEN rewrite
// natively. Everything else is handed back to the caller as a post-filter to
// apply to the returned rows.
package querycql

import (
	"fmt"
	"strings"

	"github.com/roach88/planq/internal/queryir"
)

// DefaultChunkSize caps the length of any IN-list sent to the store.
const DefaultChunkSize = 200

const allowFilteringClause = " ALLOW FILTERING"

// Statement is one compiled query.
//
// CRITICAL: CQL never contains a value. Every value is a ? parameter in
// Params, in placeholder order.
type Statement struct {
	CQL    string
	Params []any

	Table string
	// FilterColumns lists the columns constrained natively, in WHERE order.
	FilterColumns  []string
	AllowFiltering bool
	// Count is set for a single COUNT projection.
	Count bool
	// CountLocally means post-filters exist, so the statement fetches rows
	// and the caller counts what survives filtering.
	CountLocally bool
	// Extra lists columns selected only so post-filters can read them.
	// They are not part of the step's projection.
	Extra []string
}

func (s Statement) String() string { return s.CQL }

// WithAllowFiltering returns a copy that permits a full scan.
func (s Statement) WithAllowFiltering() Statement {
	if s.AllowFiltering {
		return s
	}
	s.AllowFiltering = true
	s.CQL += allowFilteringClause
	s.Params = append([]any(nil), s.Params...)
	return s
}

// Compiler turns steps into statements. It is stateless and safe for
// concurrent use.
type Compiler struct{}

// NewCompiler creates a Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile converts a step into a statement plus the conditions the store
// cannot evaluate.
//
//	SELECT cols FROM table [WHERE c1 AND c2 ...] [LIMIT n] [ALLOW FILTERING]
//
// WHERE terms follow sorted column order. BETWEEN compiles to a pair of
// range terms. LIMIT is raised by the offset, since the offset is applied
// after rows come back, and is omitted when post-filters would discard
// rows after the limit was applied.
func (c *Compiler) Compile(step queryir.Step) (Statement, []queryir.Condition, error) {
	if !queryir.ValidIdentifier(step.Table) {
		return Statement{}, nil, fmt.Errorf("invalid table name %q", step.Table)
	}

	var (
		terms  []string
		params []any
		post   []queryir.Condition
		cols   []string
	)
	for _, col := range step.Columns() {
		if !queryir.ValidIdentifier(col) {
			return Statement{}, nil, fmt.Errorf("invalid column name %q", col)
		}
		cond := step.Where[col]
		cond.Column = col
		if !cond.Op.Native() {
			post = append(post, cond)
			continue
		}
		term, termParams, err := compileCondition(cond)
		if err != nil {
			return Statement{}, nil, fmt.Errorf("compile filter: %w", err)
		}
		terms = append(terms, term)
		params = append(params, termParams...)
		cols = append(cols, col)
	}

	stmt := Statement{
		Table:          step.Table,
		FilterColumns:  cols,
		AllowFiltering: step.AllowFullScan,
		Count:          step.IsCount(),
	}
	stmt.CountLocally = stmt.Count && len(post) > 0

	projection, extra, err := compileProjection(step, post, stmt.CountLocally)
	if err != nil {
		return Statement{}, nil, err
	}
	stmt.Extra = extra

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", projection, step.Table)
	if len(terms) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(terms, " AND "))
	}
	if n, ok := pushedLimit(step, len(post) > 0); ok && !stmt.Count {
		params = append(params, n)
		b.WriteString(" LIMIT ?")
	}
	if step.AllowFullScan {
		b.WriteString(allowFilteringClause)
	}

	stmt.CQL = b.String()
	stmt.Params = params
	return stmt, post, nil
}

// compileProjection renders the select list. COUNT is normalized to
// upper case. A count over post-filtered rows selects the filtered columns
// instead. Otherwise post-filtered columns missing from the select list are
// appended and returned as extra.
func compileProjection(step queryir.Step, post []queryir.Condition, countLocally bool) (string, []string, error) {
	var postCols []string
	seen := make(map[string]bool)
	for _, p := range post {
		if !seen[p.Column] {
			seen[p.Column] = true
			postCols = append(postCols, p.Column)
		}
	}
	if countLocally {
		return strings.Join(postCols, ", "), nil, nil
	}
	if len(step.Select) == 0 {
		return "", nil, fmt.Errorf("empty select list")
	}

	parts := make([]string, 0, len(step.Select)+len(postCols))
	selected := make(map[string]bool)
	for _, item := range step.Select {
		switch {
		case queryir.IsCountProjection(item):
			parts = append(parts, normalizeCount(item))
		case queryir.ValidIdentifier(item):
			selected[item] = true
			parts = append(parts, item)
		default:
			return "", nil, fmt.Errorf("invalid select item %q", item)
		}
	}
	var extra []string
	for _, col := range postCols {
		if !selected[col] {
			extra = append(extra, col)
			parts = append(parts, col)
		}
	}
	return strings.Join(parts, ", "), extra, nil
}

func normalizeCount(item string) string {
	inner := strings.TrimSpace(item)
	inner = inner[strings.IndexByte(inner, '(')+1 : strings.LastIndexByte(inner, ')')]
	return "COUNT(" + strings.TrimSpace(inner) + ")"
}

func pushedLimit(step queryir.Step, hasPost bool) (int, bool) {
	if step.Limit == nil || hasPost {
		return 0, false
	}
	n := *step.Limit
	if step.Offset != nil {
		n += *step.Offset
	}
	return n, true
}

// compileCondition compiles one native condition.
// CRITICAL: values are never interpolated.
func compileCondition(c queryir.Condition) (string, []any, error) {
	switch c.Op {
	case queryir.OpEQ, queryir.OpGT, queryir.OpGTE, queryir.OpLT, queryir.OpLTE:
		return fmt.Sprintf("%s %s ?", c.Column, c.Op), []any{c.Value}, nil
	case queryir.OpIN:
		values := c.Values()
		if len(values) == 0 {
			return "", nil, fmt.Errorf("%s IN needs at least one value", c.Column)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		return fmt.Sprintf("%s IN (%s)", c.Column, placeholders), append([]any(nil), values...), nil
	case queryir.OpBetween:
		values := c.Values()
		if len(values) != 2 {
			return "", nil, fmt.Errorf("%s BETWEEN needs exactly 2 values, got %d", c.Column, len(values))
		}
		return fmt.Sprintf("%s >= ? AND %s <= ?", c.Column, c.Column), []any{values[0], values[1]}, nil
	default:
		return "", nil, fmt.Errorf("operator %q is not native", c.Op)
	}
}
