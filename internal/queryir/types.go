package queryir

import (
	"regexp"
	"sort"
	"strings"
)

// Operator is a comparison operator in a Condition.
type Operator string

const (
	OpEQ       Operator = "="
	OpGT       Operator = ">"
	OpGTE      Operator = ">="
	OpLT       Operator = "<"
	OpLTE      Operator = "<="
	OpNE       Operator = "!="
	OpIN       Operator = "IN"
	OpBetween  Operator = "BETWEEN"
	OpContains Operator = "CONTAINS"
	OpLike     Operator = "LIKE"
)

var operatorAliases = map[string]Operator{
	"=": OpEQ, "==": OpEQ, "eq": OpEQ, "equals": OpEQ,
	">": OpGT, "gt": OpGT, "greater than": OpGT,
	">=": OpGTE, "gte": OpGTE, "ge": OpGTE,
	"<": OpLT, "lt": OpLT, "less than": OpLT,
	"<=": OpLTE, "lte": OpLTE, "le": OpLTE,
	"!=": OpNE, "<>": OpNE, "ne": OpNE, "neq": OpNE, "not equal": OpNE,
	"in": OpIN,
	"between": OpBetween,
	"contains": OpContains,
	"like": OpLike,
}

// ParseOperator accepts symbolic (=, >, >=, <, <=, !=) and word forms,
// case-insensitively.
func ParseOperator(s string) (Operator, bool) {
	op, ok := operatorAliases[strings.ToLower(strings.Join(strings.Fields(s), " "))]
	return op, ok
}

// Native reports whether the store can evaluate the operator itself.
func (o Operator) Native() bool {
	switch o {
	case OpEQ, OpGT, OpGTE, OpLT, OpLTE, OpIN, OpBetween:
		return true
	}
	return false
}

// Condition is one predicate on a column.
//
// Value is a scalar for the comparison operators and a list for IN (any
// length) and BETWEEN (exactly two).
type Condition struct {
	Column string
	Op     Operator
	Value  any
}

// Eq is shorthand for an equality condition.
func Eq(value any) Condition { return Condition{Op: OpEQ, Value: value} }

// In is shorthand for an IN condition.
func In(values ...any) Condition { return Condition{Op: OpIN, Value: values} }

// Values returns the condition's value as a list. Scalars become a one
// element list.
func (c Condition) Values() []any {
	return ToList(c.Value)
}

// ToList flattens the list shapes decoders produce into []any.
func ToList(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out
	case []int64:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = f
		}
		return out
	}
	return []any{v}
}

// DefaultLinkColumn is the column linked steps join on.
const DefaultLinkColumn = "id"

// Step reads one table.
type Step struct {
	Table         string               `json:"table" yaml:"table"`
	Select        []string             `json:"select,omitempty" yaml:"select,omitempty"`
	Where         map[string]Condition `json:"where,omitempty" yaml:"where,omitempty"`
	LinkFromStep  *int                 `json:"link_from_step,omitempty" yaml:"link_from_step,omitempty"`
	LinkColumn    string               `json:"link_column,omitempty" yaml:"link_column,omitempty"`
	Limit         *int                 `json:"limit,omitempty" yaml:"limit,omitempty"`
	Offset        *int                 `json:"offset,omitempty" yaml:"offset,omitempty"`
	AllowFullScan bool                 `json:"allow_filtering,omitempty" yaml:"allow_filtering,omitempty"`

	// Warnings are notes from planning (unresolved or ambiguous values)
	// that the executor copies into the step's result. Plan files cannot
	// set them.
	Warnings []string `json:"warnings,omitempty" yaml:"-"`
}

// Warn records a planning note once.
func (s *Step) Warn(msg string) {
	for _, w := range s.Warnings {
		if w == msg {
			return
		}
	}
	s.Warnings = append(s.Warnings, msg)
}

// Link returns the column this step joins on when linked.
func (s Step) Link() string {
	if s.LinkColumn == "" {
		return DefaultLinkColumn
	}
	return s.LinkColumn
}

// Columns returns the WHERE columns in sorted order.
func (s Step) Columns() []string {
	cols := make([]string, 0, len(s.Where))
	for c := range s.Where {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Clone returns a deep copy. List values inside conditions are copied too.
func (s Step) Clone() Step {
	out := s
	if s.Select != nil {
		out.Select = append([]string(nil), s.Select...)
	}
	if s.Where != nil {
		out.Where = make(map[string]Condition, len(s.Where))
		for k, c := range s.Where {
			if list, ok := c.Value.([]any); ok {
				c.Value = append([]any(nil), list...)
			}
			out.Where[k] = c
		}
	}
	if s.Warnings != nil {
		out.Warnings = append([]string(nil), s.Warnings...)
	}
	out.LinkFromStep = clonePtr(s.LinkFromStep)
	out.Limit = clonePtr(s.Limit)
	out.Offset = clonePtr(s.Offset)
	return out
}

func clonePtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to n. Used for Limit, Offset and LinkFromStep.
func Ptr(n int) *int { return &n }

var countPattern = regexp.MustCompile(`(?i)^count\(\s*(\*|[a-z_][a-z0-9_]*)\s*\)$`)

// IsCountProjection reports whether a select item is COUNT(*) or COUNT(col).
func IsCountProjection(s string) bool {
	return countPattern.MatchString(strings.TrimSpace(s))
}

// IsCount reports whether the step projects exactly one COUNT.
func (s Step) IsCount() bool {
	return len(s.Select) == 1 && IsCountProjection(s.Select[0])
}

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether s can be used as a table or column name.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// Plan is an ordered list of steps plus the intent that produced it.
type Plan struct {
	Intent string `json:"intent,omitempty" yaml:"intent,omitempty"`
	Steps  []Step `json:"steps" yaml:"steps"`
}

// Clone returns a deep copy.
func (p Plan) Clone() Plan {
	out := Plan{Intent: p.Intent, Steps: make([]Step, len(p.Steps))}
	for i, s := range p.Steps {
		out.Steps[i] = s.Clone()
	}
	return out
}
