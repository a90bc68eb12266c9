package planner

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/roach88/planq/internal/canon"
	"github.com/roach88/planq/internal/engine"
	"github.com/roach88/planq/internal/queryir"
	"github.com/roach88/planq/internal/resolve"
	"github.com/roach88/planq/internal/schema"
	"github.com/roach88/planq/internal/valueindex"
)

const (
	programmeColumn = "programme"
	subjectColumn   = "subjectname"
	cohortColumn    = "cohort"
	gradeColumn     = "grade"
)

// cohortPieces are raw filter keys folded into the cohort code.
var cohortPieces = []string{cohortColumn, "year", "month"}

// EnhanceStep returns a copy of step with the entities' filters folded in.
//
// Programme and subject names are replaced by their stored variants (IN when
// a name has several). A programme name that only resolves as a subject is
// moved to subjectname. Cohort, year and month pieces become one cohort
// condition. Grades are normalized, a fail expanding to every stored
// spelling. Filters for columns the step's table does not own are skipped,
// and every condition value is cast to its column type. Names and grades
// passed through unresolved are noted in the step's warnings. Applying it
// twice gives the same step.
func (p *Planner) EnhanceStep(step queryir.Step, ent resolve.Entities) queryir.Step {
	out := step.Clone()
	if out.Where == nil {
		out.Where = make(map[string]queryir.Condition)
	}
	table, ok := p.schema.Table(out.Table)
	if !ok {
		return out
	}

	filters := make(map[string]any, len(ent.Filters))
	for k, v := range ent.Filters {
		filters[k] = v
	}
	names := make(map[string]queryir.Condition)
	unresolved := make(map[string]string)

	if raw, ok := filters[programmeColumn]; ok {
		delete(filters, programmeColumn)
		if c, ok := canonicalName(p.values.Programmes(), raw); ok {
			names[programmeColumn] = c
		} else if c, ok := canonicalName(p.values.Subjects(), raw); ok {
			p.logger.Debug("programme filter names a subject", zap.Any("value", raw))
			names[subjectColumn] = c
		} else {
			p.logger.Warn("programme not in catalog, passing through", zap.Any("value", raw))
			names[programmeColumn] = listOrEq(raw)
			unresolved[programmeColumn] = fmt.Sprintf("programme %v not in catalog, passed through", raw)
		}
	}
	if raw, ok := filters[subjectColumn]; ok {
		delete(filters, subjectColumn)
		if c, ok := canonicalName(p.values.Subjects(), raw); ok {
			names[subjectColumn] = c
		} else {
			p.logger.Warn("subject not in catalog, passing through", zap.Any("value", raw))
			names[subjectColumn] = listOrEq(raw)
			unresolved[subjectColumn] = fmt.Sprintf("subject %v not in catalog, passed through", raw)
		}
	}
	cohort, hasCohort := mergeCohort(filters)
	for _, k := range cohortPieces {
		delete(filters, k)
	}
	if hasCohort {
		names[cohortColumn] = cohort
	}

	for col, c := range names {
		if !p.applies(table, col) {
			continue
		}
		c.Column = col
		out.Where[col] = c
		if msg, ok := unresolved[col]; ok {
			out.Warn(engine.Warning(engine.ErrCodeUnresolvedValue, msg))
		}
	}
	p.canonicalizeNames(out.Where)
	if ent.Subject != "" && p.applies(table, subjectColumn) {
		if _, set := out.Where[subjectColumn]; !set {
			c, ok := canonicalName(p.values.Subjects(), ent.Subject)
			if !ok {
				c = queryir.Eq(ent.Subject)
				out.Warn(engine.Warning(engine.ErrCodeUnresolvedValue,
					fmt.Sprintf("subject %s not in catalog, passed through", ent.Subject)))
			}
			c.Column = subjectColumn
			out.Where[subjectColumn] = c
		}
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, col := range keys {
		if !p.applies(table, col) {
			continue
		}
		v := filters[col]
		op, hasOp := ent.Operators[col]
		switch {
		case hasOp:
		case isList(v):
			op = queryir.OpIN
		default:
			op = queryir.OpEQ
		}
		out.Where[col] = queryir.Condition{Column: col, Op: op, Value: v}
	}

	normalizeGrades(&out)
	castWhere(table, out.Where)
	return out
}

// normalizeGrades rewrites equality and IN grade conditions onto stored
// grade spellings. Values that are not grades are kept and noted.
func normalizeGrades(step *queryir.Step) {
	c, ok := step.Where[gradeColumn]
	if !ok || (c.Op != queryir.OpEQ && c.Op != queryir.OpIN) {
		return
	}
	var values []any
	for _, v := range c.Values() {
		g, ok := canon.NormalizeGrade(fmt.Sprint(v))
		if !ok {
			step.Warn(engine.Warning(engine.ErrCodeUnresolvedValue,
				fmt.Sprintf("grade %v is not a known grade, passed through", v)))
			values = append(values, v)
			continue
		}
		for _, variant := range canon.GradeVariants(g) {
			values = append(values, variant)
		}
	}
	values = queryir.Distinct(values)
	if len(values) == 1 {
		step.Where[gradeColumn] = queryir.Condition{Column: gradeColumn, Op: queryir.OpEQ, Value: values[0]}
		return
	}
	step.Where[gradeColumn] = queryir.Condition{Column: gradeColumn, Op: queryir.OpIN, Value: values}
}

// canonicalName maps a user supplied name (or list of names) onto stored
// variants. Names not in the alias map are kept as given. It fails when none
// of the names resolves.
func canonicalName(m valueindex.AliasMap, raw any) (queryir.Condition, bool) {
	var (
		values   []any
		resolved bool
	)
	seen := make(map[string]bool)
	add := func(v any) {
		k := fmt.Sprint(v)
		if !seen[k] {
			seen[k] = true
			values = append(values, v)
		}
	}
	for _, v := range queryir.ToList(raw) {
		s, ok := v.(string)
		if !ok || !m.Resolved(s) {
			add(v)
			continue
		}
		resolved = true
		for _, variant := range m.Resolve(s) {
			add(variant)
		}
	}
	switch {
	case !resolved:
		return queryir.Condition{}, false
	case len(values) == 1:
		return queryir.Eq(values[0]), true
	}
	return queryir.In(values...), true
}

// canonicalizeNames rewrites equality and IN conditions on programme and
// subject names already present in a plan to their stored variants.
func (p *Planner) canonicalizeNames(where map[string]queryir.Condition) {
	maps := map[string]valueindex.AliasMap{
		programmeColumn: p.values.Programmes(),
		subjectColumn:   p.values.Subjects(),
	}
	for col, m := range maps {
		c, ok := where[col]
		if !ok || (c.Op != queryir.OpEQ && c.Op != queryir.OpIN) {
			continue
		}
		if nc, ok := canonicalName(m, c.Value); ok {
			nc.Column = col
			where[col] = nc
		}
	}
}

// mergeCohort builds the cohort condition from the cohort, year and month
// filter pieces. A cohort that cannot be normalized is passed through.
func mergeCohort(filters map[string]any) (queryir.Condition, bool) {
	raw, hasCohort := filters[cohortColumn]
	year, hasYear := filters["year"]
	month, hasMonth := filters["month"]

	if hasCohort {
		if list := queryir.ToList(raw); len(list) > 1 {
			codes := make([]any, 0, len(list))
			for _, v := range list {
				if code, ok := normalizeCohortValue(v, year, hasYear); ok {
					codes = append(codes, code)
				} else {
					codes = append(codes, v)
				}
			}
			return queryir.In(codes...), true
		}
		if code, ok := normalizeCohortValue(raw, year, hasYear); ok {
			return queryir.Eq(code), true
		}
		return queryir.Eq(raw), true
	}
	if hasMonth && hasYear {
		if code, ok := canon.CohortFromParts(fmt.Sprint(month), fmt.Sprint(year)); ok {
			return queryir.Eq(code), true
		}
	}
	return queryir.Condition{}, false
}

func normalizeCohortValue(v, year any, hasYear bool) (string, bool) {
	s := fmt.Sprint(v)
	if code, ok := canon.NormalizeCohort(s); ok {
		return code, true
	}
	if hasYear {
		return canon.NormalizeCohort(s + " " + fmt.Sprint(year))
	}
	return "", false
}

func listOrEq(v any) queryir.Condition {
	if isList(v) {
		return queryir.In(queryir.ToList(v)...)
	}
	return queryir.Eq(v)
}

func isList(v any) bool {
	switch v.(type) {
	case []any, []string, []int, []int64, []float64:
		return true
	}
	return false
}

// castWhere casts every condition value to its column's declared type.
func castWhere(table *schema.Table, where map[string]queryir.Condition) {
	for col, c := range where {
		c.Column = col
		c.Value = table.Cast(col, c.Value)
		where[col] = c
	}
}
