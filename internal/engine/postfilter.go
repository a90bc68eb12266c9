package engine

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/planq/internal/queryir"
)

// predicate is a compiled condition evaluated against a single value.
type predicate struct {
	cond queryir.Condition
	like *regexp.Regexp
}

func newPredicate(c queryir.Condition) (predicate, error) {
	p := predicate{cond: c}
	if c.Op == queryir.OpLike {
		pattern, ok := c.Value.(string)
		if !ok {
			return p, fmt.Errorf("%s LIKE needs a string pattern, got %T", c.Column, c.Value)
		}
		re, err := likePattern(pattern)
		if err != nil {
			return p, err
		}
		p.like = re
	}
	return p, nil
}

// likePattern turns a LIKE pattern into an anchored, case-insensitive
// regexp. % matches any run of characters and _ exactly one; everything
// else is literal.
func likePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// match evaluates the predicate against a value.
func (p predicate) match(v any) bool {
	c := p.cond
	switch c.Op {
	case queryir.OpEQ:
		return equal(v, c.Value)
	case queryir.OpNE:
		return !equal(v, c.Value)
	case queryir.OpIN:
		for _, want := range c.Values() {
			if equal(v, want) {
				return true
			}
		}
		return false
	case queryir.OpGT, queryir.OpGTE, queryir.OpLT, queryir.OpLTE:
		cmp, ok := compare(v, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case queryir.OpGT:
			return cmp > 0
		case queryir.OpGTE:
			return cmp >= 0
		case queryir.OpLT:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case queryir.OpBetween:
		bounds := c.Values()
		if len(bounds) != 2 {
			return false
		}
		lo, ok1 := compare(v, bounds[0])
		hi, ok2 := compare(v, bounds[1])
		return ok1 && ok2 && lo >= 0 && hi <= 0
	case queryir.OpContains:
		if v == nil {
			return false
		}
		return strings.Contains(strings.ToLower(fmt.Sprint(v)), strings.ToLower(fmt.Sprint(c.Value)))
	case queryir.OpLike:
		return v != nil && p.like != nil && p.like.MatchString(fmt.Sprint(v))
	}
	return false
}

// filterRows keeps the rows every predicate accepts. Rows are not copied.
func filterRows(rows []Row, preds []predicate) []Row {
	if len(preds) == 0 {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		keep := true
		for _, p := range preds {
			if !p.match(row[p.cond.Column]) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}

// equal compares two values, numerically when both are numbers.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return x == y
		}
	}
	if x, ok := a.(bool); ok {
		y, ok := b.(bool)
		return ok && x == y
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// compare orders two values, numerically when both are numbers and as
// strings otherwise. Nil never compares.
func compare(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b)), true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, !math.IsNaN(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
