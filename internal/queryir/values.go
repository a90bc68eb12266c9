package queryir

import (
	"fmt"
	"strconv"
)

// ValueKey is a dedupe key for condition values. Numbers of different Go
// types that are equal get the same key; a numeric string does not match a
// number.
func ValueKey(v any) string {
	var f float64
	switch x := v.(type) {
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case float32:
		f = float64(x)
	case float64:
		f = x
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Distinct returns values without repeats, keeping first-seen order.
func Distinct(values []any) []any {
	seen := make(map[string]bool, len(values))
	out := make([]any, 0, len(values))
	for _, v := range values {
		k := ValueKey(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}
