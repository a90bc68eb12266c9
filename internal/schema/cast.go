package schema

import (
	"math"
	"strconv"
	"strings"
)

var (
	trueWords  = map[string]bool{"true": true, "1": true, "yes": true, "y": true, "t": true, "active": true, "enrolled": true}
	falseWords = map[string]bool{"false": true, "0": true, "no": true, "n": true, "f": true, "inactive": true, "not enrolled": true}
)

// ParseBool reads the truthy and falsy vocabulary used in filters.
func ParseBool(s string) (bool, bool) {
	k := strings.ToLower(strings.Join(strings.Fields(s), " "))
	switch {
	case trueWords[k]:
		return true, true
	case falseWords[k]:
		return false, true
	}
	return false, false
}

// Cast converts v to the Go type matching a column type: int64 for int,
// float64 for float, bool for boolean. Slices are cast element by element.
// Values that cannot be converted are returned unchanged so the store can
// reject them with a real error.
func Cast(typ ColumnType, v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Cast(typ, e)
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Cast(typ, e)
		}
		return out
	}

	switch typ {
	case TypeBoolean:
		return castBool(v)
	case TypeInt:
		return castInt(v)
	case TypeFloat:
		return castFloat(v)
	case TypeText:
		return castText(v)
	}
	return v
}

// Cast converts v to the column's type. Unknown columns pass through.
func (t *Table) Cast(column string, v any) any {
	col, ok := t.Columns[column]
	if !ok {
		return v
	}
	return Cast(col.Type, v)
}

func castBool(v any) any {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		if b, ok := ParseBool(x); ok {
			return b
		}
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	}
	return v
}

func castInt(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case float64:
		if x == math.Trunc(x) {
			return int64(x)
		}
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
			return int64(f)
		}
	}
	return v
}

func castFloat(v any) any {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
	}
	return v
}

func castText(v any) any {
	switch x := v.(type) {
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	return v
}
