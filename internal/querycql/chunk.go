package querycql

import (
	"github.com/roach88/planq/internal/queryir"
)

// Chunk splits a step whose IN-lists exceed size into sub-steps that share
// every other condition. The first oversized list (in column order) is
// deduplicated and cut into consecutive slices of at most size values; each
// resulting sub-step is chunked again so no list in the output is longer
// than size. No value appears in two chunks, so the union of the chunk
// results matches the unchunked query. Sub-steps come back in list order. A
// step without oversized lists is returned alone.
func (c *Compiler) Chunk(step queryir.Step, size int) []queryir.Step {
	if size <= 0 {
		size = DefaultChunkSize
	}
	for _, col := range step.Columns() {
		cond := step.Where[col]
		if cond.Op != queryir.OpIN {
			continue
		}
		if len(cond.Values()) <= size {
			continue
		}
		values := queryir.Distinct(cond.Values())
		if len(values) <= size {
			sub := step.Clone()
			sub.Where[col] = queryir.Condition{Column: col, Op: queryir.OpIN, Value: values}
			return c.Chunk(sub, size)
		}

		var out []queryir.Step
		for start := 0; start < len(values); start += size {
			end := min(start+size, len(values))
			sub := step.Clone()
			sub.Where[col] = queryir.Condition{
				Column: col,
				Op:     queryir.OpIN,
				Value:  append([]any(nil), values[start:end]...),
			}
			out = append(out, c.Chunk(sub, size)...)
		}
		return out
	}
	return []queryir.Step{step}
}
