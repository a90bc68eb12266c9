package querycql

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/planq/internal/queryir"
)

// render prints a compiled statement for golden comparison.
func render(stmt Statement, post []queryir.Condition) []byte {
	var b strings.Builder
	b.WriteString(stmt.CQL)
	b.WriteString("\n")
	for i, p := range stmt.Params {
		fmt.Fprintf(&b, "$%d = %#v\n", i+1, p)
	}
	for _, c := range post {
		fmt.Fprintf(&b, "post: %s %s %#v\n", c.Column, c.Op, c.Value)
	}
	return []byte(b.String())
}

func TestCompile_Golden(t *testing.T) {
	testCases := []struct {
		name string
		step queryir.Step
	}{
		{
			name: "simple_select",
			step: queryir.Step{
				Table:  "students",
				Select: []string{"id", "name"},
				Where:  map[string]queryir.Condition{"cohort": queryir.Eq("202301")},
				Limit:  queryir.Ptr(10),
			},
		},
		{
			name: "range_in_and_post_filters",
			step: queryir.Step{
				Table:  "students",
				Select: []string{"id", "name"},
				Where: map[string]queryir.Condition{
					"overallcgpa": {Op: queryir.OpBetween, Value: []any{3.25, 3.75}},
					"programme":   queryir.In("Software Engineering", "Computer Science"),
					"name":        {Op: queryir.OpLike, Value: "%tan%"},
					"gender":      {Op: queryir.OpNE, Value: "Male"},
				},
				Limit:         queryir.Ptr(5),
				Offset:        queryir.Ptr(5),
				AllowFullScan: true,
			},
		},
		{
			name: "count",
			step: queryir.Step{
				Table:  "subjects",
				Select: []string{"count(*)"},
				Where: map[string]queryir.Condition{
					"grade": queryir.Eq("A"),
					"id":    queryir.In(1, 2, 3),
				},
				Limit: queryir.Ptr(100),
			},
		},
		{
			name: "count_with_post_filter",
			step: queryir.Step{
				Table:  "students",
				Select: []string{"COUNT(*)"},
				Where: map[string]queryir.Condition{
					"country": queryir.Eq("Malaysia"),
					"name":    {Op: queryir.OpContains, Value: "ali"},
				},
			},
		},
		{
			name: "limit_raised_by_offset",
			step: queryir.Step{
				Table:  "subjects",
				Select: []string{"id", "grade"},
				Where:  map[string]queryir.Condition{"overallpercentage": {Op: queryir.OpGTE, Value: 80}},
				Limit:  queryir.Ptr(10),
				Offset: queryir.Ptr(20),
			},
		},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	compiler := NewCompiler()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stmt, post, err := compiler.Compile(tc.step)
			require.NoError(t, err)
			g.Assert(t, tc.name, render(stmt, post))
		})
	}
}

func TestCompile_ValuesNeverInterpolated(t *testing.T) {
	compiler := NewCompiler()

	dangerous := "'; DROP TABLE students; --"
	stmt, _, err := compiler.Compile(queryir.Step{
		Table:  "students",
		Select: []string{"id"},
		Where:  map[string]queryir.Condition{"name": queryir.Eq(dangerous)},
	})
	require.NoError(t, err)

	assert.NotContains(t, stmt.CQL, "DROP")
	assert.Equal(t, []any{dangerous}, stmt.Params)
}

func TestCompile_RejectsBadIdentifiers(t *testing.T) {
	compiler := NewCompiler()

	testCases := []struct {
		name string
		step queryir.Step
	}{
		{name: "table", step: queryir.Step{Table: "students; DROP"}},
		{name: "column", step: queryir.Step{Table: "students", Where: map[string]queryir.Condition{"a=1 OR b": queryir.Eq(1)}}},
		{name: "select", step: queryir.Step{Table: "students", Select: []string{"name FROM x --"}}},
		{name: "empty select", step: queryir.Step{Table: "students"}},
		{name: "star select", step: queryir.Step{Table: "students", Select: []string{"*"}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := compiler.Compile(tc.step)
			require.Error(t, err)
		})
	}
}

func TestCompile_BetweenArity(t *testing.T) {
	_, _, err := NewCompiler().Compile(queryir.Step{
		Table: "students",
		Where: map[string]queryir.Condition{"overallcgpa": {Op: queryir.OpBetween, Value: []any{1.0, 2.0, 3.0}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly 2 values")
}

func TestCompile_Statement(t *testing.T) {
	stmt, post, err := NewCompiler().Compile(queryir.Step{
		Table:  "students",
		Select: []string{"id", "name"},
		Where: map[string]queryir.Condition{
			"overallcgpa": {Op: queryir.OpGT, Value: 3.5},
			"cohort":      queryir.Eq("202301"),
			"name":        {Op: queryir.OpLike, Value: "a%"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, name FROM students WHERE cohort = ? AND overallcgpa > ?", stmt.CQL)
	assert.Equal(t, "students", stmt.Table)
	assert.Equal(t, []string{"cohort", "overallcgpa"}, stmt.FilterColumns)
	assert.False(t, stmt.AllowFiltering)
	require.Len(t, post, 1)
	assert.Equal(t, "name", post[0].Column)

	retry := stmt.WithAllowFiltering()
	assert.Equal(t, "SELECT id, name FROM students WHERE cohort = ? AND overallcgpa > ? ALLOW FILTERING", retry.CQL)
	assert.True(t, retry.AllowFiltering)
	assert.Equal(t, retry, retry.WithAllowFiltering())
	assert.False(t, stmt.AllowFiltering, "original statement untouched")
}

func TestCompile_PostFilterColumnsAreFetched(t *testing.T) {
	compiler := NewCompiler()

	stmt, post, err := compiler.Compile(queryir.Step{
		Table:  "students",
		Select: []string{"id", "name"},
		Where: map[string]queryir.Condition{
			"gender": {Op: queryir.OpNE, Value: "Male"},
			"name":   {Op: queryir.OpContains, Value: "ali"},
		},
	})
	require.NoError(t, err)

	assert.Len(t, post, 2)
	assert.Equal(t, []string{"gender"}, stmt.Extra)
	assert.True(t, strings.HasPrefix(stmt.CQL, "SELECT id, name, gender FROM students"))
}
