package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOperator(t *testing.T) {
	testCases := []struct {
		in   string
		want Operator
	}{
		{in: "=", want: OpEQ},
		{in: "EQ", want: OpEQ},
		{in: ">=", want: OpGTE},
		{in: "gte", want: OpGTE},
		{in: "<>", want: OpNE},
		{in: "in", want: OpIN},
		{in: "Between", want: OpBetween},
		{in: "like", want: OpLike},
		{in: "contains", want: OpContains},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseOperator(tc.in)
			assert.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}

	_, ok := ParseOperator("~=")
	assert.False(t, ok)
}

func TestOperator_Native(t *testing.T) {
	for _, op := range []Operator{OpEQ, OpGT, OpGTE, OpLT, OpLTE, OpIN, OpBetween} {
		assert.True(t, op.Native(), op)
	}
	for _, op := range []Operator{OpNE, OpContains, OpLike} {
		assert.False(t, op.Native(), op)
	}
}

func TestCondition_Values(t *testing.T) {
	assert.Equal(t, []any{"a", "b"}, Condition{Op: OpIN, Value: []string{"a", "b"}}.Values())
	assert.Equal(t, []any{3.5}, Condition{Op: OpEQ, Value: 3.5}.Values())
	assert.Nil(t, Condition{Op: OpIN}.Values())
}

func TestStep_Clone(t *testing.T) {
	orig := Step{
		Table:        "subjects",
		Select:       []string{"id"},
		Where:        map[string]Condition{"id": In(1, 2)},
		LinkFromStep: Ptr(0),
		Limit:        Ptr(10),
	}
	cp := orig.Clone()

	cp.Select[0] = "grade"
	cp.Where["id"].Value.([]any)[0] = 99
	*cp.Limit = 5

	assert.Equal(t, "id", orig.Select[0])
	assert.Equal(t, []any{1, 2}, orig.Where["id"].Value)
	assert.Equal(t, 10, *orig.Limit)
}

func TestStep_Link(t *testing.T) {
	assert.Equal(t, "id", Step{}.Link())
	assert.Equal(t, "student_id", Step{LinkColumn: "student_id"}.Link())
}

func TestIsCountProjection(t *testing.T) {
	assert.True(t, IsCountProjection("COUNT(*)"))
	assert.True(t, IsCountProjection("count(id)"))
	assert.False(t, IsCountProjection("count(id); drop"))
	assert.False(t, IsCountProjection("id"))

	assert.True(t, Step{Select: []string{"COUNT(*)"}}.IsCount())
	assert.False(t, Step{Select: []string{"COUNT(*)", "id"}}.IsCount())
}

func TestValidIdentifier(t *testing.T) {
	assert.True(t, ValidIdentifier("overallcgpa"))
	assert.True(t, ValidIdentifier("_x1"))
	assert.False(t, ValidIdentifier("1x"))
	assert.False(t, ValidIdentifier("Programme"))
	assert.False(t, ValidIdentifier("id; DROP TABLE students"))
}
