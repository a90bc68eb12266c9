package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, []string{"students", "subjects"}, c.TableNames())

	students, ok := c.Table("students")
	require.True(t, ok)
	assert.Equal(t, "id", students.Key)
	assert.True(t, students.IsIndexed("id"))
	assert.True(t, students.IsIndexed("programme"))
	assert.False(t, students.IsIndexed("overallcgpa"))
	assert.Equal(t, []string{"id", "name", "programme", "overallcgpa", "cohort", "status", "graduated"}, students.DefaultSelect)

	col, ok := students.Column("graduated")
	require.True(t, ok)
	assert.Equal(t, TypeBoolean, col.Type)

	subjects, ok := c.Table("subjects")
	require.True(t, ok)
	assert.True(t, subjects.IsIndexed("id"))
	assert.True(t, subjects.Has("grade"))
	assert.False(t, subjects.Has("cohort"))
}

func TestOwners(t *testing.T) {
	c := Default()
	assert.Equal(t, []string{"students", "subjects"}, c.Owners("status"))
	assert.Equal(t, []string{"students"}, c.Owners("cohort"))
	assert.Empty(t, c.Owners("nope"))
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "syntax",
			src:     `tables: {`,
			wantErr: "",
		},
		{
			name:    "no tables",
			src:     `other: 1`,
			wantErr: "tables is required",
		},
		{
			name: "undeclared key",
			src: `tables: t: {
				key: "id"
				columns: name: {type: "text", indexed: false}
				default_select: []
			}`,
			wantErr: `key column "id" is not declared`,
		},
		{
			name: "unknown default select column",
			src: `tables: t: {
				key: "id"
				columns: id: {type: "int", indexed: true}
				default_select: ["ghost"]
			}`,
			wantErr: `unknown column "ghost"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load([]byte(tc.src), "test.cue")
			require.Error(t, err)
			if tc.wantErr != "" {
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestCast(t *testing.T) {
	testCases := []struct {
		name string
		typ  ColumnType
		in   any
		want any
	}{
		{name: "bool from yes", typ: TypeBoolean, in: "yes", want: true},
		{name: "bool from enrolled", typ: TypeBoolean, in: "Enrolled", want: true},
		{name: "bool from not enrolled", typ: TypeBoolean, in: "not  enrolled", want: false},
		{name: "bool unknown word", typ: TypeBoolean, in: "maybe", want: "maybe"},
		{name: "int from string", typ: TypeInt, in: "2023", want: int64(2023)},
		{name: "int from whole float", typ: TypeInt, in: 7.0, want: int64(7)},
		{name: "int keeps fraction", typ: TypeInt, in: 7.5, want: 7.5},
		{name: "float from string", typ: TypeFloat, in: "3.5", want: 3.5},
		{name: "float from int", typ: TypeFloat, in: 3, want: 3.0},
		{name: "text from int", typ: TypeText, in: int64(202301), want: "202301"},
		{name: "list", typ: TypeInt, in: []any{"1", 2}, want: []any{int64(1), int64(2)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Cast(tc.typ, tc.in))
		})
	}
}
