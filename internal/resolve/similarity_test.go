package resolve

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	assert.Equal(t, 100, Ratio("calculus", "calculus"))
	assert.Equal(t, 88, Ratio("databse", "database"))
	assert.Equal(t, 0, Ratio("abc", "xyz"))
}

func TestTokenSetRatio(t *testing.T) {
	testCases := []struct {
		name      string
		term      string
		candidate string
		want      int
	}{
		{name: "identical", term: "Database Fundamentals", candidate: "database_fundamentals", want: 100},
		{name: "order and filler ignored", term: "algorithms and data structures", candidate: "Data Structures and Algorithms", want: 100},
		{name: "typos", term: "databse fundamentls", candidate: "Database Fundamentals", want: 92},
		{name: "partial programme", term: "computer science", candidate: "Bachelor of Science (Honours) in Computer Science", want: 93},
		{name: "unrelated", term: "xylophone", candidate: "Calculus", want: 9},
		{name: "empty", term: "", candidate: "Calculus", want: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TokenSetRatio(tc.term, tc.candidate))
		})
	}
}

func TestCandidatePhrases(t *testing.T) {
	got := CandidatePhrases("grades for Database Fundamentals")
	assert.Equal(t, []string{
		"grades for database fundamentals",
		"grades for database",
		"database fundamentals",
		"fundamentals",
		"database",
		"grades",
	}, got)
}

func TestCandidatePhrases_ShortTokensDropped(t *testing.T) {
	got := CandidatePhrases("AI in IT")
	assert.Empty(t, got)
}

func TestCandidatePhrases_MaxLength(t *testing.T) {
	got := CandidatePhrases("one two three four five six seven")
	assert.Equal(t, "three four five six seven", got[0])
	for _, p := range got {
		assert.LessOrEqual(t, len(strings.Fields(p)), 5)
	}
}
