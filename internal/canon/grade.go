package canon

import (
	"regexp"
	"strings"
)

// Grades is the closed set of letter grades the store uses.
var Grades = []string{"A", "A+", "A-", "B+", "B", "B-", "C+", "C", "C-", "D+", "D", "F", "P", "AU", "EX", "INC"}

var gradeSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Grades))
	for _, g := range Grades {
		m[g] = struct{}{}
	}
	return m
}()

var (
	gradeDecoration = regexp.MustCompile(`[^A-Z0-9+\-]`)
	gradeLeading    = regexp.MustCompile(`^[ABCDFP][+-]?`)
)

// NormalizeGrade maps decorated grades such as "A+^", "F#" or "D**" onto the
// closed grade set. Decoration (^ * # parentheses and friends) is removed
// before matching; when the remainder is not a known grade the leading
// letter and optional sign are used. Anything else is not a grade and
// returns ok=false. Grades are never guessed beyond that.
func NormalizeGrade(s string) (string, bool) {
	c, ok := Clean(s)
	if !ok {
		return "", false
	}
	g := gradeDecoration.ReplaceAllString(strings.ToUpper(c), "")
	if g == "" || g == "-" || g == "+" {
		return "", false
	}
	if _, known := gradeSet[g]; known {
		return g, true
	}
	if m := gradeLeading.FindString(g); m != "" {
		return m, true
	}
	return "", false
}

// failedVariants are the spellings a fail is stored under.
var failedVariants = []string{"F", "F*", "F#", "(F)", "F^"}

// GradeVariants returns the stored spellings of a normalized grade. Only a
// fail has several; every other grade is stored as itself.
func GradeVariants(grade string) []string {
	if grade == "F" {
		return append([]string(nil), failedVariants...)
	}
	return []string{grade}
}
