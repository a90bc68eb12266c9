package canon

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// junk lists glyphs that show up in exported spreadsheets and carry no meaning.
var junk = strings.NewReplacer(
	"§", "",
	"\u00a0", " ", // non-breaking space
	"\u200b", "", // zero-width space
	"\u200c", "",
	"\u200d", "",
	"\ufeff", "", // byte order mark
	"\ufffd", "", // replacement character
)

// Clean applies NFKC normalization, strips junk glyphs, collapses whitespace
// and trims. Blank input and the placeholders "null", "none" and "nan" (any
// case) are not usable and return ok=false.
func Clean(s string) (string, bool) {
	s = norm.NFKC.String(s)
	s = junk.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "", false
	}
	if _, placeholder := nullish[strings.ToLower(s)]; placeholder {
		return "", false
	}
	return s, true
}

var nullish = map[string]struct{}{"null": {}, "none": {}, "nan": {}}

// CleanOr returns the cleaned string, or "" when s is not usable.
func CleanOr(s string) string {
	c, _ := Clean(s)
	return c
}

// Key derives the canonical lookup key for s: Clean, case fold, and collapse
// every run of non [a-z0-9] characters to a single space.
//
//	Key("Database Fundamentals")  == "database fundamentals"
//	Key("database_fundamentals")  == "database fundamentals"
//	Key("DATABASE  FUNDAMENTALS") == "database fundamentals"
func Key(s string) string {
	c, ok := Clean(s)
	if !ok {
		return ""
	}
	// cases.Caser is stateful, so one per call.
	folded := cases.Fold().String(c)

	var b strings.Builder
	b.Grow(len(folded))
	gap := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if gap && b.Len() > 0 {
				b.WriteByte(' ')
			}
			gap = false
			b.WriteRune(r)
			continue
		}
		gap = true
	}
	return b.String()
}

// Tokens splits the canonical key of s into words.
func Tokens(s string) []string {
	return strings.Fields(Key(s))
}

// TitleCase title-cases s word by word, lowering the rest of each word.
// Used to tame SHOUTY display values.
func TitleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

// IsShouty reports whether s has letters and all of them are uppercase.
func IsShouty(s string) bool {
	hasUpper := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		}
	}
	return hasUpper && strings.ToUpper(s) == s
}
