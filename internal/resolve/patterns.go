package resolve

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/planq/internal/canon"
	"github.com/roach88/planq/internal/queryir"
	"github.com/roach88/planq/internal/valueindex"
)

var (
	gradeWords   = wordSet("grade", "grades", "score", "scores", "scored", "result", "results", "marks", "mark", "performance", "subject", "subjects")
	studentWords = wordSet("student", "students", "learner", "learners", "pupil", "pupils", "enrolled")
	cgpaWords    = wordSet("cgpa", "gpa", "average", "cumulative")
	activeWords  = wordSet("active", "enrolled", "current", "currently")

	// reservedWords never take part in subject or programme phrases; the
	// pattern extractors own them.
	reservedWords = wordSet(
		"student", "students", "learner", "learners", "pupil", "pupils",
		"cgpa", "gpa", "grade", "grades", "score", "scores", "scored", "result", "results", "marks", "mark",
		"cohort", "intake", "female", "male", "women", "men", "girls", "boys",
		"graduated", "graduate", "graduates", "active", "inactive", "enrolled", "current", "currently", "status",
		"above", "below", "over", "under", "between", "greater", "less", "than", "least", "most", "equal", "equals",
		"show", "list", "find", "get", "give", "all", "how", "many", "count", "number", "who", "what", "which",
		"are", "were", "have", "has", "had", "not", "yet", "did", "does", "my", "me", "from", "country",
	)
)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func hasAny(tokens []string, set map[string]bool) bool {
	for _, t := range tokens {
		if set[t] {
			return true
		}
	}
	return false
}

func hasWord(tokens []string, w string) bool {
	for _, t := range tokens {
		if t == w {
			return true
		}
	}
	return false
}

// tableHint guesses the table from keywords.
func tableHint(tokens []string) string {
	switch {
	case hasAny(tokens, gradeWords):
		return "subjects"
	case hasAny(tokens, studentWords), hasAny(tokens, cgpaWords):
		return "students"
	}
	return ""
}

type cgpaPattern struct {
	re *regexp.Regexp
	op queryir.Operator
}

const cgpaSubject = `\b(?:overall\s+)?c?gpa\b(?:\s+(?:is|of))?\s*`

var cgpaPatterns = []cgpaPattern{
	{regexp.MustCompile(cgpaSubject + `(?:between|from)\s+([0-9]+(?:\.[0-9]+)?)\s+(?:and|to)\s+([0-9]+(?:\.[0-9]+)?)`), queryir.OpBetween},
	{regexp.MustCompile(cgpaSubject + `>=\s*([0-9]+(?:\.[0-9]+)?)`), queryir.OpGTE},
	{regexp.MustCompile(cgpaSubject + `<=\s*([0-9]+(?:\.[0-9]+)?)`), queryir.OpLTE},
	{regexp.MustCompile(cgpaSubject + `>\s*([0-9]+(?:\.[0-9]+)?)`), queryir.OpGT},
	{regexp.MustCompile(cgpaSubject + `<\s*([0-9]+(?:\.[0-9]+)?)`), queryir.OpLT},
	{regexp.MustCompile(cgpaSubject + `={1,2}\s*([0-9]+(?:\.[0-9]+)?)`), queryir.OpEQ},
	{regexp.MustCompile(cgpaSubject + `(?:at\s+least|no\s+less\s+than)\s+([0-9]+(?:\.[0-9]+)?)`), queryir.OpGTE},
	{regexp.MustCompile(cgpaSubject + `(?:at\s+most|no\s+more\s+than)\s+([0-9]+(?:\.[0-9]+)?)`), queryir.OpLTE},
	{regexp.MustCompile(cgpaSubject + `(?:above|greater\s+than|more\s+than|over|higher\s+than)\s+([0-9]+(?:\.[0-9]+)?)`), queryir.OpGT},
	{regexp.MustCompile(cgpaSubject + `(?:below|less\s+than|under|lower\s+than)\s+([0-9]+(?:\.[0-9]+)?)`), queryir.OpLT},
}

// extractCGPA finds a CGPA comparison in the lowercased query.
func extractCGPA(lower string) (queryir.Operator, any, bool) {
	for _, p := range cgpaPatterns {
		m := p.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		lo, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if p.op == queryir.OpBetween {
			hi, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				continue
			}
			if hi < lo {
				lo, hi = hi, lo
			}
			return p.op, []any{lo, hi}, true
		}
		return p.op, lo, true
	}
	return "", nil, false
}

var notGraduated = regexp.MustCompile(`\b(?:not|never|haven'?t|hasn'?t|didn'?t|yet\s+to)\s+(?:yet\s+)?graduat`)

// extractGraduation returns the graduated flag if the query mentions it.
func extractGraduation(lower string, tokens []string) (bool, bool) {
	if notGraduated.MatchString(lower) || hasWord(tokens, "ungraduated") {
		return false, true
	}
	if hasWord(tokens, "graduated") || hasWord(tokens, "graduates") {
		return true, true
	}
	return false, false
}

var notActive = regexp.MustCompile(`\b(?:not|no\s+longer)\s+(?:currently\s+)?(?:active|enrolled)\b`)

// mentionsActive reports an "active"/"enrolled" request that is not negated.
func mentionsActive(lower string, tokens []string) bool {
	if notActive.MatchString(lower) {
		return false
	}
	return hasAny(tokens, activeWords) && !hasWord(tokens, "inactive")
}

// extractGender maps gendered words to the stored value.
func extractGender(tokens []string) (string, bool) {
	for _, t := range tokens {
		switch t {
		case "female", "females", "women", "woman", "girls":
			return "Female", true
		}
	}
	for _, t := range tokens {
		switch t {
		case "male", "males", "men", "man", "boys":
			return "Male", true
		}
	}
	return "", false
}

// commonCountries covers names and abbreviations that may be missing from
// the stored vocabulary.
var commonCountries = map[string]string{
	"malaysia":       "Malaysia",
	"singapore":      "Singapore",
	"indonesia":      "Indonesia",
	"thailand":       "Thailand",
	"philippines":    "Philippines",
	"vietnam":        "Vietnam",
	"india":          "India",
	"china":          "China",
	"nigeria":        "Nigeria",
	"kenya":          "Kenya",
	"ghana":          "Ghana",
	"usa":            "United States",
	"united states":  "United States",
	"uk":             "United Kingdom",
	"united kingdom": "United Kingdom",
	"australia":      "Australia",
}

var fromPhrase = regexp.MustCompile(`\bfrom\s+([a-z]+(?:\s+[a-z]+)?)`)

// extractCountry looks for a stored country name as a whole-word phrase,
// then for a common country name, then for "from X" where X resolves in the
// country vocabulary.
func extractCountry(query string, countries valueindex.AliasMap) (string, []int, bool) {
	tokens := canon.Tokens(query)
	padded := " " + strings.Join(tokens, " ") + " "

	for _, k := range longestFirst(countries.Keys()) {
		if strings.Contains(padded, " "+k+" ") {
			e, _ := countries.Lookup(k)
			return e.Display, spanOf(tokens, k), true
		}
	}
	for _, k := range sortedKeys(commonCountries) {
		if strings.Contains(padded, " "+k+" ") {
			name := commonCountries[k]
			if d, ok := countries.Display(name); ok {
				name = d
			}
			return name, spanOf(tokens, k), true
		}
	}
	if m := fromPhrase.FindStringSubmatch(strings.Join(tokens, " ")); m != nil {
		if d, ok := countries.Display(m[1]); ok && countries.Exact(m[1]) {
			return d, spanOf(tokens, m[1]), true
		}
	}
	return "", nil, false
}

// spanOf returns the token positions of phrase inside tokens.
func spanOf(tokens []string, phrase string) []int {
	words := strings.Fields(phrase)
	for i := 0; i+len(words) <= len(tokens); i++ {
		match := true
		for j, w := range words {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			span := make([]int, len(words))
			for j := range words {
				span[j] = i + j
			}
			return span
		}
	}
	return nil
}

var (
	directCohort = regexp.MustCompile(`\b((?:19|20)\d{2}(?:0[1-9]|1[0-2]))\b`)
	monthYear    = regexp.MustCompile(`\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\s+((?:19|20)\d{2})\b`)
	yearMonth    = regexp.MustCompile(`\b((?:19|20)\d{2})[-/](0?[1-9]|1[0-2])\b`)
	yearOnly     = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
)

// extractCohort finds a cohort in the lowercased query: a direct YYYYMM, a
// month-name year pair, a YYYY-MM date, or a month word plus a year found
// elsewhere in the query. A month with no year is reported as unresolved.
func extractCohort(lower string, tokens []string) (code string, unresolved string) {
	if m := directCohort.FindStringSubmatch(lower); m != nil {
		return m[1], ""
	}
	if m := monthYear.FindStringSubmatch(lower); m != nil {
		if c, ok := canon.NormalizeCohort(m[1] + " " + m[2]); ok {
			return c, ""
		}
	}
	if m := yearMonth.FindStringSubmatch(lower); m != nil {
		if c, ok := canon.NormalizeCohort(m[1] + " " + m[2]); ok {
			return c, ""
		}
	}
	if !hasWord(tokens, "cohort") && !hasWord(tokens, "intake") {
		return "", ""
	}
	for _, t := range tokens {
		if !canon.IsMonthName(t) || t == "may" {
			continue
		}
		if y := yearOnly.FindString(lower); y != "" {
			if c, ok := canon.CohortFromParts(t, y); ok {
				return c, ""
			}
		}
		return "", t
	}
	return "", ""
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return longestFirst(keys)
}

// longestFirst orders names longest first so "papua new guinea" wins over
// the "guinea" inside it. Equal lengths sort lexically.
func longestFirst(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

var gradeMention = regexp.MustCompile(`\bgrades?\s+(?:of\s+|is\s+|=\s*)?([abcdfp][+-]?|au|ex|inc)(?:[\s,.?!]|$)`)

// extractGrade finds a letter grade written after "grade", as in "grade
// A+" or "grades of b-".
func extractGrade(lower string) (string, bool) {
	m := gradeMention.FindStringSubmatch(lower)
	if m == nil {
		return "", false
	}
	return canon.NormalizeGrade(m[1])
}

// isReserved reports tokens owned by the pattern extractors.
func isReserved(t string) bool {
	if reservedWords[t] || canon.IsMonthName(t) {
		return true
	}
	for _, r := range t {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
