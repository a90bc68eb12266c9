package canon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var monthNames = map[string]int{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "sept": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
}

var (
	yearPattern  = regexp.MustCompile(`^(19|20)\d{2}$`)
	directCohort = regexp.MustCompile(`^((?:19|20)\d{2})(\d{2})$`)
	numericMonth = regexp.MustCompile(`^\d{1,2}$`)
)

// MonthNumber parses a month name, abbreviation or 1-2 digit number.
func MonthNumber(s string) (int, bool) {
	k := Key(s)
	if n, ok := monthNames[k]; ok {
		return n, true
	}
	if numericMonth.MatchString(k) {
		n, _ := strconv.Atoi(k)
		if n >= 1 && n <= 12 {
			return n, true
		}
	}
	return 0, false
}

// IsMonthName reports whether the word is a month name or abbreviation.
func IsMonthName(s string) bool {
	_, ok := monthNames[Key(s)]
	return ok
}

// Cohort formats a year and month as the store's YYYYMM cohort code.
func Cohort(year, month int) string {
	return fmt.Sprintf("%04d%02d", year, month)
}

// NormalizeCohort turns human cohort spellings into YYYYMM.
//
// Accepted forms, after canonicalization:
//
//	202203, 2022 03, 2022-03, 2022/03, 03/2022, 3-2022,
//	March 2022, Mar 2022, 2022 March, Sept 2024
//
// Anything else, including months outside 1..12, returns ok=false.
func NormalizeCohort(s string) (string, bool) {
	tokens := strings.Fields(Key(s))
	switch len(tokens) {
	case 1:
		m := directCohort.FindStringSubmatch(tokens[0])
		if m == nil {
			return "", false
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return "", false
		}
		return Cohort(year, month), true
	case 2:
		if year, ok := parseYear(tokens[0]); ok {
			if month, ok := MonthNumber(tokens[1]); ok {
				return Cohort(year, month), true
			}
		}
		if year, ok := parseYear(tokens[1]); ok {
			if month, ok := MonthNumber(tokens[0]); ok {
				return Cohort(year, month), true
			}
		}
	}
	return "", false
}

// CohortFromParts merges a separately supplied month and year.
// A month that is already a full YYYYMM code wins over the year.
func CohortFromParts(month, year string) (string, bool) {
	if code, ok := NormalizeCohort(month); ok {
		return code, true
	}
	y, ok := parseYear(Key(year))
	if !ok {
		return "", false
	}
	m, ok := MonthNumber(month)
	if !ok {
		return "", false
	}
	return Cohort(y, m), true
}

func parseYear(tok string) (int, bool) {
	if !yearPattern.MatchString(tok) {
		return 0, false
	}
	y, _ := strconv.Atoi(tok)
	return y, true
}
