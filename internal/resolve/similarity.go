package resolve

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/roach88/planq/internal/canon"
)

// tokenMatch is the per-token ratio at which a candidate token counts as
// matched.
const tokenMatch = 80

var scoreStopwords = map[string]bool{
	"of": true, "in": true, "and": true, "with": true, "the": true,
	"for": true, "to": true, "a": true, "an": true, "on": true,
}

// Ratio is the normalized Levenshtein similarity of two strings, 0..100.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	d := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * (1 - float64(d)/float64(longest))))
}

// TokenSetRatio scores how well a user term matches a candidate value,
// 0..100, ignoring word order, case, punctuation and filler words.
//
// Each term token is paired with its closest candidate token (so typos
// still count). The mean of those pairings dominates the score; the share
// of candidate tokens that were matched breaks ties in favour of tighter
// candidates. Identical token sets score 100.
func TokenSetRatio(term, candidate string) int {
	q := contentTokens(term)
	c := contentTokens(candidate)
	if len(q) == 0 || len(c) == 0 {
		return 0
	}
	if strings.Join(q, " ") == strings.Join(c, " ") {
		return 100
	}

	matched := make([]bool, len(c))
	total := 0
	for _, qt := range q {
		best, bestIdx := 0, -1
		for i, ct := range c {
			if r := Ratio(qt, ct); r > best {
				best, bestIdx = r, i
			}
		}
		total += best
		if best >= tokenMatch {
			matched[bestIdx] = true
		}
	}

	hits := 0
	for _, m := range matched {
		if m {
			hits++
		}
	}
	coverage := float64(total) / float64(len(q))
	precision := 100 * float64(hits) / float64(len(c))
	return int(math.Round(0.85*coverage + 0.15*precision))
}

// contentTokens returns the distinct canonical tokens of s without filler
// words. A string made only of filler keeps its tokens.
func contentTokens(s string) []string {
	all := canon.Tokens(s)
	out := uniqueTokens(all, true)
	if len(out) == 0 {
		out = uniqueTokens(all, false)
	}
	return out
}

func uniqueTokens(tokens []string, skipStop bool) []string {
	seen := make(map[string]bool, len(tokens))
	var out []string
	for _, t := range tokens {
		if (skipStop && scoreStopwords[t]) || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
