package resolve

import (
	"sort"
	"strings"

	"github.com/roach88/planq/internal/canon"
)

const (
	minTokenLen = 3
	maxNGram    = 5
)

// edgeStopwords are trimmed from both ends of a phrase.
var edgeStopwords = map[string]bool{
	"for": true, "from": true, "the": true, "that": true, "which": true,
	"and": true, "with": true, "who": true, "are": true,
}

// phrase is an n-gram plus the token span it covers.
type phrase struct {
	text       string
	start, end int // token positions, end exclusive
}

// CandidatePhrases returns the n-grams (1 to 5 tokens) of the query, built
// from tokens of at least three characters, longest first and without
// duplicates. Filler words at either end are trimmed.
func CandidatePhrases(query string) []string {
	ps := phrases(canon.Tokens(query), nil)
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.text
	}
	return out
}

// phrases builds candidate phrases. Reserved tokens split the query into
// segments; no phrase crosses a reserved token.
func phrases(tokens []string, reserved func(string) bool) []phrase {
	type tok struct {
		text string
		pos  int
	}
	var (
		segments [][]tok
		current  []tok
	)
	for i, t := range tokens {
		if reserved != nil && reserved(t) {
			if len(current) > 0 {
				segments = append(segments, current)
				current = nil
			}
			continue
		}
		if len(t) < minTokenLen {
			continue
		}
		current = append(current, tok{text: t, pos: i})
	}
	if len(current) > 0 {
		segments = append(segments, current)
	}

	var all []phrase
	for _, seg := range segments {
		for n := 1; n <= min(maxNGram, len(seg)); n++ {
			for i := 0; i+n <= len(seg); i++ {
				window := seg[i : i+n]
				lo, hi := 0, len(window)
				for lo < hi && edgeStopwords[window[lo].text] {
					lo++
				}
				for hi > lo && edgeStopwords[window[hi-1].text] {
					hi--
				}
				if lo == hi {
					continue
				}
				words := make([]string, 0, hi-lo)
				for _, w := range window[lo:hi] {
					words = append(words, w.text)
				}
				all = append(all, phrase{
					text:  strings.Join(words, " "),
					start: window[lo].pos,
					end:   window[hi-1].pos + 1,
				})
			}
		}
	}

	// Longest first; earlier position first within a length.
	sort.SliceStable(all, func(i, j int) bool {
		wi, wj := strings.Count(all[i].text, " "), strings.Count(all[j].text, " ")
		if wi != wj {
			return wi > wj
		}
		if len(all[i].text) != len(all[j].text) {
			return len(all[i].text) > len(all[j].text)
		}
		return all[i].start < all[j].start
	})

	seen := make(map[string]bool, len(all))
	out := all[:0]
	for _, p := range all {
		if seen[p.text] {
			continue
		}
		seen[p.text] = true
		out = append(out, p)
	}
	return out
}
