package valueindex

import (
	"sort"
	"strings"
	"unicode"

	"github.com/roach88/planq/internal/canon"
)

// AliasEntry is one canonical key's display form and the raw variants seen
// in the store.
type AliasEntry struct {
	Display  string   `json:"display" yaml:"display"`
	Variants []string `json:"variants" yaml:"variants"`
}

// AliasMap maps canonical keys to alias entries. The zero value is an empty
// map. Methods never mutate the receiver.
type AliasMap struct {
	entries map[string]AliasEntry
	keys    []string // sorted
}

// Build groups values by canonical key. Unusable values are skipped.
// Every raw value ends up under exactly one key.
func Build(values []string) AliasMap {
	groups := make(map[string]map[string]struct{})
	for _, raw := range values {
		cleaned, ok := canon.Clean(raw)
		if !ok {
			continue
		}
		key := canon.Key(cleaned)
		if key == "" {
			continue
		}
		if groups[key] == nil {
			groups[key] = make(map[string]struct{})
		}
		groups[key][cleaned] = struct{}{}
	}

	m := AliasMap{
		entries: make(map[string]AliasEntry, len(groups)),
		keys:    make([]string, 0, len(groups)),
	}
	for key, set := range groups {
		variants := make([]string, 0, len(set))
		for v := range set {
			variants = append(variants, v)
		}
		sort.Strings(variants)
		m.entries[key] = AliasEntry{Display: pickDisplay(variants), Variants: variants}
		m.keys = append(m.keys, key)
	}
	sort.Strings(m.keys)
	return m
}

// pickDisplay ranks variants: more spaces, then more letters, then fewer
// non-ASCII runes, then longer, then lexically smallest. A shouty winner is
// title-cased.
func pickDisplay(variants []string) string {
	best := variants[0]
	for _, v := range variants[1:] {
		if displayLess(best, v) {
			best = v
		}
	}
	if canon.IsShouty(best) {
		return canon.TitleCase(best)
	}
	return best
}

// displayLess reports whether b ranks above a.
func displayLess(a, b string) bool {
	sa, sb := displayScore(a), displayScore(b)
	switch {
	case sa.spaces != sb.spaces:
		return sb.spaces > sa.spaces
	case sa.letters != sb.letters:
		return sb.letters > sa.letters
	case sa.nonASCII != sb.nonASCII:
		return sb.nonASCII < sa.nonASCII
	case len(a) != len(b):
		return len(b) > len(a)
	default:
		return b < a
	}
}

type score struct {
	spaces, letters, nonASCII int
}

func displayScore(s string) score {
	var sc score
	for _, r := range s {
		if r == ' ' {
			sc.spaces++
		}
		if unicode.IsLetter(r) {
			sc.letters++
		}
		if r > unicode.MaxASCII {
			sc.nonASCII++
		}
	}
	return sc
}

// Lookup returns the entry stored under an exact canonical key.
func (m AliasMap) Lookup(key string) (AliasEntry, bool) {
	e, ok := m.entries[key]
	return e, ok
}

// Resolve returns the raw stored variants that user text refers to.
//
// An exact canonical key hit returns that key's variants. Otherwise the
// first key, in sorted order, that contains every token of the user key as a
// substring wins. When nothing matches the cleaned user text is passed
// through unchanged so the caller can still query with it. Empty input
// resolves to nothing.
func (m AliasMap) Resolve(userText string) []string {
	key := canon.Key(userText)
	if key == "" {
		return nil
	}
	if e, ok := m.entries[key]; ok {
		return append([]string(nil), e.Variants...)
	}
	if e, ok := m.containing(key); ok {
		return append([]string(nil), e.Variants...)
	}
	cleaned, ok := canon.Clean(userText)
	if !ok {
		return nil
	}
	return []string{cleaned}
}

// Resolved reports whether user text maps onto a known key, exactly or by
// token containment.
func (m AliasMap) Resolved(userText string) bool {
	key := canon.Key(userText)
	if key == "" {
		return false
	}
	if _, ok := m.entries[key]; ok {
		return true
	}
	_, ok := m.containing(key)
	return ok
}

// Exact reports whether user text canonicalizes to a stored key.
func (m AliasMap) Exact(userText string) bool {
	_, ok := m.entries[canon.Key(userText)]
	return ok
}

// Display returns the display form for user text, if it resolves.
func (m AliasMap) Display(userText string) (string, bool) {
	key := canon.Key(userText)
	if key == "" {
		return "", false
	}
	if e, ok := m.entries[key]; ok {
		return e.Display, true
	}
	if e, ok := m.containing(key); ok {
		return e.Display, true
	}
	return "", false
}

func (m AliasMap) containing(key string) (AliasEntry, bool) {
	parts := strings.Fields(key)
	for _, k := range m.keys {
		if containsAll(k, parts) {
			return m.entries[k], true
		}
	}
	return AliasEntry{}, false
}

func containsAll(s string, parts []string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}

// Keys returns the canonical keys in sorted order.
func (m AliasMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Displays returns every display form, ordered by key.
func (m AliasMap) Displays() []string {
	out := make([]string, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.entries[k].Display)
	}
	return out
}

// Values returns every raw variant, ordered by key then variant.
func (m AliasMap) Values() []string {
	var out []string
	for _, k := range m.keys {
		out = append(out, m.entries[k].Variants...)
	}
	return out
}

// Len returns the number of canonical keys.
func (m AliasMap) Len() int {
	return len(m.keys)
}
