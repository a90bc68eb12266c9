package valueindex

import (
	"sort"
	"strings"
)

// Family names a column whose values are reconciled through an AliasMap.
type Family string

const (
	FamilySubject      Family = "subject"
	FamilyProgramme    Family = "programme"
	FamilyCountry      Family = "country"
	FamilyRace         Family = "race"
	FamilyFinancialAid Family = "financialaid"
)

// Families lists every family in load order.
var Families = []Family{FamilySubject, FamilyProgramme, FamilyCountry, FamilyRace, FamilyFinancialAid}

// Column is where a family's values live in the store.
type Column struct {
	Table  string
	Column string
}

// FamilyColumns maps each family to its source column.
var FamilyColumns = map[Family]Column{
	FamilySubject:      {Table: "subjects", Column: "subjectname"},
	FamilyProgramme:    {Table: "students", Column: "programme"},
	FamilyCountry:      {Table: "students", Column: "country"},
	FamilyRace:         {Table: "students", Column: "race"},
	FamilyFinancialAid: {Table: "students", Column: "financialaid"},
}

// StatusColumn is scanned to discover the active status codes.
var StatusColumn = Column{Table: "students", Column: "status"}

// ParseFamily accepts a family name or its source column name.
func ParseFamily(s string) (Family, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, f := range Families {
		if string(f) == s || FamilyColumns[f].Column == s {
			return f, true
		}
	}
	return "", false
}

// Source records where a family's values came from.
type Source string

const (
	SourceLive     Source = "live"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

// Catalog is the full set of alias maps plus the active status vocabulary.
// It is read-only once built.
type Catalog struct {
	maps           map[Family]AliasMap
	activeStatuses []string

	// Degraded lists families that did not come from a live snapshot.
	Degraded map[Family]Source
}

// NewCatalog builds a catalog directly from raw value lists.
func NewCatalog(values map[Family][]string, activeStatuses []string) *Catalog {
	c := &Catalog{
		maps:     make(map[Family]AliasMap, len(Families)),
		Degraded: make(map[Family]Source),
	}
	for _, f := range Families {
		c.maps[f] = Build(values[f])
	}
	c.activeStatuses = normalizeStatuses(activeStatuses)
	return c
}

// Map returns the alias map for a family. Unknown families yield an empty map.
func (c *Catalog) Map(f Family) AliasMap {
	if c == nil {
		return AliasMap{}
	}
	return c.maps[f]
}

func (c *Catalog) Subjects() AliasMap   { return c.Map(FamilySubject) }
func (c *Catalog) Programmes() AliasMap { return c.Map(FamilyProgramme) }
func (c *Catalog) Countries() AliasMap  { return c.Map(FamilyCountry) }

// ActiveStatuses returns the status codes that mean "currently active".
func (c *Catalog) ActiveStatuses() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.activeStatuses...)
}

// IsDegraded reports whether any family came from cache or fallback.
func (c *Catalog) IsDegraded() bool {
	return c != nil && len(c.Degraded) > 0
}

// Stats reports key counts per family.
func (c *Catalog) Stats() map[Family]int {
	out := make(map[Family]int, len(Families))
	for _, f := range Families {
		out[f] = c.Map(f).Len()
	}
	return out
}

// FilterActive picks the statuses that start with one of the prefixes.
func FilterActive(statuses, prefixes []string) []string {
	var out []string
	for _, s := range statuses {
		up := strings.ToUpper(strings.TrimSpace(s))
		for _, p := range prefixes {
			if p != "" && strings.HasPrefix(up, strings.ToUpper(p)) {
				out = append(out, up)
				break
			}
		}
	}
	return normalizeStatuses(out)
}

func normalizeStatuses(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
