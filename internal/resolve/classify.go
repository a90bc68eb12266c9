package resolve

import (
	"github.com/roach88/planq/internal/canon"
	"github.com/roach88/planq/internal/valueindex"
)

const (
	DefaultThreshold = 80
	DefaultGap       = 8
)

// Disposition is what a term was classified as.
type Disposition string

const (
	Noise     Disposition = "noise"
	Subject   Disposition = "subject"
	Programme Disposition = "programme"
	Ambiguous Disposition = "ambiguous"
)

// Classification is the outcome of classifying one term. Both best
// candidates and scores are always filled so ambiguous results can be shown
// to the user.
type Classification struct {
	Term           string      `json:"term"`
	Disposition    Disposition `json:"disposition"`
	Subject        string      `json:"subject,omitempty"`
	Programme      string      `json:"programme,omitempty"`
	SubjectScore   int         `json:"subject_score"`
	ProgrammeScore int         `json:"programme_score"`
}

// Classifier decides whether a term names a subject or a programme.
type Classifier struct {
	Threshold int
	Gap       int

	subjects   valueindex.AliasMap
	programmes valueindex.AliasMap
}

// NewClassifier creates a classifier with the default threshold and gap.
func NewClassifier(subjects, programmes valueindex.AliasMap) *Classifier {
	return &Classifier{
		Threshold:  DefaultThreshold,
		Gap:        DefaultGap,
		subjects:   subjects,
		programmes: programmes,
	}
}

// Classify scores the term against every subject and programme.
//
// Below threshold on both sides the term is Noise. A side that leads by
// more than Gap wins. Otherwise the term is Ambiguous and both candidates
// are reported; nothing is picked silently.
func (c *Classifier) Classify(term string) Classification {
	subj, sScore := best(term, c.subjects)
	prog, pScore := best(term, c.programmes)

	out := Classification{
		Term:           term,
		Subject:        subj,
		Programme:      prog,
		SubjectScore:   sScore,
		ProgrammeScore: pScore,
	}
	switch {
	case max(sScore, pScore) < c.Threshold:
		out.Disposition = Noise
	case sScore-pScore > c.Gap:
		out.Disposition = Subject
	case pScore-sScore > c.Gap:
		out.Disposition = Programme
	default:
		out.Disposition = Ambiguous
	}
	return out
}

// best returns the display form of the highest scoring key. Ties keep the
// first key in sorted order.
func best(term string, m valueindex.AliasMap) (string, int) {
	if canon.Key(term) == "" {
		return "", 0
	}
	var (
		bestKey   string
		bestScore = -1
	)
	for _, k := range m.Keys() {
		if s := TokenSetRatio(term, k); s > bestScore {
			bestKey, bestScore = k, s
		}
	}
	if bestScore < 0 {
		return "", 0
	}
	e, _ := m.Lookup(bestKey)
	return e.Display, bestScore
}
