// Package resolve turns a free-text request into structured filters.
//
// Subjects and programmes are found by fuzzy classification of the query's
// n-grams against the value catalog. Everything with a fixed vocabulary
// (CGPA comparisons, gender, graduation and enrolment status, country,
// cohort) is found by pattern extraction. Terms that match nothing are
// dropped, never guessed.
package resolve

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/planq/internal/canon"
	"github.com/roach88/planq/internal/queryir"
	"github.com/roach88/planq/internal/valueindex"
)

// Entities is everything extracted from one request.
type Entities struct {
	Query     string                      `json:"query"`
	TableHint string                      `json:"table_hint,omitempty"`
	Subject   string                      `json:"subject,omitempty"`
	Filters   map[string]any              `json:"filters"`
	Operators map[string]queryir.Operator `json:"operators"`
	Ambiguous []Classification            `json:"ambiguous,omitempty"`
	// Unresolved notes request fragments that looked meaningful but could
	// not be mapped to a filter.
	Unresolved []string `json:"unresolved,omitempty"`
}

// NeedsDisambiguation reports whether the caller should ask the user to
// choose between candidates before planning.
func (e Entities) NeedsDisambiguation() bool {
	return len(e.Ambiguous) > 0
}

// Resolver extracts Entities using a value catalog.
type Resolver struct {
	catalog    *valueindex.Catalog
	classifier *Classifier
	logger     *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithThreshold sets the minimum similarity for a subject or programme match.
func WithThreshold(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.classifier.Threshold = n
		}
	}
}

// WithGap sets the score lead one side needs over the other.
func WithGap(n int) Option {
	return func(r *Resolver) {
		if n >= 0 {
			r.classifier.Gap = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Resolver over the catalog.
func New(catalog *valueindex.Catalog, opts ...Option) *Resolver {
	r := &Resolver{
		catalog:    catalog,
		classifier: NewClassifier(catalog.Subjects(), catalog.Programmes()),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Classifier exposes the resolver's classifier.
func (r *Resolver) Classifier() *Classifier {
	return r.classifier
}

// resolution tracks which phrase filled each slot.
type resolution struct {
	ent         *Entities
	skipSubject bool
	subjectSrc  string
	progSrc     string
}

// Resolve extracts entities from a query and the raw terms an upstream
// classifier pulled out of it. Query phrases are tried before raw terms.
func (r *Resolver) Resolve(query string, rawTerms []string) Entities {
	ent := Entities{
		Query:     query,
		Filters:   make(map[string]any),
		Operators: make(map[string]queryir.Operator),
	}
	lower := strings.ToLower(canon.CleanOr(query))
	tokens := canon.Tokens(query)

	ent.TableHint = tableHint(tokens)
	res := &resolution{
		ent: &ent,
		// Cohort questions are about students, not subjects.
		skipSubject: hasWord(tokens, "cohort") && !hasAny(tokens, gradeWords),
	}

	consumed := make(map[int]bool)
	if country, span, ok := extractCountry(query, r.catalog.Countries()); ok {
		ent.Filters["country"] = country
		for _, i := range span {
			consumed[i] = true
		}
	}

	for _, p := range phrases(tokens, isReserved) {
		if res.subjectSrc != "" && res.progSrc != "" {
			break
		}
		if overlaps(p, consumed) {
			continue
		}
		if r.apply(res, r.classifier.Classify(p.text)) {
			for i := p.start; i < p.end; i++ {
				consumed[i] = true
			}
		}
	}
	for _, term := range rawTerms {
		if canon.Key(term) == "" {
			continue
		}
		r.apply(res, r.classifier.Classify(term))
	}
	r.settleConflict(res)

	r.extractPatterns(&ent, lower, tokens)

	if ent.TableHint == "" {
		switch {
		case ent.Subject != "":
			ent.TableHint = "subjects"
		case len(ent.Filters) > 0:
			ent.TableHint = "students"
		}
	}

	r.logger.Debug("entities resolved",
		zap.String("query", query),
		zap.String("table_hint", ent.TableHint),
		zap.String("subject", ent.Subject),
		zap.Any("filters", ent.Filters),
		zap.Int("ambiguous", len(ent.Ambiguous)))
	return ent
}

// apply records one classification. It reports whether the phrase was
// claimed, so overlapping shorter phrases are not classified again.
func (r *Resolver) apply(res *resolution, cls Classification) bool {
	disp := cls.Disposition
	if disp == Ambiguous {
		exactSubject := r.catalog.Subjects().Exact(cls.Term)
		exactProgramme := r.catalog.Programmes().Exact(cls.Term)
		switch {
		case exactSubject && !exactProgramme:
			disp = Subject
		case exactProgramme && !exactSubject:
			disp = Programme
		case res.skipSubject && cls.ProgrammeScore >= r.classifier.Threshold:
			disp = Programme
		}
	}

	ent := res.ent
	switch disp {
	case Subject:
		if res.skipSubject {
			return false
		}
		if ent.Subject == "" {
			ent.Subject = cls.Subject
			res.subjectSrc = canon.Key(cls.Term)
			r.logger.Debug("subject matched", zap.String("term", cls.Term), zap.String("subject", cls.Subject), zap.Int("score", cls.SubjectScore))
		}
		return true
	case Programme:
		if _, set := ent.Filters["programme"]; !set {
			ent.Filters["programme"] = cls.Programme
			res.progSrc = canon.Key(cls.Term)
			r.logger.Debug("programme matched", zap.String("term", cls.Term), zap.String("programme", cls.Programme), zap.Int("score", cls.ProgrammeScore))
		}
		return true
	case Ambiguous:
		ent.Ambiguous = append(ent.Ambiguous, cls)
		r.logger.Debug("ambiguous term", zap.String("term", cls.Term),
			zap.Int("subject_score", cls.SubjectScore), zap.Int("programme_score", cls.ProgrammeScore))
		return true
	}
	return false
}

// settleConflict handles one phrase filling both the programme and the
// subject: the side where the phrase is an exact alias key wins. When
// neither or both are exact the user has to choose.
func (r *Resolver) settleConflict(res *resolution) {
	if res.subjectSrc == "" || res.subjectSrc != res.progSrc {
		return
	}
	ent := res.ent
	exactSubject := r.catalog.Subjects().Exact(res.subjectSrc)
	exactProgramme := r.catalog.Programmes().Exact(res.progSrc)
	switch {
	case exactSubject && !exactProgramme:
		delete(ent.Filters, "programme")
	case exactProgramme && !exactSubject:
		ent.Subject = ""
	default:
		ent.Ambiguous = append(ent.Ambiguous, Classification{
			Term:           res.subjectSrc,
			Disposition:    Ambiguous,
			Subject:        ent.Subject,
			Programme:      fmt.Sprint(ent.Filters["programme"]),
			SubjectScore:   100,
			ProgrammeScore: 100,
		})
		ent.Subject = ""
		delete(ent.Filters, "programme")
	}
}

func (r *Resolver) extractPatterns(ent *Entities, lower string, tokens []string) {
	if op, v, ok := extractCGPA(lower); ok {
		ent.Filters["overallcgpa"] = v
		ent.Operators["overallcgpa"] = op
	}

	graduated, hasGrad := extractGraduation(lower, tokens)
	if hasGrad {
		ent.Filters["graduated"] = graduated
	}
	if (!hasGrad || !graduated) && mentionsActive(lower, tokens) {
		if active := r.catalog.ActiveStatuses(); len(active) > 0 {
			ent.Filters["status"] = active
			ent.Operators["status"] = queryir.OpIN
		} else {
			ent.Unresolved = append(ent.Unresolved, "active status: no active status codes known")
		}
	}

	if g, ok := extractGender(tokens); ok {
		ent.Filters["gender"] = g
	}
	if g, ok := extractGrade(lower); ok {
		ent.Filters["grade"] = g
	}

	code, month := extractCohort(lower, tokens)
	switch {
	case code != "":
		ent.Filters["cohort"] = code
	case month != "":
		ent.Unresolved = append(ent.Unresolved, fmt.Sprintf("cohort month %q has no year", month))
	}
}

func overlaps(p phrase, consumed map[int]bool) bool {
	for i := p.start; i < p.end; i++ {
		if consumed[i] {
			return true
		}
	}
	return false
}
