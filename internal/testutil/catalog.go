package testutil

import (
	"github.com/roach88/planq/internal/valueindex"
)

// Subjects is the fixture subject vocabulary, with the messy spellings the
// store really holds.
var Subjects = []string{
	"Database Fundamentals",
	"DATABASE FUNDAMENTALS",
	"database_fundamentals",
	"Computer Security",
	"Software Engineering",
	"Data Structures and Algorithms",
	"Calculus",
	"Malaysian Studies",
}

// Programmes is the fixture programme vocabulary.
var Programmes = []string{
	"Bachelor of Science (Honours) in Computer Science",
	"Bachelor of Software Engineering (Honours)",
	"Bachelor of Science (Honours) in Information Technology",
}

// Catalog returns a small value catalog for tests.
func Catalog() *valueindex.Catalog {
	return valueindex.NewCatalog(map[valueindex.Family][]string{
		valueindex.FamilySubject:      Subjects,
		valueindex.FamilyProgramme:    Programmes,
		valueindex.FamilyCountry:      {"Malaysia", "MALAYSIA", "Singapore", "United Kingdom"},
		valueindex.FamilyRace:         {"Chinese", "Malay", "Indian"},
		valueindex.FamilyFinancialAid: {"Scholarship", "PTPTN"},
	}, []string{"RP", "RP2"})
}
