package valueindex

import (
	_ "embed"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

//go:embed fallback.yaml
var defaultFallback []byte

// Fallback is the static vocabulary used when no snapshot is available.
type Fallback struct {
	Subject        []string `yaml:"subject"`
	Programme      []string `yaml:"programme"`
	Country        []string `yaml:"country"`
	Race           []string `yaml:"race"`
	FinancialAid   []string `yaml:"financialaid"`
	ActiveStatuses []string `yaml:"active_statuses"`
}

// Values returns the list for one family.
func (f *Fallback) Values(family Family) []string {
	switch family {
	case FamilySubject:
		return f.Subject
	case FamilyProgramme:
		return f.Programme
	case FamilyCountry:
		return f.Country
	case FamilyRace:
		return f.Race
	case FamilyFinancialAid:
		return f.FinancialAid
	}
	return nil
}

// LoadFallback reads a fallback file. An empty path loads the built-in list.
func LoadFallback(path string) (*Fallback, error) {
	data := defaultFallback
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read fallback catalog %s", path)
		}
		data = b
	}
	return ParseFallback(data)
}

// ParseFallback decodes fallback YAML.
func ParseFallback(data []byte) (*Fallback, error) {
	var fb Fallback
	if err := yaml.Unmarshal(data, &fb); err != nil {
		return nil, errors.Wrap(err, "parse fallback catalog")
	}
	return &fb, nil
}
