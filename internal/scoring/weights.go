// Package scoring computes the heuristic hit-rate score of installed-base
// equipment.
package scoring

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/hitrate-cli/internal/model"
)

// Weights holds every tunable constant of the scorer. Points are added to
// Base and the sum is clamped to [0, 100].
type Weights struct {
	Base float64 `yaml:"base"`

	// Age bands: over 20 years, over 15 up to 20, over 10 up to 15, and 10
	// or less. AgeUpTo10 may be negative.
	AgeOver20 float64 `yaml:"age_over_20"`
	AgeOver15 float64 `yaml:"age_over_15"`
	AgeOver10 float64 `yaml:"age_over_10"`
	AgeUpTo10 float64 `yaml:"age_up_to_10"`

	CriticalType         float64  `yaml:"critical_type"`
	CriticalTypeKeywords []string `yaml:"critical_type_keywords"`

	OwnBrand  float64  `yaml:"own_brand"`
	OwnBrands []string `yaml:"own_brands"`

	// Months since last maintenance: over 24, and 12 to 24.
	MaintenanceOver24 float64 `yaml:"maintenance_over_24"`
	MaintenanceOver12 float64 `yaml:"maintenance_over_12"`

	// Ratings maps a CRM grade (A-E) to its adjustment.
	Ratings map[string]float64 `yaml:"ratings"`
}

// DefaultWeights returns the standard hit-rate weights.
func DefaultWeights() Weights {
	return Weights{
		Base: 40,

		AgeOver20: 35,
		AgeOver15: 25,
		AgeOver10: 15,
		AgeUpTo10: 0,

		CriticalType:         10,
		CriticalTypeKeywords: []string{"furnace", "blast", "arc", "casting", "caster", "rolling"},

		OwnBrand:  10,
		OwnBrands: []string{"SMS", "SMS group"},

		MaintenanceOver24: 10,
		MaintenanceOver12: 5,

		Ratings: map[string]float64{
			"A": 15,
			"B": 10,
			"C": 0,
			"D": -10,
			"E": -15,
		},
	}
}

// LoadWeights reads a YAML weights file. Keys missing from the file keep
// their default values.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()
	if path == "" {
		return w, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, eris.Wrapf(err, "scoring: read weights %s", path)
	}

	// The file has a top-level "weights" key.
	wrapper := struct {
		Weights *Weights `yaml:"weights"`
	}{Weights: &w}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Weights{}, eris.Wrap(err, "scoring: parse weights")
	}

	if err := ValidateWeights(w); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// ValidateWeights checks that a Weights value is internally consistent.
func ValidateWeights(w Weights) error {
	var errs []string

	if w.Base < 0 || w.Base > 100 {
		errs = append(errs, "base must be between 0 and 100")
	}

	bands := map[string]float64{
		"age_over_20":         w.AgeOver20,
		"age_over_15":         w.AgeOver15,
		"age_over_10":         w.AgeOver10,
		"critical_type":       w.CriticalType,
		"own_brand":           w.OwnBrand,
		"maintenance_over_24": w.MaintenanceOver24,
		"maintenance_over_12": w.MaintenanceOver12,
	}
	for name, v := range bands {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	if w.CriticalType > 0 && len(w.CriticalTypeKeywords) == 0 {
		errs = append(errs, "critical_type_keywords must not be empty when critical_type is set")
	}
	if w.OwnBrand > 0 && len(w.OwnBrands) == 0 {
		errs = append(errs, "own_brands must not be empty when own_brand is set")
	}

	for grade := range w.Ratings {
		if !knownRating(grade) {
			errs = append(errs, fmt.Sprintf("unknown rating %q", grade))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scoring: weights validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func knownRating(grade string) bool {
	for _, r := range model.Ratings {
		if strings.EqualFold(string(r), grade) {
			return true
		}
	}
	return false
}
