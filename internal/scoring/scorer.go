package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sells-group/hitrate-cli/internal/model"
)

// Direction tags whether a driver raised, lowered or did not move the score.
type Direction string

const (
	Positive Direction = "positive"
	Negative Direction = "negative"
	Neutral  Direction = "neutral"
)

// Driver is one "why this score" explanation.
type Driver struct {
	Description string    `json:"description"`
	Direction   Direction `json:"direction"`
	Points      float64   `json:"points"`
}

// Result is the output of a single scoring call.
type Result struct {
	Score   float64  `json:"score"`
	Drivers []Driver `json:"drivers"`
}

// Scorer applies a fixed set of weights. It holds no mutable state and is
// safe for concurrent use.
type Scorer struct {
	w        Weights
	ratings  map[model.Rating]float64
	brands   map[string]struct{}
	keywords []string
}

// New validates the weights and returns a Scorer.
func New(w Weights) (*Scorer, error) {
	if err := ValidateWeights(w); err != nil {
		return nil, err
	}

	s := &Scorer{
		w:       w,
		ratings: make(map[model.Rating]float64, len(w.Ratings)),
		brands:  make(map[string]struct{}, len(w.OwnBrands)),
	}
	// Viper lowercases map keys, so grades are matched case-insensitively.
	for grade, pts := range w.Ratings {
		s.ratings[model.Rating(strings.ToUpper(grade))] = pts
	}
	for _, b := range w.OwnBrands {
		s.brands[strings.ToLower(strings.TrimSpace(b))] = struct{}{}
	}
	for _, k := range w.CriticalTypeKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			s.keywords = append(s.keywords, k)
		}
	}
	return s, nil
}

// Weights returns the weights the scorer was built with.
func (s *Scorer) Weights() Weights { return s.w }

// Score rates one piece of equipment. customer is nil when the company has no
// accepted CRM match. asOf supplies the current year for the age bands and
// the reference date for maintenance recency.
func (s *Scorer) Score(eq model.Equipment, customer *model.Customer, asOf time.Time) Result {
	drivers := []Driver{newDriver("Base opportunity", s.w.Base)}
	total := s.w.Base

	// Age.
	if age, ok := eq.Age(asOf.Year()); ok {
		pts, band := s.ageBand(age)
		if pts != 0 {
			drivers = append(drivers, newDriver(fmt.Sprintf("Equipment age %d years (%s)", age, band), pts))
			total += pts
		}
	} else {
		drivers = append(drivers, Driver{
			Description: "Equipment age unknown (no valid installation year)",
			Direction:   Neutral,
		})
	}

	// Critical type.
	if s.w.CriticalType != 0 && s.isCritical(eq) {
		drivers = append(drivers, newDriver(fmt.Sprintf("Critical equipment type: %s", eq.DisplayType()), s.w.CriticalType))
		total += s.w.CriticalType
	}

	// Own brand.
	if s.w.OwnBrand != 0 && s.isOwnBrand(eq.Manufacturer) {
		drivers = append(drivers, newDriver(fmt.Sprintf("Installed by %s (existing relationship)", strings.TrimSpace(eq.Manufacturer)), s.w.OwnBrand))
		total += s.w.OwnBrand
	}

	// Maintenance recency.
	if eq.LastMaintenance != nil {
		months := monthsBetween(*eq.LastMaintenance, asOf)
		var pts float64
		switch {
		case months > 24:
			pts = s.w.MaintenanceOver24
		case months >= 12:
			pts = s.w.MaintenanceOver12
		}
		if pts != 0 {
			drivers = append(drivers, newDriver(fmt.Sprintf("Last maintenance %d months ago", months), pts))
			total += pts
		}
	}

	// Customer rating.
	if customer != nil && customer.Rating != model.RatingUnknown {
		if pts := s.ratings[customer.Rating]; pts != 0 {
			drivers = append(drivers, newDriver(fmt.Sprintf("Customer rating %s", customer.Rating), pts))
			total += pts
		}
	}

	return Result{Score: clamp(total), Drivers: drivers}
}

func (s *Scorer) ageBand(age int) (float64, string) {
	switch {
	case age > 20:
		return s.w.AgeOver20, "over 20"
	case age > 15:
		return s.w.AgeOver15, "16-20"
	case age > 10:
		return s.w.AgeOver10, "11-15"
	default:
		return s.w.AgeUpTo10, "10 or less"
	}
}

func (s *Scorer) isCritical(eq model.Equipment) bool {
	text := strings.ToLower(string(eq.Type) + " " + eq.TypeLabel)
	for _, k := range s.keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func (s *Scorer) isOwnBrand(manufacturer string) bool {
	m := strings.ToLower(strings.Join(strings.Fields(manufacturer), " "))
	if m == "" {
		return false
	}
	_, ok := s.brands[m]
	return ok
}

func newDriver(desc string, pts float64) Driver {
	d := Driver{Description: desc, Points: pts, Direction: Neutral}
	switch {
	case pts > 0:
		d.Direction = Positive
	case pts < 0:
		d.Direction = Negative
	}
	return d
}

// monthsBetween counts whole calendar months from -> to. It is negative when
// from is after to.
func monthsBetween(from, to time.Time) int {
	m := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if m > 0 && to.Day() < from.Day() {
		m--
	}
	return m
}

func clamp(v float64) float64 {
	v = math.Max(0, math.Min(100, v))
	return math.Round(v*100) / 100
}
