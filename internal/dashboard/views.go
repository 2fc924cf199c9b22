package dashboard

import (
	"math"
	"sort"

	"github.com/sells-group/hitrate-cli/internal/model"
)

// Score bands used by the summary.
const (
	HighScore   = 70.0
	MediumScore = 50.0
)

// FilterOptions are the distinct values offered by the filter dropdowns.
type FilterOptions struct {
	Countries []string              `json:"countries"`
	Regions   []string              `json:"regions"`
	Types     []model.EquipmentType `json:"types"`
	Companies []string              `json:"companies"`
}

// Options lists the distinct, sorted non-empty values of snap. Types keep
// their canonical order.
func Options(snap *model.Snapshot) FilterOptions {
	countries := map[string]struct{}{}
	regions := map[string]struct{}{}
	companies := map[string]struct{}{}
	types := map[model.EquipmentType]struct{}{}

	for _, eq := range snap.Equipment {
		add(countries, eq.Country)
		add(regions, eq.Region)
		add(companies, eq.Company)
		types[eq.Type] = struct{}{}
	}

	opts := FilterOptions{
		Countries: sortedKeys(countries),
		Regions:   sortedKeys(regions),
		Companies: sortedKeys(companies),
		Types:     []model.EquipmentType{},
	}
	for _, t := range model.EquipmentTypes {
		if _, ok := types[t]; ok {
			opts.Types = append(opts.Types, t)
		}
	}
	return opts
}

func add(set map[string]struct{}, v string) {
	if v != "" {
		set[v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Summary aggregates scores for the analytics header.
type Summary struct {
	Count   int     `json:"count"`
	Matched int     `json:"matched"`
	Average float64 `json:"average"`
	High    int     `json:"high"`
	Medium  int     `json:"medium"`
	Low     int     `json:"low"`
}

// Summarize counts rows per score band: high is 70 and above, medium 50 up
// to 70, low below 50.
func Summarize(rows []Row) Summary {
	var s Summary
	var total float64
	for _, r := range rows {
		s.Count++
		total += r.Score
		if r.Customer != nil {
			s.Matched++
		}
		switch {
		case r.Score >= HighScore:
			s.High++
		case r.Score >= MediumScore:
			s.Medium++
		default:
			s.Low++
		}
	}
	if s.Count > 0 {
		s.Average = math.Round(total/float64(s.Count)*100) / 100
	}
	return s
}

// Company is the per-company roll-up of its equipment.
type Company struct {
	Company      string       `json:"company"`
	Customer     string       `json:"customer,omitempty"`
	Rating       model.Rating `json:"rating,omitempty"`
	Equipment    int          `json:"equipment"`
	Types        []string     `json:"types"`
	OldestAge    *int         `json:"oldest_age,omitempty"`
	NewestAge    *int         `json:"newest_age,omitempty"`
	BestScore    float64      `json:"best_score"`
	AverageScore float64      `json:"average_score"`
}

// Companies groups rows by company, ordered by best score then name.
func Companies(rows []Row) []Company {
	byName := map[string]*Company{}
	types := map[string]map[string]struct{}{}
	totals := map[string]float64{}
	var order []string

	for _, r := range rows {
		name := r.Equipment.Company
		c, ok := byName[name]
		if !ok {
			c = &Company{Company: name}
			byName[name] = c
			types[name] = map[string]struct{}{}
			order = append(order, name)
		}
		if r.Customer != nil && c.Customer == "" {
			c.Customer = r.Customer.Name
			c.Rating = r.Customer.Rating
		}
		if c.Equipment == 0 || r.Score > c.BestScore {
			c.BestScore = r.Score
		}
		c.Equipment++
		totals[name] += r.Score
		types[name][r.Equipment.DisplayType()] = struct{}{}

		if r.Age != nil {
			if c.OldestAge == nil || *r.Age > *c.OldestAge {
				c.OldestAge = intPtr(*r.Age)
			}
			if c.NewestAge == nil || *r.Age < *c.NewestAge {
				c.NewestAge = intPtr(*r.Age)
			}
		}
	}

	out := make([]Company, 0, len(order))
	for _, name := range order {
		c := byName[name]
		c.Types = sortedKeys(types[name])
		c.AverageScore = math.Round(totals[name]/float64(c.Equipment)*100) / 100
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BestScore != out[j].BestScore {
			return out[i].BestScore > out[j].BestScore
		}
		return out[i].Company < out[j].Company
	})
	return out
}

func intPtr(v int) *int { return &v }
