// Package dashboard joins a snapshot, its name mapping and the scorer into
// the read-only projections shown by the CLI and the HTTP API.
package dashboard

import (
	"sort"
	"strings"
	"time"

	"github.com/sells-group/hitrate-cli/internal/model"
	"github.com/sells-group/hitrate-cli/internal/reconcile"
	"github.com/sells-group/hitrate-cli/internal/scoring"
)

// All is the dropdown value that disables a filter.
const All = "All"

// Row is one scored piece of equipment.
type Row struct {
	Equipment model.Equipment  `json:"equipment"`
	Customer  *model.Customer  `json:"customer,omitempty"`
	Match     reconcile.Match  `json:"match"`
	Age       *int             `json:"age,omitempty"`
	Score     float64          `json:"score"`
	Drivers   []scoring.Driver `json:"drivers"`
}

// Filter narrows the rows. Empty strings and "All" disable a criterion;
// string criteria compare case-insensitively.
type Filter struct {
	Country     string  `json:"country,omitempty"`
	Region      string  `json:"region,omitempty"`
	Type        string  `json:"type,omitempty"`
	Company     string  `json:"company,omitempty"`
	MinScore    float64 `json:"min_score,omitempty"`
	MatchedOnly bool    `json:"matched_only,omitempty"`
}

func (f Filter) keep(r Row) bool {
	eq := r.Equipment
	switch {
	case !matches(f.Country, eq.Country),
		!matches(f.Region, eq.Region),
		!matches(f.Company, eq.Company),
		active(f.Type) && !strings.EqualFold(f.Type, string(eq.Type)) && !strings.EqualFold(f.Type, eq.TypeLabel),
		r.Score < f.MinScore,
		f.MatchedOnly && r.Customer == nil:
		return false
	}
	return true
}

func active(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, All)
}

func matches(want, got string) bool {
	return !active(want) || strings.EqualFold(strings.TrimSpace(want), strings.TrimSpace(got))
}

// Build scores every equipment row of snap, joins it to the customer its
// company was matched to and returns the rows passing f, ordered by score
// (highest first), then company, then ID.
func Build(snap *model.Snapshot, res *reconcile.Result, memo *scoring.Memo, f Filter, asOf time.Time) []Row {
	mapping := map[string]reconcile.Match{}
	if res != nil {
		mapping = res.Mapping()
	}
	customers := customerIndex(snap)

	rows := make([]Row, 0, len(snap.Equipment))
	for _, eq := range snap.Equipment {
		r := Row{Equipment: eq, Match: mapping[eq.Company]}
		if r.Match.Accepted() {
			if c, ok := customers[r.Match.SourceB]; ok {
				r.Customer = &c
			}
		}
		if age, ok := eq.Age(asOf.Year()); ok {
			r.Age = &age
		}

		result := memo.Score(snap.Version, eq, r.Customer, asOf)
		r.Score, r.Drivers = result.Score, result.Drivers

		if f.keep(r) {
			rows = append(rows, r)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Equipment.Company != b.Equipment.Company {
			return a.Equipment.Company < b.Equipment.Company
		}
		return a.Equipment.ID < b.Equipment.ID
	})
	return rows
}

// customerIndex keys customers by exact name; the first occurrence wins.
func customerIndex(snap *model.Snapshot) map[string]model.Customer {
	idx := make(map[string]model.Customer, len(snap.Customers))
	for _, c := range snap.Customers {
		if _, ok := idx[c.Name]; !ok {
			idx[c.Name] = c
		}
	}
	return idx
}
