package reconcile

// TierStat is the share of one tier over the attempted names.
type TierStat struct {
	Tier    Tier    `json:"tier"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// QualityReport summarizes a reconciliation pass for display.
type QualityReport struct {
	Total int `json:"total"`
	// Attempted names had at least one candidate; tier percentages are over
	// this population.
	Attempted int `json:"attempted"`
	// NotAttempted names (blank, or no candidates) are the "unmatched"
	// bucket of the quality display.
	NotAttempted int `json:"unmatched"`

	Matched  int `json:"matched"`
	Rejected int `json:"rejected"`

	Tiers        []TierStat      `json:"tiers"`
	Adjudication map[Outcome]int `json:"adjudication"`
}

// Quality counts matches per tier. Percentages sum to 100 when at least one
// name was attempted and are all zero otherwise.
func Quality(matches []Match) QualityReport {
	q := QualityReport{
		Total:        len(matches),
		Adjudication: make(map[Outcome]int),
	}

	counts := make(map[Tier]int, len(Tiers))
	for _, m := range matches {
		if !m.Attempted() {
			q.NotAttempted++
			continue
		}
		q.Attempted++
		counts[m.Tier]++

		switch m.Status {
		case StatusMatched:
			q.Matched++
		case StatusRejected:
			q.Rejected++
		}
		if m.Adjudication != OutcomeNotEscalated && m.Adjudication != "" {
			q.Adjudication[m.Adjudication]++
		}
	}

	q.Tiers = make([]TierStat, len(Tiers))
	for i, t := range Tiers {
		q.Tiers[i] = TierStat{Tier: t, Count: counts[t]}
		if q.Attempted > 0 {
			q.Tiers[i].Percent = 100 * float64(counts[t]) / float64(q.Attempted)
		}
	}
	return q
}

// Percent returns the share of one tier.
func (q QualityReport) Percent(t Tier) float64 {
	for _, s := range q.Tiers {
		if s.Tier == t {
			return s.Percent
		}
	}
	return 0
}
