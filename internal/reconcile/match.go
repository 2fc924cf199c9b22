// Package reconcile maps company names from the equipment inventory onto CRM
// account names by token-sort similarity, with optional escalation of
// borderline pairs to an external adjudicator.
package reconcile

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// Tier is the confidence band of a similarity score.
type Tier string

const (
	// TierNone marks names that were never compared (empty name or no
	// candidates).
	TierNone      Tier = ""
	TierExcellent Tier = "Excellent"
	TierGood      Tier = "Good"
	TierOkay      Tier = "Okay"
	TierPoor      Tier = "Poor"
)

// Tiers lists the comparison tiers from best to worst.
var Tiers = []Tier{TierExcellent, TierGood, TierOkay, TierPoor}

// ParseTier is case-insensitive and returns TierNone for unknown input.
func ParseTier(s string) Tier {
	for _, t := range Tiers {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t
		}
	}
	return TierNone
}

// Status is the final disposition of a name.
type Status string

const (
	StatusMatched   Status = "matched"
	StatusUnmatched Status = "unmatched"
	StatusRejected  Status = "rejected"
)

// Outcome records what happened when a pair was escalated.
type Outcome string

const (
	OutcomeNotEscalated Outcome = "not_escalated"
	OutcomeConfirmed    Outcome = "confirmed"
	OutcomeRejected     Outcome = "rejected"
	OutcomeUnavailable  Outcome = "unavailable"
)

// Unmatched reasons.
const (
	ReasonMissingName   = "missing name"
	ReasonNoCandidates  = "no candidates"
	ReasonLowConfidence = "low confidence"
	ReasonAdjudicated   = "rejected by adjudicator"
)

// Match is the mapping entry for one distinct source-A name. Candidate is the
// best source-B name even when it was not accepted; SourceB is set only when
// Status is matched.
type Match struct {
	SourceA      string  `json:"source_a"`
	SourceB      string  `json:"source_b,omitempty"`
	Candidate    string  `json:"candidate,omitempty"`
	Score        float64 `json:"score"`
	Tier         Tier    `json:"tier,omitempty"`
	Status       Status  `json:"status"`
	Reason       string  `json:"reason,omitempty"`
	Adjudication Outcome `json:"adjudication"`
	Explanation  string  `json:"explanation,omitempty"`
}

// Accepted reports whether the name links to a CRM account.
func (m Match) Accepted() bool { return m.Status == StatusMatched }

// Attempted reports whether the name was compared against at least one
// candidate.
func (m Match) Attempted() bool { return m.Tier != TierNone }

// Request is one borderline pair sent for adjudication.
type Request struct {
	NameA    string            `json:"name_a"`
	NameB    string            `json:"name_b"`
	Score    float64           `json:"score"`
	Tier     Tier              `json:"tier"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Verdict is the adjudicator's decision on a pair.
type Verdict struct {
	Match       bool   `json:"match"`
	Explanation string `json:"explanation,omitempty"`
	// Source names the system that produced the verdict (model name, "cache").
	Source string `json:"source,omitempty"`
}

// Adjudicator decides whether two names denote the same organization.
type Adjudicator interface {
	Adjudicate(ctx context.Context, req Request) (Verdict, error)
}

// ErrAdjudicationUnavailable is wrapped by adjudicators when no verdict could
// be obtained. The reconciler treats any adjudication error the same way.
var ErrAdjudicationUnavailable = eris.New("reconcile: adjudication unavailable")

// MetadataFunc supplies context (country, region...) for an escalated pair.
type MetadataFunc func(nameA, nameB string) map[string]string
