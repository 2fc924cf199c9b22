package resolve

import (
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

// indelParams prices a substitution as a deletion plus an insertion, which
// turns the Levenshtein distance into the indel distance.
var indelParams = levenshtein.NewParams().SubCost(2)

// Ratio returns the normalized indel similarity of two strings on a 0-100
// scale: 100 × (1 − indel / (len(a)+len(b))), lengths in runes. Identical
// non-empty strings score exactly 100; an empty side scores 0.
func Ratio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}
	if a == b {
		return 100
	}
	dist := levenshtein.Distance(a, b, indelParams)
	return 100 * (1 - float64(dist)/float64(la+lb))
}

// TokenSortRatio compares two raw names after normalization and token
// sorting, so "Acme Steel GmbH" and "GmbH Acme Steel" score 100.
func TokenSortRatio(a, b string) float64 {
	return Ratio(MatchKey(a, false), MatchKey(b, false))
}
