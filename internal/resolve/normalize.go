// Package resolve normalizes free-text company names and scores how similar
// two names are, independent of token order.
package resolve

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalForms lists legal-entity tokens (after normalization) that can be
// dropped with StripLegalForms. Dotted forms like "S.A." normalize to "SA".
var legalForms = map[string]struct{}{
	"AB": {}, "AG": {}, "AS": {}, "BV": {}, "CO": {}, "CORP": {},
	"CORPORATION": {}, "GMBH": {}, "INC": {}, "INCORPORATED": {},
	"JSC": {}, "KG": {}, "KGAA": {}, "LLC": {}, "LLP": {}, "LP": {},
	"LTD": {}, "LIMITED": {}, "NV": {}, "OAO": {}, "OJSC": {}, "OY": {},
	"PAO": {}, "PJSC": {}, "PLC": {}, "SA": {}, "SAS": {}, "SE": {},
	"SPA": {}, "SRL": {}, "ZAO": {},
}

var punctuation = strings.NewReplacer(
	",", "",
	".", "",
	"'", "",
	"\"", "",
	"ß", "SS",
	"ẞ", "SS",
	"&", " AND ",
	"+", " AND ",
	"-", " ",
	"/", " ",
	"(", " ",
	")", " ",
)

// NormalizeName standardizes a company name for matching:
//  1. folds diacritics (Ö → O, é → E)
//  2. converts to uppercase
//  3. removes dots, commas and quotes, spells out "&" as AND
//  4. turns any other non-alphanumeric rune into a space
//  5. collapses whitespace
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	// transform.Chain keeps state, so it is built per call.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, name); err == nil {
		name = folded
	}

	name = punctuation.Replace(strings.ToUpper(name))
	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, name)

	return strings.Join(strings.Fields(name), " ")
}

// StripLegalForms drops legal-entity tokens from a normalized name. A name
// made only of such tokens is returned unchanged.
func StripLegalForms(normalized string) string {
	tokens := strings.Fields(normalized)
	kept := tokens[:0:0]
	for _, tok := range tokens {
		if _, ok := legalForms[tok]; ok {
			continue
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		return normalized
	}
	return strings.Join(kept, " ")
}

// TokenSort sorts the whitespace-separated tokens of s and joins them with a
// single space.
func TokenSort(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// MatchKey is the comparison form of a name: normalized, optionally without
// legal forms, tokens sorted.
func MatchKey(name string, stripLegal bool) string {
	n := NormalizeName(name)
	if stripLegal {
		n = StripLegalForms(n)
	}
	return TokenSort(n)
}
