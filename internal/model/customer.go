package model

import (
	"strconv"
	"strings"
)

// Rating is the five-level CRM relationship grade. A is the best tier.
type Rating string

const (
	RatingUnknown Rating = ""
	RatingA       Rating = "A"
	RatingB       Rating = "B"
	RatingC       Rating = "C"
	RatingD       Rating = "D"
	RatingE       Rating = "E"
)

// Ratings lists the known grades from best to worst.
var Ratings = []Rating{RatingA, RatingB, RatingC, RatingD, RatingE}

// ParseRating accepts a letter grade, a Salesforce Account rating
// (Hot/Warm/Cold) or a win probability in percent.
func ParseRating(raw string) Rating {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch s {
	case "":
		return RatingUnknown
	case "A", "A+", "A-":
		return RatingA
	case "B", "B+", "B-":
		return RatingB
	case "C", "C+", "C-":
		return RatingC
	case "D", "D+", "D-":
		return RatingD
	case "E", "E+", "E-":
		return RatingE
	case "HOT":
		return RatingA
	case "WARM":
		return RatingC
	case "COLD":
		return RatingE
	}

	p, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return RatingUnknown
	}
	return RatingFromProbability(p)
}

// RatingFromProbability buckets a win probability (0-100) into a grade.
// Bands: up to 25 D, up to 50 C, up to 75 B, above A.
func RatingFromProbability(p float64) Rating {
	switch {
	case p < 0 || p > 100:
		return RatingUnknown
	case p <= 25:
		return RatingD
	case p <= 50:
		return RatingC
	case p <= 75:
		return RatingB
	default:
		return RatingA
	}
}

// Customer is one CRM account.
type Customer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Country   string `json:"country,omitempty"`
	Region    string `json:"region,omitempty"`
	Rating    Rating `json:"rating,omitempty"`
	Employees *int   `json:"employees,omitempty"`
	Executive string `json:"executive,omitempty"`
}
