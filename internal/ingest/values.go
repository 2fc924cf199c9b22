package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	minYear = 1800
	maxYear = 2200

	// Excel serials are days since 1899-12-30 (the 1900 leap-year bug is
	// absorbed by the epoch). 2958465 is 9999-12-31.
	maxExcelSerial = 2958465
)

var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02.01.2006",
	"2.1.2006",
	"02.01.06",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"Jan 2006",
	"January 2006",
	"01-2006",
	"2006-01",
}

// ParseDate accepts ISO, German (dd.mm.yyyy) and US (mm/dd/yyyy) dates and
// Excel serial day numbers. A bare year is not a date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 1 || f > maxExcelSerial || isBareYear(s) {
			return time.Time{}, false
		}
		return excelSerial(f), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseYear accepts "1998", "1998.0", any ParseDate input and Excel serials.
// Years outside 1800-2200 are rejected.
func ParseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f == math.Trunc(f) && f >= minYear && f <= maxYear {
			return int(f), true
		}
		// Small integers are mistyped years, not serials from 1900-1927.
		if f < 10000 || f > maxExcelSerial {
			return 0, false
		}
		return validYear(excelSerial(f).Year())
	}
	if t, ok := ParseDate(s); ok {
		return validYear(t.Year())
	}
	return 0, false
}

// ParseFloat accepts thousands separators in either convention:
// "1,234.5", "1.234,5", "1 234" and "12,5" all parse.
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(" ", "", "\u00a0", "", "'", "").Replace(s)
	if s == "" {
		return 0, false
	}

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		// A single comma followed by exactly three digits is a thousands
		// separator; otherwise it is the decimal mark.
		if strings.Count(s, ",") > 1 || len(s)-comma-1 == 3 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseInt parses like ParseFloat and rounds to the nearest integer.
func ParseInt(s string) (int, bool) {
	f, ok := ParseFloat(s)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

func excelSerial(days float64) time.Time {
	whole := math.Floor(days)
	frac := days - whole
	t := excelEpoch.AddDate(0, 0, int(whole))
	return t.Add(time.Duration(frac * 24 * float64(time.Hour))).Truncate(time.Second)
}

func isBareYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	n, err := strconv.Atoi(s)
	return err == nil && n >= minYear && n <= maxYear
}

func validYear(y int) (int, bool) {
	if y < minYear || y > maxYear {
		return 0, false
	}
	return y, true
}
