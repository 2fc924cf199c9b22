package ingest

import (
	"go.uber.org/zap"

	"github.com/sells-group/hitrate-cli/internal/metrics"
)

// Reason classifies a dropped row or value.
type Reason string

const (
	// ReasonMissingColumn: a sheet had no required column and was skipped.
	ReasonMissingColumn Reason = "missing_column"
	// ReasonMissingField: a row had no company/account name and was skipped.
	ReasonMissingField    Reason = "missing_field"
	ReasonMalformedDate   Reason = "malformed_date"
	ReasonMalformedNumber Reason = "malformed_number"
	ReasonInvalidLocation Reason = "invalid_location"
	ReasonUnknownRating   Reason = "unknown_rating"
	ReasonMissingSheet    Reason = "missing_sheet"
)

// Issue is one problem found while reading a source. Row is the 1-based
// spreadsheet row, 0 for sheet-level issues.
type Issue struct {
	Source string `json:"source"`
	Sheet  string `json:"sheet,omitempty"`
	Row    int    `json:"row,omitempty"`
	Field  Field  `json:"field,omitempty"`
	Reason Reason `json:"reason"`
	Value  string `json:"value,omitempty"`
}

// Report summarizes one ingestion. Malformed values leave the field unknown
// and keep the row; missing names drop it.
type Report struct {
	Sheets    []string `json:"sheets"`
	Rows      int      `json:"rows"`
	Equipment int      `json:"equipment"`
	Customers int      `json:"customers"`
	Skipped   int      `json:"skipped"`
	Issues    []Issue  `json:"issues,omitempty"`
}

// Counts tallies issues by reason.
func (r *Report) Counts() map[Reason]int {
	out := make(map[Reason]int)
	for _, is := range r.Issues {
		out[is.Reason]++
	}
	return out
}

func (r *Report) add(is Issue) {
	r.Issues = append(r.Issues, is)
	metrics.IngestSkipped.WithLabelValues(string(is.Reason)).Inc()

	switch is.Reason {
	case ReasonMissingField, ReasonMissingColumn, ReasonMissingSheet:
		zap.L().Warn("ingest: skipped",
			zap.String("source", is.Source),
			zap.String("sheet", is.Sheet),
			zap.Int("row", is.Row),
			zap.String("reason", string(is.Reason)),
		)
	default:
		zap.L().Debug("ingest: value treated as unknown",
			zap.String("source", is.Source),
			zap.String("sheet", is.Sheet),
			zap.Int("row", is.Row),
			zap.String("field", string(is.Field)),
			zap.String("value", is.Value),
			zap.String("reason", string(is.Reason)),
		)
	}
}
