package ingest

import (
	"fmt"

	"github.com/sells-group/hitrate-cli/internal/model"
)

// ReadCustomers loads a CRM export. Only the first sheet is read unless
// sheets names others.
func ReadCustomers(path string, sheets []string, rep *Report) ([]model.Customer, error) {
	ws, missing, err := ReadWorkbook(path, sheets)
	if err != nil {
		return nil, err
	}
	for _, name := range missing {
		rep.add(Issue{Source: path, Sheet: name, Reason: ReasonMissingSheet})
	}
	if len(sheets) == 0 && len(ws) > 1 {
		ws = ws[:1]
	}

	var out []model.Customer
	for _, s := range ws {
		rep.Sheets = append(rep.Sheets, s.Name)
		if s.Header == nil {
			continue
		}
		cols, err := CustomerSchema.Resolve(s.Header)
		if err != nil {
			rep.add(Issue{Source: path, Sheet: s.Name, Field: FieldName, Reason: ReasonMissingColumn})
			continue
		}
		for i, row := range s.Rows {
			if blank(row) {
				continue
			}
			rep.Rows++
			c, ok := parseCustomer(path, s, s.Lines[i], row, cols, rep)
			if !ok {
				rep.Skipped++
				continue
			}
			out = append(out, c)
		}
	}
	rep.Customers += len(out)
	return out, nil
}

func parseCustomer(path string, s Sheet, line int, row []string, cols Columns, rep *Report) (model.Customer, bool) {
	issue := func(f Field, r Reason, v string) {
		rep.add(Issue{Source: path, Sheet: s.Name, Row: line, Field: f, Reason: r, Value: v})
	}

	c := model.Customer{
		ID:        cols.Get(row, FieldCustomerID),
		Name:      cols.Get(row, FieldName),
		Country:   cols.Get(row, FieldCountry),
		Region:    cols.Get(row, FieldRegion),
		Executive: cols.Get(row, FieldExecutive),
	}
	if c.Name == "" {
		issue(FieldName, ReasonMissingField, "")
		return c, false
	}
	if c.ID == "" {
		c.ID = fmt.Sprintf("%s!%d", s.Name, line)
	}

	if raw := cols.Get(row, FieldRating); raw != "" {
		c.Rating = model.ParseRating(raw)
		if c.Rating == model.RatingUnknown {
			issue(FieldRating, ReasonUnknownRating, raw)
		}
	}

	if raw := cols.Get(row, FieldEmployees); raw != "" {
		if n, ok := ParseInt(raw); ok && n >= 0 {
			c.Employees = &n
		} else {
			issue(FieldEmployees, ReasonMalformedNumber, raw)
		}
	}
	return c, true
}
