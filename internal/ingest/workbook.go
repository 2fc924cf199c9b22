package ingest

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet is the raw text of one worksheet. Header is the first non-empty row.
// Lines holds the 1-based spreadsheet row of each entry in Rows.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
	Lines  []int
}

// ReadWorkbook reads the named sheets of an xlsx file, or every sheet when
// names is empty. Requested sheets that do not exist are returned in
// missing. Cells are read raw, so dates come back as Excel serials.
func ReadWorkbook(path string, names []string) (sheets []Sheet, missing []string, err error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "ingest: open workbook %s", path)
	}

	selected := f.Sheets
	if len(names) > 0 {
		selected = nil
		for _, name := range names {
			s := findSheet(f, name)
			if s == nil {
				missing = append(missing, name)
				continue
			}
			selected = append(selected, s)
		}
	}

	for _, s := range selected {
		sheets = append(sheets, readSheet(s))
	}
	return sheets, missing, nil
}

func findSheet(f *xlsx.File, name string) *xlsx.Sheet {
	if s, ok := f.Sheet[name]; ok {
		return s
	}
	for _, s := range f.Sheets {
		if strings.EqualFold(strings.TrimSpace(s.Name), strings.TrimSpace(name)) {
			return s
		}
	}
	return nil
}

func readSheet(s *xlsx.Sheet) Sheet {
	out := Sheet{Name: s.Name}
	for i, row := range s.Rows {
		if row == nil {
			continue
		}
		cells := rowToStrings(row)
		if out.Header == nil {
			if !blank(cells) {
				out.Header = cells
			}
			continue
		}
		out.Rows = append(out.Rows, cells)
		out.Lines = append(out.Lines, i+1)
	}
	return out
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell != nil {
			cells[j] = cell.Value
		}
	}
	return cells
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
