package ingest

import (
	"fmt"

	"github.com/sells-group/hitrate-cli/internal/model"
)

// ReadEquipment loads the installed-base workbook at path. Every sheet is
// read unless sheets names a subset; a sheet without a type column takes
// its name as the equipment type. Problems are recorded in rep.
func ReadEquipment(path string, sheets []string, rep *Report) ([]model.Equipment, error) {
	ws, missing, err := ReadWorkbook(path, sheets)
	if err != nil {
		return nil, err
	}
	for _, name := range missing {
		rep.add(Issue{Source: path, Sheet: name, Reason: ReasonMissingSheet})
	}

	var out []model.Equipment
	for _, s := range ws {
		rep.Sheets = append(rep.Sheets, s.Name)
		if s.Header == nil {
			continue
		}
		cols, err := EquipmentSchema.Resolve(s.Header)
		if err != nil {
			rep.add(Issue{Source: path, Sheet: s.Name, Field: FieldCompany, Reason: ReasonMissingColumn})
			continue
		}
		for i, row := range s.Rows {
			if blank(row) {
				continue
			}
			rep.Rows++
			eq, ok := parseEquipment(path, s, s.Lines[i], row, cols, rep)
			if !ok {
				rep.Skipped++
				continue
			}
			out = append(out, eq)
		}
	}
	rep.Equipment += len(out)
	return out, nil
}

func parseEquipment(path string, s Sheet, line int, row []string, cols Columns, rep *Report) (model.Equipment, bool) {
	issue := func(f Field, r Reason, v string) {
		rep.add(Issue{Source: path, Sheet: s.Name, Row: line, Field: f, Reason: r, Value: v})
	}

	eq := model.Equipment{
		ID:           cols.Get(row, FieldEquipmentID),
		Company:      cols.Get(row, FieldCompany),
		Country:      cols.Get(row, FieldCountry),
		Region:       cols.Get(row, FieldRegion),
		Manufacturer: cols.Get(row, FieldManufacturer),
	}
	if eq.Company == "" {
		issue(FieldCompany, ReasonMissingField, "")
		return eq, false
	}
	if eq.ID == "" {
		eq.ID = fmt.Sprintf("%s!%d", s.Name, line)
	}

	label := s.Name
	if cols.Has(FieldType) {
		label = cols.Get(row, FieldType)
	}
	eq.Type = model.ParseEquipmentType(label)
	eq.TypeLabel = label

	if raw := cols.Get(row, FieldInstallYear); raw != "" {
		if y, ok := ParseYear(raw); ok {
			eq.InstallYear = &y
		} else {
			issue(FieldInstallYear, ReasonMalformedDate, raw)
		}
	}

	if raw := cols.Get(row, FieldLastMaintenance); raw != "" {
		if t, ok := ParseDate(raw); ok {
			eq.LastMaintenance = &t
		} else {
			issue(FieldLastMaintenance, ReasonMalformedDate, raw)
		}
	}

	if raw := cols.Get(row, FieldCapacity); raw != "" {
		if c, ok := ParseFloat(raw); ok {
			eq.Capacity = &c
		} else {
			issue(FieldCapacity, ReasonMalformedNumber, raw)
		}
	}

	eq.Location = parseLocation(cols.Get(row, FieldLatitude), cols.Get(row, FieldLongitude), issue)
	return eq, true
}

func parseLocation(rawLat, rawLon string, issue func(Field, Reason, string)) *model.Coordinates {
	if rawLat == "" && rawLon == "" {
		return nil
	}
	lat, latOK := ParseFloat(rawLat)
	lon, lonOK := ParseFloat(rawLon)
	if !latOK || !lonOK {
		issue(FieldLatitude, ReasonMalformedNumber, rawLat+","+rawLon)
		return nil
	}
	c := model.Coordinates{Lat: lat, Lon: lon}
	// 0,0 is the blank-cell default of several exports.
	if !c.Valid() || (lat == 0 && lon == 0) {
		issue(FieldLatitude, ReasonInvalidLocation, rawLat+","+rawLon)
		return nil
	}
	return &c
}

// dedupeIDs suffixes repeated equipment IDs so every row stays addressable.
func dedupeIDs(eqs []model.Equipment) {
	seen := make(map[string]int, len(eqs))
	for i := range eqs {
		id := eqs[i].ID
		n := seen[id]
		seen[id] = n + 1
		if n > 0 {
			eqs[i].ID = fmt.Sprintf("%s#%d", id, n+1)
		}
	}
}
