// Package ingest turns spreadsheet exports and CRM accounts into the typed
// equipment and customer tables of a snapshot.
package ingest

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
)

// Field is a canonical column of an input table.
type Field string

// Equipment fields.
const (
	FieldEquipmentID     Field = "equipment_id"
	FieldCompany         Field = "company"
	FieldCountry         Field = "country"
	FieldRegion          Field = "region"
	FieldInstallYear     Field = "install_year"
	FieldType            Field = "type"
	FieldManufacturer    Field = "manufacturer"
	FieldLastMaintenance Field = "last_maintenance"
	FieldLatitude        Field = "latitude"
	FieldLongitude       Field = "longitude"
	FieldCapacity        Field = "capacity"
)

// Customer fields.
const (
	FieldCustomerID Field = "customer_id"
	FieldName       Field = "name"
	FieldRating     Field = "rating"
	FieldEmployees  Field = "employees"
	FieldExecutive  Field = "executive"
)

// ErrMissingColumn is returned when a header row lacks the required column.
var ErrMissingColumn = eris.New("ingest: required column missing")

// Schema maps header synonyms onto canonical fields. Keys are normalized
// with NormalizeHeader.
type Schema struct {
	Required Field
	Synonyms map[string]Field
}

// EquipmentSchema accepts the installed-base list headers seen in plant
// exports, in English and German.
var EquipmentSchema = Schema{
	Required: FieldCompany,
	Synonyms: map[string]Field{
		// ID
		"id": FieldEquipmentID, "equipmentid": FieldEquipmentID, "ibid": FieldEquipmentID,
		"plantid": FieldEquipmentID,

		// Company
		"company": FieldCompany, "companyname": FieldCompany, "customer": FieldCompany,
		"ibcustomer": FieldCompany, "companyinternal": FieldCompany, "operator": FieldCompany,
		"owner": FieldCompany, "unternehmen": FieldCompany, "firma": FieldCompany, "kunde": FieldCompany,

		// Country / region
		"country": FieldCountry, "ibcustomercountry": FieldCountry, "countryinternal": FieldCountry,
		"land": FieldCountry,
		"region": FieldRegion, "ibregion": FieldRegion, "salesregion": FieldRegion,

		// Install year
		"installyear": FieldInstallYear, "installationyear": FieldInstallYear, "startyear": FieldInstallYear,
		"startyearinternal": FieldInstallYear, "ibstartup": FieldInstallYear, "startup": FieldInstallYear,
		"commissioning": FieldInstallYear, "yearofstartup": FieldInstallYear, "baujahr": FieldInstallYear,
		"inbetriebnahme": FieldInstallYear,

		// Type
		"type": FieldType, "equipmenttype": FieldType, "planttype": FieldType, "pbsplanttype": FieldType,
		"ibproduct": FieldType, "product": FieldType, "anlagentyp": FieldType,

		// Manufacturer
		"manufacturer": FieldManufacturer, "oem": FieldManufacturer, "supplier": FieldManufacturer,
		"hersteller": FieldManufacturer,

		// Maintenance
		"lastmaintenance": FieldLastMaintenance, "lastmaintenancedate": FieldLastMaintenance,
		"lastservice": FieldLastMaintenance, "lastrevamp": FieldLastMaintenance,
		"letztewartung": FieldLastMaintenance,

		// Location
		"latitude": FieldLatitude, "lat": FieldLatitude, "latitudeinternal": FieldLatitude,
		"longitude": FieldLongitude, "lon": FieldLongitude, "lng": FieldLongitude,
		"longitudeinternal": FieldLongitude,

		// Capacity
		"capacity": FieldCapacity, "capacitymt": FieldCapacity, "capacityinternal": FieldCapacity,
		"kapazitat": FieldCapacity,
	},
}

// CustomerSchema accepts CRM export headers.
var CustomerSchema = Schema{
	Required: FieldName,
	Synonyms: map[string]Field{
		"id": FieldCustomerID, "accountid": FieldCustomerID, "customerid": FieldCustomerID,
		"crmid": FieldCustomerID,

		"name": FieldName, "accountname": FieldName, "companyname": FieldName, "company": FieldName,
		"crmname": FieldName, "customer": FieldName, "customername": FieldName, "kunde": FieldName,

		"country": FieldCountry, "billingcountry": FieldCountry, "land": FieldCountry,
		"region": FieldRegion,

		"rating": FieldRating, "customerrating": FieldRating, "grade": FieldRating,
		"probability": FieldRating, "winprobability": FieldRating, "bewertung": FieldRating,

		"employees": FieldEmployees, "numberofemployees": FieldEmployees, "fte": FieldEmployees,
		"headcount": FieldEmployees, "mitarbeiter": FieldEmployees,

		"executive": FieldExecutive, "contact": FieldExecutive, "keycontact": FieldExecutive,
		"accountowner": FieldExecutive, "responsible": FieldExecutive, "ansprechpartner": FieldExecutive,
	},
}

// NormalizeHeader lowercases a header and drops everything but letters and
// digits, so "Install Year", "install_year" and "INSTALL-YEAR" agree.
// Umlauts are folded to their base letter.
func NormalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		switch r {
		case 'ä':
			r = 'a'
		case 'ö':
			r = 'o'
		case 'ü':
			r = 'u'
		case 'ß':
			b.WriteString("ss")
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Columns is a resolved header: canonical field to column index.
type Columns map[Field]int

// Resolve maps a header row. The first column matching a field wins.
func (s Schema) Resolve(header []string) (Columns, error) {
	cols := make(Columns, len(header))
	for i, h := range header {
		f, ok := s.Synonyms[NormalizeHeader(h)]
		if !ok {
			continue
		}
		if _, dup := cols[f]; !dup {
			cols[f] = i
		}
	}
	if _, ok := cols[s.Required]; !ok {
		return cols, eris.Wrapf(ErrMissingColumn, "no %s column among %d headers", s.Required, len(header))
	}
	return cols, nil
}

// Has reports whether the field was found in the header.
func (c Columns) Has(f Field) bool {
	_, ok := c[f]
	return ok
}

// Get returns the trimmed cell for f, or "" when the column is absent or
// the row is short.
func (c Columns) Get(row []string, f Field) string {
	i, ok := c[f]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
