// Package model defines the records shared by ingestion, reconciliation,
// scoring and presentation.
package model

import (
	"strings"
	"time"
)

// EquipmentType is the canonical category of an installed-base unit.
type EquipmentType string

const (
	EquipmentBlastFurnace      EquipmentType = "Blast Furnace"
	EquipmentBasicOxygen       EquipmentType = "Basic Oxygen Furnace"
	EquipmentElectricArc       EquipmentType = "Electric Arc Furnace"
	EquipmentDirectReduction   EquipmentType = "Direct Reduction"
	EquipmentContinuousCaster  EquipmentType = "Continuous Caster"
	EquipmentHotRollingMill    EquipmentType = "Hot Rolling Mill"
	EquipmentColdRollingMill   EquipmentType = "Cold Rolling Mill"
	EquipmentPlateMill         EquipmentType = "Plate Mill"
	EquipmentProcessingLine    EquipmentType = "Processing Line"
	EquipmentOther             EquipmentType = "Other"
)

// EquipmentTypes lists every known category in display order.
var EquipmentTypes = []EquipmentType{
	EquipmentBlastFurnace,
	EquipmentBasicOxygen,
	EquipmentElectricArc,
	EquipmentDirectReduction,
	EquipmentContinuousCaster,
	EquipmentHotRollingMill,
	EquipmentColdRollingMill,
	EquipmentPlateMill,
	EquipmentProcessingLine,
	EquipmentOther,
}

// equipmentAliases maps lowercase labels and plant-list abbreviations to a
// category. Full category names are matched separately.
var equipmentAliases = map[string]EquipmentType{
	"bf":                     EquipmentBlastFurnace,
	"blast furnace":          EquipmentBlastFurnace,
	"hochofen":               EquipmentBlastFurnace,
	"bof":                    EquipmentBasicOxygen,
	"ld converter":           EquipmentBasicOxygen,
	"converter":              EquipmentBasicOxygen,
	"eaf":                    EquipmentElectricArc,
	"electric arc furnace":   EquipmentElectricArc,
	"arc furnace":            EquipmentElectricArc,
	"dri":                    EquipmentDirectReduction,
	"dr plant":               EquipmentDirectReduction,
	"direct reduction plant": EquipmentDirectReduction,
	"cc":                     EquipmentContinuousCaster,
	"ccm":                    EquipmentContinuousCaster,
	"caster":                 EquipmentContinuousCaster,
	"continuous casting":     EquipmentContinuousCaster,
	"slab caster":            EquipmentContinuousCaster,
	"billet caster":          EquipmentContinuousCaster,
	"hsm":                    EquipmentHotRollingMill,
	"hot strip mill":         EquipmentHotRollingMill,
	"hot rolling":            EquipmentHotRollingMill,
	"crm":                    EquipmentColdRollingMill,
	"cold mill":              EquipmentColdRollingMill,
	"cold rolling":           EquipmentColdRollingMill,
	"tandem cold mill":       EquipmentColdRollingMill,
	"plate":                  EquipmentPlateMill,
	"heavy plate mill":       EquipmentPlateMill,
	"processing":             EquipmentProcessingLine,
	"galvanizing line":       EquipmentProcessingLine,
	"pickling line":          EquipmentProcessingLine,
}

// ParseEquipmentType maps a free-text label to a category. Unknown labels
// return EquipmentOther.
func ParseEquipmentType(label string) EquipmentType {
	l := strings.ToLower(strings.Join(strings.Fields(label), " "))
	if l == "" {
		return EquipmentOther
	}
	for _, t := range EquipmentTypes {
		if l == strings.ToLower(string(t)) {
			return t
		}
	}
	if t, ok := equipmentAliases[l]; ok {
		return t
	}
	return EquipmentOther
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the position is inside WGS84 bounds.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Equipment is one installed-base unit from the inventory workbook.
type Equipment struct {
	ID              string        `json:"id"`
	Company         string        `json:"company"`
	Country         string        `json:"country,omitempty"`
	Region          string        `json:"region,omitempty"`
	InstallYear     *int          `json:"install_year,omitempty"`
	Type            EquipmentType `json:"type"`
	TypeLabel       string        `json:"type_label,omitempty"`
	Manufacturer    string        `json:"manufacturer,omitempty"`
	LastMaintenance *time.Time    `json:"last_maintenance,omitempty"`
	Location        *Coordinates  `json:"location,omitempty"`
	Capacity        *float64      `json:"capacity,omitempty"`
}

// DisplayType returns the raw label when one was given, the category otherwise.
func (e Equipment) DisplayType() string {
	if e.TypeLabel != "" {
		return e.TypeLabel
	}
	return string(e.Type)
}

// Age returns the equipment age in whole years as of currentYear. The second
// result is false when the install year is unknown or lies in the future.
func (e Equipment) Age(currentYear int) (int, bool) {
	if e.InstallYear == nil || *e.InstallYear > currentYear {
		return 0, false
	}
	return currentYear - *e.InstallYear, true
}
