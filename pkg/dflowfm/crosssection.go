package dflowfm

import (
	"strings"
)

// Cross-section definition type names as written in crsdef.ini.
const (
	CrsCircle    = "circle"
	CrsRectangle = "rectangle"
	CrsZW        = "zw"
	CrsZWRiver   = "zwriver"
	CrsYZ        = "yz"
	CrsXYZ       = "xyz"
)

// SupportedCrossSectionTypes are the definition types the converter can
// express as a target profile.
var SupportedCrossSectionTypes = []string{
	CrsCircle,
	CrsRectangle,
	CrsYZ,
	CrsZW,
	CrsZWRiver,
}

// CrossSectionDefinition is one [Definition] block of a crsdef.ini
// file.
type CrossSectionDefinition struct {
	Section
	ID   string
	Type string
}

// ReadCrossSectionDefinitions parses all [Definition] blocks, in file
// order.
func ReadCrossSectionDefinitions(path string) ([]CrossSectionDefinition, error) {
	f, err := loadINI(path)
	if err != nil {
		return nil, err
	}
	var out []CrossSectionDefinition
	for _, sec := range sectionsNamed(f, "Definition") {
		out = append(out, CrossSectionDefinition{
			Section: sec,
			ID:      sec.Str("id"),
			Type:    strings.ToLower(sec.Str("type")),
		})
	}
	return out, nil
}

// CountCrossSectionTypes tallies definitions per type name.
func CountCrossSectionTypes(defs []CrossSectionDefinition) map[string]int {
	counts := make(map[string]int)
	for _, d := range defs {
		counts[d.Type]++
	}
	return counts
}

// CrossSectionLocation is one [CrossSection] block of a crsloc.ini
// file: a position along a branch where a definition applies.
type CrossSectionLocation struct {
	Section
	ID           string
	BranchID     string
	Chainage     float64
	DefinitionID string
	Shift        float64
	HasShift     bool
}

// ReadCrossSectionLocations parses all [CrossSection] blocks, in file
// order.
func ReadCrossSectionLocations(path string) ([]CrossSectionLocation, error) {
	f, err := loadINI(path)
	if err != nil {
		return nil, err
	}
	var out []CrossSectionLocation
	for _, sec := range sectionsNamed(f, "CrossSection") {
		loc := CrossSectionLocation{
			Section:      sec,
			ID:           sec.Str("id"),
			BranchID:     sec.Str("branchId"),
			DefinitionID: sec.Str("definitionId"),
		}
		loc.Chainage, _ = sec.Float("chainage")
		loc.Shift, loc.HasShift = sec.Float("shift")
		out = append(out, loc)
	}
	return out, nil
}
