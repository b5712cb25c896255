package dflowfm

import (
	"slices"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/waterschap/hydroconv/pkg/logging"
)

// Structure type names as written in structures.ini.
const (
	StructureWeir          = "weir"
	StructureUniversalWeir = "universalweir"
	StructureCulvert       = "culvert"
	StructureOrifice       = "orifice"
	StructureBridge        = "bridge"
	StructurePump          = "pump"
	StructureCompound      = "compound"
)

// SupportedStructureTypes are the structure types the converter knows
// how to export.
var SupportedStructureTypes = []string{
	StructureBridge,
	StructureWeir,
	StructureCulvert,
	StructureOrifice,
	StructureCompound,
	StructurePump,
	StructureUniversalWeir,
}

// Structure is one [Structure] block. Typed accessors cover the keys
// every structure carries; everything else stays available through the
// Section.
type Structure struct {
	Section
	ID          string
	Type        string
	BranchID    string
	Chainage    float64
	HasChainage bool
}

// ReadStructures parses all [Structure] blocks of a structures.ini
// file, in file order.
func ReadStructures(path string) ([]Structure, error) {
	f, err := loadINI(path)
	if err != nil {
		return nil, err
	}
	var out []Structure
	for _, sec := range sectionsNamed(f, "Structure") {
		s := Structure{
			Section:  sec,
			ID:       sec.Str("id"),
			Type:     strings.ToLower(sec.Str("type")),
			BranchID: sec.Str("branchId"),
		}
		s.Chainage, s.HasChainage = sec.Float("chainage")
		out = append(out, s)
	}
	return out, nil
}

// CountStructureTypes tallies structures per type name.
func CountStructureTypes(structures []Structure) map[string]int {
	counts := make(map[string]int)
	for _, s := range structures {
		counts[s.Type]++
	}
	return counts
}

// CheckStructures logs a warning for every structure type present in
// the source that the converter does not support.
func CheckStructures(structures []Structure, log logging.Logger) {
	counts := CountStructureTypes(structures)
	types := maps.Keys(counts)
	slices.Sort(types)
	for _, typ := range types {
		if slices.Contains(SupportedStructureTypes, typ) {
			continue
		}
		log.Warn("source contains unsupported structures",
			logging.String("structure_type", typ),
			logging.Count(counts[typ]))
	}
}

// StructuresOfType filters structures by type name.
func StructuresOfType(structures []Structure, typ string) []Structure {
	var out []Structure
	for _, s := range structures {
		if s.Type == typ {
			out = append(out, s)
		}
	}
	return out
}
