package convert

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/waterschap/hydroconv/pkg/dflowfm"
	"github.com/waterschap/hydroconv/pkg/logging"
	"github.com/waterschap/hydroconv/pkg/store"
	"github.com/waterschap/hydroconv/pkg/threedi"
)

// RawLayerPrefix names the reference layers holding source structures
// and cross-section definitions verbatim, for checking the conversion
// by hand.
const RawLayerPrefix = "dhydro_"

// inferFieldDefs derives a layer schema from raw INI key/value pairs:
// a key whose every non-empty value parses as a number becomes REAL,
// everything else TEXT.
func inferFieldDefs(sections []dflowfm.Section) []store.FieldDef {
	numeric := make(map[string]bool)
	seen := make(map[string]bool)
	for _, sec := range sections {
		for key, value := range sec.Keys() {
			if !seen[key] {
				seen[key] = true
				numeric[key] = true
			}
			if value == "" {
				continue
			}
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				numeric[key] = false
			}
		}
	}
	keys := maps.Keys(seen)
	slices.Sort(keys)
	defs := make([]store.FieldDef, 0, len(keys))
	for _, key := range keys {
		t := store.TypeString
		if numeric[key] {
			t = store.TypeFloat
		}
		defs = append(defs, store.FieldDef{Name: key, Type: t})
	}
	return defs
}

func setRawFields(f *store.Feature, sec dflowfm.Section, defs []store.FieldDef) {
	for _, fd := range defs {
		raw := sec.Str(fd.Name)
		if raw == "" {
			continue
		}
		if fd.Type == store.TypeFloat {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				f.Set(fd.Name, v)
				continue
			}
		}
		f.Set(fd.Name, raw)
	}
}

// recreateRawLayer drops and recreates a reference layer.
func recreateRawLayer(s store.Store, name string, defs []store.FieldDef, kind store.GeomKind) error {
	if s.HasLayer(name) {
		if err := s.DropLayer(name); err != nil {
			return err
		}
	}
	return s.CreateLayer(name, defs, kind)
}

// ImportStructures writes each supported structure type to its own
// reference layer, positioned on its branch and enriched with profile
// and friction data in the target vocabulary.
func ImportStructures(
	s store.Store,
	structures []dflowfm.Structure,
	net *dflowfm.Network,
	profiles map[string]*Profile,
	log logging.Logger,
) error {
	for _, typ := range dflowfm.SupportedStructureTypes {
		group := dflowfm.StructuresOfType(structures, typ)
		sections := make([]dflowfm.Section, len(group))
		for i, st := range group {
			sections[i] = st.Section
		}
		defs := inferFieldDefs(sections)
		defs = append(defs, threedi.ProfileFields...)

		layer := RawLayerPrefix + typ
		if err := recreateRawLayer(s, layer, defs, store.GeomPoint); err != nil {
			return err
		}

		for i, st := range group {
			f := store.NewFeature(int64(i + 1))
			setRawFields(f, st.Section, defs)
			if st.HasChainage {
				branch, ok := net.Branch(st.BranchID)
				if !ok {
					return fmt.Errorf("%s %s: branch %s not in network", typ, st.ID, st.BranchID)
				}
				f.Geom = branch.Geometry.Interpolate(st.Chainage)
			}
			if err := applyStructureProfile(f, st, profiles, log); err != nil {
				return err
			}
			if err := s.Create(layer, f); err != nil {
				return err
			}
		}
		log.Info("imported structures", logging.String("structure_type", typ), logging.Count(len(group)))
	}
	return nil
}

// applyStructureProfile attaches profile data to a structure feature.
// Structures are matched to profiles by their own ID. Culverts and
// bridges carry their friction inline and override the profile's;
// bridges additionally shift the profile down to their bed level.
// Universal weirs define their profile directly as a YZ table around
// the crest level.
func applyStructureProfile(
	f *store.Feature,
	st dflowfm.Structure,
	profiles map[string]*Profile,
	log logging.Logger,
) error {
	if p, ok := profiles[st.ID]; ok {
		profile := *p

		switch st.Type {
		case dflowfm.StructureCulvert:
			if v, ok := st.Float("bedFriction"); ok {
				profile.Friction = ConvertFriction(strings.ToLower(st.Str("bedFrictionType")), v, true)
			}
		case dflowfm.StructureBridge:
			if v, ok := st.Float("friction"); ok {
				profile.Friction = ConvertFriction(strings.ToLower(st.Str("frictionType")), v, true)
			}
			if shift, ok := st.Float("shift"); ok {
				if err := profile.ShiftDown(shift); err != nil {
					return err
				}
				profile.ReferenceLevel = ptr(shift)
			}
		}
		ApplyProfile(f, &profile, log)
	}

	if st.Type == dflowfm.StructureUniversalWeir {
		ys, okY := st.Floats("yValues")
		zs, okZ := st.Floats("zValues")
		crest, okC := st.Float("crestLevel")
		if !okY || !okZ || !okC || len(ys) != len(zs) {
			return fmt.Errorf("universal weir %s: yValues, zValues and crestLevel must be consistent", st.ID)
		}
		rel := make([]float64, len(zs))
		for i, z := range zs {
			rel[i] = roundTo(z-crest, 4)
		}
		f.Set("cross_section_shape", int64(ShapeYZ))
		f.Set("cross_section_table", ListsToCSV([][]float64{ys, rel}, -1))
	}
	return nil
}

// ImportDefinitionTables writes each supported cross-section definition
// type to a geometry-less reference table.
func ImportDefinitionTables(s store.Store, defs []dflowfm.CrossSectionDefinition, log logging.Logger) error {
	for _, typ := range dflowfm.SupportedCrossSectionTypes {
		var group []dflowfm.CrossSectionDefinition
		for _, d := range defs {
			if d.Type == typ {
				group = append(group, d)
			}
		}
		sections := make([]dflowfm.Section, len(group))
		for i, d := range group {
			sections[i] = d.Section
		}
		fieldDefs := inferFieldDefs(sections)

		layer := RawLayerPrefix + "crsdef_" + typ
		if err := recreateRawLayer(s, layer, fieldDefs, store.GeomNone); err != nil {
			return err
		}
		for i, d := range group {
			f := store.NewFeature(int64(i + 1))
			setRawFields(f, d.Section, fieldDefs)
			if err := s.Create(layer, f); err != nil {
				return err
			}
		}
		log.Info("imported cross-section definitions",
			logging.String("definition_type", typ), logging.Count(len(group)))
	}
	return nil
}
