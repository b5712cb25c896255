package convert

import (
	"fmt"
	"slices"
	"strings"

	"github.com/waterschap/hydroconv/pkg/dflowfm"
)

// defFriction reads the friction definition carried by a cross-section
// definition. Circle, rectangle and ZW definitions carry a single
// frictionId or type/value pair; ZW-river and YZ definitions carry
// lists, of which only single-element lists are supported.
func defFriction(def dflowfm.CrossSectionDefinition, globals map[string]dflowfm.GlobalFriction) FrictionData {
	frictionID := def.Str("frictionId")
	frictionType := ""
	var value float64
	hasValue := false

	switch def.Type {
	case dflowfm.CrsCircle, dflowfm.CrsRectangle, dflowfm.CrsZW:
		frictionType = strings.ToLower(def.Str("frictionType"))
		value, hasValue = def.Float("frictionValue")
	case dflowfm.CrsZWRiver, dflowfm.CrsYZ:
		types := strings.Fields(def.Str("frictionTypes"))
		values, okValues := def.Floats("frictionValues")
		if len(types) > 0 && okValues {
			if len(types) == 1 && len(values) == 1 {
				frictionType = strings.ToLower(types[0])
				value, hasValue = values[0], true
			} else {
				return FrictionData{Valid: false,
					InvalidReason: "multiple friction values for one cross-section are not supported"}
			}
		}
		ids := strings.Fields(def.Str("frictionIds"))
		if len(ids) == 1 {
			frictionID = ids[0]
		} else if len(ids) > 1 && frictionType == "" {
			return FrictionData{Valid: false,
				InvalidReason: "multiple friction values for one cross-section are not supported"}
		}
	}

	// A bare friction ID resolves through the global definitions.
	if frictionType == "" && frictionID != "" {
		if g, ok := globals[frictionID]; ok {
			return ConvertFriction(g.Type, g.Value, g.HasValue)
		}
		return FrictionData{Valid: false,
			InvalidReason: fmt.Sprintf("friction id %s has no global definition", frictionID)}
	}
	return ConvertFriction(frictionType, value, hasValue)
}

// BuildProfile converts one cross-section definition into a target
// profile. Tabulated shapes use the flow widths; total widths are
// ignored.
func BuildProfile(def dflowfm.CrossSectionDefinition, globals map[string]dflowfm.GlobalFriction) (Profile, error) {
	p := Profile{
		Code:     def.ID,
		Friction: defFriction(def, globals),
	}

	switch def.Type {
	case dflowfm.CrsCircle:
		p.Shape = ShapeCircle
		if d, ok := def.Float("diameter"); ok {
			p.Width = ptr(d)
		}

	case dflowfm.CrsRectangle:
		if w, ok := def.Float("width"); ok {
			p.Width = ptr(w)
		}
		if closed, ok := def.Bool("closed"); ok && closed {
			p.Shape = ShapeClosedRectangle
			if h, ok := def.Float("height"); ok {
				p.Height = ptr(h)
			}
		} else {
			p.Shape = ShapeOpenRectangle
		}

	case dflowfm.CrsZW, dflowfm.CrsZWRiver:
		p.Shape = ShapeTabulatedTrapezium
		levels, okL := def.Floats("levels")
		widths, okW := def.Floats("flowWidths")
		if !okL || !okW || len(levels) != len(widths) {
			return Profile{}, fmt.Errorf("cross-section %s: levels and flowWidths must be equal-length lists", def.ID)
		}
		p.Table = ListsToCSV([][]float64{levels, widths}, 3)
		if def.Type == dflowfm.CrsZWRiver {
			if crest, ok := def.Float("leveeCrestLevel"); ok {
				p.BankLevel = ptr(crest)
			}
		}

	case dflowfm.CrsYZ:
		p.Shape = ShapeYZ
		ys, okY := def.Floats("yCoordinates")
		zs, okZ := def.Floats("zCoordinates")
		if !okY || !okZ || len(ys) != len(zs) || len(ys) == 0 {
			return Profile{}, fmt.Errorf("cross-section %s: yCoordinates and zCoordinates must be equal-length lists", def.ID)
		}
		ref := zs[0]
		for _, z := range zs {
			if z < ref {
				ref = z
			}
		}
		p.ReferenceLevel = ptr(ref)
		rel := make([][]float64, 2)
		rel[0] = make([]float64, len(ys))
		rel[1] = make([]float64, len(zs))
		for i := range ys {
			rel[0][i] = ys[i] - ys[0]
			rel[1][i] = zs[i] - ref
		}
		p.Table = ListsToCSV(rel, 3)

	default:
		return Profile{}, fmt.Errorf("cross-section %s: unsupported type %s", def.ID, def.Type)
	}

	p.ReferenceLevel = roundPtr(p.ReferenceLevel, 3)
	p.BankLevel = roundPtr(p.BankLevel, 3)
	p.Width = roundPtr(p.Width, 3)
	p.Height = roundPtr(p.Height, 3)
	return p, nil
}

// BuildProfiles converts all supported definitions, keyed by their ID.
// Unsupported types are counted and skipped; the caller reports them.
func BuildProfiles(defs []dflowfm.CrossSectionDefinition, globals map[string]dflowfm.GlobalFriction) (map[string]*Profile, map[string]int, error) {
	profiles := make(map[string]*Profile, len(defs))
	skipped := make(map[string]int)
	for _, def := range defs {
		if !slices.Contains(dflowfm.SupportedCrossSectionTypes, def.Type) {
			skipped[def.Type]++
			continue
		}
		p, err := BuildProfile(def, globals)
		if err != nil {
			return nil, nil, err
		}
		profiles[p.Code] = &p
	}
	return profiles, skipped, nil
}
