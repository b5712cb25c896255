package convert

import (
	"math"

	"github.com/waterschap/hydroconv/pkg/dflowfm"
	"github.com/waterschap/hydroconv/pkg/logging"
	"github.com/waterschap/hydroconv/pkg/store"
	"github.com/waterschap/hydroconv/pkg/threedi"
)

// EnrichProfiles overrides profile friction with per-branch friction
// where the source defines it: a profile used by a cross-section
// location whose branch carries a friction sample at the same chainage
// takes that sample instead of its own definition.
func EnrichProfiles(
	profiles map[string]*Profile,
	locs []dflowfm.CrossSectionLocation,
	branchFrictions map[string][]dflowfm.BranchFriction,
) {
	locByDef := make(map[string]dflowfm.CrossSectionLocation)
	for _, loc := range locs {
		if _, seen := locByDef[loc.DefinitionID]; !seen {
			locByDef[loc.DefinitionID] = loc
		}
	}
	for code, profile := range profiles {
		loc, ok := locByDef[code]
		if !ok {
			continue
		}
		for _, friction := range branchFrictions[loc.BranchID] {
			// Chainages come from different files and are compared at
			// centimetre precision.
			if math.Round(friction.Chainage*100) == math.Round(loc.Chainage*100) {
				profile.Friction = ConvertFriction(friction.Type, friction.Value, true)
			}
		}
	}
}

// ApplyProfile copies profile and friction values onto a feature,
// filling only fields that are still null. Values that were set by an
// earlier, more specific source win.
func ApplyProfile(f *store.Feature, p *Profile, log logging.Logger) {
	setIfNull := func(name string, value any) {
		if f.Fields[name] == nil && value != nil {
			f.Set(name, value)
		}
	}
	setIfNull("cross_section_shape", int64(p.Shape))
	if p.ReferenceLevel != nil {
		setIfNull("reference_level", *p.ReferenceLevel)
	}
	if p.BankLevel != nil {
		setIfNull("bank_level", *p.BankLevel)
	}
	if p.Width != nil {
		setIfNull("cross_section_width", *p.Width)
	}
	if p.Height != nil {
		setIfNull("cross_section_height", *p.Height)
	}
	if p.Table != "" {
		setIfNull("cross_section_table", p.Table)
	}
	if p.Friction.Valid {
		if p.Friction.HasType {
			setIfNull("friction_type", int64(p.Friction.Type))
		}
		if p.Friction.HasValue {
			setIfNull("friction_value", p.Friction.Value)
		}
	} else {
		log.Warn("friction data is not valid",
			logging.String("profile", p.Code),
			logging.String("reason", p.Friction.InvalidReason))
	}
}

// EnrichCrossSectionLocations walks the imported cross-section
// locations and fills their profile columns from the converted
// definitions.
func EnrichCrossSectionLocations(
	s store.Store,
	locIDs map[string]int64,
	locs []dflowfm.CrossSectionLocation,
	profiles map[string]*Profile,
	log logging.Logger,
) error {
	defByID := make(map[int64]string, len(locs))
	for _, loc := range locs {
		if id, ok := locIDs[loc.ID]; ok {
			defByID[id] = loc.DefinitionID
		}
	}
	feats, err := s.Features(threedi.LayerCrossSectionLocation)
	if err != nil {
		return err
	}
	enriched := 0
	for _, f := range feats {
		defName, ok := defByID[f.ID]
		if !ok {
			continue
		}
		profile, ok := profiles[defName]
		if !ok {
			log.Warn("cross-section location references unknown definition",
				logging.FeatureID(f.ID),
				logging.String("definition", defName))
			continue
		}
		ApplyProfile(f, profile, log)
		if err := s.Update(threedi.LayerCrossSectionLocation, f); err != nil {
			return err
		}
		enriched++
	}
	log.Info("enriched cross-section locations", logging.Count(enriched))
	return nil
}
