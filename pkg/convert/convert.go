package convert

import (
	"fmt"

	"github.com/waterschap/hydroconv/pkg/dflowfm"
	"github.com/waterschap/hydroconv/pkg/logging"
	"github.com/waterschap/hydroconv/pkg/store"
	"github.com/waterschap/hydroconv/pkg/threedi"
)

// Options steer a full conversion run.
type Options struct {
	// ClearFirst empties the target layers before importing.
	ClearFirst bool

	// SkipNetwork leaves the node, channel and cross-section location
	// layers untouched and only (re)runs the definition and structure
	// imports. Useful when the network part of the target has been
	// edited by hand.
	SkipNetwork bool

	// ReplacePumps runs the orifice-to-pump replacement after the
	// structure import.
	ReplacePumps bool

	Logger logging.Logger
}

// Result summarises what a conversion run produced.
type Result struct {
	Nodes                 int
	Channels              int
	CrossSectionLocations int
	Profiles              int
	SkippedDefinitions    map[string]int
	StructureCounts       map[string]int
}

// Run executes the full conversion of the schematisation described by
// the MDU file into the store.
func Run(s store.Store, mdu *dflowfm.MDU, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	log = log.With(logging.Component("convert"))

	if err := threedi.EnsureCoreLayers(s); err != nil {
		return nil, err
	}

	im := NewImporter(s, log)
	if opts.ClearFirst {
		if err := im.ClearLayers(DefaultClearLayers); err != nil {
			return nil, err
		}
	}

	if mdu.NetFile == "" {
		return nil, fmt.Errorf("%s: no NetFile in [geometry]", mdu.Path)
	}
	net, err := dflowfm.ReadNetwork(mdu.Resolve(mdu.NetFile))
	if err != nil {
		return nil, err
	}

	result := &Result{}
	var locs []dflowfm.CrossSectionLocation
	locIDs := map[string]int64{}

	if !opts.SkipNetwork {
		nodeIDs, err := im.ImportNodes(net)
		if err != nil {
			return nil, err
		}
		channelIDs, err := im.ImportChannels(net, nodeIDs)
		if err != nil {
			return nil, err
		}
		result.Nodes = len(nodeIDs)
		result.Channels = len(channelIDs)

		if mdu.CrossLocFile != "" {
			locs, err = dflowfm.ReadCrossSectionLocations(mdu.Resolve(mdu.CrossLocFile))
			if err != nil {
				return nil, err
			}
			locIDs, err = im.ImportCrossSectionLocations(locs, net, channelIDs)
			if err != nil {
				return nil, err
			}
			result.CrossSectionLocations = len(locIDs)
		}
	} else if mdu.CrossLocFile != "" {
		locs, err = dflowfm.ReadCrossSectionLocations(mdu.Resolve(mdu.CrossLocFile))
		if err != nil {
			return nil, err
		}
	}

	globals, branchFrictions, err := dflowfm.ReadFriction(mdu, log)
	if err != nil {
		return nil, err
	}

	var profiles map[string]*Profile
	if mdu.CrossDefFile != "" {
		defs, err := dflowfm.ReadCrossSectionDefinitions(mdu.Resolve(mdu.CrossDefFile))
		if err != nil {
			return nil, err
		}
		profiles, result.SkippedDefinitions, err = BuildProfiles(defs, globals)
		if err != nil {
			return nil, err
		}
		result.Profiles = len(profiles)
		for typ, n := range result.SkippedDefinitions {
			log.Warn("skipped unsupported cross-section definitions",
				logging.String("definition_type", typ), logging.Count(n))
		}
		if err := ImportDefinitionTables(s, defs, log); err != nil {
			return nil, err
		}
	}

	if !opts.SkipNetwork && len(locs) > 0 && profiles != nil {
		EnrichProfiles(profiles, locs, branchFrictions)
		if err := EnrichCrossSectionLocations(s, locIDs, locs, profiles, log); err != nil {
			return nil, err
		}
	}

	if mdu.StructureFile != "" {
		structures, err := dflowfm.ReadStructures(mdu.Resolve(mdu.StructureFile))
		if err != nil {
			return nil, err
		}
		if err := ImportStructures(s, structures, net, profiles, log); err != nil {
			return nil, err
		}
		result.StructureCounts = dflowfm.CountStructureTypes(structures)
		dflowfm.CheckStructures(structures, log)

		if opts.ReplacePumps {
			if err := OrificesToPumps(s, structures, log); err != nil {
				return nil, err
			}
		}
	}

	return result, nil
}
