package convert

import (
	"fmt"

	"github.com/waterschap/hydroconv/pkg/dflowfm"
	"github.com/waterschap/hydroconv/pkg/geometry"
	"github.com/waterschap/hydroconv/pkg/logging"
	"github.com/waterschap/hydroconv/pkg/store"
	"github.com/waterschap/hydroconv/pkg/threedi"
)

// Importer writes D-Flow FM network data into the target layers. The
// target keeps its own integer IDs; the maps returned by the import
// methods carry the source-name to target-ID correspondence that later
// steps need.
type Importer struct {
	Store store.Store
	Log   logging.Logger
}

func NewImporter(s store.Store, log logging.Logger) *Importer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Importer{Store: s, Log: log.With(logging.Component("import"))}
}

// nextID returns the first free ID in a layer. IDs continue after
// whatever the target already holds.
func (im *Importer) nextID(layer string) (int64, error) {
	max, err := store.MaxID(im.Store, layer)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// ImportNodes writes every network node as a connection node, returning
// the node-name to connection-node-ID mapping.
func (im *Importer) ImportNodes(net *dflowfm.Network) (map[string]int64, error) {
	id, err := im.nextID(threedi.LayerConnectionNode)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]int64, len(net.Nodes))
	for _, node := range net.Nodes {
		f := store.NewFeature(id)
		f.Set("code", node.ID)
		f.Geom = geometry.NewPoint(node.X, node.Y)
		if err := im.Store.Create(threedi.LayerConnectionNode, f); err != nil {
			return nil, err
		}
		ids[node.ID] = id
		id++
	}
	im.Log.Info("imported connection nodes", logging.Count(len(ids)))
	return ids, nil
}

// ImportChannels writes every branch as a channel, resolving its node
// names through the mapping from ImportNodes. Returns the branch-name
// to channel-ID mapping.
func (im *Importer) ImportChannels(net *dflowfm.Network, nodeIDs map[string]int64) (map[string]int64, error) {
	id, err := im.nextID(threedi.LayerChannel)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]int64, len(net.Branches))
	for _, branch := range net.Branches {
		startID, ok := nodeIDs[branch.SourceNodeID]
		if !ok {
			return nil, fmt.Errorf("branch %s: source node %s was not imported", branch.ID, branch.SourceNodeID)
		}
		endID, ok := nodeIDs[branch.TargetNodeID]
		if !ok {
			return nil, fmt.Errorf("branch %s: target node %s was not imported", branch.ID, branch.TargetNodeID)
		}
		f := store.NewFeature(id)
		f.Set("code", branch.ID)
		f.Set("display_name", branch.LongName)
		f.Set(threedi.FieldConnectionNodeStart, startID)
		f.Set(threedi.FieldConnectionNodeEnd, endID)
		f.Geom = branch.Geometry.Flatten()
		if err := im.Store.Create(threedi.LayerChannel, f); err != nil {
			return nil, err
		}
		ids[branch.ID] = id
		id++
	}
	im.Log.Info("imported channels", logging.Count(len(ids)))
	return ids, nil
}

// ImportCrossSectionLocations writes each location as a point on its
// channel, placed by interpolating the branch geometry at the chainage.
// Returns the location-name to feature-ID mapping.
func (im *Importer) ImportCrossSectionLocations(
	locs []dflowfm.CrossSectionLocation,
	net *dflowfm.Network,
	channelIDs map[string]int64,
) (map[string]int64, error) {
	id, err := im.nextID(threedi.LayerCrossSectionLocation)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]int64, len(locs))
	for _, loc := range locs {
		branch, ok := net.Branch(loc.BranchID)
		if !ok {
			return nil, fmt.Errorf("cross-section location %s: branch %s not in network", loc.ID, loc.BranchID)
		}
		channelID, ok := channelIDs[loc.BranchID]
		if !ok {
			return nil, fmt.Errorf("cross-section location %s: branch %s was not imported", loc.ID, loc.BranchID)
		}
		f := store.NewFeature(id)
		f.Set("code", loc.ID)
		f.Set(threedi.FieldChannelID, channelID)
		f.Geom = branch.Geometry.Interpolate(loc.Chainage)
		if err := im.Store.Create(threedi.LayerCrossSectionLocation, f); err != nil {
			return nil, err
		}
		ids[loc.ID] = id
		id++
	}
	im.Log.Info("imported cross-section locations", logging.Count(len(ids)))
	return ids, nil
}

// ClearLayers empties the given target layers. Absent layers are
// skipped with a log line, matching how partially filled templates are
// handled everywhere else.
func (im *Importer) ClearLayers(layers []string) error {
	for _, layer := range layers {
		if !im.Store.HasLayer(layer) {
			im.Log.Info("layer not present, skipping clear", logging.Layer(layer))
			continue
		}
		n, err := store.ClearLayer(im.Store, layer)
		if err != nil {
			return err
		}
		im.Log.Info("cleared layer", logging.Layer(layer), logging.Count(n))
	}
	return nil
}

// DefaultClearLayers are the layers a fresh conversion empties first.
var DefaultClearLayers = []string{
	threedi.LayerConnectionNode,
	threedi.LayerChannel,
	threedi.LayerCrossSectionLocation,
	threedi.LayerCulvert,
	threedi.LayerOrifice,
	threedi.LayerWeir,
	threedi.LayerPumpstation,
	threedi.LayerPumpstationMap,
}
