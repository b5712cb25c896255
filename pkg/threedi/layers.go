// Package threedi names the layers and node-reference fields of the
// target schematisation and groups them the way the topology editor
// needs them: network edges, N:1 surface mappings and point features.
package threedi

import "github.com/waterschap/hydroconv/pkg/store"

// Layer names in the target schematisation.
const (
	LayerConnectionNode       = "connection_node"
	LayerChannel              = "channel"
	LayerCrossSectionLocation = "cross_section_location"
	LayerCulvert              = "culvert"
	LayerOrifice              = "orifice"
	LayerPipe                 = "pipe"
	LayerWeir                 = "weir"
	LayerPumpstation          = "pumpstation"
	LayerPumpstationMap       = "pumpstation_map"
	LayerSurfaceMap           = "surface_map"
	LayerImperviousSurfaceMap = "impervious_surface_map"
	LayerManhole              = "manhole"
	LayerBoundaryCondition1D  = "1d_boundary_condition"
	LayerLateral1D            = "1d_lateral"
)

// Node-reference field names. A layer carries either the single-role
// field or the start/end pair, never both.
const (
	FieldConnectionNode      = "connection_node_id"
	FieldConnectionNodeStart = "connection_node_start_id"
	FieldConnectionNodeEnd   = "connection_node_end_id"
	FieldChannelID           = "channel_id"
)

// NetworkLayers are the edge-like layers whose features connect two
// nodes. Their reference counts drive the compactor's degree tie-break.
var NetworkLayers = []string{
	LayerChannel,
	LayerCulvert,
	LayerOrifice,
	LayerPipe,
	LayerPumpstationMap,
	LayerWeir,
}

// MappingLayers are N:1 mapping features referencing a single node.
var MappingLayers = []string{
	LayerImperviousSurfaceMap,
	LayerSurfaceMap,
}

// PointLayers are point features referencing a single node.
var PointLayers = []string{
	LayerBoundaryCondition1D,
	LayerLateral1D,
	LayerManhole,
	LayerPumpstation,
}

// AllReferencingLayers is every layer that may carry a node reference.
var AllReferencingLayers = concat(NetworkLayers, MappingLayers, PointLayers)

// ReferenceFields are the node-reference field names that may appear on
// a layer schema.
var ReferenceFields = []string{
	FieldConnectionNode,
	FieldConnectionNodeStart,
	FieldConnectionNodeEnd,
}

// IsNetworkLayer reports whether the named layer is edge-like.
func IsNetworkLayer(name string) bool {
	for _, l := range NetworkLayers {
		if l == name {
			return true
		}
	}
	return false
}

func concat(groups ...[]string) []string {
	var all []string
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

// Profile and friction columns shared by cross-section locations and
// imported structures.
var ProfileFields = []store.FieldDef{
	{Name: "reference_level", Type: store.TypeFloat},
	{Name: "bank_level", Type: store.TypeFloat},
	{Name: "cross_section_shape", Type: store.TypeInt},
	{Name: "cross_section_width", Type: store.TypeFloat},
	{Name: "cross_section_height", Type: store.TypeFloat},
	{Name: "cross_section_table", Type: store.TypeString},
	{Name: "friction_type", Type: store.TypeInt},
	{Name: "friction_value", Type: store.TypeFloat},
}

// CoreSchemas describes the minimal target layers the importer writes
// into. Real schematisation templates ship these layers pre-created;
// the schemas here let the tool (and its tests) start from an empty
// container.
var CoreSchemas = map[string]struct {
	Fields []store.FieldDef
	Kind   store.GeomKind
}{
	LayerConnectionNode: {
		Fields: []store.FieldDef{
			{Name: "code", Type: store.TypeString},
		},
		Kind: store.GeomPoint,
	},
	LayerChannel: {
		Fields: []store.FieldDef{
			{Name: "code", Type: store.TypeString},
			{Name: "display_name", Type: store.TypeString},
			{Name: FieldConnectionNodeStart, Type: store.TypeInt},
			{Name: FieldConnectionNodeEnd, Type: store.TypeInt},
		},
		Kind: store.GeomLineString,
	},
	LayerCrossSectionLocation: {
		Fields: append([]store.FieldDef{
			{Name: "code", Type: store.TypeString},
			{Name: FieldChannelID, Type: store.TypeInt},
		}, ProfileFields...),
		Kind: store.GeomPoint,
	},
	LayerOrifice: {
		Fields: []store.FieldDef{
			{Name: "code", Type: store.TypeString},
			{Name: "display_name", Type: store.TypeString},
			{Name: "sewerage", Type: store.TypeBool},
			{Name: "zoom_category", Type: store.TypeInt},
			{Name: FieldConnectionNodeStart, Type: store.TypeInt},
			{Name: FieldConnectionNodeEnd, Type: store.TypeInt},
		},
		Kind: store.GeomLineString,
	},
	LayerPumpstation: {
		Fields: []store.FieldDef{
			{Name: "code", Type: store.TypeString},
			{Name: "display_name", Type: store.TypeString},
			{Name: "start_level", Type: store.TypeFloat},
			{Name: "lower_stop_level", Type: store.TypeFloat},
			{Name: "upper_stop_level", Type: store.TypeFloat},
			{Name: "capacity", Type: store.TypeFloat},
			{Name: "type", Type: store.TypeInt},
			{Name: "sewerage", Type: store.TypeBool},
			{Name: "zoom_category", Type: store.TypeInt},
			{Name: FieldConnectionNode, Type: store.TypeInt},
		},
		Kind: store.GeomPoint,
	},
	LayerPumpstationMap: {
		Fields: []store.FieldDef{
			{Name: "code", Type: store.TypeString},
			{Name: "display_name", Type: store.TypeString},
			{Name: "pumpstation_id", Type: store.TypeInt},
			{Name: FieldConnectionNodeStart, Type: store.TypeInt},
			{Name: FieldConnectionNodeEnd, Type: store.TypeInt},
		},
		Kind: store.GeomLineString,
	},
}

// EnsureCoreLayers creates any core layer missing from the store.
func EnsureCoreLayers(s store.Store) error {
	for name, schema := range CoreSchemas {
		if s.HasLayer(name) {
			continue
		}
		if err := s.CreateLayer(name, schema.Fields, schema.Kind); err != nil {
			return err
		}
	}
	return nil
}
