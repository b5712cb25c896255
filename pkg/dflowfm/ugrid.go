package dflowfm

import (
	"fmt"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/waterschap/hydroconv/pkg/geometry"
)

// NetworkNode is one 1D network node from the UGRID file.
type NetworkNode struct {
	ID       string
	LongName string
	X, Y     float64
}

// Branch is one 1D network branch: an edge between two named nodes with
// its own polyline geometry and attributes.
type Branch struct {
	ID           string
	LongName     string
	SourceNodeID string
	TargetNodeID string
	Length       float64
	Order        int
	Type         int
	Geometry     geometry.LineString
}

// Network is the 1D network of a D-Flow FM model.
type Network struct {
	Nodes    []NetworkNode
	Branches []Branch

	nodeByID   map[string]int
	branchByID map[string]int
}

// NewNetwork indexes nodes and branches for lookup by ID.
func NewNetwork(nodes []NetworkNode, branches []Branch) *Network {
	n := &Network{
		Nodes:      nodes,
		Branches:   branches,
		nodeByID:   make(map[string]int, len(nodes)),
		branchByID: make(map[string]int, len(branches)),
	}
	for i, node := range nodes {
		n.nodeByID[node.ID] = i
	}
	for i, branch := range branches {
		n.branchByID[branch.ID] = i
	}
	return n
}

// Node looks a node up by ID.
func (n *Network) Node(id string) (NetworkNode, bool) {
	i, ok := n.nodeByID[id]
	if !ok {
		return NetworkNode{}, false
	}
	return n.Nodes[i], true
}

// Branch looks a branch up by ID.
func (n *Network) Branch(id string) (Branch, bool) {
	i, ok := n.branchByID[id]
	if !ok {
		return Branch{}, false
	}
	return n.Branches[i], true
}

// ugridVars resolves variable names case-insensitively: some exporters
// capitalize the first letter, others write all lower case.
type ugridVars struct {
	group api.Group
	names map[string]string
}

func newUgridVars(group api.Group) *ugridVars {
	names := make(map[string]string)
	for _, name := range group.ListVariables() {
		names[strings.ToLower(name)] = name
	}
	return &ugridVars{group: group, names: names}
}

func (u *ugridVars) get(name string) (any, error) {
	actual, ok := u.names[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("variable %s not present", name)
	}
	v, err := u.group.GetVariable(actual)
	if err != nil {
		return nil, fmt.Errorf("read variable %s: %w", actual, err)
	}
	return v.Values, nil
}

func (u *ugridVars) floats(name string) ([]float64, error) {
	raw, err := u.get(name)
	if err != nil {
		return nil, err
	}
	out, ok := asFloats(raw)
	if !ok {
		return nil, fmt.Errorf("variable %s: unexpected type %T", name, raw)
	}
	return out, nil
}

func (u *ugridVars) ints(name string) ([]int, error) {
	raw, err := u.get(name)
	if err != nil {
		return nil, err
	}
	out, ok := asInts(raw)
	if !ok {
		return nil, fmt.Errorf("variable %s: unexpected type %T", name, raw)
	}
	return out, nil
}

func (u *ugridVars) strings(name string) ([]string, error) {
	raw, err := u.get(name)
	if err != nil {
		return nil, err
	}
	out, ok := asStrings(raw)
	if !ok {
		return nil, fmt.Errorf("variable %s: unexpected type %T", name, raw)
	}
	for i := range out {
		out[i] = strings.TrimSpace(out[i])
	}
	return out, nil
}

func (u *ugridVars) intPairs(name string) ([][2]int, error) {
	raw, err := u.get(name)
	if err != nil {
		return nil, err
	}
	out, ok := asIntPairs(raw)
	if !ok {
		return nil, fmt.Errorf("variable %s: unexpected type %T", name, raw)
	}
	return out, nil
}

// ReadNetwork reads the 1D network from a D-Flow FM net file.
func ReadNetwork(path string) (*Network, error) {
	group, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer group.Close()

	vars := newUgridVars(group)

	nodeIDs, err := vars.strings("network_node_id")
	if err != nil {
		return nil, err
	}
	nodeX, err := vars.floats("network_node_x")
	if err != nil {
		return nil, err
	}
	nodeY, err := vars.floats("network_node_y")
	if err != nil {
		return nil, err
	}
	if len(nodeX) != len(nodeIDs) || len(nodeY) != len(nodeIDs) {
		return nil, fmt.Errorf("%s: node id/coordinate counts differ", path)
	}
	// Long names are optional in some exports.
	nodeLongNames, err := vars.strings("network_node_long_name")
	if err != nil {
		nodeLongNames = make([]string, len(nodeIDs))
	}

	nodes := make([]NetworkNode, len(nodeIDs))
	for i, id := range nodeIDs {
		nodes[i] = NetworkNode{
			ID:       id,
			LongName: nodeLongNames[i],
			X:        nodeX[i],
			Y:        nodeY[i],
		}
	}

	branchIDs, err := vars.strings("network_branch_id")
	if err != nil {
		return nil, err
	}
	branchLongNames, err := vars.strings("network_branch_long_name")
	if err != nil {
		branchLongNames = make([]string, len(branchIDs))
	}
	lengths, err := vars.floats("network_edge_length")
	if err != nil {
		return nil, err
	}
	orders, err := vars.ints("network_branch_order")
	if err != nil {
		orders = make([]int, len(branchIDs))
	}
	types, err := vars.ints("network_branch_type")
	if err != nil {
		types = make([]int, len(branchIDs))
	}
	edgeNodes, err := vars.intPairs("network_edge_nodes")
	if err != nil {
		return nil, err
	}
	geomCounts, err := vars.ints("network_geom_node_count")
	if err != nil {
		return nil, err
	}
	geomX, err := vars.floats("network_geom_x")
	if err != nil {
		return nil, err
	}
	geomY, err := vars.floats("network_geom_y")
	if err != nil {
		return nil, err
	}

	if len(edgeNodes) != len(branchIDs) || len(geomCounts) != len(branchIDs) ||
		len(lengths) != len(branchIDs) {
		return nil, fmt.Errorf("%s: branch variable counts differ", path)
	}

	// Branch geometries are packed back to back in network_geom_x/y;
	// network_geom_node_count gives each branch's slice.
	branches := make([]Branch, 0, len(branchIDs))
	offset := 0
	for i, id := range branchIDs {
		count := geomCounts[i]
		if offset+count > len(geomX) || offset+count > len(geomY) {
			return nil, fmt.Errorf("%s: branch %s geometry runs past the coordinate arrays", path, id)
		}
		pts := make([]geometry.Point, count)
		for j := 0; j < count; j++ {
			pts[j] = geometry.NewPoint(geomX[offset+j], geomY[offset+j])
		}
		offset += count

		src, tgt := edgeNodes[i][0], edgeNodes[i][1]
		if src < 0 || src >= len(nodeIDs) || tgt < 0 || tgt >= len(nodeIDs) {
			return nil, fmt.Errorf("%s: branch %s references node index out of range", path, id)
		}
		branches = append(branches, Branch{
			ID:           id,
			LongName:     branchLongNames[i],
			SourceNodeID: nodeIDs[src],
			TargetNodeID: nodeIDs[tgt],
			Length:       lengths[i],
			Order:        orders[i],
			Type:         types[i],
			Geometry:     geometry.NewLineString(pts),
		})
	}
	return NewNetwork(nodes, branches), nil
}

func asFloats(v any) ([]float64, bool) {
	switch t := v.(type) {
	case []float64:
		return t, true
	case []float32:
		out := make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
		return out, true
	case []int32:
		out := make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
		return out, true
	case []int64:
		out := make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
		return out, true
	}
	return nil, false
}

func asInts(v any) ([]int, bool) {
	switch t := v.(type) {
	case []int32:
		out := make([]int, len(t))
		for i, x := range t {
			out[i] = int(x)
		}
		return out, true
	case []int64:
		out := make([]int, len(t))
		for i, x := range t {
			out[i] = int(x)
		}
		return out, true
	case []int16:
		out := make([]int, len(t))
		for i, x := range t {
			out[i] = int(x)
		}
		return out, true
	case []float64:
		out := make([]int, len(t))
		for i, x := range t {
			out[i] = int(x)
		}
		return out, true
	}
	return nil, false
}

func asStrings(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case [][]byte:
		out := make([]string, len(t))
		for i, b := range t {
			out[i] = string(b)
		}
		return out, true
	case string:
		return []string{t}, true
	}
	return nil, false
}

func asIntPairs(v any) ([][2]int, bool) {
	switch t := v.(type) {
	case [][]int32:
		out := make([][2]int, len(t))
		for i, row := range t {
			if len(row) != 2 {
				return nil, false
			}
			out[i] = [2]int{int(row[0]), int(row[1])}
		}
		return out, true
	case [][]int64:
		out := make([][2]int, len(t))
		for i, row := range t {
			if len(row) != 2 {
				return nil, false
			}
			out[i] = [2]int{int(row[0]), int(row[1])}
		}
		return out, true
	case []int32:
		if len(t)%2 != 0 {
			return nil, false
		}
		out := make([][2]int, len(t)/2)
		for i := range out {
			out[i] = [2]int{int(t[2*i]), int(t[2*i+1])}
		}
		return out, true
	}
	return nil, false
}
