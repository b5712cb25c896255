package compact

import (
	"slices"

	"golang.org/x/exp/maps"

	"github.com/waterschap/hydroconv/pkg/store"
	"github.com/waterschap/hydroconv/pkg/threedi"
)

// Topology is an undirected view of the node graph spanned by the
// network layers. Compaction must never change the number of connected
// components; this view makes that checkable before and after a run.
type Topology struct {
	adjacency map[int64][]int64
}

// BuildTopology scans the network layers and every connection node into
// an adjacency structure. Isolated nodes appear with no neighbours.
func BuildTopology(s store.Store) (*Topology, error) {
	t := &Topology{adjacency: make(map[int64][]int64)}

	if s.HasLayer(threedi.LayerConnectionNode) {
		nodes, err := s.Features(threedi.LayerConnectionNode)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			t.adjacency[n.ID] = nil
		}
	}
	for _, layer := range threedi.NetworkLayers {
		if !s.HasLayer(layer) {
			continue
		}
		feats, err := s.Features(layer)
		if err != nil {
			return nil, err
		}
		for _, f := range feats {
			start, okS := f.Int64(threedi.FieldConnectionNodeStart)
			end, okE := f.Int64(threedi.FieldConnectionNodeEnd)
			if !okS || !okE {
				continue
			}
			t.adjacency[start] = append(t.adjacency[start], end)
			t.adjacency[end] = append(t.adjacency[end], start)
		}
	}
	return t, nil
}

// NodeCount returns the number of nodes in the view.
func (t *Topology) NodeCount() int {
	return len(t.adjacency)
}

// Components returns the connected components as sorted node ID slices,
// ordered by their smallest member. Breadth-first over each unvisited
// node; isolated nodes form singleton components.
func (t *Topology) Components() [][]int64 {
	nodes := maps.Keys(t.adjacency)
	slices.Sort(nodes)

	visited := make(map[int64]bool, len(nodes))
	var components [][]int64
	for _, start := range nodes {
		if visited[start] {
			continue
		}
		var component []int64
		queue := []int64{start}
		visited[start] = true
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			component = append(component, node)
			for _, next := range t.adjacency[node] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		slices.Sort(component)
		components = append(components, component)
	}
	return components
}

// ComponentCount returns the number of connected components.
func (t *Topology) ComponentCount() int {
	return len(t.Components())
}
