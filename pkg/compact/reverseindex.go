package compact

import (
	"slices"

	"golang.org/x/exp/maps"

	"github.com/waterschap/hydroconv/pkg/logging"
	"github.com/waterschap/hydroconv/pkg/store"
	"github.com/waterschap/hydroconv/pkg/threedi"
)

// Role identifies which node-reference field of a feature points at a
// node: the single field of point and mapping features, or one end of an
// edge.
type Role uint8

const (
	RoleSingle Role = iota
	RoleStart
	RoleEnd
)

// Field returns the attribute field name carrying this role.
func (r Role) Field() string {
	switch r {
	case RoleStart:
		return threedi.FieldConnectionNodeStart
	case RoleEnd:
		return threedi.FieldConnectionNodeEnd
	default:
		return threedi.FieldConnectionNode
	}
}

func (r Role) String() string {
	switch r {
	case RoleStart:
		return "start"
	case RoleEnd:
		return "end"
	default:
		return "single"
	}
}

// RoleForField maps a node-reference field name onto its role.
func RoleForField(name string) (Role, bool) {
	switch name {
	case threedi.FieldConnectionNode:
		return RoleSingle, true
	case threedi.FieldConnectionNodeStart:
		return RoleStart, true
	case threedi.FieldConnectionNodeEnd:
		return RoleEnd, true
	}
	return 0, false
}

// Ref identifies one node reference: a feature in a layer pointing at a
// node through the field named by Role. Stable across feature mutation
// because it never captures field values, only identity.
type Ref struct {
	Layer     string
	FeatureID int64
	Role      Role
}

// ReverseIndex maps node IDs to the set of references pointing at them.
// One index instance belongs to one compaction run; it is rebuilt from
// the store at construction and maintained incrementally afterwards.
type ReverseIndex struct {
	buckets map[int64]map[Ref]struct{}
	log     logging.Logger
}

// NewReverseIndex builds the index by scanning every referencing layer
// present in the store. Layers missing from the store are skipped:
// partial schematisations are common during import.
func NewReverseIndex(s store.Store, layers []string, log logging.Logger) (*ReverseIndex, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	idx := &ReverseIndex{
		buckets: make(map[int64]map[Ref]struct{}),
		log:     log,
	}
	for _, layer := range layers {
		if !s.HasLayer(layer) {
			log.Debug("layer absent, skipping index scan", logging.Layer(layer))
			continue
		}
		fields, err := s.Schema(layer)
		if err != nil {
			return nil, err
		}
		var roles []Role
		for _, name := range fields {
			if role, ok := RoleForField(name); ok {
				roles = append(roles, role)
			}
		}
		if len(roles) == 0 {
			continue
		}
		feats, err := s.Features(layer)
		if err != nil {
			return nil, err
		}
		for _, f := range feats {
			for _, role := range roles {
				nodeID, ok := f.Int64(role.Field())
				if !ok {
					continue
				}
				idx.Add(nodeID, Ref{Layer: layer, FeatureID: f.ID, Role: role})
			}
		}
	}
	return idx, nil
}

// Add records a reference under the given node.
func (idx *ReverseIndex) Add(nodeID int64, ref Ref) {
	bucket, ok := idx.buckets[nodeID]
	if !ok {
		bucket = make(map[Ref]struct{})
		idx.buckets[nodeID] = bucket
	}
	bucket[ref] = struct{}{}
}

// Remove drops a reference from the given node's bucket. A missing
// bucket or entry is tolerated and logged: deletions may race with the
// caller's own bookkeeping during partial failures.
func (idx *ReverseIndex) Remove(nodeID int64, ref Ref) {
	bucket, ok := idx.buckets[nodeID]
	if !ok {
		idx.log.Warn("remove from absent index bucket",
			logging.NodeID(nodeID),
			logging.Layer(ref.Layer),
			logging.FeatureID(ref.FeatureID))
		return
	}
	delete(bucket, ref)
	if len(bucket) == 0 {
		delete(idx.buckets, nodeID)
	}
}

// Move relocates a reference from one node's bucket to another's.
func (idx *ReverseIndex) Move(from, to int64, ref Ref) {
	idx.Remove(from, ref)
	idx.Add(to, ref)
}

// Has reports whether any reference points at the node.
func (idx *ReverseIndex) Has(nodeID int64) bool {
	return len(idx.buckets[nodeID]) > 0
}

// References returns every reference pointing at the node, in
// deterministic order. An untracked node yields an empty slice.
func (idx *ReverseIndex) References(nodeID int64) []Ref {
	return idx.ReferencesIn(nodeID, nil)
}

// ReferencesIn returns the node's references restricted to the given
// layers; a nil filter means all layers.
func (idx *ReverseIndex) ReferencesIn(nodeID int64, layers []string) []Ref {
	bucket := idx.buckets[nodeID]
	refs := make([]Ref, 0, len(bucket))
	for ref := range bucket {
		if layers != nil && !slices.Contains(layers, ref.Layer) {
			continue
		}
		refs = append(refs, ref)
	}
	sortRefs(refs)
	return refs
}

// Nodes returns all node IDs with at least one reference, sorted.
func (idx *ReverseIndex) Nodes() []int64 {
	ids := maps.Keys(idx.buckets)
	slices.Sort(ids)
	return ids
}

// Snapshot copies the full index state, for verification in tests.
func (idx *ReverseIndex) Snapshot() map[int64][]Ref {
	out := make(map[int64][]Ref, len(idx.buckets))
	for nodeID := range idx.buckets {
		out[nodeID] = idx.References(nodeID)
	}
	return out
}

func sortRefs(refs []Ref) {
	slices.SortFunc(refs, func(a, b Ref) int {
		if a.Layer != b.Layer {
			if a.Layer < b.Layer {
				return -1
			}
			return 1
		}
		if a.FeatureID != b.FeatureID {
			if a.FeatureID < b.FeatureID {
				return -1
			}
			return 1
		}
		return int(a.Role) - int(b.Role)
	})
}
