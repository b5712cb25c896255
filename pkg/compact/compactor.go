// Package compact removes degenerate edges from a 1D network
// schematisation while preserving its topology. Hydraulic calculation
// cores become unstable on very short channels; merging their endpoints
// into a single connection node keeps every other feature of the
// schematisation consistent.
package compact

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/exp/maps"

	"github.com/waterschap/hydroconv/pkg/geometry"
	"github.com/waterschap/hydroconv/pkg/logging"
	"github.com/waterschap/hydroconv/pkg/store"
	"github.com/waterschap/hydroconv/pkg/threedi"
)

// TiePolicy decides which endpoint is merged away when both carry the
// same number of network references.
type TiePolicy int

const (
	// TieDeleteStart merges the start node into the end node on a tie.
	TieDeleteStart TiePolicy = iota
	// TieDeleteEnd merges the end node into the start node on a tie.
	TieDeleteEnd
)

// Options configures a Compactor.
type Options struct {
	// Threshold is the planar length below which an edge qualifies for
	// removal. Zero-length edges are always removed regardless.
	Threshold float64

	// TiePolicy breaks equal-degree endpoint ties. Default: delete start.
	TiePolicy TiePolicy

	// DerivedLayers are edge layers whose geometry is a straight line
	// between their two nodes and must be rebuilt after node moves.
	// Nil means the pumpstation mapping layer.
	DerivedLayers []string

	Logger  logging.Logger
	Journal *Journal
}

// RunStats summarises one compaction run.
type RunStats struct {
	ZeroLengthDeleted int
	ShortDeleted      int
	GuardSkipped      int
	Repointed         int
	DerivedRefreshed  int
}

// Compactor owns one compaction run over one store. Edge eligibility is
// decided once at construction against the then-current geometry;
// mutations during the run never promote new edges into scope.
type Compactor struct {
	store   store.Store
	index   *ReverseIndex
	log     logging.Logger
	journal *Journal

	threshold float64
	tie       TiePolicy
	derived   []string

	// shortEdges holds the IDs that qualified at construction and have
	// not been processed yet.
	shortEdges map[int64]struct{}

	// replaced maps each merged-away node to its direct survivor.
	// Chains form when a survivor is itself merged later.
	replaced map[int64]int64

	// touched holds the derived features repointed this run. Only these
	// get their geometry rebuilt in the refresh phase.
	touched map[featureKey]struct{}

	stats RunStats
}

type featureKey struct {
	layer string
	id    int64
}

// New builds a compactor over the store: scans the channel layer for
// eligible edges and constructs the reverse index over every
// referencing layer.
func New(s store.Store, opts Options) (*Compactor, error) {
	log := opts.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	log = log.With(logging.Component("compact"))

	idx, err := NewReverseIndex(s, threedi.AllReferencingLayers, log)
	if err != nil {
		return nil, fmt.Errorf("build reverse index: %w", err)
	}

	c := &Compactor{
		store:      s,
		index:      idx,
		log:        log,
		journal:    opts.Journal,
		threshold:  opts.Threshold,
		tie:        opts.TiePolicy,
		derived:    opts.DerivedLayers,
		shortEdges: make(map[int64]struct{}),
		replaced:   make(map[int64]int64),
		touched:    make(map[featureKey]struct{}),
	}
	if c.derived == nil {
		c.derived = []string{threedi.LayerPumpstationMap}
	}

	channels, err := s.Features(threedi.LayerChannel)
	if err != nil {
		return nil, fmt.Errorf("scan channels: %w", err)
	}
	for _, ch := range channels {
		line, ok := ch.Geom.(geometry.LineString)
		if !ok {
			continue
		}
		if line.Length() < opts.Threshold {
			c.shortEdges[ch.ID] = struct{}{}
		}
	}
	log.Info("compactor ready",
		logging.Threshold(opts.Threshold),
		logging.Count(len(c.shortEdges)))
	return c, nil
}

// ShortEdgeIDs returns the edges that qualified at construction and are
// still pending, sorted.
func (c *Compactor) ShortEdgeIDs() []int64 {
	ids := maps.Keys(c.shortEdges)
	slices.Sort(ids)
	return ids
}

// Index exposes the run's reverse index, for inspection and tests.
func (c *Compactor) Index() *ReverseIndex {
	return c.index
}

// Run executes the compaction: zero-length edges first, then the short
// edges in ascending ID order, then derived geometry refresh. With
// explicit edge IDs only those edges are processed; an ID that is
// neither a pending short edge nor currently zero-length yields a
// UsageError for that edge and the rest of the run proceeds.
func (c *Compactor) Run(edgeIDs ...int64) (RunStats, error) {
	started := time.Now()
	c.stats = RunStats{}
	c.touched = make(map[featureKey]struct{})

	var subset map[int64]struct{}
	var usageErrs []error
	if len(edgeIDs) > 0 {
		subset = make(map[int64]struct{}, len(edgeIDs))
		zero, err := c.zeroLengthIDs()
		if err != nil {
			return c.stats, err
		}
		for _, id := range edgeIDs {
			_, short := c.shortEdges[id]
			_, isZero := zero[id]
			if !short && !isZero {
				usageErrs = append(usageErrs, &UsageError{EdgeID: id})
				continue
			}
			subset[id] = struct{}{}
		}
	}

	if err := c.deleteZeroLength(subset); err != nil {
		return c.stats, err
	}
	for _, id := range c.ShortEdgeIDs() {
		if subset != nil {
			if _, ok := subset[id]; !ok {
				continue
			}
		}
		if err := c.deleteEdge(id); err != nil {
			return c.stats, err
		}
	}
	if err := c.refreshDerived(); err != nil {
		return c.stats, err
	}

	metricRunDuration.Observe(time.Since(started).Seconds())
	c.log.Info("compaction run complete",
		logging.Int("zero_length_deleted", c.stats.ZeroLengthDeleted),
		logging.Int("short_deleted", c.stats.ShortDeleted),
		logging.Int("guard_skipped", c.stats.GuardSkipped),
		logging.Int("repointed", c.stats.Repointed),
		logging.Latency(time.Since(started)))
	return c.stats, errors.Join(usageErrs...)
}

// zeroLengthIDs scans the channel layer for edges whose endpoints are
// the same node.
func (c *Compactor) zeroLengthIDs() (map[int64]struct{}, error) {
	channels, err := c.store.Features(threedi.LayerChannel)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]struct{})
	for _, ch := range channels {
		start, okS := ch.Int64(threedi.FieldConnectionNodeStart)
		end, okE := ch.Int64(threedi.FieldConnectionNodeEnd)
		if okS && okE && start == end {
			out[ch.ID] = struct{}{}
		}
	}
	return out, nil
}

// deleteZeroLength removes every edge that starts and ends on the same
// node. Such edges never carry flow and their removal needs no merge:
// both endpoints are already one node, which stays in place.
func (c *Compactor) deleteZeroLength(subset map[int64]struct{}) error {
	channels, err := c.store.Features(threedi.LayerChannel)
	if err != nil {
		return err
	}
	for _, ch := range channels {
		start, okS := ch.Int64(threedi.FieldConnectionNodeStart)
		end, okE := ch.Int64(threedi.FieldConnectionNodeEnd)
		if !okS || !okE || start != end {
			continue
		}
		if subset != nil {
			if _, ok := subset[ch.ID]; !ok {
				continue
			}
		}
		if err := c.removeDegenerateEdge(ch.ID, start); err != nil {
			return err
		}
		c.stats.ZeroLengthDeleted++
		metricEdgesDeleted.WithLabelValues(reasonZeroLength).Inc()
	}
	return nil
}

// removeDegenerateEdge drops a start==end edge, its cross-section
// locations and its own index entries. The shared node survives.
func (c *Compactor) removeDegenerateEdge(edgeID, nodeID int64) error {
	if err := c.deleteCrossSections(edgeID); err != nil {
		return err
	}
	if err := c.store.Delete(threedi.LayerChannel, edgeID); err != nil {
		return err
	}
	c.index.Remove(nodeID, Ref{Layer: threedi.LayerChannel, FeatureID: edgeID, Role: RoleStart})
	c.index.Remove(nodeID, Ref{Layer: threedi.LayerChannel, FeatureID: edgeID, Role: RoleEnd})
	delete(c.shortEdges, edgeID)
	c.journalRecord(JournalEntry{
		Op: JournalDeleteEdge, Layer: threedi.LayerChannel,
		FeatureID: edgeID, NodeID: nodeID,
	})
	c.log.Info("deleted zero-length channel",
		logging.ChannelID(edgeID), logging.NodeID(nodeID))
	return nil
}

// deleteEdge merges one short edge away: picks the endpoint to delete,
// redirects every reference to the survivor, then removes the edge, its
// cross-section locations and the deleted node.
func (c *Compactor) deleteEdge(edgeID int64) error {
	if _, tracked := c.shortEdges[edgeID]; !tracked {
		return &UsageError{EdgeID: edgeID}
	}

	ch, err := c.store.Get(threedi.LayerChannel, edgeID)
	if err != nil {
		if store.IsNotFound(err) {
			delete(c.shortEdges, edgeID)
			return nil
		}
		return err
	}
	startID, okS := ch.Int64(threedi.FieldConnectionNodeStart)
	endID, okE := ch.Int64(threedi.FieldConnectionNodeEnd)
	if !okS || !okE {
		return &IntegrityError{
			Layer: threedi.LayerChannel, FeatureID: edgeID,
			Detail: "channel missing endpoint reference",
		}
	}

	// Earlier merges may have collapsed this edge onto itself.
	if startID == endID {
		if err := c.removeDegenerateEdge(edgeID, startID); err != nil {
			return err
		}
		c.stats.ZeroLengthDeleted++
		metricEdgesDeleted.WithLabelValues(reasonZeroLength).Inc()
		return nil
	}

	self := []Ref{
		{Layer: threedi.LayerChannel, FeatureID: edgeID, Role: RoleStart},
		{Layer: threedi.LayerChannel, FeatureID: edgeID, Role: RoleEnd},
	}
	startRefs := excludeRefs(c.index.ReferencesIn(startID, threedi.NetworkLayers), self)
	endRefs := excludeRefs(c.index.ReferencesIn(endID, threedi.NetworkLayers), self)

	// Connectivity guard: a feature touching both endpoints would end up
	// with two references to one node if they merged. Skip the edge.
	if sharesReferrer(startRefs, endRefs) {
		c.stats.GuardSkipped++
		metricGuardSkips.Inc()
		c.journalRecord(JournalEntry{
			Op: JournalGuardSkip, Layer: threedi.LayerChannel, FeatureID: edgeID,
		})
		c.log.Info("skipped short channel, endpoints share a referrer",
			logging.ChannelID(edgeID),
			logging.NodeID(startID),
			logging.Int64("end_node_id", endID))
		delete(c.shortEdges, edgeID)
		return nil
	}

	// The endpoint with fewer network references is merged away. On a
	// tie the policy decides; the default deletes the start node.
	deleteID, deleteRole := startID, RoleStart
	keepID, keepRole := endID, RoleEnd
	switch {
	case len(startRefs) > len(endRefs):
		deleteID, deleteRole = endID, RoleEnd
		keepID, keepRole = startID, RoleStart
	case len(startRefs) == len(endRefs) && c.tie == TieDeleteEnd:
		deleteID, deleteRole = endID, RoleEnd
		keepID, keepRole = startID, RoleStart
	}

	survivorID := c.resolveReplacement(keepID)
	survivor, err := c.store.Get(threedi.LayerConnectionNode, survivorID)
	if err != nil {
		if store.IsNotFound(err) {
			return &IntegrityError{
				Layer: threedi.LayerConnectionNode, FeatureID: survivorID,
				NodeID: survivorID, Detail: "surviving node missing",
			}
		}
		return err
	}
	survivorLoc, hasLoc := survivor.Geom.(geometry.Point)
	if !hasLoc {
		c.log.Warn("surviving node has no point geometry, repointing attributes only",
			logging.NodeID(survivorID))
	}

	for _, ref := range excludeRefs(c.index.References(deleteID), self) {
		if err := c.repoint(ref, deleteID, survivorID, survivorLoc, hasLoc); err != nil {
			return err
		}
	}

	if err := c.deleteCrossSections(edgeID); err != nil {
		return err
	}
	if err := c.store.Delete(threedi.LayerConnectionNode, deleteID); err != nil {
		if store.IsNotFound(err) {
			return &IntegrityError{
				Layer: threedi.LayerConnectionNode, FeatureID: deleteID,
				NodeID: deleteID, Detail: "node to merge away missing",
			}
		}
		return err
	}
	if err := c.store.Delete(threedi.LayerChannel, edgeID); err != nil {
		return err
	}

	// The edge's own entries leave the index with the edge. The deleted
	// node's bucket must come out empty: everything else was repointed.
	c.index.Remove(deleteID, Ref{Layer: threedi.LayerChannel, FeatureID: edgeID, Role: deleteRole})
	c.index.Remove(keepID, Ref{Layer: threedi.LayerChannel, FeatureID: edgeID, Role: keepRole})
	if c.index.Has(deleteID) {
		return &IntegrityError{
			NodeID: deleteID,
			Detail: "references remain after merge",
		}
	}

	c.replaced[deleteID] = survivorID
	delete(c.shortEdges, edgeID)
	c.stats.ShortDeleted++
	metricEdgesDeleted.WithLabelValues(reasonShort).Inc()
	c.journalRecord(JournalEntry{
		Op: JournalDeleteEdge, Layer: threedi.LayerChannel,
		FeatureID: edgeID, NodeID: deleteID, Replacement: survivorID,
	})
	c.journalRecord(JournalEntry{
		Op: JournalDeleteNode, Layer: threedi.LayerConnectionNode,
		FeatureID: deleteID, NodeID: deleteID, Replacement: survivorID,
	})
	c.log.Info("merged short channel away",
		logging.ChannelID(edgeID),
		logging.NodeID(deleteID),
		logging.Int64("survivor_node_id", survivorID))
	return nil
}

// resolveReplacement follows the replacement chain to the live node.
// Each merge strictly shrinks the node set, so the chain always
// terminates.
func (c *Compactor) resolveReplacement(nodeID int64) int64 {
	for {
		next, ok := c.replaced[nodeID]
		if !ok {
			return nodeID
		}
		nodeID = next
	}
}

// repoint redirects one reference from a node being merged away to the
// survivor, updating attribute, geometry and index together.
func (c *Compactor) repoint(ref Ref, from, to int64, loc geometry.Point, hasLoc bool) error {
	f, err := c.store.Get(ref.Layer, ref.FeatureID)
	if err != nil {
		if store.IsNotFound(err) {
			return &IntegrityError{
				Layer: ref.Layer, FeatureID: ref.FeatureID, NodeID: from,
				Detail: "indexed feature missing from store",
			}
		}
		return err
	}
	field := ref.Role.Field()
	if v, ok := f.Int64(field); !ok || v != from {
		return &IntegrityError{
			Layer: ref.Layer, FeatureID: ref.FeatureID, NodeID: from,
			Detail: fmt.Sprintf("field %s does not reference the merged node", field),
		}
	}
	f.Set(field, to)

	if hasLoc {
		switch g := f.Geom.(type) {
		case geometry.LineString:
			end := geometry.StartEndpoint
			if ref.Role == RoleEnd {
				end = geometry.EndEndpoint
			}
			f.Geom = g.MoveEndpoint(end, loc)
		case geometry.Point:
			if g.Is3D() {
				z, ok := loc.Z()
				if !ok {
					z = 0
				}
				f.Geom = geometry.NewPointZ(loc.X, loc.Y, z)
			} else {
				f.Geom = geometry.NewPoint(loc.X, loc.Y)
			}
		}
	}

	if err := c.store.Update(ref.Layer, f); err != nil {
		return err
	}
	if slices.Contains(c.derived, ref.Layer) {
		c.touched[featureKey{ref.Layer, ref.FeatureID}] = struct{}{}
	}
	c.index.Move(from, to, ref)
	c.stats.Repointed++
	metricRepoints.Inc()
	c.journalRecord(JournalEntry{
		Op: JournalRepoint, Layer: ref.Layer,
		FeatureID: ref.FeatureID, NodeID: from, Replacement: to,
	})
	return nil
}

// deleteCrossSections removes the cross-section locations owned by a
// channel. They describe positions along the channel and are meaningless
// once it is gone.
func (c *Compactor) deleteCrossSections(channelID int64) error {
	if !c.store.HasLayer(threedi.LayerCrossSectionLocation) {
		return nil
	}
	locs, err := c.store.FeaturesWhere(
		threedi.LayerCrossSectionLocation, threedi.FieldChannelID, channelID)
	if err != nil {
		return err
	}
	for _, loc := range locs {
		if err := c.store.Delete(threedi.LayerCrossSectionLocation, loc.ID); err != nil {
			return err
		}
		c.journalRecord(JournalEntry{
			Op: JournalDeleteChild, Layer: threedi.LayerCrossSectionLocation,
			FeatureID: loc.ID,
		})
	}
	return nil
}

// refreshDerived rebuilds the geometry of the derived features whose
// node references were redirected this run, as a straight segment
// between their current node positions. Features no merge touched keep
// their stored geometry, intermediate vertices included.
func (c *Compactor) refreshDerived() error {
	for _, layer := range c.derived {
		if !c.store.HasLayer(layer) {
			continue
		}
		var ids []int64
		for key := range c.touched {
			if key.layer == layer {
				ids = append(ids, key.id)
			}
		}
		slices.Sort(ids)
		for _, id := range ids {
			f, err := c.store.Get(layer, id)
			if err != nil {
				return err
			}
			startID, okS := f.Int64(threedi.FieldConnectionNodeStart)
			endID, okE := f.Int64(threedi.FieldConnectionNodeEnd)
			if !okS || !okE {
				continue
			}
			start, err := c.nodeLocation(layer, f.ID, startID)
			if err != nil {
				return err
			}
			end, err := c.nodeLocation(layer, f.ID, endID)
			if err != nil {
				return err
			}
			f.Geom = geometry.NewLineString([]geometry.Point{start.Flatten(), end.Flatten()})
			if err := c.store.Update(layer, f); err != nil {
				return err
			}
			c.stats.DerivedRefreshed++
		}
	}
	return nil
}

func (c *Compactor) nodeLocation(layer string, featureID, nodeID int64) (geometry.Point, error) {
	node, err := c.store.Get(threedi.LayerConnectionNode, nodeID)
	if err != nil {
		if store.IsNotFound(err) {
			return geometry.Point{}, &IntegrityError{
				Layer: layer, FeatureID: featureID, NodeID: nodeID,
				Detail: "referenced node missing",
			}
		}
		return geometry.Point{}, err
	}
	p, ok := node.Geom.(geometry.Point)
	if !ok {
		return geometry.Point{}, &IntegrityError{
			Layer: layer, FeatureID: featureID, NodeID: nodeID,
			Detail: "referenced node has no point geometry",
		}
	}
	return p, nil
}

func (c *Compactor) journalRecord(e JournalEntry) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(e); err != nil {
		c.log.Warn("journal write failed", logging.Error(err))
	}
}

// excludeRefs filters out the given refs from a sorted slice.
func excludeRefs(refs, drop []Ref) []Ref {
	out := refs[:0:len(refs)]
	for _, r := range refs {
		if !slices.Contains(drop, r) {
			out = append(out, r)
		}
	}
	return out
}

// sharesReferrer reports whether any feature identity appears in both
// reference sets, regardless of which field carries the reference.
func sharesReferrer(a, b []Ref) bool {
	type identity struct {
		layer string
		id    int64
	}
	seen := make(map[identity]struct{}, len(a))
	for _, r := range a {
		seen[identity{r.Layer, r.FeatureID}] = struct{}{}
	}
	for _, r := range b {
		if _, ok := seen[identity{r.Layer, r.FeatureID}]; ok {
			return true
		}
	}
	return false
}
