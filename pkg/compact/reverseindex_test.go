package compact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterschap/hydroconv/pkg/geometry"
	"github.com/waterschap/hydroconv/pkg/store"
	"github.com/waterschap/hydroconv/pkg/threedi"
)

func TestReverseIndexBuildsFromStore(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, 1, 0, 0)
	addNode(t, s, 2, 10, 0)
	addChannel(t, s, 10, 1, 2,
		geometry.NewPoint(0, 0), geometry.NewPoint(10, 0))
	addManhole(t, s, 30, 1, 0, 0)

	idx, err := NewReverseIndex(s, threedi.AllReferencingLayers, nil)
	require.NoError(t, err)

	assert.Equal(t, []Ref{
		{Layer: threedi.LayerChannel, FeatureID: 10, Role: RoleStart},
		{Layer: threedi.LayerManhole, FeatureID: 30, Role: RoleSingle},
	}, idx.References(1))
	assert.Equal(t, []Ref{
		{Layer: threedi.LayerChannel, FeatureID: 10, Role: RoleEnd},
	}, idx.References(2))
	assert.Empty(t, idx.References(99))
}

func TestReverseIndexSkipsAbsentLayers(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.CreateLayer(threedi.LayerConnectionNode,
		[]store.FieldDef{{Name: "code", Type: store.TypeString}}, store.GeomPoint))

	idx, err := NewReverseIndex(s, threedi.AllReferencingLayers, nil)
	require.NoError(t, err)
	assert.Empty(t, idx.Nodes())
}

func TestReverseIndexSkipsNullReferences(t *testing.T) {
	s := newTestStore(t)
	f := store.NewFeature(30)
	f.Geom = geometry.NewPoint(0, 0)
	require.NoError(t, s.Create(threedi.LayerManhole, f))

	idx, err := NewReverseIndex(s, threedi.AllReferencingLayers, nil)
	require.NoError(t, err)
	assert.Empty(t, idx.Nodes())
}

func TestReverseIndexMoveRelocatesReference(t *testing.T) {
	idx := &ReverseIndex{buckets: make(map[int64]map[Ref]struct{})}
	idx.log = testLogger()
	ref := Ref{Layer: threedi.LayerManhole, FeatureID: 30, Role: RoleSingle}
	idx.Add(1, ref)

	idx.Move(1, 2, ref)
	assert.False(t, idx.Has(1))
	assert.Equal(t, []Ref{ref}, idx.References(2))
}

func TestReverseIndexRemoveDropsEmptyBucket(t *testing.T) {
	idx := &ReverseIndex{buckets: make(map[int64]map[Ref]struct{})}
	idx.log = testLogger()
	ref := Ref{Layer: threedi.LayerChannel, FeatureID: 10, Role: RoleStart}
	idx.Add(7, ref)

	idx.Remove(7, ref)
	assert.False(t, idx.Has(7))
	assert.Empty(t, idx.Nodes())
}

func TestReverseIndexRemoveToleratesMissingBucket(t *testing.T) {
	idx := &ReverseIndex{buckets: make(map[int64]map[Ref]struct{})}
	idx.log = testLogger()

	// Must not panic, must not create the bucket.
	idx.Remove(42, Ref{Layer: threedi.LayerChannel, FeatureID: 1, Role: RoleStart})
	assert.False(t, idx.Has(42))
}

func TestReverseIndexReferencesInFiltersLayers(t *testing.T) {
	idx := &ReverseIndex{buckets: make(map[int64]map[Ref]struct{})}
	idx.log = testLogger()
	chRef := Ref{Layer: threedi.LayerChannel, FeatureID: 10, Role: RoleStart}
	mhRef := Ref{Layer: threedi.LayerManhole, FeatureID: 30, Role: RoleSingle}
	idx.Add(1, chRef)
	idx.Add(1, mhRef)

	assert.Equal(t, []Ref{chRef}, idx.ReferencesIn(1, threedi.NetworkLayers))
	assert.Len(t, idx.References(1), 2)
}

func TestRoleFieldRoundTrip(t *testing.T) {
	for _, role := range []Role{RoleSingle, RoleStart, RoleEnd} {
		got, ok := RoleForField(role.Field())
		require.True(t, ok)
		assert.Equal(t, role, got)
	}
	_, ok := RoleForField("display_name")
	assert.False(t, ok)
}
