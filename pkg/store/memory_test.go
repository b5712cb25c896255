package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterschap/hydroconv/pkg/geometry"
)

func newNodeLayer(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	require.NoError(t, s.CreateLayer("connection_node", []FieldDef{
		{Name: "code", Type: TypeString},
		{Name: "storage_area", Type: TypeFloat},
	}, GeomPoint))
	return s
}

func TestMemoryStoreCRUD(t *testing.T) {
	s := newNodeLayer(t)

	f := NewFeature(1)
	f.Set("code", "N_1")
	f.Geom = geometry.NewPoint(10, 20)
	require.NoError(t, s.Create("connection_node", f))

	got, err := s.Get("connection_node", 1)
	require.NoError(t, err)
	code, _ := got.Str("code")
	assert.Equal(t, "N_1", code)
	assert.Equal(t, geometry.NewPoint(10, 20), got.Geom)

	got.Set("storage_area", 12.5)
	require.NoError(t, s.Update("connection_node", got))
	got, err = s.Get("connection_node", 1)
	require.NoError(t, err)
	area, _ := got.Float64("storage_area")
	assert.Equal(t, 12.5, area)

	require.NoError(t, s.Delete("connection_node", 1))
	_, err = s.Get("connection_node", 1)
	assert.True(t, IsNotFound(err))
}

func TestMemoryStoreCreateDuplicateID(t *testing.T) {
	s := newNodeLayer(t)
	f := NewFeature(1)
	require.NoError(t, s.Create("connection_node", f))
	err := s.Create("connection_node", NewFeature(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestMemoryStoreUnknownLayer(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Features("nergens")
	assert.ErrorIs(t, err, ErrLayerNotFound)
	assert.Error(t, s.Delete("nergens", 1))
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	s := newNodeLayer(t)
	f := NewFeature(1)
	f.Set("code", "N_1")
	require.NoError(t, s.Create("connection_node", f))

	got, err := s.Get("connection_node", 1)
	require.NoError(t, err)
	got.Set("code", "gewijzigd")

	again, err := s.Get("connection_node", 1)
	require.NoError(t, err)
	code, _ := again.Str("code")
	assert.Equal(t, "N_1", code)
}

func TestMemoryStoreFeaturesOrdered(t *testing.T) {
	s := newNodeLayer(t)
	for _, id := range []int64{5, 1, 3} {
		require.NoError(t, s.Create("connection_node", NewFeature(id)))
	}
	feats, err := s.Features("connection_node")
	require.NoError(t, err)
	ids := make([]int64, len(feats))
	for i, f := range feats {
		ids[i] = f.ID
	}
	assert.Equal(t, []int64{1, 3, 5}, ids)
}

func TestMemoryStoreFeaturesWhere(t *testing.T) {
	s := newNodeLayer(t)
	a := NewFeature(1)
	a.Set("code", "N_1")
	b := NewFeature(2)
	b.Set("code", "N_2")
	require.NoError(t, s.Create("connection_node", a))
	require.NoError(t, s.Create("connection_node", b))

	feats, err := s.FeaturesWhere("connection_node", "code", "N_2")
	require.NoError(t, err)
	require.Len(t, feats, 1)
	assert.EqualValues(t, 2, feats[0].ID)

	// Numeric attributes match across int representations.
	a.Set("storage_area", int64(3))
	require.NoError(t, s.Update("connection_node", a))
	feats, err = s.FeaturesWhere("connection_node", "storage_area", 3)
	require.NoError(t, err)
	assert.Len(t, feats, 1)
}

func TestMaxID(t *testing.T) {
	s := newNodeLayer(t)
	max, err := MaxID(s, "connection_node")
	require.NoError(t, err)
	assert.EqualValues(t, 0, max)

	require.NoError(t, s.Create("connection_node", NewFeature(7)))
	require.NoError(t, s.Create("connection_node", NewFeature(3)))
	max, err = MaxID(s, "connection_node")
	require.NoError(t, err)
	assert.EqualValues(t, 7, max)
}

func TestClearLayer(t *testing.T) {
	s := newNodeLayer(t)
	require.NoError(t, s.Create("connection_node", NewFeature(1)))
	require.NoError(t, s.Create("connection_node", NewFeature(2)))

	n, err := ClearLayer(s, "connection_node")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	feats, err := s.Features("connection_node")
	require.NoError(t, err)
	assert.Empty(t, feats)
}

func TestDropLayer(t *testing.T) {
	s := newNodeLayer(t)
	require.NoError(t, s.DropLayer("connection_node"))
	assert.False(t, s.HasLayer("connection_node"))
	assert.Error(t, s.DropLayer("connection_node"))
}
