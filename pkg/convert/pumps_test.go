package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterschap/hydroconv/pkg/geometry"
	"github.com/waterschap/hydroconv/pkg/logging"
	"github.com/waterschap/hydroconv/pkg/store"
	"github.com/waterschap/hydroconv/pkg/threedi"
)

func addProxyOrifice(t *testing.T, s store.Store, id int64, pumpID string, startNode, endNode int64) {
	t.Helper()
	f := store.NewFeature(id)
	f.Set("code", PumpProxyPrefix+pumpID)
	f.Set("display_name", "gemaal "+pumpID)
	f.Set("zoom_category", int64(3))
	f.Set(threedi.FieldConnectionNodeStart, startNode)
	f.Set(threedi.FieldConnectionNodeEnd, endNode)
	f.Geom = geometry.NewLineString([]geometry.Point{
		geometry.NewPoint(0, 0), geometry.NewPoint(10, 0),
	})
	require.NoError(t, s.Create(threedi.LayerOrifice, f))
}

func TestOrificesToPumpsPositive(t *testing.T) {
	s := newTestStore(t)
	addProxyOrifice(t, s, 5, "P_1", 101, 102)

	structures := readStructures(t, `[Structure]
    id                    = P_1
    type                  = pump
    branchId              = B_1
    chainage              = 3.0
    orientation           = positive
    capacity              = 0.083
    controlSide           = suctionSide
    startLevelSuctionSide = -1.2
    stopLevelSuctionSide  = -1.5
`)
	require.NoError(t, OrificesToPumps(s, structures, logging.NewNopLogger()))

	// The proxy orifice is gone.
	_, err := s.Get(threedi.LayerOrifice, 5)
	assert.True(t, store.IsNotFound(err))

	station, err := s.Get(threedi.LayerPumpstation, 5)
	require.NoError(t, err)
	code, _ := station.Str("code")
	assert.Equal(t, "P_1", code)
	capacity, _ := station.Float64("capacity")
	assert.Equal(t, 83.0, capacity)
	typ, _ := station.Int64("type")
	assert.EqualValues(t, 1, typ)
	start, _ := station.Float64("start_level")
	assert.Equal(t, -1.2, start)
	stop, _ := station.Float64("lower_stop_level")
	assert.Equal(t, -1.5, stop)
	assert.Nil(t, station.Fields["upper_stop_level"])
	node, _ := station.Int64(threedi.FieldConnectionNode)
	assert.EqualValues(t, 101, node)
	pt, ok := station.Geom.(geometry.Point)
	require.True(t, ok)
	assert.Equal(t, 0.0, pt.X)

	pumpMap, err := s.Get(threedi.LayerPumpstationMap, 5)
	require.NoError(t, err)
	mapStart, _ := pumpMap.Int64(threedi.FieldConnectionNodeStart)
	mapEnd, _ := pumpMap.Int64(threedi.FieldConnectionNodeEnd)
	assert.EqualValues(t, 101, mapStart)
	assert.EqualValues(t, 102, mapEnd)
	line, ok := pumpMap.Geom.(geometry.LineString)
	require.True(t, ok)
	assert.Equal(t, 0.0, line.StartPoint().X)
}

func TestOrificesToPumpsNegative(t *testing.T) {
	s := newTestStore(t)
	addProxyOrifice(t, s, 5, "P_2", 101, 102)

	structures := readStructures(t, `[Structure]
    id          = P_2
    type        = pump
    branchId    = B_1
    chainage    = 3.0
    orientation = negative
    capacity    = 0.05
    controlSide = deliverySide
`)
	require.NoError(t, OrificesToPumps(s, structures, logging.NewNopLogger()))

	station, err := s.Get(threedi.LayerPumpstation, 5)
	require.NoError(t, err)
	// A negative pump sits on the end node.
	node, _ := station.Int64(threedi.FieldConnectionNode)
	assert.EqualValues(t, 102, node)
	typ, _ := station.Int64("type")
	assert.EqualValues(t, 2, typ)
	pt, ok := station.Geom.(geometry.Point)
	require.True(t, ok)
	assert.Equal(t, 10.0, pt.X)

	pumpMap, err := s.Get(threedi.LayerPumpstationMap, 5)
	require.NoError(t, err)
	mapStart, _ := pumpMap.Int64(threedi.FieldConnectionNodeStart)
	mapEnd, _ := pumpMap.Int64(threedi.FieldConnectionNodeEnd)
	assert.EqualValues(t, 102, mapStart)
	assert.EqualValues(t, 101, mapEnd)
	// The mapping line is reversed to run in pumping direction.
	line, ok := pumpMap.Geom.(geometry.LineString)
	require.True(t, ok)
	assert.Equal(t, 10.0, line.StartPoint().X)
	assert.Equal(t, 0.0, line.EndPoint().X)
}

func TestOrificesToPumpsMissingProxy(t *testing.T) {
	s := newTestStore(t)

	structures := readStructures(t, `[Structure]
    id          = P_9
    type        = pump
    branchId    = B_1
    chainage    = 1.0
    orientation = positive
`)
	// A pump without a proxy orifice only produces a warning.
	require.NoError(t, OrificesToPumps(s, structures, logging.NewNopLogger()))

	feats, err := s.Features(threedi.LayerPumpstation)
	require.NoError(t, err)
	assert.Empty(t, feats)
}
