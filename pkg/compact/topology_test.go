package compact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterschap/hydroconv/pkg/geometry"
)

func TestTopologyComponents(t *testing.T) {
	s := newTestStore(t)
	// Two chained channels, one disconnected pair, one isolated node.
	for i, xy := range [][2]float64{{0, 0}, {10, 0}, {20, 0}, {100, 100}, {110, 100}, {500, 500}} {
		addNode(t, s, int64(i+1), xy[0], xy[1])
	}
	addChannel(t, s, 10, 1, 2,
		geometry.NewPoint(0, 0), geometry.NewPoint(10, 0))
	addChannel(t, s, 11, 2, 3,
		geometry.NewPoint(10, 0), geometry.NewPoint(20, 0))
	addChannel(t, s, 12, 4, 5,
		geometry.NewPoint(100, 100), geometry.NewPoint(110, 100))

	topo, err := BuildTopology(s)
	require.NoError(t, err)

	assert.Equal(t, 6, topo.NodeCount())
	assert.Equal(t, [][]int64{{1, 2, 3}, {4, 5}, {6}}, topo.Components())
	assert.Equal(t, 3, topo.ComponentCount())
}

func TestTopologyComponentCountSurvivesCompaction(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, 1, 0, 0)
	addNode(t, s, 2, 100, 0)
	addNode(t, s, 3, 100.4, 0)
	addNode(t, s, 4, 200, 0)
	addNode(t, s, 5, 900, 900)
	addChannel(t, s, 10, 1, 2,
		geometry.NewPoint(0, 0), geometry.NewPoint(100, 0))
	addChannel(t, s, 11, 2, 3,
		geometry.NewPoint(100, 0), geometry.NewPoint(100.4, 0))
	addChannel(t, s, 12, 3, 4,
		geometry.NewPoint(100.4, 0), geometry.NewPoint(200, 0))

	before, err := BuildTopology(s)
	require.NoError(t, err)

	c, err := New(s, Options{Threshold: 1})
	require.NoError(t, err)
	stats, err := c.Run()
	require.NoError(t, err)
	require.Equal(t, 1, stats.ShortDeleted)

	after, err := BuildTopology(s)
	require.NoError(t, err)
	assert.Equal(t, before.ComponentCount(), after.ComponentCount())
	assert.Equal(t, before.NodeCount()-1, after.NodeCount())
}
