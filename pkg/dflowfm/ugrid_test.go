package dflowfm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The NetCDF decoder hands back whatever width the file declares, so
// the coercion helpers have to level the variants out.

func TestAsFloats(t *testing.T) {
	got, ok := asFloats([]float32{1.5, 2.5})
	require.True(t, ok)
	assert.Equal(t, []float64{1.5, 2.5}, got)

	got, ok = asFloats([]int32{3, 4})
	require.True(t, ok)
	assert.Equal(t, []float64{3, 4}, got)

	_, ok = asFloats("not a slice")
	assert.False(t, ok)
}

func TestAsInts(t *testing.T) {
	got, ok := asInts([]int32{-1, 7})
	require.True(t, ok)
	assert.Equal(t, []int{-1, 7}, got)

	got, ok = asInts([]float64{2, 3})
	require.True(t, ok)
	assert.Equal(t, []int{2, 3}, got)
}

func TestAsStrings(t *testing.T) {
	got, ok := asStrings([]string{"B_001", "B_002"})
	require.True(t, ok)
	assert.Equal(t, []string{"B_001", "B_002"}, got)

	got, ok = asStrings([][]byte{[]byte("N_1"), []byte("N_2")})
	require.True(t, ok)
	assert.Equal(t, []string{"N_1", "N_2"}, got)
}

func TestAsIntPairs(t *testing.T) {
	got, ok := asIntPairs([][]int32{{0, 1}, {1, 2}})
	require.True(t, ok)
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, got)

	got, ok = asIntPairs([]int32{0, 1, 1, 2})
	require.True(t, ok)
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, got)

	_, ok = asIntPairs([]int32{0, 1, 2})
	assert.False(t, ok)

	_, ok = asIntPairs([][]int32{{0, 1, 2}})
	assert.False(t, ok)
}
