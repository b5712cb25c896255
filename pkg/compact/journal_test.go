package compact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterschap/hydroconv/pkg/geometry"
)

func TestJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenJournal(dir)
	require.NoError(t, err)

	entries := []JournalEntry{
		{Op: JournalRepoint, Layer: "manhole", FeatureID: 30, NodeID: 3, Replacement: 2},
		{Op: JournalDeleteEdge, Layer: "channel", FeatureID: 11, NodeID: 3, Replacement: 2},
		{Op: JournalDeleteNode, Layer: "connection_node", FeatureID: 3, NodeID: 3},
	}
	for _, e := range entries {
		require.NoError(t, j.Record(e))
	}
	require.NoError(t, j.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "compact-*.journal"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	got, err := ReadJournal(matches[0])
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, e := range got {
		assert.Equal(t, uint64(i+1), e.Seq)
		assert.Equal(t, j.RunID(), e.RunID)
		assert.Equal(t, entries[i].Op, e.Op)
		assert.Equal(t, entries[i].Layer, e.Layer)
		assert.Equal(t, entries[i].FeatureID, e.FeatureID)
		assert.NotZero(t, e.Timestamp)
	}
}

func TestJournalTruncatedTailStopsCleanly(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenJournal(dir)
	require.NoError(t, err)
	require.NoError(t, j.Record(JournalEntry{Op: JournalRepoint, FeatureID: 1}))
	require.NoError(t, j.Record(JournalEntry{Op: JournalRepoint, FeatureID: 2}))
	require.NoError(t, j.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "compact-*.journal"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	path := matches[0]

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw[:len(raw)-5], 0o644))

	got, err := ReadJournal(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 1, got[0].FeatureID)
}

func TestCompactorWritesJournal(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenJournal(dir)
	require.NoError(t, err)

	s := newTestStore(t)
	addNode(t, s, 1, 0, 0)
	addNode(t, s, 2, 100, 0)
	addNode(t, s, 3, 100.4, 0)
	addChannel(t, s, 10, 1, 2,
		geometry.NewPoint(0, 0), geometry.NewPoint(100, 0))
	addChannel(t, s, 11, 2, 3,
		geometry.NewPoint(100, 0), geometry.NewPoint(100.4, 0))

	c, err := New(s, Options{Threshold: 1, Journal: j})
	require.NoError(t, err)
	_, err = c.Run()
	require.NoError(t, err)
	require.NoError(t, j.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "compact-*.journal"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	got, err := ReadJournal(matches[0])
	require.NoError(t, err)

	ops := make(map[string]int)
	for _, e := range got {
		ops[e.Op]++
	}
	assert.Equal(t, 1, ops[JournalDeleteEdge])
	assert.Equal(t, 1, ops[JournalDeleteNode])
}
