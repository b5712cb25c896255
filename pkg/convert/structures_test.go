package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterschap/hydroconv/pkg/dflowfm"
	"github.com/waterschap/hydroconv/pkg/geometry"
	"github.com/waterschap/hydroconv/pkg/logging"
	"github.com/waterschap/hydroconv/pkg/store"
)

func readStructures(t *testing.T, content string) []dflowfm.Structure {
	t.Helper()
	structures, err := dflowfm.ReadStructures(writeTempFile(t, "structures.ini", content))
	require.NoError(t, err)
	return structures
}

func TestImportStructuresWeir(t *testing.T) {
	s := newTestStore(t)
	structures := readStructures(t, `[Structure]
    id         = W_1
    type       = weir
    branchId   = B_1
    chainage   = 25.0
    crestLevel = -0.4
    crestWidth = 3.0
`)

	require.NoError(t, ImportStructures(s, structures, testNetwork(), nil, logging.NewNopLogger()))

	feats, err := s.Features("dhydro_weir")
	require.NoError(t, err)
	require.Len(t, feats, 1)

	f := feats[0]
	id, _ := f.Str("id")
	assert.Equal(t, "W_1", id)
	crest, _ := f.Float64("crestlevel")
	assert.Equal(t, -0.4, crest)
	pt, ok := f.Geom.(geometry.Point)
	require.True(t, ok)
	assert.InDelta(t, 25.0, pt.X, 1e-9)
}

func TestImportStructuresCulvertFrictionOverride(t *testing.T) {
	s := newTestStore(t)
	structures := readStructures(t, `[Structure]
    id              = C_1
    type            = culvert
    branchId        = B_1
    chainage        = 10.0
    csDefId         = C_1
    bedFrictionType = Manning
    bedFriction     = 0.012
`)
	profiles := map[string]*Profile{
		"C_1": {Code: "C_1", Shape: ShapeCircle, Width: ptr(0.6), Friction: ConvertFriction("chezy", 45, true)},
	}

	require.NoError(t, ImportStructures(s, structures, testNetwork(), profiles, logging.NewNopLogger()))

	feats, err := s.Features("dhydro_culvert")
	require.NoError(t, err)
	require.Len(t, feats, 1)

	f := feats[0]
	// The culvert's own bed friction wins over the profile's.
	ft, _ := f.Int64("friction_type")
	assert.EqualValues(t, FrictionManning, ft)
	fv, _ := f.Float64("friction_value")
	assert.Equal(t, 0.012, fv)
	w, _ := f.Float64("cross_section_width")
	assert.Equal(t, 0.6, w)

	// The shared profile is untouched.
	assert.Equal(t, FrictionChezy, profiles["C_1"].Friction.Type)
}

func TestImportStructuresBridgeShiftsProfile(t *testing.T) {
	s := newTestStore(t)
	structures := readStructures(t, `[Structure]
    id           = BR_1
    type         = bridge
    branchId     = B_1
    chainage     = 50.0
    csDefId      = BR_1
    frictionType = Manning
    friction     = 0.02
    shift        = 1.5
`)
	profiles := map[string]*Profile{
		"BR_1": {
			Code:     "BR_1",
			Shape:    ShapeYZ,
			Table:    "0,2\n3,0\n6,2",
			Friction: ConvertFriction("chezy", 45, true),
		},
	}

	require.NoError(t, ImportStructures(s, structures, testNetwork(), profiles, logging.NewNopLogger()))

	feats, err := s.Features("dhydro_bridge")
	require.NoError(t, err)
	require.Len(t, feats, 1)

	f := feats[0]
	table, _ := f.Str("cross_section_table")
	assert.Equal(t, "0,0.5\n3,-1.5\n6,0.5", table)
	ref, _ := f.Float64("reference_level")
	assert.Equal(t, 1.5, ref)
	ft, _ := f.Int64("friction_type")
	assert.EqualValues(t, FrictionManning, ft)

	// The shared profile is untouched.
	assert.Equal(t, "0,2\n3,0\n6,2", profiles["BR_1"].Table)
}

func TestImportStructuresUniversalWeir(t *testing.T) {
	s := newTestStore(t)
	structures := readStructures(t, `[Structure]
    id         = UW_1
    type       = universalWeir
    branchId   = B_1
    chainage   = 75.0
    yValues    = 0.0 2.0 4.0
    zValues    = 1.0 0.0 1.0
    crestLevel = 0.25
`)

	require.NoError(t, ImportStructures(s, structures, testNetwork(), nil, logging.NewNopLogger()))

	feats, err := s.Features("dhydro_universalweir")
	require.NoError(t, err)
	require.Len(t, feats, 1)

	f := feats[0]
	shape, _ := f.Int64("cross_section_shape")
	assert.EqualValues(t, ShapeYZ, shape)
	table, _ := f.Str("cross_section_table")
	assert.Equal(t, "0,0.75\n2,-0.25\n4,0.75", table)
}

func TestImportStructuresUnknownBranch(t *testing.T) {
	s := newTestStore(t)
	structures := readStructures(t, `[Structure]
    id       = W_1
    type     = weir
    branchId = B_404
    chainage = 1.0
`)
	err := ImportStructures(s, structures, testNetwork(), nil, logging.NewNopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "B_404")
}

func TestInferFieldDefs(t *testing.T) {
	structures := readStructures(t, `[Structure]
    id         = W_1
    type       = weir
    crestLevel = -0.4

[Structure]
    id         = W_2
    type       = weir
    crestLevel = niet_numeriek
`)
	sections := []dflowfm.Section{structures[0].Section, structures[1].Section}
	defs := inferFieldDefs(sections)

	byName := map[string]store.FieldType{}
	for _, fd := range defs {
		byName[fd.Name] = fd.Type
	}
	// One non-numeric value makes the whole column text.
	assert.Equal(t, store.TypeString, byName["crestlevel"])
	assert.Equal(t, store.TypeString, byName["id"])
}

func TestImportDefinitionTables(t *testing.T) {
	s := newTestStore(t)
	defs := readDefinitions(t, `[Definition]
    id       = RND_1
    type     = circle
    diameter = 0.6
`)
	require.NoError(t, ImportDefinitionTables(s, defs, logging.NewNopLogger()))

	feats, err := s.Features("dhydro_crsdef_circle")
	require.NoError(t, err)
	require.Len(t, feats, 1)
	d, _ := feats[0].Float64("diameter")
	assert.Equal(t, 0.6, d)
}
