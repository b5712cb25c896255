package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertFriction(t *testing.T) {
	cases := []struct {
		name      string
		inType    string
		value     float64
		wantType  FrictionType
		wantValue float64
	}{
		{"chezy carries over", "chezy", 45.0, FrictionChezy, 45.0},
		{"manning carries over", "manning", 0.023, FrictionManning, 0.023},
		{"strickler inverts", "strickler", 40.0, FrictionManning, 0.025},
		{"white-colebrook via strickler relation", "whitecolebrook", 0.003, FrictionManning, 0.0180},
		{"de bos-bijkerk with assumed depth", "debosbijkerk", 25.0, FrictionManning, 0.04},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ConvertFriction(tc.inType, tc.value, true)
			require.True(t, got.Valid)
			assert.Equal(t, tc.wantType, got.Type)
			assert.InDelta(t, tc.wantValue, got.Value, 1e-9)
		})
	}
}

func TestConvertFrictionEmptyTypeIsValid(t *testing.T) {
	got := ConvertFriction("", 0, false)
	assert.True(t, got.Valid)
	assert.False(t, got.HasType)
	assert.False(t, got.HasValue)
}

func TestConvertFrictionInvalid(t *testing.T) {
	got := ConvertFriction("walllawnikuradse", 0.2, true)
	assert.False(t, got.Valid)
	assert.Contains(t, got.InvalidReason, "walllawnikuradse")

	got = ConvertFriction("manning", 0, false)
	assert.False(t, got.Valid)
	assert.Contains(t, got.InvalidReason, "without a value")
}

func TestListsToCSV(t *testing.T) {
	table := ListsToCSV([][]float64{{0, 1.23456, 2}, {10, 20, 30.5}}, 3)
	assert.Equal(t, "0,10\n1.235,20\n2,30.5", table)

	// Negative decimals leaves values untouched.
	assert.Equal(t, "1.23456,2", ListsToCSV([][]float64{{1.23456}, {2}}, -1))

	assert.Equal(t, "", ListsToCSV(nil, 3))
	assert.Equal(t, "", ListsToCSV([][]float64{{}, {}}, 3))
}

func TestShiftDownYZ(t *testing.T) {
	p := Profile{
		Code:  "PRO_1",
		Shape: ShapeYZ,
		Table: "0,1.25\n1.5,0.25\n6,1.25",
	}
	require.NoError(t, p.ShiftDown(0.25))
	assert.Equal(t, "0,1\n1.5,0\n6,1", p.Table)
}

func TestShiftDownTabulated(t *testing.T) {
	p := Profile{
		Code:  "PRO_2",
		Shape: ShapeTabulatedTrapezium,
		Table: "0,2\n0.5,4\n1,6",
	}
	require.NoError(t, p.ShiftDown(-1))
	// Levels are the first column for tabulated shapes.
	assert.Equal(t, "1,2\n1.5,4\n2,6", p.Table)
}

func TestShiftDownWithoutTableIsNoOp(t *testing.T) {
	p := Profile{Code: "RND_1", Shape: ShapeCircle, Width: ptr(0.6)}
	require.NoError(t, p.ShiftDown(1.5))
	assert.Equal(t, "", p.Table)
}

func TestShiftDownRejectsMalformedTable(t *testing.T) {
	p := Profile{Code: "BAD", Shape: ShapeYZ, Table: "0,1,2"}
	assert.Error(t, p.ShiftDown(1))
}
