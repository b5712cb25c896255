// Package convert turns a D-Flow FM schematisation into the target
// GeoPackage layers: connection nodes, channels, cross-section
// locations and structures, with cross-section and friction data
// rewritten into the target vocabulary.
package convert

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/waterschap/hydroconv/pkg/dflowfm"
)

// assumedWaterDepth feeds the De Bos-Bijkerk conversion, which needs a
// water depth the source data does not carry.
const assumedWaterDepth = 1.0

// CrossSectionShape codes of the target schematisation.
type CrossSectionShape int

const (
	ShapeClosedRectangle    CrossSectionShape = 0
	ShapeOpenRectangle      CrossSectionShape = 1
	ShapeCircle             CrossSectionShape = 2
	ShapeEgg                CrossSectionShape = 3
	ShapeTabulatedRectangle CrossSectionShape = 5
	ShapeTabulatedTrapezium CrossSectionShape = 6
	ShapeYZ                 CrossSectionShape = 7
	ShapeInvertedEgg        CrossSectionShape = 8
)

// tableShapes are the shapes whose profile is a CSV table.
var tableShapes = map[CrossSectionShape]bool{
	ShapeTabulatedRectangle: true,
	ShapeTabulatedTrapezium: true,
	ShapeYZ:                 true,
}

// FrictionType codes of the target schematisation.
type FrictionType int

const (
	FrictionChezy                 FrictionType = 1
	FrictionManning               FrictionType = 2
	FrictionChezyWithConveyance   FrictionType = 3
	FrictionManningWithConveyance FrictionType = 4
)

// FrictionData is a converted friction definition. Invalid data is
// carried along rather than rejected: it only matters if a feature that
// ends up in the export actually needs it.
type FrictionData struct {
	Type          FrictionType
	Value         float64
	HasType       bool
	HasValue      bool
	Valid         bool
	InvalidReason string
}

// ConvertFriction maps a D-Flow FM friction definition onto the target
// model. Chezy and Manning carry over directly; Strickler, White-
// Colebrook and De Bos-Bijkerk are approximated as Manning values.
func ConvertFriction(dhydroType string, value float64, hasValue bool) FrictionData {
	if dhydroType == "" {
		return FrictionData{Valid: true}
	}
	if !hasValue {
		return FrictionData{Valid: false, InvalidReason: fmt.Sprintf("friction type %s without a value", dhydroType)}
	}
	switch dhydroType {
	case dflowfm.FrictionChezy:
		return FrictionData{Type: FrictionChezy, Value: value, HasType: true, HasValue: true, Valid: true}
	case dflowfm.FrictionManning:
		return FrictionData{Type: FrictionManning, Value: value, HasType: true, HasValue: true, Valid: true}
	case dflowfm.FrictionStrickler:
		return FrictionData{Type: FrictionManning, Value: roundTo(1/value, 4), HasType: true, HasValue: true, Valid: true}
	case dflowfm.FrictionWhiteColebrook:
		// Approximation via the Strickler relation.
		return FrictionData{Type: FrictionManning, Value: roundTo(math.Pow(value, 1.0/6.0)/21.1, 4), HasType: true, HasValue: true, Valid: true}
	case dflowfm.FrictionDeBosBijkerk:
		return FrictionData{Type: FrictionManning, Value: roundTo(1/(value*math.Cbrt(assumedWaterDepth)), 4), HasType: true, HasValue: true, Valid: true}
	}
	return FrictionData{Valid: false, InvalidReason: fmt.Sprintf("unknown friction type %s", dhydroType)}
}

// Profile is a cross-section in the target vocabulary: a shape code
// with scalar dimensions or a CSV table, plus friction.
type Profile struct {
	Code           string
	Shape          CrossSectionShape
	ReferenceLevel *float64
	BankLevel      *float64
	Width          *float64
	Height         *float64
	Table          string
	Friction       FrictionData
}

// parseTable splits the CSV table of a tabulated profile into its two
// columns.
func (p *Profile) parseTable() ([]float64, []float64, error) {
	if !tableShapes[p.Shape] || p.Table == "" {
		return nil, nil, nil
	}
	var first, second []float64
	for _, row := range strings.Split(p.Table, "\n") {
		cells := strings.Split(row, ",")
		if len(cells) != 2 {
			return nil, nil, fmt.Errorf("profile %s: table row %q does not have 2 columns", p.Code, row)
		}
		a, err := strconv.ParseFloat(strings.TrimSpace(cells[0]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("profile %s: %w", p.Code, err)
		}
		b, err := strconv.ParseFloat(strings.TrimSpace(cells[1]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("profile %s: %w", p.Code, err)
		}
		first = append(first, a)
		second = append(second, b)
	}
	return first, second, nil
}

// ShiftDown lowers the profile's level column by the given shift. For
// YZ tables the z values are the second column, for tabulated shapes
// the first.
func (p *Profile) ShiftDown(shift float64) error {
	first, second, err := p.parseTable()
	if err != nil {
		return err
	}
	if first == nil {
		return nil
	}
	levels := first
	if p.Shape == ShapeYZ {
		levels = second
	}
	for i := range levels {
		levels[i] = roundTo(levels[i]-shift, 4)
	}
	p.Table = ListsToCSV([][]float64{first, second}, -1)
	return nil
}

// ListsToCSV renders columns as CSV rows. A non-negative decimals
// rounds every value first.
func ListsToCSV(columns [][]float64, decimals int) string {
	if len(columns) == 0 || len(columns[0]) == 0 {
		return ""
	}
	rows := len(columns[0])
	var b strings.Builder
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteByte('\n')
		}
		for c, col := range columns {
			if c > 0 {
				b.WriteByte(',')
			}
			v := col[r]
			if decimals >= 0 {
				v = roundTo(v, decimals)
			}
			b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return b.String()
}

// roundTo rounds half away from zero to the given number of decimals.
func roundTo(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}

func roundPtr(v *float64, decimals int) *float64 {
	if v == nil {
		return nil
	}
	r := roundTo(*v, decimals)
	return &r
}

func ptr(v float64) *float64 {
	return &v
}
