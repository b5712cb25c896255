// Package geometry holds the minimal planar geometry model the converter
// and the graph compactor operate on: points with an optional third
// dimension and polylines whose first and last vertices act as network
// endpoints.
package geometry

import (
	"fmt"
	"math"
)

// Geometry is satisfied by every geometry kind in this package. Feature
// stores hold geometries behind this interface and type-switch on the
// concrete kind.
type Geometry interface {
	Is3D() bool
}

// Point is a 2D coordinate with an optional z. The z is a tagged variant,
// not a zero sentinel: a 2D point and a 3D point at z=0 are distinct.
type Point struct {
	X, Y float64

	z    float64
	hasZ bool
}

// NewPoint creates a 2D point.
func NewPoint(x, y float64) Point {
	return Point{X: x, Y: y}
}

// NewPointZ creates a 3D point.
func NewPointZ(x, y, z float64) Point {
	return Point{X: x, Y: y, z: z, hasZ: true}
}

// Z returns the third coordinate and whether it is present.
func (p Point) Z() (float64, bool) {
	return p.z, p.hasZ
}

// Is3D reports whether the point carries a third coordinate.
func (p Point) Is3D() bool {
	return p.hasZ
}

// Flatten returns the 2D projection of the point.
func (p Point) Flatten() Point {
	return Point{X: p.X, Y: p.Y}
}

// DistanceTo returns the planar distance to another point. The third
// coordinate never participates; channel lengths are planar by convention.
func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

func (p Point) String() string {
	if p.hasZ {
		return fmt.Sprintf("POINT Z (%g %g %g)", p.X, p.Y, p.z)
	}
	return fmt.Sprintf("POINT (%g %g)", p.X, p.Y)
}

// EndpointRole identifies which end of a polyline a vertex move targets.
type EndpointRole int

const (
	StartEndpoint EndpointRole = iota
	EndEndpoint
)

// LineString is an ordered sequence of at least two vertices.
type LineString struct {
	points []Point
}

// NewLineString creates a polyline from the given vertices. The slice is
// copied; callers keep ownership of their input.
func NewLineString(points []Point) LineString {
	cp := make([]Point, len(points))
	copy(cp, points)
	return LineString{points: cp}
}

// NumPoints returns the vertex count.
func (l LineString) NumPoints() int {
	return len(l.points)
}

// Point returns the vertex at index i.
func (l LineString) Point(i int) Point {
	return l.points[i]
}

// Points returns a copy of all vertices.
func (l LineString) Points() []Point {
	cp := make([]Point, len(l.points))
	copy(cp, l.points)
	return cp
}

// StartPoint returns the first vertex.
func (l LineString) StartPoint() Point {
	return l.points[0]
}

// EndPoint returns the last vertex.
func (l LineString) EndPoint() Point {
	return l.points[len(l.points)-1]
}

// Is3D reports whether any vertex carries a third coordinate.
func (l LineString) Is3D() bool {
	for _, p := range l.points {
		if p.Is3D() {
			return true
		}
	}
	return false
}

// Length returns the planar length of the polyline.
func (l LineString) Length() float64 {
	var total float64
	for i := 1; i < len(l.points); i++ {
		total += l.points[i-1].DistanceTo(l.points[i])
	}
	return total
}

// Interpolate returns the point at the given distance from the start,
// measured along the line. Distances beyond either end clamp to the
// nearest endpoint.
func (l LineString) Interpolate(distance float64) Point {
	if len(l.points) == 0 {
		return Point{}
	}
	if distance <= 0 {
		return l.points[0].Flatten()
	}
	var travelled float64
	for i := 1; i < len(l.points); i++ {
		a, b := l.points[i-1], l.points[i]
		seg := a.DistanceTo(b)
		if travelled+seg >= distance && seg > 0 {
			t := (distance - travelled) / seg
			return NewPoint(a.X+t*(b.X-a.X), a.Y+t*(b.Y-a.Y))
		}
		travelled += seg
	}
	return l.points[len(l.points)-1].Flatten()
}

// Reverse returns the polyline with vertex order inverted.
func (l LineString) Reverse() LineString {
	rev := make([]Point, len(l.points))
	for i, p := range l.points {
		rev[len(l.points)-1-i] = p
	}
	return LineString{points: rev}
}

// Flatten returns the 2D projection of the polyline.
func (l LineString) Flatten() LineString {
	flat := make([]Point, len(l.points))
	for i, p := range l.points {
		flat[i] = p.Flatten()
	}
	return LineString{points: flat}
}

// MoveEndpoint returns a copy of the polyline with the vertex at the given
// end replaced by the target location. The dimensionality of the original
// vertex wins: a 3D vertex stays 3D (taking the target's z, or 0 when the
// target is 2D), a 2D vertex stays 2D whatever the target carries.
func (l LineString) MoveEndpoint(role EndpointRole, to Point) LineString {
	cp := make([]Point, len(l.points))
	copy(cp, l.points)
	idx := 0
	if role == EndEndpoint {
		idx = len(cp) - 1
	}
	if cp[idx].Is3D() {
		z, ok := to.Z()
		if !ok {
			z = 0
		}
		cp[idx] = NewPointZ(to.X, to.Y, z)
	} else {
		cp[idx] = NewPoint(to.X, to.Y)
	}
	return LineString{points: cp}
}
