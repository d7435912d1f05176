package spatial

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
)

// ErrDegenerateGeometry is returned for rectangles with zero or negative extent
var ErrDegenerateGeometry = errors.New("degenerate geometry")

// Rect is an axis-aligned wall or door rectangle on a floor, in meters
type Rect struct {
	box   r2.Rect
	Floor string
}

// NewRect builds a rectangle from its corner coordinates.
// It requires x0 < x1 and y0 < y1.
func NewRect(x0, y0, x1, y1 float64, floor string) (Rect, error) {
	for _, v := range []float64{x0, y0, x1, y1} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Rect{}, fmt.Errorf("%w: non-finite coordinate in (%g,%g)-(%g,%g)", ErrDegenerateGeometry, x0, y0, x1, y1)
		}
	}
	if x0 >= x1 || y0 >= y1 {
		return Rect{}, fmt.Errorf("%w: (%g,%g)-(%g,%g)", ErrDegenerateGeometry, x0, y0, x1, y1)
	}

	return Rect{
		box: r2.Rect{
			X: r1.Interval{Lo: x0, Hi: x1},
			Y: r1.Interval{Lo: y0, Hi: y1},
		},
		Floor: floor,
	}, nil
}

// MustRect is NewRect for literals known to be valid. It panics otherwise.
func MustRect(x0, y0, x1, y1 float64, floor string) Rect {
	r, err := NewRect(x0, y0, x1, y1, floor)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Rect) X0() float64 { return r.box.X.Lo }
func (r Rect) Y0() float64 { return r.box.Y.Lo }
func (r Rect) X1() float64 { return r.box.X.Hi }
func (r Rect) Y1() float64 { return r.box.Y.Hi }

// Box returns the underlying r2 rectangle
func (r Rect) Box() r2.Rect {
	return r.box
}

// Centroid returns the center point of the rectangle
func (r Rect) Centroid() r2.Point {
	return r.box.Center()
}

// ContainsPoint reports whether p lies inside r or on its boundary
func (r Rect) ContainsPoint(p r2.Point) bool {
	return r.box.ContainsPoint(p)
}

// Contains reports whether other lies entirely within r
func (r Rect) Contains(other Rect) bool {
	return r.box.Contains(other.box)
}

// Intersects reports whether two rectangles overlap.
// Intervals are closed, so rectangles sharing only an edge or a corner intersect.
func Intersects(a, b Rect) bool {
	return a.box.Intersects(b.box)
}

// IntersectsAny reports whether r intersects at least one of others
func IntersectsAny(r Rect, others []Rect) bool {
	for _, o := range others {
		if Intersects(r, o) {
			return true
		}
	}
	return false
}

// BoundingBox returns the union extent of rects as (minX, minY, maxX, maxY).
// ok is false when rects is empty.
func BoundingBox(rects []Rect) (minX, minY, maxX, maxY float64, ok bool) {
	if len(rects) == 0 {
		return 0, 0, 0, 0, false
	}

	union := r2.EmptyRect()
	for _, r := range rects {
		union = union.Union(r.box)
	}

	return union.X.Lo, union.Y.Lo, union.X.Hi, union.Y.Hi, true
}

func (r Rect) String() string {
	return fmt.Sprintf("[%g,%g]x[%g,%g]@%s", r.X0(), r.X1(), r.Y0(), r.Y1(), r.Floor)
}
