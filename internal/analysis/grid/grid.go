// Package grid discretizes a floor into square cells and classifies each cell
// as passable or blocked for a given pair of doors.
package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"

	"github.com/yinchi/digital-hospitals/internal/floorplan"
	"github.com/yinchi/digital-hospitals/internal/spatial"
)

// DefaultMaxCells bounds the cell count of a floor grid when no limit is given
const DefaultMaxCells = 4_000_000

// ErrGridTooLarge is returned when a grid size would produce more cells than allowed
var ErrGridTooLarge = errors.New("grid too large")

// Classification of a grid cell for a door-pair query
type Classification int

const (
	Empty  Classification = iota // free space
	Wall                         // intersects a wall
	OkDoor                       // intersects one of the query doors
)

func (c Classification) String() string {
	switch c {
	case Empty:
		return "empty"
	case Wall:
		return "wall"
	case OkDoor:
		return "ok_door"
	default:
		return fmt.Sprintf("Classification(%d)", int(c))
	}
}

// Passable reports whether a runner may occupy a cell of this classification
func (c Classification) Passable() bool {
	return c != Wall
}

// Cell is a single grid square
type Cell struct {
	I, J  int
	Box   spatial.Rect
	Class Classification
}

// Grid is a uniform grid covering the bounds of a floor.
// Cell (i, j) spans [XMin+i*Size, XMin+(i+1)*Size] x [YMin+j*Size, YMin+(j+1)*Size].
type Grid struct {
	Bounds floorplan.Bounds
	Size   float64
	NX, NY int
	floor  string
}

// New creates the grid for a floor with at most DefaultMaxCells cells.
func New(fm *floorplan.FloorModel, size float64) (*Grid, error) {
	return NewLimited(fm, size, DefaultMaxCells)
}

// NewLimited creates the grid for a floor, failing with ErrGridTooLarge when it
// would hold more than maxCells cells. A non-positive maxCells means
// DefaultMaxCells. The cell count per axis is ceil(extent/size), so the last
// row and column may overhang the bounds.
func NewLimited(fm *floorplan.FloorModel, size float64, maxCells int) (*Grid, error) {
	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		return nil, fmt.Errorf("invalid grid size %g", size)
	}
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}

	// counted in float64 so tiny sizes cannot overflow int
	fx := cellCount(fm.Bounds.XMin, fm.Bounds.XMax, size)
	fy := cellCount(fm.Bounds.YMin, fm.Bounds.YMax, size)
	if fx == 0 || fy == 0 {
		return nil, fmt.Errorf("%w: floor %q has an empty extent", floorplan.ErrDegenerateFloor, fm.FloorID)
	}
	if fx*fy > float64(maxCells) {
		return nil, fmt.Errorf("%w: floor %q needs %.0f x %.0f cells at %g m, limit is %d",
			ErrGridTooLarge, fm.FloorID, fx, fy, size, maxCells)
	}

	return &Grid{
		Bounds: fm.Bounds,
		Size:   size,
		NX:     int(fx),
		NY:     int(fy),
		floor:  fm.FloorID,
	}, nil
}

// cellCount matches the length of the half-open range [lo, hi) in steps of size
func cellCount(lo, hi, size float64) float64 {
	if hi <= lo {
		return 0
	}
	return math.Ceil((hi - lo) / size)
}

// Len returns the number of cells
func (g *Grid) Len() int {
	return g.NX * g.NY
}

// Index converts cell coordinates to a flat index
func (g *Grid) Index(i, j int) int {
	return i*g.NY + j
}

// Coord converts a flat index to cell coordinates
func (g *Grid) Coord(idx int) (i, j int) {
	return idx / g.NY, idx % g.NY
}

// InBounds reports whether (i, j) is a valid cell
func (g *Grid) InBounds(i, j int) bool {
	return i >= 0 && i < g.NX && j >= 0 && j < g.NY
}

// CellBox returns the rectangle of cell (i, j)
func (g *Grid) CellBox(i, j int) spatial.Rect {
	x0 := g.Bounds.XMin + float64(i)*g.Size
	y0 := g.Bounds.YMin + float64(j)*g.Size
	return spatial.MustRect(x0, y0, x0+g.Size, y0+g.Size, g.floor)
}

// CellCentroid returns the center of cell (i, j)
func (g *Grid) CellCentroid(i, j int) r2.Point {
	return g.CellBox(i, j).Centroid()
}

// Locate returns the first cell, in i-major order, whose closed box contains p.
// Points on a cell boundary belong to the lower-indexed cell.
func (g *Grid) Locate(p r2.Point) (i, j int, ok bool) {
	fi := int(math.Floor((p.X - g.Bounds.XMin) / g.Size))
	fj := int(math.Floor((p.Y - g.Bounds.YMin) / g.Size))

	for ci := fi - 1; ci <= fi+1; ci++ {
		for cj := fj - 1; cj <= fj+1; cj++ {
			if !g.InBounds(ci, cj) {
				continue
			}
			if g.CellBox(ci, cj).ContainsPoint(p) {
				return ci, cj, true
			}
		}
	}
	return 0, 0, false
}
