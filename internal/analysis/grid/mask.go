package grid

import (
	"math"
	"sync"

	"github.com/yinchi/digital-hospitals/internal/spatial"
)

// WallMask caches the wall-only classification of every cell of a grid.
// It is computed once per floor and grid size and shared read-only by all
// door-pair queries on that floor.
type WallMask struct {
	Grid    *Grid
	blocked []bool
}

// BuildWallMask marks every cell that intersects a wall.
// Columns are classified concurrently; the result is deterministic.
func BuildWallMask(g *Grid, walls []spatial.Rect) *WallMask {
	index := spatial.NewWallIndex(walls)
	blocked := make([]bool, g.Len())

	var wg sync.WaitGroup
	for i := 0; i < g.NX; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < g.NY; j++ {
				blocked[g.Index(i, j)] = index.Intersecting(g.CellBox(i, j))
			}
		}(i)
	}
	wg.Wait()

	return &WallMask{Grid: g, blocked: blocked}
}

// Blocked reports whether cell (i, j) intersects a wall
func (m *WallMask) Blocked(i, j int) bool {
	return m.blocked[m.Grid.Index(i, j)]
}

// BlockedCount returns the number of wall cells
func (m *WallMask) BlockedCount() int {
	n := 0
	for _, b := range m.blocked {
		if b {
			n++
		}
	}
	return n
}

// Classify returns the classification of cell (i, j) when okDoors are the
// endpoints of the query. Door passability is checked before walls.
func (m *WallMask) Classify(i, j int, okDoors []spatial.Rect) Classification {
	if spatial.IntersectsAny(m.Grid.CellBox(i, j), okDoors) {
		return OkDoor
	}
	if m.Blocked(i, j) {
		return Wall
	}
	return Empty
}

// Cell returns cell (i, j) with its classification for okDoors
func (m *WallMask) Cell(i, j int, okDoors []spatial.Rect) Cell {
	return Cell{I: i, J: j, Box: m.Grid.CellBox(i, j), Class: m.Classify(i, j, okDoors)}
}

// Navigable returns the navigable graph for a query between okDoors.
// Only cells near the doors need reclassifying; the rest comes from the mask.
func (m *WallMask) Navigable(okDoors ...spatial.Rect) *NavigableGraph {
	g := m.Grid
	passable := make([]bool, len(m.blocked))
	for idx, b := range m.blocked {
		passable[idx] = !b
	}

	for _, door := range okDoors {
		i0, i1 := g.span(door.X0(), door.X1(), g.Bounds.XMin, g.NX)
		j0, j1 := g.span(door.Y0(), door.Y1(), g.Bounds.YMin, g.NY)
		for i := i0; i <= i1; i++ {
			for j := j0; j <= j1; j++ {
				if spatial.Intersects(g.CellBox(i, j), door) {
					passable[g.Index(i, j)] = true
				}
			}
		}
	}

	return &NavigableGraph{
		Grid:     g,
		passable: passable,
		ortho:    g.Size,
		diag:     g.Size * math.Sqrt2,
	}
}

// span returns the inclusive range of cell indices along one axis that may
// intersect [lo, hi], clamped to [0, n).
func (g *Grid) span(lo, hi, origin float64, n int) (int, int) {
	a := int(math.Floor((lo-origin)/g.Size)) - 1
	b := int(math.Floor((hi-origin)/g.Size)) + 1
	if a < 0 {
		a = 0
	}
	if b > n-1 {
		b = n - 1
	}
	return a, b
}
