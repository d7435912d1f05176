package grid

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r2"

	"github.com/yinchi/digital-hospitals/internal/floorplan"
	"github.com/yinchi/digital-hospitals/internal/models"
	"github.com/yinchi/digital-hospitals/internal/spatial"
)

// roomFloor is a 10 m x 5 m room with 0.2 m walls outside it and one door
// in each of the short walls.
func roomFloor(t *testing.T) *floorplan.FloorModel {
	t.Helper()
	b := &models.BuildingModel{
		Elevations: map[string]float64{"L1": 0},
		Walls: []models.Element{
			{Name: "south", Floor: "L1", X0: -0.2, X1: 10.2, Y0: -0.2, Y1: 0},
			{Name: "north", Floor: "L1", X0: -0.2, X1: 10.2, Y0: 5, Y1: 5.2},
			{Name: "west", Floor: "L1", X0: -0.2, X1: 0, Y0: -0.2, Y1: 5.2},
			{Name: "east", Floor: "L1", X0: 10, X1: 10.2, Y0: -0.2, Y1: 5.2},
		},
		Doors: []models.Element{
			{Name: "W", Floor: "L1", X0: -0.2, X1: 0, Y0: 2, Y1: 3},
			{Name: "E", Floor: "L1", X0: 10, X1: 10.2, Y0: 2, Y1: 3},
		},
	}
	fm, err := floorplan.New(b, "L1", []string{"W", "E"})
	if err != nil {
		t.Fatalf("floorplan.New: %v", err)
	}
	return fm
}

func TestNewGridDimensions(t *testing.T) {
	fm := roomFloor(t)
	g, err := New(fm, 0.5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// extent 10.4 x 5.4 -> ceil(20.8) x ceil(10.8)
	if g.NX != 21 || g.NY != 11 {
		t.Fatalf("grid = %dx%d, want 21x11", g.NX, g.NY)
	}

	if _, err := New(fm, 0); err == nil {
		t.Error("zero grid size should be rejected")
	}
	if _, err := New(fm, -1); err == nil {
		t.Error("negative grid size should be rejected")
	}
}

func TestIndexRoundTrip(t *testing.T) {
	g, err := New(roomFloor(t), 0.5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for idx := 0; idx < g.Len(); idx++ {
		i, j := g.Coord(idx)
		if g.Index(i, j) != idx {
			t.Fatalf("index %d -> (%d,%d) -> %d", idx, i, j, g.Index(i, j))
		}
	}
}

func TestLocatePrefersLowerIndexOnBoundary(t *testing.T) {
	g, err := New(roomFloor(t), 0.5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// x = 0.3 is the boundary between columns 0 and 1
	i, j, ok := g.Locate(r2.Point{X: 0.3, Y: 1.0})
	if !ok || i != 0 || j != 2 {
		t.Errorf("Locate(0.3, 1.0) = (%d,%d,%v), want (0,2,true)", i, j, ok)
	}

	if _, _, ok := g.Locate(r2.Point{X: 50, Y: 1}); ok {
		t.Error("point outside the grid should not be located")
	}
}

func TestClassifyOrder(t *testing.T) {
	fm := roomFloor(t)
	g, err := New(fm, 0.5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mask := BuildWallMask(g, fm.Walls)
	west := fm.Doors["W"]
	east := fm.Doors["E"]

	// column 0 overlaps the west wall; row 5 also overlaps the west door
	if got := mask.Classify(0, 5, []spatial.Rect{west, east}); got != OkDoor {
		t.Errorf("door cell = %v, want ok_door", got)
	}
	// the same cell without the door in the query is a wall
	if got := mask.Classify(0, 5, []spatial.Rect{east}); got != Wall {
		t.Errorf("door cell outside the query = %v, want wall", got)
	}
	if got := mask.Classify(0, 0, []spatial.Rect{west, east}); got != Wall {
		t.Errorf("corner cell = %v, want wall", got)
	}
	if got := mask.Classify(10, 5, []spatial.Rect{west, east}); got != Empty {
		t.Errorf("room cell = %v, want empty", got)
	}

	c := mask.Cell(10, 5, nil)
	if c.I != 10 || c.J != 5 || c.Class != Empty || !c.Class.Passable() {
		t.Errorf("cell = %+v", c)
	}
}

func TestNavigableMatchesFullClassification(t *testing.T) {
	fm := roomFloor(t)
	g, err := New(fm, 0.5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mask := BuildWallMask(g, fm.Walls)
	doors := []spatial.Rect{fm.Doors["W"], fm.Doors["E"]}
	nav := mask.Navigable(doors...)

	for i := 0; i < g.NX; i++ {
		for j := 0; j < g.NY; j++ {
			// reference behavior: classify each cell against all geometry
			box := g.CellBox(i, j)
			want := spatial.IntersectsAny(box, doors) || !spatial.IntersectsAny(box, fm.Walls)
			if got := nav.Has(i, j); got != want {
				t.Fatalf("cell (%d,%d): navigable=%v, want %v", i, j, got, want)
			}
		}
	}
}

func TestEdgeWeights(t *testing.T) {
	fm := roomFloor(t)
	g, err := New(fm, 0.5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	nav := BuildWallMask(g, fm.Walls).Navigable(fm.Doors["W"], fm.Doors["E"])

	edges := 0
	for idx := 0; idx < g.Len(); idx++ {
		i, j := g.Coord(idx)
		if !nav.Has(i, j) {
			continue
		}
		nav.Neighbors(idx, func(to int, w float64) {
			edges++
			ti, tj := g.Coord(to)
			if !nav.Has(ti, tj) {
				t.Fatalf("edge (%d,%d)->(%d,%d) leaves the graph", i, j, ti, tj)
			}
			di, dj := ti-i, tj-j
			switch {
			case di == 0 || dj == 0:
				if math.Abs(w-0.5) > 1e-9 {
					t.Fatalf("orthogonal weight %g", w)
				}
			default:
				if math.Abs(w-0.5*math.Sqrt2) > 1e-9 {
					t.Fatalf("diagonal weight %g", w)
				}
				if !nav.Has(i+di, j) || !nav.Has(i, j+dj) {
					t.Fatalf("diagonal (%d,%d)->(%d,%d) without flanking cells", i, j, ti, tj)
				}
			}
		})
	}
	if edges == 0 {
		t.Fatal("expected edges in the open room")
	}
}

func TestDiagonalRequiresFlankingCells(t *testing.T) {
	b := &models.BuildingModel{
		Walls: []models.Element{
			// corner posts fixing the bounds to 4 m x 4 m
			{Name: "post-sw", Floor: "L1", X0: 0, X1: 0.1, Y0: 0, Y1: 0.1},
			{Name: "post-ne", Floor: "L1", X0: 3.9, X1: 4, Y0: 3.9, Y1: 4},
			// blocks cell (2,1) only
			{Name: "pillar", Floor: "L1", X0: 2.2, X1: 2.8, Y0: 1.2, Y1: 1.8},
		},
	}
	fm, err := floorplan.New(b, "L1", nil)
	if err != nil {
		t.Fatalf("floorplan.New: %v", err)
	}
	g, err := New(fm, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	nav := BuildWallMask(g, fm.Walls).Navigable()
	if nav.Has(2, 1) || nav.Has(0, 0) || nav.Has(3, 3) {
		t.Fatal("wall cells should not be nodes")
	}

	hasEdge := func(fromI, fromJ, toI, toJ int) bool {
		found := false
		nav.Neighbors(g.Index(fromI, fromJ), func(to int, _ float64) {
			if to == g.Index(toI, toJ) {
				found = true
			}
		})
		return found
	}

	if hasEdge(1, 2, 2, 1) {
		t.Error("edge into a wall cell")
	}
	if hasEdge(1, 1, 2, 2) {
		t.Error("diagonal edge cut past a blocked flank")
	}
	if !hasEdge(1, 2, 2, 3) {
		t.Error("expected diagonal edge (1,2)->(2,3)")
	}
	if !hasEdge(2, 3, 1, 2) {
		t.Error("diagonal edges should be symmetric")
	}
}

func TestNewRejectsOversizedGrid(t *testing.T) {
	fm := roomFloor(t)

	// 21 x 11 cells at 0.5 m
	if _, err := NewLimited(fm, 0.5, 231); err != nil {
		t.Fatalf("grid at the limit: %v", err)
	}
	if _, err := NewLimited(fm, 0.5, 230); !errors.Is(err, ErrGridTooLarge) {
		t.Errorf("expected ErrGridTooLarge over the limit, got %v", err)
	}

	tests := []struct {
		name string
		size float64
	}{
		{"tiny cells", 1e-5},
		{"int overflow", 1e-300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(fm, tt.size)
			if !errors.Is(err, ErrGridTooLarge) {
				t.Errorf("expected ErrGridTooLarge, got grid %v err %v", g, err)
			}
		})
	}
}
