// Package floorplan builds the per-floor view of a building used for pathfinding.
package floorplan

import (
	"errors"
	"fmt"
	"sort"

	"github.com/zyedidia/generic/mapset"

	"github.com/yinchi/digital-hospitals/internal/models"
	"github.com/yinchi/digital-hospitals/internal/spatial"
)

var (
	// ErrDegenerateFloor is returned for a floor without any walls
	ErrDegenerateFloor = errors.New("degenerate floor")

	// ErrInvalidDoorReference is returned when a requested door does not exist on the floor
	ErrInvalidDoorReference = errors.New("invalid door reference")
)

// Bounds is the extent of a floor, taken over its walls
type Bounds struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
}

// Width returns the x extent
func (b Bounds) Width() float64 { return b.XMax - b.XMin }

// Height returns the y extent
func (b Bounds) Height() float64 { return b.YMax - b.YMin }

// FloorModel holds the walls of one floor and the doors of interest on it.
// It is read-only once built and may be shared between goroutines.
type FloorModel struct {
	FloorID   string
	Elevation float64
	Walls     []spatial.Rect
	Doors     map[string]spatial.Rect
	DoorOrder []string // natural order of door names
	Bounds    Bounds
}

// New constructs the model of a floor, keeping all walls on the floor and
// only the doors named in include.
func New(building *models.BuildingModel, floor string, include []string) (*FloorModel, error) {
	wanted := mapset.New[string]()
	for _, name := range include {
		wanted.Put(name)
	}

	fm := &FloorModel{
		FloorID:   floor,
		Elevation: building.Elevations[floor],
		Doors:     make(map[string]spatial.Rect),
	}

	for _, w := range building.WallsOn(floor) {
		r, err := spatial.NewRect(w.X0, w.Y0, w.X1, w.Y1, floor)
		if err != nil {
			return nil, fmt.Errorf("wall %q on floor %q: %w", w.Name, floor, err)
		}
		fm.Walls = append(fm.Walls, r)
	}

	for _, d := range building.DoorsOn(floor) {
		if !wanted.Has(d.Name) {
			continue
		}
		r, err := spatial.NewRect(d.X0, d.Y0, d.X1, d.Y1, floor)
		if err != nil {
			return nil, fmt.Errorf("door %q on floor %q: %w", d.Name, floor, err)
		}
		if _, dup := fm.Doors[d.Name]; !dup {
			fm.DoorOrder = append(fm.DoorOrder, d.Name)
		}
		fm.Doors[d.Name] = r
	}

	for _, name := range include {
		if _, ok := fm.Doors[name]; !ok {
			return nil, fmt.Errorf("%w: door %q is not on floor %q", ErrInvalidDoorReference, name, floor)
		}
	}

	xMin, yMin, xMax, yMax, ok := spatial.BoundingBox(fm.Walls)
	if !ok {
		return nil, fmt.Errorf("%w: floor %q has no walls", ErrDegenerateFloor, floor)
	}
	fm.Bounds = Bounds{XMin: xMin, XMax: xMax, YMin: yMin, YMax: yMax}

	sort.SliceStable(fm.DoorOrder, func(i, j int) bool {
		return NaturalLess(fm.DoorOrder[i], fm.DoorOrder[j])
	})

	return fm, nil
}

// Door returns the rectangle of a door of interest
func (fm *FloorModel) Door(name string) (spatial.Rect, error) {
	r, ok := fm.Doors[name]
	if !ok {
		return spatial.Rect{}, fmt.Errorf("%w: door %q is not on floor %q", ErrInvalidDoorReference, name, fm.FloorID)
	}
	return r, nil
}

// OutOfBounds returns the doors of interest that do not lie within the floor bounds
func (fm *FloorModel) OutOfBounds() []string {
	b, err := spatial.NewRect(fm.Bounds.XMin, fm.Bounds.YMin, fm.Bounds.XMax, fm.Bounds.YMax, fm.FloorID)
	if err != nil {
		return append([]string(nil), fm.DoorOrder...)
	}

	var out []string
	for _, name := range fm.DoorOrder {
		if !b.Contains(fm.Doors[name]) {
			out = append(out, name)
		}
	}
	return out
}

// Pairs returns every unordered pair of doors of interest, in door order
func (fm *FloorModel) Pairs() [][2]string {
	n := len(fm.DoorOrder)
	pairs := make([][2]string, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, [2]string{fm.DoorOrder[i], fm.DoorOrder[j]})
		}
	}
	return pairs
}
