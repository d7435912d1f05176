package models

import (
	"fmt"
)

// Element is a wall or door bounding box extracted from the building model.
// All walls and doors are axis-aligned boxes; only the footprint and the
// bottom elevation are kept.
type Element struct {
	Name  string  `json:"name" yaml:"name"`
	Floor string  `json:"floor" yaml:"floor"`
	X0    float64 `json:"x0" yaml:"x0"`
	X1    float64 `json:"x1" yaml:"x1"`
	Y0    float64 `json:"y0" yaml:"y0"`
	Y1    float64 `json:"y1" yaml:"y1"`
	Z0    float64 `json:"z0" yaml:"z0"`
}

// BuildingModel is the geometry of a facility, grouped by floor
type BuildingModel struct {
	// Elevation of each building storey, in meters
	Elevations map[string]float64 `json:"elevations" yaml:"elevations"`
	Doors      []Element          `json:"doors" yaml:"doors"`
	Walls      []Element          `json:"walls" yaml:"walls"`
}

// DoorFloors returns every floor on which a door with the given name exists
func (m *BuildingModel) DoorFloors(name string) []string {
	var floors []string
	for _, d := range m.Doors {
		if d.Name == name {
			floors = append(floors, d.Floor)
		}
	}
	return floors
}

// WallsOn returns the walls tagged with floor
func (m *BuildingModel) WallsOn(floor string) []Element {
	var walls []Element
	for _, w := range m.Walls {
		if w.Floor == floor {
			walls = append(walls, w)
		}
	}
	return walls
}

// DoorsOn returns the doors tagged with floor
func (m *BuildingModel) DoorsOn(floor string) []Element {
	var doors []Element
	for _, d := range m.Doors {
		if d.Floor == floor {
			doors = append(doors, d)
		}
	}
	return doors
}

// ElementColumns is the column-oriented form of a list of elements, one
// slice per attribute. It is the wire format accepted by the BIM service.
type ElementColumns struct {
	DoorName []string  `json:"door_name,omitempty" yaml:"door_name,omitempty"`
	WallName []string  `json:"wall_name,omitempty" yaml:"wall_name,omitempty"`
	Floor    []string  `json:"floor" yaml:"floor"`
	X0       []float64 `json:"x0" yaml:"x0"`
	X1       []float64 `json:"x1" yaml:"x1"`
	Y0       []float64 `json:"y0" yaml:"y0"`
	Y1       []float64 `json:"y1" yaml:"y1"`
	Z0       []float64 `json:"z0" yaml:"z0"`
}

// BimData is the serialised form of a BuildingModel
type BimData struct {
	Elevations map[string]float64 `json:"elevations" yaml:"elevations"`
	Doors      ElementColumns     `json:"doors" yaml:"doors"`
	Walls      ElementColumns     `json:"walls" yaml:"walls"`
}

// ToModel converts the column form into a BuildingModel
func (d *BimData) ToModel() (*BuildingModel, error) {
	doors, err := d.Doors.rows(d.Doors.DoorName)
	if err != nil {
		return nil, fmt.Errorf("invalid door columns: %w", err)
	}

	walls, err := d.Walls.rows(d.Walls.WallName)
	if err != nil {
		return nil, fmt.Errorf("invalid wall columns: %w", err)
	}

	elevations := make(map[string]float64, len(d.Elevations))
	for k, v := range d.Elevations {
		elevations[k] = v
	}

	return &BuildingModel{
		Elevations: elevations,
		Doors:      doors,
		Walls:      walls,
	}, nil
}

// BimDataFromModel converts a BuildingModel into its column form
func BimDataFromModel(m *BuildingModel) *BimData {
	data := &BimData{Elevations: make(map[string]float64, len(m.Elevations))}
	for k, v := range m.Elevations {
		data.Elevations[k] = v
	}

	for _, e := range m.Doors {
		data.Doors.DoorName = append(data.Doors.DoorName, e.Name)
		data.Doors.append(e)
	}
	for _, e := range m.Walls {
		data.Walls.WallName = append(data.Walls.WallName, e.Name)
		data.Walls.append(e)
	}

	return data
}

func (c *ElementColumns) append(e Element) {
	c.Floor = append(c.Floor, e.Floor)
	c.X0 = append(c.X0, e.X0)
	c.X1 = append(c.X1, e.X1)
	c.Y0 = append(c.Y0, e.Y0)
	c.Y1 = append(c.Y1, e.Y1)
	c.Z0 = append(c.Z0, e.Z0)
}

func (c *ElementColumns) rows(names []string) ([]Element, error) {
	n := len(names)
	lengths := map[string]int{
		"floor": len(c.Floor),
		"x0":    len(c.X0),
		"x1":    len(c.X1),
		"y0":    len(c.Y0),
		"y1":    len(c.Y1),
	}
	for col, l := range lengths {
		if l != n {
			return nil, fmt.Errorf("column %q has %d entries, expected %d", col, l, n)
		}
	}
	// z0 is optional
	if len(c.Z0) != 0 && len(c.Z0) != n {
		return nil, fmt.Errorf("column \"z0\" has %d entries, expected %d", len(c.Z0), n)
	}

	elements := make([]Element, n)
	for i := 0; i < n; i++ {
		elements[i] = Element{
			Name:  names[i],
			Floor: c.Floor[i],
			X0:    c.X0[i],
			X1:    c.X1[i],
			Y0:    c.Y0[i],
			Y1:    c.Y1[i],
		}
		if len(c.Z0) == n {
			elements[i].Z0 = c.Z0[i]
		}
	}

	return elements, nil
}
