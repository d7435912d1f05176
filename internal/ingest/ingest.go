// Package ingest reads building geometry and request parameters from YAML or
// JSON files.
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yinchi/digital-hospitals/internal/models"
)

// Options control how geometry files are interpreted
type Options struct {
	// ElevationScale converts elevations and z0 values to meters,
	// e.g. 0.001 for millimeters. Zero means 1.
	ElevationScale float64
}

func (o Options) scale() float64 {
	if o.ElevationScale == 0 {
		return 1
	}
	return o.ElevationScale
}

// document accepts both layouts of a building file: doors and walls either as
// column mappings or as sequences of elements
type document struct {
	Elevations map[string]float64 `yaml:"elevations"`
	Doors      yaml.Node          `yaml:"doors"`
	Walls      yaml.Node          `yaml:"walls"`
}

// Load reads a building model from a YAML or JSON file
func Load(path string, opts Options) (*models.BuildingModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open building file: %w", err)
	}
	defer f.Close()

	m, err := Decode(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Decode reads a building model. JSON input is accepted as YAML.
func Decode(r io.Reader, opts Options) (*models.BuildingModel, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read building data: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse building data: %w", err)
	}

	m := &models.BuildingModel{Elevations: make(map[string]float64, len(doc.Elevations))}
	scale := opts.scale()
	for floor, z := range doc.Elevations {
		m.Elevations[floor] = z * scale
	}

	if m.Doors, err = elements(&doc.Doors, "door_name"); err != nil {
		return nil, fmt.Errorf("invalid doors: %w", err)
	}
	if m.Walls, err = elements(&doc.Walls, "wall_name"); err != nil {
		return nil, fmt.Errorf("invalid walls: %w", err)
	}
	for i := range m.Doors {
		m.Doors[i].Z0 *= scale
	}
	for i := range m.Walls {
		m.Walls[i].Z0 *= scale
	}

	return m, nil
}

func elements(node *yaml.Node, nameColumn string) ([]models.Element, error) {
	switch node.Kind {
	case 0:
		return nil, nil

	case yaml.SequenceNode:
		var rows []models.Element
		if err := node.Decode(&rows); err != nil {
			return nil, err
		}
		return rows, nil

	case yaml.MappingNode:
		var cols models.ElementColumns
		if err := node.Decode(&cols); err != nil {
			return nil, err
		}
		data := models.BimData{}
		if nameColumn == "door_name" {
			data.Doors = cols
			m, err := data.ToModel()
			if err != nil {
				return nil, err
			}
			return m.Doors, nil
		}
		data.Walls = cols
		m, err := data.ToModel()
		if err != nil {
			return nil, err
		}
		return m.Walls, nil

	default:
		return nil, fmt.Errorf("expected a list of elements or a column mapping at line %d", node.Line)
	}
}

// LoadRequest reads computation parameters from a YAML or JSON file
func LoadRequest(path string) (*models.RequestParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}

	var req models.RequestParams
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("failed to parse request file %s: %w", path, err)
	}
	if len(req.DoorList) == 0 {
		return nil, fmt.Errorf("request file %s has an empty door_list", path)
	}
	return &req, nil
}

// Encode writes a building model in column form as YAML
func Encode(w io.Writer, m *models.BuildingModel) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(models.BimDataFromModel(m)); err != nil {
		return fmt.Errorf("failed to encode building data: %w", err)
	}
	return enc.Close()
}
