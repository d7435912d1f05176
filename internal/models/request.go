package models

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultGridSize is the pathfinding grid size in meters
	DefaultGridSize = 0.5

	// DefaultRunnerSpeed is the runner speed in m/s
	DefaultRunnerSpeed = 1.2
)

// ExtraPath is a manually defined connection between two doors, typically
// between floors via a lift or the stairs
type ExtraPath struct {
	Doors           [2]string `json:"doors" yaml:"doors"`
	DurationSeconds float64   `json:"duration_seconds" yaml:"duration_seconds"`
	RequiredAssets  []string  `json:"required_assets" yaml:"required_assets"`
}

// UnmarshalJSON also accepts the legacy "path" key for the door pair
func (p *ExtraPath) UnmarshalJSON(data []byte) error {
	var raw struct {
		Doors           *[2]string `json:"doors"`
		Path            *[2]string `json:"path"`
		DurationSeconds float64    `json:"duration_seconds"`
		RequiredAssets  []string   `json:"required_assets"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.Doors != nil:
		p.Doors = *raw.Doors
	case raw.Path != nil:
		p.Doors = *raw.Path
	default:
		return fmt.Errorf("extra path requires a \"doors\" pair")
	}
	p.DurationSeconds = raw.DurationSeconds
	p.RequiredAssets = raw.RequiredAssets
	return nil
}

// UnmarshalYAML accepts the same keys as UnmarshalJSON
func (p *ExtraPath) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Doors           []string `yaml:"doors"`
		Path            []string `yaml:"path"`
		DurationSeconds float64  `yaml:"duration_seconds"`
		RequiredAssets  []string `yaml:"required_assets"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	doors := raw.Doors
	if doors == nil {
		doors = raw.Path
	}
	if len(doors) != 2 {
		return fmt.Errorf("line %d: extra path requires a \"doors\" pair", value.Line)
	}
	p.Doors = [2]string{doors[0], doors[1]}
	p.DurationSeconds = raw.DurationSeconds
	p.RequiredAssets = raw.RequiredAssets
	return nil
}

// RequestParams are the parameters of a runner-times computation
type RequestParams struct {
	// Doors involved in the process, by name
	DoorList []string `json:"door_list" yaml:"door_list" binding:"required"`

	// Paths connecting different floors, e.g. via lift or stairs
	ExtraPaths []ExtraPath `json:"extra_paths" yaml:"extra_paths"`

	GridSize    float64 `json:"grid_size,omitempty" yaml:"grid_size,omitempty"`
	RunnerSpeed float64 `json:"runner_speed,omitempty" yaml:"runner_speed,omitempty"`
}

// WithDefaults fills unset numeric parameters
func (p RequestParams) WithDefaults(gridSize, runnerSpeed float64) RequestParams {
	if p.GridSize == 0 {
		p.GridSize = gridSize
	}
	if p.RunnerSpeed == 0 {
		p.RunnerSpeed = runnerSpeed
	}
	return p
}
