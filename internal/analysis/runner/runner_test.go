package runner

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/yinchi/digital-hospitals/internal/analysis"
	"github.com/yinchi/digital-hospitals/internal/analysis/grid"
	"github.com/yinchi/digital-hospitals/internal/analysis/pathfind"
	"github.com/yinchi/digital-hospitals/internal/floorplan"
	"github.com/yinchi/digital-hospitals/internal/graph"
	"github.com/yinchi/digital-hospitals/internal/models"
)

// roomWalls encloses a 10 m x 5 m room on floor with 0.2 m walls
func roomWalls(floor string) []models.Element {
	return []models.Element{
		{Name: floor + "-south", Floor: floor, X0: -0.2, X1: 10.2, Y0: -0.2, Y1: 0},
		{Name: floor + "-north", Floor: floor, X0: -0.2, X1: 10.2, Y0: 5, Y1: 5.2},
		{Name: floor + "-west", Floor: floor, X0: -0.2, X1: 0, Y0: -0.2, Y1: 5.2},
		{Name: floor + "-east", Floor: floor, X0: 10, X1: 10.2, Y0: -0.2, Y1: 5.2},
	}
}

// building has two floors. L1 holds doors d1 (west wall) and d2 (south wall) in an open
// room, plus d5 behind a full-height divider. L2 holds d3 and d4.
func building() *models.BuildingModel {
	walls := append(roomWalls("L1"), roomWalls("L2")...)
	walls = append(walls, models.Element{Name: "divider", Floor: "L1", X0: 7.9, X1: 8.1, Y0: -0.2, Y1: 5.2})
	return &models.BuildingModel{
		Elevations: map[string]float64{"L1": 0, "L2": 4.5},
		Walls:      walls,
		Doors: []models.Element{
			{Name: "d1", Floor: "L1", X0: -0.2, X1: 0, Y0: 2, Y1: 3},
			{Name: "d2", Floor: "L1", X0: 3, X1: 4, Y0: -0.2, Y1: 0},
			{Name: "d5", Floor: "L1", X0: 10, X1: 10.2, Y0: 2, Y1: 3},
			{Name: "d3", Floor: "L2", X0: -0.2, X1: 0, Y0: 2, Y1: 3},
			{Name: "d4", Floor: "L2", X0: 10, X1: 10.2, Y0: 2, Y1: 3},
		},
	}
}

func TestFloorGraphOmitsDisconnectedPairs(t *testing.T) {
	fm, err := floorplan.New(building(), "L1", []string{"d1", "d2", "d5"})
	if err != nil {
		t.Fatalf("floorplan.New: %v", err)
	}

	lg, err := FloorGraph(context.Background(), fm, DefaultOptions())
	if err != nil {
		t.Fatalf("FloorGraph: %v", err)
	}
	if got := lg.Nodes(); !reflect.DeepEqual(got, []string{"d1", "d2", "d5"}) {
		t.Errorf("nodes = %v", got)
	}
	if !lg.HasEdge("d1", "d2") {
		t.Error("d1 and d2 share a room and should be connected")
	}
	if lg.HasEdge("d1", "d5") || lg.HasEdge("d2", "d5") {
		t.Error("d5 is behind the divider and should have no edges")
	}
}

func TestFloorGraphWeightIsRunnerTime(t *testing.T) {
	b := building()
	opts := DefaultOptions()

	fm, err := floorplan.New(b, "L2", []string{"d3", "d4"})
	if err != nil {
		t.Fatalf("floorplan.New: %v", err)
	}
	lg, err := FloorGraph(context.Background(), fm, opts)
	if err != nil {
		t.Fatalf("FloorGraph: %v", err)
	}

	p, err := Path(context.Background(), b, "L2", "d3", "d4", opts)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if !p.Outcome.Found {
		t.Fatal("expected a path across L2")
	}

	w, ok := lg.Weight("d3", "d4")
	if !ok {
		t.Fatal("missing edge d3 - d4")
	}
	if want := p.Outcome.Length / opts.RunnerSpeed; w != want || p.RunnerTime != want {
		t.Errorf("weight = %v, path runner time = %v, want %v", w, p.RunnerTime, want)
	}
	if want := 10.0 / 1.2; math.Abs(w-want) > 0.05*want {
		t.Errorf("runner time = %g, want about %g", w, want)
	}
}

func TestComposePrecedence(t *testing.T) {
	floor := graph.New()
	if err := floor.SetEdge("d1", "d2", 12.5, nil); err != nil {
		t.Fatalf("SetEdge: %v", err)
	}

	composed, _, err := Compose([]*graph.LogicalGraph{floor}, []models.ExtraPath{
		{Doors: [2]string{"d2", "d1"}, DurationSeconds: 30, RequiredAssets: []string{"lift"}},
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	e, ok := composed.Edge("d1", "d2")
	if !ok {
		t.Fatal("missing edge d1 - d2")
	}
	if e.Weight != 30 || !reflect.DeepEqual(e.RequiredAssets, []string{"lift"}) {
		t.Errorf("edge = %+v, want weight 30 with lift", e)
	}
	if composed.EdgeCount() != 1 {
		t.Errorf("edge count = %d, want 1", composed.EdgeCount())
	}
	// the input floor graph is left untouched
	if w, _ := floor.Weight("d1", "d2"); w != 12.5 {
		t.Errorf("floor graph weight changed to %v", w)
	}
}

func TestComposeRejectsInvalidExtraPaths(t *testing.T) {
	tests := []struct {
		name  string
		extra models.ExtraPath
	}{
		{"self-loop", models.ExtraPath{Doors: [2]string{"d1", "d1"}, DurationSeconds: 5}},
		{"negative duration", models.ExtraPath{Doors: [2]string{"d1", "d2"}, DurationSeconds: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Compose(nil, []models.ExtraPath{tt.extra})
			if !errors.Is(err, ErrInvalidExtraPath) {
				t.Errorf("expected ErrInvalidExtraPath, got %v", err)
			}
		})
	}
}

func TestComposeWarnsOnSharedDoor(t *testing.T) {
	a, b := graph.New(), graph.New()
	a.AddNode("stairs")
	b.AddNode("stairs")
	b.AddNode("d9")

	composed, warnings, err := Compose([]*graph.LogicalGraph{a, b}, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if composed.NodeCount() != 2 {
		t.Errorf("node count = %d, want 2", composed.NodeCount())
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want one", warnings)
	}
}

func TestComputeAcrossFloors(t *testing.T) {
	req := models.RequestParams{
		DoorList: []string{"d4", "d1", "d3", "d2"},
		ExtraPaths: []models.ExtraPath{
			{Doors: [2]string{"d1", "d3"}, DurationSeconds: 45, RequiredAssets: []string{"lift"}},
		},
	}

	if _, err := Compute(context.Background(), building(), req, Options{Workers: 2}); err == nil {
		t.Fatal("expected zero options to be rejected")
	}

	res, err := Compute(context.Background(), building(), req, DefaultOptions())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !reflect.DeepEqual(res.Floors, []string{"L1", "L2"}) {
		t.Errorf("floors = %v", res.Floors)
	}
	if got := res.Graph.Nodes(); !reflect.DeepEqual(got, []string{"d1", "d2", "d3", "d4"}) {
		t.Errorf("nodes = %v", got)
	}
	for _, pair := range [][2]string{{"d1", "d2"}, {"d3", "d4"}, {"d1", "d3"}} {
		if !res.Graph.HasEdge(pair[0], pair[1]) {
			t.Errorf("missing edge %v", pair)
		}
	}
	if res.Graph.HasEdge("d2", "d4") {
		t.Error("doors on different floors without an extra path must not be connected")
	}
	for _, e := range res.Graph.Edges() {
		if e.A == e.B {
			t.Errorf("self-loop on %q", e.A)
		}
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	req := models.RequestParams{DoorList: []string{"d1", "d2", "d5", "d3", "d4"}}

	first, err := Compute(context.Background(), building(), req, Options{GridSize: 0.5, RunnerSpeed: 1.2, Workers: 4})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for run := 0; run < 3; run++ {
		again, err := Compute(context.Background(), building(), req, Options{GridSize: 0.5, RunnerSpeed: 1.2, Workers: 1})
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if !reflect.DeepEqual(again.Graph.Edges(), first.Graph.Edges()) {
			t.Fatalf("run %d: edges differ", run)
		}
	}
}

func TestComputeUnknownDoor(t *testing.T) {
	req := models.RequestParams{DoorList: []string{"d1", "nowhere"}}
	_, err := Compute(context.Background(), building(), req, DefaultOptions())
	if !errors.Is(err, floorplan.ErrInvalidDoorReference) {
		t.Fatalf("expected ErrInvalidDoorReference, got %v", err)
	}
}

func TestComputeAmbiguousDoor(t *testing.T) {
	b := building()
	b.Doors = append(b.Doors, models.Element{Name: "far", Floor: "L2", X0: 40, X1: 41, Y0: 2, Y1: 3})

	_, err := Compute(context.Background(), b, models.RequestParams{DoorList: []string{"d3", "far"}}, DefaultOptions())
	if !errors.Is(err, pathfind.ErrAmbiguousDoorLocation) {
		t.Fatalf("expected ErrAmbiguousDoorLocation, got %v", err)
	}
}

func TestComputeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Compute(ctx, building(), models.RequestParams{DoorList: []string{"d1", "d2"}}, DefaultOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestComputeReportsProgress(t *testing.T) {
	var mu sync.Mutex
	var last analysis.Progress
	opts := DefaultOptions()
	opts.Progress = func(p analysis.Progress) {
		mu.Lock()
		last = p
		mu.Unlock()
	}

	req := models.RequestParams{DoorList: []string{"d1", "d2", "d5", "d3", "d4"}}
	if _, err := Compute(context.Background(), building(), req, opts); err != nil {
		t.Fatalf("Compute: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	// three pairs on L1 and one on L2, d5 unreachable from both L1 doors
	if last.Total != 4 || last.Processed != 4 || last.Unreachable != 2 || last.Percent != 100 {
		t.Errorf("final progress = %+v", last)
	}
}

func TestPathUnknownDoor(t *testing.T) {
	_, err := Path(context.Background(), building(), "L2", "d3", "d1", DefaultOptions())
	if !errors.Is(err, floorplan.ErrInvalidDoorReference) {
		t.Fatalf("expected ErrInvalidDoorReference, got %v", err)
	}
}

func TestComputeRejectsOversizedGrid(t *testing.T) {
	b := &models.BuildingModel{
		Elevations: map[string]float64{"G": 0},
		Walls: []models.Element{
			{Name: "s", Floor: "G", X0: 0, X1: 1000, Y0: 0, Y1: 1},
			{Name: "n", Floor: "G", X0: 0, X1: 1000, Y0: 999, Y1: 1000},
		},
		Doors: []models.Element{
			{Name: "a", Floor: "G", X0: 10, X1: 11, Y0: 0, Y1: 1},
			{Name: "b", Floor: "G", X0: 990, X1: 991, Y0: 999, Y1: 1000},
		},
	}
	req := models.RequestParams{DoorList: []string{"a", "b"}, GridSize: 1e-5}

	if err := CheckGridSize(b, req.DoorList, DefaultOptions().ForRequest(req)); !errors.Is(err, grid.ErrGridTooLarge) {
		t.Errorf("CheckGridSize: expected ErrGridTooLarge, got %v", err)
	}
	if _, err := Compute(context.Background(), b, req, DefaultOptions()); !errors.Is(err, grid.ErrGridTooLarge) {
		t.Errorf("Compute: expected ErrGridTooLarge, got %v", err)
	}
	if _, err := Path(context.Background(), b, "G", "a", "b", DefaultOptions().ForRequest(req)); !errors.Is(err, grid.ErrGridTooLarge) {
		t.Errorf("Path: expected ErrGridTooLarge, got %v", err)
	}
}

func TestMaxCellsOption(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxCells = 100
	// the 10.4 m x 5.4 m rooms need 21 x 11 cells at 0.5 m
	if err := CheckGridSize(building(), []string{"d3", "d4"}, opts); !errors.Is(err, grid.ErrGridTooLarge) {
		t.Errorf("expected ErrGridTooLarge, got %v", err)
	}
	opts.MaxCells = 231
	if err := CheckGridSize(building(), []string{"d3", "d4"}, opts); err != nil {
		t.Errorf("CheckGridSize: %v", err)
	}
	opts.MaxCells = -1
	if err := opts.Validate(); err == nil {
		t.Error("negative MaxCells should not validate")
	}
}
