// Package runner computes runner times between the doors of a building:
// one logical graph per floor from grid shortest paths, composed across
// floors with manually defined extra paths.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yinchi/digital-hospitals/internal/analysis"
	"github.com/yinchi/digital-hospitals/internal/analysis/grid"
	"github.com/yinchi/digital-hospitals/internal/analysis/pathfind"
	"github.com/yinchi/digital-hospitals/internal/floorplan"
	"github.com/yinchi/digital-hospitals/internal/graph"
	"github.com/yinchi/digital-hospitals/internal/models"
)

// ErrInvalidExtraPath is returned for an extra path joining a door to itself
// or carrying a negative duration
var ErrInvalidExtraPath = errors.New("invalid extra path")

// Options control a runner-times computation
type Options struct {
	GridSize    float64 // meters
	RunnerSpeed float64 // m/s
	Workers     int     // concurrent pair searches, NumCPU when zero
	MaxCells    int     // cell limit per floor grid, grid.DefaultMaxCells when zero
	Progress    analysis.ProgressFunc
}

// DefaultOptions returns the default grid size and runner speed
func DefaultOptions() Options {
	return Options{
		GridSize:    models.DefaultGridSize,
		RunnerSpeed: models.DefaultRunnerSpeed,
	}
}

// ForRequest overrides the grid size and runner speed with the values set in req
func (o Options) ForRequest(req models.RequestParams) Options {
	if req.GridSize != 0 {
		o.GridSize = req.GridSize
	}
	if req.RunnerSpeed != 0 {
		o.RunnerSpeed = req.RunnerSpeed
	}
	return o
}

// Validate rejects non-positive parameters
func (o Options) Validate() error {
	if o.GridSize <= 0 {
		return fmt.Errorf("grid size must be positive, got %g", o.GridSize)
	}
	if o.RunnerSpeed <= 0 {
		return fmt.Errorf("runner speed must be positive, got %g", o.RunnerSpeed)
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", o.Workers)
	}
	if o.MaxCells < 0 {
		return fmt.Errorf("max cells must not be negative, got %d", o.MaxCells)
	}
	return nil
}

func (o Options) maxCells() int {
	if o.MaxCells > 0 {
		return o.MaxCells
	}
	return grid.DefaultMaxCells
}

// CheckGridSize reports grid.ErrGridTooLarge when the grid of any floor
// holding one of doors would exceed the cell limit. Other geometry problems
// are left to the computation.
func CheckGridSize(building *models.BuildingModel, doors []string, opts Options) error {
	seen := make(map[string]struct{})
	var floors []string
	for _, name := range doors {
		for _, f := range building.DoorFloors(name) {
			if _, ok := seen[f]; !ok {
				seen[f] = struct{}{}
				floors = append(floors, f)
			}
		}
	}
	sort.Slice(floors, func(i, j int) bool { return floorplan.NaturalLess(floors[i], floors[j]) })

	for _, f := range floors {
		fm, err := floorplan.New(building, f, nil)
		if err != nil {
			continue
		}
		if _, err := grid.NewLimited(fm, opts.GridSize, opts.maxCells()); errors.Is(err, grid.ErrGridTooLarge) {
			return err
		}
	}
	return nil
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// Result is a composed runner-times graph
type Result struct {
	Graph    *graph.LogicalGraph
	Warnings []string
	Floors   []string
}

// FloorGraph builds the logical graph of one floor. Every door of interest is
// a node; an edge joins two doors when a grid path exists between them,
// weighted by the runner time in seconds.
func FloorGraph(ctx context.Context, fm *floorplan.FloorModel, opts Options) (*graph.LogicalGraph, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	pairs := fm.Pairs()
	return floorGraph(ctx, fm, opts, analysis.NewTracker(len(pairs), opts.Progress))
}

func floorGraph(ctx context.Context, fm *floorplan.FloorModel, opts Options, tracker *analysis.Tracker) (*graph.LogicalGraph, error) {
	start := time.Now()

	g, err := grid.NewLimited(fm, opts.GridSize, opts.maxCells())
	if err != nil {
		return nil, fmt.Errorf("failed to build grid for floor %q: %w", fm.FloorID, err)
	}
	mask := grid.BuildWallMask(g, fm.Walls)

	pairs := fm.Pairs()
	outcomes := make([]pathfind.Outcome, len(pairs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.workers())
	for k, pair := range pairs {
		if egCtx.Err() != nil {
			break
		}
		k, pair := k, pair
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			a, b := fm.Doors[pair[0]], fm.Doors[pair[1]]
			out, err := pathfind.ShortestPath(mask.Navigable(a, b), a, b)
			if err != nil {
				return fmt.Errorf("doors %q and %q on floor %q: %w", pair[0], pair[1], fm.FloorID, err)
			}
			outcomes[k] = out
			tracker.Done(out.Found, fmt.Sprintf("%s: %s - %s", fm.FloorID, pair[0], pair[1]))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lg := graph.New()
	for _, name := range fm.DoorOrder {
		lg.AddNode(name)
	}
	unreachable := 0
	for k, pair := range pairs {
		out := outcomes[k]
		if !out.Found {
			unreachable++
			continue
		}
		if err := lg.AddEdge(pair[0], pair[1], out.Length/opts.RunnerSpeed, nil); err != nil {
			return nil, fmt.Errorf("failed to add edge on floor %q: %w", fm.FloorID, err)
		}
	}

	log.Printf("[Runner] Floor %s: %d doors, %d pairs, %d unreachable, %dx%d grid, %d blocked cells (%v)",
		fm.FloorID, len(fm.DoorOrder), len(pairs), unreachable, g.NX, g.NY, mask.BlockedCount(), time.Since(start))
	return lg, nil
}

// PathResult is the route between a single pair of doors
type PathResult struct {
	Floor      string
	From, To   string
	Outcome    pathfind.Outcome
	RunnerTime float64 // seconds, zero when unreachable
}

// Path computes the route between two doors on one floor
func Path(ctx context.Context, building *models.BuildingModel, floor, from, to string, opts Options) (*PathResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	include := []string{from, to}
	if from == to {
		include = include[:1]
	}
	fm, err := floorplan.New(building, floor, include)
	if err != nil {
		return nil, err
	}
	g, err := grid.NewLimited(fm, opts.GridSize, opts.maxCells())
	if err != nil {
		return nil, err
	}

	a, b := fm.Doors[from], fm.Doors[to]
	out, err := pathfind.ShortestPath(grid.BuildWallMask(g, fm.Walls).Navigable(a, b), a, b)
	if err != nil {
		return nil, err
	}

	res := &PathResult{Floor: floor, From: from, To: to, Outcome: out}
	if out.Found {
		res.RunnerTime = out.Length / opts.RunnerSpeed
	}
	return res, nil
}

// Compose unions the floor graphs and applies the extra paths. A door that
// appears on several floor graphs becomes a single node and is reported in
// the warnings. Extra paths add or overwrite the edge between their doors.
func Compose(floors []*graph.LogicalGraph, extra []models.ExtraPath) (*graph.LogicalGraph, []string, error) {
	var warnings []string

	seen := make(map[string]int)
	for _, fg := range floors {
		for _, n := range fg.Nodes() {
			seen[n]++
		}
	}
	shared := make([]string, 0)
	for n, count := range seen {
		if count > 1 {
			shared = append(shared, n)
		}
	}
	sort.Strings(shared)
	for _, n := range shared {
		warnings = append(warnings, fmt.Sprintf("door %q appears on %d floors and was merged into one node", n, seen[n]))
	}

	composed := graph.New()
	for _, fg := range floors {
		composed.Merge(fg)
	}

	for _, p := range extra {
		a, b := p.Doors[0], p.Doors[1]
		if a == b {
			return nil, nil, fmt.Errorf("%w: %q joins a door to itself", ErrInvalidExtraPath, a)
		}
		if p.DurationSeconds < 0 {
			return nil, nil, fmt.Errorf("%w: %q - %q has negative duration %g", ErrInvalidExtraPath, a, b, p.DurationSeconds)
		}
		if !composed.HasNode(a) || !composed.HasNode(b) {
			warnings = append(warnings, fmt.Sprintf("extra path %q - %q adds a door outside the computed floors", a, b))
		}
		if err := composed.SetEdge(a, b, p.DurationSeconds, p.RequiredAssets); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidExtraPath, err)
		}
	}

	return composed, warnings, nil
}

// Compute builds the runner-times graph for the requested doors. The floors
// of the requested doors are processed in parallel, then composed with the
// extra paths.
func Compute(ctx context.Context, building *models.BuildingModel, req models.RequestParams, opts Options) (*Result, error) {
	opts = opts.ForRequest(req)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	perFloor := make(map[string][]string)
	for _, name := range req.DoorList {
		floors := building.DoorFloors(name)
		if len(floors) == 0 {
			return nil, fmt.Errorf("%w: door %q is not in the building model", floorplan.ErrInvalidDoorReference, name)
		}
		for _, f := range dedupe(floors) {
			perFloor[f] = append(perFloor[f], name)
		}
	}

	floorIDs := make([]string, 0, len(perFloor))
	for f := range perFloor {
		floorIDs = append(floorIDs, f)
	}
	sort.Slice(floorIDs, func(i, j int) bool { return floorplan.NaturalLess(floorIDs[i], floorIDs[j]) })

	fms := make([]*floorplan.FloorModel, len(floorIDs))
	total := 0
	for k, f := range floorIDs {
		fm, err := floorplan.New(building, f, dedupe(perFloor[f]))
		if err != nil {
			return nil, err
		}
		fms[k] = fm
		total += len(fm.Pairs())
	}
	tracker := analysis.NewTracker(total, opts.Progress)

	graphs := make([]*graph.LogicalGraph, len(fms))
	eg, egCtx := errgroup.WithContext(ctx)
	for k, fm := range fms {
		k, fm := k, fm
		eg.Go(func() error {
			lg, err := floorGraph(egCtx, fm, opts, tracker)
			if err != nil {
				return err
			}
			graphs[k] = lg
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	composed, warnings, err := Compose(graphs, req.ExtraPaths)
	if err != nil {
		return nil, err
	}

	log.Printf("[Runner] Computed %d doors on %d floors: %d nodes, %d edges (%v)",
		len(req.DoorList), len(floorIDs), composed.NodeCount(), composed.EdgeCount(), time.Since(start))
	return &Result{Graph: composed, Warnings: warnings, Floors: floorIDs}, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
