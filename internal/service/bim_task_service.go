package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yinchi/digital-hospitals/internal/analysis"
	"github.com/yinchi/digital-hospitals/internal/analysis/runner"
	"github.com/yinchi/digital-hospitals/internal/graph"
	"github.com/yinchi/digital-hospitals/internal/models"
	"github.com/yinchi/digital-hospitals/internal/repository"
	"github.com/yinchi/digital-hospitals/internal/stats"
)

var (
	// ErrInvalidRequest is returned for requests rejected before a task is created
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoResult is returned when a task has no graph to summarize
	ErrNoResult = errors.New("task has no result")
)

// cancelledMessage is stored as the error message of cancelled tasks
const cancelledMessage = "cancelled"

// BimTaskService runs runner-times computations in the background and
// tracks their status
type BimTaskService struct {
	repo *repository.BimTaskRepository
	opts runner.Options

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup

	now func() time.Time
}

// NewBimTaskService creates a new task service. opts supplies the default grid
// size, runner speed and worker count.
func NewBimTaskService(repo *repository.BimTaskRepository, opts runner.Options) *BimTaskService {
	return &BimTaskService{
		repo:    repo,
		opts:    opts,
		running: make(map[string]context.CancelFunc),
		now:     time.Now,
	}
}

// Recover marks tasks left running by a previous process as failed
func (s *BimTaskService) Recover() error {
	n, err := s.repo.FailRunning("interrupted by server restart")
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("[BimTaskService] Marked %d interrupted tasks as failed", n)
	}
	return nil
}

// Submit validates a request, records a running task and starts the
// computation in the background
func (s *BimTaskService) Submit(building *models.BuildingModel, params models.RequestParams, createdBy string) (*models.BimTask, error) {
	if building == nil {
		return nil, fmt.Errorf("%w: missing building model", ErrInvalidRequest)
	}
	if len(params.DoorList) == 0 {
		return nil, fmt.Errorf("%w: door_list is empty", ErrInvalidRequest)
	}
	opts := s.opts.ForRequest(params)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := runner.CheckGridSize(building, params.DoorList, opts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize params: %w", err)
	}

	now := s.now()
	task := &models.BimTask{
		ID:          uuid.NewString(),
		Status:      models.BimTaskStatusRunning,
		ParamsJSON:  string(paramsJSON),
		RequestedTS: float64(now.UnixNano()) / 1e9,
		CreatedBy:   createdBy,
		CreatedAt:   now.Unix(),
	}
	if err := s.repo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.running[task.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runTask(ctx, task, building, params)

	return task, nil
}

func (s *BimTaskService) runTask(ctx context.Context, task *models.BimTask, building *models.BuildingModel, params models.RequestParams) {
	defer s.wg.Done()
	defer s.release(task.ID)

	start := time.Now()
	log.Printf("[BimTaskService] Starting task %s (%d doors)", task.ID, len(params.DoorList))

	if err := s.repo.MarkAsStarted(task.ID, len(params.DoorList), countFloors(building, params.DoorList)); err != nil {
		s.logPersistError(task.ID, "mark as started", err)
		return
	}

	opts := s.opts
	opts.Progress = func(p analysis.Progress) {
		if err := s.repo.UpdateProgress(task.ID, p.Percent); err != nil {
			log.Printf("[BimTaskService] Task %s: failed to update progress: %v", task.ID, err)
		}
	}

	result, err := runner.Compute(ctx, building, params, opts)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.Canceled) {
			msg = cancelledMessage
		}
		log.Printf("[BimTaskService] Task %s failed after %v: %s", task.ID, time.Since(start), msg)
		if err := s.repo.MarkAsFailed(task.ID, msg); err != nil {
			s.logPersistError(task.ID, "mark as failed", err)
		}
		return
	}

	graphJSON, err := json.Marshal(result.Graph)
	if err != nil {
		s.fail(task.ID, fmt.Errorf("failed to encode graph: %w", err))
		return
	}
	warningsJSON := ""
	if len(result.Warnings) > 0 {
		data, err := json.Marshal(result.Warnings)
		if err != nil {
			s.fail(task.ID, fmt.Errorf("failed to encode warnings: %w", err))
			return
		}
		warningsJSON = string(data)
	}

	if err := s.repo.MarkAsCompleted(task.ID, string(graphJSON), warningsJSON); err != nil {
		s.logPersistError(task.ID, "mark as completed", err)
		return
	}

	promoted, err := s.repo.PromoteLatest(task)
	if err != nil {
		log.Printf("[BimTaskService] Task %s: failed to promote latest result: %v", task.ID, err)
		return
	}

	log.Printf("[BimTaskService] Task %s completed in %v: %d nodes, %d edges, %d warnings, latest=%v",
		task.ID, time.Since(start), result.Graph.NodeCount(), result.Graph.EdgeCount(), len(result.Warnings), promoted)
}

func (s *BimTaskService) fail(id string, err error) {
	log.Printf("[BimTaskService] Task %s failed: %v", id, err)
	if err := s.repo.MarkAsFailed(id, err.Error()); err != nil {
		s.logPersistError(id, "mark as failed", err)
	}
}

// logPersistError logs a failed status update. A task that is no longer
// running was cancelled while the computation finished.
func (s *BimTaskService) logPersistError(id, action string, err error) {
	if errors.Is(err, repository.ErrTaskNotRunning) {
		log.Printf("[BimTaskService] Task %s was cancelled, skipping %s", id, action)
		return
	}
	log.Printf("[BimTaskService] Task %s: failed to %s: %v", id, action, err)
}

func (s *BimTaskService) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.running[id]; ok {
		cancel()
		delete(s.running, id)
	}
}

// Get returns the status and result of a task
func (s *BimTaskService) Get(id string) (*models.BimResult, error) {
	task, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	return task.Result()
}

// Latest returns the most recently requested successful result
func (s *BimTaskService) Latest() (*models.BimResult, error) {
	task, err := s.repo.GetLatest()
	if err != nil {
		return nil, err
	}
	return task.Result()
}

// GraphSummary describes the runner times of a completed graph
type GraphSummary struct {
	ID           string        `json:"id"`
	Nodes        int           `json:"nodes"`
	Edges        int           `json:"edges"`
	AssetEdges   int           `json:"asset_edges"` // edges with required assets
	RunnerTimes  stats.Summary `json:"runner_times"`
	Disconnected int           `json:"disconnected_pairs"`
}

// Summary summarizes the graph of a completed task, or of the latest result
// when id is empty
func (s *BimTaskService) Summary(id string) (*GraphSummary, error) {
	var (
		task *models.BimTask
		err  error
	)
	if id == "" {
		task, err = s.repo.GetLatest()
	} else {
		task, err = s.repo.GetByID(id)
	}
	if err != nil {
		return nil, err
	}
	if task.Status != models.BimTaskStatusOK {
		return nil, fmt.Errorf("%w: %s", ErrNoResult, task.ID)
	}

	g := graph.New()
	if err := json.Unmarshal([]byte(task.GraphJSON), g); err != nil {
		return nil, fmt.Errorf("failed to decode graph of task %s: %w", task.ID, err)
	}

	edges := g.Edges()
	weights := make([]float64, len(edges))
	sum := &GraphSummary{ID: task.ID, Nodes: g.NodeCount(), Edges: len(edges)}
	for i, e := range edges {
		weights[i] = e.Weight
		if len(e.RequiredAssets) > 0 {
			sum.AssetEdges++
		}
	}
	sum.RunnerTimes = stats.Summarize(weights)
	n := g.NodeCount()
	sum.Disconnected = n*(n-1)/2 - len(edges)
	return sum, nil
}

// List returns tasks matching the filter
func (s *BimTaskService) List(filter models.BimFilter) ([]*models.BimTask, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(filter)
}

// Cancel marks a running task as failed and stops its computation at the
// next door pair
func (s *BimTaskService) Cancel(id string) error {
	if _, err := s.repo.GetByID(id); err != nil {
		return err
	}
	if err := s.repo.MarkAsFailed(id, cancelledMessage); err != nil {
		return err
	}

	s.mu.Lock()
	cancel, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}

	log.Printf("[BimTaskService] Task %s cancelled", id)
	return nil
}

// Path computes the route between two doors on one floor synchronously
func (s *BimTaskService) Path(ctx context.Context, building *models.BuildingModel, floor, from, to string, params models.RequestParams) (*runner.PathResult, error) {
	if building == nil {
		return nil, fmt.Errorf("%w: missing building model", ErrInvalidRequest)
	}
	opts := s.opts.ForRequest(params)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return runner.Path(ctx, building, floor, from, to, opts)
}

// Wait blocks until all background computations have finished
func (s *BimTaskService) Wait() {
	s.wg.Wait()
}

// Shutdown cancels running computations and waits for them to stop, or for
// ctx to expire
func (s *BimTaskService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.running {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func countFloors(building *models.BuildingModel, doors []string) int {
	floors := make(map[string]struct{})
	for _, name := range doors {
		for _, f := range building.DoorFloors(name) {
			floors[f] = struct{}{}
		}
	}
	return len(floors)
}
