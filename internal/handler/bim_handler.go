package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yinchi/digital-hospitals/internal/analysis/grid"
	"github.com/yinchi/digital-hospitals/internal/analysis/pathfind"
	"github.com/yinchi/digital-hospitals/internal/analysis/runner"
	"github.com/yinchi/digital-hospitals/internal/floorplan"
	"github.com/yinchi/digital-hospitals/internal/graph"
	"github.com/yinchi/digital-hospitals/internal/ingest"
	"github.com/yinchi/digital-hospitals/internal/middleware"
	"github.com/yinchi/digital-hospitals/internal/models"
	"github.com/yinchi/digital-hospitals/internal/repository"
	"github.com/yinchi/digital-hospitals/internal/service"
	"github.com/yinchi/digital-hospitals/internal/spatial"
	"github.com/yinchi/digital-hospitals/pkg/response"
)

// maxBuildingBytes bounds uploaded building files
const maxBuildingBytes = 64 << 20

// BimHandler handles HTTP requests for runner-times computations
type BimHandler struct {
	service *service.BimTaskService
}

// NewBimHandler creates a new handler
func NewBimHandler(service *service.BimTaskService) *BimHandler {
	return &BimHandler{service: service}
}

// SubmitRequest is the JSON body of a submission. Building accepts the
// column form or the row form of a building model.
type SubmitRequest struct {
	Building       json.RawMessage      `json:"building"`
	Params         models.RequestParams `json:"params"`
	ElevationScale float64              `json:"elevation_scale,omitempty"`
}

// PathRequest is the body of a single-path query
type PathRequest struct {
	Building       json.RawMessage `json:"building"`
	ElevationScale float64         `json:"elevation_scale,omitempty"`
	Floor          string          `json:"floor" binding:"required"`
	From           string          `json:"from" binding:"required"`
	To             string          `json:"to" binding:"required"`
	GridSize       float64         `json:"grid_size,omitempty"`
	RunnerSpeed    float64         `json:"runner_speed,omitempty"`
	Simplify       float64         `json:"simplify,omitempty"` // meters
}

// Submit starts a new computation
// POST /api/v1/bim
//
// Accepts either a JSON SubmitRequest, or a multipart form with the building
// file in "file" and the request parameters as JSON in "form_data".
func (h *BimHandler) Submit(c *gin.Context) {
	var (
		building *models.BuildingModel
		params   models.RequestParams
		err      error
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		building, params, err = readMultipart(c)
	} else {
		building, params, err = readJSON(c)
	}
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	task, err := h.service.Submit(building, params, c.GetString(middleware.UserKey))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Accepted(c, task.ID)
}

func readJSON(c *gin.Context) (*models.BuildingModel, models.RequestParams, error) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, models.RequestParams{}, fmt.Errorf("invalid request body: %w", err)
	}
	if len(req.Building) == 0 {
		return nil, req.Params, errors.New("missing building")
	}
	building, err := ingest.Decode(bytes.NewReader(req.Building), ingest.Options{ElevationScale: req.ElevationScale})
	if err != nil {
		return nil, req.Params, err
	}
	return building, req.Params, nil
}

func readMultipart(c *gin.Context) (*models.BuildingModel, models.RequestParams, error) {
	var params models.RequestParams

	header, err := c.FormFile("file")
	if err != nil {
		return nil, params, errors.New("missing building file")
	}
	if header.Size > maxBuildingBytes {
		return nil, params, fmt.Errorf("building file exceeds %d bytes", maxBuildingBytes)
	}
	f, err := header.Open()
	if err != nil {
		return nil, params, fmt.Errorf("failed to open building file: %w", err)
	}
	defer f.Close()

	if err := json.Unmarshal([]byte(c.PostForm("form_data")), &params); err != nil {
		return nil, params, fmt.Errorf("invalid form_data: %w", err)
	}

	var opts ingest.Options
	if v := c.PostForm("elevation_scale"); v != "" {
		if opts.ElevationScale, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, params, fmt.Errorf("invalid elevation_scale %q", v)
		}
	}

	building, err := ingest.Decode(io.LimitReader(f, maxBuildingBytes), opts)
	if err != nil {
		return nil, params, err
	}
	return building, params, nil
}

// Query returns the status of a task, and its graph once completed
// GET /api/v1/bim/query?id=
func (h *BimHandler) Query(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		response.BadRequest(c, "Missing task ID")
		return
	}

	res, err := h.service.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, res)
}

// Latest returns the most recently requested successful result
// GET /api/v1/bim/latest
func (h *BimHandler) Latest(c *gin.Context) {
	res, err := h.service.Latest()
	if err != nil {
		respondError(c, err)
		return
	}
	if res.Status != models.BimTaskStatusOK || len(res.Graph) == 0 {
		response.InternalError(c, "Invalid result, please try resubmitting your BIM configuration.")
		return
	}
	response.Success(c, res)
}

// ListTasks lists tasks
// GET /api/v1/bim/tasks?status=&limit=&offset=
func (h *BimHandler) ListTasks(c *gin.Context) {
	var filter models.BimFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	tasks, err := h.service.List(filter)
	if err != nil {
		respondError(c, err)
		return
	}

	results := make([]*models.BimResult, 0, len(tasks))
	for _, task := range tasks {
		res, err := task.Result()
		if err != nil {
			respondError(c, err)
			return
		}
		// graphs are fetched one at a time through Query
		res.Graph = nil
		results = append(results, res)
	}

	response.Success(c, gin.H{
		"tasks":  results,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// CancelTask cancels a running task
// DELETE /api/v1/bim/tasks/:id
func (h *BimHandler) CancelTask(c *gin.Context) {
	if err := h.service.Cancel(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "Task cancelled successfully"})
}

// Summary returns runner-time statistics of a completed graph
// GET /api/v1/bim/stats?id=
//
// Without id, the latest result is summarized.
func (h *BimHandler) Summary(c *gin.Context) {
	sum, err := h.service.Summary(c.Query("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, sum)
}

// Path computes one door-to-door route and returns it as GeoJSON
// POST /api/v1/bim/path
func (h *BimHandler) Path(c *gin.Context) {
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if len(req.Building) == 0 {
		response.BadRequest(c, "missing building")
		return
	}
	building, err := ingest.Decode(bytes.NewReader(req.Building), ingest.Options{ElevationScale: req.ElevationScale})
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	params := models.RequestParams{GridSize: req.GridSize, RunnerSpeed: req.RunnerSpeed}
	res, err := h.service.Path(c.Request.Context(), building, req.Floor, req.From, req.To, params)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, graph.PathCollection(graph.PathInput{
		Floor:       res.Floor,
		From:        res.From,
		To:          res.To,
		Points:      res.Outcome.Path,
		Length:      res.Outcome.Length,
		RunnerTime:  res.RunnerTime,
		Found:       res.Outcome.Found,
		SimplifyTol: req.Simplify,
	}))
}

// respondError maps domain errors to HTTP status codes
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrTaskNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, repository.ErrTaskNotRunning),
		errors.Is(err, service.ErrNoResult):
		response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, grid.ErrGridTooLarge),
		errors.Is(err, spatial.ErrDegenerateGeometry),
		errors.Is(err, floorplan.ErrDegenerateFloor),
		errors.Is(err, floorplan.ErrInvalidDoorReference),
		errors.Is(err, pathfind.ErrAmbiguousDoorLocation),
		errors.Is(err, runner.ErrInvalidExtraPath):
		response.BadRequest(c, err.Error())
	default:
		c.Error(err)
		response.InternalError(c, err.Error())
	}
}
