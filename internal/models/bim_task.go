package models

import (
	"encoding/json"
	"fmt"
)

// BimTask represents a runner-times computation request and its result
type BimTask struct {
	ID string `json:"id" db:"id"`

	// Status
	Status          string  `json:"status" db:"status"` // Running, OK, Error
	ProgressPercent float64 `json:"progress_percent" db:"progress_percent"`

	// Input parameters
	ParamsJSON string `json:"-" db:"params_json"`

	// Execution info
	DoorCount  int   `json:"door_count" db:"door_count"`
	FloorCount int   `json:"floor_count" db:"floor_count"`
	StartTime  int64 `json:"start_time,omitempty" db:"start_time"` // Unix timestamp
	EndTime    int64 `json:"end_time,omitempty" db:"end_time"`     // Unix timestamp

	// Results
	GraphJSON    string `json:"-" db:"graph_json"`
	WarningsJSON string `json:"-" db:"warnings_json"`
	ErrorMessage string `json:"err_msg,omitempty" db:"error_message"`

	// Timestamp denoting when the computation request was received
	RequestedTS float64 `json:"requested_ts" db:"requested_ts"`

	// Metadata
	CreatedBy string `json:"created_by,omitempty" db:"created_by"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
	UpdatedAt int64  `json:"updated_at" db:"updated_at"`
}

// BimTaskStatus constants
const (
	BimTaskStatusRunning = "Running"
	BimTaskStatusOK      = "OK"
	BimTaskStatusError   = "Error"
)

// BimResult is the public view of a task
type BimResult struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Progress    float64         `json:"progress_percent"`
	Graph       json.RawMessage `json:"graph,omitempty"`
	Warnings    []string        `json:"warnings,omitempty"`
	ErrMsg      string          `json:"err_msg,omitempty"`
	RequestedTS float64         `json:"requested_ts"`
	StartTime   int64           `json:"start_time,omitempty"`
	EndTime     int64           `json:"end_time,omitempty"`
}

// Result converts the stored task into its public view
func (t *BimTask) Result() (*BimResult, error) {
	res := &BimResult{
		ID:          t.ID,
		Status:      t.Status,
		Progress:    t.ProgressPercent,
		ErrMsg:      t.ErrorMessage,
		RequestedTS: t.RequestedTS,
		StartTime:   t.StartTime,
		EndTime:     t.EndTime,
	}
	if t.Status == BimTaskStatusOK && t.GraphJSON != "" {
		res.Graph = json.RawMessage(t.GraphJSON)
	}
	if t.WarningsJSON != "" {
		if err := json.Unmarshal([]byte(t.WarningsJSON), &res.Warnings); err != nil {
			return nil, fmt.Errorf("failed to decode warnings of task %s: %w", t.ID, err)
		}
	}
	return res, nil
}

// BimFilter represents filter parameters for listing tasks
type BimFilter struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}
