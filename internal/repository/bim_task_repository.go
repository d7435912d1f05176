package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yinchi/digital-hospitals/internal/database"
	"github.com/yinchi/digital-hospitals/internal/models"
)

var (
	// ErrTaskNotFound is returned when no task has the requested ID
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotRunning is returned when a finished task is updated again
	ErrTaskNotRunning = errors.New("task is not running")
)

const bimTaskColumns = `id, status, progress_percent, params_json, door_count, floor_count,
	start_time, end_time, graph_json, warnings_json, error_message,
	requested_ts, created_by, created_at, updated_at`

// BimTaskRepository handles database operations for runner-times tasks
type BimTaskRepository struct {
	db *sqlx.DB
}

// NewBimTaskRepository creates a new task repository
func NewBimTaskRepository(db *sqlx.DB) *BimTaskRepository {
	return &BimTaskRepository{db: db}
}

// Create inserts a new task
func (r *BimTaskRepository) Create(task *models.BimTask) error {
	now := time.Now().Unix()
	if task.CreatedAt == 0 {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	query := `
		INSERT INTO bim_tasks (` + bimTaskColumns + `)
		VALUES (:id, :status, :progress_percent, :params_json, :door_count, :floor_count,
			:start_time, :end_time, :graph_json, :warnings_json, :error_message,
			:requested_ts, :created_by, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExec(query, task); err != nil {
		return fmt.Errorf("failed to create bim task: %w", err)
	}
	return nil
}

// GetByID retrieves a task by ID
func (r *BimTaskRepository) GetByID(id string) (*models.BimTask, error) {
	query := r.db.Rebind(`SELECT ` + bimTaskColumns + ` FROM bim_tasks WHERE id = ?`)

	task := &models.BimTask{}
	err := r.db.Get(task, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bim task: %w", err)
	}
	return task, nil
}

// List retrieves tasks, newest request first, with an optional status filter
func (r *BimTaskRepository) List(filter models.BimFilter) ([]*models.BimTask, error) {
	query := `SELECT ` + bimTaskColumns + ` FROM bim_tasks WHERE 1=1`

	args := []interface{}{}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += " ORDER BY requested_ts DESC, id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	tasks := []*models.BimTask{}
	if err := r.db.Select(&tasks, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list bim tasks: %w", err)
	}
	return tasks, nil
}

// MarkAsStarted records the start time and problem size of a running task
func (r *BimTaskRepository) MarkAsStarted(id string, doorCount, floorCount int) error {
	now := time.Now().Unix()
	query := r.db.Rebind(`
		UPDATE bim_tasks
		SET start_time = ?, door_count = ?, floor_count = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`)
	res, err := r.db.Exec(query, now, doorCount, floorCount, now, id, models.BimTaskStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark task as started: %w", err)
	}
	return expectRunning(res, id)
}

// UpdateProgress updates the progress of a running task
func (r *BimTaskRepository) UpdateProgress(id string, percent float64) error {
	query := r.db.Rebind(`
		UPDATE bim_tasks
		SET progress_percent = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`)
	if _, err := r.db.Exec(query, percent, time.Now().Unix(), id, models.BimTaskStatusRunning); err != nil {
		return fmt.Errorf("failed to update task progress: %w", err)
	}
	return nil
}

// MarkAsCompleted stores the result graph of a running task
func (r *BimTaskRepository) MarkAsCompleted(id, graphJSON, warningsJSON string) error {
	now := time.Now().Unix()
	query := r.db.Rebind(`
		UPDATE bim_tasks
		SET status = ?, graph_json = ?, warnings_json = ?, progress_percent = 100,
			end_time = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`)
	res, err := r.db.Exec(query, models.BimTaskStatusOK, graphJSON, warningsJSON, now, now, id, models.BimTaskStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark task as completed: %w", err)
	}
	return expectRunning(res, id)
}

// MarkAsFailed marks a running task as failed with an error message
func (r *BimTaskRepository) MarkAsFailed(id, errorMessage string) error {
	now := time.Now().Unix()
	query := r.db.Rebind(`
		UPDATE bim_tasks
		SET status = ?, error_message = ?, end_time = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`)
	res, err := r.db.Exec(query, models.BimTaskStatusError, errorMessage, now, now, id, models.BimTaskStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark task as failed: %w", err)
	}
	return expectRunning(res, id)
}

// GetLatest returns the task currently holding the latest result
func (r *BimTaskRepository) GetLatest() (*models.BimTask, error) {
	query := `
		SELECT ` + prefixed("t.", bimTaskColumns) + `
		FROM bim_latest l JOIN bim_tasks t ON t.id = l.task_id
		WHERE l.slot = 1
	`
	task := &models.BimTask{}
	err := r.db.Get(task, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no latest result", ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest bim task: %w", err)
	}
	return task, nil
}

// PromoteLatest makes a completed task the latest result, unless the current
// latest result was requested at the same time or later. It reports whether
// the task was promoted.
func (r *BimTaskRepository) PromoteLatest(task *models.BimTask) (bool, error) {
	promoted := false
	err := database.Transaction(r.db, func(tx *sqlx.Tx) error {
		var current float64
		err := tx.Get(&current, "SELECT requested_ts FROM bim_latest WHERE slot = 1")
		now := time.Now().Unix()

		switch {
		case errors.Is(err, sql.ErrNoRows):
			insert := tx.Rebind("INSERT INTO bim_latest (slot, task_id, requested_ts, updated_at) VALUES (1, ?, ?, ?)")
			if _, err := tx.Exec(insert, task.ID, task.RequestedTS, now); err != nil {
				return fmt.Errorf("failed to insert latest result: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to read latest result: %w", err)
		case current >= task.RequestedTS:
			return nil
		default:
			update := tx.Rebind("UPDATE bim_latest SET task_id = ?, requested_ts = ?, updated_at = ? WHERE slot = 1")
			if _, err := tx.Exec(update, task.ID, task.RequestedTS, now); err != nil {
				return fmt.Errorf("failed to replace latest result: %w", err)
			}
		}
		promoted = true
		return nil
	})
	return promoted, err
}

// FailRunning marks every task left running, e.g. by a restart, as failed
func (r *BimTaskRepository) FailRunning(errorMessage string) (int64, error) {
	now := time.Now().Unix()
	query := r.db.Rebind(`
		UPDATE bim_tasks
		SET status = ?, error_message = ?, end_time = ?, updated_at = ?
		WHERE status = ?
	`)
	res, err := r.db.Exec(query, models.BimTaskStatusError, errorMessage, now, now, models.BimTaskStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to fail running tasks: %w", err)
	}
	return res.RowsAffected()
}

func expectRunning(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotRunning, id)
	}
	return nil
}

func prefixed(prefix, columns string) string {
	cols := strings.Split(columns, ",")
	for i, c := range cols {
		cols[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
