package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Task is the persisted row behind an async task handle.
type Task struct {
	ID          string
	Type        string
	Status      string // pending, running, completed, failed, cancelled
	Params      string // JSON
	ProjectID   string
	CallerID    string
	Result      string // JSON, nullable
	Error       string // nullable
	CreatedAt   int64  // unix ms
	UpdatedAt   int64  // unix ms
	CompletedAt int64  // unix ms, 0 = not completed
}

// TaskFilter for filtering tasks.
type TaskFilter struct {
	Status    string
	ProjectID string
	Limit     int
}

const taskColumns = `id, type, status, params, project_id, caller_id, result, error, created_at, updated_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	t := &Task{}
	var projectID, result, errMsg sql.NullString
	var completedAt sql.NullInt64

	if err := row.Scan(
		&t.ID, &t.Type, &t.Status, &t.Params, &projectID, &t.CallerID,
		&result, &errMsg, &t.CreatedAt, &t.UpdatedAt, &completedAt,
	); err != nil {
		return nil, err
	}

	t.ProjectID = projectID.String
	t.Result = result.String
	t.Error = errMsg.String
	t.CompletedAt = completedAt.Int64
	return t, nil
}

// SaveTask inserts or replaces a task row.
func (s *Store) SaveTask(t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if t.CreatedAt == 0 {
		t.CreatedAt = now
	}
	if t.UpdatedAt == 0 {
		t.UpdatedAt = now
	}

	query := `INSERT OR REPLACE INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		t.ID, t.Type, t.Status, t.Params,
		sql.NullString{String: t.ProjectID, Valid: t.ProjectID != ""},
		t.CallerID,
		sql.NullString{String: t.Result, Valid: t.Result != ""},
		sql.NullString{String: t.Error, Valid: t.Error != ""},
		t.CreatedAt, t.UpdatedAt,
		sql.NullInt64{Int64: t.CompletedAt, Valid: t.CompletedAt != 0},
	)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID. Returns (nil, nil) when absent.
func (s *Store) GetTask(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// UpdateTaskStatus updates a task's status and updated_at.
func (s *Store) UpdateTaskStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	return requireRow(res, id)
}

// CompleteTask records the terminal status of a task with its result or error.
func (s *Store) CompleteTask(id, status, result, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	res, err := s.db.Exec(`
	UPDATE tasks
	SET status = ?, result = ?, error = ?, completed_at = ?, updated_at = ?
	WHERE id = ?`,
		status,
		sql.NullString{String: result, Valid: result != ""},
		sql.NullString{String: errMsg, Valid: errMsg != ""},
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	return requireRow(res, id)
}

// ListTasks retrieves tasks matching the filter, newest first.
func (s *Store) ListTasks(f TaskFilter) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, f.ProjectID)
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// FailStuckTasks marks pending and running tasks left over from a previous
// process as failed. In-memory queues do not survive a restart.
func (s *Store) FailStuckTasks() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	res, err := s.db.Exec(`
	UPDATE tasks
	SET status = 'failed', error = 'interrupted by restart', completed_at = ?, updated_at = ?
	WHERE status IN ('pending', 'running')`, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stuck tasks: %w", err)
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task not found: %s", id)
	}
	return nil
}
