// Package tasks runs background work on a bounded worker pool and keeps a
// pollable handle for every submission.
package tasks

import (
	"encoding/json"
	"sync"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Task types.
const (
	TypeGenerationRun = "generation.run"
	TypeSpecialistRun = "specialist.run"
)

// IsValidType reports whether t is a known task type.
func IsValidType(t string) bool {
	return t == TypeGenerationRun || t == TypeSpecialistRun
}

// Task is an async unit of work.
type Task struct {
	mu          sync.RWMutex
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Status      Status          `json:"status"`
	Params      json.RawMessage `json:"params,omitempty"`
	ProjectID   string          `json:"project_id,omitempty"`
	CallerID    string          `json:"caller_id,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Snapshot returns a copy that is safe to read without holding locks.
func (t *Task) Snapshot() *Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return &Task{
		ID:          t.ID,
		Type:        t.Type,
		Status:      t.Status,
		Params:      t.Params,
		ProjectID:   t.ProjectID,
		CallerID:    t.CallerID,
		Result:      t.Result,
		Error:       t.Error,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}

// SubmitRequest describes a task to enqueue.
type SubmitRequest struct {
	Type      string          `json:"type"`
	Params    json.RawMessage `json:"params"`
	ProjectID string          `json:"project_id,omitempty"`
	CallerID  string          `json:"caller_id,omitempty"`
}

// ListQuery filters List.
type ListQuery struct {
	Status    string `query:"status"`
	Type      string `query:"type"`
	ProjectID string `query:"project_id"`
	Limit     int    `query:"limit"`
	Offset    int    `query:"offset"`
}

// Stats summarizes the tasks known to the engine.
type Stats struct {
	TotalTasks    int            `json:"total_tasks"`
	ByStatus      map[string]int `json:"by_status"`
	ByType        map[string]int `json:"by_type"`
	AvgDurationMs int64          `json:"avg_duration_ms"`
}
