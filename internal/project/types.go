package project

import "encoding/json"

// Project statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Project is a generation request and its lifecycle state.
type Project struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Requirements     string          `json:"requirements"`
	AppType          string          `json:"app_type"`
	TargetPlatforms  []string        `json:"target_platforms"`
	ArchitectureType string          `json:"architecture_type"`
	Status           string          `json:"status"`
	Progress         int             `json:"progress"`
	Logs             []LogEntry      `json:"logs"`
	GeneratedCode    json.RawMessage `json:"generated_code,omitempty"`
	CreatedAt        int64           `json:"created_at"`
	UpdatedAt        int64           `json:"updated_at"`
}

// LogEntry is one timestamped line in a project's history.
type LogEntry struct {
	Timestamp int64  `json:"timestamp"` // unix ms
	Message   string `json:"message"`
}

// CreateInput holds the parameters for creating a project.
type CreateInput struct {
	Name             string   `json:"name" validate:"required"`
	Description      string   `json:"description" validate:"required"`
	Requirements     string   `json:"requirements"`
	AppType          string   `json:"app_type" validate:"omitempty,oneof=web mobile desktop fullstack"`
	TargetPlatforms  []string `json:"target_platforms" validate:"required,min=1,dive,oneof=web mobile desktop"`
	ArchitectureType string   `json:"architecture_type"`
}

// UpdateInput holds optional configuration changes. Lifecycle fields
// (status, progress, logs, generated code) are not updatable.
type UpdateInput struct {
	Name             *string  `json:"name,omitempty" validate:"omitempty,min=1"`
	Description      *string  `json:"description,omitempty" validate:"omitempty,min=1"`
	Requirements     *string  `json:"requirements,omitempty"`
	AppType          *string  `json:"app_type,omitempty" validate:"omitempty,oneof=web mobile desktop fullstack"`
	TargetPlatforms  []string `json:"target_platforms,omitempty" validate:"omitempty,min=1,dive,oneof=web mobile desktop"`
	ArchitectureType *string  `json:"architecture_type,omitempty"`
}

// StateUpdate is one lifecycle transition, written in a single transaction.
// Empty Status and nil Progress leave those fields untouched.
type StateUpdate struct {
	Status        string
	Progress      *int
	Logs          []string
	GeneratedCode json.RawMessage
	ClearLogs     bool
}

// Int returns a pointer to v, for StateUpdate.Progress.
func Int(v int) *int { return &v }
