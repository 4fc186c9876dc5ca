package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/appforge/internal/store"
	"github.com/p-blackswan/appforge/internal/validation"
)

const projectColumns = `id, name, description, requirements, app_type, target_platforms, architecture_type, status, progress, generated_code, created_at, updated_at`

// Store handles project rows and their logs.
type Store struct {
	ds     *store.Store
	logger zerolog.Logger
}

// NewStore creates a new project store.
func NewStore(ds *store.Store, logger zerolog.Logger) *Store {
	return &Store{
		ds:     ds,
		logger: logger.With().Str("component", "project.store").Logger(),
	}
}

// Create validates the input and inserts a pending project.
func (s *Store) Create(ctx context.Context, in CreateInput) (*Project, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.AppType == "" {
		in.AppType = "web"
	}
	if in.ArchitectureType == "" {
		in.ArchitectureType = "modular"
	}

	now := time.Now().UnixMilli()
	p := &Project{
		ID:               uuid.New().String(),
		Name:             in.Name,
		Description:      in.Description,
		Requirements:     in.Requirements,
		AppType:          in.AppType,
		TargetPlatforms:  append([]string(nil), in.TargetPlatforms...),
		ArchitectureType: in.ArchitectureType,
		Status:           StatusPending,
		Progress:         0,
		Logs:             []LogEntry{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	platforms, err := json.Marshal(p.TargetPlatforms)
	if err != nil {
		return nil, fmt.Errorf("failed to encode platforms: %w", err)
	}

	_, err = s.ds.DB().ExecContext(ctx, `
	INSERT INTO projects (`+projectColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		p.ID, p.Name, p.Description, p.Requirements, p.AppType, string(platforms),
		p.ArchitectureType, p.Status, p.Progress, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.logger.Info().Str("project_id", p.ID).Str("name", p.Name).Msg("project created")
	return p, nil
}

// Get returns the project with its full log history, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, id string) (*Project, error) {
	p, err := scanProject(s.ds.DB().QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	logs, err := s.logs(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	p.Logs = logs
	return p, nil
}

// List returns all projects, newest first. Logs are not loaded.
func (s *Store) List(ctx context.Context) ([]*Project, error) {
	rows, err := s.ds.DB().QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []*Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.Logs = []LogEntry{}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Update applies configuration changes. Returns (nil, nil) when absent.
func (s *Store) Update(ctx context.Context, id string, in UpdateInput) (*Project, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if in.Name != nil {
		add("name", *in.Name)
	}
	if in.Description != nil {
		add("description", *in.Description)
	}
	if in.Requirements != nil {
		add("requirements", *in.Requirements)
	}
	if in.AppType != nil {
		add("app_type", *in.AppType)
	}
	if in.TargetPlatforms != nil {
		b, err := json.Marshal(in.TargetPlatforms)
		if err != nil {
			return nil, fmt.Errorf("failed to encode platforms: %w", err)
		}
		add("target_platforms", string(b))
	}
	if in.ArchitectureType != nil {
		add("architecture_type", *in.ArchitectureType)
	}
	add("updated_at", time.Now().UnixMilli())

	query := "UPDATE projects SET "
	for i, set := range sets {
		if i > 0 {
			query += ", "
		}
		query += set
	}
	query += " WHERE id = ?"
	args = append(args, id)

	res, err := s.ds.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.Get(ctx, id)
}

// Delete removes a project and its logs. Reports whether a row was removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.ds.DB().ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		s.logger.Info().Str("project_id", id).Msg("project deleted")
	}
	return n > 0, nil
}

// ApplyState writes a lifecycle transition atomically. generated_code is kept
// only while the resulting status is completed; any other status clears it.
// Returns false when the project does not exist.
func (s *Store) ApplyState(ctx context.Context, id string, u StateUpdate) (bool, error) {
	tx, err := s.ds.DB().BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	var progress int
	err = tx.QueryRowContext(ctx, `SELECT status, progress FROM projects WHERE id = ?`, id).Scan(&status, &progress)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read project state: %w", err)
	}

	if u.Status != "" {
		status = u.Status
	}
	if u.Progress != nil {
		progress = clamp(*u.Progress)
	}

	var code sql.NullString
	if status == StatusCompleted && len(u.GeneratedCode) > 0 {
		code = sql.NullString{String: string(u.GeneratedCode), Valid: true}
	}

	now := time.Now().UnixMilli()
	if status == StatusCompleted && !code.Valid {
		// Completed without new code keeps whatever was stored.
		_, err = tx.ExecContext(ctx,
			`UPDATE projects SET status = ?, progress = ?, updated_at = ? WHERE id = ?`,
			status, progress, now, id)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE projects SET status = ?, progress = ?, generated_code = ?, updated_at = ? WHERE id = ?`,
			status, progress, code, now, id)
	}
	if err != nil {
		return false, fmt.Errorf("failed to update project state: %w", err)
	}

	if u.ClearLogs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM project_logs WHERE project_id = ?`, id); err != nil {
			return false, fmt.Errorf("failed to clear logs: %w", err)
		}
	}
	for _, msg := range u.Logs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO project_logs (project_id, message, created_at) VALUES (?, ?, ?)`,
			id, msg, now); err != nil {
			return false, fmt.Errorf("failed to append log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}

// Reset returns a project to its initial run state.
func (s *Store) Reset(ctx context.Context, id string) (bool, error) {
	return s.ApplyState(ctx, id, StateUpdate{
		Status:    StatusPending,
		Progress:  Int(0),
		ClearLogs: true,
	})
}

// AppendLog adds one log line.
func (s *Store) AppendLog(ctx context.Context, id, msg string) (bool, error) {
	return s.ApplyState(ctx, id, StateUpdate{Logs: []string{msg}})
}

// RecentLogs returns the last n log entries in chronological order.
func (s *Store) RecentLogs(ctx context.Context, id string, n int) ([]LogEntry, error) {
	return s.logs(ctx, id, n)
}

func (s *Store) logs(ctx context.Context, id string, limit int) ([]LogEntry, error) {
	query := `SELECT message, created_at FROM project_logs WHERE project_id = ? ORDER BY id DESC`
	args := []any{id}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.ds.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	logs := []LogEntry{}
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.Message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		logs = append(logs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
	return logs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*Project, error) {
	p := &Project{}
	var platforms string
	var code sql.NullString
	if err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Requirements, &p.AppType, &platforms,
		&p.ArchitectureType, &p.Status, &p.Progress, &code, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(platforms), &p.TargetPlatforms); err != nil {
		return nil, fmt.Errorf("failed to decode platforms: %w", err)
	}
	if code.Valid {
		p.GeneratedCode = json.RawMessage(code.String)
	}
	return p, nil
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
