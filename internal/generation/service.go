// Package generation drives a project from pending to a packaged archive on
// the task engine, keeping the project record and live observers in step.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	perrors "github.com/p-blackswan/appforge/internal/errors"
	"github.com/p-blackswan/appforge/internal/metrics"
	"github.com/p-blackswan/appforge/internal/notify"
	"github.com/p-blackswan/appforge/internal/packaging"
	"github.com/p-blackswan/appforge/internal/project"
	"github.com/p-blackswan/appforge/internal/specialist"
	"github.com/p-blackswan/appforge/internal/tasks"
	"github.com/p-blackswan/appforge/internal/workflow"
)

// Log lines written by the service around an engine run.
const (
	msgStarted   = "Generation started"
	msgCompleted = "Application generated successfully"
	msgStale     = "Configuration changed: regenerate to rebuild the package"
)

// Deps are the collaborators of a Service.
type Deps struct {
	Projects  *project.Store
	Engine    *workflow.Engine
	Packager  *packaging.Materializer
	Hub       *notify.Hub
	Slack     *notify.SlackNotifier
	Tasks     *tasks.Engine
	Registry  *specialist.Registry
	Stager    workflow.Stager
	Metrics   *metrics.Metrics
	APIPrefix string
}

// Service owns generation runs. It is the task engine's executor.
type Service struct {
	projects  *project.Store
	engine    *workflow.Engine
	packager  *packaging.Materializer
	hub       *notify.Hub
	slack     *notify.SlackNotifier
	tasks     *tasks.Engine
	registry  *specialist.Registry
	stager    workflow.Stager
	metrics   *metrics.Metrics
	apiPrefix string

	active sync.Map // project id → struct{}
	logger zerolog.Logger
}

// NewService creates the service and installs it as the task executor.
func NewService(d Deps, logger zerolog.Logger) *Service {
	s := &Service{
		projects:  d.Projects,
		engine:    d.Engine,
		packager:  d.Packager,
		hub:       d.Hub,
		slack:     d.Slack,
		tasks:     d.Tasks,
		registry:  d.Registry,
		stager:    d.Stager,
		metrics:   d.Metrics,
		apiPrefix: d.APIPrefix,
		logger:    logger.With().Str("component", "generation").Logger(),
	}
	if s.tasks != nil {
		s.tasks.SetExecutor(s)
	}
	return s
}

// GenerationParams are the params of a generation.run task.
type GenerationParams struct {
	ProjectID string `json:"project_id"`
}

// SpecialistParams are the params of a specialist.run task.
type SpecialistParams struct {
	AgentType       string            `json:"agent_type" validate:"required"`
	TaskDescription string            `json:"task_description" validate:"required"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// GeneratedCode is what a completed project stores as generated_code.
type GeneratedCode struct {
	workflow.IntegratedResult
	Package *packaging.Bundle `json:"package"`
}

// DownloadURL is the API path of a project's archive.
func (s *Service) DownloadURL(projectID string) string {
	return fmt.Sprintf("%s/projects/%s/download", s.apiPrefix, projectID)
}

// Active reports whether a run is claimed for projectID.
func (s *Service) Active(projectID string) bool {
	_, ok := s.active.Load(projectID)
	return ok
}

func (s *Service) claim(projectID string) error {
	if _, loaded := s.active.LoadOrStore(projectID, struct{}{}); loaded {
		return fmt.Errorf("project %s: generation already in progress: %w", projectID, perrors.ErrConflict)
	}
	return nil
}

func (s *Service) release(projectID string) { s.active.Delete(projectID) }

func (s *Service) lookup(ctx context.Context, id string) (*project.Project, error) {
	p, err := s.projects.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("project %s: %w", id, perrors.ErrNotFound)
	}
	return p, nil
}

// Generate starts a run for id and returns the task handle immediately.
func (s *Service) Generate(ctx context.Context, id string) (*tasks.Task, error) {
	if _, err := s.lookup(ctx, id); err != nil {
		return nil, err
	}
	if err := s.claim(id); err != nil {
		return nil, err
	}
	return s.submit(id)
}

// Regenerate resets id and starts a fresh run.
func (s *Service) Regenerate(ctx context.Context, id string) (*tasks.Task, error) {
	if _, err := s.lookup(ctx, id); err != nil {
		return nil, err
	}
	if err := s.claim(id); err != nil {
		return nil, err
	}
	ok, err := s.projects.Reset(ctx, id)
	if err == nil && !ok {
		err = fmt.Errorf("project %s: %w", id, perrors.ErrNotFound)
	}
	if err != nil {
		s.release(id)
		return nil, err
	}
	if err := s.packager.Remove(id); err != nil {
		s.logger.Warn().Err(err).Str("project_id", id).Msg("failed to remove previous package")
	}
	s.hub.Broadcast(id, notify.StatusUpdate(id, project.StatusPending, 0))
	return s.submit(id)
}

func (s *Service) submit(id string) (*tasks.Task, error) {
	params, _ := json.Marshal(GenerationParams{ProjectID: id})
	task, err := s.tasks.Submit(tasks.SubmitRequest{
		Type:      tasks.TypeGenerationRun,
		Params:    params,
		ProjectID: id,
	})
	if err != nil {
		s.release(id)
		return nil, err
	}
	return task, nil
}

// SubmitSpecialist queues a single specialist run.
func (s *Service) SubmitSpecialist(p SpecialistParams, callerID string) (*tasks.Task, error) {
	if _, ok := s.registry.Get(specialist.Kind(p.AgentType)); !ok {
		return nil, perrors.Invalid("unknown agent type: %s", p.AgentType)
	}
	params, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return s.tasks.Submit(tasks.SubmitRequest{
		Type:     tasks.TypeSpecialistRun,
		Params:   params,
		CallerID: callerID,
	})
}

// Execute implements tasks.Executor.
func (s *Service) Execute(ctx context.Context, taskType string, params json.RawMessage) (json.RawMessage, error) {
	switch taskType {
	case tasks.TypeGenerationRun:
		var p GenerationParams
		if err := json.Unmarshal(params, &p); err != nil || p.ProjectID == "" {
			return nil, perrors.Invalid("generation.run requires project_id")
		}
		return s.runGeneration(ctx, p.ProjectID)
	case tasks.TypeSpecialistRun:
		var p SpecialistParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, perrors.Invalid("malformed specialist.run params: %v", err)
		}
		return s.runSpecialist(ctx, p)
	default:
		return nil, perrors.Invalid("unknown task type: %s", taskType)
	}
}

func (s *Service) runSpecialist(ctx context.Context, p SpecialistParams) (json.RawMessage, error) {
	def, ok := s.registry.Get(specialist.Kind(p.AgentType))
	if !ok {
		return nil, perrors.Invalid("unknown agent type: %s", p.AgentType)
	}
	tc := specialist.TaskContext{
		"requirements": p.TaskDescription,
		"project_name": "Application",
		"app_type":     "web",
		"architecture": "modular",
		"platforms":    "web",
		"platform":     "web",
	}
	for k, v := range p.Metadata {
		tc[k] = v
	}
	res := s.stager.Execute(ctx, def, tc)
	res.Stage = string(def.Kind)
	if !res.Completed() {
		return nil, errors.New(res.Result)
	}
	return json.Marshal(res)
}

// TaskCancelled implements tasks.CancelHook. A cancelled generation.run never
// reaches runGeneration, so its claim is released here.
func (s *Service) TaskCancelled(taskType string, params json.RawMessage) {
	if taskType != tasks.TypeGenerationRun {
		return
	}
	var p GenerationParams
	if err := json.Unmarshal(params, &p); err != nil || p.ProjectID == "" {
		return
	}
	s.release(p.ProjectID)
	s.logger.Info().Str("project_id", p.ProjectID).Msg("queued generation cancelled")
}

// runSummary is the task result of a generation.run.
type runSummary struct {
	ProjectID   string               `json:"project_id"`
	Status      string               `json:"status"`
	PackagePath string               `json:"package_path"`
	DownloadURL string               `json:"download_url"`
	Statistics  packaging.Statistics `json:"statistics"`
}

func (s *Service) runGeneration(ctx context.Context, id string) (json.RawMessage, error) {
	defer s.release(id)
	// Store writes must land even when the run's context is cancelled.
	sctx := context.WithoutCancel(ctx)
	log := s.logger.With().Str("project_id", id).Logger()

	p, err := s.lookup(sctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.projects.ApplyState(sctx, id, project.StateUpdate{
		Status:   project.StatusInProgress,
		Progress: project.Int(workflow.ProgressStart),
		Logs:     []string{msgStarted},
	}); err != nil {
		return nil, err
	}
	s.hub.Broadcast(id, notify.StatusUpdate(id, project.StatusInProgress, workflow.ProgressStart))
	s.hub.Broadcast(id, notify.Log(id, msgStarted))

	obs := &runObserver{svc: s, ctx: sctx, projectID: id, progress: workflow.ProgressStart, logger: log}
	run := s.engine.Run(ctx, workflow.Request{
		ProjectID:    id,
		Name:         p.Name,
		Requirements: p.Requirements,
		AppType:      p.AppType,
		Platforms:    p.TargetPlatforms,
		Architecture: p.ArchitectureType,
	}, obs)

	integrated := run.Integrated()
	if run.Status != workflow.RunCompleted {
		// The engine has already logged "Error: ..." through the observer.
		s.fail(sctx, p, obs.progress, run.Error, nil)
		return partialResult(integrated), errors.New(run.Error)
	}

	bundle, err := s.packager.Materialize(id, packaging.Config{
		Name:         p.Name,
		Description:  p.Description,
		Platforms:    p.TargetPlatforms,
		Architecture: p.ArchitectureType,
	}, integrated.Stages)
	if err != nil {
		msg := "packaging failed: " + err.Error()
		s.fail(sctx, p, obs.progress, msg, []string{"Error: " + msg})
		integrated.Status = workflow.RunFailed
		integrated.Error = msg
		return partialResult(integrated), err
	}
	bundle.Stages = nil

	code, err := json.Marshal(GeneratedCode{IntegratedResult: integrated, Package: bundle})
	if err != nil {
		s.fail(sctx, p, obs.progress, err.Error(), []string{"Error: " + err.Error()})
		return nil, err
	}

	if _, err := s.projects.ApplyState(sctx, id, project.StateUpdate{
		Status:        project.StatusCompleted,
		Progress:      project.Int(100),
		Logs:          []string{msgCompleted},
		GeneratedCode: code,
	}); err != nil {
		s.fail(sctx, p, obs.progress, err.Error(), nil)
		return nil, err
	}

	url := s.DownloadURL(id)
	s.hub.Broadcast(id, notify.StatusUpdate(id, project.StatusCompleted, 100))
	s.hub.Broadcast(id, notify.Log(id, msgCompleted))
	s.hub.Broadcast(id, notify.Completion(id, true, msgCompleted, url))
	s.metrics.RecordRun(workflow.RunCompleted)
	s.slack.Notify(sctx, notify.Summary{
		ProjectID:   id,
		Name:        p.Name,
		Success:     true,
		Message:     fmt.Sprintf("%d stages, %d files", integrated.Statistics.TotalStages, bundle.Statistics.TotalFiles),
		DownloadURL: url,
	})
	log.Info().Str("archive", bundle.PackagePath).Msg("generation completed")

	return json.Marshal(runSummary{
		ProjectID:   id,
		Status:      project.StatusCompleted,
		PackagePath: bundle.PackagePath,
		DownloadURL: url,
		Statistics:  bundle.Statistics,
	})
}

// partialResult is the task result of a failed run: every stage that finished,
// for diagnosis. The project's generated_code stays empty.
func partialResult(ir workflow.IntegratedResult) json.RawMessage {
	b, err := json.Marshal(ir)
	if err != nil {
		return nil
	}
	return b
}

// fail records a failed run. Progress stays where the run stopped.
func (s *Service) fail(ctx context.Context, p *project.Project, progress int, reason string, logs []string) {
	if _, err := s.projects.ApplyState(ctx, p.ID, project.StateUpdate{
		Status:   project.StatusFailed,
		Progress: project.Int(progress),
		Logs:     logs,
	}); err != nil {
		s.logger.Error().Err(err).Str("project_id", p.ID).Msg("failed to record run failure")
	}
	for _, l := range logs {
		s.hub.Broadcast(p.ID, notify.Log(p.ID, l))
	}
	msg := "Generation failed: " + reason
	s.hub.Broadcast(p.ID, notify.StatusUpdate(p.ID, project.StatusFailed, progress))
	s.hub.Broadcast(p.ID, notify.Completion(p.ID, false, msg, ""))
	s.metrics.RecordRun(workflow.RunFailed)
	s.slack.Notify(ctx, notify.Summary{ProjectID: p.ID, Name: p.Name, Message: reason})
}

// Recover marks projects left in_progress by a previous process as failed.
func (s *Service) Recover(ctx context.Context) (int, error) {
	list, err := s.projects.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range list {
		if p.Status != project.StatusInProgress || s.Active(p.ID) {
			continue
		}
		if _, err := s.projects.ApplyState(ctx, p.ID, project.StateUpdate{
			Status: project.StatusFailed,
			Logs:   []string{"Error: interrupted by restart"},
		}); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		s.logger.Warn().Int("projects", n).Msg("marked interrupted generations as failed")
	}
	return n, nil
}

// Update edits a project that is not being generated. Editing a completed
// project returns it to pending and discards its package, since the stored
// code no longer matches the configuration.
func (s *Service) Update(ctx context.Context, id string, in project.UpdateInput) (*project.Project, error) {
	before, err := s.idleProject(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := s.projects.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("project %s: %w", id, perrors.ErrNotFound)
	}
	if before.Status != project.StatusCompleted {
		return p, nil
	}

	if _, err := s.projects.ApplyState(ctx, id, project.StateUpdate{
		Status:   project.StatusPending,
		Progress: project.Int(0),
		Logs:     []string{msgStale},
	}); err != nil {
		return nil, err
	}
	if err := s.packager.Remove(id); err != nil {
		s.logger.Warn().Err(err).Str("project_id", id).Msg("failed to remove stale package")
	}
	s.hub.Broadcast(id, notify.StatusUpdate(id, project.StatusPending, 0))
	return s.lookup(ctx, id)
}

// Delete removes a project and its packaged output.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.idle(ctx, id); err != nil {
		return err
	}
	ok, err := s.projects.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("project %s: %w", id, perrors.ErrNotFound)
	}
	if err := s.packager.Remove(id); err != nil {
		s.logger.Warn().Err(err).Str("project_id", id).Msg("failed to remove package output")
	}
	return nil
}

func (s *Service) idle(ctx context.Context, id string) error {
	_, err := s.idleProject(ctx, id)
	return err
}

func (s *Service) idleProject(ctx context.Context, id string) (*project.Project, error) {
	p, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Active(id) || p.Status == project.StatusInProgress {
		return nil, fmt.Errorf("project %s is being generated: %w", id, perrors.ErrConflict)
	}
	return p, nil
}

// Code returns the generated code of a completed project.
func (s *Service) Code(ctx context.Context, id string) (json.RawMessage, error) {
	p, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != project.StatusCompleted {
		return nil, fmt.Errorf("project %s is %s: %w", id, p.Status, perrors.ErrNotCompleted)
	}
	return p.GeneratedCode, nil
}

// Archive opens the archive recorded in a completed project's generated code.
// The caller closes the file.
func (s *Service) Archive(ctx context.Context, id string) (afero.File, int64, string, error) {
	p, err := s.lookup(ctx, id)
	if err != nil {
		return nil, 0, "", err
	}
	if p.Status != project.StatusCompleted {
		return nil, 0, "", fmt.Errorf("project %s is %s: %w", id, p.Status, perrors.ErrNotCompleted)
	}
	var code struct {
		Package *struct {
			PackagePath string `json:"package_path"`
		} `json:"package"`
	}
	if err := json.Unmarshal(p.GeneratedCode, &code); err != nil || code.Package == nil || code.Package.PackagePath == "" {
		return nil, 0, "", fmt.Errorf("archive for %s: %w", id, perrors.ErrNoPackage)
	}
	f, info, err := s.packager.Open(id, code.Package.PackagePath)
	if err != nil {
		return nil, 0, "", err
	}
	return f, info.Size(), info.Name(), nil
}
