package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/appforge/internal/analyze"
	perrors "github.com/p-blackswan/appforge/internal/errors"
	"github.com/p-blackswan/appforge/internal/generation"
	"github.com/p-blackswan/appforge/internal/health"
	"github.com/p-blackswan/appforge/internal/project"
	"github.com/p-blackswan/appforge/internal/specialist"
	"github.com/p-blackswan/appforge/internal/tasks"
	"github.com/p-blackswan/appforge/internal/validation"
)

// statusLogTail is how many log entries the status endpoint returns.
const statusLogTail = 10

type handlers struct {
	cfg       ServerConfig
	gen       *generation.Service
	projects  *project.Store
	tasks     *tasks.Engine
	analyzer  *analyze.Analyzer
	registry  *specialist.Registry
	checker   *health.Checker
	startTime time.Time
	logger    zerolog.Logger
}

func newHandlers(cfg ServerConfig, d Deps, logger zerolog.Logger) *handlers {
	return &handlers{
		cfg:       cfg,
		gen:       d.Generation,
		projects:  d.Projects,
		tasks:     d.Tasks,
		analyzer:  d.Analyzer,
		registry:  d.Registry,
		checker:   d.Checker,
		startTime: time.Now(),
		logger:    logger,
	}
}

func invalidBody(c *fiber.Ctx, err error) error {
	return problemResponse(c, fiber.StatusBadRequest,
		"invalid_body", "Bad Request",
		"Invalid request body: "+err.Error())
}

// TaskResponse wraps a task for API responses.
type TaskResponse struct {
	Task *tasks.Task `json:"task"`
}

// TaskListResponse wraps a page of tasks.
type TaskListResponse struct {
	Tasks  []*tasks.Task `json:"tasks"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// GenerateResponse is returned by generate and regenerate.
type GenerateResponse struct {
	Message   string `json:"message"`
	ProjectID string `json:"project_id"`
	Status    string `json:"status"`
	TaskID    string `json:"task_id"`
	Note      string `json:"note,omitempty"`
}

// StatusResponse is returned by GET /projects/:id/status.
type StatusResponse struct {
	ProjectID string             `json:"project_id"`
	Status    string             `json:"status"`
	Progress  int                `json:"progress"`
	Logs      []project.LogEntry `json:"logs"`
}

// AnalyzeRequest is the body of POST /agents/analyze.
type AnalyzeRequest struct {
	Text string `json:"text"`
}

func (h *handlers) liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *handlers) readiness(c *fiber.Ctx) error {
	if h.checker == nil {
		return c.JSON(fiber.Map{"status": "ready"})
	}
	results := h.checker.RunAll(c.UserContext())
	for _, s := range results {
		if s == health.StatusDown {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not_ready", "checks": results})
		}
	}
	return c.JSON(fiber.Map{"status": "ready", "checks": results})
}

func (h *handlers) root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name":    h.cfg.AppName,
		"version": h.cfg.Version,
		"status":  "running",
	})
}

// --- projects ---

func (h *handlers) createProject(c *fiber.Ctx) error {
	var in project.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c, err)
	}
	p, err := h.projects.Create(c.UserContext(), in)
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *handlers) listProjects(c *fiber.Ctx) error {
	list, err := h.projects.List(c.UserContext())
	if err != nil {
		return err
	}
	if list == nil {
		list = []*project.Project{}
	}
	return c.JSON(list)
}

func (h *handlers) loadProject(c *fiber.Ctx) (*project.Project, error) {
	id := c.Params("id")
	p, err := h.projects.Get(c.UserContext(), id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("project %s: %w", id, perrors.ErrNotFound)
	}
	return p, nil
}

func (h *handlers) getProject(c *fiber.Ctx) error {
	p, err := h.loadProject(c)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(p)
}

func (h *handlers) updateProject(c *fiber.Ctx) error {
	var in project.UpdateInput
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c, err)
	}
	p, err := h.gen.Update(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(p)
}

func (h *handlers) deleteProject(c *fiber.Ctx) error {
	if err := h.gen.Delete(c.UserContext(), c.Params("id")); err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Project deleted successfully"})
}

func (h *handlers) generate(c *fiber.Ctx) error {
	id := c.Params("id")
	task, err := h.gen.Generate(c.UserContext(), id)
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(GenerateResponse{
		Message:   "Generation started",
		ProjectID: id,
		Status:    project.StatusInProgress,
		TaskID:    task.ID,
	})
}

func (h *handlers) regenerate(c *fiber.Ctx) error {
	id := c.Params("id")
	task, err := h.gen.Regenerate(c.UserContext(), id)
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(GenerateResponse{
		Message:   "Regeneration started",
		ProjectID: id,
		Status:    project.StatusInProgress,
		TaskID:    task.ID,
		Note:      "Previous logs, generated code and package were discarded",
	})
}

func (h *handlers) projectStatus(c *fiber.Ctx) error {
	p, err := h.loadProject(c)
	if err != nil {
		return domainError(c, err)
	}
	logs, err := h.projects.RecentLogs(c.UserContext(), p.ID, statusLogTail)
	if err != nil {
		return err
	}
	if logs == nil {
		logs = []project.LogEntry{}
	}
	return c.JSON(StatusResponse{
		ProjectID: p.ID,
		Status:    p.Status,
		Progress:  p.Progress,
		Logs:      logs,
	})
}

func (h *handlers) projectCode(c *fiber.Ctx) error {
	id := c.Params("id")
	code, err := h.gen.Code(c.UserContext(), id)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{"project_id": id, "code": code})
}

func (h *handlers) download(c *fiber.Ctx) error {
	f, size, name, err := h.gen.Archive(c.UserContext(), c.Params("id"))
	if err != nil {
		return domainError(c, err)
	}
	c.Attachment(name)
	c.Set(fiber.HeaderContentType, "application/zip")
	// fasthttp closes the stream once the body is written.
	return c.SendStream(f, int(size))
}

// --- agents ---

func (h *handlers) agentTypes(c *fiber.Ctx) error {
	return c.JSON(h.registry.Catalogue())
}

func (h *handlers) analyze(c *fiber.Ctx) error {
	var req AnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	doc, err := h.analyzer.Analyze(c.UserContext(), req.Text)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(doc)
}

func (h *handlers) submitAgentTask(c *fiber.Ctx) error {
	var req generation.SpecialistParams
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := validation.Struct(req); err != nil {
		return domainError(c, err)
	}
	task, err := h.gen.SubmitSpecialist(req, callerID(c))
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(TaskResponse{Task: task})
}

// --- tasks ---

func (h *handlers) getTask(c *fiber.Ctx) error {
	task, ok := h.tasks.Get(c.Params("id"))
	if !ok {
		return problemResponse(c, fiber.StatusNotFound,
			"task_not_found", "Not Found",
			"Task not found: "+c.Params("id"))
	}
	return c.JSON(TaskResponse{Task: task})
}

// cancelTask cancels a pending task. Running and finished tasks answer 409.
func (h *handlers) cancelTask(c *fiber.Ctx) error {
	task, err := h.tasks.Cancel(c.Params("id"))
	if err != nil {
		if errors.Is(err, perrors.ErrNotFound) {
			return problemResponse(c, fiber.StatusNotFound,
				"task_not_found", "Not Found",
				"Task not found: "+c.Params("id"))
		}
		return domainError(c, err)
	}
	return c.JSON(TaskResponse{Task: task})
}

func (h *handlers) listTasks(c *fiber.Ctx) error {
	var q tasks.ListQuery
	if err := c.QueryParser(&q); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_query", "Bad Request",
			"Invalid query parameters: "+err.Error())
	}
	list, total := h.tasks.List(q)
	if list == nil {
		list = []*tasks.Task{}
	}
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return c.JSON(TaskListResponse{Tasks: list, Total: total, Limit: limit, Offset: q.Offset})
}

// --- health & metrics ---

func (h *handlers) healthDetail(c *fiber.Ctx) error {
	checks := map[string]health.Status{}
	status := "healthy"
	if h.checker != nil {
		checks = h.checker.RunAll(c.UserContext())
		for _, s := range checks {
			if s == health.StatusDown {
				status = "unhealthy"
				break
			}
			if s == health.StatusDegraded {
				status = "degraded"
			}
		}
	}
	return c.JSON(fiber.Map{
		"status":  status,
		"checks":  checks,
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
		"version": h.cfg.Version,
		"agents":  h.registry.Len(),
	})
}

func (h *handlers) metricsSummary(c *fiber.Ctx) error {
	return c.JSON(h.tasks.Stats())
}
