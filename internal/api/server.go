// Package api serves the appforge REST API on fiber.
package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/appforge/internal/analyze"
	"github.com/p-blackswan/appforge/internal/generation"
	"github.com/p-blackswan/appforge/internal/health"
	"github.com/p-blackswan/appforge/internal/metrics"
	"github.com/p-blackswan/appforge/internal/project"
	"github.com/p-blackswan/appforge/internal/requestid"
	"github.com/p-blackswan/appforge/internal/specialist"
	"github.com/p-blackswan/appforge/internal/tasks"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	ListenAddr  string
	Prefix      string
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	CORSOrigins string
	AppName     string
	Version     string
	BodyLimit   int
}

// Deps are the services the handlers call.
type Deps struct {
	Generation *generation.Service
	Projects   *project.Store
	Tasks      *tasks.Engine
	Analyzer   *analyze.Analyzer
	Registry   *specialist.Registry
	Checker    *health.Checker
	Metrics    *metrics.Metrics
}

// Server is the API fiber application.
type Server struct {
	app    *fiber.App
	cfg    ServerConfig
	done   chan struct{}
	logger zerolog.Logger
}

// NewServer creates and configures the API server.
func NewServer(cfg ServerConfig, d Deps, logger zerolog.Logger) *Server {
	if cfg.Prefix == "" {
		cfg.Prefix = "/api"
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 4 * 1024 * 1024
	}
	log := logger.With().Str("component", "api").Logger()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
		BodyLimit:             cfg.BodyLimit,
		ReadBufferSize:        8192,
		WriteBufferSize:       8192,
	})

	s := &Server{app: app, cfg: cfg, done: make(chan struct{}), logger: log}
	h := newHandlers(cfg, d, log)
	s.setupMiddleware(d.Metrics)
	s.setupRoutes(h)
	return s
}

func (s *Server) setupMiddleware(m *metrics.Metrics) {
	s.app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	s.app.Use(requestid.Middleware())

	if s.cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: s.cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
			AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		}))
	}

	if s.cfg.RateLimit.RPS > 0 {
		s.app.Use(NewRateLimitMiddleware(s.cfg.RateLimit, s.done))
	}

	s.app.Use(NewAuthMiddleware(s.cfg.Auth, s.logger))

	s.app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		m.RecordHTTP(c.Method(), strconv.Itoa(status))

		path := c.Path()
		if publicPath(path) {
			return err
		}
		s.logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.IP()).
			Str("request_id", requestid.FromFiber(c)).
			Msg("api request")
		return err
	})
}

func (s *Server) setupRoutes(h *handlers) {
	s.app.Get("/healthz", h.liveness)
	s.app.Get("/readyz", h.readiness)

	api := s.app.Group(s.cfg.Prefix)
	api.Get("/", h.root)

	projects := api.Group("/projects")
	projects.Post("/", h.createProject)
	projects.Get("/", h.listProjects)
	projects.Get("/:id", h.getProject)
	projects.Put("/:id", h.updateProject)
	projects.Patch("/:id", h.updateProject)
	projects.Delete("/:id", h.deleteProject)
	projects.Post("/:id/generate", h.generate)
	projects.Post("/:id/regenerate", h.regenerate)
	projects.Get("/:id/status", h.projectStatus)
	projects.Get("/:id/code", h.projectCode)
	projects.Get("/:id/download", h.download)

	agents := api.Group("/agents")
	agents.Get("/types", h.agentTypes)
	agents.Post("/analyze", h.analyze)
	agents.Post("/tasks", h.submitAgentTask)
	agents.Get("/tasks/:id", h.getTask)

	api.Get("/tasks", h.listTasks)
	api.Get("/tasks/:id", h.getTask)
	api.Delete("/tasks/:id", h.cancelTask)
	api.Get("/health", h.healthDetail)
	api.Get("/metrics/summary", h.metricsSummary)
}

// Start listens on the configured address. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.cfg.ListenAddr
	if addr == "" {
		addr = ":8000"
	}
	s.logger.Info().Str("addr", addr).Str("prefix", s.cfg.Prefix).Msg("API server starting")
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones up to timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.logger.Info().Msg("API server shutting down")
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return s.app.ShutdownWithTimeout(timeout)
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }
