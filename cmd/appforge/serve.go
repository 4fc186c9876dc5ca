package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/appforge/internal/analyze"
	"github.com/p-blackswan/appforge/internal/api"
	"github.com/p-blackswan/appforge/internal/config"
	"github.com/p-blackswan/appforge/internal/generation"
	"github.com/p-blackswan/appforge/internal/health"
	"github.com/p-blackswan/appforge/internal/llm"
	"github.com/p-blackswan/appforge/internal/metrics"
	"github.com/p-blackswan/appforge/internal/notify"
	"github.com/p-blackswan/appforge/internal/packaging"
	"github.com/p-blackswan/appforge/internal/project"
	"github.com/p-blackswan/appforge/internal/specialist"
	"github.com/p-blackswan/appforge/internal/store"
	"github.com/p-blackswan/appforge/internal/tasks"
	"github.com/p-blackswan/appforge/internal/workflow"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API and ops servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

// pipeline is the in-process generation stack shared by serve and generate.
type pipeline struct {
	router   *llm.Router
	registry *specialist.Registry
	stager   *specialist.Executor
	engine   *workflow.Engine
	packager *packaging.Materializer
}

func newPipeline(cfg *config.Config, fs afero.Fs, outDir string, m *metrics.Metrics, logger zerolog.Logger) (*pipeline, error) {
	router := llm.NewRouterFromConfig(cfg, m, logger)
	reg := specialist.DefaultRegistry()
	graph, err := loadGraph(cfg.WorkflowGraph, reg, cfg.MaxAgents)
	if err != nil {
		return nil, fmt.Errorf("loading stage graph: %w", err)
	}
	stager := specialist.NewExecutor(router, specialist.ExecutorConfig{
		Temperature: cfg.StageTemperature,
		MaxTokens:   cfg.StageMaxTokens,
	}, logger)

	return &pipeline{
		router:   router,
		registry: reg,
		stager:   stager,
		engine: workflow.NewEngine(graph, reg, stager,
			workflow.Config{ContextMaxChars: cfg.ContextMaxChars}, m, logger),
		packager: packaging.NewMaterializer(fs, outDir, m, logger),
	}, nil
}

func runServe(parent context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Int("http_port", cfg.HTTPPort).
		Str("api_addr", cfg.APIListenAddr).
		Str("auth_mode", cfg.AuthMode).
		Bool("slack_enabled", cfg.SlackEnabled()).
		Msg("starting appforge")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ds, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open database")
		return err
	}
	defer ds.Close()

	if n, err := ds.FailStuckTasks(); err != nil {
		logger.Warn().Err(err).Msg("failed to mark stuck tasks")
	} else if n > 0 {
		logger.Warn().Int64("tasks", n).Msg("marked tasks interrupted by restart as failed")
	}

	outDir, err := cfg.ResolvedOutputDir()
	if err != nil {
		return fmt.Errorf("resolving output dir: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	m := metrics.New()
	pl, err := newPipeline(cfg, afero.NewOsFs(), outDir, m, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build pipeline")
		return err
	}
	if len(pl.router.Providers()) == 0 {
		logger.Warn().Msg("no completion provider configured; stages will fail until a key is set")
	}

	projects := project.NewStore(ds, logger)
	hub := notify.NewHub(m, logger)
	taskEngine := tasks.NewEngine(tasks.Config{
		Workers:    cfg.Workers,
		QueueSize:  cfg.QueueSize,
		RunTimeout: cfg.RunTimeout,
	}, nil, ds, logger)

	gen := generation.NewService(generation.Deps{
		Projects:  projects,
		Engine:    pl.engine,
		Packager:  pl.packager,
		Hub:       hub,
		Slack:     notify.NewSlackNotifier(cfg.SlackWebhookURL, logger),
		Tasks:     taskEngine,
		Registry:  pl.registry,
		Stager:    pl.stager,
		Metrics:   m,
		APIPrefix: cfg.APIPrefix,
	}, logger)
	if _, err := gen.Recover(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to recover interrupted generations")
	}
	taskEngine.Start(ctx)

	checker := health.NewChecker(logger)
	checker.Register("database", health.PingCheck(ds))
	checker.Register("output_dir", health.WritableDirCheck(outDir))
	checker.Register("llm", func(context.Context) health.Status {
		if len(pl.router.Providers()) == 0 {
			return health.StatusDegraded
		}
		return health.StatusOK
	})

	apiServer := api.NewServer(api.ServerConfig{
		ListenAddr: cfg.APIListenAddr,
		Prefix:     cfg.APIPrefix,
		Auth: api.AuthConfig{
			Mode:      cfg.AuthMode,
			APIKey:    cfg.APIKey,
			JWTSecret: cfg.JWTSecret,
			JWTIssuer: cfg.JWTIssuer,
		},
		RateLimit: api.RateLimitConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
		CORSOrigins: cfg.CORSOriginList(),
		AppName:     cfg.AppName,
		Version:     cfg.AppVersion,
	}, api.Deps{
		Generation: gen,
		Projects:   projects,
		Tasks:      taskEngine,
		Analyzer:   analyze.NewAnalyzer(pl.router, cfg.AnalysisCacheSize, cfg.AnalysisCacheTTL, logger),
		Registry:   pl.registry,
		Checker:    checker,
		Metrics:    m,
	}, logger)

	// Ops server: probes, metrics and the websocket event stream
	mux := http.NewServeMux()
	mux.HandleFunc("/health", health.LivenessHandler())
	mux.HandleFunc("/ready", checker.ReadinessHandler())
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/ws/", notify.Handler(hub, cfg.WSKeepaliveInterval, logger))

	opsServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	retention, err := startRetention(cfg, ds, taskEngine, logger)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Int("port", cfg.HTTPPort).Msg("ops server starting")
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("ops server: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Start(); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server failed, shutting down")
	case <-ctx.Done():
	}

	cancel()
	<-retention.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("ops server shutdown error")
	}
	if err := apiServer.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Error().Err(err).Msg("API server shutdown error")
	}
	taskEngine.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-shutdownCtx.Done():
		logger.Warn().Msg("forced shutdown after timeout")
	}

	logger.Info().Msg("appforge stopped")
	return runErr
}

// startRetention schedules pruning of finished task rows and in-memory handles.
func startRetention(cfg *config.Config, ds *store.Store, te *tasks.Engine, logger zerolog.Logger) (*cron.Cron, error) {
	c := cron.New()
	policy := store.RetentionPolicy{TaskMaxAge: cfg.TaskMaxAge}
	_, err := c.AddFunc(cfg.RetentionSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		rows, err := ds.RunRetention(ctx, policy)
		if err != nil {
			logger.Error().Err(err).Msg("retention failed")
			return
		}
		pruned := te.Prune(cfg.TaskMaxAge)
		logger.Debug().Int64("rows", rows).Int("handles", pruned).Msg("retention pass finished")
	})
	if err != nil {
		return nil, fmt.Errorf("invalid RETENTION_SCHEDULE %q: %w", cfg.RetentionSchedule, err)
	}
	c.Start()
	return c, nil
}
