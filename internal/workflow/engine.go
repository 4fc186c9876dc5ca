// Package workflow runs the stage graph for one generation request.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/appforge/internal/metrics"
	"github.com/p-blackswan/appforge/internal/specialist"
)

// Run statuses.
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Progress bounds reported while stages execute.
const (
	ProgressStart = 10
	ProgressEnd   = 90
)

// Request is the project configuration a run is built from.
type Request struct {
	ProjectID    string
	Name         string
	Requirements string
	AppType      string
	Platforms    []string
	Architecture string
}

// Observer receives run progress. Calls happen on the run goroutine.
type Observer interface {
	StageStarted(stage, platform string)
	StageFinished(res specialist.StageResult, progress int)
	Log(msg string)
}

type nopObserver struct{}

func (nopObserver) StageStarted(string, string)               {}
func (nopObserver) StageFinished(specialist.StageResult, int) {}
func (nopObserver) Log(string)                                {}

// Stager executes one specialist. *specialist.Executor satisfies it.
type Stager interface {
	Execute(ctx context.Context, def *specialist.Definition, tc specialist.TaskContext) specialist.StageResult
}

// Config holds engine limits.
type Config struct {
	ContextMaxChars int
}

// Engine interprets a Graph.
type Engine struct {
	graph    *Graph
	registry *specialist.Registry
	stager   Stager
	cfg      Config
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewEngine creates an engine.
func NewEngine(g *Graph, reg *specialist.Registry, s Stager, cfg Config, m *metrics.Metrics, logger zerolog.Logger) *Engine {
	return &Engine{
		graph:    g,
		registry: reg,
		stager:   s,
		cfg:      cfg,
		metrics:  m,
		logger:   logger.With().Str("component", "workflow").Logger(),
	}
}

// Graph returns the graph the engine interprets.
func (e *Engine) Graph() *Graph { return e.graph }

// Run is the record of one execution.
type Run struct {
	Request    Request
	Status     string
	Error      string
	Results    []specialist.StageResult
	Timings    map[string]int64 // ms, keyed like Results[i].Stage
	Logs       []string
	StartedAt  time.Time
	FinishedAt time.Time

	byNode map[string][]specialist.StageResult
	defs   map[string]*specialist.Definition
}

// Result returns the result recorded under key ("frontend:web" for per-platform stages).
func (r *Run) Result(key string) (specialist.StageResult, bool) {
	for _, res := range r.Results {
		if res.Stage == key {
			return res, true
		}
	}
	return specialist.StageResult{}, false
}

// Run executes every node in order. It always returns a Run; an unexpected
// error or panic marks it failed and stops further stages.
func (e *Engine) Run(ctx context.Context, req Request, obs Observer) (run *Run) {
	if obs == nil {
		obs = nopObserver{}
	}
	run = &Run{
		Request:   req,
		Timings:   make(map[string]int64),
		StartedAt: time.Now(),
		byNode:    make(map[string][]specialist.StageResult),
		defs:      make(map[string]*specialist.Definition),
	}
	log := e.logger.With().Str("project_id", req.ProjectID).Logger()

	defer func() {
		if p := recover(); p != nil {
			e.fail(run, obs, fmt.Errorf("panic: %v", p))
		}
		run.FinishedAt = time.Now()
		log.Info().
			Str("status", run.Status).
			Int("stages", len(run.Results)).
			Int64("duration_ms", run.FinishedAt.Sub(run.StartedAt).Milliseconds()).
			Msg("workflow finished")
	}()

	if err := e.execute(ctx, run, obs); err != nil {
		e.fail(run, obs, err)
		return run
	}

	run.Status = RunCompleted
	e.log(run, obs, "All stages completed")
	return run
}

func (e *Engine) execute(ctx context.Context, run *Run, obs Observer) error {
	req := run.Request
	total := e.graph.Executions(len(req.Platforms))
	done := 0

	platforms := req.Platforms
	if len(platforms) == 0 {
		platforms = []string{""}
	}

	for i, node := range e.graph.Nodes {
		def, ok := e.registry.Get(node.Specialist)
		if !ok {
			return fmt.Errorf("stage %s: specialist %q is not registered", node.Stage, node.Specialist)
		}

		targets := []string{""}
		if node.PerPlatform {
			targets = platforms
		}

		for _, platform := range targets {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("stage %s: %w", node.Stage, err)
			}

			key := node.Stage
			if node.PerPlatform && platform != "" {
				key = node.Stage + ":" + platform
			}

			tc, err := e.buildContext(run, node, platform)
			if err != nil {
				return err
			}

			e.log(run, obs, stageMessage(i+1, len(e.graph.Nodes), def, platform))
			obs.StageStarted(node.Stage, platform)

			start := time.Now()
			res := e.stager.Execute(ctx, def, tc)
			elapsed := time.Since(start)

			res.Stage = key
			res.Platform = platform
			run.Results = append(run.Results, res)
			run.byNode[node.Stage] = append(run.byNode[node.Stage], res)
			run.defs[key] = def
			run.Timings[key] = elapsed.Milliseconds()
			e.metrics.ObserveStage(node.Stage, res.Status, elapsed)

			done++
			progress := ProgressStart + (ProgressEnd-ProgressStart)*done/total
			if res.Completed() {
				e.log(run, obs, fmt.Sprintf("%s completed", label(def, platform)))
			} else {
				e.log(run, obs, fmt.Sprintf("%s failed: %s", label(def, platform), res.Result))
			}
			obs.StageFinished(res, progress)
		}
	}
	return nil
}

// buildContext assembles the task context for one execution. Every value is
// truncated to ContextMaxChars.
func (e *Engine) buildContext(run *Run, node Node, platform string) (specialist.TaskContext, error) {
	req := run.Request
	tc := specialist.TaskContext{
		"requirements": req.Requirements,
		"project_name": req.Name,
		"app_type":     req.AppType,
		"architecture": req.Architecture,
		"platforms":    strings.Join(req.Platforms, ", "),
	}
	if platform != "" {
		tc["platform"] = platform
	}

	for _, in := range node.Inputs {
		switch in.Select {
		case SelectFeatures:
			tc[in.As] = strings.Join(featureLabels(run.Results, run.defs), ", ")
		case SelectEndpoints:
			tc[in.As] = strings.Join(specialist.ExtractEndpoints(joinArtifacts(run.byNode[in.From])), ", ")
		case SelectResult, "":
			tc[in.As] = joinArtifacts(run.byNode[in.From])
		default:
			return nil, fmt.Errorf("stage %s: unknown select %q", node.Stage, in.Select)
		}
	}

	for k, v := range tc {
		tc[k] = Truncate(v, e.cfg.ContextMaxChars)
	}
	return tc, nil
}

func (e *Engine) fail(run *Run, obs Observer, err error) {
	run.Status = RunFailed
	run.Error = err.Error()
	e.logger.Error().Err(err).Str("project_id", run.Request.ProjectID).Msg("workflow failed")
	// The observer may be what panicked; record the log line regardless.
	run.Logs = append(run.Logs, "Error: "+run.Error)
	func() {
		defer func() { _ = recover() }()
		obs.Log("Error: " + run.Error)
	}()
}

func (e *Engine) log(run *Run, obs Observer, msg string) {
	run.Logs = append(run.Logs, msg)
	obs.Log(msg)
}

// joinArtifacts joins the artifacts of completed results with a blank line.
// Failed results contribute nothing.
func joinArtifacts(results []specialist.StageResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if a := r.Artifact(); a != "" {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, "\n\n")
}

// featureLabels returns one label per completed stage kind, in execution order.
func featureLabels(results []specialist.StageResult, defs map[string]*specialist.Definition) []string {
	seen := make(map[specialist.Kind]bool)
	labels := []string{}
	for _, r := range results {
		if !r.Completed() || seen[r.Kind] {
			continue
		}
		def, ok := defs[r.Stage]
		if !ok || def.FeatureLabel == "" {
			continue
		}
		seen[r.Kind] = true
		labels = append(labels, def.FeatureLabel)
	}
	return labels
}

// Truncate cuts s to at most max runes. A max of zero or less returns s.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

func label(def *specialist.Definition, platform string) string {
	if platform == "" {
		return def.DisplayName
	}
	return fmt.Sprintf("%s (%s)", def.DisplayName, platform)
}

func stageMessage(i, n int, def *specialist.Definition, platform string) string {
	return fmt.Sprintf("Stage %d/%d: %s", i, n, label(def, platform))
}
