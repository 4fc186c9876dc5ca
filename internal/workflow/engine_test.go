package workflow

import (
	"context"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/appforge/internal/specialist"
)

// scriptedStager returns canned results and records every context it saw.
type scriptedStager struct {
	mu       sync.Mutex
	fail     map[specialist.Kind]bool
	text     map[specialist.Kind]string
	panicOn  specialist.Kind
	contexts []specialist.TaskContext
	order    []specialist.Kind
}

func (s *scriptedStager) Execute(ctx context.Context, def *specialist.Definition, tc specialist.TaskContext) specialist.StageResult {
	s.mu.Lock()
	s.contexts = append(s.contexts, tc)
	s.order = append(s.order, def.Kind)
	s.mu.Unlock()

	if def.Kind == s.panicOn {
		panic("template exploded")
	}
	res := specialist.StageResult{Stage: string(def.Kind), Kind: def.Kind, Features: def.Features}
	if s.fail[def.Kind] {
		res.Status = specialist.StatusFailed
		res.Result = "provider down"
		res.Features = []string{}
		return res
	}
	res.Status = specialist.StatusCompleted
	res.Result = string(def.Kind) + " artifact"
	if t, ok := s.text[def.Kind]; ok {
		res.Result = t
	}
	return res
}

func (s *scriptedStager) contextFor(kind specialist.Kind) specialist.TaskContext {
	for i, k := range s.order {
		if k == kind {
			return s.contexts[i]
		}
	}
	return nil
}

type recordingObserver struct {
	started  []string
	progress []int
	logs     []string
}

func (o *recordingObserver) StageStarted(stage, platform string) {
	o.started = append(o.started, stage)
}

func (o *recordingObserver) StageFinished(res specialist.StageResult, progress int) {
	o.progress = append(o.progress, progress)
}

func (o *recordingObserver) Log(msg string) { o.logs = append(o.logs, msg) }

func newTestEngine(t *testing.T, s Stager, maxChars int) *Engine {
	t.Helper()
	reg := specialist.DefaultRegistry()
	g, err := DefaultGraph(reg, 12)
	require.NoError(t, err)
	return NewEngine(g, reg, s, Config{ContextMaxChars: maxChars}, nil, zerolog.Nop())
}

func demoRequest(platforms ...string) Request {
	return Request{
		ProjectID:    "p1",
		Name:         "Demo",
		Requirements: "a blog with posts and comments",
		AppType:      "web",
		Platforms:    platforms,
		Architecture: "modular",
	}
}

func TestRun_FixedOrder(t *testing.T) {
	s := &scriptedStager{}
	obs := &recordingObserver{}
	run := newTestEngine(t, s, 1000).Run(context.Background(), demoRequest("web", "mobile"), obs)

	require.Equal(t, RunCompleted, run.Status)
	assert.Equal(t, []specialist.Kind{
		specialist.Database, specialist.APIArchitecture, specialist.UIUX, specialist.ImageAssets,
		specialist.Backend, specialist.Frontend, specialist.Frontend, specialist.Security,
		specialist.Performance, specialist.Testing, specialist.DevOps, specialist.Documentation,
		specialist.CodeReview,
	}, s.order)

	_, ok := run.Result("frontend:web")
	assert.True(t, ok)
	mobile, ok := run.Result("frontend:mobile")
	require.True(t, ok)
	assert.Equal(t, "mobile", mobile.Platform)
	assert.Len(t, run.Timings, 13)

	// progress climbs monotonically and ends at the upper bound
	require.Len(t, obs.progress, 13)
	for i := 1; i < len(obs.progress); i++ {
		assert.GreaterOrEqual(t, obs.progress[i], obs.progress[i-1])
	}
	assert.Equal(t, ProgressEnd, obs.progress[len(obs.progress)-1])
	assert.Greater(t, obs.progress[0], ProgressStart)
}

func TestRun_DeclaredInputsOnly(t *testing.T) {
	s := &scriptedStager{text: map[specialist.Kind]string{
		specialist.APIArchitecture: "GET /api/posts\nPOST /api/comments",
	}}
	run := newTestEngine(t, s, 1000).Run(context.Background(), demoRequest("web", "desktop"), nil)
	require.Equal(t, RunCompleted, run.Status)

	backend := s.contextFor(specialist.Backend)
	assert.Equal(t, "GET /api/posts\nPOST /api/comments", backend["api_design"])
	assert.Equal(t, "database artifact", backend["database_schema"])
	assert.NotContains(t, backend, "backend_code")

	security := s.contextFor(specialist.Security)
	assert.Equal(t, "frontend artifact\n\nfrontend artifact", security["frontend_code"])
	assert.NotContains(t, security, "api_design")

	tests := s.contextFor(specialist.Testing)
	assert.Equal(t, "GET /api/posts, POST /api/comments", tests["endpoints"])

	docs := s.contextFor(specialist.Documentation)
	assert.Contains(t, docs["features"], "Database Schema")
	assert.Contains(t, docs["features"], "Performance Optimization")
	assert.NotContains(t, docs["features"], "Documentation")

	db := s.contextFor(specialist.Database)
	assert.Equal(t, "a blog with posts and comments", db["requirements"])
	assert.Empty(t, db["platform"])
}

func TestRun_ContextNeverExceedsLimit(t *testing.T) {
	long := strings.Repeat("é", 5000)
	s := &scriptedStager{text: map[specialist.Kind]string{
		specialist.APIArchitecture: long,
		specialist.Backend:         long,
		specialist.Database:        long,
	}}
	req := demoRequest("web", "mobile", "desktop")
	req.Requirements = strings.Repeat("r", 3000)

	const limit = 250
	newTestEngine(t, s, limit).Run(context.Background(), req, nil)

	require.NotEmpty(t, s.contexts)
	for i, tc := range s.contexts {
		for k, v := range tc {
			assert.LessOrEqual(t, utf8.RuneCountInString(v), limit, "execution %d key %s", i, k)
			assert.True(t, utf8.ValidString(v), "execution %d key %s", i, k)
		}
	}
}

func TestRun_PartialFailureStillCompletes(t *testing.T) {
	s := &scriptedStager{fail: map[specialist.Kind]bool{specialist.Backend: true}}
	run := newTestEngine(t, s, 1000).Run(context.Background(), demoRequest("web"), nil)

	require.Equal(t, RunCompleted, run.Status)
	require.Len(t, run.Results, 12)

	backend, ok := run.Result("backend")
	require.True(t, ok)
	assert.Equal(t, specialist.StatusFailed, backend.Status)

	// downstream sees an empty placeholder
	assert.Equal(t, "", s.contextFor(specialist.Security)["backend_code"])

	ir := run.Integrated()
	assert.Len(t, ir.Stages, 12)
	assert.Equal(t, 1, ir.Statistics.FailedStages)
	assert.NotContains(t, ir.Features, "Backend Services")
}

func TestRun_PanicFailsRunAndKeepsCompletedStages(t *testing.T) {
	s := &scriptedStager{panicOn: specialist.Frontend}
	obs := &recordingObserver{}
	run := newTestEngine(t, s, 1000).Run(context.Background(), demoRequest("web"), obs)

	assert.Equal(t, RunFailed, run.Status)
	assert.Contains(t, run.Error, "template exploded")
	assert.Len(t, run.Results, 5, "stages before the failure remain")
	assert.Equal(t, "Error: "+run.Error, run.Logs[len(run.Logs)-1])
	assert.Equal(t, "Error: "+run.Error, obs.logs[len(obs.logs)-1])
	assert.NotContains(t, s.order, specialist.Security)
}

func TestRun_CancelledContextFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := newTestEngine(t, &scriptedStager{}, 1000).Run(ctx, demoRequest("web"), nil)
	assert.Equal(t, RunFailed, run.Status)
	assert.Empty(t, run.Results)
}

func TestRun_UnregisteredSpecialistFails(t *testing.T) {
	full := specialist.DefaultRegistry()
	g, err := DefaultGraph(full, 0)
	require.NoError(t, err)

	partial := specialist.NewRegistry()
	def, _ := full.Get(specialist.Database)
	partial.Register(def)

	run := NewEngine(g, partial, &scriptedStager{}, Config{ContextMaxChars: 100}, nil, zerolog.Nop()).
		Run(context.Background(), demoRequest("web"), nil)
	assert.Equal(t, RunFailed, run.Status)
	assert.Len(t, run.Results, 1)
	assert.Contains(t, run.Error, "api_architecture")
}

func TestIntegrated(t *testing.T) {
	run := newTestEngine(t, &scriptedStager{}, 1000).Run(context.Background(), demoRequest("web", "desktop"), nil)
	ir := run.Integrated()

	assert.Equal(t, "Demo", ir.ProjectName)
	assert.Len(t, ir.Features, 12)
	assert.Equal(t, "Database Schema", ir.Features[0])
	assert.Equal(t, map[string]string{"web": "React", "desktop": "Electron"}, ir.TechStack.Frontend)
	assert.Equal(t, "modular", ir.TechStack.Architecture)
	assert.Len(t, ir.ExecutionTimes, 13)
	assert.Equal(t, 13, ir.Statistics.CompletedStages)
	assert.Equal(t, ir.StageOrder[5], "frontend:web")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "日本", Truncate("日本語", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
}
