package specialist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/appforge/internal/llm"
)

type stubCompleter struct {
	text    string
	err     error
	lastReq llm.CompletionRequest
}

func (s *stubCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Text: s.text}, nil
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	require.Equal(t, 12, r.Len())

	for _, d := range r.All() {
		assert.NotEmpty(t, d.DisplayName, d.Kind)
		assert.NotEmpty(t, d.FeatureLabel, d.Kind)
		assert.NotEmpty(t, d.Features, d.Kind)
		_, err := Render(d, TaskContext{"requirements": "a blog"})
		assert.NoError(t, err, "template for %s", d.Kind)
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(&Definition{Kind: Database})
	assert.Panics(t, func() { r.Register(&Definition{Kind: Database}) })
}

func TestRender_MissingKeysAreEmpty(t *testing.T) {
	def, _ := DefaultRegistry().Get(Testing)
	prompt, err := Render(def, TaskContext{"requirements": "a blog"})
	require.NoError(t, err)
	assert.Contains(t, prompt, "a blog")
	assert.Contains(t, prompt, "API Endpoints: N/A")
	assert.NotContains(t, prompt, "<no value>")
}

func TestRender_PlatformBranch(t *testing.T) {
	def, _ := DefaultRegistry().Get(Frontend)
	prompt, err := Render(def, TaskContext{"requirements": "x", "platform": "mobile"})
	require.NoError(t, err)
	assert.Contains(t, prompt, "React Native")
}

func TestRender_UnknownTemplate(t *testing.T) {
	_, err := Render(&Definition{Kind: "x", Template: "missing.tmpl"}, TaskContext{})
	assert.Error(t, err)
}

func TestExecute_Completed(t *testing.T) {
	stub := &stubCompleter{text: "GET /api/posts\nPOST /api/posts\nDELETE /api/posts/{id}"}
	e := NewExecutor(stub, ExecutorConfig{Temperature: 0.2, MaxTokens: 3000}, zerolog.Nop())
	def, _ := DefaultRegistry().Get(APIArchitecture)

	res := e.Execute(context.Background(), def, TaskContext{"requirements": "blog", "app_type": "web"})

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, "api_architecture", res.Stage)
	assert.Equal(t, stub.text, res.Result)
	assert.Len(t, res.Features, 6)
	assert.Equal(t, 3, res.Annotations["endpoints_count"])
	assert.InDelta(t, 0.2, stub.lastReq.Temperature, 1e-9)
	assert.Equal(t, 3000, stub.lastReq.MaxTokens)
	assert.Contains(t, stub.lastReq.SystemPrompt, "API Architect")
}

func TestExecute_FailureIsAResult(t *testing.T) {
	stub := &stubCompleter{err: errors.New("openai API error (status 500): boom")}
	e := NewExecutor(stub, ExecutorConfig{Temperature: 0.2, MaxTokens: 3000}, zerolog.Nop())
	def, _ := DefaultRegistry().Get(Security)

	res := e.Execute(context.Background(), def, TaskContext{"requirements": "blog"})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Result, "boom")
	assert.Empty(t, res.Features)
	assert.Empty(t, res.Artifact())
}

func TestCountEndpoints(t *testing.T) {
	assert.Equal(t, 0, CountEndpoints("nothing here"))
	assert.Equal(t, 5, CountEndpoints("GET POST PUT PATCH DELETE"))
}

func TestExtractEndpoints(t *testing.T) {
	text := "Routes:\n- GET /api/posts\n- POST /api/posts.\n- GET /api/posts\n- PATCH /api/posts/{id}"
	assert.Equal(t, []string{"GET /api/posts", "POST /api/posts", "PATCH /api/posts/{id}"}, ExtractEndpoints(text))

	got := ExtractEndpoints("no routes")
	assert.Equal(t, DefaultEndpoints, got)
	got[0] = "mutated"
	assert.Equal(t, "/api/items", DefaultEndpoints[0])
}

func TestCatalogue(t *testing.T) {
	c := DefaultRegistry().Catalogue()
	require.Equal(t, 12, c.TotalAgents)
	require.Len(t, c.Agents, 12)
	assert.Equal(t, 1, c.Agents[0].ID)
	assert.Equal(t, Database, c.Agents[0].Type)
	assert.Equal(t, CodeReview, c.Agents[11].Type)
	assert.Len(t, c.Workflow, 4)
	assert.True(t, strings.HasPrefix(c.Workflow[0], "Database Design"))
}
