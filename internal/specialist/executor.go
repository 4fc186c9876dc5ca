package specialist

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"text/template"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/appforge/internal/llm"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(
	template.New("prompts").Option("missingkey=zero").ParseFS(promptFS, "prompts/*.tmpl"),
)

// ExecutorConfig holds sampling parameters shared by every stage.
type ExecutorConfig struct {
	Temperature float64
	MaxTokens   int
}

// Executor runs any Definition against a completion backend.
type Executor struct {
	completer llm.Completer
	cfg       ExecutorConfig
	logger    zerolog.Logger
}

// NewExecutor creates an executor.
func NewExecutor(c llm.Completer, cfg ExecutorConfig, logger zerolog.Logger) *Executor {
	return &Executor{
		completer: c,
		cfg:       cfg,
		logger:    logger.With().Str("component", "specialist").Logger(),
	}
}

// Render builds the prompt for def from tc.
func Render(def *Definition, tc TaskContext) (string, error) {
	t := prompts.Lookup(def.Template)
	if t == nil {
		return "", fmt.Errorf("prompt template %q not found", def.Template)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, map[string]string(tc)); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", def.Kind, err)
	}
	return buf.String(), nil
}

// Execute renders the prompt, calls the completer and wraps the outcome.
// Failures are reported in the result, never as an error.
func (e *Executor) Execute(ctx context.Context, def *Definition, tc TaskContext) StageResult {
	res := StageResult{
		Stage:    string(def.Kind),
		Kind:     def.Kind,
		Platform: tc["platform"],
		Features: []string{},
	}

	prompt, err := Render(def, tc)
	if err != nil {
		return e.fail(res, err)
	}

	maxTokens := e.cfg.MaxTokens
	if def.MaxTokens > 0 {
		maxTokens = def.MaxTokens
	}

	resp, err := e.completer.Complete(ctx, llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: fmt.Sprintf("You are an expert %s. Expertise: %s. Provide a complete, production-ready implementation.", def.DisplayName, def.Expertise),
		Temperature:  e.cfg.Temperature,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return e.fail(res, err)
	}

	res.Status = StatusCompleted
	res.Result = resp.Text
	res.Features = append(res.Features, def.Features...)
	if def.Annotate != nil {
		res.Annotations = def.Annotate(resp.Text, tc)
	}
	return res
}

func (e *Executor) fail(res StageResult, err error) StageResult {
	e.logger.Warn().Err(err).Str("stage", res.Stage).Str("platform", res.Platform).Msg("specialist failed")
	res.Status = StatusFailed
	res.Result = err.Error()
	return res
}
