// Package analyze turns free-form requirements into a structured summary and
// a suggested specialist workflow.
package analyze

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/appforge/internal/errors"
	"github.com/p-blackswan/appforge/internal/llm"
	"github.com/p-blackswan/appforge/internal/specialist"
)

const (
	temperature = 0.3
	maxTokens   = 1500

	parseFailure = "Failed to parse structured response"
)

const promptTemplate = `Analyze the following application requirements and extract structured information.

User Input: %s

Respond with a single JSON object with these keys:
- app_type: one of web, mobile, desktop
- features: list of main features
- suggested_tech_stack: suggested technologies
- complexity: one of simple, moderate, complex
- estimated_components: number of major components

Be specific and practical.`

// Analysis is the analysis document. Its keys come from the model, plus
// suggested_workflow.
type Analysis map[string]any

// WorkflowStep is one suggested specialist invocation.
type WorkflowStep struct {
	Step        int             `json:"step"`
	Agent       specialist.Kind `json:"agent"`
	Description string          `json:"description"`
}

// Analyzer runs requirement analysis through a completer with a TTL cache.
type Analyzer struct {
	completer llm.Completer
	cache     *expirable.LRU[string, Analysis]
	logger    zerolog.Logger
}

// NewAnalyzer creates an analyzer. A size of zero disables caching.
func NewAnalyzer(c llm.Completer, cacheSize int, ttl time.Duration, logger zerolog.Logger) *Analyzer {
	a := &Analyzer{
		completer: c,
		logger:    logger.With().Str("component", "analyze").Logger(),
	}
	if cacheSize > 0 {
		a.cache = expirable.NewLRU[string, Analysis](cacheSize, nil, ttl)
	}
	return a
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Analyze returns the analysis of text. Completion or parse failures yield
// the fallback document {raw_response, error} rather than an error.
func (a *Analyzer) Analyze(ctx context.Context, text string) (Analysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, perrors.Invalid("text is required")
	}

	key := cacheKey(text)
	if a.cache != nil {
		if cached, ok := a.cache.Get(key); ok {
			return maps.Clone(cached), nil
		}
	}

	resp, err := a.completer.Complete(ctx, llm.CompletionRequest{
		Prompt:      fmt.Sprintf(promptTemplate, text),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		a.logger.Warn().Err(err).Msg("analysis completion failed")
		return withWorkflow(Analysis{"raw_response": "", "error": err.Error()}), nil
	}

	doc, ok := Parse(resp.Text)
	out := withWorkflow(doc)
	if ok && a.cache != nil {
		a.cache.Add(key, maps.Clone(out))
	}
	return out, nil
}

// Parse extracts the JSON object from a model reply. It reports false and
// returns the fallback document when no object can be decoded.
func Parse(reply string) (Analysis, bool) {
	var doc Analysis
	if err := json.Unmarshal([]byte(extractJSON(reply)), &doc); err != nil || doc == nil {
		return Analysis{"raw_response": reply, "error": parseFailure}, false
	}
	return doc, true
}

func extractJSON(s string) string {
	if i := strings.Index(s, "```json"); i >= 0 {
		rest := s[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
	}
	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return strings.TrimSpace(s)
}

func withWorkflow(doc Analysis) Analysis {
	appType, _ := doc["app_type"].(string)
	doc["suggested_workflow"] = SuggestWorkflow(appType)
	return doc
}

// SuggestWorkflow returns the default nine steps. Mobile apps get a UI/UX
// step inserted at position five.
func SuggestWorkflow(appType string) []WorkflowStep {
	steps := []WorkflowStep{
		{1, specialist.Database, "Design database schema"},
		{2, specialist.APIArchitecture, "Design API architecture"},
		{3, specialist.Backend, "Implement backend"},
		{4, specialist.Frontend, "Implement frontend"},
		{5, specialist.Testing, "Generate tests"},
		{6, specialist.Security, "Security audit"},
		{7, specialist.Performance, "Performance optimization"},
		{8, specialist.Documentation, "Generate documentation"},
		{9, specialist.DevOps, "Setup deployment"},
	}
	if strings.EqualFold(appType, "mobile") {
		uiux := WorkflowStep{5, specialist.UIUX, "Design mobile UI/UX"}
		steps = slices.Insert(steps, 4, uiux)
		for i := 5; i < len(steps); i++ {
			steps[i].Step = i + 1
		}
	}
	return steps
}
