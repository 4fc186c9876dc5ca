package analyze

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/appforge/internal/errors"
	"github.com/p-blackswan/appforge/internal/llm"
	"github.com/p-blackswan/appforge/internal/specialist"
)

type fakeCompleter struct {
	text  string
	err   error
	calls atomic.Int32
	last  llm.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls.Add(1)
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Text: f.text, Provider: "fake"}, nil
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		ok    bool
	}{
		{"fenced json", "Here you go:\n```json\n{\"app_type\":\"web\"}\n```\nthanks", true},
		{"plain fence", "```\n{\"app_type\":\"web\"}\n```", true},
		{"bare object", "Sure! {\"app_type\":\"web\",\"features\":[\"a\"]} done", true},
		{"no json", "I cannot help with that", false},
		{"broken json", "```json\n{\"app_type\":\n```", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, ok := Parse(tt.reply)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, "web", doc["app_type"])
			} else {
				assert.Equal(t, tt.reply, doc["raw_response"])
				assert.Equal(t, parseFailure, doc["error"])
			}
		})
	}
}

func TestSuggestWorkflow(t *testing.T) {
	web := SuggestWorkflow("web")
	require.Len(t, web, 9)
	assert.Equal(t, specialist.Database, web[0].Agent)
	assert.Equal(t, specialist.DevOps, web[8].Agent)

	mobile := SuggestWorkflow("mobile")
	require.Len(t, mobile, 10)
	assert.Equal(t, specialist.UIUX, mobile[4].Agent)
	assert.Equal(t, 5, mobile[4].Step)
	assert.Equal(t, specialist.Testing, mobile[5].Agent)
	assert.Equal(t, 6, mobile[5].Step)
	assert.Equal(t, 10, mobile[9].Step)
}

func TestAnalyze_UsesLowTemperatureAndCaches(t *testing.T) {
	fc := &fakeCompleter{text: "```json\n{\"app_type\":\"mobile\",\"complexity\":\"simple\"}\n```"}
	a := NewAnalyzer(fc, 16, time.Minute, zerolog.Nop())

	doc, err := a.Analyze(context.Background(), "A todo app for phones")
	require.NoError(t, err)
	assert.Equal(t, 0.3, fc.last.Temperature)
	assert.Contains(t, fc.last.Prompt, "A todo app for phones")
	assert.Equal(t, "simple", doc["complexity"])
	steps := doc["suggested_workflow"].([]WorkflowStep)
	assert.Len(t, steps, 10)

	doc["complexity"] = "mutated"
	again, err := a.Analyze(context.Background(), "  A todo app for phones ")
	require.NoError(t, err)
	assert.Equal(t, "simple", again["complexity"])
	assert.Equal(t, int32(1), fc.calls.Load())
}

func TestAnalyze_FallbackNotCached(t *testing.T) {
	fc := &fakeCompleter{text: "no structure here"}
	a := NewAnalyzer(fc, 16, time.Minute, zerolog.Nop())

	doc, err := a.Analyze(context.Background(), "something")
	require.NoError(t, err)
	assert.Equal(t, "no structure here", doc["raw_response"])
	assert.Len(t, doc["suggested_workflow"], 9)

	_, err = a.Analyze(context.Background(), "something")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fc.calls.Load())
}

func TestAnalyze_CompletionError(t *testing.T) {
	a := NewAnalyzer(&fakeCompleter{err: errors.New("all providers failed")}, 0, 0, zerolog.Nop())
	doc, err := a.Analyze(context.Background(), "something")
	require.NoError(t, err)
	assert.Equal(t, "all providers failed", doc["error"])
}

func TestAnalyze_EmptyText(t *testing.T) {
	a := NewAnalyzer(&fakeCompleter{}, 0, 0, zerolog.Nop())
	_, err := a.Analyze(context.Background(), "   ")
	assert.True(t, errors.Is(err, perrors.ErrInvalidInput))
}
