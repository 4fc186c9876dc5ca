package llm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com"
	geminiDefaultModel = "gemini-2.0-flash"
)

// GeminiProvider implements Provider using the generateContent API.
type GeminiProvider struct {
	apiKey string
	cfg    clientConfig
}

// NewGeminiProvider constructs a new Gemini provider.
func NewGeminiProvider(apiKey string, opts ...Option) *GeminiProvider {
	return &GeminiProvider{
		apiKey: apiKey,
		cfg:    newClientConfig(geminiDefaultModel, geminiBaseURL, opts),
	}
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

// ---- Gemini wire types ----

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Complete sends a blocking generateContent request.
func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := p.cfg.model
	if req.Model != "" {
		model = req.Model
	}

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: maxTokens(req.MaxTokens),
		},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimSuffix(p.cfg.baseURL, "/"), url.PathEscape(model), url.QueryEscape(p.apiKey))

	var out geminiResponse
	if err := postJSON(ctx, p.cfg.client, ProviderGemini, endpoint, nil, body, &out); err != nil {
		return nil, err
	}

	var text strings.Builder
	finish := ""
	if len(out.Candidates) > 0 {
		finish = out.Candidates[0].FinishReason
		for _, part := range out.Candidates[0].Content.Parts {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		return nil, errors.New("gemini: empty completion")
	}

	resp := &CompletionResponse{
		Text:         text.String(),
		Provider:     ProviderGemini,
		Model:        model,
		StopReason:   finish,
		InputTokens:  out.UsageMetadata.PromptTokenCount,
		OutputTokens: out.UsageMetadata.CandidatesTokenCount,
	}

	p.cfg.logger.Debug().
		Str("provider", ProviderGemini).
		Str("model", model).
		Str("stop_reason", finish).
		Int("in_tokens", resp.InputTokens).
		Int("out_tokens", resp.OutputTokens).
		Msg("completion")
	return resp, nil
}
