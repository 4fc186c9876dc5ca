package llm

import (
	"context"
	"errors"
	"strings"
)

const (
	openAIBaseURL      = "https://api.openai.com"
	openAIDefaultModel = "gpt-4o"
)

// OpenAIProvider implements Provider using the Chat Completions API.
type OpenAIProvider struct {
	apiKey string
	cfg    clientConfig
}

// NewOpenAIProvider constructs a new OpenAI provider.
func NewOpenAIProvider(apiKey string, opts ...Option) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey: apiKey,
		cfg:    newClientConfig(openAIDefaultModel, openAIBaseURL, opts),
	}
}

func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

// ---- OpenAI wire types ----

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends a blocking chat completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := p.cfg.model
	if req.Model != "" {
		model = req.Model
	}

	var msgs []openAIMessage
	if req.SystemPrompt != "" {
		msgs = append(msgs, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	msgs = append(msgs, openAIMessage{Role: "user", Content: req.Prompt})

	body := openAIRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens(req.MaxTokens),
	}

	var out openAIResponse
	url := strings.TrimSuffix(p.cfg.baseURL, "/") + "/v1/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if err := postJSON(ctx, p.cfg.client, ProviderOpenAI, url, headers, body, &out); err != nil {
		return nil, err
	}

	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return nil, errors.New("openai: empty completion")
	}

	resp := &CompletionResponse{
		Text:         out.Choices[0].Message.Content,
		Provider:     ProviderOpenAI,
		Model:        model,
		StopReason:   out.Choices[0].FinishReason,
		InputTokens:  out.Usage.PromptTokens,
		OutputTokens: out.Usage.CompletionTokens,
	}

	p.cfg.logger.Debug().
		Str("provider", ProviderOpenAI).
		Str("model", model).
		Str("stop_reason", resp.StopReason).
		Int("in_tokens", resp.InputTokens).
		Int("out_tokens", resp.OutputTokens).
		Msg("completion")
	return resp, nil
}
