// Package llm defines the completion provider interface, the OpenAI and
// Gemini clients, and an ordered fallback router.
package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// CompletionRequest is the input to a provider's Complete() call.
type CompletionRequest struct {
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Model        string // override provider default if set
}

// CompletionResponse is returned by Complete().
type CompletionResponse struct {
	Text         string
	Provider     string
	Model        string
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Provider is a text completion backend.
type Provider interface {
	// Complete sends one request and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider identifier.
	Name() string
}

// Completer is the narrow view consumers need. *Router and every Provider satisfy it.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

const defaultMaxTokens = 3000

type clientConfig struct {
	model   string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// Option configures a provider.
type Option func(*clientConfig)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *clientConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the provider at another endpoint (proxies, tests).
func WithBaseURL(u string) Option {
	return func(c *clientConfig) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.client = hc }
}

// WithTimeout sets the per-call network timeout on the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		if d > 0 {
			c.client = &http.Client{Timeout: d}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

func newClientConfig(model, baseURL string, opts []Option) clientConfig {
	c := clientConfig{
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(&c)
	}
	return c
}

func maxTokens(n int) int {
	if n > 0 {
		return n
	}
	return defaultMaxTokens
}
