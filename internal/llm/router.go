package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/appforge/internal/config"
	perrors "github.com/p-blackswan/appforge/internal/errors"
	"github.com/p-blackswan/appforge/internal/metrics"
	"github.com/p-blackswan/appforge/internal/retry"
)

// Router tries an ordered provider chain and returns the first success.
type Router struct {
	providers []Provider
	retry     retry.Config
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewRouter builds a router over providers in priority order.
// A zero retry config makes one attempt per provider.
func NewRouter(providers []Provider, rc retry.Config, m *metrics.Metrics, logger zerolog.Logger) *Router {
	return &Router{
		providers: providers,
		retry:     rc,
		metrics:   m,
		logger:    logger.With().Str("component", "llm.router").Logger(),
	}
}

// NewRouterFromConfig builds the chain from configuration. LLM_PRIMARY goes
// first and providers without a key are skipped.
func NewRouterFromConfig(cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) *Router {
	common := []Option{WithTimeout(cfg.CompletionTimeout), WithLogger(logger)}

	var openai, gemini Provider
	if cfg.OpenAIEnabled() {
		openai = NewOpenAIProvider(cfg.OpenAIAPIKey,
			append(common, WithModel(cfg.OpenAIModel), WithBaseURL(cfg.OpenAIBaseURL))...)
	}
	if cfg.GeminiEnabled() {
		gemini = NewGeminiProvider(cfg.GeminiAPIKey,
			append(common, WithModel(cfg.GeminiModel), WithBaseURL(cfg.GeminiBaseURL))...)
	}

	order := []Provider{openai, gemini}
	if cfg.LLMPrimary == ProviderGemini {
		order = []Provider{gemini, openai}
	}

	var chain []Provider
	for _, p := range order {
		if p != nil {
			chain = append(chain, p)
		}
	}

	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.CompletionRetries
	return NewRouter(chain, rc, m, logger)
}

// Providers returns the provider names in chain order.
func (r *Router) Providers() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// Complete tries each provider in order.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if len(r.providers) == 0 {
		return nil, perrors.ErrNoProviders
	}

	var lastErr error
	for _, p := range r.providers {
		start := time.Now()
		var resp *CompletionResponse
		err := retry.Do(ctx, r.retry, func(ctx context.Context) error {
			var callErr error
			resp, callErr = p.Complete(ctx, req)
			return callErr
		})
		if err == nil {
			r.metrics.RecordCompletion(p.Name(), "ok")
			return resp, nil
		}

		r.metrics.RecordCompletion(p.Name(), "error")
		r.logger.Warn().
			Err(err).
			Str("provider", p.Name()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("provider failed, trying next")
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all providers failed, last error: %w", lastErr)
}
