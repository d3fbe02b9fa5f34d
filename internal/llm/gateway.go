package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/promptcompliance/internal/config"
	"github.com/nikhilbhutani/promptcompliance/internal/metrics"
)

type gateway struct {
	providers        map[string]Provider
	defaultProvider  string
	defaultModel     string
	fallbackProvider string
	maxRetries       int
	timeout          time.Duration
}

// NewGateway builds a gateway from configuration. Backends without credentials are left
// unregistered; selecting them later yields ErrProviderNotConfigured.
func NewGateway(cfg config.LLMConfig) (Gateway, error) {
	if !IsKnownProvider(cfg.DefaultProvider) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.DefaultProvider)
	}
	if cfg.FallbackProvider != "" && !IsKnownProvider(cfg.FallbackProvider) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.FallbackProvider)
	}

	var providers []Provider
	if cfg.OpenAIKey != "" {
		providers = append(providers, NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIModel))
	}
	if cfg.UpstageKey != "" {
		providers = append(providers, NewUpstageProvider(cfg.UpstageKey, cfg.UpstageBaseURL, cfg.UpstageModel))
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.AnthropicKey, cfg.AnthropicModel))
	}
	if cfg.OllamaURL != "" {
		providers = append(providers, NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel))
	}

	return NewGatewayWithProviders(cfg, providers...), nil
}

// NewGatewayWithProviders builds a gateway over explicit provider instances.
func NewGatewayWithProviders(cfg config.LLMConfig, providers ...Provider) Gateway {
	g := &gateway{
		providers:        make(map[string]Provider, len(providers)),
		defaultProvider:  cfg.DefaultProvider,
		defaultModel:     cfg.Model,
		fallbackProvider: cfg.FallbackProvider,
		maxRetries:       cfg.MaxRetries,
		timeout:          cfg.Timeout,
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	return g
}

func (g *gateway) DefaultProvider() string { return g.defaultProvider }

func (g *gateway) Provider(name string) (Provider, error) {
	if !IsKnownProvider(name) {
		if _, ok := g.providers[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
		}
	}
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotConfigured, name)
	}
	return p, nil
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	resp, err := g.chatWithRetry(ctx, providerName, req)
	if err != nil && isConfigError(err) {
		return nil, err
	}
	if err != nil && g.fallbackProvider != "" && g.fallbackProvider != providerName {
		slog.Warn("primary provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		fallbackReq := req
		fallbackReq.Model = ""
		return g.chatWithRetry(ctx, g.fallbackProvider, fallbackReq)
	}
	return resp, err
}

func (g *gateway) chatWithRetry(ctx context.Context, providerName string, req ChatRequest) (*ChatResponse, error) {
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}
	if req.Model == "" && providerName == g.defaultProvider {
		req.Model = g.defaultModel
	}
	if req.Model == "" {
		req.Model = p.DefaultModel()
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			slog.Debug("retrying LLM call", "provider", providerName, "attempt", attempt)
		}

		resp, err := g.callOnce(ctx, p, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all retries exhausted for %s: %w", providerName, lastErr)
}

func (g *gateway) callOnce(ctx context.Context, p Provider, req ChatRequest) (*ChatResponse, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := p.ChatCompletion(ctx, req)
	metrics.LLMRequestDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(p.Name(), "error").Inc()
		return nil, err
	}
	metrics.LLMRequestsTotal.WithLabelValues(p.Name(), "ok").Inc()
	return resp, nil
}

func (g *gateway) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	return p.GenerateEmbedding(ctx, req)
}

func isConfigError(err error) bool {
	return errors.Is(err, ErrUnknownProvider) || errors.Is(err, ErrProviderNotConfigured)
}
