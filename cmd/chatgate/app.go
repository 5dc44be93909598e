package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/leofalp/chatgate/core/gateway"
	"github.com/leofalp/chatgate/core/gateway/middleware"
	"github.com/leofalp/chatgate/internal/config"
	"github.com/leofalp/chatgate/providers/ai"
	"github.com/leofalp/chatgate/providers/ai/anthropic"
	"github.com/leofalp/chatgate/providers/ai/cohere"
	"github.com/leofalp/chatgate/providers/ai/gemini"
	"github.com/leofalp/chatgate/providers/ai/mistral"
	"github.com/leofalp/chatgate/providers/ai/openai"
	"github.com/leofalp/chatgate/providers/memory"
	"github.com/leofalp/chatgate/providers/memory/filestore"
	"github.com/leofalp/chatgate/providers/memory/inmemory"
	"github.com/leofalp/chatgate/providers/memory/redisstore"
	"github.com/leofalp/chatgate/providers/observability/slogobs"
)

// app holds everything a command needs.
type app struct {
	cfg     *config.Config
	gateway *gateway.Gateway
	logger  *slog.Logger
	closers []func() error
}

func (a *app) Close() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			a.logger.Warn("failed to close resource", "error", err.Error())
		}
	}
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	observer := slogobs.New(
		slogobs.WithOutput(os.Stderr),
		slogobs.WithLevel(slogobs.ParseLevel(cfg.Log.Level)),
		slogobs.WithFormat(slogobs.ParseFormat(cfg.Log.Format)),
	)
	a := &app{cfg: cfg, logger: observer.Logger()}
	slog.SetDefault(a.logger)

	backend, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	store := memory.New(backend, memory.WithMaxMessages(cfg.Store.MaxMessages))

	opts := []gateway.Option{gateway.WithObserver(observer)}
	for name, provider := range buildProviders(cfg) {
		opts = append(opts, gateway.WithProvider(name, provider))
	}
	if cfg.Gateway.Timeout > 0 {
		opts = append(opts, gateway.WithMiddleware(middleware.NewTimeoutMiddleware(cfg.Gateway.Timeout)))
	}
	if cfg.Gateway.Retries > 0 {
		opts = append(opts, gateway.WithMiddleware(middleware.NewRetryMiddleware(middleware.RetryConfig{MaxRetries: cfg.Gateway.Retries})))
	}

	gw, err := gateway.New(store, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.gateway = gw
	return a, nil
}

func (a *app) openBackend(ctx context.Context) (memory.Backend, error) {
	switch a.cfg.Store.Backend {
	case config.BackendMemory:
		return inmemory.New(), nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", a.cfg.Redis.Addr, err)
		}
		backend := redisstore.New(client,
			redisstore.WithKeyPrefix(a.cfg.Redis.KeyPrefix),
			redisstore.WithTTL(a.cfg.Redis.TTL),
		)
		a.closers = append(a.closers, backend.Close)
		return backend, nil

	default:
		return filestore.New(a.cfg.Store.Dir)
	}
}

// buildProviders registers every adapter. Credentials come from each
// adapter's own environment variable and are checked at first use.
func buildProviders(cfg *config.Config) map[string]ai.Provider {
	providers := map[string]ai.Provider{}

	openaiProvider := openai.New()
	if model := cfg.Model(openai.ProviderName); model != "" {
		openaiProvider.WithDefaultModel(model)
	}
	providers[openai.ProviderName] = openaiProvider

	anthropicProvider := anthropic.New()
	if model := cfg.Model(anthropic.ProviderName); model != "" {
		anthropicProvider.WithDefaultModel(model)
	}
	providers[anthropic.ProviderName] = anthropicProvider

	geminiProvider := gemini.New()
	if model := cfg.Model(gemini.ProviderName); model != "" {
		geminiProvider.WithDefaultModel(model)
	}
	providers[gemini.ProviderName] = geminiProvider

	cohereProvider := cohere.New()
	if model := cfg.Model(cohere.ProviderName); model != "" {
		cohereProvider.WithDefaultModel(model)
	}
	providers[cohere.ProviderName] = cohereProvider

	mistralProvider := mistral.New()
	if model := cfg.Model(mistral.ProviderName); model != "" {
		mistralProvider.WithDefaultModel(model)
	}
	providers[mistral.ProviderName] = mistralProvider

	return providers
}
