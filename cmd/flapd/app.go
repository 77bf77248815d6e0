package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"flap/internal/breaker"
	"flap/internal/config"
	"flap/internal/content"
	"flap/internal/decorate"
	"flap/internal/display"
	"flap/internal/llm"
	"flap/internal/logging"
	"flap/internal/store"
)

// frameRelay late-binds the orchestrator's frame hook to the web server,
// which is constructed after the orchestrator.
type frameRelay struct {
	mu sync.RWMutex
	fn func([][]int, *content.GeneratedContent)
}

func (r *frameRelay) Set(fn func([][]int, *content.GeneratedContent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fn = fn
}

func (r *frameRelay) emit(layout display.Layout, c *content.GeneratedContent) {
	r.mu.RLock()
	fn := r.fn
	r.mu.RUnlock()
	if fn != nil {
		fn(layout.Cells, c)
	}
}

// app bundles the wired daemon components.
type app struct {
	cfg          config.Config
	repo         *store.SQLiteRepository
	breaker      *breaker.CircuitBreaker
	orchestrator *content.Orchestrator
	relay        *frameRelay
}

func (a *app) Close() error {
	if a.repo != nil {
		return a.repo.Close()
	}
	return nil
}

// buildApp wires storage, circuits, providers, and the content pipeline.
// consoleDisplay forces a terminal preview regardless of configuration.
func buildApp(ctx context.Context, cfg config.Config, consoleDisplay bool) (*app, error) {
	repo, err := store.OpenSQLite(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}

	defs := breaker.ManualCircuits()
	defs = append(defs, breaker.ProviderCircuit(cfg.Providers.Preferred.Name, cfg.Breaker.FailureThreshold))
	if cfg.HasAlternate() {
		defs = append(defs, breaker.ProviderCircuit(cfg.Providers.Alternate.Name, cfg.Breaker.FailureThreshold))
	}
	cb := breaker.New(repo, defs, breaker.Config{
		ResetTimeout: cfg.Breaker.ResetTimeout.Std(),
		ProbeQuota:   cfg.Breaker.ProbeQuota,
	}, logging.NewComponentLogger("breaker"))
	cb.Initialize(ctx)

	preferred, err := providerBinding(cfg.Providers.Preferred)
	if err != nil {
		repo.Close()
		return nil, err
	}
	var alternate *llm.Binding
	if cfg.HasAlternate() {
		alternate, err = providerBinding(cfg.Providers.Alternate)
		if err != nil {
			repo.Close()
			return nil, err
		}
	}

	var board display.Client
	if consoleDisplay || cfg.Display.Mode != "http" {
		board = display.NewConsoleClient()
	} else {
		board, err = display.NewHTTPClient(display.HTTPConfig{
			BaseURL: cfg.Display.BaseURL,
			APIKey:  cfg.Display.APIKey,
		})
		if err != nil {
			repo.Close()
			return nil, err
		}
	}

	var negotiator *content.Negotiator
	if cfg.ToolLoop.Enabled {
		negotiator = content.NewNegotiator(cfg.ToolLoop.MaxAttempts,
			content.ExhaustionPolicy(strings.ToLower(cfg.ToolLoop.ExhaustionPolicy)))
	}

	history, err := content.NewHistory(max(cfg.Generators.HistorySize, 1))
	if err != nil {
		repo.Close()
		return nil, err
	}

	registry := content.NewRegistry()
	for _, g := range cfg.Generators.Prompts {
		registry.Register(
			content.NewPromptGenerator(content.PromptConfig{
				ID:           g.ID,
				Name:         g.Name,
				SystemPrompt: g.SystemPrompt,
				UserPrompt:   g.UserPrompt,
				Temperature:  g.Temperature,
				MaxTokens:    g.MaxTokens,
			}, history, negotiator),
			content.Registration{
				ID:       g.ID,
				Name:     g.Name,
				Priority: g.Priority,
				Format:   decorate.Options{Align: decorate.Align(g.Align), AccentColor: g.AccentColor},
			},
		)
	}
	if len(cfg.Generators.Prompts) == 0 {
		registry.Register(
			content.NewPromptGenerator(content.PromptConfig{
				ID:         "daily",
				Name:       "Daily message",
				UserPrompt: "Write an uplifting message for the people walking past this board.",
			}, history, negotiator),
			content.Registration{Priority: 1},
		)
	}

	relay := &frameRelay{}
	orchestrator := content.NewOrchestrator(content.OrchestratorConfig{
		Selector:  registry,
		Fallback:  content.NewStaticFallback(cfg.Generators.FallbackMessages),
		Failover:  content.NewFailoverRunner(cb),
		Gate:      cb,
		Preferred: preferred,
		Alternate: alternate,
		Decorator: decorate.NewFrameDecorator(nil),
		Display:   board,
		History:   history,
		Logger:    logging.NewComponentLogger("orchestrator"),
		OnFrame:   relay.emit,
	})

	return &app{
		cfg:          cfg,
		repo:         repo,
		breaker:      cb,
		orchestrator: orchestrator,
		relay:        relay,
	}, nil
}

func providerBinding(p config.ProviderConfig) (*llm.Binding, error) {
	client, err := llm.NewOpenAIClient(llm.Config{
		BaseURL: p.BaseURL,
		APIKey:  p.APIKey,
		Model:   p.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", p.Name, err)
	}
	return &llm.Binding{
		Name:      p.Name,
		Tier:      p.Tier,
		CircuitID: breaker.ProviderCircuitID(p.Name),
		Client:    client,
	}, nil
}
