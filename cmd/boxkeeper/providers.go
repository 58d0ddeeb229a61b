package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/boxkeeper/internal/app"
	"github.com/MrWong99/boxkeeper/internal/config"
	"github.com/MrWong99/boxkeeper/internal/health"
	"github.com/MrWong99/boxkeeper/internal/resilience"
	"github.com/MrWong99/boxkeeper/pkg/provider/embeddings"
	ollamaembed "github.com/MrWong99/boxkeeper/pkg/provider/embeddings/ollama"
	oaembed "github.com/MrWong99/boxkeeper/pkg/provider/embeddings/openai"
	"github.com/MrWong99/boxkeeper/pkg/provider/llm"
	"github.com/MrWong99/boxkeeper/pkg/provider/llm/anyllm"
	oallm "github.com/MrWong99/boxkeeper/pkg/provider/llm/openai"
)

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// Hosted backends share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// openai-native talks to the OpenAI API through the official SDK and
	// supports organisation scoping.
	reg.RegisterLLM("openai-native", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		if org := config.Option(entry, "organization", ""); org != "" {
			opts = append(opts, oallm.WithOrganization(org))
		}
		if d := timeoutOption(entry); d > 0 {
			opts = append(opts, oallm.WithTimeout(d))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		if dims := config.Option(entry, "dimensions", 0); dims > 0 {
			opts = append(opts, oaembed.WithDimensions(dims))
		}
		if d := timeoutOption(entry); d > 0 {
			opts = append(opts, oaembed.WithTimeout(d))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		if dims := config.Option(entry, "dimensions", 0); dims > 0 {
			opts = append(opts, ollamaembed.WithDimensions(dims))
		}
		if d := timeoutOption(entry); d > 0 {
			opts = append(opts, ollamaembed.WithTimeout(d))
		}
		return ollamaembed.New(entry.BaseURL, entry.Model, opts...)
	})

	for kind, names := range config.ValidProviderNames {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// timeoutOption reads Options["timeout"] as a Go duration string.
func timeoutOption(entry config.ProviderEntry) time.Duration {
	s := config.Option(entry, "timeout", "")
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		slog.Warn("ignoring invalid provider timeout", "provider", entry.Name, "timeout", s, "err", err)
		return 0
	}
	return d
}

// buildProviders instantiates the providers named in cfg and wraps each kind
// in a circuit-breaking fallback group when fallbacks are configured.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}
	bc := resilience.BreakerConfig{
		MaxFailures: cfg.Providers.Breaker.MaxFailures,
		Cooldown:    cfg.Providers.Breaker.Cooldown,
		Probes:      cfg.Providers.Breaker.Probes,
	}

	if name := cfg.Providers.LLM.Name; name != "" {
		primary, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		slog.Info("provider created", "kind", "llm", "name", name)

		group := resilience.NewLLMFallback(name, primary, bc)
		for _, entry := range cfg.Providers.LLMFallbacks {
			p, err := reg.CreateLLM(entry)
			if errors.Is(err, config.ErrProviderNotRegistered) {
				slog.Warn("unknown fallback provider, skipping", "kind", "llm", "name", entry.Name)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("create llm fallback %q: %w", entry.Name, err)
			}
			group.Add(entry.Name, p)
			slog.Info("fallback provider created", "kind", "llm", "name", entry.Name)
		}
		ps.LLM = group
		ps.Checkers = append(ps.Checkers, health.Available("llm", group))
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		primary, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		slog.Info("provider created", "kind", "embeddings", "name", name, "dimensions", primary.Dimensions())

		group := resilience.NewEmbeddingsFallback(name, primary, bc)
		for _, entry := range cfg.Providers.EmbeddingsFallbacks {
			p, err := reg.CreateEmbeddings(entry)
			if errors.Is(err, config.ErrProviderNotRegistered) {
				slog.Warn("unknown fallback provider, skipping", "kind", "embeddings", "name", entry.Name)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("create embeddings fallback %q: %w", entry.Name, err)
			}
			if err := group.Add(entry.Name, p); err != nil {
				return nil, fmt.Errorf("add embeddings fallback %q: %w", entry.Name, err)
			}
			slog.Info("fallback provider created", "kind", "embeddings", "name", entry.Name)
		}
		ps.Embeddings = group
		ps.Checkers = append(ps.Checkers, health.Available("embeddings", group))
	}

	return ps, nil
}
