package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per kind. [Validate] warns
// about names outside this list.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "openai-native", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML file at path, expands ${VAR} references and returns a
// validated [Config] with defaults applied.
//
// A .env file next to the config is loaded into the environment first.
// Variables already set in the environment take precedence over it.
func Load(path string) (*Config, error) {
	if err := LoadEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadEnv loads a dotenv file without overriding existing variables. A
// missing file is not an error.
func LoadEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		slog.Debug("config: loaded env file", "path", path)
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("config: load env %q: %w", path, err)
}

// LoadFromReader decodes YAML from r, expanding ${VAR} references from the
// environment, then applies defaults and validates. "$$" yields a literal "$".
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.Expand(string(raw), func(key string) string {
		if key == "$" {
			return "$"
		}
		return os.Getenv(key)
	})

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreMemory
	}
	if cfg.Store.Backend == StoreSQLite && cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = DefaultSQLitePath
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = IndexMemory
	}
	if cfg.Index.Namespace == "" {
		cfg.Index.Namespace = DefaultNamespace
	}
	if cfg.Semantic.Threshold == 0 {
		cfg.Semantic.Threshold = DefaultThreshold
	}
	if cfg.Semantic.Suggestions == 0 {
		cfg.Semantic.Suggestions = DefaultSuggestions
	}
	if cfg.MCP.Transport == MCPHTTP && cfg.MCP.Path == "" {
		cfg.MCP.Path = DefaultMCPPath
	}
}

// Validate checks that cfg is coherent and returns every problem found,
// joined.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	for _, e := range cfg.Providers.LLMFallbacks {
		validateProviderName("llm", e.Name)
	}
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	for _, e := range cfg.Providers.EmbeddingsFallbacks {
		validateProviderName("embeddings", e.Name)
	}
	if len(cfg.Providers.LLMFallbacks) > 0 && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallbacks requires providers.llm"))
	}
	if len(cfg.Providers.EmbeddingsFallbacks) > 0 && cfg.Providers.Embeddings.Name == "" {
		errs = append(errs, errors.New("providers.embeddings_fallbacks requires providers.embeddings"))
	}
	if b := cfg.Providers.Breaker; b.MaxFailures < 0 || b.Probes < 0 || b.Cooldown < 0 {
		errs = append(errs, errors.New("providers.breaker values must not be negative"))
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("config: providers.llm is not configured; only rule-based parsing is available")
	}
	if cfg.Providers.Embeddings.Name == "" {
		slog.Warn("config: providers.embeddings is not configured; item matching falls back to exact names")
	}

	if !cfg.Store.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("store.backend %q is invalid; valid values: memory, sqlite, postgres", cfg.Store.Backend))
	}
	if cfg.Store.Backend == StorePostgres && cfg.Store.PostgresDSN == "" {
		errs = append(errs, errors.New("store.postgres_dsn is required when store.backend is postgres"))
	}
	if cfg.Store.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("store.embedding_dimensions %d must not be negative", cfg.Store.EmbeddingDimensions))
	}

	if !cfg.Index.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("index.backend %q is invalid; valid values: memory, store", cfg.Index.Backend))
	}
	if cfg.Index.Backend == IndexStore && cfg.Store.Backend == StoreMemory {
		errs = append(errs, errors.New("index.backend store requires a sqlite or postgres store"))
	}

	if cfg.Cache.RedisAddr != "" && cfg.Providers.Embeddings.Name == "" {
		slog.Warn("config: cache.redis_addr is set but no embeddings provider is configured; the cache is unused")
	}
	if cfg.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}

	if t := cfg.Semantic.Threshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("semantic.threshold %.2f is out of range (0, 1]", t))
	}
	if cfg.Semantic.Suggestions < 0 {
		errs = append(errs, fmt.Errorf("semantic.suggestions %d must not be negative", cfg.Semantic.Suggestions))
	}

	if !cfg.MCP.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("mcp.transport %q is invalid; valid values: http, stdio", cfg.MCP.Transport))
	}

	return errors.Join(errs...)
}

func validateProviderName(kind, name string) {
	if name == "" || slices.Contains(ValidProviderNames[kind], name) {
		return
	}
	slog.Warn("config: unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", ValidProviderNames[kind],
	)
}
