package config

// Diff describes what changed between two configs. Only the log level can
// be applied live; every other change is listed in Restart.
type Diff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// Restart names the top-level sections whose changes take effect only
	// after a restart.
	Restart []string
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return !d.LogLevelChanged && len(d.Restart) == 0
}

// Compare returns the differences from old to new.
func Compare(old, new *Config) Diff {
	var d Diff
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	if !sameServer(oldServer, newServer) {
		d.Restart = append(d.Restart, "server")
	}
	if !sameProviders(old.Providers, new.Providers) {
		d.Restart = append(d.Restart, "providers")
	}
	if old.Store != new.Store {
		d.Restart = append(d.Restart, "store")
	}
	if old.Index != new.Index {
		d.Restart = append(d.Restart, "index")
	}
	if old.Cache != new.Cache {
		d.Restart = append(d.Restart, "cache")
	}
	if old.Semantic != new.Semantic {
		d.Restart = append(d.Restart, "semantic")
	}
	if old.MCP != new.MCP {
		d.Restart = append(d.Restart, "mcp")
	}
	return d
}

func sameServer(a, b ServerConfig) bool {
	if a.ListenAddr != b.ListenAddr || a.DefaultBox != b.DefaultBox {
		return false
	}
	if (a.TLS == nil) != (b.TLS == nil) {
		return false
	}
	return a.TLS == nil || *a.TLS == *b.TLS
}

func sameProviders(a, b ProvidersConfig) bool {
	if a.Breaker != b.Breaker || !sameEntry(a.LLM, b.LLM) || !sameEntry(a.Embeddings, b.Embeddings) {
		return false
	}
	return sameEntries(a.LLMFallbacks, b.LLMFallbacks) && sameEntries(a.EmbeddingsFallbacks, b.EmbeddingsFallbacks)
}

func sameEntries(a, b []ProviderEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameEntry(a[i], b[i]) {
			return false
		}
	}
	return true
}

// sameEntry does not compare Options.
func sameEntry(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL && a.Model == b.Model
}
