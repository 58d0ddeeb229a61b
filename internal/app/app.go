// Package app wires all boxkeeper subsystems together and manages the
// application lifecycle.
//
// New builds the record store, vector index, semantic resolver, inventory,
// parser, executor and the HTTP and MCP surfaces from a [config.Config].
// Run serves until its context is cancelled; Shutdown releases what New
// opened.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/boxkeeper/internal/api"
	"github.com/MrWong99/boxkeeper/internal/command"
	"github.com/MrWong99/boxkeeper/internal/config"
	"github.com/MrWong99/boxkeeper/internal/health"
	"github.com/MrWong99/boxkeeper/internal/intent"
	"github.com/MrWong99/boxkeeper/internal/inventory"
	"github.com/MrWong99/boxkeeper/internal/mcpserver"
	"github.com/MrWong99/boxkeeper/internal/observe"
	"github.com/MrWong99/boxkeeper/internal/phonetic"
	"github.com/MrWong99/boxkeeper/internal/semantic"
	"github.com/MrWong99/boxkeeper/pkg/provider/embeddings"
	"github.com/MrWong99/boxkeeper/pkg/provider/embeddings/rediscache"
	"github.com/MrWong99/boxkeeper/pkg/provider/llm"
	"github.com/MrWong99/boxkeeper/pkg/store"
	"github.com/MrWong99/boxkeeper/pkg/store/postgres"
	"github.com/MrWong99/boxkeeper/pkg/store/sqlite"
)

// shutdownTimeout bounds how long in-flight HTTP requests may take once Run
// is cancelled.
const shutdownTimeout = 15 * time.Second

// Providers holds the instantiated model providers. Either may be nil: a nil
// LLM limits parsing to the rules tier, a nil Embeddings provider limits
// item lookups to substring matching.
type Providers struct {
	LLM        llm.Provider
	Embeddings embeddings.Provider

	// Checkers report provider availability on /readyz.
	Checkers []health.Checker
}

// App owns every long-lived component.
type App struct {
	cfg       *config.Config
	providers *Providers
	version   string
	metrics   *observe.Metrics

	records  store.RecordStore
	index    semantic.VectorIndex
	redis    *redis.Client
	resolver *semantic.Resolver
	inv      *inventory.Service
	exec     *command.Executor
	mcp      *mcpserver.Server
	api      *api.Server
	server   *http.Server
	checkers []health.Checker

	// persistent is set when the record store outlives the process.
	persistent bool

	// closers run in reverse order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option configures an [App]. Options are used to inject test doubles.
type Option func(*App)

// WithRecordStore replaces the store built from config.Store.
func WithRecordStore(rs store.RecordStore) Option {
	return func(a *App) { a.records = rs }
}

// WithVectorIndex replaces the index built from config.Index.
func WithVectorIndex(idx semantic.VectorIndex) Option {
	return func(a *App) { a.index = idx }
}

// WithRedis supplies the embeddings cache client instead of dialling
// config.Cache.RedisAddr.
func WithRedis(c *redis.Client) Option {
	return func(a *App) { a.redis = c }
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// WithMetrics sets the metrics sink shared by every component.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New builds the application, loads the inventory mirror and, when needed,
// rebuilds the vector index.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{cfg: cfg, providers: providers, version: "dev"}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	ix, err := a.initStore(ctx)
	if err != nil {
		a.closeAll()
		return nil, err
	}
	a.initIndex(ix)
	a.initResolver()

	if err := a.initInventory(ctx); err != nil {
		a.closeAll()
		return nil, err
	}
	a.initSurfaces()

	slog.Info("app: initialised",
		"store", cfg.Store.Backend,
		"index", cfg.Index.Backend,
		"llm", providers.LLM != nil,
		"embeddings", providers.Embeddings != nil,
		"mcp", cfg.MCP.Transport,
	)
	return a, nil
}

// ─── init ──────────────────────────────────────────────────────────────────

// indexer is the part of a persistent store that hands out vector indexes.
type indexer func(namespace string) semantic.VectorIndex

func (a *App) initStore(ctx context.Context) (indexer, error) {
	if a.records != nil {
		a.addPinger("store", a.records)
		return nil, nil
	}

	switch a.cfg.Store.Backend {
	case config.StoreSQLite:
		s, err := sqlite.Open(ctx, a.cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("app: open sqlite store: %w", err)
		}
		a.records, a.persistent = s, true
		a.closers = append(a.closers, s.Close)
		a.checkers = append(a.checkers, health.Ping("store", s))
		return func(ns string) semantic.VectorIndex { return s.Index(ns) }, nil

	case config.StorePostgres:
		dims := a.cfg.Store.EmbeddingDimensions
		if dims == 0 && a.providers.Embeddings != nil {
			dims = a.providers.Embeddings.Dimensions()
		}
		s, err := postgres.NewStore(ctx, a.cfg.Store.PostgresDSN, dims)
		if err != nil {
			return nil, fmt.Errorf("app: open postgres store: %w", err)
		}
		a.records, a.persistent = s, true
		a.closers = append(a.closers, func() error { s.Close(); return nil })
		a.checkers = append(a.checkers, health.Ping("store", s))
		return func(ns string) semantic.VectorIndex { return s.Index(ns) }, nil
	}

	a.records = store.NewMemStore()
	return nil, nil
}

func (a *App) initIndex(ix indexer) {
	if a.index != nil {
		return
	}
	if a.cfg.Index.Backend == config.IndexStore && ix != nil {
		a.index = ix(a.cfg.Index.Namespace)
		return
	}
	a.index = semantic.NewMemIndex()
}

func (a *App) initResolver() {
	emb := a.providers.Embeddings
	if emb == nil {
		slog.Warn("app: no embeddings provider, item lookups use substring matching")
		return
	}

	if a.redis == nil && a.cfg.Cache.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Cache.RedisAddr,
			Password: a.cfg.Cache.RedisPassword,
			DB:       a.cfg.Cache.RedisDB,
		})
		a.closers = append(a.closers, a.redis.Close)
	}
	if a.redis != nil {
		emb = rediscache.New(emb, a.redis, rediscache.WithTTL(a.cfg.Cache.TTL))
		a.checkers = append(a.checkers, health.Checker{
			Name:  "cache",
			Check: func(ctx context.Context) error { return a.redis.Ping(ctx).Err() },
		})
	}

	a.resolver = semantic.New(emb, a.index,
		semantic.WithThreshold(a.cfg.Semantic.Threshold),
		semantic.WithMetrics(a.metrics),
	)
}

func (a *App) initInventory(ctx context.Context) error {
	opts := []inventory.Option{
		inventory.WithDefaultBox(a.cfg.Server.DefaultBox),
		inventory.WithSuggestions(a.cfg.Semantic.Suggestions),
		inventory.WithMetrics(a.metrics),
	}
	if a.cfg.Semantic.Phonetic {
		opts = append(opts, inventory.WithPhonetic(phonetic.New()))
	}

	var resolver inventory.Resolver
	if a.resolver != nil {
		resolver = a.resolver
	}
	a.inv = inventory.New(a.records, resolver, opts...)

	if err := a.inv.Sync(ctx); err != nil {
		return fmt.Errorf("app: load inventory: %w", err)
	}
	if a.resolver == nil || !a.needsReindex() {
		return nil
	}
	n, err := a.inv.Reindex(ctx)
	if err != nil {
		// Lookups degrade to substring matching until the next reindex.
		slog.Warn("app: reindex failed", "err", err)
		return nil
	}
	slog.Info("app: vector index rebuilt", "items", n)
	return nil
}

// needsReindex reports whether the index may be missing vectors for items
// already in the record store.
func (a *App) needsReindex() bool {
	if a.cfg.Index.ReindexOnStart {
		return true
	}
	_, inMemory := a.index.(*semantic.MemIndex)
	return inMemory && a.persistent
}

func (a *App) initSurfaces() {
	parser := intent.New(a.providers.LLM, intent.WithMetrics(a.metrics))
	a.exec = command.New(parser, a.inv)
	a.mcp = mcpserver.New(a.inv, a.exec, a.version)

	checkers := append(a.checkers, a.providers.Checkers...)
	apiOpts := []api.Option{
		api.WithHealth(health.New(checkers...)),
		api.WithMetrics(a.metrics),
	}
	if a.cfg.MCP.Transport == config.MCPHTTP {
		apiOpts = append(apiOpts, api.WithMCP(a.cfg.MCP.Path, a.mcp.Handler()))
	}
	a.api = api.New(a.inv, a.exec, apiOpts...)

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (a *App) addPinger(name string, v any) {
	if p, ok := v.(health.Pinger); ok {
		a.checkers = append(a.checkers, health.Ping(name, p))
	}
}

// ─── accessors ─────────────────────────────────────────────────────────────

// Inventory returns the inventory service.
func (a *App) Inventory() *inventory.Service { return a.inv }

// Executor returns the command executor.
func (a *App) Executor() *command.Executor { return a.exec }

// Handler returns the HTTP handler served by Run.
func (a *App) Handler() http.Handler { return a.api.Handler() }

// MCP returns the MCP tool server.
func (a *App) MCP() *mcpserver.Server { return a.mcp }

// ─── lifecycle ─────────────────────────────────────────────────────────────

// Run serves HTTP, and MCP over stdio when configured, until ctx is
// cancelled. A stdio client disconnecting also ends Run.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.MCP.Transport == config.MCPStdio {
		g.Go(func() error {
			defer cancel()
			return a.mcp.RunStdio(ctx)
		})
	}

	g.Go(func() error {
		slog.Info("app: http listening", "addr", a.server.Addr, "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: http server: %w", err)
	})

	g.Go(func() error {
		<-ctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := a.server.Shutdown(sctx); err != nil {
			return fmt.Errorf("app: http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Shutdown releases every resource opened by New. It is safe to call more
// than once; only the first call does anything.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- a.closeAll() }()
		select {
		case err = <-done:
		case <-ctx.Done():
			err = fmt.Errorf("app: shutdown: %w", ctx.Err())
		}
	})
	return err
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("app: shutdown: %w", errors.Join(errs...))
	}
	return nil
}
