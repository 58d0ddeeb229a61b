// Package api serves boxkeeper over HTTP.
//
// Routes:
//
//	POST   /v1/utterances          run free text, with slot-filling sessions
//	GET    /v1/ws                  the same over a WebSocket, one session per connection
//	GET    /v1/boxes               list boxes with counts
//	POST   /v1/boxes               create a box
//	DELETE /v1/boxes/{name}        delete an empty box
//	GET    /v1/boxes/{name}/items  box contents
//	DELETE /v1/boxes/{name}/items  clear a box
//	GET    /v1/items[?q=name]      list items, or find by name
//	POST   /v1/reindex             rebuild the vector index
//	POST   /v1/sync                reload the mirror from the record store
//	GET    /metrics                Prometheus scrape endpoint
//	GET    /healthz, /readyz       probes, when a health handler is set
//	*      /mcp                    MCP streamable HTTP, when enabled
//
// Every request passes through [observe.Middleware].
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/boxkeeper/internal/command"
	"github.com/MrWong99/boxkeeper/internal/health"
	"github.com/MrWong99/boxkeeper/internal/inventory"
	"github.com/MrWong99/boxkeeper/internal/observe"
)

// maxBody caps JSON request bodies and WebSocket messages.
const maxBody = 64 << 10

// DefaultSessionTTL is how long an idle utterance session is kept.
const DefaultSessionTTL = 15 * time.Minute

// Server is the HTTP surface.
type Server struct {
	inv      *inventory.Service
	exec     *command.Executor
	sessions *sessions
	metrics  *observe.Metrics
	health   *health.Handler
	mcpPath  string
	mcp      http.Handler
	origins  []string
	router   *mux.Router
}

// Option configures a [Server].
type Option func(*Server)

// WithHealth mounts /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMCP mounts h at path for every method.
func WithMCP(path string, h http.Handler) Option {
	return func(s *Server) {
		s.mcpPath = path
		s.mcp = h
	}
}

// WithSessionTTL sets how long idle utterance sessions are kept.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.sessions.ttl = d
		}
	}
}

// WithOriginPatterns allows cross-origin WebSocket connections from hosts
// matching the given patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.origins = patterns }
}

// WithMetrics overrides the metrics used by the request middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server and builds its router.
func New(inv *inventory.Service, exec *command.Executor, opts ...Option) *Server {
	s := &Server{
		inv:      inv,
		exec:     exec,
		sessions: newSessions(exec, DefaultSessionTTL, time.Now),
		metrics:  observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(observe.Middleware(s.metrics))

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/utterances", s.postUtterance).Methods(http.MethodPost)
	v1.HandleFunc("/ws", s.serveWS).Methods(http.MethodGet)
	v1.HandleFunc("/boxes", s.listBoxes).Methods(http.MethodGet)
	v1.HandleFunc("/boxes", s.createBox).Methods(http.MethodPost)
	v1.HandleFunc("/boxes/{name}", s.deleteBox).Methods(http.MethodDelete)
	v1.HandleFunc("/boxes/{name}/items", s.boxItems).Methods(http.MethodGet)
	v1.HandleFunc("/boxes/{name}/items", s.clearBox).Methods(http.MethodDelete)
	v1.HandleFunc("/items", s.items).Methods(http.MethodGet)
	v1.HandleFunc("/reindex", s.reindex).Methods(http.MethodPost)
	v1.HandleFunc("/sync", s.sync).Methods(http.MethodPost)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if s.health != nil {
		s.health.Register(r)
	}
	if s.mcp != nil {
		r.PathPrefix(s.mcpPath).Handler(s.mcp)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no such endpoint"})
	})
	return r
}
