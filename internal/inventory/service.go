// Package inventory owns box and item identity and is the only component
// that mutates inventory state.
//
// A [Service] keeps an explicit in-memory mirror of the record store and
// serialises every operation with a mutex, so each operation observes the
// effects of the one before it. Every mutation writes to the record store
// first and touches the mirror only after the write succeeded; operations
// that need several writes undo the earlier ones when a later one fails. The
// vector index is updated last and its failures are logged, never returned.
//
// Failures are reported as [*Error] values carrying a [Code].
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/boxkeeper/internal/observe"
	"github.com/MrWong99/boxkeeper/internal/phonetic"
	"github.com/MrWong99/boxkeeper/internal/semantic"
	"github.com/MrWong99/boxkeeper/pkg/store"
)

const (
	// RemoveAll is the quantity sentinel that deletes an item regardless of
	// how many are stored.
	RemoveAll = 9999

	// DefaultBox is the box new items go to when none is named.
	DefaultBox = "A"
)

// Resolver is the semantic matching the service depends on. It is satisfied
// by [*semantic.Resolver].
type Resolver interface {
	Threshold() float64
	FindBestMatch(ctx context.Context, query string, topK int) (semantic.BestMatch, error)
	FindAllAboveThreshold(ctx context.Context, query string, k int) ([]semantic.Match, error)
	IndexItem(ctx context.Context, item semantic.Item, boxName string) error
	DeleteItem(ctx context.Context, ids ...string) error
	Reindex(ctx context.Context, items []semantic.Item, boxNames map[string]string) (int, error)
}

var _ Resolver = (*semantic.Resolver)(nil)

// Option configures a [Service].
type Option func(*Service)

// WithDefaultBox sets the box used when an add names none.
func WithDefaultBox(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.defaultBox = name
		}
	}
}

// WithClock overrides the time source for creation timestamps and IDs.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPhonetic enables the last box-resolution stage with m. Without it, or
// with a nil matcher, that stage is skipped.
func WithPhonetic(m *phonetic.Matcher) Option {
	return func(s *Service) { s.phonetic = m }
}

// WithSuggestions sets how many suggestions accompany a not-found error.
func WithSuggestions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topK = n
		}
	}
}

// Service executes inventory operations. The zero value is not usable; call
// [New]. All methods are safe for concurrent use.
type Service struct {
	store    store.RecordStore
	resolver Resolver
	phonetic *phonetic.Matcher
	metrics  *observe.Metrics
	ids      *idSource
	now      func() time.Time

	defaultBox string
	topK       int

	mu     sync.Mutex
	mirror *mirror
}

// New creates a Service. The mirror starts empty; call [Service.Sync] to
// load the record store. resolver may be nil, in which case item lookups use
// substring matching only.
func New(rs store.RecordStore, resolver Resolver, opts ...Option) *Service {
	s := &Service{
		store:      rs,
		resolver:   resolver,
		ids:        newIDSource(),
		now:        time.Now,
		defaultBox: DefaultBox,
		topK:       semantic.DefaultTopK,
		mirror:     newMirror(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Threshold returns the semantic acceptance threshold, or 0 without a
// resolver.
func (s *Service) Threshold() float64 {
	if s.resolver == nil {
		return 0
	}
	return s.resolver.Threshold()
}

// Sync replaces the mirror with the record store contents. Items that
// reference a missing box are logged and left out.
func (s *Service) Sync(ctx context.Context) (err error) {
	const op = "sync"
	ctx, done := s.begin(ctx, op)
	defer func() { done(err) }()

	boxes, err := s.store.ListBoxes(ctx)
	if err != nil {
		return transport(op, "list boxes", err)
	}
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return transport(op, "list items", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.mirror.load(boxes, items) {
		slog.Warn("inventory: skipping item without a live box", "item", it.ID, "name", it.Name, "box", it.BoxID)
	}
	slog.Info("inventory: mirror loaded", "boxes", len(s.mirror.boxes), "items", len(s.mirror.items))
	return nil
}

// Reindex rebuilds the vector index from the mirror.
func (s *Service) Reindex(ctx context.Context) (n int, err error) {
	const op = "reindex"
	ctx, done := s.begin(ctx, op)
	defer func() { done(err) }()

	if s.resolver == nil {
		return 0, invalid(op, "no semantic resolver configured")
	}

	s.mu.Lock()
	items := s.mirror.itemList()
	names := make(map[string]string, len(s.mirror.boxes))
	for id, b := range s.mirror.boxes {
		names[id] = b.Name
	}
	s.mu.Unlock()

	sitems := make([]semantic.Item, len(items))
	for i, it := range items {
		sitems[i] = semanticItem(it)
	}
	n, err = s.resolver.Reindex(ctx, sitems, names)
	if err != nil {
		return 0, fmt.Errorf("inventory: reindex: %w", err)
	}
	return n, nil
}

// begin starts the span for op and returns a function that ends it and
// records the outcome.
func (s *Service) begin(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "inventory."+op)
	return ctx, func(err error) {
		status := "ok"
		if err != nil {
			status = string(CodeOf(err))
			if status == "" {
				status = "error"
			}
		}
		s.metrics.RecordOperation(ctx, op, status, start)
		observe.EndSpan(span, err)
	}
}

// index upserts the vector for it. Failures only degrade future matching.
func (s *Service) index(ctx context.Context, it store.Item) {
	if s.resolver == nil {
		return
	}
	if err := s.resolver.IndexItem(ctx, semanticItem(it), s.mirror.boxName(it.BoxID)); err != nil {
		observe.Logger(ctx).Warn("inventory: index item failed", "item", it.ID, "name", it.Name, "err", err)
	}
}

// unindex removes vectors. Failures leave stale entries that lookups skip.
func (s *Service) unindex(ctx context.Context, ids ...string) {
	if s.resolver == nil || len(ids) == 0 {
		return
	}
	if err := s.resolver.DeleteItem(ctx, ids...); err != nil {
		observe.Logger(ctx).Warn("inventory: delete from index failed", "items", len(ids), "err", err)
	}
}

func semanticItem(it store.Item) semantic.Item {
	return semantic.Item{
		ID:            it.ID,
		Name:          it.Name,
		CanonicalName: it.CanonicalName,
		BoxID:         it.BoxID,
	}
}
