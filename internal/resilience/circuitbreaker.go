// Package resilience protects boxkeeper from flaky model backends.
//
// A [Breaker] is a three-state circuit breaker (closed, open, half-open)
// that stops calling a backend after repeated failures and probes it again
// after a cool-down. A [Group] chains a primary and fallback instances of one
// provider type, each behind its own breaker, and returns the first success.
// [LLMFallback] and [EmbeddingsFallback] wrap groups as ready-made providers.
//
// Context cancellation is the caller giving up, not the backend failing, so
// it never counts against a breaker.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// Closed forwards every call.
	Closed State = iota

	// Open rejects calls with [ErrOpen] until the cool-down has elapsed.
	Open

	// HalfOpen lets a limited number of probes through. Enough successes
	// close the breaker; any failure opens it again.
	HalfOpen
)

// String returns the state name used in logs and health reports.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero fields take the defaults noted.
type BreakerConfig struct {
	// Name labels the breaker in logs.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 5.
	MaxFailures int

	// Cooldown is how long the breaker stays open before probing. Default: 30s.
	Cooldown time.Duration

	// Probes is the number of successful half-open calls needed to close.
	// Default: 2.
	Probes int

	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

// Breaker is a circuit breaker around one backend.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	probes      int
	now         func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	inFlight    int
	probePassed int
}

// NewBreaker returns a closed [Breaker].
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 2
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		probes:      cfg.Probes,
		now:         cfg.Now,
	}
}

// Name returns the breaker's label.
func (b *Breaker) Name() string { return b.name }

// Do runs fn unless the breaker is open. The error from fn is returned
// unchanged; a rejected call returns [ErrOpen] without running fn.
func (b *Breaker) Do(fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}

	err = fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if probe {
		b.inFlight--
	}
	switch {
	case err == nil:
		b.succeeded(probe)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The caller gave up; the backend's health is unknown.
	default:
		b.failed(probe)
	}
	return err
}

// admit decides whether a call may proceed and whether it is a probe.
func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open {
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false, ErrOpen
		}
		b.state = HalfOpen
		b.probePassed = 0
		slog.Info("resilience: breaker half-open, probing", "name", b.name)
	}
	if b.state == HalfOpen {
		if b.inFlight+b.probePassed >= b.probes {
			return false, ErrOpen
		}
		b.inFlight++
		return true, nil
	}
	return false, nil
}

// failed records a failure. Must be called with b.mu held.
func (b *Breaker) failed(probe bool) {
	if probe || b.state == HalfOpen {
		b.trip()
		slog.Warn("resilience: probe failed, breaker re-opened", "name", b.name)
		return
	}
	b.failures++
	if b.failures >= b.maxFailures {
		b.trip()
		slog.Warn("resilience: breaker opened", "name", b.name, "consecutive_failures", b.failures)
	}
}

// succeeded records a success. Must be called with b.mu held.
func (b *Breaker) succeeded(probe bool) {
	if !probe {
		b.failures = 0
		return
	}
	b.probePassed++
	if b.state == HalfOpen && b.probePassed >= b.probes {
		b.state = Closed
		b.failures = 0
		b.probePassed = 0
		slog.Info("resilience: breaker closed", "name", b.name)
	}
}

func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = b.now()
	b.probePassed = 0
}

// State reports the current state. An open breaker whose cool-down has
// elapsed reports [HalfOpen]; the transition itself happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cooldown {
		return HalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.probePassed = 0
	slog.Info("resilience: breaker reset", "name", b.name)
}
