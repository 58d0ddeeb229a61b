package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every member of a [Group] failed or was
// skipped by its breaker.
var ErrAllFailed = errors.New("resilience: all providers failed")

type member[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Group is an ordered chain of interchangeable providers, each behind its
// own [Breaker]. Members are tried in registration order.
type Group[T any] struct {
	cfg     BreakerConfig
	members []member[T]
}

// NewGroup creates a Group whose first member is primary. cfg is the
// template for every member's breaker; its Name is replaced per member.
func NewGroup[T any](name string, primary T, cfg BreakerConfig) *Group[T] {
	g := &Group[T]{cfg: cfg}
	g.Add(name, primary)
	return g
}

// Add appends a fallback member. Add must not be called concurrently with
// [Call].
func (g *Group[T]) Add(name string, value T) {
	cfg := g.cfg
	cfg.Name = name
	g.members = append(g.members, member[T]{name: name, value: value, breaker: NewBreaker(cfg)})
}

// Primary returns the first member.
func (g *Group[T]) Primary() T {
	return g.members[0].value
}

// MemberStatus is the health of one [Group] member.
type MemberStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// Status reports every member's breaker state in order.
func (g *Group[T]) Status() []MemberStatus {
	out := make([]MemberStatus, len(g.members))
	for i, m := range g.members {
		out[i] = MemberStatus{Name: m.name, State: m.breaker.State().String()}
	}
	return out
}

// Available reports whether at least one member would accept a call.
func (g *Group[T]) Available() bool {
	for _, m := range g.members {
		if m.breaker.State() != Open {
			return true
		}
	}
	return false
}

// Call runs fn against each member until one succeeds and returns its
// result. The name of the member that answered is returned alongside. A
// cancelled context stops the chain immediately.
func Call[T, R any](g *Group[T], fn func(T) (R, error)) (R, string, error) {
	var (
		zero    R
		lastErr error
	)
	for _, m := range g.members {
		var res R
		err := m.breaker.Do(func() error {
			var err error
			res, err = fn(m.value)
			return err
		})
		if err == nil {
			return res, m.name, nil
		}
		if errors.Is(err, ErrOpen) {
			slog.Debug("resilience: skipping provider, breaker open", "provider", m.name)
		} else {
			slog.Warn("resilience: provider failed, trying next", "provider", m.name, "err", err)
		}
		if isCancel(err) {
			return zero, m.name, err
		}
		lastErr = err
	}
	if lastErr == nil {
		return zero, "", ErrAllFailed
	}
	return zero, "", fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
