package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/boxkeeper/internal/observe"
	"github.com/MrWong99/boxkeeper/pkg/provider/llm"
)

// LLMFallback is an [llm.Provider] that fails over across several backends.
type LLMFallback struct {
	group   *Group[llm.Provider]
	metrics *observe.Metrics
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an LLMFallback preferring primary.
func NewLLMFallback(name string, primary llm.Provider, cfg BreakerConfig) *LLMFallback {
	return &LLMFallback{group: NewGroup(name, primary, cfg), metrics: observe.DefaultMetrics()}
}

// Add registers a fallback backend.
func (f *LLMFallback) Add(name string, p llm.Provider) { f.group.Add(name, p) }

// Status reports each backend's breaker state.
func (f *LLMFallback) Status() []MemberStatus { return f.group.Status() }

// Available reports whether any backend accepts calls.
func (f *LLMFallback) Available() bool { return f.group.Available() }

// Complete sends req to the first healthy backend.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, name, err := Call(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		resp, err := p.Complete(ctx, req)
		if err != nil && !isCancel(err) {
			f.metrics.RecordProviderError(ctx, p.ModelID(), "llm")
		}
		return resp, err
	})
	if err != nil {
		f.metrics.RecordProviderRequest(ctx, "fallback", "llm", "error")
		return nil, err
	}
	f.metrics.RecordProviderRequest(ctx, name, "llm", "ok")
	return resp, nil
}

// ModelID returns the primary backend's model.
func (f *LLMFallback) ModelID() string {
	return f.group.Primary().ModelID()
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
