package intent

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/MrWong99/boxkeeper/internal/observe"
	llm "github.com/MrWong99/boxkeeper/pkg/provider/llm"
)

const defaultTemperature = 0.0

var (
	compound = regexp.MustCompile(`(?i)\b(?:and|then|also|plus)\b|,`)
	splitter = regexp.MustCompile(`(?i)\s*(?:,\s*(?:(?:and|then|also|plus)\s+)*|\b(?:and|then|also|plus)\b(?:\s+(?:and|then|also|plus)\b)*)\s*`)
)

// Option is a functional option for configuring a [Parser].
type Option func(*Parser)

// WithTemperature sets the sampling temperature for model tiers. Default: 0.
func WithTemperature(temp float64) Option {
	return func(p *Parser) {
		p.temperature = temp
	}
}

// WithMetrics overrides the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Parser) {
		p.metrics = m
	}
}

// Parser converts utterances into operations. It is safe for concurrent use.
type Parser struct {
	llm         llm.Provider
	temperature float64
	metrics     *observe.Metrics
}

// New returns a [Parser]. A nil provider disables the model tiers, leaving
// only rule matching and conjunction splitting.
func New(provider llm.Provider, opts ...Option) *Parser {
	p := &Parser{
		llm:         provider,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// IsCompound reports whether text contains a conjunction or comma that may
// join several commands.
func IsCompound(text string) bool {
	return compound.MatchString(text)
}

// Parse returns at most one operation for text: the first matching rule, or
// the model's single-operation answer when no rule matches.
func (p *Parser) Parse(ctx context.Context, text string) Result {
	ctx, span := observe.StartSpan(ctx, "intent.parse")
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Status: NotFound, Tier: TierRules}
	}

	if op, name, ok := matchRules(text); ok {
		p.metrics.RecordIntent(ctx, TierRules, Found.String())
		observe.Logger(ctx).Debug("intent: rule matched", "rule", name, "text", text, "kind", op.Kind)
		return found(TierRules, op)
	}
	p.metrics.RecordIntent(ctx, TierRules, NotFound.String())

	return p.parseLLM(ctx, text)
}

// ParseMulti returns the ordered operations in text. Callers must execute
// them sequentially because later operations may depend on the effects of
// earlier ones.
//
// Non-compound text goes straight to [Parser.Parse]. Compound text is sent
// to the model for multi-operation extraction; when that yields nothing the
// whole text is handed to Parse. Without a model, compound text is split on
// conjunctions first and every segment matched by rules.
func (p *Parser) ParseMulti(ctx context.Context, text string) Result {
	text = strings.TrimSpace(text)
	if !IsCompound(text) {
		return p.Parse(ctx, text)
	}

	ctx, span := observe.StartSpan(ctx, "intent.parse_multi")
	defer span.End()

	if p.llm == nil {
		if ops, ok := splitRules(text); ok {
			p.metrics.RecordIntent(ctx, TierSplit, Found.String())
			return found(TierSplit, ops...)
		}
		p.metrics.RecordIntent(ctx, TierSplit, NotFound.String())
		return p.Parse(ctx, text)
	}

	res := p.complete(ctx, TierMulti, multiPrompt, text)
	if res.Err == nil {
		ops, status := decodeMulti(text, res.Raw)
		p.metrics.RecordIntent(ctx, TierMulti, status.String())
		if status == Found {
			return Result{Status: Found, Ops: ops, Tier: TierMulti, Raw: res.Raw}
		}
		observe.Logger(ctx).Info("intent: multi extraction gave no operations", "status", status, "text", text)
	}
	return p.Parse(ctx, text)
}

// parseLLM runs the single-operation model tier.
func (p *Parser) parseLLM(ctx context.Context, text string) Result {
	if p.llm == nil {
		return Result{Status: NotFound, Tier: TierRules}
	}
	res := p.complete(ctx, TierLLM, singlePrompt, text)
	if res.Err != nil {
		return res
	}
	op, status := decodeSingle(text, res.Raw)
	p.metrics.RecordIntent(ctx, TierLLM, status.String())
	if status != Found {
		observe.Logger(ctx).Info("intent: model found no operation", "status", status, "text", text)
		return Result{Status: status, Tier: TierLLM, Raw: res.Raw}
	}
	return Result{Status: Found, Ops: []Operation{op}, Tier: TierLLM, Raw: res.Raw}
}

// complete sends text to the model under the given system prompt. A failed
// call is logged and reported as NotFound with Err set.
func (p *Parser) complete(ctx context.Context, tier, prompt, text string) Result {
	start := time.Now()
	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: prompt,
		Messages:     []llm.Message{llm.UserMessage(text)},
		Temperature:  p.temperature,
	})
	p.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordIntent(ctx, tier, "error")
		observe.Logger(ctx).Warn("intent: model call failed", "tier", tier, "model", p.llm.ModelID(), "err", err)
		return Result{Status: NotFound, Tier: tier, Err: err}
	}
	var content string
	if resp != nil {
		content = resp.Content
	}
	return Result{Tier: tier, Raw: content}
}

// splitRules splits compound text on conjunctions and commas and matches
// each segment by rules. A segment that fails on its own is retried with the
// verb of the previous ADD, REMOVE or FIND ("add tape and 2 rolls of twine"). It
// succeeds only when there are at least two segments and all of them match.
func splitRules(text string) ([]Operation, bool) {
	var segments []string
	for _, s := range splitter.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 2 {
		return nil, false
	}

	ops := make([]Operation, 0, len(segments))
	for _, seg := range segments {
		op, _, ok := matchRules(seg)
		if !ok && len(ops) > 0 {
			if verb := carryVerb(ops[len(ops)-1]); verb != "" {
				op, _, ok = matchRules(verb + seg)
			}
		}
		if !ok {
			return nil, false
		}
		ops = append(ops, op)
	}
	propagateDestination(ops)
	return ops, true
}

// carryVerb is the verb prepended to a bare segment following prev.
func carryVerb(prev Operation) string {
	switch prev.Kind {
	case KindAdd:
		return "add "
	case KindRemove:
		return "remove "
	case KindFind:
		if prev.Everything {
			return "what's in "
		}
		return "find "
	}
	return ""
}
