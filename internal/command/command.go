// Package command executes parsed inventory utterances and renders the
// replies a user hears.
//
// An [Executor] parses text with [intent.Parser.ParseMulti] and runs the
// resulting operations strictly in order against an [inventory.Service],
// because later operations may depend on what earlier ones did. Each
// operation is dispatched through an ordered table of handlers; the first
// handler whose Match accepts the operation runs it.
//
// When an operation lacks a detail the user must supply (a MOVE without a
// destination, an ADD_BOX without a name), execution stops and the [Reply]
// carries a [Prompt]. [Executor.Fill] resumes from that prompt once the user
// answers. [Session] keeps the pending prompt between turns.
package command

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/boxkeeper/internal/canon"
	"github.com/MrWong99/boxkeeper/internal/intent"
	"github.com/MrWong99/boxkeeper/internal/inventory"
)

// Reply texts that do not depend on an operation.
const (
	NotUnderstood = "Sorry, I didn't understand that."
	Cancelled     = "Operation cancelled."
)

// Parser turns free text into operations. It is satisfied by
// [*intent.Parser].
type Parser interface {
	ParseMulti(ctx context.Context, text string) intent.Result
}

var _ Parser = (*intent.Parser)(nil)

// Outcome is the result of one executed operation.
type Outcome struct {
	Op intent.Operation `json:"op"`

	// Handler names the handler that ran the operation.
	Handler string `json:"handler"`

	// Text is the user-facing reply for this operation.
	Text string `json:"text"`

	// Code is set when the operation failed with an [*inventory.Error].
	Code inventory.Code `json:"code,omitempty"`

	// Err is the failure, if any.
	Err error `json:"-"`
}

// Reply is everything produced by one call to [Executor.Run] or
// [Executor.Fill].
type Reply struct {
	// Tier is the parse tier that produced the operations.
	Tier string `json:"tier,omitempty"`

	Outcomes []Outcome `json:"outcomes"`

	// Prompt is set when execution stopped to ask for a missing detail.
	Prompt *Prompt `json:"prompt,omitempty"`

	// Understood is false when no operation could be parsed.
	Understood bool `json:"understood"`
}

// Text joins the outcome texts and the pending question, if any.
func (r Reply) Text() string {
	if !r.Understood {
		return NotUnderstood
	}
	parts := make([]string, 0, len(r.Outcomes)+1)
	for _, o := range r.Outcomes {
		parts = append(parts, o.Text)
	}
	if r.Prompt != nil {
		parts = append(parts, r.Prompt.Question)
	}
	return strings.Join(parts, " ")
}

// Failed reports whether any operation failed.
func (r Reply) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return true
		}
	}
	return false
}

// Executor runs operations against an inventory. All methods are safe for
// concurrent use; the inventory serialises the operations themselves.
type Executor struct {
	parser   Parser
	inv      *inventory.Service
	handlers []Handler
}

// New creates an Executor using the built-in handler table.
func New(parser Parser, inv *inventory.Service) *Executor {
	return &Executor{
		parser:   parser,
		inv:      inv,
		handlers: defaultHandlers(),
	}
}

// Run parses text and executes every operation it contains.
func (e *Executor) Run(ctx context.Context, text string) Reply {
	res := e.parser.ParseMulti(ctx, text)
	if !res.OK() {
		slog.Info("command: utterance not understood", "text", text, "status", res.Status, "tier", res.Tier)
		return Reply{Tier: res.Tier}
	}
	reply := e.Execute(ctx, res.Ops)
	reply.Tier = res.Tier
	return reply
}

// Execute runs ops in order. It stops at the first operation that is
// missing a detail and returns a [Prompt] holding that operation and every
// one after it. A failed operation does not stop the ones after it.
func (e *Executor) Execute(ctx context.Context, ops []intent.Operation) Reply {
	reply := Reply{Understood: true}
	for i, op := range ops {
		op = withDefaults(op)
		h, ok := e.handlerFor(op)
		if !ok {
			reply.Outcomes = append(reply.Outcomes, Outcome{Op: op, Text: NotUnderstood})
			continue
		}
		if slot, question, missing := h.missing(op); missing {
			rest := append([]intent.Operation{op}, ops[i+1:]...)
			reply.Prompt = &Prompt{Slot: slot, Question: question, Ops: rest}
			return reply
		}
		reply.Outcomes = append(reply.Outcomes, e.run(ctx, h, op))
	}
	return reply
}

// Fill answers p with the user's reply and resumes execution. A cancel word
// abandons the pending operations; an empty answer asks again.
func (e *Executor) Fill(ctx context.Context, p *Prompt, answer string) Reply {
	if p == nil || len(p.Ops) == 0 {
		return e.Run(ctx, answer)
	}
	if isCancel(answer) {
		slog.Info("command: pending operation cancelled", "slot", p.Slot, "kind", p.Ops[0].Kind)
		return Reply{Understood: true, Outcomes: []Outcome{{Op: p.Ops[0], Text: Cancelled}}}
	}
	value := cleanAnswer(answer)
	if value == "" {
		return Reply{Understood: true, Prompt: p}
	}

	ops := append([]intent.Operation(nil), p.Ops...)
	ops[0] = p.Slot.set(ops[0], value)
	return e.Execute(ctx, ops)
}

func (e *Executor) handlerFor(op intent.Operation) (Handler, bool) {
	for _, h := range e.handlers {
		if h.Match(op) {
			return h, true
		}
	}
	return Handler{}, false
}

func (e *Executor) run(ctx context.Context, h Handler, op intent.Operation) Outcome {
	out := Outcome{Op: op, Handler: h.Name}
	text, err := h.Action(ctx, e.inv, op)
	if err != nil {
		out.Err = err
		out.Code = inventory.CodeOf(err)
		out.Text = Describe(err)
		slog.Warn("command: operation failed",
			"handler", h.Name,
			"item", op.ItemName,
			"code", out.Code,
			"error", err,
		)
		return out
	}
	out.Text = text
	slog.Info("command: operation executed",
		"handler", h.Name,
		"item", op.ItemName,
		"result", text,
	)
	return out
}

// withDefaults fills quantities the utterance left unstated.
func withDefaults(op intent.Operation) intent.Operation {
	switch op.Kind {
	case intent.KindAdd:
		if op.Quantity <= 0 {
			op.Quantity = 1
		}
	case intent.KindRemove:
		if op.RemoveAll {
			op.Quantity = inventory.RemoveAll
		} else if op.Quantity <= 0 {
			op.Quantity = 1
		}
	}
	return op
}

// Describe renders a failed operation for the user.
func Describe(err error) string {
	var ie *inventory.Error
	if !errors.As(err, &ie) {
		return "Something went wrong. Nothing was changed."
	}
	switch ie.Code {
	case inventory.CodeNotFound:
		if ie.Box {
			name := canon.BoxName(ie.Name)
			if name == "" {
				name = ie.Name
			}
			return "I couldn't find box " + name + "."
		}
		if len(ie.Suggestions) > 0 {
			names := make([]string, len(ie.Suggestions))
			for i, s := range ie.Suggestions {
				names[i] = s.DisplayName
			}
			return "I couldn't find " + ie.Name + ". Closest matches are: " + strings.Join(names, ", ") + "."
		}
		return "I couldn't find " + ie.Name + "."
	case inventory.CodeConflict, inventory.CodeInvalid:
		return sentence(ie.Msg)
	case inventory.CodeTransport:
		return "I couldn't save that, so nothing was changed."
	}
	return sentence(ie.Msg)
}

// sentence capitalises s and ends it with a period.
func sentence(s string) string {
	if s == "" {
		return s
	}
	s = capitalize(s)
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
