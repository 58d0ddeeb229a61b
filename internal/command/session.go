package command

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/MrWong99/boxkeeper/internal/canon"
	"github.com/MrWong99/boxkeeper/internal/intent"
)

// Slot names a detail of an [intent.Operation] that can be asked for.
type Slot string

// Askable slots.
const (
	SlotItem    Slot = "item_name"
	SlotBoxName Slot = "box_name"
	SlotToBox   Slot = "to_box"
	SlotFromBox Slot = "from_box"
)

func (s Slot) get(op intent.Operation) string {
	switch s {
	case SlotItem:
		return strings.TrimSpace(op.ItemName)
	case SlotBoxName:
		return strings.TrimSpace(op.BoxName)
	case SlotToBox:
		return strings.TrimSpace(op.ToBox)
	case SlotFromBox:
		return strings.TrimSpace(op.FromBox)
	}
	return ""
}

func (s Slot) set(op intent.Operation, value string) intent.Operation {
	switch s {
	case SlotItem:
		op.ItemName = canon.DisplaySingular(value)
	case SlotBoxName:
		op.BoxName = value
	case SlotToBox:
		op.ToBox = value
	case SlotFromBox:
		op.FromBox = value
	}
	return op
}

// Prompt is a question waiting for the user's answer.
type Prompt struct {
	Slot     Slot   `json:"slot"`
	Question string `json:"question"`

	// Ops holds the operation missing Slot followed by the operations that
	// were queued behind it.
	Ops []intent.Operation `json:"ops"`
}

var (
	cancelWords  = regexp.MustCompile(`(?i)^(?:cancel|stop|never\s*mind|forget\s+it|no|nothing|skip)\b`)
	answerFiller = regexp.MustCompile(`(?i)^(?:(?:um+|uh+|well|ok(?:ay)?|it'?s|put\s+it|put\s+them|call\s+it|name\s+it|in(?:to)?|the)[\s,]+)+`)
	answerPunct  = regexp.MustCompile(`[\s.,!?;:]+$`)
)

func isCancel(answer string) bool {
	return cancelWords.MatchString(strings.TrimSpace(answer))
}

// cleanAnswer strips conversational filler from a slot answer: "put it in
// the kitchen." becomes "kitchen".
func cleanAnswer(answer string) string {
	s := strings.TrimSpace(answer)
	s = answerPunct.ReplaceAllString(s, "")
	s = answerFiller.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Session is a conversation with one user. It remembers the pending prompt
// so the next utterance can answer it. Safe for concurrent use, though
// turns are expected to arrive one at a time.
type Session struct {
	exec *Executor

	mu      sync.Mutex
	pending *Prompt
}

// NewSession starts a conversation backed by e.
func (e *Executor) NewSession() *Session {
	return &Session{exec: e}
}

// Handle runs one user turn. When a prompt is pending, text answers it;
// otherwise text is parsed as a new utterance.
func (s *Session) Handle(ctx context.Context, text string) Reply {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reply Reply
	if s.pending != nil {
		reply = s.exec.Fill(ctx, s.pending, text)
	} else {
		reply = s.exec.Run(ctx, text)
	}
	s.pending = reply.Prompt
	return reply
}

// Pending returns the unanswered prompt, or nil.
func (s *Session) Pending() *Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Reset drops any pending prompt.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}
