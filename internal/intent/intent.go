// Package intent turns a free-form inventory utterance into structured
// operations.
//
// Parsing runs in tiers. An ordered table of regular-expression rules is
// tried first and the first matching rule wins. When no rule matches, a
// single-operation request is sent to an [llm.Provider]. Utterances that look
// compound ("add tape and glue to box A, then find the scissors") are first
// sent to the model as a multi-operation extraction request, then split on
// their conjunctions and matched rule by rule, before falling back to the
// single-operation path.
//
// Every tier reports an explicit [Status]. Model failures and unparseable
// model output never surface as errors; they yield [NotFound] or [Malformed].
package intent

import "strings"

// Kind identifies the inventory operation an utterance asks for.
type Kind string

// Supported operation kinds.
const (
	KindAdd       Kind = "ADD"
	KindRemove    Kind = "REMOVE"
	KindFind      Kind = "FIND"
	KindMove      Kind = "MOVE"
	KindAddBox    Kind = "ADD_BOX"
	KindRemoveBox Kind = "REMOVE_BOX"
	KindClearBox  Kind = "CLEAR_BOX"
)

// kinds lists the recognised kinds for validating model output.
var kinds = map[Kind]bool{
	KindAdd: true, KindRemove: true, KindFind: true, KindMove: true,
	KindAddBox: true, KindRemoveBox: true, KindClearBox: true,
}

// ParseKind converts s to a [Kind], ignoring case and surrounding space.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	return k, kinds[k]
}

// Operation is one structured inventory request. It is transient: produced
// by the [Parser] and consumed immediately by the caller.
type Operation struct {
	Kind Kind `json:"kind"`

	// ItemName is the singular display form of the item ("AA battery").
	ItemName string `json:"item_name,omitempty"`

	// Quantity is the requested amount. Zero means the utterance did not
	// state one; ADD rules default it to 1.
	Quantity int `json:"quantity,omitempty"`

	// BoxName names the box for ADD_BOX, REMOVE_BOX and CLEAR_BOX, and the
	// box to list for a FIND with Everything set.
	BoxName string `json:"box_name,omitempty"`

	// ToBox is the destination for ADD and MOVE.
	ToBox string `json:"to_box,omitempty"`

	// FromBox is the source box for MOVE and REMOVE when stated.
	FromBox string `json:"from_box,omitempty"`

	// RemoveAll asks REMOVE to delete the item regardless of quantity.
	RemoveAll bool `json:"remove_all,omitempty"`

	// Everything targets every item in the scoped box: FIND lists the box,
	// MOVE moves all of FromBox into ToBox.
	Everything bool `json:"everything,omitempty"`
}

// Status is the outcome of a parse tier.
type Status int

const (
	// NotFound means no operation was recognised.
	NotFound Status = iota

	// Found means at least one operation was recognised.
	Found

	// Malformed means the model replied but its output could not be decoded
	// into valid operations.
	Malformed
)

// String returns the metric label for s.
func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case Malformed:
		return "malformed"
	default:
		return "not_found"
	}
}

// Tier labels reported in [Result.Tier].
const (
	TierRules = "rules"
	TierLLM   = "llm"
	TierMulti = "multi"
	TierSplit = "split"
)

// Result is the outcome of [Parser.Parse] or [Parser.ParseMulti].
type Result struct {
	Status Status
	Ops    []Operation

	// Tier names the tier that produced Ops.
	Tier string

	// Raw holds the model output when a model tier was consulted.
	Raw string

	// Err records a provider failure. It is informational only; a failed
	// model call is reported as NotFound.
	Err error
}

// OK reports whether r carries at least one operation.
func (r Result) OK() bool {
	return r.Status == Found && len(r.Ops) > 0
}

func found(tier string, ops ...Operation) Result {
	return Result{Status: Found, Ops: ops, Tier: tier}
}
