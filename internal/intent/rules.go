package intent

import (
	"regexp"
	"strings"

	"github.com/MrWong99/boxkeeper/internal/canon"
)

// rule pairs a compiled pattern with the extraction that turns its submatches
// into an [Operation]. Extract may decline a match by returning false, in
// which case the next rule is tried.
type rule struct {
	// Name is a human-readable label for logging and tests.
	Name string

	// Regex is matched against the trimmed utterance.
	Regex *regexp.Regexp

	// Extract builds the operation from the full submatch slice.
	Extract func(text string, m []string) (Operation, bool)
}

// Pattern fragments shared by the rule table.
const (
	itemPat  = `([\w'’/\- ]+?)`
	tailPat  = `\s*[.!?]*$`
	boxWord  = `(?:the\s+)?(?:box\s+)?`
	moveVerb = `(?:move|moving|relocate|relocating|transfer)`
	addVerb  = `(?:add(?:ing|ed)?|put|place|store)`
	newBox   = `(?:add|create|make)\s+(?:a\s+)?(?:new\s+)?box`
)

var (
	qtyPat = `(?:(` + canon.NumberWordPattern() + `)\s+)?`

	// boxPat captures a one-word box name with an optional number suffix
	// ("A", "shoes one", "bin-3").
	boxPat = `([\w-]+(?:\s+(?:` + canon.CountPattern() + `))?)`

	// placePat captures up to three words after "to"/"into" when the word
	// "box" is absent ("to the garage shelf").
	placePat = `([\w-]+(?:\s+[\w-]+){0,2})`

	question    = regexp.MustCompile(`(?i)^\s*(?:where|what|which|do\s+i|did\s+i|have\s+i|is\s+there|are\s+there)\b`)
	boxOf       = regexp.MustCompile(`(?i)\bbox(?:es)?\s+of\b`)
	destination = regexp.MustCompile(`(?i)\b(?:to|into|in)\b`)
)

// boxFillers are words that follow "box" without naming it.
var boxFillers = map[string]bool{
	"and": true, "then": true, "please": true, "named": true,
	"called": true, "call": true, "it": true, "of": true,
}

// everythingWords are item captures that mean "all items" rather than an item.
var everythingWords = map[string]bool{
	"everything": true, "all": true, "all items": true, "all the items": true,
	"all of the items": true, "items": true, "the items": true, "all of it": true,
}

func re(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + expr)
}

// rules is the ordered tier-1 table. The first rule whose pattern matches
// and whose Extract accepts wins, so order encodes precedence: MOVE before
// ADD (both use "to"/"into"), CLEAR_BOX before REMOVE_BOX, ADD with a
// destination before ADD without, and REMOVE-all before REMOVE with a
// quantity.
var rules = []rule{
	{
		Name:  "move",
		Regex: re(`\b` + moveVerb + `\s+` + itemPat + `\s+(?:from\s+` + boxWord + boxPat + `\s+)?(?:to|into|in)\s+` + boxWord + boxPat),
		Extract: func(_ string, m []string) (Operation, bool) {
			op := Operation{Kind: KindMove, FromBox: boxName(m[2]), ToBox: boxName(m[3])}
			if isEverything(m[1]) {
				op.Everything = true
				return op, op.FromBox != ""
			}
			op.ItemName = itemName(m[1])
			return op, op.ItemName != ""
		},
	},
	{
		Name:  "move-no-destination",
		Regex: re(`\b` + moveVerb + `\s+` + itemPat + tailPat),
		Extract: func(_ string, m []string) (Operation, bool) {
			if destination.MatchString(m[1]) {
				return Operation{}, false
			}
			name := itemName(m[1])
			return Operation{Kind: KindMove, ItemName: name}, name != ""
		},
	},
	{
		Name:  "add-box-named",
		Regex: re(`\b` + newBox + `\b.*?\b(?:named|called|call(?:\s+it)?)\s+` + boxPat),
		Extract: func(text string, m []string) (Operation, bool) {
			if boxOf.MatchString(text) {
				return Operation{}, false
			}
			return Operation{Kind: KindAddBox, BoxName: boxName(m[1])}, true
		},
	},
	{
		Name:  "add-box",
		Regex: re(`\b` + newBox + `\s+` + boxPat),
		Extract: func(text string, m []string) (Operation, bool) {
			first := strings.ToLower(strings.Fields(m[1])[0])
			if boxFillers[first] || boxOf.MatchString(text) {
				return Operation{}, false
			}
			return Operation{Kind: KindAddBox, BoxName: boxName(m[1])}, true
		},
	},
	{
		// Box name is slot-filled by the caller.
		Name:  "add-box-unnamed",
		Regex: re(`\b` + newBox + `\b`),
		Extract: func(text string, _ []string) (Operation, bool) {
			if boxOf.MatchString(text) {
				return Operation{}, false
			}
			return Operation{Kind: KindAddBox}, true
		},
	},
	{
		Name:  "clear-box",
		Regex: re(`\b(?:remove|removing|delete|clear|empty)\s+(?:(?:all\s+)?(?:of\s+)?(?:the\s+)?items?|everything|all)\s+(?:from|in|inside|out\s+of)\s+` + boxWord + boxPat),
		Extract: func(_ string, m []string) (Operation, bool) {
			return Operation{Kind: KindClearBox, BoxName: boxName(m[1])}, true
		},
	},
	{
		Name:  "clear-box-declarative",
		Regex: re(`(?:i\s*(?:am|'m|’m)\s+)?(?:going\s+to\s+)?(?:remove|removing|clear|delete)\W+(?:everything|all)\s+(?:from|in|inside)\s+` + boxWord + boxPat),
		Extract: func(_ string, m []string) (Operation, bool) {
			return Operation{Kind: KindClearBox, BoxName: boxName(m[1])}, true
		},
	},
	{
		Name:  "clear-box-plain",
		Regex: re(`\b(?:clear|empty)\s+(?:out\s+)?(?:the\s+)?box\s+` + boxPat),
		Extract: func(_ string, m []string) (Operation, bool) {
			return Operation{Kind: KindClearBox, BoxName: boxName(m[1])}, true
		},
	},
	{
		Name:  "remove-box",
		Regex: re(`\b(?:remove|delete)\s+(?:the\s+)?box\s+` + boxPat),
		Extract: func(_ string, m []string) (Operation, bool) {
			first := strings.ToLower(strings.Fields(m[1])[0])
			if boxFillers[first] {
				return Operation{}, false
			}
			return Operation{Kind: KindRemoveBox, BoxName: boxName(m[1])}, true
		},
	},
	{
		Name:  "add-to-box",
		Regex: re(`\b` + addVerb + `\s+` + qtyPat + itemPat + `\s+(?:to|into|in|inside)\s+(?:the\s+)?box\s+` + boxPat),
		Extract: func(text string, m []string) (Operation, bool) {
			return addOp(text, m[1], m[2], m[3])
		},
	},
	{
		Name:  "add-to-place",
		Regex: re(`\b` + addVerb + `\s+` + qtyPat + itemPat + `\s+(?:to|into|in|inside)\s+(?:the\s+)?` + placePat + tailPat),
		Extract: func(text string, m []string) (Operation, bool) {
			return addOp(text, m[1], m[2], m[3])
		},
	},
	{
		Name:  "add",
		Regex: re(`\b` + addVerb + `\s+` + qtyPat + itemPat + tailPat),
		Extract: func(text string, m []string) (Operation, bool) {
			return addOp(text, m[1], m[2], "")
		},
	},
	{
		Name:  "remove-all",
		Regex: re(`\b(?:remove|removing|removed|take|grab)\s+all(?:\s+of)?(?:\s+the)?\s+` + itemPat + `(?:\s+(?:from|out\s+of)\s+` + boxWord + boxPat + `)?` + tailPat),
		Extract: func(_ string, m []string) (Operation, bool) {
			if isEverything(m[1]) {
				return Operation{}, false
			}
			name := itemName(m[1])
			return Operation{Kind: KindRemove, ItemName: name, FromBox: boxName(m[2]), RemoveAll: true}, name != ""
		},
	},
	{
		Name:  "remove",
		Regex: re(`\b(?:remove|take|grab)\s+` + qtyPat + itemPat + `(?:\s+(?:from|out\s+of)\s+` + boxWord + boxPat + `)?` + tailPat),
		Extract: func(_ string, m []string) (Operation, bool) {
			return removeOp(m[1], m[2], m[3])
		},
	},
	{
		Name:  "remove-declarative",
		Regex: re(`(?:\bi\s*(?:am|'m|’m)\s+)?\b(?:remov(?:ing|ed)|took|taking|grabbed)\s+` + qtyPat + itemPat + `(?:\s+(?:from|out\s+of)\s+` + boxWord + boxPat + `)?` + tailPat),
		Extract: func(_ string, m []string) (Operation, bool) {
			return removeOp(m[1], m[2], m[3])
		},
	},
	{
		Name:  "list-box",
		Regex: re(`\b(?:what(?:'s|’s|\s+is)\s+(?:inside|in)|list|show(?:\s+me)?|contents\s+of)\s+(?:the\s+)?(?:contents\s+of\s+)?(?:everything\s+in\s+)?box\s+` + boxPat),
		Extract: func(_ string, m []string) (Operation, bool) {
			return Operation{Kind: KindFind, BoxName: boxName(m[1]), Everything: true}, true
		},
	},
	{
		Name:  "find",
		Regex: re(`\b(?:do\s+i\s+have|where(?:'s|’s|\s+is|\s+are|\s+did\s+i\s+put)|find|look(?:ing)?\s+for|locate)\s+(?:any\s+|my\s+)?` + itemPat + tailPat),
		Extract: func(_ string, m []string) (Operation, bool) {
			name := itemName(m[1])
			return Operation{Kind: KindFind, ItemName: name}, name != ""
		},
	},
}

// MatchRules runs only the deterministic tier over text.
func MatchRules(text string) Result {
	op, _, ok := matchRules(text)
	if !ok {
		return Result{Status: NotFound, Tier: TierRules}
	}
	return found(TierRules, op)
}

// matchRules returns the first accepted operation and the name of its rule.
func matchRules(text string) (Operation, string, bool) {
	t := strings.TrimSpace(text)
	if t == "" {
		return Operation{}, "", false
	}
	for _, r := range rules {
		m := r.Regex.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		if op, ok := r.Extract(t, m); ok {
			return op, r.Name, true
		}
	}
	return Operation{}, "", false
}

func addOp(text, qty, item, box string) (Operation, bool) {
	// "where did I put the scissors" is a question, not an ADD.
	if question.MatchString(text) {
		return Operation{}, false
	}
	name := itemName(item)
	if name == "" {
		return Operation{}, false
	}
	n := 1
	if qty != "" {
		n = canon.ParseQty(qty)
	}
	return Operation{Kind: KindAdd, ItemName: name, Quantity: n, ToBox: boxName(box)}, true
}

func removeOp(qty, item, box string) (Operation, bool) {
	if isEverything(item) {
		return Operation{}, false
	}
	name := itemName(item)
	if name == "" {
		return Operation{}, false
	}
	op := Operation{Kind: KindRemove, ItemName: name, FromBox: boxName(box)}
	if qty != "" {
		op.Quantity = canon.ParseQty(qty)
	}
	return op, true
}

// itemName reduces a captured item phrase to its singular display form.
func itemName(s string) string {
	return canon.DisplaySingular(s)
}

// boxName canonicalises a captured box phrase; empty stays empty.
func boxName(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return canon.BoxName(s)
}

func isEverything(s string) bool {
	return everythingWords[canon.Canonicalize(s)]
}
