package intent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/MrWong99/boxkeeper/internal/canon"
)

// singlePrompt asks the model for exactly one operation.
const singlePrompt = `You extract inventory commands for a labeled-box storage app.

Respond with ONLY a JSON object (no markdown, no prose) with these keys:
{
  "intent": one of "ADD", "REMOVE", "FIND", "MOVE", "ADD_BOX", "REMOVE_BOX", "CLEAR_BOX", or null if the text is not an inventory command,
  "object_name": string or null,
  "quantity": integer or null,
  "box_name": string or null,
  "to_box": string or null,
  "from_box": string or null,
  "remove_all": boolean
}

Rules:
- For ADD_BOX and REMOVE_BOX put the box in box_name. For ADD and MOVE put the destination in to_box.
- When a box is named by a letter, give the uppercase letter ("bee" is "B", "see" is "C"), not the spoken word.
- Never use filler words such as "and", "then" or "please" as a box name.
- object_name is the singular core item name: drop quantity phrases such as "sticks of" or "bottles of" ("coat hangers" becomes "coat hanger").
- Set remove_all to true when the user removes all of an item.
- MOVE requires object_name and to_box. Omit from_box unless it is stated. Do not invent boxes.`

// multiPrompt asks the model for an ordered list of operations.
const multiPrompt = `You extract inventory commands for a labeled-box storage app. The text may contain several commands.

Respond with ONLY a JSON array (no markdown, no prose). Each element is an object with keys:
  "intent": one of "ADD", "REMOVE", "FIND", "MOVE", "ADD_BOX", "REMOVE_BOX", "CLEAR_BOX",
  "object_name": string or null,
  "quantity": integer or null,
  "to_box": destination box for ADD, MOVE and CLEAR_BOX, or null,
  "from_box": source box for MOVE, or null,
  "box_name": box for ADD_BOX and REMOVE_BOX only, or null,
  "remove_all": boolean (true when removing all of a named item),
  "everything": boolean (true when the command targets every item in a box).

Rules:
- Keep the commands in the order they were spoken.
- Declarative and imperative forms are the same intent ("I'm adding" is ADD).
- In "add A and B and C into box X" every one of A, B and C gets to_box "X". In a later "... and D into box Y" only D gets "Y".
- Items without a stated destination get to_box null.
- Map spoken letters to the uppercase letter (bee is B, see/cee/sea is C). Keep full names otherwise ("escape room 1").
- For "remove all <item>" set remove_all true and quantity null.
- For "remove everything from box A and box B" produce one element per box with everything true.
- For FIND with "everything" and a box, list the box: everything true and to_box set.`

// wireOp is the JSON element the model is asked to emit.
type wireOp struct {
	Intent     *string `json:"intent"`
	ObjectName *string `json:"object_name"`
	Quantity   flexInt `json:"quantity"`
	BoxName    *string `json:"box_name"`
	ToBox      *string `json:"to_box"`
	FromBox    *string `json:"from_box"`
	RemoveAll  bool    `json:"remove_all"`
	Everything bool    `json:"everything"`
}

// flexInt accepts a JSON number, a numeric or number-word string, or null.
type flexInt int

// UnmarshalJSON implements [json.Unmarshaler].
func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexInt(max(int(n), 0))
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("intent: quantity %s: %w", s, err)
	}
	str = strings.TrimSpace(str)
	if str == "" {
		*f = 0
		return nil
	}
	if n, err := strconv.Atoi(str); err == nil {
		*f = flexInt(max(n, 0))
		return nil
	}
	if n, ok := canon.NumberWord(str); ok {
		*f = flexInt(n)
		return nil
	}
	return fmt.Errorf("intent: quantity %q is not a number", str)
}

var (
	allOrEverything = regexp.MustCompile(`(?i)\ball\b|\beverything\b`)
	removeAllPhrase = regexp.MustCompile(`(?i)\bremove\s+(?:all|everything)\b`)
)

// stripFences extracts the JSON payload from a model reply. A fenced block
// (```json ... ```) anywhere in the reply wins; otherwise surrounding prose
// is cut down to the span from the first '{' or '[' to the last '}' or ']'.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if _, after, ok := strings.Cut(s, "```"); ok {
		after = strings.TrimLeftFunc(after, unicode.IsLetter)
		if body, _, closed := strings.Cut(after, "```"); closed {
			after = body
		}
		s = strings.TrimSpace(after)
	}
	start := strings.IndexAny(s, "{[")
	end := strings.LastIndexAny(s, "}]")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// decodeSingle parses a tier-2 reply. A null intent is NotFound; anything
// that does not decode into a valid operation is Malformed.
func decodeSingle(text, content string) (Operation, Status) {
	var w wireOp
	if err := json.Unmarshal([]byte(stripFences(content)), &w); err != nil {
		return Operation{}, Malformed
	}
	if w.Intent == nil || strings.TrimSpace(*w.Intent) == "" {
		return Operation{}, NotFound
	}
	op, ok := w.operation()
	if !ok {
		return Operation{}, Malformed
	}
	if op.Kind == KindRemove && allOrEverything.MatchString(text) {
		op.RemoveAll = true
	}
	return promoteClear(op), Found
}

// decodeMulti parses a tier-3 reply. Elements that do not decode are logged
// and skipped. A bare object is accepted as a one-element list.
func decodeMulti(text, content string) ([]Operation, Status) {
	raw := []byte(stripFences(content))

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		var obj map[string]json.RawMessage
		if json.Unmarshal(raw, &obj) != nil {
			return nil, Malformed
		}
		elems = []json.RawMessage{raw}
	}

	ops := make([]Operation, 0, len(elems))
	skipped := 0
	for _, el := range elems {
		var w wireOp
		if err := json.Unmarshal(el, &w); err != nil {
			slog.Warn("intent: skipping undecodable operation", "element", string(el), "err", err)
			skipped++
			continue
		}
		op, ok := w.operation()
		if !ok {
			slog.Warn("intent: skipping invalid operation", "element", string(el))
			skipped++
			continue
		}
		ops = append(ops, op)
	}

	if removeAllPhrase.MatchString(text) {
		for i := range ops {
			if ops[i].Kind == KindRemove && ops[i].Quantity == 0 {
				ops[i].RemoveAll = true
				ops[i].Everything = ops[i].ItemName == ""
			}
		}
	}
	for i := range ops {
		ops[i] = promoteClear(ops[i])
	}
	propagateDestination(ops)

	switch {
	case len(ops) > 0:
		return ops, Found
	case skipped > 0:
		return nil, Malformed
	default:
		return nil, NotFound
	}
}

// operation validates w and converts it to an [Operation].
func (w wireOp) operation() (Operation, bool) {
	kind, ok := ParseKind(str(w.Intent))
	if !ok {
		return Operation{}, false
	}
	op := Operation{
		Kind:       kind,
		Quantity:   int(w.Quantity),
		RemoveAll:  w.RemoveAll,
		Everything: w.Everything,
	}
	if name := str(w.ObjectName); name != "" {
		op.ItemName = itemName(name)
	}
	box, to, from := boxName(str(w.BoxName)), boxName(str(w.ToBox)), boxName(str(w.FromBox))

	switch kind {
	case KindAddBox, KindRemoveBox:
		op.BoxName = firstNonEmpty(box, to)
		return op, kind == KindAddBox || op.BoxName != ""
	case KindClearBox:
		op.BoxName = firstNonEmpty(to, box)
		return op, op.BoxName != ""
	case KindAdd:
		op.ToBox = firstNonEmpty(to, box)
		if op.Quantity == 0 {
			op.Quantity = 1
		}
	case KindMove:
		op.ToBox = firstNonEmpty(to, box)
		op.FromBox = from
		if op.Everything {
			return op, op.FromBox != ""
		}
	case KindRemove:
		op.FromBox = firstNonEmpty(from, box, to)
		if op.Everything && op.ItemName == "" {
			return op, op.FromBox != ""
		}
	case KindFind:
		if op.Everything && op.ItemName == "" {
			op.BoxName = firstNonEmpty(to, box)
			return op, op.BoxName != ""
		}
	}
	return op, op.ItemName != ""
}

// promoteClear turns "remove everything from box X" into CLEAR_BOX.
func promoteClear(op Operation) Operation {
	if op.Kind == KindRemove && op.Everything && op.ItemName == "" && op.FromBox != "" {
		return Operation{Kind: KindClearBox, BoxName: op.FromBox}
	}
	return op
}

// propagateDestination gives ADD operations without a destination the
// destination of the other ADDs when exactly one distinct box was named.
func propagateDestination(ops []Operation) {
	only := ""
	for _, op := range ops {
		if op.Kind != KindAdd || op.ToBox == "" {
			continue
		}
		if only != "" && only != op.ToBox {
			return
		}
		only = op.ToBox
	}
	if only == "" {
		return
	}
	for i := range ops {
		if ops[i].Kind == KindAdd && ops[i].ToBox == "" {
			ops[i].ToBox = only
		}
	}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
