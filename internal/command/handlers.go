package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/boxkeeper/internal/canon"
	"github.com/MrWong99/boxkeeper/internal/intent"
	"github.com/MrWong99/boxkeeper/internal/inventory"
	"github.com/MrWong99/boxkeeper/pkg/store"
)

// Handler executes one kind of operation.
type Handler struct {
	// Name is a label for logging.
	Name string

	// Match reports whether this handler runs op.
	Match func(op intent.Operation) bool

	// Slots lists the details op must carry, checked in order.
	Slots []Requirement

	// Action runs op and returns the user-facing reply.
	Action func(ctx context.Context, inv *inventory.Service, op intent.Operation) (string, error)
}

// Requirement is a detail an operation needs before it can run.
type Requirement struct {
	Slot Slot

	// Question asks the user for the detail.
	Question string
}

func (h Handler) missing(op intent.Operation) (Slot, string, bool) {
	for _, r := range h.Slots {
		if r.Slot.get(op) != "" {
			continue
		}
		return r.Slot, r.Question, true
	}
	return "", "", false
}

func kind(k intent.Kind) func(intent.Operation) bool {
	return func(op intent.Operation) bool { return op.Kind == k }
}

// defaultHandlers returns the built-in handler table. Order matters: the
// whole-box variants of FIND and MOVE come before the single-item ones.
func defaultHandlers() []Handler {
	return []Handler{
		{
			Name:   "add",
			Match:  kind(intent.KindAdd),
			Slots:  []Requirement{{SlotItem, "What should I add?"}},
			Action: addItem,
		},
		{
			Name:   "remove",
			Match:  kind(intent.KindRemove),
			Slots:  []Requirement{{SlotItem, "What should I remove?"}},
			Action: removeItem,
		},
		{
			Name:   "list-box",
			Match:  func(op intent.Operation) bool { return op.Kind == intent.KindFind && op.Everything },
			Slots:  []Requirement{{SlotBoxName, "Which box should I list?"}},
			Action: listBox,
		},
		{
			Name:   "find",
			Match:  kind(intent.KindFind),
			Slots:  []Requirement{{SlotItem, "What should I look for?"}},
			Action: findItem,
		},
		{
			Name:  "move-all",
			Match: func(op intent.Operation) bool { return op.Kind == intent.KindMove && op.Everything },
			Slots: []Requirement{
				{SlotFromBox, "Which box should I empty?"},
				{SlotToBox, "Which box should I put everything in?"},
			},
			Action: moveAll,
		},
		{
			Name:  "move",
			Match: kind(intent.KindMove),
			Slots: []Requirement{
				{SlotItem, "What should I move?"},
				{SlotToBox, "Which box should I put it in?"},
			},
			Action: moveItem,
		},
		{
			Name:   "add-box",
			Match:  kind(intent.KindAddBox),
			Slots:  []Requirement{{SlotBoxName, "What should I name the new box?"}},
			Action: addBox,
		},
		{
			Name:   "remove-box",
			Match:  kind(intent.KindRemoveBox),
			Slots:  []Requirement{{SlotBoxName, "Which box should I remove?"}},
			Action: removeBox,
		},
		{
			Name:   "clear-box",
			Match:  kind(intent.KindClearBox),
			Slots:  []Requirement{{SlotBoxName, "Which box should I clear?"}},
			Action: clearBox,
		},
	}
}

func addItem(ctx context.Context, inv *inventory.Service, op intent.Operation) (string, error) {
	res, err := inv.AddItem(ctx, op.ItemName, op.Quantity, op.ToBox)
	if err != nil {
		return "", err
	}
	added := canon.Count(op.Quantity, res.Item.Name)
	switch {
	case res.Merged:
		return fmt.Sprintf("Added %s to box %s. You now have %d.", added, res.Box.Name, res.Item.Quantity), nil
	case res.CreatedBox:
		return fmt.Sprintf("Created box %s and added %s.", res.Box.Name, added), nil
	}
	return fmt.Sprintf("Added %s to box %s.", added, res.Box.Name), nil
}

func removeItem(ctx context.Context, inv *inventory.Service, op intent.Operation) (string, error) {
	res, err := inv.RemoveItem(ctx, op.ItemName, op.Quantity, op.FromBox)
	if err != nil {
		return "", err
	}
	removed := canon.Count(res.Removed, res.Item.Name)
	if res.Deleted {
		return fmt.Sprintf("Removed %s from box %s. None left.", removed, res.Box.Name), nil
	}
	return fmt.Sprintf("Removed %s from box %s. %d left.", removed, res.Box.Name, res.Item.Quantity), nil
}

func findItem(ctx context.Context, inv *inventory.Service, op intent.Operation) (string, error) {
	found, err := inv.FindItem(ctx, op.ItemName)
	if err != nil {
		return "", err
	}
	if len(found) == 1 {
		f := found[0]
		return fmt.Sprintf("%s: %d in box %s.", capitalize(f.Item.Name), f.Item.Quantity, f.Box.Name), nil
	}
	parts := make([]string, len(found))
	for i, f := range found {
		parts[i] = fmt.Sprintf("%s in box %s", canon.Count(f.Item.Quantity, f.Item.Name), f.Box.Name)
	}
	return "I found " + strings.Join(parts, ", ") + ".", nil
}

func listBox(_ context.Context, inv *inventory.Service, op intent.Operation) (string, error) {
	box, items, err := inv.Contents(op.BoxName)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return fmt.Sprintf("Box %s is empty.", box.Name), nil
	}
	return fmt.Sprintf("Box %s holds %s.", box.Name, itemList(items)), nil
}

func moveItem(ctx context.Context, inv *inventory.Service, op intent.Operation) (string, error) {
	res, err := inv.MoveItem(ctx, op.ItemName, op.ToBox, op.FromBox)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Moved %s from box %s to box %s.", res.Item.Name, res.From.Name, res.To.Name), nil
}

func moveAll(ctx context.Context, inv *inventory.Service, op intent.Operation) (string, error) {
	moved, err := inv.MoveAllItems(ctx, op.FromBox, op.ToBox)
	if err != nil {
		return "", err
	}
	from, _ := inv.FindBoxByName(op.FromBox)
	to, _ := inv.FindBoxByName(op.ToBox)
	if len(moved) == 0 {
		return fmt.Sprintf("Box %s was already empty.", from.Name), nil
	}
	return fmt.Sprintf("Moved %s from box %s to box %s.", canon.Count(len(moved), "item"), from.Name, to.Name), nil
}

func addBox(ctx context.Context, inv *inventory.Service, op intent.Operation) (string, error) {
	box, created, err := inv.AddBox(ctx, op.BoxName)
	if err != nil {
		return "", err
	}
	if !created {
		return fmt.Sprintf("Box %s already exists.", box.Name), nil
	}
	return fmt.Sprintf("Box %s is ready.", box.Name), nil
}

func removeBox(ctx context.Context, inv *inventory.Service, op intent.Operation) (string, error) {
	box, err := inv.RemoveBox(ctx, op.BoxName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Removed box %s.", box.Name), nil
}

func clearBox(ctx context.Context, inv *inventory.Service, op intent.Operation) (string, error) {
	res, err := inv.ClearBox(ctx, op.BoxName)
	if err != nil {
		return "", err
	}
	if len(res.Removed) == 0 {
		return fmt.Sprintf("Box %s was already empty.", res.Box.Name), nil
	}
	return fmt.Sprintf("Cleared box %s. Removed %s.", res.Box.Name, itemList(res.Removed)), nil
}

func itemList(items []store.Item) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = canon.Count(it.Quantity, it.Name)
	}
	return strings.Join(parts, ", ")
}
