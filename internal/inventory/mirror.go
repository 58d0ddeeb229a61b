package inventory

import (
	"cmp"
	"slices"

	"github.com/MrWong99/boxkeeper/pkg/store"
)

// mirror is the service's owned, in-memory copy of the record store. It is
// not synchronised; the owning [Service] serialises access.
type mirror struct {
	boxes map[string]store.Box
	items map[string]store.Item
}

func newMirror() *mirror {
	return &mirror{
		boxes: make(map[string]store.Box),
		items: make(map[string]store.Item),
	}
}

// load replaces the mirror contents. Items whose box is unknown are dropped
// and returned.
func (m *mirror) load(boxes []store.Box, items []store.Item) (orphans []store.Item) {
	m.boxes = make(map[string]store.Box, len(boxes))
	m.items = make(map[string]store.Item, len(items))
	for _, b := range boxes {
		m.boxes[b.ID] = b
	}
	for _, it := range items {
		if _, ok := m.boxes[it.BoxID]; !ok || it.Quantity <= 0 {
			orphans = append(orphans, it)
			continue
		}
		m.items[it.ID] = it
	}
	return orphans
}

func (m *mirror) boxList() []store.Box {
	out := make([]store.Box, 0, len(m.boxes))
	for _, b := range m.boxes {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b store.Box) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (m *mirror) itemList() []store.Item {
	out := make([]store.Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	sortItems(out)
	return out
}

// itemsIn returns the items in boxID in creation order.
func (m *mirror) itemsIn(boxID string) []store.Item {
	var out []store.Item
	for _, it := range m.items {
		if it.BoxID == boxID {
			out = append(out, it)
		}
	}
	sortItems(out)
	return out
}

func (m *mirror) boxName(id string) string {
	return m.boxes[id].Name
}

func sortItems(items []store.Item) {
	slices.SortFunc(items, func(a, b store.Item) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
}
