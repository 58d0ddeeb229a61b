package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
)

// Compile-time assertion that MemStore satisfies the RecordStore interface.
var _ RecordStore = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [RecordStore].
// Contents are lost when the process exits.
type MemStore struct {
	mu    sync.RWMutex
	boxes map[string]Box
	items map[string]Item
}

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		boxes: make(map[string]Box),
		items: make(map[string]Item),
	}
}

// ListBoxes implements [RecordStore].
func (s *MemStore) ListBoxes(context.Context) ([]Box, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Box, 0, len(s.boxes))
	for _, b := range s.boxes {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b Box) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// ListItems implements [RecordStore].
func (s *MemStore) ListItems(context.Context) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	slices.SortFunc(out, func(a, b Item) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// CreateBox implements [RecordStore].
func (s *MemStore) CreateBox(_ context.Context, b Box) error {
	if b.ID == "" {
		return fmt.Errorf("store: create box: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.boxes[b.ID]; ok {
		return fmt.Errorf("store: create box %s: duplicate id", b.ID)
	}
	s.boxes[b.ID] = b
	return nil
}

// AddItem implements [RecordStore].
func (s *MemStore) AddItem(_ context.Context, it Item) error {
	if it.ID == "" {
		return fmt.Errorf("store: add item: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.boxes[it.BoxID]; !ok {
		return fmt.Errorf("store: add item %s: box %s: %w", it.ID, it.BoxID, ErrNotFound)
	}
	if _, ok := s.items[it.ID]; ok {
		return fmt.Errorf("store: add item %s: duplicate id", it.ID)
	}
	s.items[it.ID] = it
	return nil
}

// UpdateItemQty implements [RecordStore].
func (s *MemStore) UpdateItemQty(_ context.Context, id string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("store: update item %s: quantity %d must be positive", id, qty)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return fmt.Errorf("store: update item %s: %w", id, ErrNotFound)
	}
	it.Quantity = qty
	s.items[id] = it
	return nil
}

// DeleteItem implements [RecordStore].
func (s *MemStore) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("store: delete item %s: %w", id, ErrNotFound)
	}
	delete(s.items, id)
	return nil
}

// DeleteBox implements [RecordStore].
func (s *MemStore) DeleteBox(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.boxes[id]; !ok {
		return fmt.Errorf("store: delete box %s: %w", id, ErrNotFound)
	}
	for _, it := range s.items {
		if it.BoxID == id {
			return fmt.Errorf("store: delete box %s: box still holds item %s", id, it.ID)
		}
	}
	delete(s.boxes, id)
	return nil
}

// MoveItem implements [RecordStore].
func (s *MemStore) MoveItem(_ context.Context, id, boxID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return fmt.Errorf("store: move item %s: %w", id, ErrNotFound)
	}
	if _, ok := s.boxes[boxID]; !ok {
		return fmt.Errorf("store: move item %s: box %s: %w", id, boxID, ErrNotFound)
	}
	it.BoxID = boxID
	s.items[id] = it
	return nil
}
