// Package store defines the record-store contract for boxkeeper: the
// authoritative, persistent home of boxes and items.
//
// The inventory service keeps an in-memory mirror of everything in the
// record store and writes through to it before mutating the mirror. The
// vector index is derived from the record store and can be rebuilt from it.
//
// Implementations live in the postgres and sqlite sub-packages, alongside
// [MemStore] for development and tests. Every implementation must be safe
// for concurrent use.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a box or item ID does not exist.
var ErrNotFound = errors.New("store: not found")

// RecordStore persists boxes and items. All methods return an error on
// transport failure; the caller treats any error as fatal for the current
// operation.
type RecordStore interface {
	// ListBoxes returns every box ordered by creation time.
	ListBoxes(ctx context.Context) ([]Box, error)

	// ListItems returns every item ordered by creation time.
	ListItems(ctx context.Context) ([]Item, error)

	// CreateBox inserts a new box. b.ID must be set.
	CreateBox(ctx context.Context, b Box) error

	// AddItem inserts a new item. it.ID must be set and it.BoxID must
	// reference an existing box.
	AddItem(ctx context.Context, it Item) error

	// UpdateItemQty sets the quantity of an existing item. qty must be > 0.
	UpdateItemQty(ctx context.Context, id string, qty int) error

	// DeleteItem removes an item. Returns [ErrNotFound] for unknown IDs.
	DeleteItem(ctx context.Context, id string) error

	// DeleteBox removes a box. The caller guarantees it is empty.
	DeleteBox(ctx context.Context, id string) error

	// MoveItem reassigns an item to another box.
	MoveItem(ctx context.Context, id, boxID string) error
}
