// Package mock provides a test double for [store.RecordStore].
//
// RecordStore keeps real state in an embedded [store.MemStore] so services
// under test see consistent reads, records every call for assertion, and
// exposes per-method error fields to simulate transport failures. A non-nil
// error short-circuits the call before any state changes.
//
//	rs := mock.New()
//	rs.AddItemErr = errors.New("connection reset")
//
//	// inject rs into the system under test …
//
//	if got := rs.CallCount("AddItem"); got != 1 {
//	    t.Errorf("expected 1 AddItem call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/boxkeeper/pkg/store"
)

// Compile-time assertion that RecordStore satisfies store.RecordStore.
var _ store.RecordStore = (*RecordStore)(nil)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// RecordStore is a configurable test double for [store.RecordStore].
type RecordStore struct {
	mem *store.MemStore

	mu    sync.Mutex
	calls []Call

	ListBoxesErr     error
	ListItemsErr     error
	CreateBoxErr     error
	AddItemErr       error
	UpdateItemQtyErr error
	DeleteItemErr    error
	DeleteBoxErr     error
	MoveItemErr      error
}

// New returns an empty RecordStore.
func New() *RecordStore {
	return &RecordStore{mem: store.NewMemStore()}
}

// Calls returns a copy of all recorded method invocations.
func (m *RecordStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *RecordStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls and injected errors. Stored state is kept.
func (m *RecordStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.ListBoxesErr, m.ListItemsErr = nil, nil
	m.CreateBoxErr, m.AddItemErr, m.UpdateItemQtyErr = nil, nil, nil
	m.DeleteItemErr, m.DeleteBoxErr, m.MoveItemErr = nil, nil, nil
}

// Fail sets the injected error for method while holding the lock, so it is
// safe to call while other goroutines use the store. Unknown methods panic.
func (m *RecordStore) Fail(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch method {
	case "ListBoxes":
		m.ListBoxesErr = err
	case "ListItems":
		m.ListItemsErr = err
	case "CreateBox":
		m.CreateBoxErr = err
	case "AddItem":
		m.AddItemErr = err
	case "UpdateItemQty":
		m.UpdateItemQtyErr = err
	case "DeleteItem":
		m.DeleteItemErr = err
	case "DeleteBox":
		m.DeleteBoxErr = err
	case "MoveItem":
		m.MoveItemErr = err
	default:
		panic("mock: unknown method " + method)
	}
}

// record appends a call and returns the injected error for it.
func (m *RecordStore) record(method string, injected *error, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Args: args})
	return *injected
}

// ListBoxes implements [store.RecordStore].
func (m *RecordStore) ListBoxes(ctx context.Context) ([]store.Box, error) {
	if err := m.record("ListBoxes", &m.ListBoxesErr); err != nil {
		return nil, err
	}
	return m.mem.ListBoxes(ctx)
}

// ListItems implements [store.RecordStore].
func (m *RecordStore) ListItems(ctx context.Context) ([]store.Item, error) {
	if err := m.record("ListItems", &m.ListItemsErr); err != nil {
		return nil, err
	}
	return m.mem.ListItems(ctx)
}

// CreateBox implements [store.RecordStore].
func (m *RecordStore) CreateBox(ctx context.Context, b store.Box) error {
	if err := m.record("CreateBox", &m.CreateBoxErr, b); err != nil {
		return err
	}
	return m.mem.CreateBox(ctx, b)
}

// AddItem implements [store.RecordStore].
func (m *RecordStore) AddItem(ctx context.Context, it store.Item) error {
	if err := m.record("AddItem", &m.AddItemErr, it); err != nil {
		return err
	}
	return m.mem.AddItem(ctx, it)
}

// UpdateItemQty implements [store.RecordStore].
func (m *RecordStore) UpdateItemQty(ctx context.Context, id string, qty int) error {
	if err := m.record("UpdateItemQty", &m.UpdateItemQtyErr, id, qty); err != nil {
		return err
	}
	return m.mem.UpdateItemQty(ctx, id, qty)
}

// DeleteItem implements [store.RecordStore].
func (m *RecordStore) DeleteItem(ctx context.Context, id string) error {
	if err := m.record("DeleteItem", &m.DeleteItemErr, id); err != nil {
		return err
	}
	return m.mem.DeleteItem(ctx, id)
}

// DeleteBox implements [store.RecordStore].
func (m *RecordStore) DeleteBox(ctx context.Context, id string) error {
	if err := m.record("DeleteBox", &m.DeleteBoxErr, id); err != nil {
		return err
	}
	return m.mem.DeleteBox(ctx, id)
}

// MoveItem implements [store.RecordStore].
func (m *RecordStore) MoveItem(ctx context.Context, id, boxID string) error {
	if err := m.record("MoveItem", &m.MoveItemErr, id, boxID); err != nil {
		return err
	}
	return m.mem.MoveItem(ctx, id, boxID)
}
