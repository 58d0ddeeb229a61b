package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/boxkeeper/internal/semantic"
	"github.com/MrWong99/boxkeeper/pkg/store"
	"github.com/MrWong99/boxkeeper/pkg/store/sqlite"
)

func openTest(t *testing.T) (*sqlite.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "boxkeeper.db")
	s, err := sqlite.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestStore_Lifecycle(t *testing.T) {
	t.Parallel()

	s, _ := openTest(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	boxA := store.Box{ID: "b1", Name: "A", CreatedAt: t0}
	boxB := store.Box{ID: "b2", Name: "SHOES 1", CreatedAt: t0.Add(time.Second)}
	for _, b := range []store.Box{boxB, boxA} {
		if err := s.CreateBox(ctx, b); err != nil {
			t.Fatalf("CreateBox %s: %v", b.ID, err)
		}
	}
	if err := s.CreateBox(ctx, boxA); err == nil {
		t.Error("duplicate CreateBox should fail")
	}

	it := store.Item{ID: "i1", Name: "AA battery", CanonicalName: "aa battery", Quantity: 4, BoxID: "b1", CreatedAt: t0}
	if err := s.AddItem(ctx, it); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	boxes, err := s.ListBoxes(ctx)
	if err != nil {
		t.Fatalf("ListBoxes: %v", err)
	}
	if diff := cmp.Diff([]store.Box{boxA, boxB}, boxes); diff != "" {
		t.Errorf("boxes mismatch (-want +got):\n%s", diff)
	}

	if err := s.UpdateItemQty(ctx, "i1", 7); err != nil {
		t.Fatalf("UpdateItemQty: %v", err)
	}
	if err := s.UpdateItemQty(ctx, "i1", 0); err == nil {
		t.Error("UpdateItemQty(0) should fail")
	}
	if err := s.MoveItem(ctx, "i1", "b2"); err != nil {
		t.Fatalf("MoveItem: %v", err)
	}
	items, err := s.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	it.Quantity, it.BoxID = 7, "b2"
	if diff := cmp.Diff([]store.Item{it}, items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}

	if err := s.DeleteBox(ctx, "b2"); err == nil {
		t.Error("DeleteBox on a non-empty box should fail")
	}
	if err := s.DeleteItem(ctx, "i1"); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if err := s.DeleteBox(ctx, "b2"); err != nil {
		t.Fatalf("DeleteBox: %v", err)
	}
}

func TestStore_NotFound(t *testing.T) {
	t.Parallel()

	s, _ := openTest(t)
	ctx := context.Background()
	if err := s.CreateBox(ctx, store.Box{ID: "b1", Name: "A", CreatedAt: time.Unix(1, 0)}); err != nil {
		t.Fatalf("CreateBox: %v", err)
	}

	checks := map[string]error{
		"AddItem":       s.AddItem(ctx, store.Item{ID: "i1", Name: "x", CanonicalName: "x", Quantity: 1, BoxID: "nope"}),
		"UpdateItemQty": s.UpdateItemQty(ctx, "nope", 1),
		"DeleteItem":    s.DeleteItem(ctx, "nope"),
		"DeleteBox":     s.DeleteBox(ctx, "nope"),
		"MoveItem":      s.MoveItem(ctx, "nope", "b1"),
	}
	for name, err := range checks {
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("%s: err = %v, want ErrNotFound", name, err)
		}
	}
}

func TestStore_Reopen(t *testing.T) {
	t.Parallel()

	s, path := openTest(t)
	ctx := context.Background()
	if err := s.CreateBox(ctx, store.Box{ID: "b1", Name: "KITCHEN", CreatedAt: time.Unix(10, 0).UTC()}); err != nil {
		t.Fatalf("CreateBox: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	again, err := sqlite.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	boxes, err := again.ListBoxes(ctx)
	if err != nil {
		t.Fatalf("ListBoxes: %v", err)
	}
	if len(boxes) != 1 || boxes[0].Name != "KITCHEN" {
		t.Errorf("boxes after reopen = %+v", boxes)
	}
}

func TestVectorIndex(t *testing.T) {
	t.Parallel()

	s, _ := openTest(t)
	ctx := context.Background()
	idx := s.Index(semantic.DefaultNamespace)
	other := s.Index("other")

	vectors := map[string][]float32{
		"i1": {1, 0, 0},
		"i2": {0.9, 0.1, 0},
		"i3": {0, 1, 0},
	}
	for id, v := range vectors {
		if err := idx.Upsert(ctx, id, v, semantic.Metadata{Name: id, BoxName: "A"}); err != nil {
			t.Fatalf("Upsert %s: %v", id, err)
		}
	}
	if err := other.Upsert(ctx, "x", []float32{1, 0, 0}, semantic.Metadata{}); err != nil {
		t.Fatalf("Upsert other: %v", err)
	}

	hits, err := idx.Query(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 2 || hits[0].ID != "i1" || hits[1].ID != "i2" {
		t.Fatalf("hits = %+v, want i1 then i2", hits)
	}
	if hits[0].Score < 0.999 || hits[0].Metadata.BoxName != "A" {
		t.Errorf("top hit = %+v", hits[0])
	}

	// Upsert replaces the stored vector.
	if err := idx.Upsert(ctx, "i3", []float32{1, 0, 0}, semantic.Metadata{Name: "i3"}); err != nil {
		t.Fatalf("re-Upsert: %v", err)
	}
	if err := idx.Delete(ctx, "i1", "i2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	hits, _ = idx.Query(ctx, []float32{1, 0, 0}, 5)
	if len(hits) != 1 || hits[0].ID != "i3" || hits[0].Score < 0.999 {
		t.Errorf("after delete hits = %+v, want only i3", hits)
	}

	if err := idx.Truncate(ctx); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if hits, _ := idx.Query(ctx, []float32{1, 0, 0}, 5); len(hits) != 0 {
		t.Errorf("after truncate hits = %d, want 0", len(hits))
	}
	if hits, _ := other.Query(ctx, []float32{1, 0, 0}, 5); len(hits) != 1 {
		t.Errorf("other namespace hits = %d, want 1", len(hits))
	}
}
