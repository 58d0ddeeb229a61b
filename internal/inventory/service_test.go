package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/boxkeeper/internal/inventory"
	"github.com/MrWong99/boxkeeper/internal/phonetic"
	"github.com/MrWong99/boxkeeper/internal/semantic"
	embmock "github.com/MrWong99/boxkeeper/pkg/provider/embeddings/mock"
	"github.com/MrWong99/boxkeeper/pkg/store"
	storemock "github.com/MrWong99/boxkeeper/pkg/store/mock"
)

var errBoom = errors.New("connection reset")

// vectors keyed by embedding text. "aa battery" scores ~0.95 against
// "battery"; "car battery" scores 0.6; unknown texts score 0.5 against
// every axis.
func testVectors() map[string][]float32 {
	return map[string][]float32{
		"battery":     {1, 0, 0, 0},
		"aa battery":  {0.95, 0, 0.31, 0},
		"car battery": {0.6, 0, 0.8, 0},
		"charger":     {0, 1, 0, 0},
		"scissor":     {0, 0, 0, 1},
	}
}

// clock returns strictly increasing times so creation order is stable.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type fixture struct {
	svc   *inventory.Service
	rs    *storemock.RecordStore
	emb   *embmock.Provider
	idx   *semantic.MemIndex
	clock *clock
}

func newFixture(t *testing.T, opts ...inventory.Option) *fixture {
	t.Helper()
	f := &fixture{
		rs: storemock.New(),
		emb: &embmock.Provider{
			Vectors:         testVectors(),
			EmbedResult:     []float32{0.5, 0.5, 0.5, 0.5},
			DimensionsValue: 4,
		},
		idx:   semantic.NewMemIndex(),
		clock: &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	res := semantic.New(f.emb, f.idx)
	opts = append([]inventory.Option{inventory.WithClock(f.clock.now)}, opts...)
	f.svc = inventory.New(f.rs, res, opts...)
	return f
}

// seed writes boxes and items straight to the record store, then loads the
// mirror and builds the index from it.
func (f *fixture) seed(t *testing.T, boxes []string, items map[string][]store.Item) {
	t.Helper()
	ctx := context.Background()
	ids := map[string]string{}
	for i, name := range boxes {
		b := store.Box{ID: "box-" + name, Name: name, CreatedAt: f.clock.now()}
		ids[name] = b.ID
		if err := f.rs.CreateBox(ctx, b); err != nil {
			t.Fatalf("seed box %d: %v", i, err)
		}
	}
	for box, its := range items {
		for _, it := range its {
			it.BoxID = ids[box]
			it.CreatedAt = f.clock.now()
			if err := f.rs.AddItem(ctx, it); err != nil {
				t.Fatalf("seed item %s: %v", it.ID, err)
			}
		}
	}
	if err := f.svc.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if _, err := f.svc.Reindex(ctx); err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	f.rs.Reset()
}

func itemSummary(views []inventory.ItemView) map[string]int {
	out := map[string]int{}
	for _, v := range views {
		out[v.BoxName+"/"+v.Item.Name] = v.Item.Quantity
	}
	return out
}

func wantCode(t *testing.T, err error, code inventory.Code) *inventory.Error {
	t.Helper()
	var e *inventory.Error
	if !errors.As(err, &e) {
		t.Fatalf("err = %v, want *inventory.Error with code %s", err, code)
	}
	if e.Code != code {
		t.Fatalf("code = %s (%v), want %s", e.Code, err, code)
	}
	return e
}

// ── AddItem ──

func TestAddItem_MergesAboveThreshold(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddItem(ctx, "battery", 2, "A"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	res, err := f.svc.AddItem(ctx, "batteries", 3, "A")
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if !res.Merged {
		t.Fatal("expected merge")
	}
	if res.Item.Quantity != 5 || res.Box.Name != "A" {
		t.Errorf("merged item = %+v in %q, want quantity 5 in A", res.Item, res.Box.Name)
	}
	if res.Score < f.svc.Threshold() {
		t.Errorf("merge score %.3f below threshold %.2f", res.Score, f.svc.Threshold())
	}
	if diff := cmp.Diff(map[string]int{"A/battery": 5}, itemSummary(f.svc.ListItems())); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestAddItem_MergesAcrossBoxes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddItem(ctx, "battery", 2, "A"); err != nil {
		t.Fatal(err)
	}
	res, err := f.svc.AddItem(ctx, "AA batteries", 4, "B")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Merged || res.Box.Name != "A" || res.Item.Quantity != 6 {
		t.Errorf("result = %+v, want merge into A with 6", res)
	}
	if _, ok := f.svc.FindBoxByName("B"); ok {
		t.Error("box B was created for a merged add")
	}
}

func TestAddItem_DistinctBelowThreshold(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddItem(ctx, "battery", 2, "A"); err != nil {
		t.Fatal(err)
	}
	res, err := f.svc.AddItem(ctx, "car batteries", 1, "A")
	if err != nil {
		t.Fatal(err)
	}
	if res.Merged {
		t.Fatalf("unexpected merge with score %.3f", res.Score)
	}
	want := map[string]int{"A/battery": 2, "A/car battery": 1}
	if diff := cmp.Diff(want, itemSummary(f.svc.ListItems())); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if f.idx.Len() != 2 {
		t.Errorf("index len = %d, want 2", f.idx.Len())
	}
}

func TestAddItem_Boxes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		box         string
		wantBox     string
		wantCreated bool
	}{
		{name: "default box", box: "", wantBox: "A", wantCreated: true},
		{name: "named box created uppercase", box: "kitchen", wantBox: "KITCHEN", wantCreated: true},
		{name: "spoken letter", box: "box bee", wantBox: "B", wantCreated: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			res, err := f.svc.AddItem(context.Background(), "the scissors", 1, tt.box)
			if err != nil {
				t.Fatalf("AddItem: %v", err)
			}
			if res.Box.Name != tt.wantBox || res.CreatedBox != tt.wantCreated {
				t.Errorf("box = %q created=%v, want %q created=%v", res.Box.Name, res.CreatedBox, tt.wantBox, tt.wantCreated)
			}
			if res.Item.Name != "scissor" || res.Item.CanonicalName != "scissor" {
				t.Errorf("item = %+v, want scissor", res.Item)
			}
		})
	}
}

func TestAddItem_KeepsAcronymDisplayName(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res, err := f.svc.AddItem(context.Background(), "AA batteries", 4, "A")
	if err != nil {
		t.Fatal(err)
	}
	if res.Item.Name != "AA battery" || res.Item.CanonicalName != "aa battery" {
		t.Errorf("item = %+v", res.Item)
	}
}

func TestAddItem_Invalid(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "  ", 1, "A")
	wantCode(t, err, inventory.CodeInvalid)
	_, err = f.svc.AddItem(ctx, "battery", 0, "A")
	wantCode(t, err, inventory.CodeInvalid)
	if f.rs.CallCount("AddItem") != 0 {
		t.Error("record store written for invalid input")
	}
}

func TestAddItem_TransportFailureLeavesMirror(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.rs.AddItemErr = errBoom
	_, err := f.svc.AddItem(ctx, "charger", 1, "KITCHEN")
	wantCode(t, err, inventory.CodeTransport)
	if !errors.Is(err, errBoom) {
		t.Errorf("err = %v, want wrapped cause", err)
	}

	if got := f.svc.ListBoxes(); len(got) != 0 {
		t.Errorf("mirror has boxes %+v after failed add", got)
	}
	if f.rs.CallCount("CreateBox") != 1 || f.rs.CallCount("DeleteBox") != 1 {
		t.Errorf("calls = %+v, want box created then rolled back", f.rs.Calls())
	}
	if boxes, _ := f.rs.ListBoxes(ctx); len(boxes) != 0 {
		t.Errorf("record store kept box %+v", boxes)
	}
	if f.idx.Len() != 0 {
		t.Errorf("index len = %d, want 0", f.idx.Len())
	}
}

func TestAddItem_MergeTransportFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddItem(ctx, "battery", 2, "A"); err != nil {
		t.Fatal(err)
	}
	f.rs.UpdateItemQtyErr = errBoom
	_, err := f.svc.AddItem(ctx, "batteries", 3, "A")
	wantCode(t, err, inventory.CodeTransport)
	if diff := cmp.Diff(map[string]int{"A/battery": 2}, itemSummary(f.svc.ListItems())); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestAddItem_IndexFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddItem(ctx, "battery", 1, "A"); err != nil {
		t.Fatal(err)
	}
	// Embedding is down: the add degrades to exact-name merging and the
	// new item is stored without a vector.
	f.emb.EmbedErr = errBoom
	res, err := f.svc.AddItem(ctx, "charger", 1, "A")
	if err != nil {
		t.Fatalf("AddItem with embedder down: %v", err)
	}
	if res.Merged {
		t.Error("unexpected merge")
	}
	res, err = f.svc.AddItem(ctx, "batteries", 2, "A")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Merged || res.Item.Quantity != 3 {
		t.Errorf("exact-name merge = %+v, want merged quantity 3", res)
	}
	if f.idx.Len() != 1 {
		t.Errorf("index len = %d, want 1", f.idx.Len())
	}
}

func TestAddItem_SequentialCompound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddItem(ctx, "batteries", 2, "A"); err != nil {
		t.Fatal(err)
	}
	res, err := f.svc.AddItem(ctx, "charger", 1, "A")
	if err != nil {
		t.Fatal(err)
	}
	if res.CreatedBox {
		t.Error("second add created box A again")
	}
	box, items, err := f.svc.Contents("A")
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]int{}
	for _, it := range items {
		got[it.Name] = it.Quantity
	}
	if diff := cmp.Diff(map[string]int{"battery": 2, "charger": 1}, got); diff != "" {
		t.Errorf("box %s contents mismatch (-want +got):\n%s", box.Name, diff)
	}
}

func TestAddItem_ConcurrentCallsSerialise(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.AddItem(ctx, "battery", 1, "A"); err != nil {
				t.Errorf("AddItem: %v", err)
			}
		}()
	}
	wg.Wait()

	if diff := cmp.Diff(map[string]int{"A/battery": n}, itemSummary(f.svc.ListItems())); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

// ── RemoveItem ──

func TestRemoveItem(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		stored      int
		remove      int
		wantDeleted bool
		wantLeft    int
		wantRemoved int
	}{
		{name: "decrement", stored: 5, remove: 2, wantLeft: 3, wantRemoved: 2},
		{name: "exact quantity deletes", stored: 2, remove: 2, wantDeleted: true, wantRemoved: 2},
		{name: "more than stored deletes", stored: 2, remove: 7, wantDeleted: true, wantRemoved: 2},
		{name: "sentinel deletes small", stored: 1, remove: inventory.RemoveAll, wantDeleted: true, wantRemoved: 1},
		{name: "sentinel deletes large", stored: 12000, remove: inventory.RemoveAll, wantDeleted: true, wantRemoved: 12000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.seed(t, []string{"A"}, map[string][]store.Item{
				"A": {{ID: "bat", Name: "battery", CanonicalName: "battery", Quantity: tt.stored}},
			})

			res, err := f.svc.RemoveItem(context.Background(), "the batteries", tt.remove, "")
			if err != nil {
				t.Fatalf("RemoveItem: %v", err)
			}
			if res.Deleted != tt.wantDeleted || res.Item.Quantity != tt.wantLeft || res.Removed != tt.wantRemoved {
				t.Errorf("result = %+v, want deleted=%v left=%d removed=%d", res, tt.wantDeleted, tt.wantLeft, tt.wantRemoved)
			}
			items := f.svc.ListItems()
			if tt.wantDeleted {
				if len(items) != 0 || f.idx.Len() != 0 {
					t.Errorf("item still present: mirror %+v, index len %d", items, f.idx.Len())
				}
				if f.rs.CallCount("DeleteItem") != 1 {
					t.Errorf("DeleteItem calls = %d, want 1", f.rs.CallCount("DeleteItem"))
				}
				return
			}
			if len(items) != 1 || items[0].Item.Quantity != tt.wantLeft {
				t.Errorf("mirror = %+v, want quantity %d", items, tt.wantLeft)
			}
		})
	}
}

func TestRemoveItem_NotFoundCarriesSuggestions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"A"}, map[string][]store.Item{
		"A": {{ID: "bat", Name: "battery", CanonicalName: "battery", Quantity: 2}},
	})

	_, err := f.svc.RemoveItem(context.Background(), "scissors", 1, "")
	e := wantCode(t, err, inventory.CodeNotFound)
	if len(e.Suggestions) != 1 || e.Suggestions[0].DisplayName != "battery" || e.Suggestions[0].BoxName != "A" {
		t.Errorf("suggestions = %+v, want battery in A", e.Suggestions)
	}
	if f.rs.CallCount("DeleteItem")+f.rs.CallCount("UpdateItemQty") != 0 {
		t.Error("record store mutated on not-found")
	}
}

func TestRemoveItem_FromBox(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"A", "B"}, map[string][]store.Item{
		"A": {
			{ID: "bat", Name: "battery", CanonicalName: "battery", Quantity: 2},
			{ID: "ch", Name: "charger", CanonicalName: "charger", Quantity: 1},
		},
		"B": {{ID: "aa", Name: "aa battery", CanonicalName: "aa battery", Quantity: 4}},
	})
	ctx := context.Background()

	res, err := f.svc.RemoveItem(ctx, "battery", 1, "b")
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if res.Item.ID != "aa" || res.Box.Name != "B" || res.Item.Quantity != 3 {
		t.Errorf("result = %+v, want aa battery in B with 3 left", res)
	}

	_, err = f.svc.RemoveItem(ctx, "charger", 1, "B")
	e := wantCode(t, err, inventory.CodeNotFound)
	if len(e.Suggestions) != 1 || e.Suggestions[0].BoxName != "A" {
		t.Errorf("suggestions = %+v, want charger in A", e.Suggestions)
	}

	_, err = f.svc.RemoveItem(ctx, "battery", 1, "garage")
	wantCode(t, err, inventory.CodeNotFound)

	if got := f.rs.CallCount("UpdateItemQty"); got != 1 {
		t.Errorf("UpdateItemQty calls = %d, want 1", got)
	}
}

func TestRemoveItem_SubstringFallbackOnResolverError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"A"}, map[string][]store.Item{
		"A": {
			{ID: "cb", Name: "car battery", CanonicalName: "car battery", Quantity: 1},
			{ID: "ch", Name: "charger", CanonicalName: "charger", Quantity: 3},
		},
	})
	f.emb.EmbedErr = errBoom

	res, err := f.svc.RemoveItem(context.Background(), "batteries", 1, "")
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if res.Item.ID != "cb" || !res.Deleted {
		t.Errorf("result = %+v, want car battery deleted", res)
	}
}

func TestRemoveItem_TransportFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"A"}, map[string][]store.Item{
		"A": {{ID: "bat", Name: "battery", CanonicalName: "battery", Quantity: 2}},
	})
	f.rs.DeleteItemErr = errBoom

	_, err := f.svc.RemoveItem(context.Background(), "battery", inventory.RemoveAll, "")
	wantCode(t, err, inventory.CodeTransport)
	if len(f.svc.ListItems()) != 1 || f.idx.Len() != 1 {
		t.Error("mirror or index changed after failed delete")
	}
}

// ── FindItem ──

func TestFindItem_ReturnsAllAboveThreshold(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"A", "B"}, map[string][]store.Item{
		"A": {
			{ID: "bat", Name: "battery", CanonicalName: "battery", Quantity: 2},
			{ID: "ch", Name: "charger", CanonicalName: "charger", Quantity: 1},
		},
		"B": {{ID: "aa", Name: "AA battery", CanonicalName: "aa battery", Quantity: 8}},
	})

	found, err := f.svc.FindItem(context.Background(), "batteries")
	if err != nil {
		t.Fatalf("FindItem: %v", err)
	}
	type row struct {
		Name string
		Box  string
		Qty  int
	}
	var got []row
	for _, fd := range found {
		got = append(got, row{fd.Item.Name, fd.Box.Name, fd.Item.Quantity})
	}
	want := []row{{"battery", "A", 2}, {"AA battery", "B", 8}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("found mismatch (-want +got):\n%s", diff)
	}
}

func TestFindItem_ReflectsLiveState(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"A", "B"}, map[string][]store.Item{
		"A": {{ID: "bat", Name: "battery", CanonicalName: "battery", Quantity: 2}},
	})
	ctx := context.Background()

	if _, err := f.svc.MoveItem(ctx, "battery", "B", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.RemoveItem(ctx, "battery", 1, ""); err != nil {
		t.Fatal(err)
	}
	found, err := f.svc.FindItem(ctx, "battery")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Box.Name != "B" || found[0].Item.Quantity != 1 {
		t.Errorf("found = %+v, want one battery in B", found)
	}
}

func TestFindItem_NotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"A"}, map[string][]store.Item{
		"A": {{ID: "ch", Name: "charger", CanonicalName: "charger", Quantity: 1}},
	})

	_, err := f.svc.FindItem(context.Background(), "scissors")
	e := wantCode(t, err, inventory.CodeNotFound)
	if len(e.Suggestions) != 1 || e.Suggestions[0].DisplayName != "charger" {
		t.Errorf("suggestions = %+v, want charger", e.Suggestions)
	}
}

func TestFindItem_SubstringFallback(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"A"}, map[string][]store.Item{
		"A": {
			{ID: "bat", Name: "battery", CanonicalName: "battery", Quantity: 2},
			{ID: "cb", Name: "car battery", CanonicalName: "car battery", Quantity: 1},
			{ID: "ch", Name: "charger", CanonicalName: "charger", Quantity: 1},
		},
	})
	f.emb.EmbedErr = errBoom

	found, err := f.svc.FindItem(context.Background(), "batteries")
	if err != nil {
		t.Fatalf("FindItem: %v", err)
	}
	var ids []string
	for _, fd := range found {
		ids = append(ids, fd.Item.ID)
	}
	if diff := cmp.Diff([]string{"bat", "cb"}, ids); diff != "" {
		t.Errorf("found mismatch (-want +got):\n%s", diff)
	}
}

// ── MoveItem ──

func TestMoveItem(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"A", "B"}, map[string][]store.Item{
		"A": {{ID: "bat", Name: "battery", CanonicalName: "battery", Quantity: 2}},
	})
	ctx := context.Background()

	res, err := f.svc.MoveItem(ctx, "batteries", "bee", "")
	if err != nil {
		t.Fatalf("MoveItem: %v", err)
	}
	if res.From.Name != "A" || res.To.Name != "B" || res.Item.BoxID != res.To.ID {
		t.Errorf("result = %+v", res)
	}
	hits, err := f.idx.Query(ctx, []float32{1, 0, 0, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Metadata.BoxName != "B" {
		t.Errorf("index metadata = %+v, want box B", hits)
	}

	_, err = f.svc.MoveItem(ctx, "battery", "B", "")
	wantCode(t, err, inventory.CodeConflict)

	_, err = f.svc.MoveItem(ctx, "battery", "Z", "")
	wantCode(t, err, inventory.CodeNotFound)
}

func TestMoveItem_FromBox(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"A", "B", "C"}, map[string][]store.Item{
		"A": {{ID: "bat", Name: "battery", CanonicalName: "battery", Quantity: 2}},
		"B": {{ID: "aa", Name: "AA battery", CanonicalName: "aa battery", Quantity: 4}},
	})
	ctx := context.Background()

	res, err := f.svc.MoveItem(ctx, "battery", "C", "B")
	if err != nil {
		t.Fatalf("MoveItem: %v", err)
	}
	if res.Item.ID != "aa" || res.From.Name != "B" {
		t.Errorf("moved %+v from %s, want the AA battery from B", res.Item, res.From.Name)
	}

	_, err = f.svc.MoveItem(ctx, "charger", "A", "C")
	wantCode(t, err, inventory.CodeNotFound)
}

func TestMoveItem_TransportFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"A", "B"}, map[string][]store.Item{
		"A": {{ID: "bat", Name: "battery", CanonicalName: "battery", Quantity: 2}},
	})
	f.rs.MoveItemErr = errBoom

	_, err := f.svc.MoveItem(context.Background(), "battery", "B", "")
	wantCode(t, err, inventory.CodeTransport)
	if got := itemSummary(f.svc.ListItems()); got["A/battery"] != 2 {
		t.Errorf("mirror = %+v, want battery still in A", got)
	}
}

func TestMoveAllItems(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"A", "D"}, map[string][]store.Item{
		"A": {
			{ID: "bat", Name: "battery", CanonicalName: "battery", Quantity: 2},
			{ID: "ch", Name: "charger", CanonicalName: "charger", Quantity: 1},
		},
	})
	ctx := context.Background()

	moved, err := f.svc.MoveAllItems(ctx, "A", "D")
	if err != nil {
		t.Fatalf("MoveAllItems: %v", err)
	}
	if len(moved) != 2 {
		t.Fatalf("moved %d items, want 2", len(moved))
	}
	want := map[string]int{"D/battery": 2, "D/charger": 1}
	if diff := cmp.Diff(want, itemSummary(f.svc.ListItems())); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}

	_, err = f.svc.MoveAllItems(ctx, "D", "D")
	wantCode(t, err, inventory.CodeConflict)
}

func TestMoveAllItems_TransportFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"A", "D"}, map[string][]store.Item{
		"A": {{ID: "bat", Name: "battery", CanonicalName: "battery", Quantity: 2}},
	})
	f.rs.MoveItemErr = errBoom

	_, err := f.svc.MoveAllItems(context.Background(), "A", "D")
	wantCode(t, err, inventory.CodeTransport)
	if got := itemSummary(f.svc.ListItems()); got["A/battery"] != 2 {
		t.Errorf("mirror = %+v, want battery still in A", got)
	}
}

// ── Boxes ──

func TestFindBoxByName_Stages(t *testing.T) {
	t.Parallel()
	f := newFixture(t, inventory.WithPhonetic(phonetic.New()))
	f.seed(t, []string{"B", "SHOES 1", "KITCHEN", "GARAGE SHELF", "?!", "ATTIC"}, nil)

	tests := []struct {
		query     string
		wantBox   string
		wantStage inventory.BoxStage
	}{
		{"b", "B", inventory.StageCanonical},
		{"box bee.", "B", inventory.StageCanonical},
		{"shoes one", "SHOES 1", inventory.StageCanonical},
		{"shoes1", "SHOES 1", inventory.StageCompact},
		{"?!", "?!", inventory.StageRaw},
		{"kit", "KITCHEN", inventory.StagePrefix},
		{"garage", "GARAGE SHELF", inventory.StagePrefix},
		{"put it in bee", "B", inventory.StageSpoken},
		{"kichen", "KITCHEN", inventory.StagePhonetic},
		{"a", "", inventory.StageNone},
		{"bea", "", inventory.StageNone},
		{"cellar", "", inventory.StageNone},
		{"", "", inventory.StageNone},
	}
	for _, tt := range tests {
		b, stage := f.svc.ResolveBox(tt.query)
		if stage != tt.wantStage || b.Name != tt.wantBox {
			t.Errorf("ResolveBox(%q) = (%q, %s), want (%q, %s)", tt.query, b.Name, stage, tt.wantBox, tt.wantStage)
		}
	}
}

func TestFindBoxByName_RawEqualityForDegenerateName(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"B", "..."}, nil)

	b, ok := f.svc.FindBoxByName("...")
	if !ok || b.Name != "..." {
		t.Errorf("FindBoxByName(...) = (%+v, %v), want the box named ...", b, ok)
	}
	b, ok = f.svc.FindBoxByName("B")
	if !ok || b.Name != "B" {
		t.Errorf("FindBoxByName(B) = (%+v, %v)", b, ok)
	}
}

func TestFindBoxByName_PhoneticIsOptIn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []inventory.Option
		want bool
	}{
		{name: "default", want: false},
		{name: "nil matcher", opts: []inventory.Option{inventory.WithPhonetic(nil)}, want: false},
		{name: "enabled", opts: []inventory.Option{inventory.WithPhonetic(phonetic.New())}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, tt.opts...)
			f.seed(t, []string{"KITCHEN"}, nil)

			if _, ok := f.svc.FindBoxByName("kichen"); ok != tt.want {
				t.Errorf("FindBoxByName(kichen) found = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestAddBox(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	b, created, err := f.svc.AddBox(ctx, "shoes two")
	if err != nil {
		t.Fatal(err)
	}
	if !created || b.Name != "SHOES 2" {
		t.Errorf("AddBox = (%+v, %v), want new SHOES 2", b, created)
	}

	again, created, err := f.svc.AddBox(ctx, "Box Shoes 2.")
	if err != nil {
		t.Fatal(err)
	}
	if created || again.ID != b.ID {
		t.Errorf("AddBox again = (%+v, %v), want existing box", again, created)
	}

	// A fuzzy neighbour is not an existing box.
	if _, created, _ := f.svc.AddBox(ctx, "shoes"); !created {
		t.Error("AddBox(shoes) reused SHOES 2")
	}

	_, _, err = f.svc.AddBox(ctx, " . ")
	wantCode(t, err, inventory.CodeInvalid)

	f.rs.CreateBoxErr = errBoom
	_, _, err = f.svc.AddBox(ctx, "garage")
	wantCode(t, err, inventory.CodeTransport)
	if _, ok := f.svc.FindBoxByName("GARAGE"); ok {
		t.Error("mirror gained GARAGE after failed create")
	}
}

func TestRemoveBox(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"A", "B"}, map[string][]store.Item{
		"A": {{ID: "bat", Name: "battery", CanonicalName: "battery", Quantity: 2}},
	})
	ctx := context.Background()

	_, err := f.svc.RemoveBox(ctx, "A")
	wantCode(t, err, inventory.CodeConflict)

	if _, err := f.svc.RemoveBox(ctx, "box B"); err != nil {
		t.Fatalf("RemoveBox(B): %v", err)
	}
	if _, ok := f.svc.FindBoxByName("B"); ok {
		t.Error("box B still resolvable")
	}

	_, err = f.svc.RemoveBox(ctx, "Q")
	wantCode(t, err, inventory.CodeNotFound)
}

func TestClearBox(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"A", "B"}, map[string][]store.Item{
		"A": {
			{ID: "bat", Name: "battery", CanonicalName: "battery", Quantity: 2},
			{ID: "ch", Name: "charger", CanonicalName: "charger", Quantity: 1},
		},
		"B": {{ID: "sc", Name: "scissor", CanonicalName: "scissor", Quantity: 1}},
	})

	res, err := f.svc.ClearBox(context.Background(), "a")
	if err != nil {
		t.Fatalf("ClearBox: %v", err)
	}
	if res.Box.Name != "A" || len(res.Removed) != 2 {
		t.Errorf("result = %+v", res)
	}
	if diff := cmp.Diff(map[string]int{"B/scissor": 1}, itemSummary(f.svc.ListItems())); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if f.idx.Len() != 1 {
		t.Errorf("index len = %d, want 1", f.idx.Len())
	}
	if _, ok := f.svc.FindBoxByName("A"); !ok {
		t.Error("cleared box was removed")
	}
}

func TestClearBox_TransportFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"A"}, map[string][]store.Item{
		"A": {{ID: "bat", Name: "battery", CanonicalName: "battery", Quantity: 2}},
	})
	f.rs.DeleteItemErr = errBoom

	_, err := f.svc.ClearBox(context.Background(), "A")
	wantCode(t, err, inventory.CodeTransport)
	if len(f.svc.ListItems()) != 1 || f.idx.Len() != 1 {
		t.Error("mirror or index changed after failed clear")
	}
}

func TestListBoxes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"A", "B"}, map[string][]store.Item{
		"A": {
			{ID: "bat", Name: "battery", CanonicalName: "battery", Quantity: 2},
			{ID: "ch", Name: "charger", CanonicalName: "charger", Quantity: 3},
		},
	})

	got := f.svc.ListBoxes()
	if len(got) != 2 {
		t.Fatalf("ListBoxes len = %d, want 2", len(got))
	}
	if got[0].Box.Name != "A" || got[0].Items != 2 || got[0].TotalQuantity != 5 {
		t.Errorf("A summary = %+v", got[0])
	}
	if got[1].Box.Name != "B" || got[1].Items != 0 {
		t.Errorf("B summary = %+v", got[1])
	}
	if diff := cmp.Diff([]string{"A", "B"}, f.svc.BoxNames()); diff != "" {
		t.Errorf("BoxNames mismatch (-want +got):\n%s", diff)
	}
}

// ── Sync / Reindex ──

func TestSync_KeepsMirrorOnFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if err := f.rs.CreateBox(ctx, store.Box{ID: "b1", Name: "A"}); err != nil {
		t.Fatal(err)
	}
	if err := f.rs.AddItem(ctx, store.Item{ID: "i1", Name: "battery", CanonicalName: "battery", Quantity: 1, BoxID: "b1"}); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(f.svc.ListItems()) != 1 {
		t.Errorf("items = %+v, want 1", f.svc.ListItems())
	}

	f.rs.ListItemsErr = errBoom
	wantCode(t, f.svc.Sync(ctx), inventory.CodeTransport)
	if len(f.svc.ListItems()) != 1 {
		t.Error("failed sync cleared the mirror")
	}
}

func TestReindex_RebuildsFromMirror(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, []string{"A"}, map[string][]store.Item{
		"A": {
			{ID: "bat", Name: "battery", CanonicalName: "battery", Quantity: 2},
			{ID: "ch", Name: "charger", CanonicalName: "charger", Quantity: 1},
		},
	})
	ctx := context.Background()

	if err := f.idx.Truncate(ctx); err != nil {
		t.Fatal(err)
	}
	n, err := f.svc.Reindex(ctx)
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if n != 2 || f.idx.Len() != 2 {
		t.Errorf("reindexed %d, len %d, want 2", n, f.idx.Len())
	}
}

func TestService_WithoutResolver(t *testing.T) {
	t.Parallel()
	rs := storemock.New()
	svc := inventory.New(rs, nil)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "batteries", 2, "A"); err != nil {
		t.Fatal(err)
	}
	res, err := svc.AddItem(ctx, "battery", 1, "B")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Merged || res.Item.Quantity != 3 {
		t.Errorf("exact-name merge = %+v", res)
	}
	found, err := svc.FindItem(ctx, "battery")
	if err != nil || len(found) != 1 {
		t.Errorf("FindItem = (%+v, %v)", found, err)
	}
	_, err = svc.Reindex(ctx)
	wantCode(t, err, inventory.CodeInvalid)
}
