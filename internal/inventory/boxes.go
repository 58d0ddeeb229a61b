package inventory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/MrWong99/boxkeeper/internal/canon"
	"github.com/MrWong99/boxkeeper/pkg/store"
)

// BoxStage identifies which resolution stage matched a box name.
type BoxStage int

const (
	StageNone BoxStage = iota
	StageCanonical
	StageCompact
	StageRaw
	StagePrefix
	StageSpoken
	StagePhonetic
)

// String returns the stage name.
func (s BoxStage) String() string {
	switch s {
	case StageCanonical:
		return "canonical"
	case StageCompact:
		return "compact"
	case StageRaw:
		return "raw"
	case StagePrefix:
		return "prefix"
	case StageSpoken:
		return "spoken"
	case StagePhonetic:
		return "phonetic"
	}
	return "none"
}

// BoxSummary is a box with aggregate counts.
type BoxSummary struct {
	Box           store.Box `json:"box"`
	Items         int       `json:"items"`
	TotalQuantity int       `json:"total_quantity"`
}

// ClearResult reports a cleared box and the items removed from it.
type ClearResult struct {
	Box     store.Box    `json:"box"`
	Removed []store.Item `json:"removed"`
}

// FindBoxByName resolves a spoken or typed box name against existing boxes.
func (s *Service) FindBoxByName(name string) (store.Box, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, stage := s.findBox(name)
	return b, stage != StageNone
}

// ResolveBox is FindBoxByName that also reports the matching stage.
func (s *Service) ResolveBox(name string) (store.Box, BoxStage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findBox(name)
}

// findBox runs the resolution stages in order; the first stage that matches
// wins. Boxes are scanned in creation order so ties are stable.
func (s *Service) findBox(name string) (store.Box, BoxStage) {
	boxes := s.mirror.boxList()
	if len(boxes) == 0 || strings.TrimSpace(name) == "" {
		return store.Box{}, StageNone
	}
	target := canon.BoxName(name)
	compact := strings.ReplaceAll(target, " ", "")

	if target != "" {
		for _, b := range boxes {
			if canon.BoxName(b.Name) == target {
				return b, StageCanonical
			}
		}
		for _, b := range boxes {
			if strings.ReplaceAll(canon.BoxName(b.Name), " ", "") == compact {
				return b, StageCompact
			}
		}
	}

	raw := strings.TrimSpace(name)
	for _, b := range boxes {
		if strings.EqualFold(strings.TrimSpace(b.Name), raw) {
			return b, StageRaw
		}
	}

	// A lone letter must not claim a longer label ("A" is not "ATTIC").
	if len([]rune(target)) > 1 {
		for _, b := range boxes {
			if strings.HasPrefix(canon.BoxName(b.Name), target) {
				return b, StagePrefix
			}
		}
	}

	names := make([]string, len(boxes))
	for i, b := range boxes {
		names[i] = b.Name
	}
	if got, ok := canon.ResolveSpokenBoxName(name, names); ok {
		for _, b := range boxes {
			if b.Name != got {
				continue
			}
			if len([]rune(canon.BoxName(b.Name))) == 1 || len([]rune(target)) > 1 {
				return b, StageSpoken
			}
		}
	}

	if s.phonetic != nil && target != "" {
		if got, score, ok := s.phonetic.Match(target, names); ok {
			for _, b := range boxes {
				if b.Name == got {
					slog.Debug("inventory: phonetic box match", "query", name, "box", b.Name, "score", score)
					return b, StagePhonetic
				}
			}
		}
	}
	return store.Box{}, StageNone
}

// findBoxExact resolves only on canonical or compact equality. Creation uses
// it so "add box kitchens" never lands on a fuzzy neighbour.
func (s *Service) findBoxExact(name string) (store.Box, bool) {
	target := canon.BoxName(name)
	if target == "" {
		return store.Box{}, false
	}
	compact := strings.ReplaceAll(target, " ", "")
	for _, b := range s.mirror.boxList() {
		cb := canon.BoxName(b.Name)
		if cb == target || strings.ReplaceAll(cb, " ", "") == compact {
			return b, true
		}
	}
	return store.Box{}, false
}

// AddBox returns the box whose canonical name matches name, creating it with
// the canonical uppercase label when none does. created reports whether a
// new box was made.
func (s *Service) AddBox(ctx context.Context, name string) (box store.Box, created bool, err error) {
	ctx, done := s.begin(ctx, "add_box")
	defer func() { done(err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureBox(ctx, "add_box", name)
}

// ensureBox is AddBox without locking or instrumentation.
func (s *Service) ensureBox(ctx context.Context, op, name string) (store.Box, bool, error) {
	label := canon.BoxName(name)
	if label == "" {
		return store.Box{}, false, invalid(op, "box name %q is empty", name)
	}
	if b, ok := s.findBoxExact(label); ok {
		return b, false, nil
	}
	now := s.now()
	b := store.Box{ID: s.ids.next(now), Name: label, CreatedAt: now}
	if err := s.store.CreateBox(ctx, b); err != nil {
		return store.Box{}, false, transport(op, "create box "+label, err)
	}
	s.mirror.boxes[b.ID] = b
	return b, true, nil
}

// RemoveBox deletes an empty box.
func (s *Service) RemoveBox(ctx context.Context, name string) (box store.Box, err error) {
	const op = "remove_box"
	ctx, done := s.begin(ctx, op)
	defer func() { done(err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, stage := s.findBox(name)
	if stage == StageNone {
		return store.Box{}, noBox(op, name)
	}
	if len(s.mirror.itemsIn(b.ID)) > 0 {
		return store.Box{}, conflict(op, "box %s is not empty", b.Name)
	}
	if err := s.store.DeleteBox(ctx, b.ID); err != nil {
		return store.Box{}, transport(op, "delete box "+b.Name, err)
	}
	delete(s.mirror.boxes, b.ID)
	return b, nil
}

// ClearBox deletes every item in a box and leaves the box in place. When a
// record-store delete fails, items already deleted are restored and the
// mirror is left unchanged.
func (s *Service) ClearBox(ctx context.Context, name string) (res ClearResult, err error) {
	const op = "clear_box"
	ctx, done := s.begin(ctx, op)
	defer func() { done(err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, stage := s.findBox(name)
	if stage == StageNone {
		return ClearResult{}, noBox(op, name)
	}
	items := s.mirror.itemsIn(b.ID)
	for i, it := range items {
		if err := s.store.DeleteItem(ctx, it.ID); err != nil {
			s.restoreItems(ctx, items[:i])
			return ClearResult{}, transport(op, "delete item "+it.Name, err)
		}
	}

	ids := make([]string, len(items))
	for i, it := range items {
		delete(s.mirror.items, it.ID)
		ids[i] = it.ID
	}
	s.unindex(ctx, ids...)
	return ClearResult{Box: b, Removed: items}, nil
}

// restoreItems re-inserts items deleted earlier in a failed operation.
func (s *Service) restoreItems(ctx context.Context, items []store.Item) {
	for _, it := range items {
		if err := s.store.AddItem(ctx, it); err != nil {
			slog.Error("inventory: rollback failed, record store diverges from mirror",
				"item", it.ID, "name", it.Name, "err", err)
		}
	}
}

// ListBoxes returns every box with item counts, in creation order.
func (s *Service) ListBoxes() []BoxSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	boxes := s.mirror.boxList()
	out := make([]BoxSummary, len(boxes))
	for i, b := range boxes {
		out[i].Box = b
		for _, it := range s.mirror.itemsIn(b.ID) {
			out[i].Items++
			out[i].TotalQuantity += it.Quantity
		}
	}
	return out
}

// Contents returns the resolved box and its items in creation order.
func (s *Service) Contents(name string) (store.Box, []store.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, stage := s.findBox(name)
	if stage == StageNone {
		return store.Box{}, nil, noBox("contents", name)
	}
	return b, s.mirror.itemsIn(b.ID), nil
}

// BoxNames returns every box label in creation order.
func (s *Service) BoxNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	boxes := s.mirror.boxList()
	out := make([]string, len(boxes))
	for i, b := range boxes {
		out[i] = b.Name
	}
	return out
}
