package inventory

import (
	"context"
	"strings"

	"github.com/MrWong99/boxkeeper/internal/canon"
	"github.com/MrWong99/boxkeeper/internal/observe"
	"github.com/MrWong99/boxkeeper/internal/semantic"
	"github.com/MrWong99/boxkeeper/pkg/store"
)

// maxFindResults caps the matches a find returns.
const maxFindResults = 10

// AddResult reports the outcome of [Service.AddItem].
type AddResult struct {
	Item store.Item `json:"item"`
	Box  store.Box  `json:"box"`

	// Merged is true when the quantity was added to an existing item.
	Merged bool `json:"merged"`

	// Score is the similarity of the merged item, or 0 for a new item.
	Score float64 `json:"score"`

	// CreatedBox is true when the destination box did not exist before.
	CreatedBox bool `json:"created_box"`
}

// RemoveResult reports the outcome of [Service.RemoveItem].
type RemoveResult struct {
	// Item is the item after removal; Quantity is 0 when it was deleted.
	Item store.Item `json:"item"`
	Box  store.Box  `json:"box"`

	// Removed is how many were taken out.
	Removed int `json:"removed"`

	// Deleted is true when the item no longer exists.
	Deleted bool `json:"deleted"`

	Score float64 `json:"score"`
}

// Found is one result of [Service.FindItem], annotated with live state.
type Found struct {
	Item  store.Item `json:"item"`
	Box   store.Box  `json:"box"`
	Score float64    `json:"score"`
}

// MoveResult reports the outcome of [Service.MoveItem].
type MoveResult struct {
	Item store.Item `json:"item"`
	From store.Box  `json:"from"`
	To   store.Box  `json:"to"`
}

// ItemView is an item together with its box label.
type ItemView struct {
	Item    store.Item `json:"item"`
	BoxName string     `json:"box_name"`
}

// AddItem adds qty of name. When an existing item matches semantically the
// quantity is merged into it wherever it is stored. Otherwise a new item is
// created in boxName, which is resolved or created; an empty boxName means
// the default box.
func (s *Service) AddItem(ctx context.Context, name string, qty int, boxName string) (res AddResult, err error) {
	const op = "add"
	ctx, done := s.begin(ctx, op)
	defer func() { done(err) }()

	display, canonical := canon.DisplaySingular(name), canon.NormalizeItem(name)
	if canonical == "" {
		return AddResult{}, invalid(op, "item name %q is empty", name)
	}
	if qty <= 0 {
		return AddResult{}, invalid(op, "quantity %d must be positive", qty)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, score, ok := s.mergeCandidate(ctx, canonical); ok {
		newQty := existing.Quantity + qty
		if err := s.store.UpdateItemQty(ctx, existing.ID, newQty); err != nil {
			return AddResult{}, transport(op, "update quantity of "+existing.Name, err)
		}
		existing.Quantity = newQty
		s.mirror.items[existing.ID] = existing
		s.index(ctx, existing)
		return AddResult{
			Item:   existing,
			Box:    s.mirror.boxes[existing.BoxID],
			Merged: true,
			Score:  score,
		}, nil
	}

	if strings.TrimSpace(boxName) == "" {
		boxName = s.defaultBox
	}
	box, stage := s.findBox(boxName)
	createdBox := false
	if stage == StageNone {
		now := s.now()
		box = store.Box{ID: s.ids.next(now), Name: canon.BoxName(boxName), CreatedAt: now}
		if box.Name == "" {
			return AddResult{}, invalid(op, "box name %q is empty", boxName)
		}
		if err := s.store.CreateBox(ctx, box); err != nil {
			return AddResult{}, transport(op, "create box "+box.Name, err)
		}
		createdBox = true
	}

	now := s.now()
	item := store.Item{
		ID:            s.ids.next(now),
		Name:          display,
		CanonicalName: canonical,
		Quantity:      qty,
		BoxID:         box.ID,
		CreatedAt:     now,
	}
	if err := s.store.AddItem(ctx, item); err != nil {
		if createdBox {
			if derr := s.store.DeleteBox(ctx, box.ID); derr != nil {
				observe.Logger(ctx).Error("inventory: rollback failed, record store diverges from mirror",
					"box", box.ID, "name", box.Name, "err", derr)
			}
		}
		return AddResult{}, transport(op, "add item "+display, err)
	}
	if createdBox {
		s.mirror.boxes[box.ID] = box
	}
	s.mirror.items[item.ID] = item
	s.index(ctx, item)
	return AddResult{Item: item, Box: box, CreatedBox: createdBox}, nil
}

// mergeCandidate returns the live item an add should merge into. Without a
// usable resolver only an exact canonical match merges.
func (s *Service) mergeCandidate(ctx context.Context, canonical string) (store.Item, float64, bool) {
	if s.resolver != nil {
		best, err := s.resolver.FindBestMatch(ctx, canonical, s.topK)
		if err == nil {
			if best.Match == nil {
				return store.Item{}, 0, false
			}
			it, ok := s.liveItem(*best.Match)
			return it, best.Match.Score, ok
		}
		observe.Logger(ctx).Warn("inventory: semantic lookup failed, using exact names", "query", canonical, "err", err)
	}
	for _, it := range s.mirror.itemList() {
		if it.CanonicalName == canonical {
			return it, 1, true
		}
	}
	return store.Item{}, 0, false
}

// RemoveItem takes qty of the item matching name. Taking at least the stored
// quantity, or [RemoveAll], deletes the item. When fromBox is not empty the
// item is looked up in that box only.
func (s *Service) RemoveItem(ctx context.Context, name string, qty int, fromBox string) (res RemoveResult, err error) {
	const op = "remove"
	ctx, done := s.begin(ctx, op)
	defer func() { done(err) }()

	if qty <= 0 {
		return RemoveResult{}, invalid(op, "quantity %d must be positive", qty)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	within := ""
	if strings.TrimSpace(fromBox) != "" {
		src, stage := s.findBox(fromBox)
		if stage == StageNone {
			return RemoveResult{}, noBox(op, fromBox)
		}
		within = src.ID
	}

	item, score, err := s.lookup(ctx, op, name, within)
	if err != nil {
		return RemoveResult{}, err
	}
	box := s.mirror.boxes[item.BoxID]

	if qty >= item.Quantity || qty == RemoveAll {
		if err := s.store.DeleteItem(ctx, item.ID); err != nil {
			return RemoveResult{}, transport(op, "delete item "+item.Name, err)
		}
		delete(s.mirror.items, item.ID)
		s.unindex(ctx, item.ID)
		removed := item.Quantity
		item.Quantity = 0
		return RemoveResult{Item: item, Box: box, Removed: removed, Deleted: true, Score: score}, nil
	}

	newQty := item.Quantity - qty
	if err := s.store.UpdateItemQty(ctx, item.ID, newQty); err != nil {
		return RemoveResult{}, transport(op, "update quantity of "+item.Name, err)
	}
	item.Quantity = newQty
	s.mirror.items[item.ID] = item
	return RemoveResult{Item: item, Box: box, Removed: qty, Score: score}, nil
}

// FindItem returns every item matching name at or above the threshold, with
// quantity and box read from the mirror.
func (s *Service) FindItem(ctx context.Context, name string) (found []Found, err error) {
	const op = "find"
	ctx, done := s.begin(ctx, op)
	defer func() { done(err) }()

	canonical := canon.NormalizeItem(name)
	if canonical == "" {
		return nil, invalid(op, "item name %q is empty", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolver != nil {
		matches, err := s.resolver.FindAllAboveThreshold(ctx, canonical, maxFindResults)
		if err == nil {
			seen := make(map[string]bool, len(matches))
			for _, m := range matches {
				it, ok := s.liveItem(m)
				if !ok || seen[it.ID] {
					continue
				}
				seen[it.ID] = true
				found = append(found, Found{Item: it, Box: s.mirror.boxes[it.BoxID], Score: m.Score})
			}
			if len(found) > 0 {
				return found, nil
			}
			e := noItem(op, name)
			if best, err := s.resolver.FindBestMatch(ctx, canonical, s.topK); err == nil {
				e.Suggestions = s.liveSuggestions(best.Suggestions)
			}
			return nil, e
		}
		observe.Logger(ctx).Warn("inventory: semantic lookup failed, using substring search", "query", canonical, "err", err)
	}

	for _, it := range s.substringMatches(canonical, "") {
		found = append(found, Found{Item: it, Box: s.mirror.boxes[it.BoxID]})
	}
	if len(found) == 0 {
		return nil, noItem(op, name)
	}
	return found, nil
}

// MoveItem moves the item matching name to toBox. When fromBox is not empty
// the item is looked up in that box only.
func (s *Service) MoveItem(ctx context.Context, name, toBox, fromBox string) (res MoveResult, err error) {
	const op = "move"
	ctx, done := s.begin(ctx, op)
	defer func() { done(err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	dest, stage := s.findBox(toBox)
	if stage == StageNone {
		return MoveResult{}, noBox(op, toBox)
	}

	within := ""
	if strings.TrimSpace(fromBox) != "" {
		src, stage := s.findBox(fromBox)
		if stage == StageNone {
			return MoveResult{}, noBox(op, fromBox)
		}
		within = src.ID
	}

	item, _, err := s.lookup(ctx, op, name, within)
	if err != nil {
		return MoveResult{}, err
	}
	from := s.mirror.boxes[item.BoxID]
	if item.BoxID == dest.ID {
		return MoveResult{}, conflict(op, "%s is already in box %s", item.Name, dest.Name)
	}

	if err := s.store.MoveItem(ctx, item.ID, dest.ID); err != nil {
		return MoveResult{}, transport(op, "move item "+item.Name, err)
	}
	item.BoxID = dest.ID
	s.mirror.items[item.ID] = item
	s.index(ctx, item)
	return MoveResult{Item: item, From: from, To: dest}, nil
}

// MoveAllItems moves every item from one box to another. When a record-store
// move fails, items already moved are moved back and the mirror is left
// unchanged.
func (s *Service) MoveAllItems(ctx context.Context, fromBox, toBox string) (moved []store.Item, err error) {
	const op = "move_all"
	ctx, done := s.begin(ctx, op)
	defer func() { done(err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	src, stage := s.findBox(fromBox)
	if stage == StageNone {
		return nil, noBox(op, fromBox)
	}
	dest, stage := s.findBox(toBox)
	if stage == StageNone {
		return nil, noBox(op, toBox)
	}
	if src.ID == dest.ID {
		return nil, conflict(op, "source and destination are both box %s", src.Name)
	}

	items := s.mirror.itemsIn(src.ID)
	for i, it := range items {
		if err := s.store.MoveItem(ctx, it.ID, dest.ID); err != nil {
			for _, back := range items[:i] {
				if rerr := s.store.MoveItem(ctx, back.ID, src.ID); rerr != nil {
					observe.Logger(ctx).Error("inventory: rollback failed, record store diverges from mirror",
						"item", back.ID, "name", back.Name, "err", rerr)
				}
			}
			return nil, transport(op, "move item "+it.Name, err)
		}
	}

	moved = make([]store.Item, len(items))
	for i, it := range items {
		it.BoxID = dest.ID
		s.mirror.items[it.ID] = it
		moved[i] = it
	}
	for _, it := range moved {
		s.index(ctx, it)
	}
	return moved, nil
}

// ListItems returns every item with its box label, in creation order.
func (s *Service) ListItems() []ItemView {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.mirror.itemList()
	out := make([]ItemView, len(items))
	for i, it := range items {
		out[i] = ItemView{Item: it, BoxName: s.mirror.boxName(it.BoxID)}
	}
	return out
}

// lookup resolves name to one live item, restricted to boxID when set. It
// tries the resolver first and falls back to substring search when the
// resolver is missing or fails.
func (s *Service) lookup(ctx context.Context, op, name, boxID string) (store.Item, float64, error) {
	canonical := canon.NormalizeItem(name)
	if canonical == "" {
		return store.Item{}, 0, invalid(op, "item name %q is empty", name)
	}

	if s.resolver != nil {
		it, score, sugg, err := s.semanticLookup(ctx, canonical, boxID)
		if err == nil {
			if score > 0 {
				return it, score, nil
			}
			e := noItem(op, name)
			e.Suggestions = sugg
			return store.Item{}, 0, e
		}
		observe.Logger(ctx).Warn("inventory: semantic lookup failed, using substring search", "query", canonical, "err", err)
	}

	if matches := s.substringMatches(canonical, boxID); len(matches) > 0 {
		return matches[0], 0, nil
	}
	return store.Item{}, 0, noItem(op, name)
}

// semanticLookup returns the accepted live match, or a zero score with
// suggestions when none is accepted.
func (s *Service) semanticLookup(ctx context.Context, canonical, boxID string) (store.Item, float64, []semantic.Match, error) {
	if boxID == "" {
		best, err := s.resolver.FindBestMatch(ctx, canonical, s.topK)
		if err != nil {
			return store.Item{}, 0, nil, err
		}
		if best.Match != nil {
			if it, ok := s.liveItem(*best.Match); ok {
				return it, best.Match.Score, nil, nil
			}
			observe.Logger(ctx).Warn("inventory: index entry has no live item", "item", best.Match.ItemID)
		}
		return store.Item{}, 0, s.liveSuggestions(best.Suggestions), nil
	}

	matches, err := s.resolver.FindAllAboveThreshold(ctx, canonical, maxFindResults)
	if err != nil {
		return store.Item{}, 0, nil, err
	}
	var sugg []semantic.Match
	for _, m := range matches {
		it, ok := s.liveItem(m)
		if !ok {
			continue
		}
		if it.BoxID == boxID {
			return it, m.Score, nil, nil
		}
		m.BoxID, m.BoxName = it.BoxID, s.mirror.boxName(it.BoxID)
		sugg = append(sugg, m)
	}
	return store.Item{}, 0, sugg, nil
}

// liveItem maps an index hit to the mirror. A hit whose ID is gone is
// matched by canonical name, preferring the box recorded in the index.
func (s *Service) liveItem(m semantic.Match) (store.Item, bool) {
	if it, ok := s.mirror.items[m.ItemID]; ok {
		return it, true
	}
	if m.CanonicalName == "" {
		return store.Item{}, false
	}
	var fallback *store.Item
	for _, it := range s.mirror.itemList() {
		if it.CanonicalName != m.CanonicalName {
			continue
		}
		if it.BoxID == m.BoxID {
			return it, true
		}
		if fallback == nil {
			fallback = &it
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return store.Item{}, false
}

// liveSuggestions drops suggestions for items that no longer exist and
// refreshes their box from the mirror.
func (s *Service) liveSuggestions(in []semantic.Match) []semantic.Match {
	out := make([]semantic.Match, 0, len(in))
	for _, m := range in {
		it, ok := s.liveItem(m)
		if !ok {
			continue
		}
		m.ItemID, m.DisplayName = it.ID, it.Name
		m.BoxID, m.BoxName = it.BoxID, s.mirror.boxName(it.BoxID)
		out = append(out, m)
	}
	return out
}

// substringMatches returns items whose canonical name equals or contains
// query, exact matches first, restricted to boxID when set.
func (s *Service) substringMatches(query, boxID string) []store.Item {
	var exact, partial []store.Item
	for _, it := range s.mirror.itemList() {
		if boxID != "" && it.BoxID != boxID {
			continue
		}
		switch {
		case it.CanonicalName == query:
			exact = append(exact, it)
		case strings.Contains(it.CanonicalName, query):
			partial = append(partial, it)
		}
	}
	return append(exact, partial...)
}
