package upgrade

import (
	"fmt"

	"preziup/internal/dispatch"
)

// structures rewrites a manifest's ranges. Ranges referenced from another
// range are embedded in that parent; only the rest stay at the top level.
func (w *walker) structures(f *frame) error {
	raw, ok := f.take("structures")
	if !ok {
		return nil
	}
	entries := asSlice(raw)

	path := join(f.path, "structures")
	prevIndex, prevNested := w.rangeIndex, w.nested
	w.indexRanges(entries, path)
	defer func() { w.rangeIndex, w.nested = prevIndex, prevNested }()

	top := []any{}
	for i, entry := range entries {
		entryPath := index(path, i)
		rng, ok := entry.(map[string]any)
		if !ok {
			if err := w.fail(entryPath, unrecognized(entryPath, fmt.Sprintf("structures entry of type %T", entry))); err != nil {
				return err
			}
			continue
		}
		if w.nested[refID(rng)] {
			continue
		}
		out, err := w.rangeNode(rng, entryPath, f.depth+1)
		if err != nil {
			if ferr := w.fail(entryPath, err); ferr != nil {
				return ferr
			}
			continue
		}
		top = append(top, out)
	}
	f.out["structures"] = top
	return nil
}

func (w *walker) indexRanges(entries []any, path string) {
	w.rangeIndex = map[string]map[string]any{}
	w.nested = map[string]bool{}
	var order []string
	position := map[string]int{}
	for i, entry := range entries {
		if rng, ok := entry.(map[string]any); ok {
			if id := refID(rng); id != "" {
				if _, seen := w.rangeIndex[id]; !seen {
					order = append(order, id)
					position[id] = i
				}
				w.rangeIndex[id] = rng
			}
		}
	}
	for _, id := range order {
		for _, childID := range childRangeIDs(w.rangeIndex[id]) {
			if _, ok := w.rangeIndex[childID]; ok && childID != id {
				w.nested[childID] = true
			}
		}
	}

	reached := map[string]bool{}
	var visit func(id string)
	visit = func(id string) {
		if reached[id] {
			return
		}
		reached[id] = true
		for _, childID := range childRangeIDs(w.rangeIndex[id]) {
			if _, ok := w.rangeIndex[childID]; ok {
				visit(childID)
			}
		}
	}
	for _, id := range order {
		if !w.nested[id] {
			visit(id)
		}
	}
	// Ranges nested only inside a cycle have no root to be embedded under.
	// The first of each such cycle stays at the top level.
	for _, id := range order {
		if reached[id] {
			continue
		}
		delete(w.nested, id)
		w.warn(index(path, position[id]), WarnRangeCycle,
			fmt.Sprintf("range %s is only referenced from a cycle; kept at the top level", id))
		visit(id)
	}
}

// childRangeIDs lists the ids a range embeds, following the same members
// rule as rangeItems.
func childRangeIDs(rng map[string]any) []string {
	keys := []string{"ranges"}
	if _, ok := rng["members"]; ok {
		keys = []string{"members"}
	}
	var ids []string
	for _, key := range keys {
		for _, child := range asSlice(rng[key]) {
			if id := refID(child); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// rangeNode rewrites a range, guarding against reference cycles.
func (w *walker) rangeNode(rng map[string]any, path string, depth int) (map[string]any, error) {
	id := refID(rng)
	if id != "" {
		if w.active[id] {
			w.warn(path, WarnRangeCycle, fmt.Sprintf("range %s contains itself; left as a reference", id))
			return map[string]any{"id": id, "type": "Range"}, nil
		}
		w.active[id] = true
		defer delete(w.active, id)
	}
	return w.as(dispatch.Range, rng, path, depth)
}

func (w *walker) rangeRef(id, path string, depth int) (map[string]any, error) {
	if rng, ok := w.rangeIndex[id]; ok {
		return w.rangeNode(rng, path, depth)
	}
	return map[string]any{"id": id, "type": "Range"}, nil
}

// rangeItems collapses canvases, ranges and members into items. members,
// when present, is authoritative. A child that is neither a canvas nor a
// range fails the whole range.
func (w *walker) rangeItems(f *frame) error {
	for _, key := range []string{"viewingHint", "behavior"} {
		if v, ok := f.take(key); ok {
			w.warn(join(f.path, key), WarnRangeBehavior, fmt.Sprintf("range %s %v dropped", key, v))
		}
	}
	keys := []string{"canvases", "ranges"}
	if f.has("members") {
		for _, key := range keys {
			f.take(key)
		}
		keys = []string{"members"}
	}
	items := []any{}
	for _, key := range keys {
		raw, ok := f.take(key)
		if !ok {
			continue
		}
		path := join(f.path, key)
		for i, child := range asSlice(raw) {
			item, err := w.rangeChild(key, child, index(path, i), f.depth+1)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
	}
	f.out["items"] = items
	return nil
}

func (w *walker) rangeChild(key string, child any, path string, depth int) (map[string]any, error) {
	switch c := child.(type) {
	case string:
		switch key {
		case "canvases":
			return map[string]any{"id": c, "type": "Canvas"}, nil
		case "ranges":
			return w.rangeRef(c, path, depth)
		}
		if _, ok := w.rangeIndex[c]; ok {
			return w.rangeRef(c, path, depth)
		}
		return map[string]any{"id": c, "type": "Canvas"}, nil
	case map[string]any:
		kind := dispatch.Classify(c, key, depth).Kind
		switch kind {
		case dispatch.Canvas:
			return w.reference(c, "Canvas", path, depth)
		case dispatch.Range:
			id := refID(c)
			if _, indexed := w.rangeIndex[id]; indexed && !hasRangeContent(c) {
				return w.rangeRef(id, path, depth)
			}
			return w.rangeNode(c, path, depth)
		}
		return nil, unrecognized(path, fmt.Sprintf("range %s entry resolved to %s", key, kind))
	}
	return nil, unrecognized(path, fmt.Sprintf("range %s entry of type %T", key, child))
}

func hasRangeContent(rng map[string]any) bool {
	for _, key := range []string{"canvases", "ranges", "members"} {
		if _, ok := rng[key]; ok {
			return true
		}
	}
	return false
}
