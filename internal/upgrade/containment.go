package upgrade

import (
	"fmt"

	"preziup/internal/dispatch"
)

var referenceTypes = map[string]string{
	"sequences":    "Sequence",
	"canvases":     "Canvas",
	"images":       "Annotation",
	"resources":    "Annotation",
	"otherContent": "AnnotationPage",
	"collections":  "Collection",
	"manifests":    "Manifest",
	"ranges":       "Range",
}

func (w *walker) containment(f *frame) error {
	switch f.kind {
	case dispatch.Manifest:
		return w.manifestItems(f)
	case dispatch.Sequence:
		items, err := w.children(f, "canvases")
		if err != nil {
			return err
		}
		f.out["items"] = nonNil(items)
	case dispatch.Canvas:
		return w.canvasItems(f)
	case dispatch.AnnotationList:
		if !f.has("resources") {
			return nil
		}
		items, err := w.children(f, "resources")
		if err != nil {
			return err
		}
		f.out["items"] = nonNil(items)
	case dispatch.Range:
		return w.rangeItems(f)
	case dispatch.Collection:
		return w.collectionItems(f)
	}
	return nil
}

// children rewrites the entries under each key, in key order and then
// source order. Failing entries are handled by the error policy.
func (w *walker) children(f *frame, keys ...string) ([]any, error) {
	var items []any
	for _, key := range keys {
		raw, ok := f.take(key)
		if !ok {
			continue
		}
		path := join(f.path, key)
		for i, child := range asSlice(raw) {
			childPath := index(path, i)
			switch c := child.(type) {
			case map[string]any:
				out, err := w.node(c, key, childPath, f.depth+1)
				if err != nil {
					if ferr := w.fail(childPath, err); ferr != nil {
						return nil, ferr
					}
					continue
				}
				items = append(items, out)
			default:
				if s, ok := c.(string); ok && referenceTypes[key] != "" {
					items = append(items, map[string]any{"id": s, "type": referenceTypes[key]})
					continue
				}
				err := unrecognized(childPath, fmt.Sprintf("%s entry of type %T", key, child))
				if ferr := w.fail(childPath, err); ferr != nil {
					return nil, ferr
				}
			}
		}
	}
	return items, nil
}

// manifestItems collapses sequences into items. A manifest without
// sequences gets one synthesized Sequence so that containment depth is the
// same for every shape; embedded manifest references are left alone.
func (w *walker) manifestItems(f *frame) error {
	switch {
	case f.has("sequences"):
		items, err := w.children(f, "sequences")
		if err != nil {
			return err
		}
		f.out["items"] = nonNil(items)
	case f.has("canvases") || f.depth == 0:
		canvases, err := w.children(f, "canvases")
		if err != nil {
			return err
		}
		f.out["items"] = []any{map[string]any{"type": "Sequence", "items": nonNil(canvases)}}
	}
	return w.structures(f)
}

// canvasItems wraps the painting annotations in exactly one AnnotationPage.
func (w *walker) canvasItems(f *frame) error {
	annos, err := w.children(f, "images")
	if err != nil {
		return err
	}
	f.out["items"] = []any{map[string]any{
		"id":    w.u.mint(),
		"type":  "AnnotationPage",
		"items": nonNil(annos),
	}}
	return nil
}

// annotations turns otherContent into AnnotationPages, fetching referenced
// lists when dereferencing is enabled.
func (w *walker) annotations(f *frame) error {
	raw, ok := f.take("otherContent")
	if !ok {
		return nil
	}
	path := join(f.path, "otherContent")
	var pages []any
	for i, entry := range asSlice(raw) {
		entryPath := index(path, i)
		var list map[string]any
		switch e := entry.(type) {
		case string:
			list = map[string]any{"@id": e}
		case map[string]any:
			list = e
		default:
			if err := w.fail(entryPath, unrecognized(entryPath, fmt.Sprintf("otherContent entry of type %T", entry))); err != nil {
				return err
			}
			continue
		}
		if _, embedded := list["resources"]; !embedded && w.opts.DerefLinks {
			if fetched, ok := w.deref(refID(list), entryPath); ok {
				list = fetched
			}
		}
		page, err := w.as(dispatch.AnnotationList, list, entryPath, f.depth+1)
		if err != nil {
			if ferr := w.fail(entryPath, err); ferr != nil {
				return ferr
			}
			continue
		}
		pages = append(pages, page)
	}
	if len(pages) > 0 {
		f.appendTo("annotations", pages...)
	}
	return nil
}

// collectionItems merges collections, manifests and members into items.
// Every child must resolve to a Collection or a Manifest.
func (w *walker) collectionItems(f *frame) error {
	var items []any
	present := false
	for _, key := range []string{"collections", "manifests", "members"} {
		raw, ok := f.take(key)
		if !ok {
			continue
		}
		present = true
		path := join(f.path, key)
		for i, child := range asSlice(raw) {
			childPath := index(path, i)
			var (
				out map[string]any
				err error
			)
			switch c := child.(type) {
			case string:
				if typ := referenceTypes[key]; typ != "" {
					out = map[string]any{"id": c, "type": typ}
				} else {
					err = unrecognized(childPath, "collection member given only as an id")
				}
			case map[string]any:
				d := dispatch.Classify(c, key, f.depth+1)
				if d.Kind != dispatch.Collection && d.Kind != dispatch.Manifest {
					err = unrecognized(childPath, fmt.Sprintf("collection member resolved to %s", d.Kind))
					break
				}
				out, err = w.rewrite(c, d, childPath, f.depth+1)
			default:
				err = unrecognized(childPath, fmt.Sprintf("%s entry of type %T", key, child))
			}
			if err != nil {
				if ferr := w.fail(childPath, err); ferr != nil {
					return ferr
				}
				continue
			}
			items = append(items, out)
		}
	}
	if present || f.depth == 0 {
		f.out["items"] = nonNil(items)
	}
	return nil
}
