package upgrade

import (
	"fmt"
	"html"

	"preziup/internal/dispatch"
	"preziup/internal/langmap"
	"preziup/internal/proptable"
)

func metadataRow(label string, value langmap.Map) map[string]any {
	return map[string]any{
		"label": langmap.Single(label).Tree(),
		"value": value.Tree(),
	}
}

func (w *walker) metadata(f *frame) error {
	raw, ok := f.take("metadata")
	if !ok {
		return nil
	}
	path := join(f.path, "metadata")
	var rows []any
	for i, entry := range asSlice(raw) {
		entryPath := index(path, i)
		pair, ok := entry.(map[string]any)
		if !ok {
			if err := w.fail(entryPath, unrecognized(entryPath, fmt.Sprintf("metadata entry of type %T", entry))); err != nil {
				return err
			}
			continue
		}
		label, err := w.normalize(pair["label"])
		if err != nil {
			if ferr := w.fail(join(entryPath, "label"), err); ferr != nil {
				return ferr
			}
			continue
		}
		value, err := w.normalize(pair["value"])
		if err != nil {
			if ferr := w.fail(join(entryPath, "value"), err); ferr != nil {
				return ferr
			}
			continue
		}
		rows = append(rows, map[string]any{"label": label.Tree(), "value": value.Tree()})
	}
	f.appendTo("metadata", rows...)
	return nil
}

// description becomes either summary or a "Description" metadata row, never both.
func (w *walker) description(f *frame) error {
	raw, ok := f.take("description")
	if !ok {
		return nil
	}
	value, err := w.normalize(raw)
	if err != nil {
		return w.fail(join(f.path, "description"), err)
	}
	if w.opts.DescriptionIsMetadata {
		f.appendTo("metadata", metadataRow("Description", value))
		return nil
	}
	f.out["summary"] = value.Tree()
	return nil
}

func (w *walker) attribution(f *frame) error {
	raw, ok := f.take("attribution")
	if !ok {
		return nil
	}
	value, err := w.normalize(raw)
	if err != nil {
		return w.fail(join(f.path, "attribution"), err)
	}
	f.out["requiredStatement"] = metadataRow(w.opts.AttributionLabel, value)
	return nil
}

// related becomes homepage references, or "Related" metadata rows holding
// links when configured so.
func (w *walker) related(f *frame) error {
	raw, ok := f.take("related")
	if !ok {
		return nil
	}
	path := join(f.path, "related")
	if !w.opts.RelatedIsMetadata {
		refs, err := w.references(raw, "Text", path, f.depth+1)
		if err != nil {
			return err
		}
		if len(refs) > 0 {
			f.appendTo("homepage", refs...)
		}
		return nil
	}
	for i, entry := range asSlice(raw) {
		id := refID(entry)
		if id == "" {
			entryPath := index(path, i)
			if err := w.fail(entryPath, unrecognized(entryPath, "related entry without an id")); err != nil {
				return err
			}
			continue
		}
		text := id
		if obj, ok := entry.(map[string]any); ok {
			if label, err := w.normalize(obj["label"]); err == nil {
				text = label.First(w.opts.DefaultLanguage)
			}
		}
		link := fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(id), html.EscapeString(text))
		f.appendTo("metadata", metadataRow("Related", langmap.Single(link)))
	}
	return nil
}

// behavior folds viewingHint (and any 3.x behavior) into one array. The
// start hint is consumed here and resolved by the start step.
func (w *walker) behavior(f *frame) error {
	var values []any
	for _, key := range []string{"viewingHint", "behavior"} {
		raw, ok := f.take(key)
		if !ok {
			continue
		}
		for _, item := range asSlice(raw) {
			hint, ok := item.(string)
			if !ok {
				w.warn(join(f.path, key), WarnUnknownBehavior, fmt.Sprintf("non-string %s value dropped", key))
				continue
			}
			if hint == proptable.StartHint {
				continue
			}
			if !proptable.KnownBehavior(hint) {
				w.warn(join(f.path, key), WarnUnknownBehavior, fmt.Sprintf("unregistered behavior %q kept", hint))
			}
			values = append(values, hint)
		}
	}
	if len(values) > 0 {
		f.out["behavior"] = values
	}
	return nil
}

func (w *walker) start(f *frame) error {
	target := ""
	for _, key := range []string{"startCanvas", "start"} {
		if raw, ok := f.take(key); ok && target == "" {
			target = refID(raw)
		}
	}
	switch f.kind {
	case dispatch.Manifest:
		if target == "" {
			if seqs := asSlice(f.in["sequences"]); len(seqs) > 0 {
				if seq, ok := seqs[0].(map[string]any); ok {
					target = refID(seq["startCanvas"])
					if target == "" {
						target = hintedStart(seq["canvases"])
					}
				}
			}
		}
		if target == "" {
			target = hintedStart(f.in["canvases"])
		}
	case dispatch.Sequence:
		if target == "" {
			target = hintedStart(f.in["canvases"])
		}
	}
	if target != "" {
		f.out["start"] = map[string]any{"id": target, "type": "Canvas"}
	}
	return nil
}

// hintedStart returns the id of the first canvas carrying viewingHint "start".
func hintedStart(canvases any) string {
	for _, entry := range asSlice(canvases) {
		canvas, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		for _, hint := range asSlice(canvas["viewingHint"]) {
			if hint == proptable.StartHint {
				return refID(canvas)
			}
		}
	}
	return ""
}
