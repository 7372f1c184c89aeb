package upgrade

import (
	"fmt"
	"strings"

	"preziup/internal/dispatch"
	"preziup/internal/proptable"
)

// body renames resource to body and sets the motivation, which 2.x did not require.
func (w *walker) body(f *frame) error {
	if raw, ok := f.take("resource"); ok {
		savedCSS, savedCollect := w.css, w.collectCSS
		w.css, w.collectCSS = nil, true
		body, err := w.bodyValue(raw, join(f.path, "resource"), f.depth+1)
		f.css = w.css
		w.css, w.collectCSS = savedCSS, savedCollect
		if err != nil {
			return err
		}
		f.out["body"] = body
	}
	raw, ok := f.take("motivation")
	if !ok {
		f.out["motivation"] = "painting"
		return nil
	}
	switch m := raw.(type) {
	case string:
		f.out["motivation"] = proptable.Motivation(m)
	case []any:
		out := make([]any, 0, len(m))
		for _, item := range m {
			if s, ok := item.(string); ok {
				item = proptable.Motivation(s)
			}
			out = append(out, item)
		}
		f.out["motivation"] = out
	default:
		f.out["motivation"] = raw
	}
	return nil
}

func (w *walker) bodyValue(raw any, path string, depth int) (any, error) {
	switch v := raw.(type) {
	case string:
		return map[string]any{"id": v}, nil
	case map[string]any:
		return w.node(v, "resource", path, depth)
	case []any:
		out := make([]any, 0, len(v))
		for i, item := range v {
			body, err := w.bodyValue(item, index(path, i), depth)
			if err != nil {
				return nil, err
			}
			out = append(out, body)
		}
		return out, nil
	}
	return nil, unrecognized(path, fmt.Sprintf("annotation body of type %T", raw))
}

// target keeps a bare canvas id as a string; selector objects stay objects.
func (w *walker) target(f *frame) error {
	raw, ok := f.take("on")
	if !ok {
		return nil
	}
	target, err := w.targetValue(raw, join(f.path, "on"), f.depth+1)
	if err != nil {
		return err
	}
	f.out["target"] = target
	return nil
}

func (w *walker) targetValue(raw any, path string, depth int) (any, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case map[string]any:
		return w.as(dispatch.Resource, v, path, depth)
	case []any:
		out := make([]any, 0, len(v))
		for i, item := range v {
			t, err := w.targetValue(item, index(path, i), depth)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		return out, nil
	}
	return nil, unrecognized(path, fmt.Sprintf("annotation target of type %T", raw))
}

// stylesheet becomes a CssStylesheet holding the raw CSS. Bodies refer to
// its classes through styleClass. CSS carried on the body resources is
// appended to the annotation's own stylesheet, or forms it when there is none.
func (w *walker) stylesheet(f *frame) error {
	raw, ok := f.take("stylesheet")
	if !ok {
		if len(f.css) > 0 {
			f.out["stylesheet"] = map[string]any{"type": "CssStylesheet", "value": strings.Join(f.css, "\n")}
		}
		return nil
	}
	path := join(f.path, "stylesheet")
	var out map[string]any
	switch s := raw.(type) {
	case string:
		out = map[string]any{"id": s, "type": "CssStylesheet"}
	case map[string]any:
		out = map[string]any{"type": "CssStylesheet"}
		if id := refID(s); id != "" {
			out["id"] = id
		}
		if css, ok := s["chars"]; ok {
			out["value"] = css
		} else if css, ok := s["value"]; ok {
			out["value"] = css
		}
		if format, ok := s["format"]; ok {
			out["format"] = format
		}
	default:
		return w.fail(path, unrecognized(path, fmt.Sprintf("stylesheet of type %T", raw)))
	}
	if len(f.css) > 0 {
		parts := f.css
		if own, ok := out["value"].(string); ok && own != "" {
			parts = append([]string{own}, parts...)
		}
		out["value"] = strings.Join(parts, "\n")
	}
	f.out["stylesheet"] = out
	return nil
}

// resource classifies a body or referenced resource: Choice, SpecificResource,
// TextualBody or a plain resource typed by its format.
func (w *walker) resource(f *frame) error {
	if f.has("default") || f.has("item") || f.out["type"] == "Choice" {
		items := []any{}
		for _, key := range []string{"default", "item"} {
			raw, ok := f.take(key)
			if !ok {
				continue
			}
			for i, option := range asSlice(raw) {
				path := join(f.path, key)
				if _, isList := raw.([]any); isList {
					path = index(path, i)
				}
				switch o := option.(type) {
				case map[string]any:
					out, err := w.node(o, key, path, f.depth+1)
					if err != nil {
						return err
					}
					items = append(items, out)
				case string:
					if o != "rdf:nil" {
						items = append(items, map[string]any{"id": o})
					}
				default:
					return unrecognized(path, fmt.Sprintf("choice option of type %T", option))
				}
			}
		}
		f.out["type"] = "Choice"
		f.out["items"] = items
	}

	if full, ok := f.take("full"); ok {
		path := join(f.path, "full")
		switch src := full.(type) {
		case string:
			f.out["source"] = src
		case map[string]any:
			out, err := w.reference(src, "", path, f.depth+1)
			if err != nil {
				return err
			}
			f.out["source"] = out
		default:
			return unrecognized(path, fmt.Sprintf("specific resource source of type %T", full))
		}
		f.out["type"] = "SpecificResource"
	}

	if chars, ok := f.take("chars"); ok {
		f.out["type"] = "TextualBody"
		f.out["value"] = chars
	}

	if style, ok := f.take("style"); ok {
		f.out["styleClass"] = style
	}

	if raw, ok := f.take("css"); ok {
		path := join(f.path, "css")
		css, isText := raw.(string)
		switch {
		case !isText:
			if err := w.fail(path, unrecognized(path, fmt.Sprintf("css of type %T", raw))); err != nil {
				return err
			}
		case w.collectCSS:
			w.css = append(w.css, css)
		default:
			w.warn(path, WarnMisplacedProperty, "css outside an annotation body dropped")
		}
	}

	if _, typed := f.out["type"]; !typed {
		format, _ := f.in["format"].(string)
		if t := proptable.ReferenceType("", format, ""); t != "" {
			f.out["type"] = t
		}
	}
	return nil
}
