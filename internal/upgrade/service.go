package upgrade

import (
	"fmt"

	"preziup/internal/dispatch"
	"preziup/internal/proptable"
)

// services rewrites a service chain. Order and nesting are kept; no service
// node keeps or gains a @context.
func (w *walker) services(f *frame) error {
	raw, ok := f.take("service")
	if !ok {
		return nil
	}
	path := join(f.path, "service")
	out := []any{}
	for i, entry := range asSlice(raw) {
		entryPath := index(path, i)
		switch s := entry.(type) {
		case map[string]any:
			svc, err := w.node(s, "service", entryPath, f.depth+1)
			if err != nil {
				if ferr := w.fail(entryPath, err); ferr != nil {
					return ferr
				}
				continue
			}
			out = append(out, svc)
		case string:
			w.warn(entryPath, WarnUnknownService, fmt.Sprintf("service %s given only as an id", s))
			out = append(out, map[string]any{"id": s})
		default:
			if err := w.fail(entryPath, unrecognized(entryPath, fmt.Sprintf("service of type %T", entry))); err != nil {
				return err
			}
		}
	}
	f.out["service"] = out
	return nil
}

func (w *walker) serviceType(f *frame) error {
	ctx := ""
	if raw, ok := f.take("@context"); ok {
		ctx = firstString(raw)
	}
	profile := firstString(f.in["profile"])
	current, _ := f.out["type"].(string)
	if name, ok := proptable.ServiceType(ctx, profile, current); ok {
		f.out["type"] = name
		return nil
	}
	id, _ := f.out["id"].(string)
	w.warn(f.path, WarnUnknownService, fmt.Sprintf("service %s (context %q, profile %q) is not in the service registry", id, ctx, profile))
	return nil
}

// supplementary links a range to the annotation collection it supplements.
func (w *walker) supplementary(f *frame) error {
	raw, ok := f.take("contentLayer")
	if !ok {
		return nil
	}
	path := join(f.path, "contentLayer")
	switch v := raw.(type) {
	case string:
		f.out["supplementary"] = map[string]any{"id": v, "type": "AnnotationCollection"}
	case map[string]any:
		out, err := w.as(dispatch.Layer, v, path, f.depth+1)
		if err != nil {
			return w.fail(path, err)
		}
		f.out["supplementary"] = out
	default:
		return w.fail(path, unrecognized(path, fmt.Sprintf("contentLayer of type %T", raw)))
	}
	return nil
}
