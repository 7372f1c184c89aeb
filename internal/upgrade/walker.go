package upgrade

import (
	"context"
	"fmt"
	"log/slog"

	"preziup/internal/dispatch"
	"preziup/internal/langmap"
	"preziup/internal/logging"
	"preziup/internal/proptable"
)

// walker carries the state of one top-level upgrade. It is never shared
// between calls.
type walker struct {
	u        *Upgrader
	ctx      context.Context
	opts     Options
	logger   *slog.Logger
	warnings []Warning
	failures []*PathError

	rangeIndex map[string]map[string]any
	nested     map[string]bool
	active     map[string]bool

	// css collects resource-level CSS while an annotation body is rewritten.
	css        []string
	collectCSS bool
}

// frame is one node being rewritten. Steps take the keys they handle so the
// generic property pass only sees what is left.
type frame struct {
	in    map[string]any
	out   map[string]any
	kind  dispatch.Kind
	path  string
	depth int
	used  map[string]bool
	css   []string
}

func (f *frame) take(key string) (any, bool) {
	v, ok := f.in[key]
	if ok {
		f.used[key] = true
	}
	return v, ok
}

func (f *frame) has(key string) bool {
	_, ok := f.in[key]
	return ok
}

// set stores value under key, appending when both sides are arrays.
func (f *frame) set(key string, value any) {
	if existing, ok := f.out[key].([]any); ok {
		if more, ok := value.([]any); ok {
			f.out[key] = append(existing, more...)
			return
		}
	}
	f.out[key] = value
}

func (f *frame) appendTo(key string, values ...any) {
	existing, _ := f.out[key].([]any)
	f.out[key] = append(existing, values...)
}

func (u *Upgrader) newWalker(ctx context.Context) *walker {
	return &walker{
		u:      u,
		ctx:    ctx,
		opts:   u.opts,
		logger: logging.WithContext(ctx, u.logger),
		active: map[string]bool{},
	}
}

func (w *walker) result(doc map[string]any) *Result {
	return &Result{Document: doc, Warnings: w.warnings, Failures: w.failures}
}

func (w *walker) warn(path, code, message string) {
	w.warnings = append(w.warnings, Warning{Path: path, Code: code, Message: message})
	logging.WarnWithContext(w.logger, message, code, logging.String(logging.FieldPath, displayPath(path)))
}

// fail records a failed sub-tree. Under the abort policy the error is
// returned for the caller to propagate; otherwise it is swallowed.
func (w *walker) fail(path string, err error) error {
	pe := asPathError(path, err)
	if w.opts.abort() {
		return pe
	}
	for _, seen := range w.failures {
		if seen == pe {
			return nil
		}
	}
	w.failures = append(w.failures, pe)
	logging.WarnWithContext(w.logger, "sub-tree omitted", "subtree_failed",
		logging.String(logging.FieldPath, displayPath(pe.Path)),
		logging.Error(pe.Err),
		logging.String(logging.FieldErrorHint, `fix the source node or set error_policy = "abort"`),
		logging.String(logging.FieldImpact, "the node is missing from the upgraded document"),
	)
	return nil
}

func (w *walker) node(in map[string]any, parentKey, path string, depth int) (map[string]any, error) {
	return w.rewrite(in, dispatch.Classify(in, parentKey, depth), path, depth)
}

// as rewrites in as the given kind regardless of its own cues.
func (w *walker) as(kind dispatch.Kind, in map[string]any, path string, depth int) (map[string]any, error) {
	return w.rewrite(in, dispatch.Decision{Kind: kind, Cue: dispatch.CueContainer, Steps: dispatch.Plan(kind)}, path, depth)
}

func (w *walker) rewrite(in map[string]any, d dispatch.Decision, path string, depth int) (map[string]any, error) {
	f := &frame{
		in:    in,
		out:   make(map[string]any, len(in)),
		kind:  d.Kind,
		path:  path,
		depth: depth,
		used:  map[string]bool{},
	}
	for _, step := range d.Steps {
		if err := w.run(step, f); err != nil {
			return nil, err
		}
	}
	return f.out, nil
}

func (w *walker) run(step dispatch.Step, f *frame) error {
	switch step {
	case dispatch.StepIdentity:
		return w.identity(f)
	case dispatch.StepContainment:
		return w.containment(f)
	case dispatch.StepBehavior:
		return w.behavior(f)
	case dispatch.StepStart:
		return w.start(f)
	case dispatch.StepMetadata:
		return w.metadata(f)
	case dispatch.StepDescription:
		return w.description(f)
	case dispatch.StepAttribution:
		return w.attribution(f)
	case dispatch.StepRelated:
		return w.related(f)
	case dispatch.StepServices:
		return w.services(f)
	case dispatch.StepAnnotations:
		return w.annotations(f)
	case dispatch.StepBody:
		return w.body(f)
	case dispatch.StepTarget:
		return w.target(f)
	case dispatch.StepStylesheet:
		return w.stylesheet(f)
	case dispatch.StepSupplement:
		return w.supplementary(f)
	case dispatch.StepServiceType:
		return w.serviceType(f)
	case dispatch.StepResource:
		return w.resource(f)
	case dispatch.StepProperties:
		return w.properties(f)
	}
	return fmt.Errorf("no implementation for rewrite step %q", step)
}

var fixedTypes = map[dispatch.Kind]string{
	dispatch.Manifest:       "Manifest",
	dispatch.Sequence:       "Sequence",
	dispatch.Canvas:         "Canvas",
	dispatch.AnnotationList: "AnnotationPage",
	dispatch.Annotation:     "Annotation",
	dispatch.Range:          "Range",
	dispatch.Collection:     "Collection",
	dispatch.Layer:          "AnnotationCollection",
}

func (w *walker) identity(f *frame) error {
	if id, ok := f.take("@id"); ok {
		f.out["id"] = id
	}
	if id, ok := f.take("id"); ok {
		if _, set := f.out["id"]; !set {
			f.out["id"] = id
		}
	}
	name := ""
	for _, key := range []string{"@type", "type"} {
		raw, ok := f.take(key)
		if !ok || name != "" {
			continue
		}
		if s := firstString(raw); s != "" {
			name = proptable.TypeName(s)
		}
	}
	if fixed, ok := fixedTypes[f.kind]; ok {
		name = fixed
	}
	if name != "" {
		f.out["type"] = name
	}
	return nil
}

// properties applies the property table to every key no step consumed.
func (w *walker) properties(f *frame) error {
	for _, key := range sortedKeys(f.in) {
		if f.used[key] {
			continue
		}
		value := f.in[key]
		path := join(f.path, key)
		rule, ok := proptable.Lookup(key)
		if f.kind == dispatch.Service && (!ok || rule.Action == proptable.Custom) {
			// Service descriptions are opaque apart from id, type and chaining.
			f.out[key] = value
			continue
		}
		if !ok {
			w.extension(f, key, value, path, WarnExtensionDropped, "non-standard property")
			continue
		}
		switch rule.Action {
		case proptable.Drop:
		case proptable.Rename:
			f.set(rule.Target, value)
		case proptable.Keep, proptable.Array:
			v, err := w.generic(value, key, path, f.depth+1)
			if err != nil {
				if ferr := w.fail(path, err); ferr != nil {
					return ferr
				}
				continue
			}
			if rule.Action == proptable.Array {
				v = asSlice(v)
			}
			f.set(rule.Target, v)
		case proptable.LanguageMap:
			m, err := langmap.NormalizeDefault(value, w.opts.DefaultLanguage)
			if err != nil {
				if ferr := w.fail(path, err); ferr != nil {
					return ferr
				}
				continue
			}
			f.out[rule.Target] = m.Tree()
		case proptable.References:
			defType := rule.DefaultType
			if key == "within" && f.kind == dispatch.AnnotationList {
				defType = "AnnotationCollection"
			}
			refs, err := w.references(value, defType, path, f.depth+1)
			if err != nil {
				return err
			}
			if len(refs) > 0 {
				f.appendTo(rule.Target, refs...)
			}
		case proptable.Custom:
			// Only unknown keys are governed by ext_ok; a 2.x key in the wrong place has no 3.x name.
			w.warn(path, WarnMisplacedProperty, fmt.Sprintf("property %q not valid on %s dropped", key, f.kind))
		}
	}
	return nil
}

func (w *walker) extension(f *frame, key string, value any, path, code, reason string) {
	if w.opts.ExtOK {
		f.out[key] = value
		return
	}
	w.warn(path, code, fmt.Sprintf("%s %q dropped", reason, key))
}

// generic rewrites a value reached through a pass-through property.
func (w *walker) generic(value any, key, path string, depth int) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		return w.node(v, key, path, depth)
	case []any:
		out := make([]any, 0, len(v))
		for i, item := range v {
			rewritten, err := w.generic(item, key, index(path, i), depth)
			if err != nil {
				return nil, err
			}
			out = append(out, rewritten)
		}
		return out, nil
	default:
		return value, nil
	}
}

// references turns strings and objects into {id, type} reference objects.
func (w *walker) references(value any, defType, path string, depth int) ([]any, error) {
	var refs []any
	for i, item := range asSlice(value) {
		itemPath := path
		if _, isList := value.([]any); isList {
			itemPath = index(path, i)
		}
		switch v := item.(type) {
		case string:
			refs = append(refs, map[string]any{"id": v, "type": defType})
		case map[string]any:
			ref, err := w.reference(v, defType, itemPath, depth)
			if err != nil {
				if ferr := w.fail(itemPath, err); ferr != nil {
					return nil, ferr
				}
				continue
			}
			refs = append(refs, ref)
		default:
			if ferr := w.fail(itemPath, unrecognized(itemPath, fmt.Sprintf("reference of type %T", item))); ferr != nil {
				return nil, ferr
			}
		}
	}
	return refs, nil
}

func (w *walker) reference(in map[string]any, defType, path string, depth int) (map[string]any, error) {
	out, err := w.as(dispatch.Resource, in, path, depth)
	if err != nil {
		return nil, err
	}
	if _, ok := out["type"]; !ok && defType != "" {
		out["type"] = defType
	}
	return out, nil
}

func (w *walker) normalize(value any) (langmap.Map, error) {
	return langmap.NormalizeDefault(value, w.opts.DefaultLanguage)
}
