package upgrade

import (
	"sort"
	"strconv"
	"strings"
)

// Root @context of every upgraded document.
const (
	AnnotationContext   = "http://www.w3.org/ns/anno.jsonld"
	PresentationContext = "http://iiif.io/api/presentation/3/context.json"
)

func documentContext() []any {
	return []any{AnnotationContext, PresentationContext}
}

func join(path, key string) string {
	return path + "/" + strings.ReplaceAll(strings.ReplaceAll(key, "~", "~0"), "/", "~1")
}

func index(path string, i int) string {
	return path + "/" + strconv.Itoa(i)
}

func displayPath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

func asSlice(v any) []any {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		return val
	default:
		return []any{val}
	}
}

func nonNil(items []any) []any {
	if items == nil {
		return []any{}
	}
	return items
}

func firstString(v any) string {
	for _, item := range asSlice(v) {
		if s, ok := item.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// refID returns the identifier of a string reference or an object.
func refID(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		return stringField(val, "@id", "id")
	}
	return ""
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
