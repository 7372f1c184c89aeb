package langmap

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"

	"preziup/internal/services"
)

// NoLanguage is the language map key for values without a language tag.
const NoLanguage = "@none"

// Map is a Presentation 3 language map: language tag to ordered values.
type Map map[string][]string

// MalformedValueError reports a label or value shape the normalizer does not accept.
type MalformedValueError struct {
	Value  any
	Reason string
}

func (e *MalformedValueError) Error() string {
	return fmt.Sprintf("malformed language value (%s): %s", e.Reason, preview(e.Value))
}

func (e *MalformedValueError) Unwrap() error { return services.ErrMalformedLanguageValue }

// Normalize converts a 2.x label/value into a language map. Untagged values
// land under NoLanguage.
func Normalize(v any) (Map, error) {
	return NormalizeDefault(v, NoLanguage)
}

// NormalizeDefault is Normalize with a caller-chosen key for untagged values.
//
// Accepted shapes: a string; an array of strings and/or {"@value","@language"}
// objects; a single {"@value","@language"} object; an existing language map.
// Values are never deduplicated and keep their order of appearance per language.
func NormalizeDefault(v any, lang string) (Map, error) {
	def := CanonicalTag(lang)
	out := Map{}
	switch val := v.(type) {
	case string:
		out.add(def, val)
	case []string:
		for _, s := range val {
			out.add(def, s)
		}
	case []any:
		for i, item := range val {
			switch entry := item.(type) {
			case string:
				out.add(def, entry)
			case map[string]any:
				tag, text, err := pair(entry, def)
				if err != nil {
					return nil, err
				}
				out.add(tag, text)
			default:
				return nil, &MalformedValueError{Value: v, Reason: fmt.Sprintf("array entry %d is %T", i, item)}
			}
		}
	case map[string]any:
		if isPair(val) {
			tag, text, err := pair(val, def)
			if err != nil {
				return nil, err
			}
			out.add(tag, text)
			return out, nil
		}
		return fromLanguageMap(val)
	case Map:
		for tag, values := range val {
			for _, s := range values {
				out.add(CanonicalTag(tag), s)
			}
		}
	case nil:
		return nil, &MalformedValueError{Value: v, Reason: "null"}
	default:
		return nil, &MalformedValueError{Value: v, Reason: fmt.Sprintf("unsupported type %T", v)}
	}
	return out, nil
}

func pair(entry map[string]any, def string) (string, string, error) {
	raw, ok := entry["@value"]
	if !ok {
		return "", "", &MalformedValueError{Value: entry, Reason: "object without @value"}
	}
	text, ok := raw.(string)
	if !ok {
		return "", "", &MalformedValueError{Value: entry, Reason: "@value is not a string"}
	}
	tag := def
	if rawTag, ok := entry["@language"]; ok && rawTag != nil {
		s, ok := rawTag.(string)
		if !ok {
			return "", "", &MalformedValueError{Value: entry, Reason: "@language is not a string"}
		}
		if strings.TrimSpace(s) != "" {
			tag = CanonicalTag(s)
		}
	}
	return tag, text, nil
}

func isPair(entry map[string]any) bool {
	_, hasValue := entry["@value"]
	_, hasLanguage := entry["@language"]
	return hasValue || hasLanguage
}

// fromLanguageMap accepts an already-normalized map so that normalizing twice
// yields the same result. Every key must be NoLanguage or a BCP-47 tag.
func fromLanguageMap(m map[string]any) (Map, error) {
	if len(m) == 0 {
		return nil, &MalformedValueError{Value: m, Reason: "empty object"}
	}
	out := Map{}
	for tag, raw := range m {
		if !isLanguageKey(tag) {
			return nil, &MalformedValueError{Value: m, Reason: fmt.Sprintf("key %q is not a language tag", tag)}
		}
		key := CanonicalTag(tag)
		switch values := raw.(type) {
		case string:
			out.add(key, values)
		case []string:
			for _, s := range values {
				out.add(key, s)
			}
		case []any:
			for _, item := range values {
				s, ok := item.(string)
				if !ok {
					return nil, &MalformedValueError{Value: m, Reason: fmt.Sprintf("language %q holds %T", tag, item)}
				}
				out.add(key, s)
			}
		default:
			return nil, &MalformedValueError{Value: m, Reason: fmt.Sprintf("language %q holds %T", tag, raw)}
		}
	}
	return out, nil
}

func isLanguageKey(key string) bool {
	if key == NoLanguage {
		return true
	}
	_, err := language.Parse(key)
	return err == nil
}

func (m Map) add(tag, value string) {
	m[tag] = append(m[tag], value)
}

// CanonicalTag returns the BCP-47 canonical form of tag. Empty tags and the
// no-language key map to NoLanguage; tags that do not parse are kept trimmed.
func CanonicalTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" || tag == NoLanguage {
		return NoLanguage
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	return parsed.String()
}

// Single builds a map holding one untagged value.
func Single(value string) Map {
	return Map{NoLanguage: {value}}
}

// Languages returns the map keys in sorted order.
func (m Map) Languages() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// First returns the first value of the preferred language, falling back to
// NoLanguage and then to the alphabetically first language.
func (m Map) First(preferred string) string {
	for _, key := range []string{CanonicalTag(preferred), NoLanguage} {
		if values := m[key]; len(values) > 0 {
			return values[0]
		}
	}
	for _, key := range m.Languages() {
		if values := m[key]; len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// Tree converts the map into the generic JSON tree shape used by the rewriter.
func (m Map) Tree() map[string]any {
	out := make(map[string]any, len(m))
	for tag, values := range m {
		items := make([]any, len(values))
		for i, v := range values {
			items[i] = v
		}
		out[tag] = items
	}
	return out
}

func preview(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	if len(data) > 80 {
		return string(data[:77]) + "..."
	}
	return string(data)
}
