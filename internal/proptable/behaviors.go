package proptable

import "strings"

// StartHint is the 2.x viewing hint that marks a Canvas as the start canvas.
const StartHint = "start"

var behaviors = map[string]bool{
	"auto-advance":    true,
	"no-auto-advance": true,
	"repeat":          true,
	"no-repeat":       true,
	"unordered":       true,
	"individuals":     true,
	"continuous":      true,
	"paged":           true,
	"facing-pages":    true,
	"non-paged":       true,
	"multi-part":      true,
	"together":        true,
	"sequence":        true,
	"thumbnail-nav":   true,
	"no-nav":          true,
	"hidden":          true,
	"top":             true,
}

// KnownBehavior reports whether hint is a registered behavior value.
func KnownBehavior(hint string) bool {
	return behaviors[hint]
}

// Motivation strips the namespace prefix from a 2.x motivation.
func Motivation(v string) string {
	for _, prefix := range []string{"sc:", "oa:"} {
		if rest, ok := strings.CutPrefix(v, prefix); ok {
			return rest
		}
	}
	return v
}

var formatTypes = []struct {
	prefix string
	typ    string
}{
	{"image/", "Image"},
	{"audio/", "Sound"},
	{"video/", "Video"},
	{"text/html", "Text"},
	{"text/plain", "Text"},
	{"application/pdf", "Text"},
	{"application/epub", "Text"},
	{"application/json", "Dataset"},
	{"application/ld+json", "Dataset"},
	{"application/xml", "Dataset"},
	{"application/rdf+xml", "Dataset"},
	{"text/xml", "Dataset"},
	{"text/turtle", "Dataset"},
	{"text/csv", "Dataset"},
}

// ReferenceType picks the type of a referenced resource. An explicit type
// wins, then the media type, then fallback.
func ReferenceType(explicit, format, fallback string) string {
	if explicit != "" {
		return TypeName(explicit)
	}
	format = strings.ToLower(strings.TrimSpace(format))
	for _, ft := range formatTypes {
		if strings.HasPrefix(format, ft.prefix) {
			return ft.typ
		}
	}
	return fallback
}
