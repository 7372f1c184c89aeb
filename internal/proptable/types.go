package proptable

import "strings"

var typeNames = map[string]string{
	"sc:Manifest":       "Manifest",
	"sc:Sequence":       "Sequence",
	"sc:Canvas":         "Canvas",
	"sc:Collection":     "Collection",
	"sc:Range":          "Range",
	"sc:AnnotationList": "AnnotationPage",
	"sc:Layer":          "AnnotationCollection",
	"AnnotationList":    "AnnotationPage",
	"Layer":             "AnnotationCollection",

	"oa:Annotation":         "Annotation",
	"oa:Choice":             "Choice",
	"oa:SpecificResource":   "SpecificResource",
	"oa:CssStyle":           "CssStylesheet",
	"oa:FragmentSelector":   "FragmentSelector",
	"oa:SvgSelector":        "SvgSelector",
	"oa:TextQuoteSelector":  "TextQuoteSelector",
	"iiif:ImageApiSelector": "ImageApiSelector",

	"cnt:ContentAsText":   "TextualBody",
	"dctypes:Image":       "Image",
	"dctypes:Sound":       "Sound",
	"dctypes:Text":        "Text",
	"dctypes:Dataset":     "Dataset",
	"dctypes:MovingImage": "Video",
}

var typePrefixes = []string{"sc:", "oa:", "dctypes:", "cnt:", "iiif:", "dcterms:", "as:"}

// TypeName maps a 2.x @type value onto its 3.x type. Values that are already
// 3.x names come back unchanged, so applying it twice is a no-op.
func TypeName(v string) string {
	v = strings.TrimSpace(v)
	if mapped, ok := typeNames[v]; ok {
		return mapped
	}
	for _, prefix := range typePrefixes {
		if rest, ok := strings.CutPrefix(v, prefix); ok && rest != "" {
			return rest
		}
	}
	return v
}
