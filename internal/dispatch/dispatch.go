// Package dispatch classifies Presentation 2.x nodes into an explicit
// resource kind before any rewrite rule runs.
package dispatch

import (
	"preziup/internal/proptable"
)

// Kind is the semantic resource kind of a node.
type Kind int

const (
	Unknown Kind = iota
	Manifest
	Sequence
	Canvas
	AnnotationList
	Annotation
	Range
	Collection
	Service
	Layer
	Resource
)

func (k Kind) String() string {
	switch k {
	case Manifest:
		return "Manifest"
	case Sequence:
		return "Sequence"
	case Canvas:
		return "Canvas"
	case AnnotationList:
		return "AnnotationList"
	case Annotation:
		return "Annotation"
	case Range:
		return "Range"
	case Collection:
		return "Collection"
	case Service:
		return "Service"
	case Layer:
		return "Layer"
	case Resource:
		return "Resource"
	default:
		return "Unknown"
	}
}

// Cue records which signal decided the kind.
type Cue int

const (
	CueNone Cue = iota
	CueType
	CueContainer
	CuePosition
)

func (c Cue) String() string {
	switch c {
	case CueType:
		return "type"
	case CueContainer:
		return "container"
	case CuePosition:
		return "position"
	default:
		return "none"
	}
}

// Decision is the outcome of classifying one node.
type Decision struct {
	Kind  Kind
	Cue   Cue
	Steps []Step
}

var typeKinds = map[string]Kind{
	"Manifest":             Manifest,
	"Sequence":             Sequence,
	"Canvas":               Canvas,
	"AnnotationPage":       AnnotationList,
	"Annotation":           Annotation,
	"Range":                Range,
	"Collection":           Collection,
	"AnnotationCollection": Layer,
}

var containerKinds = map[string]Kind{
	"sequences":    Sequence,
	"canvases":     Canvas,
	"images":       Annotation,
	"resources":    Annotation,
	"otherContent": AnnotationList,
	"structures":   Range,
	"ranges":       Range,
	"collections":  Collection,
	"manifests":    Manifest,
	"service":      Service,
	"contentLayer": Layer,
	"within":       Layer,
	"resource":     Resource,
	"default":      Resource,
	"item":         Resource,
	"full":         Resource,
}

// Classify resolves the kind of node reached under parentKey at the given
// depth (0 for the document root). Explicit @type wins, then the container
// key, then the node's position and shape.
func Classify(node map[string]any, parentKey string, depth int) Decision {
	if kind := kindFromType(node); kind != Unknown {
		return decide(kind, CueType)
	}
	if kind, ok := containerKinds[parentKey]; ok {
		return decide(kind, CueContainer)
	}
	if kind := kindFromPosition(node, depth); kind != Unknown {
		return decide(kind, CuePosition)
	}
	return Decision{Kind: Unknown, Cue: CueNone, Steps: Plan(Unknown)}
}

func decide(kind Kind, cue Cue) Decision {
	return Decision{Kind: kind, Cue: cue, Steps: Plan(kind)}
}

func kindFromType(node map[string]any) Kind {
	raw := typeValue(node)
	if raw == "" {
		return Unknown
	}
	name := proptable.TypeName(raw)
	if kind, ok := typeKinds[name]; ok {
		return kind
	}
	if proptable.IsServiceType(name) {
		return Service
	}
	return Unknown
}

func typeValue(node map[string]any) string {
	for _, key := range []string{"@type", "type"} {
		if s, ok := node[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func kindFromPosition(node map[string]any, depth int) Kind {
	has := func(key string) bool {
		_, ok := node[key]
		return ok
	}
	switch {
	case depth == 0 && (has("collections") || has("manifests")):
		return Collection
	case depth == 0:
		return Manifest
	case has("sequences"):
		return Manifest
	case has("resource") && has("on"):
		return Annotation
	case has("resources"):
		return AnnotationList
	case has("images"):
		return Canvas
	case has("collections") || has("manifests"):
		return Collection
	case has("canvases") && !has("width"):
		return Sequence
	}
	return Unknown
}

// IsContainer reports whether key holds child resources the dispatcher
// knows how to classify.
func IsContainer(key string) bool {
	_, ok := containerKinds[key]
	return ok
}
