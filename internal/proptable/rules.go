package proptable

import "sort"

// Action describes how a 2.x property is carried into the 3.x document.
type Action int

const (
	// Keep copies the value, rewriting nested resources generically.
	Keep Action = iota
	// Rename moves the value to Target unchanged.
	Rename
	// Drop removes the property silently.
	Drop
	// Array coerces a scalar into a single-element array.
	Array
	// LanguageMap runs the value through the language map normalizer.
	LanguageMap
	// References turns strings or objects into an array of {id, type} references.
	References
	// Custom marks properties only a resource-specific rule may consume.
	Custom
)

func (a Action) String() string {
	switch a {
	case Keep:
		return "keep"
	case Rename:
		return "rename"
	case Drop:
		return "drop"
	case Array:
		return "array"
	case LanguageMap:
		return "language_map"
	case References:
		return "references"
	case Custom:
		return "custom"
	default:
		return "unknown"
	}
}

// Rule maps one 2.x property onto its 3.x counterpart.
type Rule struct {
	Key    string
	Target string
	Action Action
	// DefaultType is the reference type used when neither @type nor format decides it.
	DefaultType string
}

var rules = map[string]Rule{
	"@id":      {Target: "id", Action: Rename},
	"@type":    {Target: "type", Action: Custom},
	"@context": {Action: Drop},

	"label":            {Target: "label", Action: LanguageMap},
	"description":      {Target: "summary", Action: Custom},
	"metadata":         {Target: "metadata", Action: Custom},
	"attribution":      {Target: "requiredStatement", Action: Custom},
	"license":          {Target: "rights", Action: References, DefaultType: "Text"},
	"logo":             {Target: "logo", Action: References, DefaultType: "Image"},
	"thumbnail":        {Target: "thumbnail", Action: References, DefaultType: "Image"},
	"seeAlso":          {Target: "seeAlso", Action: References, DefaultType: "Dataset"},
	"rendering":        {Target: "rendering", Action: References, DefaultType: "Text"},
	"within":           {Target: "partOf", Action: References, DefaultType: "Collection"},
	"related":          {Target: "homepage", Action: Custom},
	"service":          {Target: "service", Action: Custom},
	"viewingHint":      {Target: "behavior", Action: Custom},
	"viewingDirection": {Target: "viewingDirection", Action: Keep},
	"navDate":          {Target: "navDate", Action: Keep},
	"language":         {Target: "language", Action: Array},

	"format":   {Target: "format", Action: Keep},
	"height":   {Target: "height", Action: Keep},
	"width":    {Target: "width", Action: Keep},
	"duration": {Target: "duration", Action: Keep},
	"profile":  {Target: "profile", Action: Rename},
	"protocol": {Target: "protocol", Action: Rename},

	"sequences":    {Target: "items", Action: Custom},
	"canvases":     {Target: "items", Action: Custom},
	"images":       {Target: "items", Action: Custom},
	"resources":    {Target: "items", Action: Custom},
	"otherContent": {Target: "annotations", Action: Custom},
	"structures":   {Target: "structures", Action: Custom},
	"ranges":       {Target: "items", Action: Custom},
	"members":      {Target: "items", Action: Custom},
	"collections":  {Target: "items", Action: Custom},
	"manifests":    {Target: "items", Action: Custom},
	"startCanvas":  {Target: "start", Action: Custom},
	"start":        {Target: "start", Action: Custom},
	"contentLayer": {Target: "supplementary", Action: Custom},

	"resource":   {Target: "body", Action: Custom},
	"on":         {Target: "target", Action: Custom},
	"motivation": {Target: "motivation", Action: Custom},
	"stylesheet": {Target: "stylesheet", Action: Custom},
	"style":      {Target: "styleClass", Action: Custom},
	"css":        {Target: "stylesheet", Action: Custom},
	"chars":      {Target: "value", Action: Custom},
	"default":    {Target: "items", Action: Custom},
	"item":       {Target: "items", Action: Custom},
	"full":       {Target: "source", Action: Custom},
	"selector":   {Target: "selector", Action: Keep},
	"region":     {Target: "region", Action: Keep},
	"value":      {Target: "value", Action: Keep},

	"first":      {Target: "first", Action: Keep},
	"last":       {Target: "last", Action: Keep},
	"next":       {Target: "next", Action: Keep},
	"prev":       {Target: "prev", Action: Keep},
	"total":      {Target: "total", Action: Keep},
	"startIndex": {Target: "startIndex", Action: Keep},

	// 3.x spellings seen in partially upgraded documents.
	"id":                {Target: "id", Action: Keep},
	"type":              {Target: "type", Action: Custom},
	"summary":           {Target: "summary", Action: LanguageMap},
	"behavior":          {Target: "behavior", Action: Array},
	"requiredStatement": {Target: "requiredStatement", Action: Keep},
	"rights":            {Target: "rights", Action: Keep},
	"homepage":          {Target: "homepage", Action: Keep},
	"partOf":            {Target: "partOf", Action: Keep},
}

// Lookup returns the rule for a 2.x property key.
func Lookup(key string) (Rule, bool) {
	rule, ok := rules[key]
	if !ok {
		return Rule{}, false
	}
	rule.Key = key
	if rule.Target == "" && rule.Action != Drop {
		rule.Target = key
	}
	return rule, true
}

// Known reports whether key is a recognized Presentation property.
func Known(key string) bool {
	_, ok := rules[key]
	return ok
}

// Rules returns every rule sorted by source key.
func Rules() []Rule {
	keys := make([]string, 0, len(rules))
	for k := range rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Rule, 0, len(keys))
	for _, k := range keys {
		rule, _ := Lookup(k)
		out = append(out, rule)
	}
	return out
}
