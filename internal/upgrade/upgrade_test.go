package upgrade_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"preziup/internal/doccache"
	"preziup/internal/services"
	"preziup/internal/testsupport"
	"preziup/internal/upgrade"
)

const fixtures = "http://iiif.io/api/presentation/2.1/example/fixtures"

type fakeFetcher struct {
	docs  map[string]string
	calls map[string]int
}

func newFakeFetcher(t *testing.T, docs map[string]string) *fakeFetcher {
	t.Helper()
	f := &fakeFetcher{docs: map[string]string{}, calls: map[string]int{}}
	for uri, fixture := range docs {
		f.docs[uri] = testsupport.ReadText(t, filepath.Join("testdata", fixture))
	}
	return f
}

func (f *fakeFetcher) Fetch(_ context.Context, uri string) ([]byte, error) {
	f.calls[uri]++
	body, ok := f.docs[uri]
	if !ok {
		return nil, services.Wrap(services.ErrRetrieval, "fetch", "get", "404 Not Found", nil)
	}
	return []byte(body), nil
}

func sequentialMinter() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("https://example.org/minted/%d", n)
	}
}

func newUpgrader(opts upgrade.Options, extra ...upgrade.Option) *upgrade.Upgrader {
	base := []upgrade.Option{
		upgrade.WithIDMinter(sequentialMinter()),
		upgrade.WithFetcher(&fakeFetcher{docs: map[string]string{}, calls: map[string]int{}}),
	}
	return upgrade.New(opts, append(base, extra...)...)
}

func upgradeFixture(t *testing.T, name string, opts upgrade.Options, extra ...upgrade.Option) *upgrade.Result {
	t.Helper()
	res, err := newUpgrader(opts, extra...).ProcessCached(context.Background(), filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("ProcessCached(%s): %v", name, err)
	}
	return res
}

func hasWarning(res *upgrade.Result, code string) bool {
	for _, w := range res.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func none(values ...string) map[string]any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return map[string]any{"@none": out}
}

func TestManifestContainment(t *testing.T) {
	res := upgradeFixture(t, "manifest-basic.json", upgrade.DefaultOptions())
	doc := any(res.Document)

	if diff := cmp.Diff([]any{upgrade.AnnotationContext, upgrade.PresentationContext}, res.Document["@context"]); diff != "" {
		t.Fatalf("@context mismatch (-want +got):\n%s", diff)
	}
	if got := testsupport.String(t, doc, "id"); got != fixtures+"/1/manifest.json" {
		t.Fatalf("id = %q", got)
	}
	if _, ok := res.Document["@id"]; ok {
		t.Fatal("@id survived the upgrade")
	}
	if got := testsupport.String(t, doc, "type"); got != "Manifest" {
		t.Fatalf("type = %q, want Manifest", got)
	}

	seq := testsupport.Object(t, doc, "items", 0)
	if seq["type"] != "Sequence" {
		t.Fatalf("items[0].type = %v, want Sequence", seq["type"])
	}
	canvases := testsupport.Array(t, seq, "items")
	if len(canvases) != 2 {
		t.Fatalf("expected 2 canvases, got %d", len(canvases))
	}
	for i := range canvases {
		pages := testsupport.Array(t, canvases, i, "items")
		if len(pages) != 1 {
			t.Fatalf("canvas %d: expected one annotation page, got %d", i, len(pages))
		}
		page := testsupport.Object(t, pages, 0)
		if page["type"] != "AnnotationPage" {
			t.Fatalf("canvas %d: page type = %v", i, page["type"])
		}
		if page["id"] == nil {
			t.Fatalf("canvas %d: annotation page has no id", i)
		}
		anno := testsupport.Object(t, page, "items", 0)
		if anno["type"] != "Annotation" || anno["motivation"] != "painting" {
			t.Fatalf("canvas %d: annotation = %v", i, anno)
		}
		if _, ok := anno["on"]; ok {
			t.Fatalf("canvas %d: on survived", i)
		}
		if testsupport.String(t, anno, "target") != testsupport.String(t, canvases, i, "id") {
			t.Fatalf("canvas %d: target does not point at the canvas", i)
		}
	}

	body := testsupport.Object(t, canvases, 0, "items", 0, "items", 0, "body")
	want := map[string]any{
		"id":     fixtures + "/resources/page1-full.png",
		"type":   "Image",
		"format": "image/png",
		"height": body["height"],
		"width":  body["width"],
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestManifestDescriptiveProperties(t *testing.T) {
	res := upgradeFixture(t, "manifest-basic.json", upgrade.DefaultOptions())
	doc := any(res.Document)

	if diff := cmp.Diff(none("Manifest Label"), res.Document["label"]); diff != "" {
		t.Fatalf("label mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(none("This is a description of the Manifest"), res.Document["summary"]); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
	if _, ok := res.Document["description"]; ok {
		t.Fatal("description survived the upgrade")
	}

	metadata := testsupport.Array(t, doc, "metadata")
	wantMetadata := []any{
		map[string]any{"label": none("MD Label 1"), "value": none("MD Value 1")},
		map[string]any{"label": none("MD Label 2"), "value": none("MD Value 2a", "MD Value 2b")},
		map[string]any{"label": none("MD Label 3"), "value": map[string]any{
			"en": []any{"English value"},
			"fr": []any{"Valeur en français"},
		}},
	}
	if diff := cmp.Diff(wantMetadata, metadata); diff != "" {
		t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
	}

	wantRights := []any{map[string]any{"id": "http://iiif.io/event/conduct/", "type": "Text"}}
	if diff := cmp.Diff(wantRights, res.Document["rights"]); diff != "" {
		t.Fatalf("rights mismatch (-want +got):\n%s", diff)
	}
	if _, ok := res.Document["license"]; ok {
		t.Fatal("license survived the upgrade")
	}

	wantStatement := map[string]any{
		"label": none("Attribution"),
		"value": none("Provided by Example Organization"),
	}
	if diff := cmp.Diff(wantStatement, res.Document["requiredStatement"]); diff != "" {
		t.Fatalf("requiredStatement mismatch (-want +got):\n%s", diff)
	}

	refs := map[string]any{
		"logo":     []any{map[string]any{"id": "http://iiif.io/img/logo-iiif-34x30.png", "type": "Image"}},
		"seeAlso":  []any{map[string]any{"id": "http://example.org/library/catalog/book1.xml", "type": "Dataset"}},
		"homepage": []any{map[string]any{"id": "http://example.org/collections/book1/", "type": "Text"}},
		"partOf":   []any{map[string]any{"id": "http://example.org/collections/books/", "type": "Collection"}},
		"rendering": []any{map[string]any{
			"id":     "http://example.org/iiif/book1.pdf",
			"type":   "Text",
			"label":  none("Download as PDF"),
			"format": "application/pdf",
		}},
	}
	for key, want := range refs {
		if diff := cmp.Diff(want, res.Document[key]); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", key, diff)
		}
	}

	if diff := cmp.Diff([]any{"paged"}, res.Document["behavior"]); diff != "" {
		t.Fatalf("manifest behavior mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"paged"}, testsupport.Dig(t, doc, "items", 0, "behavior")); diff != "" {
		t.Fatalf("sequence behavior mismatch (-want +got):\n%s", diff)
	}
	if _, ok := res.Document["viewingHint"]; ok {
		t.Fatal("viewingHint survived the upgrade")
	}
	if got := testsupport.String(t, doc, "navDate"); got != "1856-01-01T00:00:00Z" {
		t.Fatalf("navDate = %q", got)
	}
}

func TestStartCanvas(t *testing.T) {
	res := upgradeFixture(t, "manifest-basic.json", upgrade.DefaultOptions())
	want := map[string]any{"id": fixtures + "/canvas/1/c1.json", "type": "Canvas"}
	if diff := cmp.Diff(want, res.Document["start"]); diff != "" {
		t.Fatalf("manifest start mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, testsupport.Dig(t, any(res.Document), "items", 0, "start")); diff != "" {
		t.Fatalf("sequence start mismatch (-want +got):\n%s", diff)
	}
}

func TestStartHintOnCanvas(t *testing.T) {
	doc := map[string]any{
		"@context": "http://iiif.io/api/presentation/2/context.json",
		"@id":      "https://example.org/m",
		"@type":    "sc:Manifest",
		"sequences": []any{map[string]any{
			"@type": "sc:Sequence",
			"canvases": []any{
				map[string]any{"@id": "https://example.org/c1", "@type": "sc:Canvas"},
				map[string]any{"@id": "https://example.org/c2", "@type": "sc:Canvas", "viewingHint": "start"},
			},
		}},
	}
	res, err := newUpgrader(upgrade.DefaultOptions()).Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := map[string]any{"id": "https://example.org/c2", "type": "Canvas"}
	if diff := cmp.Diff(want, res.Document["start"]); diff != "" {
		t.Fatalf("start mismatch (-want +got):\n%s", diff)
	}
	c2 := testsupport.Object(t, any(res.Document), "items", 0, "items", 1)
	if _, ok := c2["behavior"]; ok {
		t.Fatalf("start hint leaked into behavior: %v", c2["behavior"])
	}
}

func TestStructuresEmbedNestedRanges(t *testing.T) {
	res := upgradeFixture(t, "manifest-basic.json", upgrade.DefaultOptions())
	doc := any(res.Document)

	structures := testsupport.Array(t, doc, "structures")
	if len(structures) != 1 {
		t.Fatalf("expected one top-level range, got %d", len(structures))
	}
	top := testsupport.Object(t, structures, 0)
	if _, ok := top["behavior"]; ok {
		t.Fatalf("range kept behavior %v", top["behavior"])
	}
	if !hasWarning(res, upgrade.WarnRangeBehavior) {
		t.Fatal("expected a warning for the dropped range viewingHint")
	}
	items := testsupport.Array(t, top, "items")
	if len(items) != 3 {
		t.Fatalf("expected 3 range items, got %d", len(items))
	}
	wantFirst := map[string]any{"id": fixtures + "/canvas/1/c1.json", "type": "Canvas"}
	if diff := cmp.Diff(wantFirst, items[0]); diff != "" {
		t.Fatalf("first item mismatch (-want +got):\n%s", diff)
	}
	if got := testsupport.String(t, items, 1, "id"); got != fixtures+"/range/1/r1.json" {
		t.Fatalf("items[1].id = %q", got)
	}
	part := testsupport.Object(t, items, 1, "items", 0)
	if part["type"] != "Range" || len(testsupport.Array(t, part, "items")) != 1 {
		t.Fatalf("nested range not embedded: %v", part)
	}
	if diff := cmp.Diff(none("Conclusion"), testsupport.Dig(t, items, 2, "label")); diff != "" {
		t.Fatalf("r2 label mismatch (-want +got):\n%s", diff)
	}
}

func TestRangeCycleTerminates(t *testing.T) {
	doc := map[string]any{
		"@context": "http://iiif.io/api/presentation/2/context.json",
		"@id":      "https://example.org/m",
		"@type":    "sc:Manifest",
		"structures": []any{
			map[string]any{"@id": "https://example.org/r/a", "@type": "sc:Range", "ranges": []any{"https://example.org/r/b"}},
			map[string]any{"@id": "https://example.org/r/b", "@type": "sc:Range", "ranges": []any{"https://example.org/r/a"}},
		},
	}
	res, err := newUpgrader(upgrade.DefaultOptions()).Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !hasWarning(res, upgrade.WarnRangeCycle) {
		t.Fatal("expected a range_cycle warning")
	}
	a := testsupport.Object(t, any(res.Document), "structures", 0)
	back := testsupport.Object(t, a, "items", 0, "items", 0)
	want := map[string]any{"id": "https://example.org/r/a", "type": "Range"}
	if diff := cmp.Diff(want, back); diff != "" {
		t.Fatalf("cyclic reference mismatch (-want +got):\n%s", diff)
	}
}

func TestRangeMembersAreAuthoritative(t *testing.T) {
	doc := map[string]any{
		"@context": "http://iiif.io/api/presentation/2/context.json",
		"@id":      "https://example.org/m",
		"@type":    "sc:Manifest",
		"structures": []any{map[string]any{
			"@id":      "https://example.org/r/1",
			"@type":    "sc:Range",
			"canvases": []any{"https://example.org/c/ignored"},
			"members": []any{
				map[string]any{"@id": "https://example.org/c/2", "@type": "sc:Canvas", "label": "p. 2"},
				map[string]any{"@id": "https://example.org/c/1", "@type": "sc:Canvas"},
			},
		}},
	}
	res, err := newUpgrader(upgrade.DefaultOptions()).Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := []any{
		map[string]any{"id": "https://example.org/c/2", "type": "Canvas", "label": none("p. 2")},
		map[string]any{"id": "https://example.org/c/1", "type": "Canvas"},
	}
	if diff := cmp.Diff(want, testsupport.Dig(t, any(res.Document), "structures", 0, "items")); diff != "" {
		t.Fatalf("range items mismatch (-want +got):\n%s", diff)
	}
}

func TestAnnotationBodies(t *testing.T) {
	res := upgradeFixture(t, "manifest-annos.json", upgrade.DefaultOptions())
	annos := testsupport.Array(t, any(res.Document), "items", 0, "items", 0, "items", 0, "items")
	if len(annos) != 5 {
		t.Fatalf("expected 5 annotations, got %d", len(annos))
	}
	canvas := fixtures + "/canvas/1/c1.json"

	t.Run("image", func(t *testing.T) {
		anno := testsupport.Object(t, annos, 0)
		if anno["motivation"] != "painting" {
			t.Fatalf("default motivation = %v", anno["motivation"])
		}
		if anno["target"] != canvas {
			t.Fatalf("target = %v", anno["target"])
		}
		if got := testsupport.String(t, anno, "body", "id"); got != fixtures+"/resources/page1-full.png" {
			t.Fatalf("body id = %q", got)
		}
	})

	t.Run("specific resource", func(t *testing.T) {
		body := testsupport.Object(t, annos, 1, "body")
		want := map[string]any{
			"type":   "SpecificResource",
			"source": map[string]any{"id": fixtures + "/resources/page1-full.png", "type": "Image"},
			"selector": map[string]any{
				"type":  "FragmentSelector",
				"value": "xywh=0,0,600,900",
			},
		}
		if diff := cmp.Diff(want, body); diff != "" {
			t.Fatalf("body mismatch (-want +got):\n%s", diff)
		}
		if _, ok := body["full"]; ok {
			t.Fatal("full survived the upgrade")
		}
	})

	t.Run("textual body", func(t *testing.T) {
		body := testsupport.Object(t, annos, 2, "body")
		want := map[string]any{
			"type":     "TextualBody",
			"value":    "Text of the page",
			"format":   "text/plain",
			"language": []any{"en"},
		}
		if diff := cmp.Diff(want, body); diff != "" {
			t.Fatalf("body mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("choice", func(t *testing.T) {
		body := testsupport.Object(t, annos, 3, "body")
		if body["type"] != "Choice" {
			t.Fatalf("type = %v, want Choice", body["type"])
		}
		items := testsupport.Array(t, body, "items")
		if len(items) != 2 {
			t.Fatalf("expected 2 choice items, got %d", len(items))
		}
		if got := testsupport.String(t, items, 0, "id"); got != fixtures+"/resources/page1-full.png" {
			t.Fatalf("default option first, got %q", got)
		}
		if diff := cmp.Diff(none("Infrared"), testsupport.Dig(t, items, 1, "label")); diff != "" {
			t.Fatalf("second option label mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("stylesheet", func(t *testing.T) {
		anno := testsupport.Object(t, annos, 4)
		wantSheet := map[string]any{"type": "CssStylesheet", "value": ".red {color: red;}"}
		if diff := cmp.Diff(wantSheet, anno["stylesheet"]); diff != "" {
			t.Fatalf("stylesheet mismatch (-want +got):\n%s", diff)
		}
		if got := testsupport.String(t, anno, "body", "styleClass"); got != "red" {
			t.Fatalf("styleClass = %q", got)
		}
		if got := testsupport.String(t, anno, "target", "source"); got != canvas {
			t.Fatalf("target source = %q", got)
		}
		if got := testsupport.String(t, anno, "target", "type"); got != "SpecificResource" {
			t.Fatalf("target type = %q", got)
		}
	})
}

func TestOtherContentWithoutDeref(t *testing.T) {
	res := upgradeFixture(t, "manifest-annos.json", upgrade.DefaultOptions())
	pages := testsupport.Array(t, any(res.Document), "items", 0, "items", 0, "annotations")
	want := []any{map[string]any{
		"id":    "http://example.org/iiif/book1/list/p1.json",
		"type":  "AnnotationPage",
		"label": none("Transcription"),
	}}
	if diff := cmp.Diff(want, pages); diff != "" {
		t.Fatalf("annotations mismatch (-want +got):\n%s", diff)
	}
}

func TestOtherContentDeref(t *testing.T) {
	fetcher := newFakeFetcher(t, map[string]string{
		"http://example.org/iiif/book1/list/p1.json": "annotation-list.json",
	})
	opts := upgrade.DefaultOptions()
	opts.DerefLinks = true
	res := upgradeFixture(t, "manifest-annos.json", opts, upgrade.WithFetcher(fetcher))

	page := testsupport.Object(t, any(res.Document), "items", 0, "items", 0, "annotations", 0)
	if page["type"] != "AnnotationPage" {
		t.Fatalf("type = %v", page["type"])
	}
	if got := testsupport.String(t, page, "items", 0, "body", "value"); got != "Chapter 1" {
		t.Fatalf("dereferenced body value = %q", got)
	}
	wantPartOf := []any{map[string]any{
		"id":    "http://example.org/iiif/book1/layer/transcription",
		"type":  "AnnotationCollection",
		"label": none("Diplomatic Transcription"),
	}}
	if diff := cmp.Diff(wantPartOf, page["partOf"]); diff != "" {
		t.Fatalf("partOf mismatch (-want +got):\n%s", diff)
	}
	if fetcher.calls["http://example.org/iiif/book1/list/p1.json"] != 1 {
		t.Fatalf("expected one fetch, got %v", fetcher.calls)
	}
}

func TestDerefFailureKeepsReference(t *testing.T) {
	opts := upgrade.DefaultOptions()
	opts.DerefLinks = true
	res := upgradeFixture(t, "manifest-annos.json", opts)
	if !hasWarning(res, upgrade.WarnDerefFailed) {
		t.Fatal("expected a deref_failed warning")
	}
	if got := testsupport.String(t, any(res.Document), "items", 0, "items", 0, "annotations", 0, "id"); got != "http://example.org/iiif/book1/list/p1.json" {
		t.Fatalf("reference lost: %q", got)
	}
	if len(res.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", res.Failures)
	}
}

func TestServices(t *testing.T) {
	res := upgradeFixture(t, "manifest-services.json", upgrade.DefaultOptions())
	doc := any(res.Document)

	search := testsupport.Object(t, doc, "service", 0)
	if search["type"] != "SearchService1" {
		t.Fatalf("search type = %v", search["type"])
	}
	if search["id"] != "http://example.org/services/identifier/search" {
		t.Fatalf("search id = %v", search["id"])
	}
	if got := testsupport.String(t, search, "service", 0, "type"); got != "AutoCompleteService1" {
		t.Fatalf("autocomplete type = %q", got)
	}
	if !hasWarning(res, upgrade.WarnUnknownService) {
		t.Fatal("expected an unknown_service warning for the geojson service")
	}
	if got := testsupport.String(t, doc, "service", 1, "type"); got != "Feature" {
		t.Fatalf("unknown service type = %q, want it kept", got)
	}

	image := testsupport.Object(t, doc, "items", 0, "items", 0, "items", 0, "items", 0, "body", "service", 0)
	if image["type"] != "ImageService2" || image["profile"] != "level1" {
		t.Fatalf("image service = %v", image)
	}
	login := testsupport.Object(t, image, "service", 0)
	if login["type"] != "AuthCookieService1" {
		t.Fatalf("login type = %v", login["type"])
	}
	chain := testsupport.Array(t, login, "service")
	if len(chain) != 2 {
		t.Fatalf("expected token and logout services, got %d", len(chain))
	}
	if got := testsupport.String(t, chain, 0, "type"); got != "AuthTokenService1" {
		t.Fatalf("token type = %q", got)
	}
	if got := testsupport.String(t, chain, 1, "type"); got != "AuthLogoutService1" {
		t.Fatalf("logout type = %q", got)
	}

	thumb := testsupport.Object(t, doc, "items", 0, "items", 0, "thumbnail", 0, "service", 0)
	if thumb["type"] != "ImageService2" {
		t.Fatalf("thumbnail service type = %v", thumb["type"])
	}

	var walk func(v any, path string)
	walk = func(v any, path string) {
		switch val := v.(type) {
		case map[string]any:
			for k, child := range val {
				if k == "@context" && path != "" {
					t.Errorf("%s: nested @context %v", path, child)
				}
				walk(child, path+"/"+k)
			}
		case []any:
			for i, child := range val {
				walk(child, fmt.Sprintf("%s/%d", path, i))
			}
		}
	}
	walk(doc, "")
}

func TestCollectionMembers(t *testing.T) {
	res := upgradeFixture(t, "collection-basic.json", upgrade.DefaultOptions())
	doc := any(res.Document)

	if got := testsupport.String(t, doc, "type"); got != "Collection" {
		t.Fatalf("type = %q", got)
	}
	items := testsupport.Array(t, doc, "items")
	var types []string
	for i := range items {
		types = append(types, testsupport.String(t, items, i, "type"))
	}
	if diff := cmp.Diff([]string{"Collection", "Collection", "Manifest"}, types); diff != "" {
		t.Fatalf("item order mismatch (-want +got):\n%s", diff)
	}
	members := testsupport.Array(t, items, 0, "items")
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}
	if diff := cmp.Diff([]any{"multi-part"}, testsupport.Dig(t, members, 0, "behavior")); diff != "" {
		t.Fatalf("behavior mismatch (-want +got):\n%s", diff)
	}
	if _, ok := testsupport.Object(t, members, 1)["items"]; ok {
		t.Fatal("embedded manifest reference gained items")
	}
	if _, ok := testsupport.Object(t, items, 1)["items"]; ok {
		t.Fatal("collection without members gained items")
	}
	for _, key := range []string{"collections", "manifests", "members"} {
		if _, ok := res.Document[key]; ok {
			t.Fatalf("%s survived the upgrade", key)
		}
	}
}

func TestDescriptionAsMetadata(t *testing.T) {
	opts := upgrade.DefaultOptions()
	opts.DescriptionIsMetadata = true
	res := upgradeFixture(t, "manifest-basic.json", opts)

	if _, ok := res.Document["summary"]; ok {
		t.Fatal("summary emitted alongside the Description row")
	}
	metadata := testsupport.Array(t, any(res.Document), "metadata")
	last := metadata[len(metadata)-1]
	want := map[string]any{
		"label": none("Description"),
		"value": none("This is a description of the Manifest"),
	}
	if diff := cmp.Diff(want, last); diff != "" {
		t.Fatalf("description row mismatch (-want +got):\n%s", diff)
	}
}

func TestRelatedAsMetadata(t *testing.T) {
	opts := upgrade.DefaultOptions()
	opts.RelatedIsMetadata = true
	res := upgradeFixture(t, "manifest-basic.json", opts)

	if _, ok := res.Document["homepage"]; ok {
		t.Fatal("homepage emitted alongside the Related row")
	}
	metadata := testsupport.Array(t, any(res.Document), "metadata")
	want := map[string]any{
		"label": none("Related"),
		"value": none(`<a href="http://example.org/collections/book1/">http://example.org/collections/book1/</a>`),
	}
	if diff := cmp.Diff(want, metadata[len(metadata)-1]); diff != "" {
		t.Fatalf("related row mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultLanguage(t *testing.T) {
	opts := upgrade.DefaultOptions()
	opts.DefaultLanguage = "en"
	res := upgradeFixture(t, "manifest-basic.json", opts)
	want := map[string]any{"en": []any{"Manifest Label"}}
	if diff := cmp.Diff(want, res.Document["label"]); diff != "" {
		t.Fatalf("label mismatch (-want +got):\n%s", diff)
	}
}

func TestExtensionProperties(t *testing.T) {
	t.Run("dropped by default", func(t *testing.T) {
		res := upgradeFixture(t, "manifest-basic.json", upgrade.DefaultOptions())
		if _, ok := res.Document["dc:creator"]; ok {
			t.Fatal("extension property kept")
		}
		if !hasWarning(res, upgrade.WarnExtensionDropped) {
			t.Fatal("expected an extension_dropped warning")
		}
	})

	t.Run("kept with ext_ok", func(t *testing.T) {
		opts := upgrade.DefaultOptions()
		opts.ExtOK = true
		res := upgradeFixture(t, "manifest-basic.json", opts)
		if got := res.Document["dc:creator"]; got != "Anonymous" {
			t.Fatalf("dc:creator = %v", got)
		}
		if hasWarning(res, upgrade.WarnExtensionDropped) {
			t.Fatal("unexpected extension_dropped warning")
		}
	})
}

func malformedManifest() map[string]any {
	return map[string]any{
		"@context": "http://iiif.io/api/presentation/2/context.json",
		"@id":      "https://example.org/m",
		"@type":    "sc:Manifest",
		"label":    "Broken",
		"metadata": []any{
			map[string]any{"label": "Good", "value": "kept"},
			map[string]any{"label": "Bad", "value": 42},
		},
		"structures": []any{
			map[string]any{"@id": "https://example.org/r/1", "@type": "sc:Range", "canvases": []any{true}},
			map[string]any{"@id": "https://example.org/r/2", "@type": "sc:Range", "canvases": []any{"https://example.org/c/1"}},
		},
	}
}

func TestErrorPolicyContinue(t *testing.T) {
	res, err := newUpgrader(upgrade.DefaultOptions()).Process(context.Background(), malformedManifest())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := len(testsupport.Array(t, any(res.Document), "metadata")); got != 1 {
		t.Fatalf("expected the bad metadata row omitted, got %d rows", got)
	}
	structures := testsupport.Array(t, any(res.Document), "structures")
	if len(structures) != 1 || testsupport.String(t, structures, 0, "id") != "https://example.org/r/2" {
		t.Fatalf("expected only the valid range, got %v", structures)
	}
	if len(res.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %d: %v", len(res.Failures), res.Failures)
	}
	// Containment runs before the descriptive steps.
	if got := res.Failures[0].Path; got != "/structures/0/canvases/0" {
		t.Fatalf("failure path = %q", got)
	}
	if !errors.Is(res.Failures[0], services.ErrUnrecognizedResource) {
		t.Fatalf("range failure = %v", res.Failures[0])
	}
	if got := res.Failures[1].Path; got != "/metadata/1/value" {
		t.Fatalf("failure path = %q", got)
	}
	if !errors.Is(res.Failures[1], services.ErrMalformedLanguageValue) {
		t.Fatalf("metadata failure = %v", res.Failures[1])
	}
}

func TestErrorPolicyAbort(t *testing.T) {
	opts := upgrade.DefaultOptions()
	opts.ErrorPolicy = upgrade.PolicyAbort
	doc := malformedManifest()
	delete(doc, "structures")
	res, err := newUpgrader(opts).Process(context.Background(), doc)
	if err == nil {
		t.Fatalf("expected an error, got document %v", res.Document)
	}
	if !errors.Is(err, services.ErrMalformedLanguageValue) {
		t.Fatalf("error = %v, want malformed language value", err)
	}
	var pe *upgrade.PathError
	if !errors.As(err, &pe) || pe.Path != "/metadata/1/value" {
		t.Fatalf("error path = %v", err)
	}
	if code := services.ExitCode(err); code == 0 {
		t.Fatal("expected a non-zero exit code")
	}
}

func TestAlreadyUpgradedIsUnchanged(t *testing.T) {
	first := upgradeFixture(t, "manifest-basic.json", upgrade.DefaultOptions())
	again, err := newUpgrader(upgrade.DefaultOptions()).Process(context.Background(), first.Document)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if diff := cmp.Diff(first.Document, again.Document); diff != "" {
		t.Fatalf("second pass changed the document (-first +second):\n%s", diff)
	}
	if !hasWarning(again, upgrade.WarnAlreadyUpgraded) {
		t.Fatal("expected an already_upgraded warning")
	}
}

func TestInputIsNotModified(t *testing.T) {
	doc := malformedManifest()
	before := malformedManifest()
	if _, err := newUpgrader(upgrade.DefaultOptions()).Process(context.Background(), doc); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if diff := cmp.Diff(before, doc); diff != "" {
		t.Fatalf("input modified (-before +after):\n%s", diff)
	}
}

func TestVersionDetection(t *testing.T) {
	doc := map[string]any{"@context": "http://example.org/other/context.json", "@id": "https://example.org/m", "label": "x"}

	t.Run("lenient", func(t *testing.T) {
		res, err := newUpgrader(upgrade.DefaultOptions()).Process(context.Background(), doc)
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		if !hasWarning(res, upgrade.WarnUnrecognizedSource) {
			t.Fatal("expected an unrecognized_version warning")
		}
		if res.Document["type"] != "Manifest" {
			t.Fatalf("root type = %v", res.Document["type"])
		}
	})

	t.Run("strict", func(t *testing.T) {
		opts := upgrade.DefaultOptions()
		opts.StrictVersion = true
		_, err := newUpgrader(opts).Process(context.Background(), doc)
		if !errors.Is(err, services.ErrUnsupportedSourceVersion) {
			t.Fatalf("error = %v, want unsupported source version", err)
		}
	})
}

func TestMissingIDIsMinted(t *testing.T) {
	doc := map[string]any{
		"@context": "http://iiif.io/api/presentation/2/context.json",
		"@type":    "sc:Manifest",
		"label":    "No id",
	}
	res, err := newUpgrader(upgrade.DefaultOptions()).Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !hasWarning(res, upgrade.WarnMintedID) {
		t.Fatal("expected a minted_id warning")
	}
	if res.Document["id"] == "" || res.Document["id"] == nil {
		t.Fatal("root id not minted")
	}
}

func TestManifestWithoutSequences(t *testing.T) {
	doc := map[string]any{
		"@context": "http://iiif.io/api/presentation/2/context.json",
		"@id":      "https://example.org/m",
		"@type":    "sc:Manifest",
	}
	res, err := newUpgrader(upgrade.DefaultOptions()).Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := []any{map[string]any{"type": "Sequence", "items": []any{}}}
	if diff := cmp.Diff(want, res.Document["items"]); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessCachedMissingFile(t *testing.T) {
	_, err := newUpgrader(upgrade.DefaultOptions()).ProcessCached(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, services.ErrInputNotFound) {
		t.Fatalf("error = %v, want input not found", err)
	}
}

func TestProcessCachedRejectsNonObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.json")
	if err := os.WriteFile(path, []byte(`[1, 2]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := newUpgrader(upgrade.DefaultOptions()).ProcessCached(context.Background(), path); err == nil {
		t.Fatal("expected an error for a non-object document")
	}
}

func TestProcessURIUsesCache(t *testing.T) {
	const uri = "https://example.org/iiif/book1/manifest"
	fetcher := newFakeFetcher(t, map[string]string{uri: "manifest-basic.json"})
	cache := doccache.NewMemory()
	u := newUpgrader(upgrade.DefaultOptions(), upgrade.WithFetcher(fetcher), upgrade.WithCache(cache))

	first, err := u.ProcessURI(context.Background(), uri)
	if err != nil {
		t.Fatalf("first ProcessURI: %v", err)
	}
	if first.Cached {
		t.Fatal("first result reported as cached")
	}
	second, err := u.ProcessURI(context.Background(), uri)
	if err != nil {
		t.Fatalf("second ProcessURI: %v", err)
	}
	if !second.Cached {
		t.Fatal("second result not served from cache")
	}
	if fetcher.calls[uri] != 1 {
		t.Fatalf("expected one fetch, got %d", fetcher.calls[uri])
	}
	if got, want := testsupport.String(t, any(second.Document), "id"), testsupport.String(t, any(first.Document), "id"); got != want {
		t.Fatalf("cached id = %q, want %q", got, want)
	}

	opts := upgrade.DefaultOptions()
	opts.DescriptionIsMetadata = true
	other := newUpgrader(opts, upgrade.WithFetcher(fetcher), upgrade.WithCache(cache))
	third, err := other.ProcessURI(context.Background(), uri)
	if err != nil {
		t.Fatalf("third ProcessURI: %v", err)
	}
	if third.Cached {
		t.Fatal("different options must not share cache entries")
	}
}

func TestProcessURIFetchError(t *testing.T) {
	_, err := newUpgrader(upgrade.DefaultOptions()).ProcessURI(context.Background(), "https://example.org/missing")
	if !errors.Is(err, services.ErrRetrieval) {
		t.Fatalf("error = %v, want retrieval error", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Upgrade.ErrorPolicy = " Abort "
	cfg.Upgrade.DefaultLanguage = "de"
	opts := upgrade.OptionsFromConfig(cfg.Upgrade)
	if opts.ErrorPolicy != upgrade.PolicyAbort {
		t.Fatalf("policy = %q", opts.ErrorPolicy)
	}
	if opts.DefaultLanguage != "de" {
		t.Fatalf("default language = %q", opts.DefaultLanguage)
	}
	if opts.Fingerprint() == upgrade.DefaultOptions().Fingerprint() {
		t.Fatal("fingerprint ignores changed options")
	}
}

func TestBodyCSSBecomesStylesheet(t *testing.T) {
	doc := map[string]any{
		"@context": "http://iiif.io/api/presentation/2/context.json",
		"@id":      "https://example.org/m",
		"@type":    "sc:Manifest",
		"sequences": []any{map[string]any{
			"@type": "sc:Sequence",
			"canvases": []any{map[string]any{
				"@id":    "https://example.org/c1",
				"@type":  "sc:Canvas",
				"width":  100,
				"height": 100,
				"images": []any{map[string]any{
					"@id":        "https://example.org/a1",
					"@type":      "oa:Annotation",
					"motivation": "sc:painting",
					"on":         "https://example.org/c1",
					"resource": map[string]any{
						"@type": "cnt:ContentAsText",
						"chars": "Red",
						"style": "red",
						"css":   ".red {color: red;}",
					},
				}},
			}},
		}},
	}
	res, err := newUpgrader(upgrade.DefaultOptions()).Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	anno := testsupport.Object(t, any(res.Document), "items", 0, "items", 0, "items", 0)
	want := map[string]any{"type": "CssStylesheet", "value": ".red {color: red;}"}
	if diff := cmp.Diff(want, anno["stylesheet"]); diff != "" {
		t.Fatalf("stylesheet mismatch (-want +got):\n%s", diff)
	}
	if got := testsupport.String(t, anno, "body", "styleClass"); got != "red" {
		t.Fatalf("styleClass = %q", got)
	}
	if hasWarning(res, upgrade.WarnExtensionDropped) {
		t.Fatalf("css reported as an extension: %v", res.Warnings)
	}
}

func TestRangeCycleBesideRoot(t *testing.T) {
	doc := map[string]any{
		"@context": "http://iiif.io/api/presentation/2/context.json",
		"@id":      "https://example.org/m",
		"@type":    "sc:Manifest",
		"structures": []any{
			map[string]any{"@id": "https://example.org/r/a", "@type": "sc:Range", "ranges": []any{"https://example.org/r/b"}},
			map[string]any{"@id": "https://example.org/r/b", "@type": "sc:Range", "ranges": []any{"https://example.org/r/a"}},
			map[string]any{"@id": "https://example.org/r/c", "@type": "sc:Range", "canvases": []any{"https://example.org/c1"}},
		},
	}
	res, err := newUpgrader(upgrade.DefaultOptions()).Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", res.Failures)
	}
	if !hasWarning(res, upgrade.WarnRangeCycle) {
		t.Fatal("expected a range_cycle warning")
	}
	structures := testsupport.Array(t, any(res.Document), "structures")
	if len(structures) != 2 {
		t.Fatalf("expected 2 top-level ranges, got %d", len(structures))
	}
	if got := testsupport.String(t, structures, 0, "id"); got != "https://example.org/r/a" {
		t.Fatalf("first range = %q", got)
	}
	if got := testsupport.String(t, structures, 0, "items", 0, "id"); got != "https://example.org/r/b" {
		t.Fatalf("embedded range = %q", got)
	}
	if got := testsupport.String(t, structures, 1, "id"); got != "https://example.org/r/c" {
		t.Fatalf("second range = %q", got)
	}
}

func TestMisplacedKnownPropertyDroppedWithExtensions(t *testing.T) {
	opts := upgrade.DefaultOptions()
	opts.ExtOK = true
	doc := map[string]any{
		"@context": "http://iiif.io/api/presentation/2/context.json",
		"@id":      "https://example.org/m",
		"@type":    "sc:Manifest",
		"sequences": []any{map[string]any{
			"@type": "sc:Sequence",
			"canvases": []any{map[string]any{
				"@id":    "https://example.org/c1",
				"@type":  "sc:Canvas",
				"width":  100,
				"height": 100,
				"chars":  "stray",
			}},
		}},
	}
	res, err := newUpgrader(opts).Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	canvas := testsupport.Object(t, any(res.Document), "items", 0)
	for _, key := range []string{"chars", "value"} {
		if _, ok := canvas[key]; ok {
			t.Fatalf("canvas kept %q: %v", key, canvas)
		}
	}
	if !hasWarning(res, upgrade.WarnMisplacedProperty) {
		t.Fatalf("expected a misplaced_property warning, got %v", res.Warnings)
	}
}

func TestFingerprintIncludesMintBase(t *testing.T) {
	a := upgrade.DefaultOptions()
	b := upgrade.DefaultOptions()
	b.MintBase = "https://other.example.org/minted/"
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("fingerprint ignores the mint base")
	}
}
