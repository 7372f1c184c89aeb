package docio

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"preziup/internal/services"
)

func TestDecodeKeepsNumbers(t *testing.T) {
	doc, err := DecodeObject([]byte(`{"width": 6000, "ratio": 1.25}`))
	if err != nil {
		t.Fatalf("DecodeObject returned error: %v", err)
	}
	if got := doc["width"]; got != json.Number("6000") {
		t.Fatalf("width = %#v", got)
	}
	out, err := Encode(doc, EncodeOptions{Format: FormatJSON})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if string(out) != `{"ratio":1.25,"width":6000}`+"\n" {
		t.Fatalf("unexpected encoding %s", out)
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string]struct {
		input  string
		marker error
	}{
		"invalid json":  {`{"a":`, services.ErrValidation},
		"trailing data": {`{} {}`, services.ErrValidation},
		"array root":    {`[1,2]`, services.ErrUnrecognizedResource},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeObject([]byte(tc.input))
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
		})
	}
}

func TestEncodeIndentAndHTML(t *testing.T) {
	doc := map[string]any{"value": []any{`<a href="x">y</a>`}}
	out, err := Encode(doc, EncodeOptions{Format: FormatJSON, Indent: 2})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	want := "{\n  \"value\": [\n    \"<a href=\\\"x\\\">y</a>\"\n  ]\n}\n"
	if diff := cmp.Diff(want, string(out)); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestEncodeYAML(t *testing.T) {
	doc := map[string]any{"id": "m1", "type": "Manifest", "label": map[string]any{"@none": []any{"Label"}}}
	out, err := Encode(doc, EncodeOptions{Format: FormatYAML})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	text := string(out)
	for _, want := range []string{"id: m1", "type: Manifest", "Label"} {
		if !strings.Contains(text, want) {
			t.Fatalf("yaml output missing %q:\n%s", want, text)
		}
	}
}

func TestPatchesApplyInOrder(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")
	if err := os.WriteFile(first, []byte(`[{"op":"add","path":"/rights","value":[]}]`), 0o644); err != nil {
		t.Fatalf("write patch: %v", err)
	}
	if err := os.WriteFile(second, []byte(`[{"op":"add","path":"/rights/-","value":"http://rightsstatements.org/vocab/NoC-US/1.0/"}]`), 0o644); err != nil {
		t.Fatalf("write patch: %v", err)
	}
	patches, err := LoadPatches([]string{first, second})
	if err != nil {
		t.Fatalf("LoadPatches returned error: %v", err)
	}
	if patches[0].Len() != 1 {
		t.Fatalf("patch length = %d", patches[0].Len())
	}
	out, err := Encode(map[string]any{"id": "m1"}, EncodeOptions{Format: FormatJSON, Patches: patches})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	want := map[string]any{"id": "m1", "rights": []any{"http://rightsstatements.org/vocab/NoC-US/1.0/"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("patched document mismatch (-want +got):\n%s", diff)
	}
}

func TestPatchErrors(t *testing.T) {
	if _, err := LoadPatches([]string{filepath.Join(t.TempDir(), "missing.json")}); !errors.Is(err, services.ErrInputNotFound) {
		t.Fatalf("expected input-not-found, got %v", err)
	}
	if _, err := DecodePatch("inline", []byte(`{"op":"add"}`)); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	p, err := DecodePatch("inline", []byte(`[{"op":"remove","path":"/missing"}]`))
	if err != nil {
		t.Fatalf("DecodePatch returned error: %v", err)
	}
	if _, err := ApplyPatches([]byte(`{}`), []Patch{p}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "yml": FormatYAML, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
