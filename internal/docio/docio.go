// Package docio decodes and encodes Presentation documents: JSON input,
// JSON or YAML output, and RFC 6902 patches applied to upgraded output.
package docio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"

	"preziup/internal/services"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", services.Wrap(services.ErrConfiguration, "output", "format", fmt.Sprintf("unsupported format %q", s), nil)
}

// Extension returns the file extension for the format.
func (f Format) Extension() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// Decode parses one JSON value. Numbers are kept as json.Number so that
// integers and decimals round-trip unchanged.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, services.Wrap(services.ErrValidation, "decode", "", "invalid JSON", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, services.Wrap(services.ErrValidation, "decode", "", "trailing data after JSON document", nil)
	}
	return v, nil
}

// DecodeObject parses a document whose root must be a JSON object.
func DecodeObject(data []byte) (map[string]any, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, services.Wrap(services.ErrUnrecognizedResource, "decode", "", fmt.Sprintf("document root is %T, not an object", v), nil)
	}
	return doc, nil
}

// EncodeOptions controls Encode.
type EncodeOptions struct {
	Format  Format
	Indent  int
	Patches []Patch
}

// Encode renders doc, applying patches to the JSON form first.
func Encode(doc any, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	data := bytes.TrimSpace(buf.Bytes())

	if len(opts.Patches) > 0 {
		patched, err := ApplyPatches(data, opts.Patches)
		if err != nil {
			return nil, err
		}
		data = patched
	}

	switch opts.Format {
	case FormatYAML:
		out, err := yaml.JSONToYAML(data)
		if err != nil {
			return nil, fmt.Errorf("convert to yaml: %w", err)
		}
		return out, nil
	case FormatJSON, "":
		if opts.Indent <= 0 {
			return append(data, '\n'), nil
		}
		var out bytes.Buffer
		if err := json.Indent(&out, data, "", strings.Repeat(" ", opts.Indent)); err != nil {
			return nil, fmt.Errorf("indent document: %w", err)
		}
		out.WriteByte('\n')
		return out.Bytes(), nil
	}
	return nil, services.Wrap(services.ErrConfiguration, "output", "encode", fmt.Sprintf("unsupported format %q", opts.Format), nil)
}
