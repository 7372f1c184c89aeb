package docio

import (
	"fmt"
	"os"

	jsonpatch "github.com/evanphx/json-patch"

	"preziup/internal/services"
)

// Patch is a decoded RFC 6902 document with the file it came from.
type Patch struct {
	Source string
	ops    jsonpatch.Patch
}

// DecodePatch parses one patch document.
func DecodePatch(source string, data []byte) (Patch, error) {
	ops, err := jsonpatch.DecodePatch(data)
	if err != nil {
		return Patch{}, services.Wrap(services.ErrConfiguration, "patches", "decode", source, err)
	}
	return Patch{Source: source, ops: ops}, nil
}

// LoadPatches reads and decodes patch files in order.
func LoadPatches(paths []string) ([]Patch, error) {
	patches := make([]Patch, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, services.Wrap(services.ErrInputNotFound, "patches", "read", path, err)
		}
		p, err := DecodePatch(path, data)
		if err != nil {
			return nil, err
		}
		patches = append(patches, p)
	}
	return patches, nil
}

// Len reports the number of operations in the patch.
func (p Patch) Len() int {
	return len(p.ops)
}

// ApplyPatches applies each patch in turn to a JSON document.
func ApplyPatches(data []byte, patches []Patch) ([]byte, error) {
	for _, p := range patches {
		out, err := p.ops.Apply(data)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "patches", "apply", p.Source, err)
		}
		data = out
	}
	return data, nil
}

// String describes the patch for logs.
func (p Patch) String() string {
	return fmt.Sprintf("%s (%d ops)", p.Source, len(p.ops))
}
