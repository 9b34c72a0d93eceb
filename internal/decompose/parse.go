// Package decompose turns a parent story into child task descriptors. It
// holds the tolerant response parser, the model-backed decomposer and the
// per-parent descriptor cache.
package decompose

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

// itemSchema accepts any object whose known fields have the right types.
// Entries use "title", or "name" when the model drifts.
const itemSchema = `{
  "type": "object",
  "properties": {
    "title":       {"type": "string"},
    "name":        {"type": "string"},
    "description": {"type": ["string", "null"]}
  }
}`

var item = jsonschema.MustCompileString("descriptor-item.json", itemSchema)

// ParseDescriptors extracts descriptors from free-form model output. The
// first array-shaped substring that decodes is used; entries that are not
// objects, fail type checks or lack a usable title are dropped. At most max
// descriptors are returned when max > 0. Anything unparseable yields an
// empty list.
func ParseDescriptors(text string, max int) []types.ChildDescriptor {
	raw, ok := firstArray(text)
	if !ok {
		return nil
	}
	var out []types.ChildDescriptor
	for _, v := range raw {
		d, ok := descriptor(v)
		if !ok {
			continue
		}
		out = append(out, d)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// firstArray decodes the first JSON array found in text. The greedy span
// from the first '[' to the last ']' is tried first, then each '[' in turn
// with trailing text ignored.
func firstArray(text string) ([]any, bool) {
	start := strings.Index(text, "[")
	if start < 0 {
		return nil, false
	}
	if end := strings.LastIndex(text, "]"); end > start {
		if arr, ok := decodeArray(text[start:end+1], true); ok {
			return arr, true
		}
	}
	for i := start; i < len(text); i++ {
		if text[i] != '[' {
			continue
		}
		if arr, ok := decodeArray(text[i:], false); ok {
			return arr, true
		}
	}
	return nil, false
}

func decodeArray(s string, whole bool) ([]any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if whole && dec.More() {
		return nil, false
	}
	arr, ok := v.([]any)
	return arr, ok
}

func descriptor(v any) (types.ChildDescriptor, bool) {
	if err := item.Validate(v); err != nil {
		return types.ChildDescriptor{}, false
	}
	obj := v.(map[string]any)
	title, _ := obj["title"].(string)
	if strings.TrimSpace(title) == "" {
		title, _ = obj["name"].(string)
	}
	desc, _ := obj["description"].(string)
	d := types.ChildDescriptor{Title: title, Description: desc}.Normalize()
	if d.Validate() != nil {
		return types.ChildDescriptor{}, false
	}
	return d, true
}

// decodeCached parses a cache file: a JSON array of descriptors, filtered
// the same way as model output.
func decodeCached(data []byte) ([]types.ChildDescriptor, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]types.ChildDescriptor, 0, len(arr))
	for _, e := range arr {
		if d, ok := descriptor(e); ok {
			out = append(out, d)
		}
	}
	return out, true
}
