// Package notebook builds and merges the per-parent notebook documents
// (nbformat 4). Merging is append-only: user cells and existing child
// sections are never removed, reordered or rewritten. Only the header cell
// may be replaced.
package notebook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

// structureSchema is the minimum a document needs to be merged into: an
// object with a list of object cells.
const structureSchema = `{
  "type": "object",
  "required": ["cells"],
  "properties": {
    "cells": {
      "type": "array",
      "items": {"type": "object"}
    }
  }
}`

var structure = jsonschema.MustCompileString("notebook-structure.json", structureSchema)

// idNamespace seeds deterministic cell ids.
var idNamespace = uuid.MustParse("6f1c3e0a-8d2b-4c55-9a7e-2b1f0c9d4e31")

// Notebook is a decoded document. Top-level fields other than cells are
// kept as decoded.
type Notebook struct {
	raw   map[string]any
	Cells []*Cell

	ids map[string]bool
}

// New returns an empty notebook with the standard metadata.
func New() *Notebook {
	nb := &Notebook{raw: map[string]any{}, ids: map[string]bool{}}
	nb.repair()
	return nb
}

// Parse decodes data. It returns an error wrapping ErrUnmergeable when the
// data is not JSON or lacks a usable cell list.
func Parse(data []byte) (*Notebook, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", types.ErrUnmergeable, types.ErrMalformedInput, err)
	}
	if err := structure.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrUnmergeable, schemaMessage(err))
	}

	obj := doc.(map[string]any)
	nb := &Notebook{raw: obj, ids: map[string]bool{}}
	for i, c := range obj["cells"].([]any) {
		cell := &Cell{raw: c.(map[string]any)}
		cell.classify(i == 0)
		if id := cell.ID(); id != "" {
			nb.ids[id] = true
		}
		nb.Cells = append(nb.Cells, cell)
	}
	return nb, nil
}

// schemaMessage returns the first leaf message of a validation error.
func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + ve.Message
}

// Load reads and parses the notebook at path.
func Load(path string) (*Notebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// repair fills in structural fields older or partial writers left out. It
// reports whether anything was added.
func (nb *Notebook) repair() bool {
	changed := false
	md, ok := nb.raw["metadata"].(map[string]any)
	if !ok {
		md = map[string]any{}
		nb.raw["metadata"] = md
		changed = true
	}
	if _, ok := md["kernelspec"]; !ok {
		md["kernelspec"] = map[string]any{
			"display_name": "Python 3",
			"language":     "python",
			"name":         "python3",
		}
		changed = true
	}
	if _, ok := md["language_info"]; !ok {
		md["language_info"] = map[string]any{"name": "python"}
		changed = true
	}
	if _, ok := nb.raw["nbformat"]; !ok {
		nb.raw["nbformat"] = 4
		changed = true
	}
	if _, ok := nb.raw["nbformat_minor"]; !ok {
		nb.raw["nbformat_minor"] = 5
		changed = true
	}
	return changed
}

// newID returns an unused 8-hex-digit cell id derived from key, falling back
// to a random id on collision.
func (nb *Notebook) newID(key string) string {
	id := shortID(uuid.NewSHA1(idNamespace, []byte(key)))
	for nb.ids[id] {
		id = shortID(uuid.New())
	}
	nb.ids[id] = true
	return id
}

func shortID(u uuid.UUID) string {
	return strings.ReplaceAll(u.String(), "-", "")[:8]
}

// append adds a cell with a fresh id.
func (nb *Notebook) append(c *Cell, key string) {
	c.setID(nb.newID(key))
	nb.Cells = append(nb.Cells, c)
}

// ensureIDs assigns ids to cells that have none and returns how many it
// assigned.
func (nb *Notebook) ensureIDs(keyPrefix string) int {
	added := 0
	for i, c := range nb.Cells {
		if c.ID() != "" {
			continue
		}
		c.setID(nb.newID(fmt.Sprintf("%s/cell/%d/%s", keyPrefix, i, c.Source())))
		added++
	}
	return added
}

// Sections returns the child numbers that already have a section heading.
func (nb *Notebook) Sections() map[int]bool {
	m := make(map[int]bool)
	for _, c := range nb.Cells {
		if c.Kind == KindSection {
			m[c.Child] = true
		}
	}
	return m
}

func (nb *Notebook) hasOverview() bool {
	for _, c := range nb.Cells {
		if c.Kind == KindOverview {
			return true
		}
	}
	return false
}

// Marshal encodes the notebook with two-space indentation and a trailing
// newline.
func (nb *Notebook) Marshal() ([]byte, error) {
	cells := make([]any, len(nb.Cells))
	for i, c := range nb.Cells {
		cells[i] = c.raw
	}
	nb.raw["cells"] = cells

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(nb.raw); err != nil {
		return nil, fmt.Errorf("encode notebook: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the notebook to path atomically, creating parent directories.
func (nb *Notebook) Save(path string) error {
	data, err := nb.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create notebook dir: %w", err)
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}
