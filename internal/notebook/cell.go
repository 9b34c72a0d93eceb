package notebook

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind classifies a cell by the role it plays in a generated notebook.
// Cells that match no generated pattern are KindUser and are never edited.
type Kind int

const (
	KindUser Kind = iota
	KindHeader
	KindDescription
	KindOverview
	KindSection
	KindPlaceholder
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindDescription:
		return "description"
	case KindOverview:
		return "overview"
	case KindSection:
		return "section"
	case KindPlaceholder:
		return "placeholder"
	default:
		return "user"
	}
}

// Cell types.
const (
	Markdown = "markdown"
	Code     = "code"
)

// Generated cell markers.
const (
	OverviewHeading   = "## Sub-Issues Overview"
	placeholderPrefix = "# TODO: code / experiments for sub-issue #"
)

var sectionHeading = regexp.MustCompile(`^### Sub-issue #(\d+):`)

// Cell is one notebook cell. The decoded JSON object is kept whole so that
// fields this package does not know about survive a rewrite.
type Cell struct {
	raw  map[string]any
	Kind Kind

	// Child is the child issue number of a section or placeholder cell.
	Child int
}

func newCell(cellType, source string, kind Kind) *Cell {
	raw := map[string]any{"cell_type": cellType}
	switch cellType {
	case Code:
		raw["execution_count"] = nil
		raw["metadata"] = map[string]any{"language": "python"}
		raw["outputs"] = []any{}
	default:
		raw["metadata"] = map[string]any{"language": "markdown"}
	}
	c := &Cell{raw: raw, Kind: kind}
	c.SetSource(source)
	return c
}

// Type returns the cell_type field.
func (c *Cell) Type() string {
	s, _ := c.raw["cell_type"].(string)
	return s
}

// ID returns the cell id, or "" when the cell has none.
func (c *Cell) ID() string {
	s, _ := c.raw["id"].(string)
	return s
}

func (c *Cell) setID(id string) {
	c.raw["id"] = id
}

// Source returns the cell text. Sources stored as a list of lines with or
// without trailing newlines are both accepted.
func (c *Cell) Source() string {
	switch v := c.raw["source"].(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return joinSource(parts)
	default:
		return ""
	}
}

// Lines returns the cell text split into lines.
func (c *Cell) Lines() []string {
	return strings.Split(c.Source(), "\n")
}

// SetSource stores text in the list form used by nbformat: every line but
// the last keeps its newline.
func (c *Cell) SetSource(text string) {
	ls := strings.SplitAfter(text, "\n")
	if n := len(ls); n > 0 && ls[n-1] == "" {
		ls = ls[:n-1]
	}
	src := make([]any, len(ls))
	for i, l := range ls {
		src[i] = l
	}
	c.raw["source"] = src
}

func joinSource(parts []string) string {
	for i := 0; i < len(parts)-1; i++ {
		if !strings.HasSuffix(parts[i], "\n") {
			return strings.Join(parts, "\n")
		}
	}
	return strings.Join(parts, "")
}

// classify sets Kind and Child from the cell content. first marks the
// notebook's first cell, the only position a header can take.
func (c *Cell) classify(first bool) {
	c.Kind, c.Child = KindUser, 0
	switch c.Type() {
	case Markdown:
		ls := c.Lines()
		for _, l := range ls {
			t := strings.TrimSpace(l)
			if m := sectionHeading.FindStringSubmatch(t); m != nil {
				n, err := strconv.Atoi(m[1])
				if err == nil {
					c.Kind, c.Child = KindSection, n
					return
				}
			}
		}
		for _, l := range ls {
			if strings.TrimSpace(l) == OverviewHeading {
				c.Kind = KindOverview
				return
			}
		}
		if first && len(ls) > 0 && strings.HasPrefix(strings.TrimSpace(ls[0]), "# ") {
			c.Kind = KindHeader
		}
	case Code:
		src := strings.TrimSpace(c.Source())
		if strings.HasPrefix(src, placeholderPrefix) && !strings.Contains(src, "\n") {
			n, err := strconv.Atoi(strings.TrimPrefix(src, placeholderPrefix))
			if err == nil {
				c.Kind, c.Child = KindPlaceholder, n
			}
		}
	}
}
