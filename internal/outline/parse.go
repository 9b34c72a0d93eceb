// Package outline reads and rewrites the task nodes embedded in an outline
// document's diagram block. A node is a checklist label whose first line
// ends in a two-space line break, optionally followed by a notebook line:
//
//	P1A["- [ ] Title
//	    [[notebooks/p1a.ipynb]]"]
//
// The title may already be a markdown link to a tracker issue and may carry
// a progress annotation such as "(3/7 • 43%)". Every line that is not a
// node's first line is preserved byte-for-byte.
package outline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/storysync/internal/lines"
	"github.com/mesh-intelligence/storysync/pkg/types"
)

var (
	nodeLine     = regexp.MustCompile(`^(\s*)(\w+)\["- \[([ xX])\] (.*)$`)
	closeSuffix  = regexp.MustCompile(`"\]\s*$`)
	spaceSuffix  = regexp.MustCompile(`\s*$`)
	annotation   = regexp.MustCompile(`\s*\(\d+/\d+\s*•\s*\d+%\)\s*$`)
	linkedCore   = regexp.MustCompile(`^\[([^\]]+)\]\(([^)\s]+)\)(.*)$`)
	issueNumber  = regexp.MustCompile(`/issues/(\d+)(?:[/?#].*)?$`)
	notebookLine = regexp.MustCompile(`^\s*\[\[([^\]]+)\]\]`)
)

// Node is a parsed task node plus the pieces needed to re-render its first
// line. Rendering an unmodified node reproduces the original line exactly.
type Node struct {
	types.TaskNode

	// Line is the index of the node's first line in the document.
	Line int

	indent     string
	mark       string
	core       string
	annotation string
	suffix     string
}

// render rebuilds the node's first line from its parts.
func (n *Node) render() string {
	return n.indent + n.NodeID + `["- [` + n.mark + `] ` + n.core + n.annotation + n.suffix
}

// setMark sets the checkbox mark. An existing "X" counts as checked.
func (n *Node) setMark(checked bool) {
	switch {
	case checked && n.mark == " ":
		n.mark = "x"
	case !checked:
		n.mark = " "
	}
	n.Checked = checked
}

// link replaces a plain title with a markdown link to url.
func (n *Node) link(title, url string) {
	n.core = "[" + title + "](" + url + ")"
	n.Title = title
	n.TrackerURL = url
	n.LinkedTrackerNumber = numberFromURL(url)
	n.RawTitleText = n.core + n.annotation
}

// setProgress replaces the annotation. A nil progress removes it.
func (n *Node) setProgress(p *types.Progress) {
	if p == nil {
		n.annotation = ""
	} else {
		n.annotation = " " + p.String()
	}
	n.ProgressAnnotation = p
	n.RawTitleText = n.core + n.annotation
}

// Document is an outline split into lines with its task nodes located.
type Document struct {
	lines *lines.Lines
	Nodes []*Node
}

// Parse locates every task node in text. Nodes are read from the diagram
// blocks when the document has any, otherwise from the whole text. Parse
// never fails: lines that do not match the node encoding are left alone.
func Parse(text string) *Document {
	doc := &Document{lines: lines.Split(text)}
	inBlock := diagramMask(doc.lines)
	for i := 0; i < doc.lines.Len(); i++ {
		if !inBlock[i] {
			continue
		}
		n, ok := parseNode(doc.lines.At(i))
		if !ok {
			continue
		}
		n.Line = i
		if i+1 < doc.lines.Len() {
			if m := notebookLine.FindStringSubmatch(doc.lines.At(i + 1)); m != nil {
				n.NotebookPath = m[1]
			}
		}
		doc.Nodes = append(doc.Nodes, n)
	}
	return doc
}

func parseNode(line string) (*Node, bool) {
	m := nodeLine.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	n := &Node{indent: m[1], mark: m[3]}
	n.NodeID = m[2]
	n.Checked = m[3] != " "

	body := m[4]
	if loc := closeSuffix.FindStringIndex(body); loc != nil {
		n.suffix = body[loc[0]:]
		body = body[:loc[0]]
	} else if loc := spaceSuffix.FindStringIndex(body); loc != nil {
		n.suffix = body[loc[0]:]
		body = body[:loc[0]]
	}

	for {
		loc := annotation.FindStringIndex(body)
		if loc == nil {
			break
		}
		n.annotation = body[loc[0]:] + n.annotation
		body = body[:loc[0]]
	}
	if n.annotation != "" {
		n.ProgressAnnotation = parseProgress(n.annotation)
	}

	n.core = body
	n.RawTitleText = n.core + n.annotation
	if lm := linkedCore.FindStringSubmatch(body); lm != nil {
		n.Title = lm[1]
		n.TrackerURL = lm[2]
		n.LinkedTrackerNumber = numberFromURL(lm[2])
	} else {
		n.Title = strings.TrimSpace(body)
	}
	return n, true
}

var progressParts = regexp.MustCompile(`\((\d+)/(\d+)\s*•\s*(\d+)%\)`)

// parseProgress reads the last annotation in s.
func parseProgress(s string) *types.Progress {
	all := progressParts.FindAllStringSubmatch(s, -1)
	if len(all) == 0 {
		return nil
	}
	m := all[len(all)-1]
	closed, _ := strconv.Atoi(m[1])
	total, _ := strconv.Atoi(m[2])
	pct, _ := strconv.Atoi(m[3])
	return &types.Progress{Closed: closed, Total: total, Percent: pct}
}

func numberFromURL(url string) int {
	m := issueNumber.FindStringSubmatch(url)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// diagramMask marks the lines that sit inside a ```mermaid fence. With no
// fence in the document every line is marked.
func diagramMask(doc *lines.Lines) []bool {
	mask := make([]bool, doc.Len())
	found := false
	in := false
	for i := 0; i < doc.Len(); i++ {
		t := strings.TrimSpace(doc.At(i))
		switch {
		case !in && strings.HasPrefix(t, "```mermaid"):
			in = true
			found = true
		case in && t == "```":
			in = false
		case in:
			mask[i] = true
		}
	}
	if !found {
		for i := range mask {
			mask[i] = true
		}
	}
	return mask
}

// TaskNodes returns the parsed nodes in document order.
func (d *Document) TaskNodes() []types.TaskNode {
	out := make([]types.TaskNode, len(d.Nodes))
	for i, n := range d.Nodes {
		out[i] = n.TaskNode
	}
	return out
}

// Links returns the navigation target of every linked node keyed by node ID.
func (d *Document) Links() map[string]types.NodeLink {
	m := make(map[string]types.NodeLink)
	for _, n := range d.Nodes {
		if n.Linked() {
			m[n.NodeID] = types.NodeLink{Title: n.Title, TrackerURL: n.TrackerURL}
		}
	}
	return m
}

// flush writes re-rendered node lines back into the document and returns
// how many lines changed.
func (d *Document) flush() int {
	changed := 0
	for _, n := range d.Nodes {
		if d.lines.Set(n.Line, n.render()) {
			changed++
		}
	}
	return changed
}

// String returns the document text including any node edits.
func (d *Document) String() string {
	d.flush()
	return d.lines.String()
}

// Head returns at most n lines of the document, for previews.
func (d *Document) Head(n int) string {
	d.flush()
	if n > d.lines.Len() {
		n = d.lines.Len()
	}
	return strings.Join(d.lines.Slice(0, n), "\n")
}
