package outline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

// Directive renders the click directive for one node.
func Directive(nodeID string, link types.NodeLink) string {
	title := strings.ReplaceAll(link.Title, `"`, "'")
	return fmt.Sprintf(`    click %s "%s" "%s"`, nodeID, link.TrackerURL, title)
}

// injectDirectives replaces the generated click directives inside the first
// diagram block with one directive per entry in links, sorted by node ID.
// With no links, or no diagram block, the document is left unchanged.
// It reports whether any line changed.
func (d *Document) injectDirectives(links map[string]types.NodeLink) bool {
	if len(links) == 0 {
		return false
	}
	start, end := -1, -1
	for i := 0; i < d.lines.Len(); i++ {
		t := strings.TrimSpace(d.lines.At(i))
		if start < 0 && strings.HasPrefix(t, "```mermaid") {
			start = i
			continue
		}
		if start >= 0 && t == "```" {
			end = i
			break
		}
	}
	if start < 0 || end < 0 {
		return false
	}

	block := d.lines.Slice(start+1, end)
	kept := make([]string, 0, len(block)+len(links)+1)
	for _, l := range block {
		if strings.HasPrefix(strings.TrimSpace(l), "click ") {
			continue
		}
		kept = append(kept, l)
	}
	if len(kept) > 0 && strings.TrimSpace(kept[len(kept)-1]) != "" {
		kept = append(kept, "")
	}

	ids := make([]string, 0, len(links))
	for id := range links {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		kept = append(kept, Directive(id, links[id]))
	}

	if equalLines(block, kept) {
		return false
	}

	d.lines.Replace(start+1, end, kept)

	// Node edits are already flushed; re-locate nodes at their new lines.
	fresh := Parse(d.lines.String())
	d.lines, d.Nodes = fresh.lines, fresh.Nodes
	return true
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
