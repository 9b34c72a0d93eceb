// Package checklist reads and extends the child checklist kept in a parent
// issue body. Merges only ever add lines: existing entries keep their
// position, text and check state.
package checklist

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/storysync/internal/lines"
	"github.com/mesh-intelligence/storysync/pkg/types"
)

// Header introduces the checklist section.
const Header = "### Sub-issues"

// Title snapshot fallbacks.
const (
	TitleUnavailable = "(title unavailable)"
	TitleDryRun      = "(DRY_RUN)"
)

var (
	entryLine = regexp.MustCompile(`^- \[([ xX])\] #(\d+)(.*)$`)
	snapshot  = regexp.MustCompile(`^\s*(?:—|-)\s*(.*)$`)
)

// Scan returns the checklist entries in body in document order. Lines that
// do not look like entries are ignored.
func Scan(body string) []types.ChecklistEntry {
	var entries []types.ChecklistEntry
	for _, line := range strings.Split(body, "\n") {
		e, ok := parseEntry(strings.TrimRight(line, "\r"))
		if ok {
			entries = append(entries, e)
		}
	}
	return entries
}

func parseEntry(line string) (types.ChecklistEntry, bool) {
	m := entryLine.FindStringSubmatch(line)
	if m == nil {
		return types.ChecklistEntry{}, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return types.ChecklistEntry{}, false
	}
	e := types.ChecklistEntry{ChildNumber: n, Checked: m[1] != " "}
	if s := snapshot.FindStringSubmatch(m[3]); s != nil {
		e.TitleSnapshot = strings.TrimSpace(s[1])
	}
	return e, true
}

// Numbers returns the set of child numbers referenced by body.
func Numbers(body string) map[int]bool {
	set := make(map[int]bool)
	for _, e := range Scan(body) {
		set[e.ChildNumber] = true
	}
	return set
}

// Line renders one unchecked checklist entry.
func Line(number int, title string) string {
	return fmt.Sprintf("- [ ] #%d — %s", number, title)
}

// TitleFunc returns the title snapshot for a child number at append time.
type TitleFunc func(number int) string

// MergeResult describes the outcome of Merge.
type MergeResult struct {
	Body    string
	Added   []int
	Changed bool
}

// Merge adds an entry for every requested number not already referenced in
// body, in request order. titleFn is called once per added number. When
// nothing is missing the original body is returned unchanged.
//
// If a checklist header exists the new lines go after the last entry of its
// section, blank lines between entries included; otherwise a header is
// appended after a blank line.
func Merge(body string, requested []int, titleFn TitleFunc) MergeResult {
	present := Numbers(body)
	var add []int
	for _, n := range requested {
		if present[n] {
			continue
		}
		present[n] = true
		add = append(add, n)
	}
	if len(add) == 0 {
		return MergeResult{Body: body}
	}

	newLines := make([]string, 0, len(add))
	for _, n := range add {
		title := TitleUnavailable
		if titleFn != nil {
			title = titleFn(n)
		}
		newLines = append(newLines, Line(n, title))
	}

	doc := lines.Split(body)
	if h := findHeader(doc); h >= 0 {
		doc.Insert(sectionEnd(doc, h), newLines...)
		return MergeResult{Body: ensureNewline(doc.String()), Added: add, Changed: true}
	}

	base := strings.TrimRight(body, " \t\r\n")
	var b strings.Builder
	if base != "" {
		b.WriteString(base)
		b.WriteString("\n\n")
	}
	b.WriteString(Header)
	b.WriteString("\n")
	b.WriteString(strings.Join(newLines, "\n"))
	b.WriteString("\n")
	return MergeResult{Body: b.String(), Added: add, Changed: true}
}

func findHeader(doc *lines.Lines) int {
	want := strings.ToLower(Header)
	for i := 0; i < doc.Len(); i++ {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(doc.At(i))), want) {
			return i
		}
	}
	return -1
}

// sectionEnd returns the index just past the last list entry of the section
// starting at header h. Blank lines inside the section are skipped; any
// other line ends it. With no entries the result is h+1.
func sectionEnd(doc *lines.Lines, h int) int {
	end := h + 1
	for i := h + 1; i < doc.Len(); i++ {
		line := doc.At(i)
		switch {
		case isListLine(line):
			end = i + 1
		case strings.TrimSpace(line) == "":
		default:
			return end
		}
	}
	return end
}

func isListLine(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "- [")
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
