package checklist

import (
	"fmt"
	"path"
	"strings"

	"github.com/mesh-intelligence/storysync/internal/lines"
)

// NotebookLink renders the link line for a notebook path.
func NotebookLink(notebookPath string) string {
	return fmt.Sprintf("- [%s](%s)", path.Base(notebookPath), notebookPath)
}

// EnsureNotebookSection makes sure body has a section titled header that
// links notebookPath. An existing section is reused and an existing link is
// never duplicated. The second result reports whether body changed.
func EnsureNotebookSection(body, header, notebookPath string) (string, bool) {
	link := NotebookLink(notebookPath)
	doc := lines.Split(body)

	for i := 0; i < doc.Len(); i++ {
		if strings.TrimSpace(doc.At(i)) != header {
			continue
		}
		at := i + 1
		for at < doc.Len() && isListLine(doc.At(at)) {
			if strings.TrimSpace(doc.At(at)) == link {
				return body, false
			}
			at++
		}
		doc.Insert(at, link)
		return ensureNewline(doc.String()), true
	}

	base := strings.TrimRight(body, " \t\r\n")
	var b strings.Builder
	if base != "" {
		b.WriteString(base)
		b.WriteString("\n\n")
	}
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(link)
	b.WriteString("\n")
	return b.String(), true
}

// StripSection removes the section titled header from body, up to the next
// "### " heading. Header matching ignores case.
func StripSection(body, header string) string {
	want := strings.ToLower(strings.TrimSpace(header))
	src := strings.Split(body, "\n")
	out := make([]string, 0, len(src))
	skipping := false
	for _, l := range src {
		if strings.ToLower(strings.TrimSpace(l)) == want {
			skipping = true
			continue
		}
		if skipping {
			if !strings.HasPrefix(l, "### ") {
				continue
			}
			skipping = false
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

// StripEntries removes checklist entry lines from body.
func StripEntries(body string) string {
	src := strings.Split(body, "\n")
	out := make([]string, 0, len(src))
	for _, l := range src {
		if _, ok := parseEntry(strings.TrimRight(l, "\r")); ok {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
