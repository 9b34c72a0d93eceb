// Package titlekey derives child issue titles from a parent number and a
// decomposed task title. The derived title doubles as the idempotency key:
// a child is created only when no issue with exactly that title exists.
package titlekey

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

// Template placeholders.
const (
	ParentPlaceholder = "{parent}"
	TitlePlaceholder  = "{title}"
)

const markerPrefix = "PARENT-STORY: #"

var markerLine = regexp.MustCompile(`(?m)^PARENT-STORY: #(\d+)\s*$`)

// Derive returns the child title for rawTitle under parent. It is pure and
// total. Input that already carries the parent's prefix is returned as is,
// so deriving twice yields the same key. An empty template selects the
// default template.
func Derive(parent int, rawTitle, template string) string {
	raw := strings.TrimSpace(rawTitle)
	prefix, suffix := split(parent, template)
	if strings.HasPrefix(raw, prefix) && strings.HasSuffix(raw, suffix) && len(raw) >= len(prefix)+len(suffix) {
		return raw
	}
	return prefix + raw + suffix
}

// Prefix returns the part of the rendered template before the title.
func Prefix(parent int, template string) string {
	prefix, _ := split(parent, template)
	return prefix
}

func split(parent int, template string) (prefix, suffix string) {
	if template == "" {
		template = types.DefaultTitleTemplate
	}
	rendered := strings.ReplaceAll(template, ParentPlaceholder, strconv.Itoa(parent))
	i := strings.Index(rendered, TitlePlaceholder)
	if i < 0 {
		return rendered, ""
	}
	return rendered[:i], rendered[i+len(TitlePlaceholder):]
}

// Marker returns the backreference line placed in every generated child body.
func Marker(parent int) string {
	return markerPrefix + strconv.Itoa(parent)
}

// ParentOf returns the parent number named by the backreference marker in
// body, if any.
func ParentOf(body string) (int, bool) {
	m := markerLine.FindStringSubmatch(body)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsChildOf reports whether issue is a generated child of parent, by marker
// or by title prefix.
func IsChildOf(issue types.TrackerIssue, parent int, template string) bool {
	if n, ok := ParentOf(issue.Body); ok && n == parent {
		return true
	}
	return strings.HasPrefix(issue.Title, Prefix(parent, template))
}

// Matcher recognizes generated children of any parent.
type Matcher struct {
	title *regexp.Regexp
}

// NewMatcher compiles a Matcher for template.
func NewMatcher(template string) *Matcher {
	if template == "" {
		template = types.DefaultTitleTemplate
	}
	head := template
	if i := strings.Index(head, TitlePlaceholder); i >= 0 {
		head = head[:i]
	}
	parts := strings.Split(head, ParentPlaceholder)
	for i := range parts {
		parts[i] = regexp.QuoteMeta(parts[i])
	}
	return &Matcher{title: regexp.MustCompile("^" + strings.Join(parts, `\d+`))}
}

// Generated reports whether issue looks like a generated child: its body
// carries a backreference marker or its title carries a derived prefix.
func (m *Matcher) Generated(issue types.TrackerIssue) bool {
	if strings.Contains(issue.Body, markerPrefix) {
		return true
	}
	return m.title.MatchString(issue.Title)
}

// ChildBody renders the body of a generated child issue.
func ChildBody(parent int, parentTitle, description string) string {
	desc := strings.TrimSpace(description)
	if desc == "" {
		desc = "(no description provided)"
	}
	body := strings.Join([]string{
		fmt.Sprintf("Derived from parent Story #%d: %s", parent, parentTitle),
		Marker(parent),
		"",
		desc,
	}, "\n")
	return strings.TrimRight(body, " \t\r\n") + "\n"
}
