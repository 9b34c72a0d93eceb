// Package lines provides a line-addressed view of a text document. Outline
// and checklist passes mutate documents through it so that every line they
// do not touch is written back byte-for-byte.
package lines

import "strings"

// Lines is a document split on "\n". The final newline, if any, is
// remembered separately so String reproduces the input exactly.
type Lines struct {
	lines    []string
	trailing bool
}

// Split splits text into lines.
func Split(text string) *Lines {
	trailing := strings.HasSuffix(text, "\n")
	if trailing {
		text = text[:len(text)-1]
	}
	return &Lines{lines: strings.Split(text, "\n"), trailing: trailing}
}

// String joins the lines back into text.
func (l *Lines) String() string {
	s := strings.Join(l.lines, "\n")
	if l.trailing {
		s += "\n"
	}
	return s
}

// Len returns the number of lines.
func (l *Lines) Len() int {
	return len(l.lines)
}

// At returns line i.
func (l *Lines) At(i int) string {
	return l.lines[i]
}

// Set replaces line i and reports whether the content changed.
func (l *Lines) Set(i int, s string) bool {
	if l.lines[i] == s {
		return false
	}
	l.lines[i] = s
	return true
}

// Insert inserts ss before line i. i == Len appends.
func (l *Lines) Insert(i int, ss ...string) {
	l.Replace(i, i, ss)
}

// Replace replaces lines [start, end) with repl.
func (l *Lines) Replace(start, end int, repl []string) {
	out := make([]string, 0, len(l.lines)-(end-start)+len(repl))
	out = append(out, l.lines[:start]...)
	out = append(out, repl...)
	out = append(out, l.lines[end:]...)
	l.lines = out
}

// Slice returns a copy of lines [start, end).
func (l *Lines) Slice(start, end int) []string {
	out := make([]string, end-start)
	copy(out, l.lines[start:end])
	return out
}

// All returns a copy of every line.
func (l *Lines) All() []string {
	return l.Slice(0, len(l.lines))
}
