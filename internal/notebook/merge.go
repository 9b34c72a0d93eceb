package notebook

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mesh-intelligence/storysync/internal/checklist"
	"github.com/mesh-intelligence/storysync/pkg/types"
)

// Options controls building and merging.
type Options struct {
	// Overwrite rebuilds an existing notebook from scratch.
	Overwrite bool

	// Placeholders adds a code cell after each child section.
	Placeholders bool

	// RefreshHeader rewrites the header cell even when it already matches.
	RefreshHeader bool

	// NotebookSection is the parent-body section stripped from the
	// description cell.
	NotebookSection string
}

// Outcome is the result of processing one notebook.
type Outcome string

const (
	Created     Outcome = "created"
	Regenerated Outcome = "regenerated"
	Updated     Outcome = "updated"
	Unchanged   Outcome = "unchanged"
	Skipped     Outcome = "skipped"
)

// MergeStats counts what a merge changed.
type MergeStats struct {
	SectionsAdded   int
	IDsAdded        int
	HeaderRewritten bool
	Repaired        bool
}

// Changed reports whether the merge modified the document.
func (s MergeStats) Changed() bool {
	return s.SectionsAdded > 0 || s.IDsAdded > 0 || s.HeaderRewritten || s.Repaired
}

// HeaderText renders the header cell for parent.
func HeaderText(parent types.TrackerIssue) string {
	title := parent.Title
	if title == "" {
		title = "(No Title)"
	}
	return strings.Join([]string{
		"# " + title,
		"",
		fmt.Sprintf("Parent Issue: [#%d](%s)", parent.Number, parent.URL),
		"Status: " + parent.State,
	}, "\n")
}

// SectionText renders the section heading cell for child.
func SectionText(child types.TrackerIssue) string {
	return fmt.Sprintf("### Sub-issue #%d: %s\n\nLink: [#%d](%s)\n\nStatus: %s\n\nImplementation Notes:",
		child.Number, child.Title, child.Number, child.URL, child.State)
}

// PlaceholderText renders the placeholder code cell for a child number.
func PlaceholderText(child int) string {
	return fmt.Sprintf("%s%d", placeholderPrefix, child)
}

// Description returns the parent body without generated sections: the
// notebook link section, the checklist header and checklist entries.
func Description(body, notebookSection string) string {
	if notebookSection == "" {
		notebookSection = types.DefaultNotebookSection
	}
	text := checklist.StripEntries(checklist.StripSection(body, notebookSection))
	var kept []string
	for _, l := range strings.Split(text, "\n") {
		if strings.EqualFold(strings.TrimSpace(l), checklist.Header) {
			continue
		}
		kept = append(kept, l)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Build creates a fresh notebook: header, optional description, and one
// section (plus optional placeholder) per child in order.
func Build(parent types.TrackerIssue, children []types.TrackerIssue, opts Options) *Notebook {
	nb := New()
	key := fmt.Sprintf("parent/%d", parent.Number)

	nb.append(newCell(Markdown, HeaderText(parent), KindHeader), key+"/header")
	if desc := Description(parent.Body, opts.NotebookSection); desc != "" {
		nb.append(newCell(Markdown, desc, KindDescription), key+"/description")
	}
	if len(children) > 0 {
		nb.append(newCell(Markdown, OverviewHeading, KindOverview), key+"/overview")
	}
	for _, ch := range children {
		nb.appendSection(key, ch, opts)
	}
	return nb
}

func (nb *Notebook) appendSection(key string, child types.TrackerIssue, opts Options) {
	sec := newCell(Markdown, SectionText(child), KindSection)
	sec.Child = child.Number
	nb.append(sec, fmt.Sprintf("%s/section/%d", key, child.Number))
	if opts.Placeholders {
		ph := newCell(Code, PlaceholderText(child.Number), KindPlaceholder)
		ph.Child = child.Number
		nb.append(ph, fmt.Sprintf("%s/placeholder/%d", key, child.Number))
	}
}

// Merge brings an existing notebook up to date in place. It repairs
// structural fields, assigns missing cell ids, rewrites the header when it
// differs from the tracker (or when forced), and appends sections for
// children that have none, preceded by the overview marker if the document
// lacks one. No other cell is touched.
func Merge(nb *Notebook, parent types.TrackerIssue, children []types.TrackerIssue, opts Options) MergeStats {
	var st MergeStats
	key := fmt.Sprintf("parent/%d", parent.Number)

	st.Repaired = nb.repair()

	if len(nb.Cells) > 0 && nb.Cells[0].Kind == KindHeader {
		want := HeaderText(parent)
		if opts.RefreshHeader || !sameText(nb.Cells[0].Source(), want) {
			nb.Cells[0].SetSource(want)
			st.HeaderRewritten = true
		}
	}

	st.IDsAdded = nb.ensureIDs(key)

	present := nb.Sections()
	var missing []types.TrackerIssue
	for _, ch := range children {
		if present[ch.Number] {
			continue
		}
		present[ch.Number] = true
		missing = append(missing, ch)
	}
	if len(missing) > 0 && !nb.hasOverview() {
		nb.append(newCell(Markdown, OverviewHeading, KindOverview), key+"/overview")
	}
	for _, ch := range missing {
		nb.appendSection(key, ch, opts)
		st.SectionsAdded++
	}
	return st
}

// sameText compares cell texts ignoring trailing whitespace on each line.
func sameText(a, b string) bool {
	al := strings.Split(strings.TrimRight(a, "\n"), "\n")
	bl := strings.Split(strings.TrimRight(b, "\n"), "\n")
	if len(al) != len(bl) {
		return false
	}
	for i := range al {
		if strings.TrimRight(al[i], " \t\r") != strings.TrimRight(bl[i], " \t\r") {
			return false
		}
	}
	return true
}

// Result describes what Process did to one notebook.
type Result struct {
	Parent  int
	Path    string
	Outcome Outcome
	MergeStats
	Err error
}

// Process creates, regenerates or merges the notebook at path. With dryRun
// the decision is made and reported but nothing is written. A document that
// cannot be merged is skipped with ErrUnmergeable unless Overwrite is set.
func Process(path string, parent types.TrackerIssue, children []types.TrackerIssue, opts Options, dryRun bool) Result {
	res := Result{Parent: parent.Number, Path: path}

	_, statErr := os.Stat(path)
	exists := statErr == nil
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		res.Outcome, res.Err = Skipped, fmt.Errorf("%w: %w", types.ErrTransient, statErr)
		return res
	}

	var nb *Notebook
	switch {
	case !exists:
		nb, res.Outcome = Build(parent, children, opts), Created
		res.SectionsAdded = len(children)
	case opts.Overwrite:
		nb, res.Outcome = Build(parent, children, opts), Regenerated
		res.SectionsAdded = len(children)
	default:
		existing, err := Load(path)
		if err != nil {
			res.Outcome, res.Err = Skipped, err
			return res
		}
		res.MergeStats = Merge(existing, parent, children, opts)
		if !res.Changed() {
			res.Outcome = Unchanged
			return res
		}
		nb, res.Outcome = existing, Updated
	}

	if dryRun {
		return res
	}
	if err := nb.Save(path); err != nil {
		res.Outcome, res.Err = Skipped, err
	}
	return res
}
