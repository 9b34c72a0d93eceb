package types

import "fmt"

// Progress is a node's child completion summary.
type Progress struct {
	Closed  int `json:"closed"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

// String renders the annotation text without surrounding whitespace,
// e.g. "(3/7 • 43%)".
func (p Progress) String() string {
	return fmt.Sprintf("(%d/%d • %d%%)", p.Closed, p.Total, p.Percent)
}

// TaskNode is a task node parsed from the outline diagram. It is recomputed
// from the outline text on every run and has no storage of its own.
type TaskNode struct {
	NodeID              string    `json:"node_id"`
	RawTitleText        string    `json:"raw_title_text"`
	Title               string    `json:"title"`
	Checked             bool      `json:"checked"`
	TrackerURL          string    `json:"tracker_url,omitempty"`
	LinkedTrackerNumber int       `json:"linked_tracker_number,omitempty"`
	NotebookPath        string    `json:"notebook_path,omitempty"`
	ProgressAnnotation  *Progress `json:"progress_annotation,omitempty"`
}

// Linked reports whether the node already carries a tracker link.
func (n TaskNode) Linked() bool {
	return n.TrackerURL != ""
}

// NodeLink is the navigation target of a resolved node.
type NodeLink struct {
	Title      string `json:"title"`
	TrackerURL string `json:"tracker_url"`
}

// ChecklistEntry is one child reference line in a parent's body.
type ChecklistEntry struct {
	ChildNumber   int    `json:"child_number"`
	Checked       bool   `json:"checked"`
	TitleSnapshot string `json:"title_snapshot"`
}
