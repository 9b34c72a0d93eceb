package outline

import (
	"math"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/storysync/internal/checklist"
	"github.com/mesh-intelligence/storysync/pkg/types"
)

// IssueLookup returns the tracker issue with the given number.
type IssueLookup func(number int) (types.TrackerIssue, bool)

// MapLookup adapts an index to an IssueLookup.
func MapLookup(m map[int]types.TrackerIssue) IssueLookup {
	return func(n int) (types.TrackerIssue, bool) {
		is, ok := m[n]
		return is, ok
	}
}

// ComputeProgress counts a parent's checklist children that are closed in
// the tracker. Children missing from the tracker count as open.
func ComputeProgress(parent types.TrackerIssue, lookup IssueLookup) types.Progress {
	entries := checklist.Scan(parent.Body)
	p := types.Progress{Total: len(entries)}
	for _, e := range entries {
		if child, ok := lookup(e.ChildNumber); ok && child.Closed() {
			p.Closed++
		}
	}
	if p.Total > 0 {
		p.Percent = int(math.RoundToEven(float64(p.Closed) / float64(p.Total) * 100))
	}
	return p
}

// ProgressResult summarizes one annotation pass.
type ProgressResult struct {
	Text      string
	Annotated int
	Stripped  int
	Changed   bool
}

// Annotator writes child completion annotations onto linked nodes.
type Annotator struct {
	showZero bool
	logger   *zap.Logger
}

// NewAnnotator creates an Annotator. With showZero, parents without
// children are annotated "(0/0 • 0%)"; otherwise their annotation is removed.
func NewAnnotator(showZero bool, logger *zap.Logger) *Annotator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Annotator{showZero: showZero, logger: logger}
}

// Annotate rewrites the annotation of every node linked to an issue that
// lookup can resolve. Unresolvable nodes are left as they are.
func (a *Annotator) Annotate(text string, lookup IssueLookup) ProgressResult {
	doc := Parse(text)
	var res ProgressResult
	for _, n := range doc.Nodes {
		if n.LinkedTrackerNumber == 0 {
			continue
		}
		parent, ok := lookup(n.LinkedTrackerNumber)
		if !ok {
			a.logger.Warn("outline node issue not found",
				zap.String("node", n.NodeID),
				zap.Int("issue", n.LinkedTrackerNumber))
			continue
		}
		p := ComputeProgress(parent, lookup)
		if p.Total == 0 && !a.showZero {
			if n.annotation != "" {
				n.setProgress(nil)
				res.Stripped++
			}
			continue
		}
		n.setProgress(&p)
		res.Annotated++
	}

	changed := doc.flush()
	res.Changed = changed > 0
	if res.Changed {
		res.Text = doc.String()
	} else {
		res.Text = text
	}
	a.logger.Info("outline progress updated",
		zap.Int("annotated", res.Annotated),
		zap.Int("stripped", res.Stripped),
		zap.Int("lines_changed", changed))
	return res
}
