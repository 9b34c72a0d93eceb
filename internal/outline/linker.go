package outline

import (
	"go.uber.org/zap"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

// LinkResult summarizes one linker pass.
type LinkResult struct {
	Text              string
	Linked            int
	MarksChanged      int
	DirectivesChanged bool
	Unresolved        []string
	Changed           bool
}

// Linker resolves plain node titles to tracker issues by exact title and
// keeps node checkboxes in step with tracker state.
type Linker struct {
	logger *zap.Logger
}

// NewLinker creates a Linker. A nil logger discards output.
func NewLinker(logger *zap.Logger) *Linker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Linker{logger: logger}
}

// Link rewrites text against issues. Plain titles with an exact title match
// become links and take the issue's state as their mark. Linked nodes keep
// their link and only have the mark refreshed. Click directives are then
// regenerated for every linked node. When two issues share a title the one
// listed first wins.
func (l *Linker) Link(text string, issues []types.TrackerIssue) LinkResult {
	doc := Parse(text)
	byTitle := types.IndexByTitle(issues)
	byNumber := types.IndexByNumber(issues)
	titleCount := make(map[string]int, len(issues))
	for _, is := range issues {
		titleCount[is.Title]++
	}

	var res LinkResult
	for _, n := range doc.Nodes {
		if n.Linked() {
			issue, ok := byNumber[n.LinkedTrackerNumber]
			if !ok || n.LinkedTrackerNumber == 0 {
				issue, ok = byTitle[n.Title]
			}
			if !ok {
				continue
			}
			before := n.mark
			n.setMark(issue.Closed())
			if n.mark != before {
				res.MarksChanged++
			}
			continue
		}

		issue, ok := byTitle[n.Title]
		if !ok {
			if n.Title != "" {
				res.Unresolved = append(res.Unresolved, n.Title)
			}
			continue
		}
		if titleCount[issue.Title] > 1 {
			l.logger.Warn("ambiguous outline title; linking the first match",
				zap.String("title", issue.Title),
				zap.Int("issue", issue.Number),
				zap.Int("matches", titleCount[issue.Title]))
		}
		n.link(issue.Title, issue.URL)
		before := n.mark
		n.setMark(issue.Closed())
		if n.mark != before {
			res.MarksChanged++
		}
		res.Linked++
		l.logger.Debug("linked outline node",
			zap.String("node", n.NodeID),
			zap.Int("issue", issue.Number))
	}

	changedLines := doc.flush()
	res.DirectivesChanged = doc.injectDirectives(doc.Links())
	res.Changed = changedLines > 0 || res.DirectivesChanged
	if res.Changed {
		res.Text = doc.String()
	} else {
		res.Text = text
	}

	l.logger.Info("outline links updated",
		zap.Int("linked", res.Linked),
		zap.Int("marks_changed", res.MarksChanged),
		zap.Bool("directives_changed", res.DirectivesChanged),
		zap.Int("unresolved", len(res.Unresolved)))
	return res
}
