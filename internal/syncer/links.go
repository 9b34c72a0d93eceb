package syncer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/storysync/internal/checklist"
	"github.com/mesh-intelligence/storysync/pkg/types"
)

// LinkOutcome is what the notebook-link pass did to one parent body.
type LinkOutcome string

const (
	LinkAdded   LinkOutcome = "added"
	LinkPresent LinkOutcome = "present"
	LinkFailed  LinkOutcome = "failed"
)

// LinkResult records one parent body visited by NotebookLinks.
type LinkResult struct {
	Parent       int         `json:"parent"`
	NotebookPath string      `json:"notebook_path"`
	Outcome      LinkOutcome `json:"outcome"`
	Error        string      `json:"error,omitempty"`
}

// NotebookLinks makes sure each linked outline node's parent issue body has
// a notebook section pointing at the node's notebook. Nodes without a
// tracker link or a notebook path are ignored.
func NotebookLinks(ctx context.Context, tracker types.Tracker, nodes []types.TaskNode, header string, logger *zap.Logger) []LinkResult {
	if header == "" {
		header = types.DefaultNotebookSection
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var results []LinkResult
	for _, n := range nodes {
		if n.LinkedTrackerNumber <= 0 || n.NotebookPath == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		res := LinkResult{Parent: n.LinkedTrackerNumber, NotebookPath: n.NotebookPath}
		if err := linkOne(ctx, tracker, n, header, &res); err != nil {
			res.Outcome, res.Error = LinkFailed, err.Error()
			logger.Warn("notebook link failed",
				zap.Int("parent", n.LinkedTrackerNumber),
				zap.String("path", n.NotebookPath),
				zap.Error(err))
		} else {
			logger.Info("notebook link checked",
				zap.Int("parent", n.LinkedTrackerNumber),
				zap.String("path", n.NotebookPath),
				zap.String("outcome", string(res.Outcome)))
		}
		results = append(results, res)
	}
	return results
}

func linkOne(ctx context.Context, tracker types.Tracker, n types.TaskNode, header string, res *LinkResult) error {
	parent, err := tracker.GetIssue(ctx, n.LinkedTrackerNumber)
	if err != nil {
		return err
	}
	body, changed := checklist.EnsureNotebookSection(parent.Body, header, n.NotebookPath)
	if !changed {
		res.Outcome = LinkPresent
		return nil
	}
	if err := tracker.UpdateIssueBody(ctx, parent.Number, body); err != nil {
		return fmt.Errorf("update parent #%d: %w", parent.Number, err)
	}
	res.Outcome = LinkAdded
	return nil
}
