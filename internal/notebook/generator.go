package notebook

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/storysync/internal/checklist"
	"github.com/mesh-intelligence/storysync/pkg/types"
)

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	// Root is the directory notebook paths from the outline are relative to.
	Root string

	// MaxChildren caps the sections per notebook; zero means no cap.
	MaxChildren int

	DryRun  bool
	Options Options

	// Selected filters parent numbers; nil selects all.
	Selected func(number int) bool
}

// Generator processes the notebook of every outline node that is linked to
// a tracker issue and names a notebook path.
type Generator struct {
	tracker types.Tracker
	cfg     GeneratorConfig
	logger  *zap.Logger
}

// NewGenerator creates a Generator that reads issues from tracker.
func NewGenerator(tracker types.Tracker, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{tracker: tracker, cfg: cfg, logger: logger}
}

// Run processes nodes in order. Per-node failures are logged and reported
// in the node's Result; they never stop the run.
func (g *Generator) Run(ctx context.Context, nodes []types.TaskNode) []Result {
	var results []Result
	for _, node := range nodes {
		if node.LinkedTrackerNumber <= 0 || node.NotebookPath == "" {
			continue
		}
		if g.cfg.Selected != nil && !g.cfg.Selected(node.LinkedTrackerNumber) {
			continue
		}
		if err := ctx.Err(); err != nil {
			break
		}
		res := g.processNode(ctx, node)
		g.log(res)
		results = append(results, res)
	}
	return results
}

func (g *Generator) processNode(ctx context.Context, node types.TaskNode) Result {
	path := filepath.Join(g.cfg.Root, filepath.FromSlash(node.NotebookPath))

	parent, err := g.tracker.GetIssue(ctx, node.LinkedTrackerNumber)
	if err != nil {
		return Result{Parent: node.LinkedTrackerNumber, Path: path, Outcome: Skipped, Err: err}
	}

	entries := checklist.Scan(parent.Body)
	if g.cfg.MaxChildren > 0 && len(entries) > g.cfg.MaxChildren {
		entries = entries[:g.cfg.MaxChildren]
	}
	children := make([]types.TrackerIssue, 0, len(entries))
	for _, e := range entries {
		child, err := g.tracker.GetIssue(ctx, e.ChildNumber)
		if err != nil {
			g.logger.Warn("child issue unavailable",
				zap.Int("parent", parent.Number),
				zap.Int("child", e.ChildNumber),
				zap.Error(err))
			continue
		}
		children = append(children, child)
	}

	return Process(path, parent, children, g.cfg.Options, g.cfg.DryRun)
}

func (g *Generator) log(res Result) {
	fields := []zap.Field{
		zap.Int("parent", res.Parent),
		zap.String("path", res.Path),
		zap.String("outcome", string(res.Outcome)),
		zap.Int("sections_added", res.SectionsAdded),
		zap.Int("ids_added", res.IDsAdded),
		zap.Bool("header_rewritten", res.HeaderRewritten),
		zap.Bool("repaired", res.Repaired),
		zap.Bool("dry_run", g.cfg.DryRun),
	}
	if res.Err != nil {
		g.logger.Warn("notebook skipped", append(fields, zap.Error(res.Err))...)
		return
	}
	g.logger.Info("notebook processed", fields...)
}
