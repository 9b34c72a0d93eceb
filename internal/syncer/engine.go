// Package syncer fans parent stories out into child issues. For each parent
// it obtains task descriptors, creates the children that do not exist yet,
// and records them in the parent's checklist. Every step is idempotent, so a
// second pass over unchanged inputs writes nothing.
package syncer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/storysync/internal/checklist"
	"github.com/mesh-intelligence/storysync/internal/decompose"
	"github.com/mesh-intelligence/storysync/internal/titlekey"
	"github.com/mesh-intelligence/storysync/pkg/types"
)

// Config configures an Engine.
type Config struct {
	TitleTemplate     string
	SkipIfHasChildren bool
	MaxParents        int

	// Selected filters parent numbers; nil selects all.
	Selected func(number int) bool

	// Cache holds descriptors between runs; nil disables caching.
	Cache      *decompose.Cache
	Regenerate bool

	DryRun bool
}

// Engine runs the fan-out.
type Engine struct {
	tracker    types.Tracker
	decomposer types.Decomposer
	cfg        Config
	matcher    *titlekey.Matcher
	logger     *zap.Logger

	groupID       string
	groupResolved bool
}

// NewEngine creates an Engine. The tracker should already carry any dry-run
// or pacing decorators.
func NewEngine(tracker types.Tracker, decomposer types.Decomposer, cfg Config, logger *zap.Logger) *Engine {
	if cfg.TitleTemplate == "" {
		cfg.TitleTemplate = types.DefaultTitleTemplate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		tracker:    tracker,
		decomposer: decomposer,
		cfg:        cfg,
		matcher:    titlekey.NewMatcher(cfg.TitleTemplate),
		logger:     logger,
	}
}

// Run processes the given parents, or the parents discovered in the
// grouping container when numbers is empty. It returns an error only when
// the batch could not start; per-parent failures are in the report.
func (e *Engine) Run(ctx context.Context, numbers []int) (*Report, error) {
	report := &Report{DryRun: e.cfg.DryRun}

	issues, err := e.tracker.ListIssues(ctx, types.IssueFilter{State: types.FilterAll})
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}

	parents, err := e.parents(ctx, numbers)
	if err != nil {
		return nil, err
	}
	e.logger.Info("parents discovered", zap.Int("count", len(parents)), zap.Bool("dry_run", e.cfg.DryRun))

	processed := 0
	for _, parent := range parents {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if e.cfg.Selected != nil && !e.cfg.Selected(parent.Number) {
			continue
		}
		if e.cfg.MaxParents > 0 && processed >= e.cfg.MaxParents {
			e.logger.Info("reached max parents; stopping", zap.Int("max_parents", e.cfg.MaxParents))
			break
		}
		processed++

		pr := e.ProcessParent(ctx, parent, issues)
		report.Parents = append(report.Parents, pr)

		if pr.writes > 0 && !e.cfg.DryRun {
			fresh, err := e.tracker.ListIssues(ctx, types.IssueFilter{State: types.FilterAll})
			if err != nil {
				e.logger.Warn("refreshing issue list failed; keeping previous list", zap.Error(err))
				continue
			}
			issues = fresh
		}
	}
	return report, nil
}

// parents resolves explicit parent numbers, or discovers the grouping
// container's issues that are not generated children.
func (e *Engine) parents(ctx context.Context, numbers []int) ([]types.TrackerIssue, error) {
	if len(numbers) > 0 {
		out := make([]types.TrackerIssue, 0, len(numbers))
		for _, n := range numbers {
			is, err := e.tracker.GetIssue(ctx, n)
			if err != nil {
				return nil, fmt.Errorf("parent #%d: %w", n, err)
			}
			out = append(out, is)
		}
		return out, nil
	}

	grouped, err := e.tracker.ListIssues(ctx, types.IssueFilter{State: types.FilterAll, InGroup: true})
	if err != nil {
		return nil, fmt.Errorf("list group items: %w", err)
	}
	out := make([]types.TrackerIssue, 0, len(grouped))
	for _, is := range grouped {
		if e.matcher.Generated(is) {
			continue
		}
		out = append(out, is)
	}
	return out, nil
}

// ProcessParent runs one parent through the state machine against the
// current issue list.
func (e *Engine) ProcessParent(ctx context.Context, parent types.TrackerIssue, issues []types.TrackerIssue) ParentReport {
	pr := ParentReport{Parent: parent.Number, Title: parent.Title}
	log := e.logger.With(zap.Int("parent", parent.Number))
	log.Info("processing parent", zap.String("title", parent.Title))

	if e.cfg.SkipIfHasChildren && e.hasChildren(parent, issues) {
		log.Info("skipping; parent already has children")
		pr.advance(PhaseSkippedHasChildren)
		pr.advance(PhaseDone)
		return pr
	}

	descs, fromCache, err := e.descriptors(ctx, parent)
	if err != nil {
		log.Error("decomposition failed", zap.Error(err))
		pr.fail(err)
		return pr
	}
	pr.FromCache, pr.Descriptors = fromCache, len(descs)
	if len(descs) == 0 {
		log.Warn("no tasks produced")
		pr.advance(PhaseNoTasks)
		pr.advance(PhaseDone)
		return pr
	}
	pr.advance(PhaseDecomposed)

	byTitle := types.IndexByTitle(issues)
	var listed []int
	var created []types.CreatedIssue
	for _, d := range descs {
		key := titlekey.Derive(parent.Number, d.Title, e.cfg.TitleTemplate)
		if existing, ok := byTitle[key]; ok {
			if owner, marked := titlekey.ParentOf(existing.Body); !marked || owner != parent.Number {
				log.Warn("derived title belongs to an issue that is not a child of this parent; skipping",
					zap.String("title", key), zap.Int("number", existing.Number), zap.Error(types.ErrInvariantViolation))
				pr.Items = append(pr.Items, ItemResult{Title: key, Number: existing.Number, Outcome: ItemSkipped, Error: types.ErrInvariantViolation.Error()})
				continue
			}
			pr.Items = append(pr.Items, ItemResult{Title: key, Number: existing.Number, Outcome: ItemExists})
			listed = append(listed, existing.Number)
			continue
		}
		body := titlekey.ChildBody(parent.Number, parent.Title, d.Description)
		c, err := e.tracker.CreateIssue(ctx, key, body)
		if err != nil {
			log.Error("creating child failed", zap.String("title", key), zap.Error(err))
			pr.Items = append(pr.Items, ItemResult{Title: key, Outcome: ItemFailed, Error: err.Error()})
			continue
		}
		pr.writes++
		log.Info("child created", zap.String("title", key), zap.Int("number", c.Number))
		byTitle[key] = types.TrackerIssue{Number: c.Number, Title: key, Body: body, StableID: c.StableID, URL: c.URL, State: types.StateOpen}
		pr.Items = append(pr.Items, ItemResult{Title: key, Number: c.Number, Outcome: ItemCreated})
		listed = append(listed, c.Number)
		created = append(created, c)
	}
	pr.advance(PhaseChildrenCreated)

	e.group(ctx, log, &pr, created)

	if err := e.updateChecklist(ctx, log, &pr, parent, listed); err != nil {
		log.Error("checklist update failed", zap.Error(err))
		pr.Error = err.Error()
	} else {
		pr.advance(PhaseChecklistUpdated)
	}
	pr.advance(PhaseDone)
	return pr
}

func (e *Engine) hasChildren(parent types.TrackerIssue, issues []types.TrackerIssue) bool {
	if len(checklist.Scan(parent.Body)) > 0 {
		return true
	}
	for _, is := range issues {
		if is.Number != parent.Number && titlekey.IsChildOf(is, parent.Number, e.cfg.TitleTemplate) {
			return true
		}
	}
	return false
}

// descriptors returns cached descriptors when allowed, otherwise asks the
// decomposer and caches a non-empty answer.
func (e *Engine) descriptors(ctx context.Context, parent types.TrackerIssue) ([]types.ChildDescriptor, bool, error) {
	if e.cfg.Cache != nil && !e.cfg.Regenerate {
		if descs, ok := e.cfg.Cache.Load(parent.Number); ok && len(descs) > 0 {
			e.logger.Info("loaded cached tasks", zap.Int("parent", parent.Number), zap.Int("count", len(descs)))
			return descs, true, nil
		}
	}
	if e.decomposer == nil {
		return nil, false, fmt.Errorf("%w: no decomposer configured and no cached tasks", types.ErrFatalConfig)
	}
	descs, err := e.decomposer.Decompose(ctx, parent.Title, parent.Body)
	if err != nil {
		return nil, false, err
	}
	if e.cfg.Cache != nil && len(descs) > 0 {
		if err := e.cfg.Cache.Store(parent.Number, descs); err != nil {
			e.logger.Warn("failed to write task cache", zap.Int("parent", parent.Number), zap.Error(err))
		}
	}
	return descs, false, nil
}

// group adds new children to the grouping container. Failures are counted
// and never stop the pass.
func (e *Engine) group(ctx context.Context, log *zap.Logger, pr *ParentReport, created []types.CreatedIssue) {
	if len(created) == 0 {
		return
	}
	if !e.groupResolved {
		id, err := e.tracker.GroupID(ctx)
		if err != nil {
			log.Warn("resolving group failed; children stay ungrouped", zap.Error(err))
		}
		e.groupID, e.groupResolved = id, err == nil
		if err != nil {
			pr.GroupFailures += len(created)
			return
		}
	}
	for _, c := range created {
		if err := e.tracker.AddToGroup(ctx, e.groupID, c.StableID); err != nil {
			log.Warn("adding child to group failed", zap.Int("child", c.Number), zap.Error(err))
			pr.GroupFailures++
			continue
		}
		pr.writes++
		for i := range pr.Items {
			if pr.Items[i].Number == c.Number {
				pr.Items[i].Grouped = true
			}
		}
	}
}

// updateChecklist merges child numbers into the parent's current body.
func (e *Engine) updateChecklist(ctx context.Context, log *zap.Logger, pr *ParentReport, parent types.TrackerIssue, numbers []int) error {
	if len(numbers) == 0 {
		return nil
	}
	current, err := e.tracker.GetIssue(ctx, parent.Number)
	if err != nil {
		log.Warn("re-reading parent failed; using listed body", zap.Error(err))
		current = parent
	}

	res := checklist.Merge(current.Body, numbers, func(n int) string {
		if types.SyntheticNumber(n) {
			return checklist.TitleDryRun
		}
		child, err := e.tracker.GetIssue(ctx, n)
		if err != nil {
			return checklist.TitleUnavailable
		}
		return child.Title
	})
	if !res.Changed {
		return nil
	}
	if err := e.tracker.UpdateIssueBody(ctx, parent.Number, res.Body); err != nil {
		return fmt.Errorf("update parent #%d: %w", parent.Number, err)
	}
	pr.writes++
	pr.ChecklistAdded = res.Added
	log.Info("checklist updated", zap.Ints("added", res.Added))
	return nil
}
