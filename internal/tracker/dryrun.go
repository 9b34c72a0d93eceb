package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

// DryRun wraps a tracker so that every decision is made exactly as in a live
// run while no mutation reaches the tracker. Reads pass through, overlaid
// with the effects of suppressed writes. Created issues get negative
// synthetic numbers starting at -1.
type DryRun struct {
	inner  types.Tracker
	logger *zap.Logger

	mu         sync.Mutex
	overlay    map[int]types.TrackerIssue
	grouped    map[string]bool
	next       int
	suppressed int
}

// NewDryRun wraps inner.
func NewDryRun(inner types.Tracker, logger *zap.Logger) *DryRun {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DryRun{
		inner:   inner,
		logger:  logger,
		overlay: make(map[int]types.TrackerIssue),
		grouped: make(map[string]bool),
		next:    -1,
	}
}

// Suppressed returns how many writes were suppressed.
func (d *DryRun) Suppressed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suppressed
}

// CreateIssue records a synthetic issue instead of creating one.
func (d *DryRun) CreateIssue(ctx context.Context, title, body string) (types.CreatedIssue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.next
	d.next--
	issue := types.TrackerIssue{
		Number:   n,
		Title:    title,
		Body:     body,
		State:    types.StateOpen,
		StableID: fmt.Sprintf("DRY_RUN_%d", -n),
	}
	d.overlay[n] = issue
	d.suppressed++
	d.logger.Info("dry run: would create issue", zap.String("title", title), zap.Int("synthetic_number", n))
	return types.CreatedIssue{Number: n, StableID: issue.StableID}, nil
}

// GetIssue returns the overlaid issue when a suppressed write touched it.
func (d *DryRun) GetIssue(ctx context.Context, number int) (types.TrackerIssue, error) {
	d.mu.Lock()
	is, ok := d.overlay[number]
	d.mu.Unlock()
	if ok {
		return is, nil
	}
	return d.inner.GetIssue(ctx, number)
}

// ListIssues lists the inner tracker's issues with suppressed writes applied.
func (d *DryRun) ListIssues(ctx context.Context, filter types.IssueFilter) ([]types.TrackerIssue, error) {
	base, err := d.inner.ListIssues(ctx, filter)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	seen := make(map[int]bool, len(base))
	out := make([]types.TrackerIssue, 0, len(base)+len(d.overlay))
	for _, is := range base {
		if o, ok := d.overlay[is.Number]; ok {
			is = o
		}
		seen[is.Number] = true
		out = append(out, is)
	}

	var synthetic []types.TrackerIssue
	for n, is := range d.overlay {
		if seen[n] || !types.SyntheticNumber(n) || !filter.Matches(is) {
			continue
		}
		if filter.InGroup && !d.grouped[is.StableID] {
			continue
		}
		synthetic = append(synthetic, is)
	}
	sort.Slice(synthetic, func(i, j int) bool { return synthetic[i].Number > synthetic[j].Number })
	return append(out, synthetic...), nil
}

// UpdateIssueBody records the new body without writing it.
func (d *DryRun) UpdateIssueBody(ctx context.Context, number int, body string) error {
	is, err := d.GetIssue(ctx, number)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	is.Body = body
	d.overlay[number] = is
	d.suppressed++
	d.logger.Info("dry run: would update issue body", zap.Int("number", number), zap.Int("bytes", len(body)))
	return nil
}

// AddToGroup records the membership without writing it.
func (d *DryRun) AddToGroup(ctx context.Context, groupID, stableID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.grouped[stableID] = true
	d.suppressed++
	d.logger.Info("dry run: would add issue to group", zap.String("group", groupID), zap.String("stable_id", stableID))
	return nil
}

// GroupID passes through to the inner tracker.
func (d *DryRun) GroupID(ctx context.Context) (string, error) {
	return d.inner.GroupID(ctx)
}
