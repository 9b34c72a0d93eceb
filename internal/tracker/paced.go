package tracker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

// Paced wraps a tracker so that consecutive write calls are at least delay
// apart. Reads are not paced.
type Paced struct {
	inner   types.Tracker
	limiter *rate.Limiter
}

// NewPaced wraps inner. A non-positive delay disables pacing.
func NewPaced(inner types.Tracker, delay time.Duration) *Paced {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Paced{inner: inner, limiter: rate.NewLimiter(limit, 1)}
}

func (p *Paced) wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacing write: %w", err)
	}
	return nil
}

// CreateIssue implements types.Tracker.
func (p *Paced) CreateIssue(ctx context.Context, title, body string) (types.CreatedIssue, error) {
	if err := p.wait(ctx); err != nil {
		return types.CreatedIssue{}, err
	}
	return p.inner.CreateIssue(ctx, title, body)
}

// GetIssue implements types.Tracker.
func (p *Paced) GetIssue(ctx context.Context, number int) (types.TrackerIssue, error) {
	return p.inner.GetIssue(ctx, number)
}

// ListIssues implements types.Tracker.
func (p *Paced) ListIssues(ctx context.Context, filter types.IssueFilter) ([]types.TrackerIssue, error) {
	return p.inner.ListIssues(ctx, filter)
}

// UpdateIssueBody implements types.Tracker.
func (p *Paced) UpdateIssueBody(ctx context.Context, number int, body string) error {
	if err := p.wait(ctx); err != nil {
		return err
	}
	return p.inner.UpdateIssueBody(ctx, number, body)
}

// AddToGroup implements types.Tracker.
func (p *Paced) AddToGroup(ctx context.Context, groupID, stableID string) error {
	if err := p.wait(ctx); err != nil {
		return err
	}
	return p.inner.AddToGroup(ctx, groupID, stableID)
}

// GroupID implements types.Tracker.
func (p *Paced) GroupID(ctx context.Context) (string, error) {
	return p.inner.GroupID(ctx)
}
