package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v66/github"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

// CreateIssue implements types.Tracker.
func (c *Client) CreateIssue(ctx context.Context, title, body string) (types.CreatedIssue, error) {
	is, _, err := c.gh.Issues.Create(ctx, c.owner, c.repo, &gh.IssueRequest{
		Title: gh.String(title),
		Body:  gh.String(body),
	})
	if err != nil {
		return types.CreatedIssue{}, classify("create issue", err)
	}
	c.logger.Debug("issue created", zap.Int("number", is.GetNumber()), zap.String("title", title))
	return types.CreatedIssue{Number: is.GetNumber(), StableID: is.GetNodeID(), URL: is.GetHTMLURL()}, nil
}

// GetIssue implements types.Tracker. Pull requests are reported as not found.
func (c *Client) GetIssue(ctx context.Context, number int) (types.TrackerIssue, error) {
	is, _, err := c.gh.Issues.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return types.TrackerIssue{}, classify(fmt.Sprintf("get issue #%d", number), err)
	}
	if is.IsPullRequest() {
		return types.TrackerIssue{}, fmt.Errorf("#%d is a pull request: %w", number, types.ErrNotFound)
	}
	return convert(is), nil
}

// ListIssues implements types.Tracker. Group listings come from the project
// board; plain listings page through the repository.
func (c *Client) ListIssues(ctx context.Context, filter types.IssueFilter) ([]types.TrackerIssue, error) {
	if filter.InGroup {
		return c.listProjectIssues(ctx, filter)
	}

	state := filter.State
	if state == "" {
		state = types.FilterAll
	}
	opts := &gh.IssueListByRepoOptions{
		State:       state,
		Sort:        "created",
		Direction:   "asc",
		ListOptions: gh.ListOptions{PerPage: perPage},
	}
	var out []types.TrackerIssue
	for {
		page, resp, err := c.gh.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, classify("list issues", err)
		}
		for _, is := range page {
			if is.IsPullRequest() {
				continue
			}
			out = append(out, convert(is))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// UpdateIssueBody implements types.Tracker.
func (c *Client) UpdateIssueBody(ctx context.Context, number int, body string) error {
	_, _, err := c.gh.Issues.Edit(ctx, c.owner, c.repo, number, &gh.IssueRequest{Body: gh.String(body)})
	if err != nil {
		return classify(fmt.Sprintf("update issue #%d", number), err)
	}
	return nil
}
