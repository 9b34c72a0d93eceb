package types

import "context"

// Tracker is the issue-tracker capability the engine depends on. It is
// implemented by the GitHub client, the local SQLite backend, and the
// dry-run and pacing decorators.
type Tracker interface {
	// CreateIssue creates an issue and returns its number and stable ID.
	CreateIssue(ctx context.Context, title, body string) (CreatedIssue, error)

	// GetIssue returns the issue with the given number.
	// Returns ErrNotFound if no such issue exists.
	GetIssue(ctx context.Context, number int) (TrackerIssue, error)

	// ListIssues returns all issues matching filter. Pull requests and other
	// non-issue items are never returned.
	ListIssues(ctx context.Context, filter IssueFilter) ([]TrackerIssue, error)

	// UpdateIssueBody replaces the body of an existing issue.
	UpdateIssueBody(ctx context.Context, number int, body string) error

	// AddToGroup adds the issue identified by stableID to the grouping
	// container groupID. Adding an existing member succeeds.
	AddToGroup(ctx context.Context, groupID, stableID string) error

	// GroupID resolves the identifier of the configured grouping container.
	GroupID(ctx context.Context) (string, error)
}

// Decomposer splits a parent story into child task descriptors.
// Implementations return an empty list, not an error, when the service
// answered but nothing usable could be parsed from its response.
type Decomposer interface {
	Decompose(ctx context.Context, title, body string) ([]ChildDescriptor, error)
}

// DecomposerFunc adapts an ordinary function to the Decomposer interface.
type DecomposerFunc func(ctx context.Context, title, body string) ([]ChildDescriptor, error)

// Decompose calls f(ctx, title, body).
func (f DecomposerFunc) Decompose(ctx context.Context, title, body string) ([]ChildDescriptor, error) {
	return f(ctx, title, body)
}
