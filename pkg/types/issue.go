package types

import (
	"strconv"
	"strings"
)

// Issue states. Trackers normalize their native values to these.
const (
	StateOpen   = "open"
	StateClosed = "closed"
)

// validStates is the set of recognized issue state values.
var validStates = map[string]bool{
	StateOpen:   true,
	StateClosed: true,
}

// NormalizeState lowercases a tracker-native state ("OPEN", "Closed") and
// returns ErrInvalidState if it is not one of the State constants.
func NormalizeState(state string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(state))
	if !validStates[s] {
		return "", ErrInvalidState
	}
	return s, nil
}

// TrackerIssue is an issue as the tracker reports it. Number is the
// human-facing identifier; StableID is the opaque identifier used for
// references that must not depend on Number (grouping container membership).
type TrackerIssue struct {
	Number   int    `json:"number"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	State    string `json:"state"`
	URL      string `json:"url"`
	StableID string `json:"stable_id"`
}

// Closed reports whether the issue is in the closed state.
func (i TrackerIssue) Closed() bool {
	return i.State == StateClosed
}

// Ref returns the short "#<number>" reference.
func (i TrackerIssue) Ref() string {
	return "#" + strconv.Itoa(i.Number)
}

// CreatedIssue is the result of Tracker.CreateIssue.
type CreatedIssue struct {
	Number   int    `json:"number"`
	StableID string `json:"stable_id"`
	URL      string `json:"url"`
}

// Filter values for IssueFilter.State.
const (
	FilterAll    = "all"
	FilterOpen   = StateOpen
	FilterClosed = StateClosed
)

// IssueFilter narrows Tracker.ListIssues. The zero value lists every issue
// in the repository regardless of state.
type IssueFilter struct {
	// State is one of FilterAll (or empty), FilterOpen, FilterClosed.
	State string

	// InGroup restricts the listing to issues that are members of the
	// tracker's grouping container.
	InGroup bool
}

// Matches reports whether the issue passes the State part of the filter.
// Group membership is resolved by the tracker.
func (f IssueFilter) Matches(issue TrackerIssue) bool {
	switch f.State {
	case "", FilterAll:
		return true
	default:
		return issue.State == f.State
	}
}

// IndexByNumber returns a map of issues keyed by Number.
func IndexByNumber(issues []TrackerIssue) map[int]TrackerIssue {
	m := make(map[int]TrackerIssue, len(issues))
	for _, is := range issues {
		m[is.Number] = is
	}
	return m
}

// IndexByTitle returns a map of issues keyed by exact Title. When two issues
// share a title the one listed first wins; matching is exact-string only.
func IndexByTitle(issues []TrackerIssue) map[string]TrackerIssue {
	m := make(map[string]TrackerIssue, len(issues))
	for _, is := range issues {
		if _, seen := m[is.Title]; seen {
			continue
		}
		m[is.Title] = is
	}
	return m
}

// SyntheticNumber reports whether n is a placeholder issue number handed out
// by a dry-run tracker instead of a real tracker-assigned number.
func SyntheticNumber(n int) bool {
	return n < 0
}
