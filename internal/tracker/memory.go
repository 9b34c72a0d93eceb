// Package tracker holds Tracker implementations that wrap or stand in for a
// real issue tracker: an in-memory tracker, a dry-run decorator that
// suppresses writes, and a pacing decorator that spaces writes out.
package tracker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

// Memory is an in-process tracker. It backs tests and offline previews.
type Memory struct {
	mu      sync.Mutex
	issues  map[int]types.TrackerIssue
	groups  map[string]map[string]bool
	groupID string
	next    int
	baseURL string
	writes  int
}

// NewMemory creates an empty tracker whose grouping container is groupID.
func NewMemory(groupID string) *Memory {
	if groupID == "" {
		groupID = types.DefaultGroupName
	}
	return &Memory{
		issues:  make(map[int]types.TrackerIssue),
		groups:  make(map[string]map[string]bool),
		groupID: groupID,
		next:    1,
		baseURL: "https://tracker.invalid/issues/",
	}
}

// Seed stores issue as is, filling in URL, StableID and State when empty.
// Seeding is not counted as a write.
func (m *Memory) Seed(issue types.TrackerIssue) types.TrackerIssue {
	m.mu.Lock()
	defer m.mu.Unlock()
	if issue.Number <= 0 {
		issue.Number = m.next
	}
	if issue.Number >= m.next {
		m.next = issue.Number + 1
	}
	m.fill(&issue)
	m.issues[issue.Number] = issue
	return issue
}

// SeedInGroup seeds issue and adds it to the grouping container.
func (m *Memory) SeedInGroup(issue types.TrackerIssue) types.TrackerIssue {
	issue = m.Seed(issue)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addToGroup(m.groupID, issue.StableID)
	return issue
}

func (m *Memory) fill(issue *types.TrackerIssue) {
	if issue.URL == "" {
		issue.URL = fmt.Sprintf("%s%d", m.baseURL, issue.Number)
	}
	if issue.StableID == "" {
		issue.StableID = fmt.Sprintf("MEM_%d", issue.Number)
	}
	if issue.State == "" {
		issue.State = types.StateOpen
	}
}

// SetState changes the state of an issue. It is not counted as a write.
func (m *Memory) SetState(number int, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if is, ok := m.issues[number]; ok {
		is.State = state
		m.issues[number] = is
	}
}

// Writes returns the number of mutating calls that succeeded.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// CreateIssue implements types.Tracker.
func (m *Memory) CreateIssue(ctx context.Context, title, body string) (types.CreatedIssue, error) {
	if strings.TrimSpace(title) == "" {
		return types.CreatedIssue{}, types.ErrInvalidTitle
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	issue := types.TrackerIssue{Number: m.next, Title: title, Body: body}
	m.next++
	m.fill(&issue)
	m.issues[issue.Number] = issue
	m.writes++
	return types.CreatedIssue{Number: issue.Number, StableID: issue.StableID, URL: issue.URL}, nil
}

// GetIssue implements types.Tracker.
func (m *Memory) GetIssue(ctx context.Context, number int) (types.TrackerIssue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	is, ok := m.issues[number]
	if !ok {
		return types.TrackerIssue{}, fmt.Errorf("issue #%d: %w", number, types.ErrNotFound)
	}
	return is, nil
}

// ListIssues implements types.Tracker.
func (m *Memory) ListIssues(ctx context.Context, filter types.IssueFilter) ([]types.TrackerIssue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.TrackerIssue
	for _, is := range m.issues {
		if !filter.Matches(is) {
			continue
		}
		if filter.InGroup && !m.groups[m.groupID][is.StableID] {
			continue
		}
		out = append(out, is)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// UpdateIssueBody implements types.Tracker.
func (m *Memory) UpdateIssueBody(ctx context.Context, number int, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	is, ok := m.issues[number]
	if !ok {
		return fmt.Errorf("issue #%d: %w", number, types.ErrNotFound)
	}
	is.Body = body
	m.issues[number] = is
	m.writes++
	return nil
}

// AddToGroup implements types.Tracker.
func (m *Memory) AddToGroup(ctx context.Context, groupID, stableID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addToGroup(groupID, stableID) {
		m.writes++
	}
	return nil
}

func (m *Memory) addToGroup(groupID, stableID string) bool {
	g, ok := m.groups[groupID]
	if !ok {
		g = make(map[string]bool)
		m.groups[groupID] = g
	}
	if g[stableID] {
		return false
	}
	g[stableID] = true
	return true
}

// GroupID implements types.Tracker.
func (m *Memory) GroupID(ctx context.Context) (string, error) {
	return m.groupID, nil
}
