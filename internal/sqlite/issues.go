package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

// issueRecord is the JSONL shape of one issue.
type issueRecord struct {
	Number    int    `json:"number"`
	StableID  string `json:"stable_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	State     string `json:"state"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// groupItemRecord is the JSONL shape of one grouping container membership.
type groupItemRecord struct {
	GroupID  string `json:"group_id"`
	StableID string `json:"stable_id"`
	AddedAt  string `json:"added_at"`
}

const issueColumns = "number, stable_id, title, body, state"

// CreateIssue allocates the next issue number and stores an open issue.
func (b *Backend) CreateIssue(ctx context.Context, title, body string) (types.CreatedIssue, error) {
	if strings.TrimSpace(title) == "" {
		return types.CreatedIssue{}, types.ErrInvalidTitle
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.CreatedIssue{}, types.ErrDetached
	}

	var next int
	if err := b.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(number), 0) + 1 FROM issues").Scan(&next); err != nil {
		return types.CreatedIssue{}, fmt.Errorf("allocating issue number: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	stableID := newStableID()
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO issues (number, stable_id, title, body, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		next, stableID, title, body, types.StateOpen, now, now)
	if err != nil {
		return types.CreatedIssue{}, fmt.Errorf("inserting issue: %w", err)
	}
	if err := b.persistIssuesJSONL(ctx); err != nil {
		return types.CreatedIssue{}, err
	}

	b.logger.Debug("issue created", zap.Int("number", next), zap.String("title", title))
	return types.CreatedIssue{Number: next, StableID: stableID, URL: b.issueURL(next)}, nil
}

// GetIssue returns the issue with the given number or ErrNotFound.
func (b *Backend) GetIssue(ctx context.Context, number int) (types.TrackerIssue, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.TrackerIssue{}, types.ErrDetached
	}

	row := b.db.QueryRowContext(ctx, "SELECT "+issueColumns+" FROM issues WHERE number = ?", number)
	issue, err := b.scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.TrackerIssue{}, fmt.Errorf("issue #%d: %w", number, types.ErrNotFound)
	}
	if err != nil {
		return types.TrackerIssue{}, fmt.Errorf("reading issue #%d: %w", number, err)
	}
	return issue, nil
}

// ListIssues returns issues ordered by number.
func (b *Backend) ListIssues(ctx context.Context, filter types.IssueFilter) ([]types.TrackerIssue, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	query := "SELECT " + issueColumns + " FROM issues"
	var conds []string
	var args []any
	switch filter.State {
	case "", types.FilterAll:
	case types.FilterOpen, types.FilterClosed:
		conds = append(conds, "state = ?")
		args = append(args, filter.State)
	default:
		return nil, fmt.Errorf("filter state %q: %w", filter.State, types.ErrInvalidState)
	}
	if filter.InGroup {
		conds = append(conds, "stable_id IN (SELECT stable_id FROM group_items WHERE group_id = ?)")
		args = append(args, b.groupID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY number"

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	defer rows.Close()

	var issues []types.TrackerIssue
	for rows.Next() {
		issue, err := b.scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// UpdateIssueBody replaces the body of an existing issue.
func (b *Backend) UpdateIssueBody(ctx context.Context, number int, body string) error {
	return b.updateIssue(ctx, number, "body", body)
}

// SetState opens or closes an issue. The tracker engine never calls this;
// it backs the local "issue close" and "issue reopen" commands.
func (b *Backend) SetState(ctx context.Context, number int, state string) error {
	s, err := types.NormalizeState(state)
	if err != nil {
		return err
	}
	return b.updateIssue(ctx, number, "state", s)
}

func (b *Backend) updateIssue(ctx context.Context, number int, column, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrDetached
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := b.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE issues SET %s = ?, updated_at = ? WHERE number = ?", column),
		value, now, number)
	if err != nil {
		return fmt.Errorf("updating issue #%d: %w", number, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("issue #%d: %w", number, types.ErrNotFound)
	}
	return b.persistIssuesJSONL(ctx)
}

// AddToGroup records membership of stableID in groupID. Re-adding an
// existing member succeeds without a write.
func (b *Backend) AddToGroup(ctx context.Context, groupID, stableID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrDetached
	}

	var exists int
	err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM issues WHERE stable_id = ?", stableID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking issue %s: %w", stableID, err)
	}
	if exists == 0 {
		return fmt.Errorf("issue %s: %w", stableID, types.ErrNotFound)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := b.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO group_items (group_id, stable_id, added_at) VALUES (?, ?, ?)",
		groupID, stableID, now)
	if err != nil {
		return fmt.Errorf("adding %s to %s: %w", stableID, groupID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	return b.persistGroupItemsJSONL(ctx)
}

// GroupID returns the local grouping container identifier.
func (b *Backend) GroupID(ctx context.Context) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return "", types.ErrDetached
	}
	return b.groupID, nil
}

// issueURL renders a stable file URL whose last two path segments are
// issues/<number>, matching the shape of hosted tracker URLs.
func (b *Backend) issueURL(number int) string {
	abs, err := filepath.Abs(b.dataDir)
	if err != nil {
		abs = b.dataDir
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(abs, "issues", strconv.Itoa(number)))}
	return u.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (b *Backend) scanIssue(row rowScanner) (types.TrackerIssue, error) {
	var issue types.TrackerIssue
	if err := row.Scan(&issue.Number, &issue.StableID, &issue.Title, &issue.Body, &issue.State); err != nil {
		return types.TrackerIssue{}, err
	}
	issue.URL = b.issueURL(issue.Number)
	return issue, nil
}

// JSONL persistence. Each helper rewrites the whole file from SQLite.

func (b *Backend) persistIssuesJSONL(ctx context.Context) error {
	rows, err := b.db.QueryContext(ctx,
		"SELECT number, stable_id, title, body, state, created_at, updated_at FROM issues ORDER BY number")
	if err != nil {
		return fmt.Errorf("reading issues for JSONL: %w", err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		var r issueRecord
		if err := rows.Scan(&r.Number, &r.StableID, &r.Title, &r.Body, &r.State, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return fmt.Errorf("scanning issue for JSONL: %w", err)
		}
		rec, err := json.Marshal(r)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return writeJSONL(filepath.Join(b.dataDir, issuesJSONL), records)
}

func (b *Backend) persistGroupItemsJSONL(ctx context.Context) error {
	rows, err := b.db.QueryContext(ctx,
		"SELECT group_id, stable_id, added_at FROM group_items ORDER BY group_id, added_at, stable_id")
	if err != nil {
		return fmt.Errorf("reading group items for JSONL: %w", err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		var r groupItemRecord
		if err := rows.Scan(&r.GroupID, &r.StableID, &r.AddedAt); err != nil {
			return fmt.Errorf("scanning group item for JSONL: %w", err)
		}
		rec, err := json.Marshal(r)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return writeJSONL(filepath.Join(b.dataDir, groupItemsJSONL), records)
}
