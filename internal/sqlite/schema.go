package sqlite

// Schema DDL. Issue numbers are assigned by the backend, not by SQLite, so
// that numbering survives a reload from JSONL.
const (
	createIssues = `CREATE TABLE issues (
    number INTEGER PRIMARY KEY,
    stable_id TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    body TEXT NOT NULL,
    state TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createGroupItems = `CREATE TABLE group_items (
    group_id TEXT NOT NULL,
    stable_id TEXT NOT NULL,
    added_at TEXT NOT NULL,
    PRIMARY KEY (group_id, stable_id)
);`

	idxIssuesTitle = `CREATE INDEX idx_issues_title ON issues(title);`
	idxIssuesState = `CREATE INDEX idx_issues_state ON issues(state);`
)

// schemaDDL lists all statements executed on Attach, in order.
var schemaDDL = []string{
	createIssues,
	createGroupItems,
	idxIssuesTitle,
	idxIssuesState,
}
