// Package sqlite implements the local storysync tracker. SQLite is the query
// engine; JSONL files in the data directory are the source of truth. The
// database is rebuilt from the JSONL files on every Attach.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

// dbFileName is the query cache inside the data directory. It is disposable.
const dbFileName = "storysync.db"

// Backend is a file-backed types.Tracker. All methods are safe for
// concurrent use; writes are serialized by mu.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	dataDir  string
	groupID  string
	db       *sql.DB
	logger   *zap.Logger
}

// NewBackend creates a detached backend. Call Attach before use.
func NewBackend(logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{logger: logger}
}

// Attach opens the backend over config.DataDir. It creates the directory and
// empty JSONL files when missing, recreates the SQLite schema, and loads the
// JSONL records. Returns ErrAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAttached
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)
	// The database is a cache; JSONL is authoritative.
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fmt.Errorf("create schema: %w", err)
		}
	}

	if err := initJSONLFiles(dataDir); err != nil {
		db.Close()
		return err
	}
	if err := loadAllJSONL(db, dataDir); err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	b.db = db
	b.dataDir = dataDir
	b.groupID = groupIDFor(config)
	b.attached = true

	b.logger.Debug("local tracker attached", zap.String("data_dir", dataDir))
	return nil
}

// Detach closes the database. Detach is idempotent. After Detach every
// tracker operation returns ErrDetached.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	return nil
}

// DataDir returns the directory the backend is attached to.
func (b *Backend) DataDir() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dataDir
}

// groupIDFor names the local grouping container. The project number keeps
// local rehearsals aligned with the configured GitHub project.
func groupIDFor(config types.Config) string {
	n := config.GitHub.ProjectNumber
	if n <= 0 {
		n = types.DefaultProjectNumber
	}
	return fmt.Sprintf("local-project-%d", n)
}

// newStableID generates a UUID v7 for issue stable IDs.
func newStableID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
