// Package persistence implements the optional Performance Store: durable
// per-agent, per-domain learning snapshots, SQLite-backed via
// modernc.org/sqlite. It never persists in-flight task or agent lifecycle
// state — only historical PerformanceStats — so a process restart always
// starts scheduling from a clean slate while still remembering what each
// agent has learned, grounded on the teacher's internal/persistence/store.go
// (aristath-orchestrator), retargeted from task/session rows to
// performance-snapshot rows.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed Performance Store.
type Store struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) a SQLite database at dbPath
// with WAL mode, a busy timeout, and NORMAL synchronous durability.
func NewSQLiteStore(ctx context.Context, dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(2)

	store := &Store{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// NewMemoryStore creates an in-memory SQLite store (shared cache, so
// multiple connections see the same database), for tests.
func NewMemoryStore(ctx context.Context) (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}
	db.SetMaxOpenConns(2)

	store := &Store{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
