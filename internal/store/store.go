// Package store persists the wellbeing framework and its mechanism overlay in
// SQLite: framework entities (pillars, core values, sub-values), mechanism
// nodes and signed edges, evidence spans, and the offline-mined loop set. It
// implements worldmodel.GraphLoader and framework.SeedStore.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"mizan/internal/logging"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed storage layer. A single connection with WAL
// journaling; reads take the read lock, writes the write lock.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewStore opens (or creates) the database at path and initializes the schema.
// Use ":memory:" for tests.
func NewStore(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewStore")
	defer timer.Stop()

	logging.Store("Initializing store at path: %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logging.StoreDebug("Failed to set sqlite foreign_keys=ON: %v", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		logging.Get(logging.CategoryStore).Warn("Schema migrations had issues: %v", err)
	}

	logging.Store("Store initialization complete")
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	frameworkTables := `
	CREATE TABLE IF NOT EXISTS pillars (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		name_ar TEXT DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS core_values (
		id TEXT PRIMARY KEY,
		pillar_id TEXT NOT NULL,
		name TEXT NOT NULL,
		name_ar TEXT DEFAULT '',
		FOREIGN KEY(pillar_id) REFERENCES pillars(id)
	);
	CREATE TABLE IF NOT EXISTS sub_values (
		id TEXT PRIMARY KEY,
		core_value_id TEXT NOT NULL,
		name TEXT NOT NULL,
		name_ar TEXT DEFAULT '',
		FOREIGN KEY(core_value_id) REFERENCES core_values(id)
	);
	CREATE INDEX IF NOT EXISTS idx_core_values_pillar ON core_values(pillar_id);
	CREATE INDEX IF NOT EXISTS idx_sub_values_core ON sub_values(core_value_id);
	`

	mechanismTables := `
	CREATE TABLE IF NOT EXISTS mechanism_nodes (
		id TEXT PRIMARY KEY,
		ref_kind TEXT NOT NULL,
		ref_id TEXT NOT NULL,
		label TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_mechanism_nodes_ref ON mechanism_nodes(ref_kind, ref_id);

	CREATE TABLE IF NOT EXISTS mechanism_edges (
		id TEXT PRIMARY KEY,
		from_node TEXT NOT NULL,
		to_node TEXT NOT NULL,
		relation_type TEXT NOT NULL,
		polarity INTEGER NOT NULL,
		confidence REAL NOT NULL DEFAULT 0.1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(from_node) REFERENCES mechanism_nodes(id),
		FOREIGN KEY(to_node) REFERENCES mechanism_nodes(id)
	);
	CREATE INDEX IF NOT EXISTS idx_mechanism_edges_from ON mechanism_edges(from_node);
	CREATE INDEX IF NOT EXISTS idx_mechanism_edges_to ON mechanism_edges(to_node);

	CREATE TABLE IF NOT EXISTS evidence_spans (
		id TEXT PRIMARY KEY,
		edge_id TEXT NOT NULL,
		chunk_id TEXT NOT NULL,
		quote TEXT DEFAULT '',
		is_direct INTEGER DEFAULT 0,
		FOREIGN KEY(edge_id) REFERENCES mechanism_edges(id)
	);
	CREATE INDEX IF NOT EXISTS idx_evidence_spans_edge ON evidence_spans(edge_id);
	`

	loopsTable := `
	CREATE TABLE IF NOT EXISTS detected_loops (
		loop_id TEXT PRIMARY KEY,
		loop_type TEXT NOT NULL,
		edge_ids TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	for _, ddl := range []string{frameworkTables, mechanismTables, loopsTable} {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	logging.Store("Closing store at %s", s.dbPath)
	return s.db.Close()
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.dbPath
}
