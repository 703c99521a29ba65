package store

import (
	"database/sql"
	"fmt"

	"mizan/internal/logging"
)

// Migration defines one additive schema migration.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists columns added after the first released schema.
// These handle databases created before the column existed.
var pendingMigrations = []Migration{
	// Edge confidence was originally computed at read time.
	{"mechanism_edges", "confidence", "REAL NOT NULL DEFAULT 0.1"},
	// Direct-quote flag added when the evidence aggregate gained the quote bonus.
	{"evidence_spans", "is_direct", "INTEGER DEFAULT 0"},
	// Loop mining timestamp for operator inspection.
	{"detected_loops", "created_at", "DATETIME DEFAULT CURRENT_TIMESTAMP"},
}

// runMigrations applies additive migrations for existing databases.
func runMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "runMigrations")
	defer timer.Stop()

	appliedCount := 0
	skippedCount := 0

	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			skippedCount++
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			skippedCount++
			continue
		}

		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(query); err != nil {
			logging.Get(logging.CategoryStore).Warn("Migration failed (may already exist): %s.%s: %v", m.Table, m.Column, err)
			skippedCount++
			continue
		}
		logging.Store("Migration applied: added %s.%s", m.Table, m.Column)
		appliedCount++
	}

	logging.StoreDebug("Schema migrations complete: applied=%d, skipped=%d", appliedCount, skippedCount)
	return nil
}

// tableExists checks sqlite_master for a table.
func tableExists(db *sql.DB, table string) bool {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
	).Scan(&name)
	return err == nil
}

// columnExists checks a table's columns via PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
