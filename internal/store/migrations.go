package store

import (
	"database/sql"
	"fmt"
)

// currentSchemaVersion is the latest schema version.
const currentSchemaVersion = 2

// Migrate runs forward migrations to bring the database schema up to date.
func (db *DB) Migrate() error {
	// Create the schema_version table if it does not exist.
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	version := 0
	row := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&version); err != nil {
		// No rows means version 0 (fresh database).
		version = 0
	}

	migrations := []struct {
		version    int
		statements []string
	}{
		{1, v1Statements},
		{2, v2Statements},
	}
	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		if err := db.migrate(m.version, m.statements); err != nil {
			return fmt.Errorf("migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// v1Statements create the profile and feedback tables.
var v1Statements = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		name                  TEXT PRIMARY KEY,
		type_weights          TEXT NOT NULL,
		priority_weights      TEXT NOT NULL,
		confidence_threshold  REAL NOT NULL,
		disabled_types        TEXT NOT NULL,
		total_suggestions     INTEGER NOT NULL DEFAULT 0,
		applied_suggestions   INTEGER NOT NULL DEFAULT 0,
		dismissed_suggestions INTEGER NOT NULL DEFAULT 0,
		updated_at            TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS feedback (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		profile             TEXT NOT NULL,
		suggestion_id       TEXT NOT NULL,
		suggestion_type     TEXT NOT NULL,
		priority            TEXT NOT NULL,
		applied             BOOLEAN NOT NULL,
		reason              TEXT,
		original_confidence REAL NOT NULL,
		created_at          TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_feedback_profile ON feedback(profile)`,
}

// v2Statements add the analysis run history.
var v2Statements = []string{
	`CREATE TABLE IF NOT EXISTS analysis_runs (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		file_path        TEXT NOT NULL,
		profile          TEXT NOT NULL,
		raw_count        INTEGER NOT NULL,
		kept_count       INTEGER NOT NULL,
		high_priority    INTEGER NOT NULL,
		duration_ms      INTEGER NOT NULL,
		analyzed_at      TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_analysis_runs_file ON analysis_runs(file_path)`,
}

// migrate applies one schema version inside a transaction.
func (db *DB) migrate(version int, statements []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", firstLine(stmt), err)
		}
	}
	if err := setVersion(tx, version); err != nil {
		return err
	}
	return tx.Commit()
}

func setVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func firstLine(stmt string) string {
	if len(stmt) > 40 {
		return stmt[:40]
	}
	return stmt
}
