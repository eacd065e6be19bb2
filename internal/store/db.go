// Package store provides SQLite persistence for codehint preference
// profiles, their feedback logs and the analysis run history.
package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// connPragmas are applied by the driver to every pooled connection. WAL
// lets a running watch daemon read profiles while a feedback command writes
// them; the busy timeout covers the short window where both want the write
// lock.
var connPragmas = []string{
	"foreign_keys(1)",
	"journal_mode(WAL)",
	"busy_timeout(5000)",
}

// DB is a migrated handle on the codehint database.
type DB struct {
	conn *sql.DB
}

// dsn appends the connection pragmas to path.
func dsn(path string, pragmas []string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}

// Open opens the database at dbPath, creating the file and its directory
// on first use, and brings the schema up to date.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database dir: %w", err)
	}
	conn, err := sql.Open("sqlite", dsn(dbPath, connPragmas))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dbPath, err)
	}
	return setup(conn)
}

// OpenInMemory returns a private in-memory database. Tests use it.
func OpenInMemory() (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(":memory:", connPragmas[:1]))
	if err != nil {
		return nil, err
	}
	// One connection, or each pooled connection sees its own empty database.
	conn.SetMaxOpenConns(1)
	return setup(conn)
}

// setup checks the connection and migrates. conn is closed on failure.
func setup(conn *sql.DB) (*DB, error) {
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connecting: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.Migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the pool for ad hoc queries.
func (db *DB) Conn() *sql.DB {
	return db.conn
}
