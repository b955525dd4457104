// Package sqlite is the storage layer, backed by an embedded SQLite file.
//
// One binary, one database file, nothing else to operate — the right shape
// for a membership directory that runs on a single box. The driver is
// modernc.org/sqlite, a pure-Go translation of SQLite: no CGo, so the server
// cross-compiles cleanly. Tests open ":memory:" and get a fresh, disposable
// database per test.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql via its init().
	_ "modernc.org/sqlite"
)

// DB owns the connection pool and carries all repository methods. It
// satisfies the service layer's UserRepository interface.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and brings the schema up to
// date. Pass ":memory:" for an ephemeral in-memory database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// sql.Open only builds the pool; Ping forces a real connection so a bad
	// path fails here rather than on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight, which matters once
	// concurrent HTTP requests share the file.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// SQLite ships with foreign keys off.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close releases the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. Everything is IF NOT EXISTS, so it runs
// safely on every startup.
//
// Schema notes:
//   - email is UNIQUE; the service lowercases emails before they get here,
//     so a plain unique index gives case-insensitive uniqueness.
//   - github_id is NULL for password signups. The partial unique index
//     constrains only rows that have one.
//   - latitude/longitude are nullable REALs — NULL means "not geocoded".
//   - zip, state, and the coordinate pair carry indexes because the count
//     endpoints filter on them.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			github_id     INTEGER,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			first_name    TEXT NOT NULL DEFAULT '',
			last_name     TEXT NOT NULL DEFAULT '',
			zip           TEXT NOT NULL DEFAULT '',
			latitude      REAL,
			longitude     REAL,
			state         TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_github_id
			ON users(github_id) WHERE github_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_users_zip   ON users(zip);
		CREATE INDEX IF NOT EXISTS idx_users_state ON users(state);
		CREATE INDEX IF NOT EXISTS idx_users_coords ON users(latitude, longitude);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	return nil
}
