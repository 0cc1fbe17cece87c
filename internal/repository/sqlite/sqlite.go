// Package sqlite is the SQLite-backed credential store.
//
// SQLite keeps the whole service a single binary plus one file — no database
// server to run next to it, and tests get a throwaway store from ":memory:".
// modernc.org/sqlite is the pure-Go translation of SQLite, so there is no
// CGo and cross-compilation stays trivial.
package sqlite

import (
	"database/sql"
	"fmt"

	// Blank import for the driver's init(), which registers "sqlite" with
	// database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps the sql.DB handle and provides the repository methods.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// ":memory:" gives a throwaway store for tests.
//
// sql.Open only sets up the pool; the Ping forces a real connection so a
// bad path or permissions problem surfaces at startup, not on the first
// request.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection only. SQLite serializes writes anyway, and the PRAGMAs
	// below are per-connection — a pool would apply them to just one member.
	// This also makes ":memory:" safe: every new pool connection would
	// otherwise get its own empty in-memory database.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight, which matters for
	// a web server even on our single connection.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite (for backwards compatibility).
	// We turn them on — provider_links rows must not outlive their user.
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

// Close closes the database connection pool.
//
// Wherever you call New(), immediately defer Close() — it flushes the WAL
// and releases the file lock even if a panic occurs later.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it safe to
// run on every startup.
//
// Schema notes:
//   - users.email is UNIQUE — one account per email.
//   - users.google_id is nullable-UNIQUE: NULL rows don't collide (SQLite
//     treats NULLs as distinct in UNIQUE indexes), set values do.
//   - users.version backs the optimistic compare-and-write in Update.
//   - provider_links has one row per (user, provider) — connecting the same
//     provider twice updates the row rather than appending a second one.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			role          TEXT NOT NULL DEFAULT 'influencer',
			google_id     TEXT UNIQUE,
			version       INTEGER NOT NULL DEFAULT 1,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS provider_links (
			user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			provider      TEXT NOT NULL,
			external_id   TEXT NOT NULL,
			username      TEXT NOT NULL DEFAULT '',
			access_token  TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			profile_json  TEXT NOT NULL DEFAULT '{}',
			verified      INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, provider)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating provider_links table: %w", err)
	}

	return nil
}
