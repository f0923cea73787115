// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which needs a C compiler and makes
// cross-compilation painful. modernc.org/sqlite is a pure Go translation of
// the SQLite sources — works everywhere Go works.
//
// Tags and images are stored as JSON arrays in TEXT columns: SQLite has no
// native array type, and the service layer only ever reads or replaces the
// whole set, so a JSON blob keeps the schema simple while the set-union
// merge happens in Go.
package sqlite

import (
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	// Side-effect import: the driver registers itself with database/sql
	// under the name "sqlite".
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and hands out the per-aggregate stores.
// The server owns the lifecycle: New at startup, Close on shutdown.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
// Use ":memory:" in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// sql.Open doesn't actually connect; Ping surfaces a bad path or
	// permissions problem now instead of on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in flight — relevant
	// for a web server where requests overlap.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

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

// Close closes the connection pool. Always defer this next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Users returns the user store backed by this connection.
func (db *DB) Users() *UserDB {
	return &UserDB{conn: db.conn}
}

// Cars returns the car-listing store backed by this connection.
func (db *DB) Cars() *CarDB {
	return &CarDB{conn: db.conn}
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS is idempotent, so
// this is safe to run on every startup.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			username      TEXT NOT NULL DEFAULT '',
			profile_img   TEXT NOT NULL DEFAULT '',
			verified      INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS cars (
			id             TEXT PRIMARY KEY,
			created_by     TEXT NOT NULL REFERENCES users(id),
			model          TEXT NOT NULL,
			company        TEXT NOT NULL,
			dealer         TEXT NOT NULL,
			dealer_address TEXT NOT NULL,
			year           DATETIME NOT NULL,
			transmission   TEXT NOT NULL,
			price          REAL NOT NULL,
			currency       TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT '',
			tags           TEXT NOT NULL DEFAULT '[]',
			images         TEXT NOT NULL DEFAULT '[]',
			created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_cars_created_by ON cars(created_by);
		CREATE INDEX IF NOT EXISTS idx_cars_created_at ON cars(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating cars table: %w", err)
	}

	return nil
}

// newObjectID generates a 24-character hex id: a 4-byte big-endian unix
// timestamp followed by 8 random bytes. The timestamp prefix keeps ids
// roughly sortable by creation time; the format matches what the API's id
// validation accepts. Neither xid (base32) nor uuid (32 hex chars) produce
// this shape, hence the local generator.
func newObjectID() string {
	var b [12]byte
	binary.BigEndian.PutUint32(b[:4], uint32(time.Now().Unix()))
	if _, err := rand.Read(b[4:]); err != nil {
		// crypto/rand never fails on supported platforms; a broken
		// entropy source is not something we can limp past.
		panic(fmt.Sprintf("sqlite: reading random bytes: %v", err))
	}
	return hex.EncodeToString(b[:])
}
