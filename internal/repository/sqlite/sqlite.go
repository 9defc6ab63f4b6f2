// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without a C toolchain. database/sql gives us the connection pool; this
// package owns the schema and translates SQLite errors into apperror kinds.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and creates the schema. It inserts
// no rows; seeding belongs to service.CategoryService.SeedDefaults.
//
// dbPath examples:
//   - "data/todo.db"  → file-based database (persistent)
//   - ":memory:"      → in-memory database (tests; lost on close)
//
// Pragmas are passed through the DSN so every pooled connection gets them.
// SQLite only enforces FOREIGN KEY constraints on connections where
// foreign_keys is ON, and the Todo → Category invariant depends on it.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each connection to ":memory:" is its own database, so the pool must
	// never open a second one.
	if strings.Contains(dbPath, ":memory:") {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if !strings.Contains(dbPath, ":memory:") {
		pragmas += "&_pragma=journal_mode(WAL)"
	}
	return dbPath + sep + pragmas
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. Every statement is idempotent.
//
// todos.category_id has no ON DELETE action, so deleting a category that
// still has todos fails with a FOREIGN KEY error (RESTRICT semantics).
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS categories (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);
	`)
	if err != nil {
		return fmt.Errorf("creating categories table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS todos (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			task        TEXT NOT NULL,
			user_id     TEXT NOT NULL CHECK (user_id <> ''),
			category_id INTEGER NOT NULL REFERENCES categories(id),
			done        BOOLEAN NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_todos_user_id ON todos(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating todos table: %w", err)
	}

	// expires_at is a unix timestamp so comparisons do not depend on the
	// driver's time formatting.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			data       TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
	`)
	if err != nil {
		return fmt.Errorf("creating sessions table: %w", err)
	}

	return nil
}

// constraintCode returns the extended SQLite result code when err is a
// constraint violation, or 0.
func constraintCode(err error) int {
	var se *sqlitedrv.Error
	if !errors.As(err, &se) {
		return 0
	}
	if se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return 0
	}
	return se.Code()
}

func isForeignKeyViolation(err error) bool {
	code := constraintCode(err)
	if code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return code != 0 && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isUniqueViolation(err error) bool {
	code := constraintCode(err)
	if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
		return true
	}
	return code != 0 && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
