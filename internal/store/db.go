// Package store is the SQLite-backed metadata store for memories.
package store

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection to the retain SQLite database.
type DB struct {
	*sql.DB
	Path string
}

// DefaultDBPath returns the default database path: ~/.retain/retain.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", goerr.Wrap(err, "get home dir")
	}
	return filepath.Join(home, ".retain", "retain.db"), nil
}

// Open opens (or creates) the SQLite database at the given path,
// configures pragmas, and runs migrations.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, goerr.Wrap(err, "create db dir", goerr.V("dir", dir))
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "open sqlite", goerr.V("path", path))
	}
	// Pragmas are per-connection; pin the pool to one so they stick.
	// SQLite serializes writes anyway.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, Path: path}
	if err := db.configurePragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, goerr.Wrap(err, "migrate")
	}
	return db, nil
}

// OpenMemory opens an in-memory SQLite database for testing.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, goerr.Wrap(err, "open sqlite memory")
	}
	// A second pooled connection would see its own empty :memory: database.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, Path: ":memory:"}
	if err := db.configurePragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, goerr.Wrap(err, "migrate")
	}
	return db, nil
}

func (db *DB) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA mmap_size=268435456", // 256MB
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return goerr.Wrap(err, "pragma", goerr.V("pragma", p))
		}
	}
	return nil
}
