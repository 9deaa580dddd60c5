// Package database provides the papers catalog store for paperdex
package database

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
)

// Database wraps the papers catalog. SQLite serializes writers through
// its own journal; callers treat every operation as short-lived and
// auto-committing. No operation may hold a transaction open across a
// network call.
type Database struct {
	db *sql.DB

	// guards open/close state, not row data
	mux sync.RWMutex

	dbFile string
	closed bool
}

// OpenDatabase opens (and if necessary creates) the papers database at
// dbFile and ensures the schema exists.
func OpenDatabase(dbFile string) (*Database, error) {
	sqldb, err := sql.Open("sqlite3", dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open database '%s': %w", dbFile, err)
	}

	db := &Database{db: sqldb, dbFile: dbFile}

	if err := db.applyPragmas(); err != nil {
		sqldb.Close()
		return nil, err
	}
	if err := db.createSchema(); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db, nil
}

func (db *Database) applyPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply pragma '%s': %w", pragma, err)
		}
	}
	return nil
}

// Close closes the underlying connection pool. Safe to call once; the
// caller owns shutdown ordering (workers first, store last).
func (db *Database) Close() error {
	db.mux.Lock()
	defer db.mux.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	if err := db.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	log.Printf("[DATABASE] closed '%s'", db.dbFile)
	return nil
}

// Path returns the database file path.
func (db *Database) Path() string {
	return db.dbFile
}
