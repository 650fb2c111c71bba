package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Backend names accepted by Open.
const (
	BackendSQLite   = "sqlite"
	BackendDocument = "document"
)

// Open opens the store for backend at path. journalMode only applies to
// SQLite.
func Open(backend, path, journalMode string) (Store, error) {
	switch backend {
	case "", BackendSQLite:
		return OpenSQLite(path, journalMode)
	case BackendDocument:
		return NewDocumentStore(path)
	}
	return nil, fmt.Errorf("unknown storage backend %q", backend)
}

// OpenSQLite opens (creating if needed) and migrates the database at path.
// The returned store closes the database on Close.
func OpenSQLite(path, journalMode string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := NewMigrationRunner(db).RunWithJournalMode(journalMode); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create store: %w", err)
	}
	store.ownsDB = true
	return store, nil
}
