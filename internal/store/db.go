package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the SQLite journal (wppbot.db) of one session: messages, read
// marks, contacts, the reply outbox and stats digests.
type DB struct {
	*sql.DB
	path string
}

// journalPragmas are applied to every pooled connection by the driver.
var journalPragmas = url.Values{
	"_journal_mode": {"WAL"},
	"_busy_timeout": {"5000"},
	"_foreign_keys": {"on"},
	"_synchronous":  {"NORMAL"},
}

// Open opens or creates the journal at path. The parent directory is
// created when missing. Writes are serialized on a single connection.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?"+journalPragmas.Encode())
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return &DB{DB: db, path: path}, nil
}

// Path returns the journal file path.
func (db *DB) Path() string {
	return db.path
}
