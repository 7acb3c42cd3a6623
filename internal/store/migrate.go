package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/matheus3301/wppbot/internal/store/migrations"
)

// SchemaChange reports the journal schema version before and after Migrate.
type SchemaChange struct {
	From uint
	To   uint
}

// Applied reports whether Migrate ran any migration.
func (c SchemaChange) Applied() bool {
	return c.From != c.To
}

// Migrate brings the journal schema up to date. A journal left dirty by an
// interrupted migration is refused rather than repaired.
func (db *DB) Migrate() (SchemaChange, error) {
	m, err := db.migrator()
	if err != nil {
		return SchemaChange{}, err
	}

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return SchemaChange{}, fmt.Errorf("read schema version: %w", err)
	case dirty:
		return SchemaChange{From: from, To: from}, fmt.Errorf("journal %s is dirty at schema version %d, restore a backup", db.path, from)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return SchemaChange{From: from}, fmt.Errorf("migrate journal: %w", err)
	}
	to, _, err := m.Version()
	if err != nil {
		return SchemaChange{From: from}, fmt.Errorf("read schema version: %w", err)
	}
	return SchemaChange{From: from, To: to}, nil
}

func (db *DB) migrator() (*migrate.Migrate, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}
	return m, nil
}
