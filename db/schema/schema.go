// Package schema embeds the PostgreSQL migrations and applies them with golang-migrate.
package schema

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres:// driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migrations holds the NNN_description.{up,down}.sql files.
//
//go:embed *.sql
var Migrations embed.FS

// New opens a migrator for the database at dsn.
func New(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(Migrations, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// Up applies every pending migration. An up-to-date database is not an error.
func Up(dsn string) error {
	return run(dsn, (*migrate.Migrate).Up)
}

// Down reverts every applied migration.
func Down(dsn string) error {
	return run(dsn, (*migrate.Migrate).Down)
}

// Steps applies n migrations, reverting when n is negative.
func Steps(dsn string, n int) error {
	return run(dsn, func(m *migrate.Migrate) error { return m.Steps(n) })
}

// Version reports the applied version and whether the last migration left the database dirty.
func Version(dsn string) (uint, bool, error) {
	m, err := New(dsn)
	if err != nil {
		return 0, false, err
	}
	defer closeMigrator(m)
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func run(dsn string, fn func(*migrate.Migrate) error) error {
	m, err := New(dsn)
	if err != nil {
		return err
	}
	defer closeMigrator(m)
	if err := fn(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func closeMigrator(m *migrate.Migrate) {
	_, _ = m.Close()
}
