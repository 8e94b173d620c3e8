package main

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrationsFS embed.FS

//go:embed migrations/postgres/*.sql
var postgresMigrationsFS embed.FS

func runMigrations(db *sql.DB, driver string) error {
	var (
		sourceFS fs.FS
		subdir   string
	)

	switch driver {
	case "sqlite3":
		sourceFS = sqliteMigrationsFS
		subdir = "migrations/sqlite"
	case "postgres":
		sourceFS = postgresMigrationsFS
		subdir = "migrations/postgres"
	default:
		return fmt.Errorf("unsupported migration driver: %s", driver)
	}

	source, err := iofs.New(sourceFS, subdir)
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}

	var dbDriver database.Driver
	switch driver {
	case "sqlite3":
		dbDriver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case "postgres":
		dbDriver, err = postgres.WithInstance(db, &postgres.Config{})
	}
	if err != nil {
		return fmt.Errorf("migrate db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, dbDriver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	return nil
}
