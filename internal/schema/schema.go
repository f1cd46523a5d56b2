// Package schema embeds the database migrations for each supported dialect
// and applies them with golang-migrate.
package schema

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/JaimeStill/tawarruq/pkg/database"
)

//go:embed postgres/*.sql sqlite/*.sql
var migrations embed.FS

// Dir returns the embedded migration directory for a database driver.
func Dir(driver string) (string, error) {
	switch driver {
	case database.DriverPostgres:
		return "postgres", nil
	case database.DriverSQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("no migrations for driver %q", driver)
	}
}

// Source returns a golang-migrate source over the embedded migrations for driver.
func Source(driver string) (source.Driver, error) {
	dir, err := Dir(driver)
	if err != nil {
		return nil, err
	}
	return iofs.New(migrations, dir)
}

// Migrate applies all pending up migrations to db.
// The connection pool stays open; for sqlite the migrator shares db directly,
// for postgres it borrows a single connection and returns it when done.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	src, err := Source(driver)
	if err != nil {
		return err
	}

	var m *migrate.Migrate

	switch driver {
	case database.DriverPostgres:
		conn, err := db.Conn(ctx)
		if err != nil {
			return fmt.Errorf("acquire migration connection: %w", err)
		}

		drv, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
		if err != nil {
			conn.Close()
			return fmt.Errorf("create postgres migrator: %w", err)
		}

		m, err = migrate.NewWithInstance("iofs", src, "postgres", drv)
		if err != nil {
			drv.Close()
			return fmt.Errorf("create migrator: %w", err)
		}
		defer m.Close()

	case database.DriverSQLite:
		drv, err := sqlite.WithInstance(db, &sqlite.Config{})
		if err != nil {
			return fmt.Errorf("create sqlite migrator: %w", err)
		}

		m, err = migrate.NewWithInstance("iofs", src, "sqlite", drv)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
