package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/esp-pix/authserver/config"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// MigrateUp applies all pending up migrations for the configured driver.
func MigrateUp(cfg config.DatabaseConfig) error {
	return runMigrations(cfg, func(m *migrate.Migrate) error {
		return m.Up()
	})
}

// MigrateDown rolls back every applied migration.
func MigrateDown(cfg config.DatabaseConfig) error {
	return runMigrations(cfg, func(m *migrate.Migrate) error {
		return m.Down()
	})
}

// runMigrations uses a dedicated connection because closing the migrator
// closes the database handle it was given.
func runMigrations(cfg config.DatabaseConfig, step func(*migrate.Migrate) error) error {
	driverName, dsn, err := DSN(cfg)
	if err != nil {
		return err
	}

	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return err
	}

	var instance database.Driver
	switch driverName {
	case DriverSQLite:
		instance, err = sqlite.WithInstance(conn, &sqlite.Config{})
	default:
		instance, err = postgres.WithInstance(conn, &postgres.Config{})
	}
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("init migration driver failed: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations/"+driverName)
	if err != nil {
		_ = instance.Close()
		return fmt.Errorf("open migrations failed: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, driverName, instance)
	if err != nil {
		_ = source.Close()
		_ = instance.Close()
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := step(migrator); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migrate failed: %w", err)
	}
	return nil
}
