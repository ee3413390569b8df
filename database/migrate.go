package database

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// getMigrationDatabaseURL reads the URL straight from the environment so
// migrations run without the rest of the application config.
func getMigrationDatabaseURL() string {
	return ConstructDatabaseURL(os.Getenv("DATABASE_URL"), os.Getenv("DATABASE_NAME"))
}

// MigrateUp runs all pending migrations
func MigrateUp() error {
	return withMigrate(getMigrationDatabaseURL(), func(m *migrate.Migrate) error {
		if err := m.Up(); errors.Is(err, migrate.ErrNoChange) {
			log.Info("Schema is up to date")
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logVersion(m, "Migrated database")
		return nil
	})
}

// MigrateDown rolls back the given number of migrations
func MigrateDown(stepsStr string) error {
	steps, err := strconv.Atoi(stepsStr)
	if err != nil || steps <= 0 {
		return fmt.Errorf("steps must be a positive integer, got %q", stepsStr)
	}

	return withMigrate(getMigrationDatabaseURL(), func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); errors.Is(err, migrate.ErrNoChange) {
			log.Info("Nothing to roll back")
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to roll back %d migrations: %w", steps, err)
		}
		logVersion(m, "Rolled back database")
		return nil
	})
}

// MigrateStatus logs the schema version
func MigrateStatus() error {
	return withMigrate(getMigrationDatabaseURL(), func(m *migrate.Migrate) error {
		logVersion(m, "Current schema version")
		return nil
	})
}

// RunMigrationsWithURL brings the schema at databaseURL up to date. Startup
// and the test containers use it because their URL is not in the environment.
func RunMigrationsWithURL(databaseURL string) error {
	return withMigrate(databaseURL, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	})
}

func logVersion(m *migrate.Migrate, msg string) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Info("No migrations have been applied")
		return
	}
	if err != nil {
		log.WithError(err).Warn("Failed to read schema version")
		return
	}
	log.WithFields(log.Fields{
		"version": version,
		"dirty":   dirty,
	}).Info(msg)
}

func withMigrate(databaseURL string, fn func(m *migrate.Migrate) error) error {
	m, err := getMigrate(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func getMigrate(databaseURL string) (*migrate.Migrate, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}

	target, err := postgres.WithInstance(stdlib.OpenDB(*poolCfg.ConnConfig), &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open migration target: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", target)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}
