package postgres

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// newMigrate reads migrations from migrationsPath, or from the copy compiled
// into the binary when the path is empty.
func newMigrate(databaseURL, migrationsPath string) (*migrate.Migrate, error) {
	if migrationsPath != "" {
		return migrate.New("file://"+migrationsPath, databaseURL)
	}

	source, err := iofs.New(embeddedMigrations, "migrations")
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", source, databaseURL)
}

// RunMigrations runs database migrations.
func RunMigrations(databaseURL, migrationsPath string, logger zerolog.Logger) error {
	m, err := newMigrate(databaseURL, migrationsPath)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info().Msg("database migrations: no change")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Msg("database migrations: applied successfully")
	return nil
}

// RunMigrationsDown rolls back the last migration.
func RunMigrationsDown(databaseURL, migrationsPath string, logger zerolog.Logger) error {
	m, err := newMigrate(databaseURL, migrationsPath)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	logger.Info().Msg("database migrations: rolled back successfully")
	return nil
}
