package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// One directory per dialect, same version numbers in both
//
//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

const migrationsTable = "autodl_schema_migrations"

// migrateSQLite brings db to the newest embedded schema and reports the
// resulting version. The migrator is not closed since that would close db.
func migrateSQLite(db *sql.DB) (uint, error) {
	// This driver works with modernc.org/sqlite as well
	driver, err := sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return 0, err
	}

	m, err := newMigrator("sqlite", driver)
	if err != nil {
		return 0, err
	}
	return up(m)
}

// migratePostgres does the same over a database/sql view of the pool.
// Closing the migrator releases its connection but leaves the pool open.
func migratePostgres(db *sql.DB) (uint, error) {
	driver, err := pgx.WithInstance(db, &pgx.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return 0, err
	}

	m, err := newMigrator("postgres", driver)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	return up(m)
}

func newMigrator(dialect string, driver database.Driver) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "migrations/"+dialect)
	if err != nil {
		return nil, err
	}
	return migrate.NewWithInstance("iofs", src, dialect, driver)
}

func up(m *migrate.Migrate) (uint, error) {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty, fix %s by hand", version, migrationsTable)
	}
	return version, nil
}
