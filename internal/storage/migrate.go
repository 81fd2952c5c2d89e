package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SchemaVersion is the newest migration shipped in migrations/: expenses,
// then the training run log and model artifact tables.
const SchemaVersion uint = 2

// ErrDirtySchema means an earlier migration stopped halfway and needs manual
// repair before the database can be used.
var ErrDirtySchema = errors.New("sqlite schema is dirty")

// Migrate applies pending migrations to the database at dbPath and returns
// the schema version it ends at. It uses its own connection so the
// repository's pool is never left on a migration lock.
func Migrate(dbPath string) (uint, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open migration database: %w", err)
	}
	defer conn.Close()

	driver, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("create sqlite driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("read embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	applied := true
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return 0, fmt.Errorf("apply migrations: %w", err)
		}
		applied = false
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("%w at version %d", ErrDirtySchema, version)
	}

	slog.Info("SQLite schema ready",
		"db_path", dbPath,
		"schema_version", version,
		"migrated", applied)
	return version, nil
}
