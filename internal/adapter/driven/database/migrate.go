package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// RunMigrations applies all pending migrations for the DB's dialect.
// It is safe to call on every startup; already-applied migrations are skipped.
func RunMigrations(db *DB) error {
	return withMigrator(db, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("run migrations: %w", err)
		}
		return nil
	})
}

// RollbackMigrations reverts every applied migration.
func RollbackMigrations(db *DB) error {
	return withMigrator(db, func(m *migrate.Migrate) error {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("rollback migrations: %w", err)
		}
		return nil
	})
}

// withMigrator runs fn against a migrator bound to a dedicated connection
// pool, since the migrate drivers close the handle they are given.
func withMigrator(db *DB, fn func(*migrate.Migrate) error) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations/"+string(db.Dialect))
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	conn, err := sql.Open(db.Dialect.driverName(), db.dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}

	var dbDriver migratedb.Driver
	switch db.Dialect {
	case DialectPostgres:
		dbDriver, err = migratepgx.WithInstance(conn, &migratepgx.Config{})
	default:
		dbDriver, err = migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	}
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, string(db.Dialect), dbDriver)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		_, _ = m.Close()
		_ = conn.Close()
	}()

	return fn(m)
}
