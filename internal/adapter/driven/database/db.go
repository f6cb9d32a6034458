// Package database implements the storage ports on top of database/sql,
// backed by SQLite (modernc.org/sqlite) or PostgreSQL (pgx).
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL backend behind a DB.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// driverName returns the database/sql driver registered for the dialect.
func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// DB provides a writer and a reader connection pool. The writer is limited to
// a single connection, which the collector reuses for the whole run.
type DB struct {
	Writer  *sql.DB
	Reader  *sql.DB
	Dialect Dialect
	dsn     string
}

// ParseURL resolves a database URL to a dialect and driver DSN.
// Accepted forms:
//   - postgres://... or postgresql://...
//   - sqlite:///relative/path.db, sqlite:////absolute/path.db
//   - sqlite://relative/path.db
//   - file:path.db or a bare filesystem path
func ParseURL(raw string) (Dialect, string, error) {
	switch {
	case raw == "":
		return "", "", fmt.Errorf("empty database url")
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return DialectPostgres, raw, nil
	case strings.HasPrefix(raw, "sqlite:///"):
		path := strings.TrimPrefix(raw, "sqlite:///")
		if path == "" {
			return "", "", fmt.Errorf("sqlite url %q has no path", raw)
		}
		return DialectSQLite, path, nil
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite url %q has no path", raw)
		}
		return DialectSQLite, path, nil
	case strings.HasPrefix(raw, "file:"):
		return DialectSQLite, strings.TrimPrefix(raw, "file:"), nil
	case strings.Contains(raw, "://"):
		scheme, _, _ := strings.Cut(raw, "://")
		return "", "", fmt.Errorf("unsupported database scheme %q", scheme)
	default:
		return DialectSQLite, raw, nil
	}
}

// Open connects to the database identified by rawURL and verifies both pools.
// For SQLite the parent directory of the database file is created if needed.
func Open(ctx context.Context, rawURL string) (*DB, error) {
	dialect, target, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	dsn := target
	if dialect == DialectSQLite {
		path, query := target, ""
		if strings.HasPrefix(rawURL, "file:") {
			path, query, _ = strings.Cut(target, "?")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		dsn = sqliteDSN(path, query)
	}

	return openPools(ctx, dialect, dsn)
}

const sqlitePragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=cache_size(-64000)"

// sqliteDSN enables WAL mode, busy timeout, synchronous NORMAL and a 64MB cache.
// The path is escaped so '?' and '#' stay part of the file name; query holds
// caller-supplied URI parameters and is kept ahead of the pragmas.
func sqliteDSN(path, query string) string {
	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?"
	if query != "" {
		dsn += query + "&"
	}
	return dsn + sqlitePragmas
}

func openPools(ctx context.Context, dialect Dialect, dsn string) (*DB, error) {
	writer, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	if err := writer.PingContext(ctx); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("ping writer: %w", err)
	}

	reader, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(4)

	if err := reader.PingContext(ctx); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("ping reader: %w", err)
	}

	return &DB{
		Writer:  writer,
		Reader:  reader,
		Dialect: dialect,
		dsn:     dsn,
	}, nil
}

// Close closes both reader and writer connections. Returns the first error encountered.
func (db *DB) Close() error {
	var firstErr error

	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}

	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}

// rebind rewrites '?' placeholders to the dialect's positional form.
func (db *DB) rebind(query string) string {
	if db.Dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
