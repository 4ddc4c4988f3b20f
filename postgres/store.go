// Package postgres reports the version of a PostgreSQL database reached
// directly over the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DriverName is the database/sql driver registered by pgx.
const DriverName = "pgx"

// DefaultQuery returns the server version string.
const DefaultQuery = "select version()"

// ErrMissingDSN indicates Open was called without a connection string.
var ErrMissingDSN = errors.New("postgres: dsn is required")

// Store runs the version query against a database handle.
type Store struct {
	db    *sql.DB
	query string
	owned bool
}

// New wraps an existing handle. An empty query uses DefaultQuery. The
// caller keeps ownership of db.
func New(db *sql.DB, query string) *Store {
	if strings.TrimSpace(query) == "" {
		query = DefaultQuery
	}
	return &Store{db: db, query: query}
}

// Open prepares a small pool for dsn. No connection is made until the
// first query.
func Open(dsn, query string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrMissingDSN
	}
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := New(db, query)
	s.owned = true
	return s, nil
}

// Version runs the configured query and returns its single text column.
func (s *Store) Version(ctx context.Context) (string, error) {
	var version sql.NullString
	if err := s.db.QueryRowContext(ctx, s.query).Scan(&version); err != nil {
		return "", describe(err)
	}
	return version.String, nil
}

// Ping verifies a connection can be established.
func (s *Store) Ping(ctx context.Context) error {
	return describe(s.db.PingContext(ctx))
}

// Close releases the pool if Open created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// describe shortens server errors to the message and SQLSTATE.
func describe(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("postgres: version query returned no rows")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("postgres: %s (SQLSTATE %s): %w", pgErr.Message, pgErr.Code, err)
	}
	return err
}
