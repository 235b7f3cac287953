// Package store reads the Red Eclipse stats database. Queries are composed
// with squirrel so the same code runs against PostgreSQL (pgx) and the
// SQLite files written by game servers (modernc.org/sqlite).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a named entity does not exist.
var ErrNotFound = errors.New("not found")

// Rows is the subset of pgx.Rows used by the store. *sql.Rows is adapted.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close()
	Err() error
}

// Row is a single-row result.
type Row interface {
	Scan(dest ...any) error
}

// DB is a read-only database handle.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
	Ping(ctx context.Context) error
	Close()
}

// Store runs the statistics queries.
type Store struct {
	db     DB
	sb     sq.StatementBuilderType
	logger *zap.SugaredLogger
}

// New wraps a DB. placeholder must match the driver: sq.Dollar for
// PostgreSQL, sq.Question for SQLite.
func New(db DB, placeholder sq.PlaceholderFormat, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(placeholder),
		logger: logger.Sugar(),
	}
}

// Open connects to the stats database. driver is "postgres" or "sqlite";
// for sqlite, url is the path of the database file.
func Open(ctx context.Context, driver, url string, logger *zap.Logger) (*Store, error) {
	switch driver {
	case "postgres":
		db, err := NewPostgres(ctx, url)
		if err != nil {
			return nil, err
		}
		return New(db, sq.Dollar, logger), nil
	case "sqlite":
		db, err := OpenSQLite(url)
		if err != nil {
			return nil, err
		}
		return New(db, sq.Question, logger), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the database handle.
func (s *Store) Close() {
	s.db.Close()
}

func (s *Store) query(ctx context.Context, b sq.Sqlizer) (Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return s.db.Query(ctx, query, args...)
}

func (s *Store) queryRow(ctx context.Context, b sq.Sqlizer, dest ...any) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	return s.db.QueryRow(ctx, query, args...).Scan(dest...)
}

func (s *Store) queryIDs(ctx context.Context, b sq.Sqlizer) ([]int64, error) {
	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) queryStrings(ctx context.Context, b sq.Sqlizer) ([]string, error) {
	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) count(ctx context.Context, b sq.Sqlizer) (int64, error) {
	var n int64
	if err := s.queryRow(ctx, b, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// sum casts an aggregate so both drivers scan it into int64.
func sum(expr string) string {
	return "CAST(COALESCE(SUM(" + expr + "), 0) AS BIGINT)"
}

func offset(page, perPage int) uint64 {
	if page < 0 {
		page = 0
	}
	return uint64(page * perPage)
}
