// Package sqlstore implements store.Backend over database/sql, for PostgreSQL
// (pgx) and SQLite (ncruces). Ids are UUIDs and timestamps come from the store's
// clock, so the two dialects produce the same rows.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/wispberry-tech/wispy-admin/store"
)

var _ store.Backend = (*Store)(nil)

// Dialect selects SQL flavour and driver
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// sqliteTimeLayout is fixed-width so that text ordering matches time ordering
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options holds the store's id and time sources
type Options struct {
	Now   func() time.Time
	NewID func() string
}

// DefaultOptions uses the wall clock and random UUIDs
func DefaultOptions() Options {
	return Options{
		Now:   time.Now,
		NewID: uuid.NewString,
	}
}

// Store is a SQL-backed store.Backend
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	now     func() time.Time
	newID   func() string
}

// Open connects to the given dialect. For SQLite, dsn is a file path or ":memory:".
func Open(dialect Dialect, dsn string, opts Options) (*Store, error) {
	switch dialect {
	case Postgres:
		return OpenPostgres(dsn, opts)
	case SQLite:
		return OpenSQLite(dsn, opts)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dialect)
	}
}

// OpenPostgres connects through the pgx stdlib driver
func OpenPostgres(dsn string, opts Options) (*Store, error) {
	config, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	db := stdlib.OpenDB(*config)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return New(sqlx.NewDb(db, "pgx"), Postgres, opts), nil
}

// OpenSQLite opens a SQLite database file
func OpenSQLite(path string, opts Options) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory") {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	return New(db, SQLite, opts), nil
}

// New wraps an existing connection pool. Zero options fall back to DefaultOptions.
func New(db *sqlx.DB, dialect Dialect, opts Options) *Store {
	defaults := DefaultOptions()
	if opts.Now == nil {
		opts.Now = defaults.Now
	}
	if opts.NewID == nil {
		opts.NewID = defaults.NewID
	}
	return &Store{db: db, dialect: dialect, now: opts.Now, newID: opts.NewID}
}

// DB exposes the connection pool
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect reports the SQL flavour in use
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Schema returns a schema manager over the same pool
func (s *Store) Schema() *SchemaManager {
	return NewSchemaManager(s.db, s.dialect)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Select(ctx context.Context, table string, columns []string, order store.Order) ([]store.Row, error) {
	from, err := quoteIdent(table)
	if err != nil {
		return nil, err
	}
	list, err := selectList(columns)
	if err != nil {
		return nil, err
	}
	orderBy, err := quoteIdent(order.Column)
	if err != nil {
		return nil, err
	}
	dir := "ASC"
	if order.Direction == store.Desc {
		dir = "DESC"
	}

	// id breaks ties between rows stamped at the same instant
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s %s NULLS LAST, id ASC", list, from, orderBy, dir)
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select from %s: %w", table, normalizeError(err))
	}
	defer rows.Close()

	out := []store.Row{}
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, normalizeError(err))
		}
		out = append(out, store.Row(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", table, normalizeError(err))
	}
	return out, nil
}

func (s *Store) SelectByID(ctx context.Context, table string, columns []string, id string) (store.Row, error) {
	from, err := quoteIdent(table)
	if err != nil {
		return nil, err
	}
	list, err := selectList(columns)
	if err != nil {
		return nil, err
	}

	query := s.db.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", list, from))
	row := make(map[string]any)
	if err := s.db.QueryRowxContext(ctx, query, id).MapScan(row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select %s %s: %w", table, id, normalizeError(err))
	}
	return store.Row(row), nil
}

func (s *Store) Insert(ctx context.Context, table string, columns []string, values store.Row) (store.Row, error) {
	into, err := quoteIdent(table)
	if err != nil {
		return nil, err
	}
	list, err := selectList(columns)
	if err != nil {
		return nil, err
	}

	now := s.bind(s.now().UTC())
	names := []string{store.ColumnID, store.ColumnCreatedAt, store.ColumnUpdatedAt}
	args := []any{s.newID(), now, now}

	for _, key := range sortedKeys(values) {
		if isServerOwned(key) {
			return nil, fmt.Errorf("column %s is assigned by the store", key)
		}
		q, err := quoteIdent(key)
		if err != nil {
			return nil, err
		}
		names = append(names, q)
		args = append(args, s.bind(values[key]))
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	query := s.db.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		into, strings.Join(names, ", "), placeholders, list))

	row := make(map[string]any)
	if err := s.db.QueryRowxContext(ctx, query, args...).MapScan(row); err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", table, normalizeError(err))
	}
	return store.Row(row), nil
}

func (s *Store) Update(ctx context.Context, table string, columns []string, id string, values store.Row) (store.Row, error) {
	target, err := quoteIdent(table)
	if err != nil {
		return nil, err
	}
	list, err := selectList(columns)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("update of %s %s has no values", table, id)
	}

	var sets []string
	var args []any
	for _, key := range sortedKeys(values) {
		if isServerOwned(key) {
			return nil, fmt.Errorf("column %s is assigned by the store", key)
		}
		q, err := quoteIdent(key)
		if err != nil {
			return nil, err
		}
		sets = append(sets, q+" = ?")
		args = append(args, s.bind(values[key]))
	}
	sets = append(sets, store.ColumnUpdatedAt+" = ?")
	args = append(args, s.bind(s.now().UTC()), id)

	query := s.db.Rebind(fmt.Sprintf("UPDATE %s SET %s WHERE id = ? RETURNING %s",
		target, strings.Join(sets, ", "), list))

	row := make(map[string]any)
	if err := s.db.QueryRowxContext(ctx, query, args...).MapScan(row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoRows
		}
		return nil, fmt.Errorf("failed to update %s %s: %w", table, id, normalizeError(err))
	}
	return store.Row(row), nil
}

func (s *Store) Delete(ctx context.Context, table string, id string) error {
	from, err := quoteIdent(table)
	if err != nil {
		return err
	}
	query := s.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", from))
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", table, id, normalizeError(err))
	}
	return nil
}

// bind converts a value to what the dialect stores. SQLite keeps times as
// fixed-width UTC text.
func (s *Store) bind(v any) any {
	if s.dialect != SQLite {
		return v
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(sqliteTimeLayout)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(sqliteTimeLayout)
	}
	return v
}

func quoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

func selectList(columns []string) (string, error) {
	parts := []string{store.ColumnID, store.ColumnCreatedAt, store.ColumnUpdatedAt}
	for _, c := range columns {
		if isServerOwned(c) {
			continue
		}
		q, err := quoteIdent(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, q)
	}
	return strings.Join(parts, ", "), nil
}

func isServerOwned(column string) bool {
	return column == store.ColumnID || column == store.ColumnCreatedAt || column == store.ColumnUpdatedAt
}

func sortedKeys(values store.Row) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
