package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed sql/*.sql
var schemaFiles embed.FS

// SchemaManager provisions and inspects the content tables
type SchemaManager struct {
	db      *sqlx.DB
	dialect Dialect
}

// NewSchemaManager creates a new schema manager
func NewSchemaManager(db *sqlx.DB, dialect Dialect) *SchemaManager {
	return &SchemaManager{db: db, dialect: dialect}
}

// EnsureSchema creates any missing content tables and indexes
func (sm *SchemaManager) EnsureSchema(ctx context.Context) error {
	var schemaFile string

	switch sm.dialect {
	case SQLite:
		schemaFile = "sql/sqlite_schema.sql"
	case Postgres:
		schemaFile = "sql/postgres_schema.sql"
	default:
		return fmt.Errorf("unsupported database type: %s", sm.dialect)
	}

	schemaSQL, err := schemaFiles.ReadFile(schemaFile)
	if err != nil {
		return fmt.Errorf("failed to read schema file %s: %w", schemaFile, err)
	}

	for _, stmt := range splitStatements(string(schemaSQL)) {
		if strings.TrimSpace(stripComments(stmt)) == "" {
			continue
		}
		if _, err := sm.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", normalizeError(err))
		}
	}

	slog.Debug("Schema ensured", "database_type", sm.dialect)
	return nil
}

// TableExists checks if a table exists in the database
func (sm *SchemaManager) TableExists(ctx context.Context, table string) (bool, error) {
	var query string

	switch sm.dialect {
	case SQLite:
		query = `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`
	case Postgres:
		query = `SELECT table_name FROM information_schema.tables
		         WHERE table_schema = current_schema() AND table_name = $1`
	default:
		return false, fmt.Errorf("unsupported database type: %s", sm.dialect)
	}

	var found string
	err := sm.db.QueryRowContext(ctx, query, table).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	} else if err != nil {
		return false, normalizeError(err)
	}

	return found == table, nil
}

// ValidateSchema reports every listed table that is not provisioned
func (sm *SchemaManager) ValidateSchema(ctx context.Context, tables ...string) error {
	var missing []string
	for _, table := range tables {
		exists, err := sm.TableExists(ctx, table)
		if err != nil {
			return fmt.Errorf("failed to check if table %s exists: %w", table, err)
		}
		if !exists {
			missing = append(missing, table)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("schema validation failed: missing tables %s", strings.Join(missing, ", "))
	}

	slog.Debug("Schema validation passed", "database_type", sm.dialect, "tables", len(tables))
	return nil
}

// SchemaInfo lists the tables present in the database
type SchemaInfo struct {
	DatabaseType Dialect  `json:"database_type"`
	Tables       []string `json:"tables"`
}

// GetSchemaInfo returns information about the current schema
func (sm *SchemaManager) GetSchemaInfo(ctx context.Context) (*SchemaInfo, error) {
	var query string
	switch sm.dialect {
	case SQLite:
		query = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	case Postgres:
		query = `SELECT table_name FROM information_schema.tables
		         WHERE table_schema = current_schema() ORDER BY table_name`
	default:
		return nil, fmt.Errorf("unsupported database type: %s", sm.dialect)
	}

	info := &SchemaInfo{DatabaseType: sm.dialect, Tables: []string{}}
	if err := sm.db.SelectContext(ctx, &info.Tables, query); err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", normalizeError(err))
	}
	return info, nil
}

// splitStatements splits a script on semicolons outside dollar-quoted bodies
func splitStatements(script string) []string {
	var stmts []string
	inBody := false
	start := 0
	for i := 0; i < len(script); i++ {
		switch {
		case strings.HasPrefix(script[i:], "$$"):
			inBody = !inBody
			i++
		case script[i] == ';' && !inBody:
			stmts = append(stmts, script[start:i])
			start = i + 1
		}
	}
	if rest := script[start:]; strings.TrimSpace(rest) != "" {
		stmts = append(stmts, rest)
	}
	return stmts
}

func stripComments(stmt string) string {
	var b strings.Builder
	for _, line := range strings.Split(stmt, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
