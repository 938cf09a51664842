package sqlstore

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ncruces/go-sqlite3"

	"github.com/wispberry-tech/wispy-admin/store"
)

// normalizeError turns driver errors into *store.Error. SQLite result codes are
// translated to their SQLSTATE equivalents. Anything else is returned unchanged.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &store.Error{
			Code:    pgErr.Code,
			Message: pgErr.Message,
			Detail:  pgErr.Detail,
			Err:     err,
		}
	}

	var liteErr *sqlite3.Error
	if errors.As(err, &liteErr) {
		return &store.Error{
			Code:    sqliteState(liteErr),
			Message: liteErr.Error(),
			Err:     err,
		}
	}

	return err
}

func sqliteState(err *sqlite3.Error) string {
	switch err.ExtendedCode() {
	case sqlite3.CONSTRAINT_UNIQUE, sqlite3.CONSTRAINT_PRIMARYKEY:
		return "23505"
	case sqlite3.CONSTRAINT_NOTNULL:
		return "23502"
	case sqlite3.CONSTRAINT_FOREIGNKEY:
		return "23503"
	case sqlite3.CONSTRAINT_CHECK:
		return "23514"
	}

	switch err.Code() {
	case sqlite3.CONSTRAINT:
		return "23000"
	case sqlite3.AUTH, sqlite3.PERM, sqlite3.READONLY:
		return "42501"
	case sqlite3.MISMATCH:
		return "22000"
	case sqlite3.TOOBIG:
		return "22001"
	case sqlite3.RANGE:
		return "22003"
	case sqlite3.ERROR:
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "no such table"):
			return "42P01"
		case strings.Contains(msg, "no such column"), strings.Contains(msg, "has no column named"):
			return "42703"
		}
	}
	return ""
}
