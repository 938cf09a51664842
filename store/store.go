// Package store defines the port the resource gateway uses to reach the hosted
// tabular store, and the normalized failure shape every backend reports.
//
// Backends live in sub-packages:
//   - sqlstore: PostgreSQL (pgx) and SQLite (ncruces) through database/sql
//   - reststore: a PostgREST-style HTTP table API
package store

import (
	"context"
	"errors"
	"fmt"
)

// Server-owned columns present on every table
const (
	ColumnID        = "id"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
)

// ErrNoRows is returned by Update when the id matches no row
var ErrNoRows = errors.New("no rows matched")

// Row is a single record keyed by wire column names
type Row map[string]any

// Direction is a sort direction
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Order is a single-column ordering
type Order struct {
	Column    string
	Direction Direction
}

// Backend is the generic per-table operation set of the backing store.
//
// columns lists the wire columns the caller wants back in addition to the
// server-owned ones. SelectByID returns nil, nil when the id is unknown.
// Delete of an unknown id is not an error.
type Backend interface {
	Select(ctx context.Context, table string, columns []string, order Order) ([]Row, error)
	SelectByID(ctx context.Context, table string, columns []string, id string) (Row, error)
	Insert(ctx context.Context, table string, columns []string, values Row) (Row, error)
	Update(ctx context.Context, table string, columns []string, id string, values Row) (Row, error)
	Delete(ctx context.Context, table string, id string) error
}

// Error is a backend failure reduced to the fields a classifier needs.
//
// Code carries a SQLSTATE (e.g. "42P01") or a PostgREST code (e.g. "PGRST205").
// Backends without native codes translate into SQLSTATE equivalents.
type Error struct {
	Code    string
	Status  int
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	var s string
	switch {
	case e.Code != "" && e.Status != 0:
		s = fmt.Sprintf("HTTP %d [%s]: %s", e.Status, e.Code, e.Message)
	case e.Status != 0:
		s = fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	case e.Code != "":
		s = fmt.Sprintf("[%s] %s", e.Code, e.Message)
	default:
		s = e.Message
	}
	if e.Detail != "" {
		s += " (" + e.Detail + ")"
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}
