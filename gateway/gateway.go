// Package gateway implements the generic create/read/update/delete façade shared by
// every admin entity kind.
//
// A Gateway[T] is configured with a Descriptor that maps wire columns to the JSON
// field names of T. Every failure it returns is a *Error carrying one of four
// kinds, so callers never see the backend's raw error shape.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wispberry-tech/wispy-admin/store"
)

// Entity is a stored record: store-owned identity and timestamps around the domain data
type Entity[T any] struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Data      T         `json:"data"`
}

// Patch is a partial update keyed by domain field names
type Patch map[string]any

// Option configures a Gateway
type Option func(*options)

type options struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// WithValidator replaces the validator used on Create
func WithValidator(v *validator.Validate) Option {
	return func(o *options) { o.validate = v }
}

// WithLogger sets the logger failures are reported on. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewValidator returns a validator that reports fields by their JSON names
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Gateway is the CRUD façade for one entity kind. It keeps no cache, so every
// read goes to the backend. It is safe for concurrent use.
type Gateway[T any] struct {
	backend  store.Backend
	desc     *Descriptor
	columns  []string
	fields   map[string]string // domain name -> Go field name
	validate *validator.Validate
	logger   *slog.Logger
}

// New creates a gateway for T. T must be a struct whose JSON field names are all
// declared in desc.
func New[T any](backend store.Backend, desc *Descriptor, opts ...Option) (*Gateway[T], error) {
	if backend == nil {
		return nil, fmt.Errorf("gateway requires a backend")
	}
	if desc == nil {
		return nil, fmt.Errorf("gateway requires a descriptor")
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	var zero T
	fields, err := checkShape(reflect.TypeOf(zero), desc)
	if err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.validate == nil {
		o.validate = NewValidator()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Gateway[T]{
		backend:  backend,
		desc:     desc,
		columns:  desc.Columns(),
		fields:   fields,
		validate: o.validate,
		logger:   o.logger.With("entity", desc.Kind),
	}, nil
}

// checkShape rejects domain structs with fields the descriptor cannot carry, which
// would otherwise be dropped silently on every write. It returns the Go field name
// of every domain name.
func checkShape(t reflect.Type, desc *Descriptor) (map[string]string, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("gateway %s: domain type must be a struct, got %v", desc.Kind, t)
	}
	fields := make(map[string]string, t.NumField())
	var unmapped []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		if _, ok := desc.WireName(name); !ok {
			unmapped = append(unmapped, name)
			continue
		}
		fields[name] = f.Name
	}
	if len(unmapped) > 0 {
		sort.Strings(unmapped)
		return nil, fmt.Errorf("gateway %s: fields %s of %v have no wire mapping", desc.Kind, strings.Join(unmapped, ", "), t)
	}
	return fields, nil
}

// Descriptor returns the descriptor the gateway was built with
func (g *Gateway[T]) Descriptor() *Descriptor {
	return g.desc
}

// List returns all records in the descriptor's default order
func (g *Gateway[T]) List(ctx context.Context) ([]Entity[T], error) {
	return g.ListBy(ctx, g.desc.DefaultOrder.Field, g.desc.DefaultOrder.Direction)
}

// ListBy returns all records ordered by a domain field, createdAt or updatedAt.
// Zero rows yield an empty slice.
func (g *Gateway[T]) ListBy(ctx context.Context, field string, dir Direction) ([]Entity[T], error) {
	column, ok := g.desc.orderColumn(field)
	if !ok {
		return nil, g.reject(OpList, fmt.Sprintf("cannot order by %q", field))
	}
	if dir != Asc && dir != Desc {
		return nil, g.reject(OpList, fmt.Sprintf("invalid order direction %q", dir))
	}

	rows, err := g.backend.Select(ctx, g.desc.Table, g.columns, store.Order{Column: column, Direction: dir})
	if err != nil {
		return nil, g.fail(ctx, OpList, err)
	}

	out := make([]Entity[T], 0, len(rows))
	for _, row := range rows {
		e, err := g.decode(row)
		if err != nil {
			return nil, g.report(ctx, OpList, KindUnknown, err)
		}
		out = append(out, *e)
	}
	return out, nil
}

// Get returns the record with the given id, or nil, nil when there is none
func (g *Gateway[T]) Get(ctx context.Context, id string) (*Entity[T], error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	row, err := g.backend.SelectByID(ctx, g.desc.Table, g.columns, id)
	if err != nil {
		return nil, g.fail(ctx, OpGet, err)
	}
	if row == nil {
		return nil, nil
	}
	e, err := g.decode(row)
	if err != nil {
		return nil, g.report(ctx, OpGet, KindUnknown, err)
	}
	return e, nil
}

// Create validates data, inserts its mapped fields and returns the stored record
// with its store-assigned id and timestamps
func (g *Gateway[T]) Create(ctx context.Context, data T) (*Entity[T], error) {
	if err := g.validate.Struct(data); err != nil {
		return nil, g.reject(OpCreate, formatValidationErrors(err))
	}

	values, err := toDomainValues(data)
	if err != nil {
		return nil, g.report(ctx, OpCreate, KindUnknown, err)
	}
	row, _, err := g.desc.ToWire(values)
	if err != nil {
		return nil, g.reject(OpCreate, err.Error())
	}

	stored, err := g.backend.Insert(ctx, g.desc.Table, g.columns, row)
	if err != nil {
		return nil, g.fail(ctx, OpCreate, err)
	}
	e, err := g.decode(stored)
	if err != nil {
		return nil, g.report(ctx, OpCreate, KindUnknown, err)
	}

	g.logger.Info("Entity created", "id", e.ID)
	return e, nil
}

// Update writes only the fields present in patch and returns the full record.
// Unknown fields are ignored. Updating a missing id is a validation error.
func (g *Gateway[T]) Update(ctx context.Context, id string, patch Patch) (*Entity[T], error) {
	if strings.TrimSpace(id) == "" {
		return nil, g.reject(OpUpdate, "an id is required")
	}

	row, skipped, err := g.desc.ToWire(patch)
	if err != nil {
		return nil, g.reject(OpUpdate, err.Error())
	}
	if len(skipped) > 0 {
		sort.Strings(skipped)
		g.logger.Debug("Ignoring unmapped patch fields", "id", id, "fields", skipped)
	}
	if len(row) == 0 {
		return nil, g.reject(OpUpdate, "no updatable fields were provided")
	}
	if err := g.validatePatch(row); err != nil {
		return nil, g.reject(OpUpdate, formatValidationErrors(err))
	}

	stored, err := g.backend.Update(ctx, g.desc.Table, g.columns, id, row)
	if err != nil {
		return nil, g.fail(ctx, OpUpdate, err)
	}
	if stored == nil {
		return nil, g.fail(ctx, OpUpdate, store.ErrNoRows)
	}
	e, err := g.decode(stored)
	if err != nil {
		return nil, g.report(ctx, OpUpdate, KindUnknown, err)
	}

	g.logger.Info("Entity updated", "id", e.ID, "fields", len(row))
	return e, nil
}

// Delete removes the record. Deleting an id that does not exist succeeds.
func (g *Gateway[T]) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return g.reject(OpDelete, "an id is required")
	}
	if err := g.backend.Delete(ctx, g.desc.Table, id); err != nil {
		return g.fail(ctx, OpDelete, err)
	}
	g.logger.Info("Entity deleted", "id", id)
	return nil
}

// validatePatch applies the struct's validation rules to the patched fields only,
// so a patch is held to the same constraints as Create
func (g *Gateway[T]) validatePatch(row store.Row) error {
	values, err := g.desc.FromWire(row)
	if err != nil {
		return err
	}
	var data T
	if err := fromDomainValues(values, &data); err != nil {
		return err
	}

	var names []string
	for wire := range row {
		domain, _ := g.desc.DomainName(wire)
		if name, ok := g.fields[domain]; ok {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	return g.validate.StructPartial(data, names...)
}

func (g *Gateway[T]) decode(row store.Row) (*Entity[T], error) {
	id, ok := row[store.ColumnID]
	if !ok || id == nil {
		return nil, fmt.Errorf("row has no %s column", store.ColumnID)
	}

	e := &Entity[T]{ID: idString(id)}

	if v, err := coerce(Time, row[store.ColumnCreatedAt]); err != nil {
		return nil, fmt.Errorf("column %s: %w", store.ColumnCreatedAt, err)
	} else if t, ok := v.(time.Time); ok {
		e.CreatedAt = t
	}
	if v, err := coerce(Time, row[store.ColumnUpdatedAt]); err != nil {
		return nil, fmt.Errorf("column %s: %w", store.ColumnUpdatedAt, err)
	} else if t, ok := v.(time.Time); ok {
		e.UpdatedAt = t
	}

	values, err := g.desc.FromWire(row)
	if err != nil {
		return nil, err
	}
	if err := fromDomainValues(values, &e.Data); err != nil {
		return nil, fmt.Errorf("failed to decode %s row: %w", g.desc.Kind, err)
	}
	return e, nil
}

func idString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// fail classifies a backend failure and logs it with its diagnostic
func (g *Gateway[T]) fail(ctx context.Context, op string, err error) *Error {
	return g.report(ctx, op, Classify(err), err)
}

func (g *Gateway[T]) report(ctx context.Context, op string, kind Kind, err error) *Error {
	detail := ""
	if kind == KindValidation && errors.Is(err, store.ErrNoRows) {
		detail = "no record matches that id"
	}
	gerr := newError(kind, g.desc, op, detail, err)

	level := slog.LevelWarn
	if kind == KindUnknown {
		level = slog.LevelError
	}
	g.logger.Log(ctx, level, "Gateway operation failed",
		"op", op, "kind", kind.String(), "diagnostic", gerr.Diagnostic())
	return gerr
}

// reject reports invalid caller input without touching the backend
func (g *Gateway[T]) reject(op, detail string) *Error {
	g.logger.Debug("Gateway input rejected", "op", op, "reason", detail)
	return newError(KindValidation, g.desc, op, detail, nil)
}

// Helper function to format validation errors
func formatValidationErrors(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var errorMessages []string
		for _, fieldError := range validationErrors {
			switch fieldError.Tag() {
			case "required":
				errorMessages = append(errorMessages, fmt.Sprintf("%s is required", fieldError.Field()))
			case "email":
				errorMessages = append(errorMessages, fmt.Sprintf("%s must be a valid email address", fieldError.Field()))
			case "url":
				errorMessages = append(errorMessages, fmt.Sprintf("%s must be a valid URL", fieldError.Field()))
			case "max", "lte":
				errorMessages = append(errorMessages, fmt.Sprintf("%s must be at most %s", fieldError.Field(), fieldError.Param()))
			case "min", "gte":
				errorMessages = append(errorMessages, fmt.Sprintf("%s must be at least %s", fieldError.Field(), fieldError.Param()))
			case "oneof":
				errorMessages = append(errorMessages, fmt.Sprintf("%s must be one of: %s", fieldError.Field(), fieldError.Param()))
			default:
				errorMessages = append(errorMessages, fmt.Sprintf("%s is invalid", fieldError.Field()))
			}
		}
		return strings.Join(errorMessages, "; ")
	}
	return err.Error()
}
