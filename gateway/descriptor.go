package gateway

import (
	"fmt"

	"github.com/wispberry-tech/wispy-admin/store"
)

// FieldType tells the translator how to normalize a value crossing the wire boundary
type FieldType int

const (
	Text FieldType = iota
	Int
	Float
	Bool
	Time
)

func (t FieldType) String() string {
	switch t {
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Time:
		return "time"
	default:
		return "text"
	}
}

// FieldMapping pairs a wire column with its domain field name
type FieldMapping struct {
	Wire   string
	Domain string
	Type   FieldType
}

// Direction re-exports store.Direction so descriptors read naturally
type Direction = store.Direction

const (
	Asc  = store.Asc
	Desc = store.Desc
)

// Domain names of the server-owned columns, usable as order fields
const (
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// OrderBy names a domain field (or createdAt/updatedAt) and a direction
type OrderBy struct {
	Field     string
	Direction Direction
}

// Descriptor is the per-entity-kind translation table and endpoint.
//
// Fields is ordered and restricts translation in both directions: wire columns
// without a mapping are ignored on read, domain fields without a mapping are
// never sent.
type Descriptor struct {
	Kind         string // stable identifier, e.g. "live_match"
	Label        string // human-readable name used in user-facing messages
	Table        string // backend endpoint identifier
	Fields       []FieldMapping
	DefaultOrder OrderBy

	byDomain map[string]FieldMapping
	byWire   map[string]FieldMapping
	columns  []string
}

// Validate checks the descriptor and builds its lookup indexes. It is called by New,
// and calling it more than once is harmless.
func (d *Descriptor) Validate() error {
	if d.Kind == "" {
		return fmt.Errorf("descriptor kind is required")
	}
	if d.Table == "" {
		return fmt.Errorf("descriptor %s: table is required", d.Kind)
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("descriptor %s: at least one field mapping is required", d.Kind)
	}
	if d.Label == "" {
		d.Label = d.Kind
	}

	byDomain := make(map[string]FieldMapping, len(d.Fields))
	byWire := make(map[string]FieldMapping, len(d.Fields))
	columns := make([]string, 0, len(d.Fields))

	for _, f := range d.Fields {
		if f.Wire == "" || f.Domain == "" {
			return fmt.Errorf("descriptor %s: mapping %+v has an empty name", d.Kind, f)
		}
		switch f.Wire {
		case store.ColumnID, store.ColumnCreatedAt, store.ColumnUpdatedAt:
			return fmt.Errorf("descriptor %s: %s is server-owned and cannot be mapped", d.Kind, f.Wire)
		}
		switch f.Domain {
		case "id", FieldCreatedAt, FieldUpdatedAt:
			return fmt.Errorf("descriptor %s: domain name %s is reserved", d.Kind, f.Domain)
		}
		if _, dup := byWire[f.Wire]; dup {
			return fmt.Errorf("descriptor %s: wire column %s mapped twice", d.Kind, f.Wire)
		}
		if _, dup := byDomain[f.Domain]; dup {
			return fmt.Errorf("descriptor %s: domain field %s mapped twice", d.Kind, f.Domain)
		}
		byWire[f.Wire] = f
		byDomain[f.Domain] = f
		columns = append(columns, f.Wire)
	}

	d.byDomain = byDomain
	d.byWire = byWire
	d.columns = columns

	if d.DefaultOrder.Field == "" {
		d.DefaultOrder = OrderBy{Field: FieldCreatedAt, Direction: Desc}
	}
	if _, ok := d.orderColumn(d.DefaultOrder.Field); !ok {
		return fmt.Errorf("descriptor %s: default order field %s is not mapped", d.Kind, d.DefaultOrder.Field)
	}
	if d.DefaultOrder.Direction != Asc && d.DefaultOrder.Direction != Desc {
		return fmt.Errorf("descriptor %s: invalid order direction %q", d.Kind, d.DefaultOrder.Direction)
	}
	return nil
}

// Columns returns the mapped wire columns in declaration order
func (d *Descriptor) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// WireName returns the wire column for a domain field
func (d *Descriptor) WireName(domain string) (string, bool) {
	f, ok := d.byDomain[domain]
	return f.Wire, ok
}

// DomainName returns the domain field for a wire column
func (d *Descriptor) DomainName(wire string) (string, bool) {
	f, ok := d.byWire[wire]
	return f.Domain, ok
}

func (d *Descriptor) orderColumn(field string) (string, bool) {
	switch field {
	case FieldCreatedAt:
		return store.ColumnCreatedAt, true
	case FieldUpdatedAt:
		return store.ColumnUpdatedAt, true
	}
	return d.WireName(field)
}
