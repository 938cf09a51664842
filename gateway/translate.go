package gateway

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wispberry-tech/wispy-admin/store"
)

// timeLayouts are tried in order when a time arrives as text
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ToWire translates domain-keyed values into a wire row. Keys without a mapping
// are dropped and reported in skipped.
func (d *Descriptor) ToWire(values map[string]any) (row store.Row, skipped []string, err error) {
	row = make(store.Row, len(values))
	for key, v := range values {
		f, ok := d.byDomain[key]
		if !ok {
			skipped = append(skipped, key)
			continue
		}
		cv, err := coerce(f.Type, v)
		if err != nil {
			return nil, skipped, fmt.Errorf("%s: %w", f.Domain, err)
		}
		row[f.Wire] = cv
	}
	return row, skipped, nil
}

// FromWire translates a wire row into domain-keyed values. Only mapped columns are
// read, and times come back as time.Time.
func (d *Descriptor) FromWire(row store.Row) (map[string]any, error) {
	values := make(map[string]any, len(d.Fields))
	for _, f := range d.Fields {
		v, ok := row[f.Wire]
		if !ok {
			continue
		}
		cv, err := coerce(f.Type, v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", f.Wire, err)
		}
		if cv != nil {
			values[f.Domain] = cv
		}
	}
	return values, nil
}

// coerce normalizes v to the canonical Go type of t: string, int64, float64, bool
// or time.Time. nil and zero times become nil.
func coerce(t FieldType, v any) (any, error) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil, nil
	}

	switch t {
	case Text:
		switch x := v.(type) {
		case string:
			return x, nil
		case json.Number:
			return x.String(), nil
		case fmt.Stringer:
			return x.String(), nil
		}
		return nil, fmt.Errorf("expected text, got %T", v)

	case Int:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int64:
			return x, nil
		case float64:
			if x != math.Trunc(x) {
				return nil, fmt.Errorf("expected a whole number, got %v", x)
			}
			return int64(x), nil
		case json.Number:
			return strconv.ParseInt(x.String(), 10, 64)
		case string:
			if strings.TrimSpace(x) == "" {
				return nil, nil
			}
			return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		}
		return nil, fmt.Errorf("expected int, got %T", v)

	case Float:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case json.Number:
			return x.Float64()
		case string:
			if strings.TrimSpace(x) == "" {
				return nil, nil
			}
			return strconv.ParseFloat(strings.TrimSpace(x), 64)
		}
		return nil, fmt.Errorf("expected number, got %T", v)

	case Bool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case int:
			return x != 0, nil
		case string:
			return strconv.ParseBool(x)
		}
		return nil, fmt.Errorf("expected bool, got %T", v)

	case Time:
		switch x := v.(type) {
		case time.Time:
			if x.IsZero() {
				return nil, nil
			}
			return x.UTC(), nil
		case *time.Time:
			if x == nil || x.IsZero() {
				return nil, nil
			}
			return x.UTC(), nil
		case string:
			return parseTime(x)
		}
		return nil, fmt.Errorf("expected time, got %T", v)
	}
	return nil, fmt.Errorf("unsupported field type %v", t)
}

func parseTime(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.IsZero() {
				return nil, nil
			}
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("unrecognized time %q", s)
}

// toDomainValues flattens a domain struct into its JSON-keyed values
func toDomainValues(data any) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, err
	}
	return values, nil
}

// fromDomainValues fills a domain struct from JSON-keyed values
func fromDomainValues(values map[string]any, out any) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
