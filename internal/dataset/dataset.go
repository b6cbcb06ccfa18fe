// Package dataset holds the typed, ordered tables produced by extraction.
//
// A Dataset is built once (New + Append) and treated as read-only afterwards:
// filters and projections return new Datasets instead of mutating rows.
package dataset

import (
	"fmt"
)

// Kind is the declared scalar type of a field.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
)

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindString, KindInt, KindFloat:
		return true
	default:
		return false
	}
}

// Field is one column of the dataset schema.
type Field struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Row is one fully populated record. Values are aligned with the dataset
// fields and hold string, int64 or float64 depending on the field kind.
type Row []any

// Dataset is an ordered collection of rows sharing one field schema.
type Dataset struct {
	fields []Field
	index  map[string]int
	rows   []Row
}

// New creates an empty dataset with the given schema.
//
// Field names must be non-empty and unique; kinds must be valid.
func New(fields []Field) (*Dataset, error) {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("dataset: field %d has empty name", i)
		}
		if !f.Kind.Valid() {
			return nil, fmt.Errorf("dataset: field %q has unsupported kind %q", f.Name, f.Kind)
		}
		if _, dup := idx[f.Name]; dup {
			return nil, fmt.Errorf("dataset: duplicate field %q", f.Name)
		}
		idx[f.Name] = i
	}
	cp := append([]Field(nil), fields...)
	return &Dataset{fields: cp, index: idx}, nil
}

// MustNew is New for statically known schemas (tests, fixed pipelines).
func MustNew(fields ...Field) *Dataset {
	ds, err := New(fields)
	if err != nil {
		panic(err)
	}
	return ds
}

// Append adds a row after checking every value against its field kind.
// It is meant for builders; consumers never call it on a finished dataset.
func (d *Dataset) Append(values ...any) error {
	if len(values) != len(d.fields) {
		return fmt.Errorf("dataset: row has %d values, schema has %d fields", len(values), len(d.fields))
	}
	row := make(Row, len(values))
	for i, v := range values {
		f := d.fields[i]
		switch f.Kind {
		case KindString:
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("dataset: field %q wants string, got %T", f.Name, v)
			}
			row[i] = s
		case KindInt:
			switch n := v.(type) {
			case int64:
				row[i] = n
			case int:
				row[i] = int64(n)
			default:
				return fmt.Errorf("dataset: field %q wants int, got %T", f.Name, v)
			}
		case KindFloat:
			switch n := v.(type) {
			case float64:
				row[i] = n
			case int64:
				row[i] = float64(n)
			default:
				return fmt.Errorf("dataset: field %q wants float, got %T", f.Name, v)
			}
		}
	}
	d.rows = append(d.rows, row)
	return nil
}

// Fields returns a copy of the schema.
func (d *Dataset) Fields() []Field {
	return append([]Field(nil), d.fields...)
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// Has reports whether the schema declares name.
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Field returns the schema entry for name.
func (d *Dataset) Field(name string) (Field, bool) {
	i, ok := d.index[name]
	if !ok {
		return Field{}, false
	}
	return d.fields[i], true
}

// Row returns a copy of row i.
func (d *Dataset) Row(i int) Row {
	return append(Row(nil), d.rows[i]...)
}

// Value returns the raw value of field name in row i.
func (d *Dataset) Value(i int, name string) (any, error) {
	j, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("dataset: unknown field %q", name)
	}
	if i < 0 || i >= len(d.rows) {
		return nil, fmt.Errorf("dataset: row %d out of range [0,%d)", i, len(d.rows))
	}
	return d.rows[i][j], nil
}

// String returns a string field; it panics on schema misuse like a slice index would.
func (d *Dataset) String(i int, name string) string {
	return d.mustValue(i, name).(string)
}

// Int returns an int field.
func (d *Dataset) Int(i int, name string) int64 {
	return d.mustValue(i, name).(int64)
}

// Float returns a numeric field as float64 (int fields are widened).
func (d *Dataset) Float(i int, name string) float64 {
	switch v := d.mustValue(i, name).(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		panic(fmt.Sprintf("dataset: field %q is not numeric", name))
	}
}

func (d *Dataset) mustValue(i int, name string) any {
	v, err := d.Value(i, name)
	if err != nil {
		panic(err)
	}
	return v
}

// Column returns all values of one field in row order.
func (d *Dataset) Column(name string) ([]any, error) {
	j, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("dataset: unknown field %q", name)
	}
	out := make([]any, len(d.rows))
	for i, r := range d.rows {
		out[i] = r[j]
	}
	return out, nil
}

// Floats returns a numeric column as float64 values.
func (d *Dataset) Floats(name string) ([]float64, error) {
	f, ok := d.Field(name)
	if !ok {
		return nil, fmt.Errorf("dataset: unknown field %q", name)
	}
	if f.Kind == KindString {
		return nil, fmt.Errorf("dataset: field %q is not numeric", name)
	}
	j := d.index[name]
	out := make([]float64, len(d.rows))
	for i, r := range d.rows {
		switch v := r[j].(type) {
		case int64:
			out[i] = float64(v)
		case float64:
			out[i] = v
		}
	}
	return out, nil
}

// Strings returns a string column.
func (d *Dataset) Strings(name string) ([]string, error) {
	f, ok := d.Field(name)
	if !ok {
		return nil, fmt.Errorf("dataset: unknown field %q", name)
	}
	if f.Kind != KindString {
		return nil, fmt.Errorf("dataset: field %q is not a string field", name)
	}
	j := d.index[name]
	out := make([]string, len(d.rows))
	for i, r := range d.rows {
		out[i] = r[j].(string)
	}
	return out, nil
}

// Records returns the rows as positional slices, ready for bulk inserts.
func (d *Dataset) Records() [][]any {
	out := make([][]any, len(d.rows))
	for i, r := range d.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}

// Filter returns a new dataset holding the rows for which keep returns true.
func (d *Dataset) Filter(keep func(d *Dataset, i int) bool) *Dataset {
	out := &Dataset{fields: d.fields, index: d.index}
	for i, r := range d.rows {
		if keep(d, i) {
			out.rows = append(out.rows, r)
		}
	}
	return out
}
