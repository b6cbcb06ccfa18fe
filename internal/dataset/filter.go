package dataset

import (
	"fmt"
	"strings"
)

// Filter operations understood by FilterSpec.
const (
	OpNonZero = "nonzero" // numeric field != 0
	OpExclude = "exclude" // value (as text) not in Values
	OpInclude = "include" // value (as text) in Values
)

// FilterSpec is a declarative caller-side row filter, applied after extraction.
//
// The typical use is dropping squad members with zero minutes before plotting.
type FilterSpec struct {
	Field  string   `json:"field" yaml:"field"`
	Op     string   `json:"op" yaml:"op"`
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
}

// Validate checks the spec against a schema.
func (f FilterSpec) Validate(fields []Field) error {
	var field *Field
	for i := range fields {
		if fields[i].Name == f.Field {
			field = &fields[i]
			break
		}
	}
	if field == nil {
		return fmt.Errorf("filter: unknown field %q", f.Field)
	}
	switch f.Op {
	case OpNonZero:
		if field.Kind == KindString {
			return fmt.Errorf("filter: %s requires a numeric field, %q is %s", f.Op, f.Field, field.Kind)
		}
	case OpExclude, OpInclude:
		if len(f.Values) == 0 {
			return fmt.Errorf("filter: %s on %q has no values", f.Op, f.Field)
		}
	default:
		return fmt.Errorf("filter: unknown op %q", f.Op)
	}
	return nil
}

// Apply returns a new dataset with the rows matching the spec.
func (f FilterSpec) Apply(d *Dataset) (*Dataset, error) {
	if err := f.Validate(d.fields); err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(f.Values))
	for _, v := range f.Values {
		set[strings.TrimSpace(v)] = true
	}

	return d.Filter(func(d *Dataset, i int) bool {
		v, _ := d.Value(i, f.Field)
		switch f.Op {
		case OpNonZero:
			return d.Float(i, f.Field) != 0
		case OpExclude:
			return !set[formatValue(v)]
		default:
			return set[formatValue(v)]
		}
	}), nil
}

// ApplyFilters runs each spec in order.
func ApplyFilters(d *Dataset, specs []FilterSpec) (*Dataset, error) {
	out := d
	for _, s := range specs {
		var err error
		out, err = s.Apply(out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
