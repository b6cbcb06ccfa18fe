package storage

import (
	"context"
	"fmt"
	"strings"

	"statscrape/internal/dataset"
)

// Logical column types. Backends map them to their own DDL types.
const (
	ColumnText   = "text"
	ColumnBigint = "bigint"
	ColumnDouble = "double"
)

// TableSpec describes the table a dataset is written to.
type TableSpec struct {
	Name    string       `json:"name"`
	Columns []ColumnSpec `json:"columns"`
	Unique  []string     `json:"unique,omitempty"` // dedupe columns, enforced with a UNIQUE constraint
}

// ColumnSpec is one column. Type is one of the logical column types.
type ColumnSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ColumnNames returns the column names in declaration order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// TableSpecFor derives a table layout from a dataset schema. Every dedupe
// column must be a dataset field.
func TableSpecFor(table string, ds *dataset.Dataset, dedupe []string) (TableSpec, error) {
	if strings.TrimSpace(table) == "" {
		return TableSpec{}, fmt.Errorf("storage: table name is empty")
	}

	spec := TableSpec{Name: table}
	for _, f := range ds.Fields() {
		typ := ColumnText
		switch f.Kind {
		case dataset.KindInt:
			typ = ColumnBigint
		case dataset.KindFloat:
			typ = ColumnDouble
		}
		spec.Columns = append(spec.Columns, ColumnSpec{Name: f.Name, Type: typ})
	}
	for _, d := range dedupe {
		if !ds.Has(d) {
			return TableSpec{}, fmt.Errorf("storage: dedupe column %q is not a dataset field", d)
		}
	}
	spec.Unique = append([]string(nil), dedupe...)
	return spec, nil
}

// Save ensures the table exists and inserts every row of ds.
func Save(ctx context.Context, repo Repository, table string, ds *dataset.Dataset, dedupe []string) (int64, error) {
	spec, err := TableSpecFor(table, ds, dedupe)
	if err != nil {
		return 0, err
	}
	if err := repo.EnsureTable(ctx, spec); err != nil {
		return 0, fmt.Errorf("ensure table %s: %w", table, err)
	}
	if ds.Len() == 0 {
		return 0, nil
	}
	n, err := repo.InsertRows(ctx, table, spec.ColumnNames(), ds.Records(), spec.Unique)
	if err != nil {
		return n, fmt.Errorf("insert into %s: %w", table, err)
	}
	return n, nil
}

// DedupeRows keeps the first row for each distinct combination of the dedupe
// columns, preserving order. Backends whose dedupe statement does not collapse
// duplicates inside a single batch call it before inserting.
func DedupeRows(rows [][]any, columns, dedupe []string) ([][]any, error) {
	if len(dedupe) == 0 {
		return rows, nil
	}
	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		pos[c] = i
	}
	idx := make([]int, len(dedupe))
	for i, d := range dedupe {
		p, ok := pos[d]
		if !ok {
			return nil, fmt.Errorf("storage: dedupe column %q not in columns", d)
		}
		idx[i] = p
	}

	seen := make(map[string]bool, len(rows))
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		var b strings.Builder
		for _, i := range idx {
			fmt.Fprintf(&b, "%T:%v\x1f", row[i], row[i])
		}
		k := b.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, row)
	}
	return out, nil
}
