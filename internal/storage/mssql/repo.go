// Package mssql is the Microsoft SQL Server storage backend.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"statscrape/internal/storage"

	_ "github.com/microsoft/go-mssqldb"
)

// Repo implements storage.Repository for SQL Server.
//
// Dedupe uses a set-based INSERT ... SELECT ... WHERE NOT EXISTS. Unlike
// Postgres ON CONFLICT, that statement does not collapse duplicates inside
// its own VALUES list, so each batch is deduplicated first (keep first).
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New opens a SQL Server connection pool and validates it with a ping.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// EnsureTable creates the table behind an OBJECT_ID guard.
func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	ddl, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

// InsertRows inserts rows, skipping existing dedupe keys when dedupe is set.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupe []string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var (
		q    string
		args []any
		err  error
	)
	if len(dedupe) == 0 {
		q, args, err = buildBulkInsertSQL(table, columns, rows)
	} else {
		rows, err = storage.DedupeRows(rows, columns, dedupe)
		if err != nil {
			return 0, err
		}
		q, args, err = buildInsertNotExistsSQL(table, columns, rows, dedupe)
	}
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent quotes schema-qualified names part by part:
//
//	"dbo.passes" -> [dbo].[passes]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

func columnType(logical string) (string, error) {
	switch logical {
	case storage.ColumnText:
		// NVARCHAR(MAX) cannot be part of a UNIQUE constraint.
		return "NVARCHAR(400)", nil
	case storage.ColumnBigint:
		return "BIGINT", nil
	case storage.ColumnDouble:
		return "FLOAT", nil
	default:
		return "", fmt.Errorf("mssql: unsupported column type %q", logical)
	}
}

func buildCreateSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("mssql: table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("mssql: %s: no columns", t.Name)
	}

	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		typ, err := columnType(c.Type)
		if err != nil {
			return "", err
		}
		defs = append(defs, fmt.Sprintf("%s %s NULL", mssqlIdent(c.Name), typ))
	}
	if len(t.Unique) > 0 {
		cols := make([]string, len(t.Unique))
		for i, c := range t.Unique {
			cols[i] = mssqlIdent(c)
		}
		defs = append(defs, fmt.Sprintf("UNIQUE (%s)", strings.Join(cols, ", ")))
	}
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(t.Name, "'", "''"),
		mssqlTableIdent(t.Name),
		strings.Join(defs, ", "),
	), nil
}

// writeValues appends "(@p1, @p2), (@p3, @p4)" and returns the flattened args.
func writeValues(b *strings.Builder, table string, columns []string, rows [][]any) ([]any, error) {
	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("insert into %s: row %d has %d values, want %d", table, i, len(row), len(columns))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	return args, nil
}

func writeColumnList(b *strings.Builder, prefix string, columns []string) {
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(prefix)
		b.WriteString(mssqlIdent(c))
	}
}

func buildBulkInsertSQL(table string, columns []string, rows [][]any) (string, []any, error) {
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no columns", table)
	}
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")
	writeColumnList(&b, "", columns)
	b.WriteString(") VALUES ")
	args, err := writeValues(&b, table, columns, rows)
	if err != nil {
		return "", nil, err
	}
	return b.String(), args, nil
}

func buildInsertNotExistsSQL(table string, columns []string, rows [][]any, dedupe []string) (string, []any, error) {
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no columns", table)
	}
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")
	writeColumnList(&b, "", columns)
	b.WriteString(") SELECT ")
	writeColumnList(&b, "v.", columns)
	b.WriteString(" FROM (VALUES ")
	args, err := writeValues(&b, table, columns, rows)
	if err != nil {
		return "", nil, err
	}
	b.WriteString(") AS v(")
	writeColumnList(&b, "", columns)
	b.WriteString(") WHERE NOT EXISTS (SELECT 1 FROM ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" t WHERE ")
	for i, dc := range dedupe {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString("t.")
		b.WriteString(mssqlIdent(dc))
		b.WriteString(" = v.")
		b.WriteString(mssqlIdent(dc))
	}
	b.WriteString(")")
	return b.String(), args, nil
}
