// Package storage persists extracted datasets to a SQL backend.
//
// Backends register themselves from init() under a kind ("sqlite",
// "postgres", "mssql"); callers blank-import the ones they want and
// construct a Repository with New.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to open a repository.
//
// Kind must match a registered backend. DSN is passed through to the backend
// factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Repository is the backend-agnostic write surface for datasets.
//
// Each backend implements dedupe in its own idiomatic way (Postgres ON
// CONFLICT, SQLite OR IGNORE, SQL Server NOT EXISTS).
type Repository interface {
	// Close releases backend resources. Call once.
	Close()

	// EnsureTable creates the table and its unique constraint if missing.
	EnsureTable(ctx context.Context, spec TableSpec) error

	// InsertRows inserts rows aligned with columns. When dedupe is non-empty,
	// rows whose dedupe columns already exist are skipped instead of failing.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupe []string) (int64, error)
}

// Factory opens a repository for a registered kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind.
//
// Registering the same kind twice, an empty kind or a nil factory panics.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds lists registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
