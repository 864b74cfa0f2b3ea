// Package storage defines the backend-agnostic contract of the relational
// sink and a registry of backend factories.
//
// Backends register themselves from init; import internal/storage/all to
// enable every built-in backend.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"transportetl/internal/table"
)

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
	// Table is the destination table, optionally schema-qualified.
	Table string
	// BatchSize is the number of rows per COPY/INSERT batch.
	BatchSize int
	// Job labels metrics.
	Job    string
	Logger *slog.Logger
}

// Log returns the configured logger or slog.Default.
func (c Config) Log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Repository is a relational sink holding one destination table.
type Repository interface {
	// ReplaceTable drops the destination table, recreates it for schema and
	// inserts rows. Readers see either the previous table or the complete new
	// one. It returns the number of rows inserted.
	ReplaceTable(ctx context.Context, schema table.Schema, rows [][]any) (int64, error)
	// Count returns the number of rows in the destination table.
	Count(ctx context.Context) (int64, error)
	// Scan calls fn for each row of the destination table with the values of
	// columns. The row slice is reused between calls.
	Scan(ctx context.Context, columns []string, fn func(row []any) error) error
	// Exec runs a single statement.
	Exec(ctx context.Context, sql string) error
	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a repository of cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
