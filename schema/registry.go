package schema

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
)

// Executor runs DDL statements. *sqlite.DB and *sql.DB both satisfy it.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Registry keeps tables in declaration order.
type Registry struct {
	mu     sync.Mutex
	tables []*Table
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry is filled by Register during package initialization.
var DefaultRegistry = NewRegistry()

// Add appends t to the registry.
func (r *Registry) Add(t *Table) *Table {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tables = append(r.tables, t)
	return t
}

// Tables returns a snapshot of the registered tables in order.
func (r *Registry) Tables() []*Table {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Table, len(r.tables))
	copy(out, r.tables)
	return out
}

// CreateAll creates every registered table with IF NOT EXISTS. A failing
// table is logged and the remaining tables are still attempted. It returns
// false if any table failed.
func (r *Registry) CreateAll(ctx context.Context, exec Executor, debug bool, logger *slog.Logger) bool {
	failed := false

	for _, t := range r.Tables() {
		if err := create(ctx, exec, t); err != nil {
			logger.ErrorContext(ctx, "could not create table", "table", t.Name(), "error", err)
			failed = true
			continue
		}
		if debug {
			logger.InfoContext(ctx, "created table", "table", t.Name())
		}
	}

	return !failed
}

func create(ctx context.Context, exec Executor, t *Table) error {
	for _, stmt := range t.CreateStatements(true) {
		if _, err := exec.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Register declares a table and adds it to r.
func (r *Registry) Register(typeName string, columns []*Column, opts ...TableOption) *Table {
	return r.Add(NewTable(typeName, columns, opts...))
}

// Register declares a table and adds it to DefaultRegistry.
func Register(typeName string, columns []*Column, opts ...TableOption) *Table {
	return DefaultRegistry.Register(typeName, columns, opts...)
}

// CreateAll creates every table in DefaultRegistry.
func CreateAll(ctx context.Context, exec Executor, debug bool, logger *slog.Logger) bool {
	return DefaultRegistry.CreateAll(ctx, exec, debug, logger)
}
