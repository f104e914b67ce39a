/*
Package sqlite provides the statement executor over the embedded SQLite file.

PURPOSE:
  Thin wrapper around a single SQLite connection. Executes parameterized
  statements and hands back either a displayable summary (Execute) or
  name-addressable rows (Fetch, FetchOne). No business logic lives here.

CONTRACT:
  Execute:  never fails past its boundary; errors travel inside Result
  Fetch:    all rows, errors propagated
  FetchOne: first row or nil, errors propagated

  All three take positional "?" placeholders with bound values. User input
  is never interpolated into SQL text.

CONCURRENCY:
  The pool is pinned to one connection and every statement runs under a
  mutex, so statements are serialized on the single storage file.

USAGE:
  db, err := sqlite.Open("storage.db")
  if err != nil {
      return err
  }
  defer db.Close()

  res := db.Execute(ctx, "DELETE FROM birthdays WHERE user_id = ?", id)
  fmt.Println(res) // "DELETE 1"

SEE ALSO:
  - row.go: Row accessors
  - schema/: table declarations executed through ExecContext
  - birthday/store.go: queries built on this executor
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
)

// DB serializes statement execution on one SQLite connection.
type DB struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the database at path.
// Use ":memory:" for an in-memory database.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps ":memory:" databases alive and writes ordered.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &DB{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Ping checks the connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// =============================================================================
// RESULT SUMMARY
// =============================================================================

// Result summarizes one executed statement.
type Result struct {
	// Verb is the statement's leading keyword, upper-cased (SELECT, INSERT, ...).
	Verb string
	// Count is rows affected, or rows returned for SELECT. Never negative.
	Count int64
	// Err is set when the statement failed.
	Err error
}

// String renders "<VERB> <count>", or "<type>: <message>" on failure.
func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%T: %v", r.Err, r.Err)
	}
	return fmt.Sprintf("%s %d", r.Verb, r.Count)
}

// statementVerb returns the first keyword of query, upper-cased.
func statementVerb(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// =============================================================================
// EXECUTION
// =============================================================================

// Execute runs query and returns its summary. Failures are reported through
// Result.Err so callers can echo the outcome as-is.
func (d *DB) Execute(ctx context.Context, query string, args ...any) Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	res := Result{Verb: statementVerb(query)}

	if res.Verb == "SELECT" {
		rows, err := d.db.QueryContext(ctx, query, args...)
		if err != nil {
			res.Err = err
			return res
		}
		defer rows.Close()

		for rows.Next() {
			res.Count++
		}
		if err := rows.Err(); err != nil {
			res.Err = err
		}
		return res
	}

	out, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		res.Err = err
		return res
	}
	if n, err := out.RowsAffected(); err == nil && n > 0 {
		res.Count = n
	}
	return res
}

// ExecContext runs a statement that returns no rows and propagates failures.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.db.ExecContext(ctx, query, args...)
}

// Fetch returns every row produced by query.
func (d *DB) Fetch(ctx context.Context, query string, args ...any) ([]Row, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		row, err := scanRow(rows, columns)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// FetchOne returns the first row produced by query, or nil if there is none.
func (d *DB) FetchOne(ctx context.Context, query string, args ...any) (*Row, error) {
	rows, err := d.Fetch(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func scanRow(rows *sql.Rows, columns []string) (Row, error) {
	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	if err := rows.Scan(dest...); err != nil {
		return Row{}, fmt.Errorf("failed to scan row: %w", err)
	}

	return NewRow(columns, values), nil
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConstraintError reports whether err is a primary key or UNIQUE violation.
func IsConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
