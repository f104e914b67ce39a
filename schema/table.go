package schema

import (
	"fmt"
	"strings"
)

// Table is a named, ordered collection of columns.
type Table struct {
	name    string
	columns []*Column
}

// TableOption configures a Table.
type TableOption func(*Table)

// TableName overrides the default (lower-cased type name) table name.
func TableName(name string) TableOption { return func(t *Table) { t.name = name } }

// NewTable declares a table without registering it.
func NewTable(typeName string, columns []*Column, opts ...TableOption) *Table {
	t := &Table{
		name:    strings.ToLower(typeName),
		columns: columns,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Columns returns the declared columns in order.
func (t *Table) Columns() []*Column { return t.columns }

// IndexName returns the generated index name for a column.
func (t *Table) IndexName(c *Column) string {
	return fmt.Sprintf("%s_%s_idx", t.name, c.Name)
}

// CreateStatements renders the CREATE TABLE statement followed by one
// CREATE INDEX statement per indexed column.
func (t *Table) CreateStatements(ifNotExists bool) []string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(t.name)

	defs := make([]string, 0, len(t.columns)+1)
	var keys []string
	for _, c := range t.columns {
		defs = append(defs, c.definition())
		if c.PrimaryKey {
			keys = append(keys, c.Name)
		}
	}
	if len(keys) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(keys, ", ")))
	}
	fmt.Fprintf(&b, " (%s);", strings.Join(defs, ", "))

	statements := []string{b.String()}
	for _, c := range t.columns {
		if c.Index {
			statements = append(statements, fmt.Sprintf(
				"CREATE INDEX IF NOT EXISTS %s ON %s (%s);", t.IndexName(c), t.name, c.Name))
		}
	}
	return statements
}

// CreateStatement is CreateStatements joined by newlines.
func (t *Table) CreateStatement(ifNotExists bool) string {
	return strings.Join(t.CreateStatements(ifNotExists), "\n")
}
