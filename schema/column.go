/*
Package schema declares tables as plain values and renders their DDL.

PURPOSE:
  Tables are declared once, at package initialization, as a list of column
  descriptors. Declaring a table registers it in an ordered, process-wide
  registry, so startup can create every table in one pass.

COLUMN RULES:
  - type tags are free-form and upper-cased (BIGINT, TIMESTAMP, BOOLEAN)
  - columns are nullable unless NotNull() is given
  - at most one of Unique(), PrimaryKey(), Default() per column; a conflict
    is rejected by NewColumn, never discovered when the SQL runs

GENERATED SQL:
  CREATE TABLE IF NOT EXISTS birthdays ("user_id" BIGINT NOT NULL, ...,
      PRIMARY KEY (user_id));
  CREATE INDEX IF NOT EXISTS birthdays_birthday_idx ON birthdays (birthday);

  Generation is deterministic: the same declaration always renders the
  same bytes.

EXAMPLE:
  var Users = schema.Register("Users", []*schema.Column{
      schema.MustColumn("id", "BIGINT", schema.PrimaryKey(), schema.NotNull()),
      schema.MustColumn("email", "TEXT", schema.Unique()),
  }, schema.TableName("accounts"))

SEE ALSO:
  - table.go: Table rendering
  - registry.go: Registry and CreateAll
  - birthday/record.go: the birthdays declaration
*/
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConflictingConstraints is returned when a column combines more than one
// of unique, primary key and default.
var ErrConflictingConstraints = errors.New("'unique', 'primary_key', and 'default' are mutually exclusive")

// Column describes one column of a table.
type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
	Nullable   bool
	Unique     bool
	Index      bool
	// Default is rendered as a DEFAULT clause when non-nil.
	Default any
}

// ColumnOption configures a Column.
type ColumnOption func(*Column)

// PrimaryKey makes the column part of the table's primary key.
func PrimaryKey() ColumnOption { return func(c *Column) { c.PrimaryKey = true } }

// NotNull marks the column NOT NULL.
func NotNull() ColumnOption { return func(c *Column) { c.Nullable = false } }

// Unique adds a UNIQUE constraint.
func Unique() ColumnOption { return func(c *Column) { c.Unique = true } }

// Indexed requests a secondary index on the column.
func Indexed() ColumnOption { return func(c *Column) { c.Index = true } }

// Default sets the column's default value.
func Default(v any) ColumnOption { return func(c *Column) { c.Default = v } }

// Named overrides the column name. Without it the identifier is used.
func Named(name string) ColumnOption { return func(c *Column) { c.Name = name } }

// NewColumn declares a column identified by ident.
func NewColumn(ident, columnType string, opts ...ColumnOption) (*Column, error) {
	c := &Column{
		Name:     ident,
		Type:     strings.ToUpper(columnType),
		Nullable: true,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.Name == "" {
		return nil, fmt.Errorf("column of type %s: missing name", c.Type)
	}

	set := 0
	for _, flag := range []bool{c.Unique, c.PrimaryKey, c.Default != nil} {
		if flag {
			set++
		}
	}
	if set > 1 {
		return nil, fmt.Errorf("column %q: %w", c.Name, ErrConflictingConstraints)
	}

	return c, nil
}

// MustColumn is NewColumn for static declarations; it panics on error.
func MustColumn(ident, columnType string, opts ...ColumnOption) *Column {
	c, err := NewColumn(ident, columnType, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// definition renders the column for a CREATE TABLE body.
func (c *Column) definition() string {
	parts := []string{quoteIdent(c.Name) + " " + c.Type}

	if c.Default != nil {
		parts = append(parts, "DEFAULT", literal(c.Default))
	} else if c.Unique {
		parts = append(parts, "UNIQUE")
	}
	if !c.Nullable {
		parts = append(parts, "NOT NULL")
	}

	return strings.Join(parts, " ")
}

// quoteIdent renders name as a double-quoted SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// literal renders a default value: strings quoted, booleans upper-cased,
// everything else parenthesized.
func literal(v any) string {
	switch v := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("(%v)", v)
	}
}
