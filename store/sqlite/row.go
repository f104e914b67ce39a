package sqlite

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timestampFormats are the layouts SQLite hands back for TIMESTAMP columns
// when the driver does not convert them itself.
var timestampFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Row is one result row addressable by column name. Column order is kept.
type Row struct {
	columns []string
	values  map[string]any
}

// NewRow builds a row from parallel column and value slices.
func NewRow(columns []string, values []any) Row {
	row := Row{columns: columns, values: make(map[string]any, len(columns))}
	for i, name := range columns {
		if i < len(values) {
			row.values[name] = values[i]
		}
	}
	return row
}

// Columns returns the column names in result order.
func (r Row) Columns() []string { return r.columns }

// Get returns the raw value of a column.
func (r Row) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Int64 returns an integer column.
func (r Row) Int64(name string) (int64, error) {
	switch v := r.values[name].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("column %q: cannot read %T as integer", name, v)
	}
}

// Bool returns a boolean column. SQLite stores booleans as 0/1.
func (r Row) Bool(name string) (bool, error) {
	switch v := r.values[name].(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case []byte:
		return strconv.ParseBool(string(v))
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("column %q: cannot read %T as boolean", name, v)
	}
}

// Time returns a timestamp column in UTC.
func (r Row) Time(name string) (time.Time, error) {
	switch v := r.values[name].(type) {
	case time.Time:
		return v.UTC(), nil
	case []byte:
		return parseTimestamp(name, string(v))
	case string:
		return parseTimestamp(name, v)
	case int64:
		return time.Unix(v, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("column %q: cannot read %T as timestamp", name, v)
	}
}

// String returns a column formatted as text. NULL becomes "".
func (r Row) String(name string) string {
	switch v := r.values[name].(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

func parseTimestamp(name, s string) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range timestampFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("column %q: unrecognised timestamp %q", name, s)
}
