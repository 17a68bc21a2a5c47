// Package snapshot models a point-in-time export of one source table and its
// canonical JSON representation exchanged between pipeline stages.
package snapshot

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Row maps column name to a scalar value. Supported scalars are int64,
// float64, string, bool, nil, time.Time and decimal.Decimal.
type Row map[string]any

// Snapshot is an immutable export of one table's rows at one point in time.
// Columns preserves source column order; Rows preserve source row order.
type Snapshot struct {
	Table   string
	Columns []string
	Rows    []Row
}

// New creates a snapshot for table with the given ordered columns.
func New(table string, columns []string) *Snapshot {
	return &Snapshot{Table: table, Columns: columns}
}

// Append adds a row. The row is not copied.
func (s *Snapshot) Append(row Row) {
	s.Rows = append(s.Rows, row)
}

// HasColumn reports whether the snapshot declares the named column.
func (s *Snapshot) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// RequireColumns returns a MissingColumnError naming the first absent column.
func (s *Snapshot) RequireColumns(names ...string) error {
	for _, name := range names {
		if !s.HasColumn(name) {
			return &MissingColumnError{Table: s.Table, Column: name}
		}
	}
	return nil
}

// MissingColumnError reports a required column absent from a snapshot,
// including on an empty-but-columnless input.
type MissingColumnError struct {
	Table  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("table %s: missing required column %q", e.Table, e.Column)
}

// Datetime layouts accepted when parsing timestamp-valued strings. Source
// rows carry mixed formats within the same column, so parsing tries each in
// order.
var datetimeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02/15:04",
}

// ParseDatetime parses a scalar holding a timestamp. time.Time values pass
// through; strings are tried against the accepted layouts.
func ParseDatetime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, layout := range datetimeLayouts {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised datetime %q", t)
	default:
		return time.Time{}, fmt.Errorf("value %v (%T) is not a datetime", v, v)
	}
}

// NormalizeScalar converts driver-level values into the snapshot scalar set.
// []byte is treated as text, which is how database/sql surfaces numeric and
// unknown column types; values that parse as exact decimals stay decimals.
func NormalizeScalar(v any) any {
	switch t := v.(type) {
	case []byte:
		s := string(t)
		if d, err := decimal.NewFromString(s); err == nil {
			return d
		}
		return s
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
