package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Marshal serializes the snapshot as a JSON array of records, one object per
// row in row order, keys following the snapshot's column order. Datetimes are
// encoded as ISO-8601 strings with full available precision. Decimals are
// encoded as JSON numbers through float64; precision beyond float64 does not
// round-trip. An empty row set serializes to "[]".
func Marshal(s *Snapshot) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('[')
	for i, row := range s.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, col := range s.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(col)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := encodeScalar(buf, row[col]); err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, col, err)
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func encodeScalar(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case time.Time:
		return writeJSON(buf, formatDatetime(t))
	case decimal.Decimal:
		f, _ := t.Float64()
		return writeJSON(buf, f)
	case int64, float64, string, bool:
		return writeJSON(buf, t)
	default:
		return fmt.Errorf("unsupported scalar type %T", v)
	}
}

func writeJSON(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// formatDatetime emits naive ISO-8601 for UTC/zero-offset values and keeps
// the offset otherwise. Source timestamps are `timestamp without time zone`,
// so the common path is the naive form.
func formatDatetime(t time.Time) string {
	if _, offset := t.Zone(); offset == 0 {
		return t.Format("2006-01-02T15:04:05.999999999")
	}
	return t.Format(time.RFC3339Nano)
}

// Unmarshal reconstructs a snapshot from its JSON representation. Column
// order is taken from key order in the records, first occurrence wins; rows
// missing optional fields simply lack those keys. Integer-valued numbers
// decode as int64, all other numbers as float64.
func Unmarshal(data []byte, table string) (*Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("table %s: invalid snapshot data: %w", table, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("table %s: snapshot must be a JSON array", table)
	}

	snap := New(table, nil)
	seen := make(map[string]bool)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", table, err)
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return nil, fmt.Errorf("table %s: snapshot records must be objects", table)
		}

		row := Row{}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("table %s: %w", table, err)
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("table %s: malformed record key", table)
			}
			valTok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("table %s: %w", table, err)
			}
			val, err := decodeScalar(valTok)
			if err != nil {
				return nil, fmt.Errorf("table %s column %s: %w", table, key, err)
			}
			row[key] = val
			if !seen[key] {
				seen[key] = true
				snap.Columns = append(snap.Columns, key)
			}
		}
		if _, err := dec.Token(); err != nil { // closing '}'
			return nil, fmt.Errorf("table %s: %w", table, err)
		}
		snap.Append(row)
	}
	if _, err := dec.Token(); err != nil { // closing ']'
		return nil, fmt.Errorf("table %s: %w", table, err)
	}
	return snap, nil
}

func decodeScalar(tok json.Token) (any, error) {
	switch t := tok.(type) {
	case nil:
		return nil, nil
	case string, bool:
		return t, nil
	case json.Number:
		s := t.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := t.Int64(); err == nil {
				return i, nil
			}
		}
		return t.Float64()
	case json.Delim:
		return nil, fmt.Errorf("nested values are not supported in snapshots")
	default:
		return nil, fmt.Errorf("unsupported token %v", tok)
	}
}
