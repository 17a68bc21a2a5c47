package colfmt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/datasquid/etl/internal/snapshot"
)

// Read reconstructs a snapshot from Parquet bytes. Column order follows the
// file schema; integer-valued numbers decode as int64 and floating-point
// values as float64, matching the JSON serializer's conventions.
func Read(data []byte, table string) (*snapshot.Snapshot, error) {
	bf := buffer.NewBufferFileFromBytes(data)
	pr, err := reader.NewParquetReader(bf, nil, 4)
	if err != nil {
		return nil, fmt.Errorf("table %s: open parquet: %w", table, err)
	}
	defer pr.ReadStop()

	// Infos[0] is the schema root; leaves follow in declaration order.
	// InName is the Go-exported field name on the dynamically built row
	// struct, ExName the original column name.
	infos := pr.SchemaHandler.Infos
	if len(infos) < 1 {
		return nil, fmt.Errorf("table %s: parquet file has no schema", table)
	}
	cols := make([]string, 0, len(infos)-1)
	inNames := make([]string, 0, len(infos)-1)
	for _, info := range infos[1:] {
		cols = append(cols, info.ExName)
		inNames = append(inNames, info.InName)
	}

	snap := snapshot.New(table, cols)
	num := int(pr.GetNumRows())
	if num == 0 {
		return snap, nil
	}

	objs, err := pr.ReadByNumber(num)
	if err != nil {
		return nil, fmt.Errorf("table %s: read parquet rows: %w", table, err)
	}
	for i, obj := range objs {
		encoded, err := json.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("table %s row %d: %w", table, i, err)
		}
		raw := make(map[string]json.RawMessage, len(cols))
		if err := json.Unmarshal(encoded, &raw); err != nil {
			return nil, fmt.Errorf("table %s row %d: %w", table, i, err)
		}

		row := make(snapshot.Row, len(cols))
		for j, col := range cols {
			val, err := decodeRaw(raw[inNames[j]])
			if err != nil {
				return nil, fmt.Errorf("table %s row %d column %s: %w", table, i, col, err)
			}
			row[col] = val
		}
		snap.Append(row)
	}
	return snap, nil
}

func decodeRaw(raw json.RawMessage) (any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case json.Number:
		s := t.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := t.Int64(); err == nil {
				return i, nil
			}
		}
		return t.Float64()
	case string, bool:
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported parquet value %v", v)
	}
}
