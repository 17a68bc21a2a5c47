// Package colfmt converts table snapshots to and from the Parquet columnar
// format stored between the transform and load stages.
package colfmt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	writerfile "github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/datasquid/etl/internal/snapshot"
)

// Write renders the snapshot as snappy-compressed Parquet bytes. The schema
// is derived from the snapshot's columns, typed by the first non-null value
// observed per column; every field is OPTIONAL.
func Write(snap *snapshot.Snapshot) ([]byte, error) {
	schemaDef, err := buildSchema(snap)
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	pfw := writerfile.NewWriterFile(buf)
	pw, err := writer.NewJSONWriter(schemaDef, pfw, 4)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, row := range snap.Rows {
		rec, err := json.Marshal(renderRow(row, snap.Columns))
		if err != nil {
			_ = pw.WriteStop()
			_ = pfw.Close()
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if err := pw.Write(string(rec)); err != nil {
			_ = pw.WriteStop()
			_ = pfw.Close()
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = pfw.Close()
		return nil, fmt.Errorf("finalize parquet: %w", err)
	}
	_ = pfw.Close()
	return buf.Bytes(), nil
}

func buildSchema(snap *snapshot.Snapshot) (string, error) {
	fields := make([]map[string]string, 0, len(snap.Columns))
	for _, col := range snap.Columns {
		tag := fmt.Sprintf("name=%s, %s, repetitiontype=OPTIONAL", col, columnType(snap, col))
		fields = append(fields, map[string]string{"Tag": tag})
	}
	out := map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": fields,
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// columnType picks the physical type from the first non-null value in the
// column. Columns that are entirely null fall back to UTF8 text.
func columnType(snap *snapshot.Snapshot, col string) string {
	for _, row := range snap.Rows {
		switch row[col].(type) {
		case nil:
			continue
		case int64:
			return "type=INT64"
		case float64, decimal.Decimal:
			return "type=DOUBLE"
		case bool:
			return "type=BOOLEAN"
		default:
			return "type=BYTE_ARRAY, convertedtype=UTF8"
		}
	}
	return "type=BYTE_ARRAY, convertedtype=UTF8"
}

func renderRow(row snapshot.Row, cols []string) map[string]any {
	out := make(map[string]any, len(cols))
	for _, col := range cols {
		switch t := row[col].(type) {
		case time.Time:
			out[col] = t.Format("2006-01-02T15:04:05.999999999")
		case decimal.Decimal:
			f, _ := t.Float64()
			out[col] = f
		default:
			out[col] = t
		}
	}
	return out
}
