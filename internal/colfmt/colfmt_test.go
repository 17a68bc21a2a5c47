package colfmt

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/datasquid/etl/internal/snapshot"
)

func TestWriteReadRoundTrip(t *testing.T) {
	d, _ := decimal.NewFromString("2.43")
	snap := snapshot.New("fact_sales_order", []string{
		"sales_order_id", "units_sold", "unit_price", "created_date", "cancelled", "note",
	})
	snap.Append(snapshot.Row{
		"sales_order_id": int64(1), "units_sold": int64(84754), "unit_price": d,
		"created_date": "2022-11-03", "cancelled": false, "note": nil,
	})
	snap.Append(snapshot.Row{
		"sales_order_id": int64(2), "units_sold": int64(1203), "unit_price": 3.14,
		"created_date": "2022-11-04", "cancelled": true, "note": "rush order",
	})

	data, err := Write(snap)
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Expected parquet bytes")
	}

	got, err := Read(data, "fact_sales_order")
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if len(got.Columns) != len(snap.Columns) {
		t.Fatalf("Expected %d columns, got %v", len(snap.Columns), got.Columns)
	}
	for i, col := range snap.Columns {
		if got.Columns[i] != col {
			t.Errorf("Column %d: expected %s, got %s", i, col, got.Columns[i])
		}
	}
	if len(got.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(got.Rows))
	}

	first := got.Rows[0]
	if first["sales_order_id"] != int64(1) {
		t.Errorf("Expected int64 1, got %v (%T)", first["sales_order_id"], first["sales_order_id"])
	}
	if first["unit_price"] != 2.43 {
		t.Errorf("Expected 2.43, got %v", first["unit_price"])
	}
	if first["created_date"] != "2022-11-03" {
		t.Errorf("Expected date string, got %v", first["created_date"])
	}
	if first["cancelled"] != false {
		t.Errorf("Expected false, got %v", first["cancelled"])
	}
	if first["note"] != nil {
		t.Errorf("Expected nil note, got %v", first["note"])
	}
	second := got.Rows[1]
	if second["note"] != "rush order" || second["cancelled"] != true {
		t.Errorf("Second row did not round-trip: %v", second)
	}
}

func TestWriteReadEmptySnapshot(t *testing.T) {
	snap := snapshot.New("dim_design", []string{"design_id", "design_name"})
	data, err := Write(snap)
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	got, err := Read(data, "dim_design")
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if len(got.Rows) != 0 {
		t.Errorf("Expected no rows, got %d", len(got.Rows))
	}
	if len(got.Columns) != 2 || got.Columns[0] != "design_id" {
		t.Errorf("Schema did not survive empty write: %v", got.Columns)
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	if _, err := Read([]byte("not parquet at all"), "dim_design"); err == nil {
		t.Error("Expected error reading malformed parquet data")
	}
}
