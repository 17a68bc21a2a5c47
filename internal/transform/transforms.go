// Package transform converts normalized table snapshots into the star-schema
// dimension and fact tables. Every transform is a pure function of its input
// snapshots; the driver owns all I/O.
package transform

import (
	"fmt"
	"time"

	"github.com/datasquid/etl/internal/snapshot"
)

// Star-schema output table names.
const (
	DimDateTable         = "dim_date"
	DimDesignTable       = "dim_design"
	DimLocationTable     = "dim_location"
	DimCurrencyTable     = "dim_currency"
	DimStaffTable        = "dim_staff"
	DimCounterpartyTable = "dim_counterparty"
	FactSalesOrderTable  = "fact_sales_order"
)

// StarTables lists every star-schema output, dimensions before the fact.
var StarTables = []string{
	DimDateTable,
	DimDesignTable,
	DimLocationTable,
	DimCurrencyTable,
	DimStaffTable,
	DimCounterpartyTable,
	FactSalesOrderTable,
}

// currencyNames is the fixed catalog of currency display names. Codes outside
// it map to null rather than erroring.
var currencyNames = map[string]string{
	"GBP": "British Pound",
	"USD": "US Dollar",
	"EUR": "Euro",
}

// DimDesign projects the design snapshot down to the design dimension.
func DimDesign(design *snapshot.Snapshot) (*snapshot.Snapshot, error) {
	cols := []string{"design_id", "design_name", "file_location", "file_name"}
	if err := design.RequireColumns(cols...); err != nil {
		return nil, err
	}
	return project(design, DimDesignTable, cols, nil), nil
}

// DimLocation projects the address snapshot into the location dimension,
// renaming address_id to location_id.
func DimLocation(address *snapshot.Snapshot) (*snapshot.Snapshot, error) {
	cols := []string{"address_id", "address_line_1", "address_line_2", "district", "city", "postal_code", "country", "phone"}
	if err := address.RequireColumns(cols...); err != nil {
		return nil, err
	}
	return project(address, DimLocationTable, cols, map[string]string{"address_id": "location_id"}), nil
}

// DimCurrency maps currency codes to display names, drops the bookkeeping
// columns and keeps everything else.
func DimCurrency(currency *snapshot.Snapshot) (*snapshot.Snapshot, error) {
	if err := currency.RequireColumns("currency_code"); err != nil {
		return nil, err
	}

	var cols []string
	for _, c := range currency.Columns {
		if c == "last_updated" || c == "created_at" {
			continue
		}
		cols = append(cols, c)
	}
	out := snapshot.New(DimCurrencyTable, append(cols, "currency_name"))
	for _, row := range currency.Rows {
		outRow := make(snapshot.Row, len(out.Columns))
		for _, c := range cols {
			outRow[c] = row[c]
		}
		if code, ok := row["currency_code"].(string); ok {
			if name, known := currencyNames[code]; known {
				outRow["currency_name"] = name
			} else {
				outRow["currency_name"] = nil
			}
		} else {
			outRow["currency_name"] = nil
		}
		out.Append(outRow)
	}
	return out, nil
}

// DimStaff inner-joins staff with department on department_id. Staff rows
// without a matching department are dropped, one output row per matching pair.
func DimStaff(staff, department *snapshot.Snapshot) (*snapshot.Snapshot, error) {
	if err := staff.RequireColumns("staff_id", "first_name", "last_name", "email_address", "department_id"); err != nil {
		return nil, err
	}
	if err := department.RequireColumns("department_id", "department_name", "location"); err != nil {
		return nil, err
	}

	byDept := indexRows(department, "department_id")
	out := snapshot.New(DimStaffTable, []string{"staff_id", "first_name", "last_name", "department_name", "location", "email_address"})
	for _, s := range staff.Rows {
		for _, d := range byDept[joinKey(s["department_id"])] {
			out.Append(snapshot.Row{
				"staff_id":        s["staff_id"],
				"first_name":      s["first_name"],
				"last_name":       s["last_name"],
				"department_name": d["department_name"],
				"location":        d["location"],
				"email_address":   s["email_address"],
			})
		}
	}
	return out, nil
}

// DimCounterparty inner-joins counterparty with address on
// counterparty.legal_address_id == address.address_id, prefixing the
// address-derived fields with counterparty_legal_.
func DimCounterparty(address, counterparty *snapshot.Snapshot) (*snapshot.Snapshot, error) {
	if err := counterparty.RequireColumns("counterparty_id", "counterparty_legal_name", "legal_address_id"); err != nil {
		return nil, err
	}
	if err := address.RequireColumns("address_id", "address_line_1", "address_line_2", "district", "city", "postal_code", "country", "phone"); err != nil {
		return nil, err
	}

	byAddr := indexRows(address, "address_id")
	out := snapshot.New(DimCounterpartyTable, []string{
		"counterparty_id",
		"counterparty_legal_name",
		"counterparty_legal_address_line_1",
		"counterparty_legal_address_line_2",
		"counterparty_legal_district",
		"counterparty_legal_city",
		"counterparty_legal_postal_code",
		"counterparty_legal_country",
		"counterparty_legal_phone_number",
	})
	for _, cp := range counterparty.Rows {
		for _, addr := range byAddr[joinKey(cp["legal_address_id"])] {
			out.Append(snapshot.Row{
				"counterparty_id":                   cp["counterparty_id"],
				"counterparty_legal_name":           cp["counterparty_legal_name"],
				"counterparty_legal_address_line_1": addr["address_line_1"],
				"counterparty_legal_address_line_2": addr["address_line_2"],
				"counterparty_legal_district":       addr["district"],
				"counterparty_legal_city":           addr["city"],
				"counterparty_legal_postal_code":    addr["postal_code"],
				"counterparty_legal_country":        addr["country"],
				"counterparty_legal_phone_number":   addr["phone"],
			})
		}
	}
	return out, nil
}

// FactSalesOrder renames staff_id to sales_staff_id and splits the two
// datetime columns into date-only and time-only derived columns, tolerating
// mixed datetime formats within the same column.
func FactSalesOrder(salesOrder *snapshot.Snapshot) (*snapshot.Snapshot, error) {
	if err := salesOrder.RequireColumns("staff_id", "created_at", "last_updated"); err != nil {
		return nil, err
	}

	var cols []string
	for _, c := range salesOrder.Columns {
		switch c {
		case "created_at", "last_updated":
			// Replaced by the derived date/time columns below.
		case "staff_id":
			cols = append(cols, "sales_staff_id")
		default:
			cols = append(cols, c)
		}
	}
	cols = append(cols, "created_date", "created_time", "last_updated_date", "last_updated_time")

	out := snapshot.New(FactSalesOrderTable, cols)
	for i, row := range salesOrder.Rows {
		createdAt, err := snapshot.ParseDatetime(row["created_at"])
		if err != nil {
			return nil, fmt.Errorf("row %d created_at: %w", i, err)
		}
		lastUpdated, err := snapshot.ParseDatetime(row["last_updated"])
		if err != nil {
			return nil, fmt.Errorf("row %d last_updated: %w", i, err)
		}

		outRow := make(snapshot.Row, len(cols))
		for _, c := range salesOrder.Columns {
			switch c {
			case "created_at", "last_updated":
			case "staff_id":
				outRow["sales_staff_id"] = row["staff_id"]
			default:
				outRow[c] = row[c]
			}
		}
		outRow["created_date"] = createdAt.Format("2006-01-02")
		outRow["created_time"] = createdAt.Format("15:04:05.999999")
		outRow["last_updated_date"] = lastUpdated.Format("2006-01-02")
		outRow["last_updated_time"] = lastUpdated.Format("15:04:05.999999")
		out.Append(outRow)
	}
	return out, nil
}

// project builds a new snapshot containing only cols, applying renames.
func project(src *snapshot.Snapshot, table string, cols []string, renames map[string]string) *snapshot.Snapshot {
	outCols := make([]string, len(cols))
	for i, c := range cols {
		if renamed, ok := renames[c]; ok {
			outCols[i] = renamed
		} else {
			outCols[i] = c
		}
	}
	out := snapshot.New(table, outCols)
	for _, row := range src.Rows {
		outRow := make(snapshot.Row, len(cols))
		for i, c := range cols {
			outRow[outCols[i]] = row[c]
		}
		out.Append(outRow)
	}
	return out
}

// indexRows groups rows by the normalized value of the key column.
func indexRows(s *snapshot.Snapshot, key string) map[string][]snapshot.Row {
	idx := make(map[string][]snapshot.Row)
	for _, row := range s.Rows {
		k := joinKey(row[key])
		idx[k] = append(idx[k], row)
	}
	return idx
}

// joinKey normalizes scalars so that the same logical key matches across
// serialization boundaries (int64 vs float64 carrying an integral value).
func joinKey(v any) string {
	switch t := v.(type) {
	case nil:
		return "\x00nil"
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", t)
	}
}
