package extract

import "fmt"

// SourceTables is the fixed operational schema this pipeline extracts.
// Table identifiers are interpolated into SQL only after allowlist
// validation; values always travel as bound placeholders.
var SourceTables = []string{
	"address",
	"counterparty",
	"design",
	"sales_order",
	"transaction",
	"payment",
	"payment_type",
	"currency",
	"staff",
	"department",
	"purchase_order",
}

var sourceTableSet = func() map[string]bool {
	set := make(map[string]bool, len(SourceTables))
	for _, t := range SourceTables {
		set[t] = true
	}
	return set
}()

// ValidateTable rejects identifiers outside the fixed catalog.
func ValidateTable(name string) error {
	if !sourceTableSet[name] {
		return fmt.Errorf("table %q is not in the source catalog", name)
	}
	return nil
}
