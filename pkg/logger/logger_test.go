package logger

import "testing"

func TestToFields(t *testing.T) {
	fields := toFields([]any{"table", "address", "rows", 42})
	if fields["table"] != "address" || fields["rows"] != 42 {
		t.Errorf("Unexpected fields: %v", fields)
	}
}

func TestToFieldsToleratesBadInput(t *testing.T) {
	// Dangling value and non-string key are dropped, not panics.
	fields := toFields([]any{"table", "address", "dangling"})
	if len(fields) != 1 {
		t.Errorf("Expected dangling key dropped, got %v", fields)
	}
	fields = toFields([]any{42, "value"})
	if len(fields) != 0 {
		t.Errorf("Expected non-string key dropped, got %v", fields)
	}
}
