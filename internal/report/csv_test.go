package report

import (
	"bytes"
	"reflect"
	"testing"
)

func TestEscapeCSVCell(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		// Safe values - should not be escaped
		{"empty", "", ""},
		{"normal_text", "Charizard", "Charizard"},
		{"price", "12.50", "12.50"},
		{"card_number", "#001", "#001"},
		{"internal_equal", "A=B", "A=B"},

		// Formula injections - must be escaped
		{"formula_equal", "=SUM(A1:A10)", "'=SUM(A1:A10)"},
		{"formula_plus", "+123", "'+123"},
		{"formula_minus", "-123", "'-123"},
		{"formula_at", "@SUM(A:A)", "'@SUM(A:A)"},
		{"formula_pipe", "|echo test", "'|echo test"},
		{"formula_percent", "%PATH%", "'%PATH%"},

		// Whitespace injections
		{"tab_start", "\t=EXEC()", "'\t=EXEC()"},
		{"newline_start", "\n=FORMULA()", "'\n=FORMULA()"},
		{"carriage_return", "\r=DATA()", "'\r=DATA()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EscapeCSVCell(tt.input)
			if result != tt.expected {
				t.Errorf("EscapeCSVCell(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestEscapeCSVRow(t *testing.T) {
	input := []string{"SKU-1", "=HYPERLINK(\"x\")", "Base Set", "4/102", "NM", "12.50"}
	expected := []string{"SKU-1", "'=HYPERLINK(\"x\")", "Base Set", "4/102", "NM", "12.50"}

	if result := EscapeCSVRow(input); !reflect.DeepEqual(result, expected) {
		t.Errorf("EscapeCSVRow() = %q, want %q", result, expected)
	}
}

func TestSheet(t *testing.T) {
	var buf bytes.Buffer
	sheet, err := NewSheet(&buf, []string{"SKU", "Name", "Price"})
	if err != nil {
		t.Fatalf("NewSheet: %v", err)
	}

	if err := sheet.Append([]string{"A1", "@Pikachu, Jr.", "3.00"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := sheet.Append([]string{"too", "short"}); err == nil {
		t.Error("expected error for short row")
	}
	if err := sheet.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	want := "SKU,Name,Price\nA1,\"'@Pikachu, Jr.\",3.00\n"
	if buf.String() != want {
		t.Errorf("sheet output = %q, want %q", buf.String(), want)
	}
	if sheet.Rows() != 1 {
		t.Errorf("expected 1 row, got %d", sheet.Rows())
	}
}
