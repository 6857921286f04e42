package normalizer

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeAmount_European(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"45,23", "45.23"},
		{"1.234,56", "1234.56"},
		{"1.000.000,00", "1000000"},
		{"0,99", "0.99"},
		{"-45,23", "-45.23"},
		{"  45,23  ", "45.23"},
		{"€ 45,23", "45.23"}, // Currency symbol stripped
		{"1,5", "1.5"},
	}

	for _, tc := range tests {
		got, ok := NormalizeAmount(tc.input)
		if !ok {
			t.Errorf("NormalizeAmount(%q) not ok", tc.input)
			continue
		}
		if !got.Equal(decimal.RequireFromString(tc.expected)) {
			t.Errorf("NormalizeAmount(%q) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}

func TestNormalizeAmount_American(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"45.23", "45.23"},
		{"1,234.56", "1234.56"},
		{"1,000,000.00", "1000000"},
		{"-29.99", "-29.99"},
		{"$45.23", "45.23"},
		{"-$5.40", "-5.40"},
		{"USD -5.40", "-5.40"},
		{"500", "500"},
	}

	for _, tc := range tests {
		got, ok := NormalizeAmount(tc.input)
		if !ok {
			t.Errorf("NormalizeAmount(%q) not ok", tc.input)
			continue
		}
		if !got.Equal(decimal.RequireFromString(tc.expected)) {
			t.Errorf("NormalizeAmount(%q) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}

func TestNormalizeAmount_Parentheses(t *testing.T) {
	got, ok := NormalizeAmount("(1,250.00)")
	if !ok {
		t.Fatal("expected parenthesized amount to parse")
	}
	if !got.Equal(decimal.RequireFromString("-1250")) {
		t.Fatalf("got %s, want -1250", got)
	}
}

func TestNormalizeAmount_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "n/a", "not-amount", "()"} {
		if got, ok := NormalizeAmount(input); ok {
			t.Errorf("NormalizeAmount(%q) = %s, expected failure", input, got)
		}
	}
}

func TestCombineDebitCredit(t *testing.T) {
	tests := []struct {
		debit     string
		credit    string
		hasDebit  bool
		hasCredit bool
		expected  string
		ok        bool
	}{
		{"500", "0", true, true, "-500", true},
		{"0", "200", true, true, "200", true},
		{"45,23", "", true, true, "-45.23", true},
		{"", "500,00", true, true, "500", true},
		{"-10", "25", true, true, "15", true},
		{"", "", true, true, "0", false},

		// Debit only: always outflow
		{"29.99", "", true, false, "-29.99", true},
		{"-29.99", "", true, false, "-29.99", true},
		{"abc", "", true, false, "0", false},

		// Credit only: always inflow
		{"", "2500.00", false, true, "2500", true},
		{"", "-2500.00", false, true, "2500", true},
	}

	for _, tc := range tests {
		got, ok := CombineDebitCredit(tc.debit, tc.credit, tc.hasDebit, tc.hasCredit)
		if ok != tc.ok {
			t.Errorf("CombineDebitCredit(%q, %q) ok = %v, want %v", tc.debit, tc.credit, ok, tc.ok)
			continue
		}
		if ok && !got.Equal(decimal.RequireFromString(tc.expected)) {
			t.Errorf("CombineDebitCredit(%q, %q) = %s, want %s", tc.debit, tc.credit, got, tc.expected)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// ISO passes through
		{"2024-03-05", "2024-03-05"},
		{`"2024-01-02"`, "2024-01-02"},

		// Calendar formats
		{"Jan 1, 2024", "2024-01-01"},
		{"2024/01/01", "2024-01-01"},
		{"25 Dec 2024", "2024-12-25"},
		{"2024-01-02T10:00:00Z", "2024-01-02"},

		// Positional DD/MM/YYYY
		{"05/03/2024", "2024-03-05"},
		{"13/02/2024", "2024-02-13"},
		{"02-01-2024", "2024-01-02"},
		{"05.03.24", "2024-03-05"},
		{"02/01/2024 15:04", "2024-01-02"},

		// Month > 12 flips to MM/DD
		{"02/13/2024", "2024-02-13"},

		// Year first with single digits
		{"2024.1.5", "2024-01-05"},
	}

	for _, tc := range tests {
		got := NormalizeDate(tc.input)
		if got != tc.expected {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestNormalizeDate_Invalid(t *testing.T) {
	for _, input := range []string{"", "not-a-date", "31/02/2024", "13/13/2024", "Rent", "500"} {
		if got := NormalizeDate(input); got != "" {
			t.Errorf("NormalizeDate(%q) = %q, expected empty", input, got)
		}
	}
}

func TestLooksLike(t *testing.T) {
	dates := map[string]bool{
		"2024-01-02": true,
		"05/03/2024": true,
		"Rent":       false,
		"500":        false,
		"-12.50":     false,
	}
	for cell, want := range dates {
		if got := LooksLikeDate(cell); got != want {
			t.Errorf("LooksLikeDate(%q) = %v, want %v", cell, got, want)
		}
	}

	amounts := map[string]bool{
		"-1.234,56":   true,
		"€12":         true,
		"(45.00)":     true,
		"500":         true,
		"Invoice 123": false,
		"2024-01-02":  false,
		"":            false,
		"--":          false,
	}
	for cell, want := range amounts {
		if got := LooksLikeAmount(cell); got != want {
			t.Errorf("LooksLikeAmount(%q) = %v, want %v", cell, got, want)
		}
	}
}

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Pingo Doce  ", "Pingo Doce"},
		{"Compra  MB   -   Lidl", "Compra MB - Lidl"},
		{"Netflix", "Netflix"},
		{"\"Quoted\"", "Quoted"},
		{"Ｃａｆé\tBar", "Café Bar"},
	}

	for _, tc := range tests {
		got := CleanDescription(tc.input)
		if got != tc.expected {
			t.Errorf("CleanDescription(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}
