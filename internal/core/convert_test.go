package core

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

// ----------------------------------------------------------------------------
// ParsePrice Tests
// ----------------------------------------------------------------------------

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		// Valid: plain numbers
		{name: "integer", input: "999", want: "999", wantOK: true},
		{name: "decimal", input: "123.45", want: "123.45", wantOK: true},
		{name: "leading decimal point", input: ".99", want: "0.99", wantOK: true},
		{name: "zero", input: "0", want: "0", wantOK: true},

		// Valid: separators
		{name: "decimal comma", input: "12,50", want: "12.5", wantOK: true},
		{name: "thousands comma", input: "1,234.56", want: "1234.56", wantOK: true},
		{name: "several thousands commas", input: "1,234,567", want: "1234567", wantOK: true},
		{name: "space grouping", input: "1 299", want: "1299", wantOK: true},
		{name: "no-break space grouping", input: "1\u00a0299,90", want: "1299.9", wantOK: true},

		// Valid: currency marks
		{name: "rouble sign", input: "999 ₽", want: "999", wantOK: true},
		{name: "rouble abbreviation", input: "1500 руб.", want: "1500", wantOK: true},
		{name: "dollar sign", input: "$1,234.56", want: "1234.56", wantOK: true},
		{name: "euro sign", input: "€10", want: "10", wantOK: true},
		{name: "hryvnia", input: "250 грн", want: "250", wantOK: true},

		// Valid: spreadsheet artifacts
		{name: "excel formula", input: `="450"`, want: "450", wantOK: true},
		{name: "quoted", input: `"450"`, want: "450", wantOK: true},

		// Empty is not degraded
		{name: "empty", input: "", want: "0", wantOK: true},
		{name: "whitespace", input: "   ", want: "0", wantOK: true},

		// Degraded
		{name: "letters", input: "abc", want: "0", wantOK: false},
		{name: "negative", input: "-5", want: "0", wantOK: false},
		{name: "accounting negative", input: "(123.45)", want: "0", wantOK: false},
		{name: "two decimal points", input: "1.2.3", want: "0", wantOK: false},
		{name: "on request", input: "по запросу", want: "0", wantOK: false},

		// Storage bounds: numeric(14, 2)
		{name: "largest storable", input: "999999999999.99", want: "999999999999.99", wantOK: true},
		{name: "one trillion", input: "1000000000000", want: "0", wantOK: false},
		{name: "rounds past bound", input: "999999999999.995", want: "0", wantOK: false},
		{name: "exponent overflow", input: "1e20", want: "0", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePrice(tt.input)
			if ok != tt.wantOK {
				t.Errorf("ParsePrice(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got.String() != tt.want {
				t.Errorf("ParsePrice(%q) = %s, want %s", tt.input, got.String(), tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseStock Tests
// ----------------------------------------------------------------------------

func TestParseStock(t *testing.T) {
	tests := []struct {
		input  string
		want   int
		wantOK bool
	}{
		{"5", 5, true},
		{" 12 ", 12, true},
		{"1 000", 1000, true},
		{"5.0", 5, true},
		{"7,9", 7, true},
		{"", 0, true},
		{"-3", 0, false},
		{"много", 0, false},
		{"5 шт", 0, false},
		{"2147483647", MaxStock, true},
		{"2147483647.9", MaxStock, true},
		{"2147483648", 0, false},
		{"3000000000", 0, false},
		{"9223372036854775808", 0, false},
		{"18446744073709551615", 0, false},
		{"1e19", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseStock(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseStock(%q) = (%d, %v), want (%d, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// SplitTags Tests
// ----------------------------------------------------------------------------

func TestSplitTags(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"хит;новинка", []string{"хит", "новинка"}},
		{"a, b ,c", []string{"a", "b", "c"}},
		{"one two\tthree", []string{"one", "two", "three"}},
		{"sale;sale", []string{"sale", "sale"}},
		{";;leading,trailing;;", []string{"leading", "trailing"}},
		{"", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := SplitTags(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitTags(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// cleanNumeric Tests
// ----------------------------------------------------------------------------

func TestCleanNumeric(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  42  ", "42"},
		{`="00123"`, "00123"},
		{"=450", "450"},
		{`"450"`, "450"},
		{`'450'`, "450"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := cleanNumeric(tt.in); got != tt.want {
			t.Errorf("cleanNumeric(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProduct_CheckRange(t *testing.T) {
	tests := []struct {
		name string
		p    Product
		ok   bool
	}{
		{"zero", Product{}, true},
		{"bounds", Product{Price: decimal.RequireFromString("999999999999.99"), Stock: MaxStock}, true},
		{"price too large", Product{Price: decimal.New(1, 12)}, false},
		{"negative price", Product{Price: decimal.NewFromInt(-1)}, false},
		{"stock too large", Product{Stock: MaxStock + 1}, false},
		{"negative stock", Product{Stock: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.CheckRange()
			if tt.ok && err != nil {
				t.Errorf("CheckRange() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("CheckRange() = %v, want ErrInvalidInput", err)
			}
		})
	}
}
