package validation

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsEAN13(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"4006381333931", true},
		{"5901234123457", true},
		{"3017620422003", true},
		{"4006381333932", false}, // wrong check digit
		{"400638133393", false},  // 12 digits
		{"400638133393A", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsEAN13(tt.code); got != tt.want {
			t.Errorf("IsEAN13(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestValidators(t *testing.T) {
	v := Violations{}
	Required("name", "  ", v)
	Percent("vat_rate", decimal.NewFromInt(101), v)
	NonNegative("sale_price", decimal.NewFromInt(-1), v)
	NonNegativeInt("reorder_threshold", -2, v)
	PositiveInt("quantity", 0, v)
	EAN13("barcode", "123", v)
	MaxLength("reason", "abcdef", 5, v)

	want := map[string]string{
		"name":              "required",
		"vat_rate":          "out_of_range",
		"sale_price":        "must_not_be_negative",
		"reorder_threshold": "must_not_be_negative",
		"quantity":          "must_be_positive",
		"barcode":           "invalid_barcode",
		"reason":            "too_long",
	}
	for field, code := range want {
		if v[field] != code {
			t.Errorf("%s: got %q, want %q", field, v[field], code)
		}
	}
	if len(v) != len(want) {
		t.Errorf("got %d violations, want %d", len(v), len(want))
	}
}

func TestValidators_Accept(t *testing.T) {
	v := Violations{}
	Required("name", "Café", v)
	Percent("vat_rate", decimal.RequireFromString("5.5"), v)
	Percent("discount", decimal.NewFromInt(100), v)
	NonNegative("sale_price", decimal.Zero, v)
	EAN13("barcode", "", v)
	EAN13("barcode", "4006381333931", v)
	MaxLength("reason", "éééé", 4, v)
	if !v.Empty() {
		t.Errorf("unexpected violations: %v", v)
	}
}
