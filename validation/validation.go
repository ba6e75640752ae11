package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func MaxLength(field, value string, maxLen int, v Violations) {
	if utf8.RuneCountInString(value) > maxLen {
		v[field] = "too_long"
	}
}

func PositiveInt(field string, val int64, v Violations) {
	if val <= 0 {
		v[field] = "must_be_positive"
	}
}

func NonNegativeInt(field string, val int64, v Violations) {
	if val < 0 {
		v[field] = "must_not_be_negative"
	}
}

func NonNegative(field string, val decimal.Decimal, v Violations) {
	if val.IsNegative() {
		v[field] = "must_not_be_negative"
	}
}

// Percent accepts values in [0, 100].
func Percent(field string, val decimal.Decimal, v Violations) {
	if val.IsNegative() || val.GreaterThan(decimal.NewFromInt(100)) {
		v[field] = "out_of_range"
	}
}

// EAN13 validates a 13-digit barcode and its check digit. Empty values are
// accepted; combine with Required when the barcode is mandatory.
func EAN13(field, value string, v Violations) {
	if value == "" {
		return
	}
	if !IsEAN13(value) {
		v[field] = "invalid_barcode"
	}
}

// IsEAN13 reports whether code is a valid EAN-13.
func IsEAN13(code string) bool {
	if len(code) != 13 {
		return false
	}
	sum := 0
	for i := 0; i < 13; i++ {
		c := code[i]
		if c < '0' || c > '9' {
			return false
		}
		if i == 12 {
			break
		}
		weight := 1
		if i%2 == 1 {
			weight = 3
		}
		sum += int(c-'0') * weight
	}
	return (10-sum%10)%10 == int(code[12]-'0')
}
