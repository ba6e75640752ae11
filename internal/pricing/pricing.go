// Package pricing converts between tax-excluded (HT) and tax-included (TTC)
// amounts and aggregates sale lines into order totals.
//
// All functions work on decimal values and never round mid-calculation.
// Rates and discounts are percentages in [0, 100].
package pricing

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// TaxAmount returns base * rate / 100.
func TaxAmount(base, ratePercent decimal.Decimal) decimal.Decimal {
	return base.Mul(ratePercent).Div(hundred)
}

// TaxIncluded returns base + TaxAmount(base, rate).
func TaxIncluded(base, ratePercent decimal.Decimal) decimal.Decimal {
	return base.Add(TaxAmount(base, ratePercent))
}

// TaxExcludedFromIncluded returns included / (1 + rate/100).
func TaxExcludedFromIncluded(included, ratePercent decimal.Decimal) decimal.Decimal {
	return included.Div(factor(ratePercent))
}

// factor returns 1 + p/100.
func factor(p decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Add(p.Div(hundred))
}

// remaining returns 1 - p/100, the multiplier left after a percentage discount.
func remaining(p decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(p.Div(hundred))
}

// Line is the priced input of one cart line. UnitPrice is tax-excluded.
type Line struct {
	Quantity  int64
	UnitPrice decimal.Decimal
	VATRate   decimal.Decimal
	Discount  decimal.Decimal
}

// LineAmounts is the split of one line into its tax-excluded and tax parts.
type LineAmounts struct {
	Gross decimal.Decimal
	HT    decimal.Decimal
	VAT   decimal.Decimal
}

// TTC returns HT + VAT for the line.
func (a LineAmounts) TTC() decimal.Decimal { return a.HT.Add(a.VAT) }

// ComputeLine prices a single line.
//
// The gross amount is taken on the tax-included unit price after the line
// discount, then split back into HT and VAT:
//
//	gross = qty * TaxIncluded(unit, vat) * (1 - discount/100)
//	ht    = gross / (1 + vat/100)
//	vat   = ht * vat/100
func ComputeLine(l Line) LineAmounts {
	unitTTC := TaxIncluded(l.UnitPrice, l.VATRate)
	gross := decimal.NewFromInt(l.Quantity).Mul(unitTTC).Mul(remaining(l.Discount))
	ht := TaxExcludedFromIncluded(gross, l.VATRate)
	return LineAmounts{
		Gross: gross,
		HT:    ht,
		VAT:   TaxAmount(ht, l.VATRate),
	}
}

// Totals are the order-level amounts of a sale.
type Totals struct {
	HT  decimal.Decimal
	VAT decimal.Decimal
	TTC decimal.Decimal
}

// ComputeTotals sums the per-line HT and VAT, then applies the order discount
// to both sums. The order discount always comes after line discounts and after
// the per-line VAT split; historical tickets depend on that ordering.
func ComputeTotals(lines []Line, orderDiscount decimal.Decimal) Totals {
	ht := decimal.Zero
	vat := decimal.Zero
	for _, l := range lines {
		a := ComputeLine(l)
		ht = ht.Add(a.HT)
		vat = vat.Add(a.VAT)
	}
	if !orderDiscount.IsZero() {
		m := remaining(orderDiscount)
		ht = ht.Mul(m)
		vat = vat.Mul(m)
	}
	return Totals{HT: ht, VAT: vat, TTC: ht.Add(vat)}
}

// Rounded returns the totals at cents, the precision they are recorded and
// paid at. HT and TTC are rounded; VAT takes the difference so the stored
// header always satisfies HT + VAT = TTC.
func (t Totals) Rounded() Totals {
	ht, ttc := Cents(t.HT), Cents(t.TTC)
	return Totals{HT: ht, VAT: ttc.Sub(ht), TTC: ttc}
}

// Cents rounds half away from zero to two decimal places.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ValidPercent reports whether p is within [0, 100].
func ValidPercent(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}
