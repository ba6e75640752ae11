// Package fiscal computes and verifies the hash chain linking every sale to
// the one committed before it.
//
// digest(n) = hex(sha256(canonical(sale n) || digest(n-1))), with an empty
// previous digest for the first sale. Editing, removing or reordering any
// recorded sale changes every digest after it.
package fiscal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/diewo77/go-pos/internal/models"
	"github.com/shopspring/decimal"
)

// TimestampLayout is the UTC, millisecond precision layout used in the canonical form.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// LineFields are the hashed fields of one sale line.
type LineFields struct {
	ProductID uint
	Quantity  int64
	UnitPrice decimal.Decimal
	VATRate   decimal.Decimal
	Discount  decimal.Decimal
}

// SaleFields are the hashed fields of a sale.
type SaleFields struct {
	TicketNumber string
	Timestamp    time.Time
	TotalTTC     decimal.Decimal
	Lines        []LineFields
}

// canonical JSON shapes; field order is fixed by the struct declarations.
type canonicalSale struct {
	Ticket    string          `json:"ticket"`
	Timestamp string          `json:"timestamp"`
	TotalTTC  string          `json:"total_ttc"`
	Lines     []canonicalLine `json:"lines"`
}

type canonicalLine struct {
	ProductID uint   `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	VATRate   string `json:"vat_rate"`
	Discount  string `json:"discount"`
}

// NormalizeTimestamp truncates t to the precision kept in the canonical form.
// Sales are stamped with the normalised value so a reloaded row hashes the same.
func NormalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Canonical returns the order-stable serialization of f.
func Canonical(f SaleFields) []byte {
	c := canonicalSale{
		Ticket:    f.TicketNumber,
		Timestamp: f.Timestamp.UTC().Format(TimestampLayout),
		TotalTTC:  f.TotalTTC.StringFixed(2),
		Lines:     make([]canonicalLine, len(f.Lines)),
	}
	for i, l := range f.Lines {
		c.Lines[i] = canonicalLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			VATRate:   l.VATRate.StringFixed(2),
			Discount:  l.Discount.StringFixed(2),
		}
	}
	// only strings and integers: Marshal cannot fail
	b, _ := json.Marshal(c)
	return b
}

// ComputeDigest chains f onto previous.
func ComputeDigest(f SaleFields, previous string) string {
	h := sha256.New()
	h.Write(Canonical(f))
	h.Write([]byte(previous))
	return hex.EncodeToString(h.Sum(nil))
}

// FieldsOf extracts the hashed fields of a sale. Lines must be loaded; they are
// taken in Position order.
func FieldsOf(s *models.Sale) SaleFields {
	lines := make([]models.SaleLine, len(s.Lines))
	copy(lines, s.Lines)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Position < lines[j].Position })

	f := SaleFields{
		TicketNumber: s.TicketNumber,
		Timestamp:    s.CreatedAt,
		TotalTTC:     s.TotalTTC,
		Lines:        make([]LineFields, len(lines)),
	}
	for i, l := range lines {
		disc := decimal.Zero
		if l.Discount.Valid {
			disc = l.Discount.Decimal
		}
		f.Lines[i] = LineFields{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			VATRate:   l.VATRate,
			Discount:  disc,
		}
	}
	return f
}
