package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrImmutable is returned by the persistence hooks when code tries to rewrite
// a ledger record.
var ErrImmutable = errors.New("record is immutable")

// MaxTicketSequence is the largest sequence that fits the six-digit ticket suffix.
const MaxTicketSequence = 999999

// SaleStatus represents the lifecycle status of a sale.
type SaleStatus string

const (
	SaleStatusCompleted SaleStatus = "COMPLETED"
	SaleStatusCancelled SaleStatus = "CANCELLED"
	SaleStatusRefunded  SaleStatus = "REFUNDED"
)

// PaymentMethod is how a payment was tendered.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentCard     PaymentMethod = "CARD"
	PaymentCheck    PaymentMethod = "CHECK"
	PaymentTransfer PaymentMethod = "TRANSFER"
)

// Valid reports whether m is an accepted payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentCheck, PaymentTransfer:
		return true
	}
	return false
}

// Sale is a completed ticket. Totals, numbering and digests are written once;
// only Status may change afterwards.
type Sale struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Numbering: TicketNumber is Year followed by the zero-padded Sequence.
	TicketNumber string `gorm:"size:20;uniqueIndex;not null" json:"ticket_number"`
	Year         int    `gorm:"not null;uniqueIndex:idx_sales_year_sequence" json:"year"`
	Sequence     int    `gorm:"not null;uniqueIndex:idx_sales_year_sequence" json:"sequence"`

	TotalHT  decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"total_ht"`
	TotalTVA decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"total_tva"`
	TotalTTC decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"total_ttc"`
	Discount decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"discount"`

	Status SaleStatus `gorm:"size:20;not null;index" json:"status"`

	// Fiscal chain. The unique index on PreviousDigest keeps the chain from forking.
	Digest         string `gorm:"size:64;uniqueIndex;not null" json:"digest"`
	PreviousDigest string `gorm:"size:64;uniqueIndex;not null" json:"previous_digest"`

	CreatedBy uint `gorm:"index;not null" json:"created_by"`

	Lines    []SaleLine `gorm:"foreignKey:SaleID" json:"lines,omitempty"`
	Payments []Payment  `gorm:"foreignKey:SaleID" json:"payments,omitempty"`
}

// TicketNumber formats the visible identifier of a ticket: the year followed
// by the six-digit sequence, e.g. 2025000042.
func TicketNumber(year, sequence int) string {
	return fmt.Sprintf("%d%06d", year, sequence)
}

// TicketID returns the numeric form of the ticket identifier.
func TicketID(year, sequence int) int64 {
	return int64(year)*1_000_000 + int64(sequence)
}

// IsCompleted returns true if the sale has not been cancelled or refunded.
func (s *Sale) IsCompleted() bool {
	return s.Status == SaleStatusCompleted
}

// PaidTotal sums the payments of the sale.
func (s *Sale) PaidTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// Change returns what was handed back to the customer.
func (s *Sale) Change() decimal.Decimal {
	c := s.PaidTotal().Sub(s.TotalTTC)
	if c.IsNegative() {
		return decimal.Zero
	}
	return c
}

func (s *Sale) BeforeUpdate(tx *gorm.DB) error {
	if tx.Statement.Changed("TicketNumber", "Year", "Sequence", "TotalHT", "TotalTVA", "TotalTTC",
		"Discount", "Digest", "PreviousDigest", "CreatedAt", "CreatedBy") {
		return ErrImmutable
	}
	return nil
}

func (s *Sale) BeforeDelete(tx *gorm.DB) error { return ErrImmutable }

// SaleLine is one cart line as it was sold. Price and VAT are captured at sale
// time and never re-read from the catalog.
type SaleLine struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SaleID   uint `gorm:"index;not null" json:"sale_id"`
	Position int  `gorm:"not null" json:"position"`

	ProductID uint     `gorm:"index;not null" json:"product_id"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`

	Quantity  int64               `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	VATRate   decimal.Decimal     `gorm:"type:decimal(5,2);not null" json:"vat_rate"`
	Discount  decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"discount"`
}

func (l *SaleLine) BeforeUpdate(tx *gorm.DB) error { return ErrImmutable }
func (l *SaleLine) BeforeDelete(tx *gorm.DB) error { return ErrImmutable }

// Payment is one tender of a sale.
type Payment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SaleID uint            `gorm:"index;not null" json:"sale_id"`
	Method PaymentMethod   `gorm:"size:20;not null" json:"method"`
	Amount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
}

func (p *Payment) BeforeUpdate(tx *gorm.DB) error { return ErrImmutable }
func (p *Payment) BeforeDelete(tx *gorm.DB) error { return ErrImmutable }
