package models

import (
	"time"

	"github.com/diewo77/go-pos/internal/pricing"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. It is never hard-deleted: an admin deactivates it
// and its stock history stays in the ledger.
type Product struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Identity
	Reference string  `gorm:"size:50;uniqueIndex;not null" json:"reference"`
	Barcode   *string `gorm:"size:13;uniqueIndex" json:"barcode,omitempty"`
	Name      string  `gorm:"size:255;not null" json:"name"`

	// Pricing, all tax-excluded. VATRate is a percentage (20 = 20%).
	PurchasePrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"purchase_price"`
	SalePrice     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"sale_price"`
	VATRate       decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"vat_rate"`

	// ReorderThreshold triggers a low-stock alert when stock falls to or below it.
	ReorderThreshold int64 `gorm:"not null;default:0" json:"reorder_threshold"`
	Active           bool  `gorm:"not null;index" json:"active"`
}

// PriceWithVAT returns the tax-included sale price.
func (p *Product) PriceWithVAT() decimal.Decimal {
	return pricing.TaxIncluded(p.SalePrice, p.VATRate)
}

// VATAmount returns the tax part of one unit.
func (p *Product) VATAmount() decimal.Decimal {
	return pricing.TaxAmount(p.SalePrice, p.VATRate)
}

// Margin returns sale price minus purchase price, both tax-excluded.
func (p *Product) Margin() decimal.Decimal {
	return p.SalePrice.Sub(p.PurchasePrice)
}
