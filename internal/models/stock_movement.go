package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MovementKind classifies a stock movement.
type MovementKind string

const (
	MovementEntry      MovementKind = "ENTRY"
	MovementExitSale   MovementKind = "EXIT_SALE"
	MovementExitManual MovementKind = "EXIT_MANUAL"
)

// Valid reports whether k is a known kind.
func (k MovementKind) Valid() bool {
	switch k {
	case MovementEntry, MovementExitSale, MovementExitManual:
		return true
	}
	return false
}

// IsExit reports whether the movement takes units out of stock.
func (k MovementKind) IsExit() bool {
	return k == MovementExitSale || k == MovementExitManual
}

// Signed returns qty with the sign implied by the kind.
func (k MovementKind) Signed(qty int64) int64 {
	if k.IsExit() {
		return -qty
	}
	return qty
}

// StockMovement is one append-only entry of the stock ledger. The stock of a
// product is the sum of the signed quantities of its movements. Corrections
// are new offsetting movements.
type StockMovement struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`

	ProductID uint     `gorm:"index;not null" json:"product_id"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`

	Kind MovementKind `gorm:"size:20;not null;index" json:"kind"`
	// Quantity is signed: positive for entries, negative for exits.
	Quantity  int64           `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Reason    string          `gorm:"size:500" json:"reason,omitempty"`

	SaleID    *uint `gorm:"index" json:"sale_id,omitempty"`
	CreatedBy uint  `gorm:"index;not null" json:"created_by"`
}

func (m *StockMovement) BeforeUpdate(tx *gorm.DB) error { return ErrImmutable }
func (m *StockMovement) BeforeDelete(tx *gorm.DB) error { return ErrImmutable }
