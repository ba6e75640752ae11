package models

import "time"

// TicketCounter holds the last ticket sequence issued for a calendar year.
// Allocation locks the row, so two transactions never read the same value.
type TicketCounter struct {
	Year         int       `gorm:"primaryKey;autoIncrement:false" json:"year"`
	LastSequence int       `gorm:"not null;default:0" json:"last_sequence"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChainHeadID is the primary key of the single ChainHead row.
const ChainHeadID uint = 1

// ChainHead is the tip of the fiscal hash chain: the digest of the most
// recently committed sale and the number of sales chained so far.
type ChainHead struct {
	ID         uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	LastDigest string    `gorm:"size:64;not null;default:''" json:"last_digest"`
	LastSaleID *uint     `json:"last_sale_id,omitempty"`
	Length     int64     `gorm:"not null;default:0" json:"length"`
	UpdatedAt  time.Time `json:"updated_at"`
}
