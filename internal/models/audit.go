package models

import "time"

// Audit actions
const (
	AuditActionCancel             = "cancel"
	AuditActionRefund             = "refund"
	AuditActionChainVerified      = "chain_verified"
	AuditActionIntegrityViolation = "integrity_violation"
)

// AuditLog records who changed what. Entries are append-only like the ledger.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index" json:"user_id"`               // who acted
	EntityType string    `gorm:"size:50;not null" json:"entity_type"` // "sale", "chain"
	EntityID   uint      `gorm:"index" json:"entity_id"`
	Action     string    `gorm:"size:50;not null" json:"action"`
	Field      string    `gorm:"size:50" json:"field,omitempty"`
	OldValue   string    `gorm:"size:255" json:"old_value,omitempty"`
	NewValue   string    `gorm:"size:255" json:"new_value,omitempty"`
	Details    string    `gorm:"type:text" json:"details,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
