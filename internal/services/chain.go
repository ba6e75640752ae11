package services

import (
	"fmt"

	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/internal/uow"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockChainHead returns the chain tip, creating the empty tip on first use.
func lockChainHead(tx *gorm.DB) (*models.ChainHead, error) {
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ChainHead{ID: models.ChainHeadID}).Error
	if err != nil {
		return nil, fmt.Errorf("create chain head: %w", err)
	}
	var h models.ChainHead
	if err := uow.ForUpdate(tx).First(&h, models.ChainHeadID).Error; err != nil {
		return nil, fmt.Errorf("lock chain head: %w", err)
	}
	return &h, nil
}

// advanceChainHead moves the tip from h to sale. The update only applies if
// the tip still holds the digest read by lockChainHead.
func advanceChainHead(tx *gorm.DB, h *models.ChainHead, sale *models.Sale) error {
	res := tx.Model(&models.ChainHead{}).
		Where("id = ? AND last_digest = ? AND length = ?", h.ID, h.LastDigest, h.Length).
		Updates(map[string]any{
			"last_digest":  sale.Digest,
			"last_sale_id": sale.ID,
			"length":       h.Length + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("advance chain head: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("chain head moved: %w", uow.ErrStale)
	}
	return nil
}
