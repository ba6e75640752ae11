package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/internal/uow"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TicketAllocator hands out the per-year ticket sequence from the durable
// TicketCounter row. It must be called inside the transaction that stores the
// sale: a rollback gives the number back, a commit consumes it.
type TicketAllocator struct{}

// Next reserves the next sequence of year in tx.
func (TicketAllocator) Next(tx *gorm.DB, year int) (int, error) {
	// first sale of the year: create the row, racing creators do nothing
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.TicketCounter{Year: year}).Error
	if err != nil {
		return 0, fmt.Errorf("create ticket counter %d: %w", year, err)
	}

	var c models.TicketCounter
	if err := uow.ForUpdate(tx).Where("year = ?", year).First(&c).Error; err != nil {
		return 0, fmt.Errorf("lock ticket counter %d: %w", year, err)
	}
	if c.LastSequence >= models.MaxTicketSequence {
		return 0, ErrTicketRangeExhausted
	}

	next := c.LastSequence + 1
	res := tx.Model(&models.TicketCounter{}).
		Where("year = ? AND last_sequence = ?", year, c.LastSequence).
		Update("last_sequence", next)
	if res.Error != nil {
		return 0, fmt.Errorf("advance ticket counter %d: %w", year, res.Error)
	}
	if res.RowsAffected != 1 {
		return 0, fmt.Errorf("ticket counter %d moved: %w", year, uow.ErrStale)
	}
	return next, nil
}

// LastIssued returns the last committed sequence of year, 0 if none.
func (TicketAllocator) LastIssued(ctx context.Context, db *gorm.DB, year int) (int, error) {
	var c models.TicketCounter
	err := db.WithContext(ctx).Where("year = ?", year).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return c.LastSequence, err
}
