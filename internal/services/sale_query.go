package services

import (
	"context"
	"errors"
	"time"

	"github.com/diewo77/go-pos/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Get returns a sale with its lines and payments.
func (e *SaleEngine) Get(ctx context.Context, id uint) (*models.Sale, error) {
	var s models.Sale
	err := e.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Lines.Product").
		Preload("Payments").
		First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SaleFilter narrows List.
type SaleFilter struct {
	From, To *time.Time
	Status   models.SaleStatus
	// Ticket matches a ticket number prefix, e.g. a year.
	Ticket string
	Page   int
	Limit  int
}

// List returns sale headers newest first, with the total count.
func (e *SaleEngine) List(ctx context.Context, f SaleFilter) ([]models.Sale, int64, error) {
	q := e.db.WithContext(ctx).Model(&models.Sale{})
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Ticket != "" {
		q = q.Where("ticket_number LIKE ?", f.Ticket+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	page, limit := paginate(f.Page, f.Limit)
	var sales []models.Sale
	err := q.Preload("Payments").Order("id DESC").
		Offset((page - 1) * limit).Limit(limit).Find(&sales).Error
	return sales, total, err
}

// Revenue sums the tax-included total of completed sales created in
// [from, to). Cancelled and refunded sales are left out.
func (e *SaleEngine) Revenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var sales []models.Sale
	err := e.db.WithContext(ctx).
		Select("total_ttc").
		Where("status = ? AND created_at >= ? AND created_at < ?", models.SaleStatusCompleted, from, to).
		Find(&sales).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, s := range sales {
		total = total.Add(s.TotalTTC)
	}
	return total, nil
}
