package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/internal/uow"
	"github.com/diewo77/go-pos/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockLedger appends stock movements and derives stock levels from them.
// Stock is never stored: it is the sum of the signed movement quantities.
type StockLedger struct {
	uow *uow.UnitOfWork
	db  *gorm.DB
	config
}

// NewStockLedger creates a ledger running its writes through u.
func NewStockLedger(u *uow.UnitOfWork, opts ...Option) *StockLedger {
	return &StockLedger{uow: u, db: u.DB(), config: newConfig(opts)}
}

// MovementRequest is a manual stock movement. Quantity is a positive count;
// the sign comes from Kind.
type MovementRequest struct {
	ProductID uint                `json:"product_id"`
	Kind      models.MovementKind `json:"kind"`
	Quantity  int64               `json:"quantity"`
	// UnitPrice defaults to the product purchase price.
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// CurrentStock returns the stock of a product.
func (l *StockLedger) CurrentStock(ctx context.Context, productID uint) (int64, error) {
	db := l.db.WithContext(ctx)
	var n int64
	if err := db.Model(&models.Product{}).Where("id = ?", productID).Count(&n).Error; err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, &ProductError{ProductID: productID, Err: ErrProductNotFound}
	}
	return currentStock(db, productID)
}

// Record appends a manual ENTRY or EXIT_MANUAL movement. Exits need the
// elevated capability and are checked against the stock under the product
// lock, so two concurrent exits cannot both pass the check.
func (l *StockLedger) Record(ctx context.Context, actor Actor, req MovementRequest) (*models.StockMovement, error) {
	if err := actor.require(CapStock); err != nil {
		return nil, err
	}
	switch req.Kind {
	case models.MovementEntry:
	case models.MovementExitManual:
		if err := actor.require(CapElevated); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMovementKind, req.Kind)
	}
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if req.UnitPrice != nil && req.UnitPrice.IsNegative() {
		return nil, ErrInvalidAmount
	}
	v := validation.Violations{}
	validation.MaxLength("reason", req.Reason, 500, v)
	if !v.Empty() {
		return nil, &ValidationError{Fields: v}
	}

	var mv *models.StockMovement
	err := l.uow.Run(ctx, []string{productKey(req.ProductID)}, func(tx *gorm.DB) error {
		var p models.Product
		if err := uow.ForUpdate(tx).First(&p, req.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ProductError{ProductID: req.ProductID, Err: ErrProductNotFound}
			}
			return err
		}
		if !p.Active {
			return &ProductError{ProductID: p.ID, Err: ErrProductInactive}
		}
		if req.Kind.IsExit() {
			stock, err := currentStock(tx, p.ID)
			if err != nil {
				return err
			}
			if stock < req.Quantity {
				return &InsufficientStockError{ProductID: p.ID, Reference: p.Reference, Available: stock, Requested: req.Quantity}
			}
		}

		price := p.PurchasePrice
		if req.UnitPrice != nil {
			price = *req.UnitPrice
		}
		m := &models.StockMovement{
			CreatedAt: l.now(),
			ProductID: p.ID,
			Kind:      req.Kind,
			Quantity:  req.Kind.Signed(req.Quantity),
			UnitPrice: price.Round(2),
			Reason:    req.Reason,
			CreatedBy: actor.UserID,
		}
		if err := appendMovement(tx, m); err != nil {
			return err
		}
		mv = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.metrics.Movement(string(mv.Kind))
	l.log.WithContext(ctx).Info("Stock movement recorded",
		"productId", mv.ProductID, "kind", mv.Kind, "quantity", mv.Quantity, "userId", actor.UserID)
	return mv, nil
}

// MovementFilter narrows ListMovements.
type MovementFilter struct {
	ProductID uint
	Kind      models.MovementKind
	From, To  *time.Time
	Page      int
	Limit     int
}

// ListMovements returns movements newest first, with the total count.
func (l *StockLedger) ListMovements(ctx context.Context, f MovementFilter) ([]models.StockMovement, int64, error) {
	q := l.db.WithContext(ctx).Model(&models.StockMovement{})
	if f.ProductID != 0 {
		q = q.Where("product_id = ?", f.ProductID)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	page, limit := paginate(f.Page, f.Limit)
	var items []models.StockMovement
	err := q.Preload("Product").Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).Limit(limit).Find(&items).Error
	return items, total, err
}

// StockLevel is a product with its current stock.
type StockLevel struct {
	Product    models.Product `json:"product"`
	Stock      int64          `json:"stock"`
	OutOfStock bool           `json:"out_of_stock"`
}

// LowStock lists active products at or below their reorder threshold,
// lowest stock first.
func (l *StockLedger) LowStock(ctx context.Context) ([]StockLevel, error) {
	db := l.db.WithContext(ctx)
	var products []models.Product
	if err := db.Where("active = ?", true).Order("id").Find(&products).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	levels, err := stockLevels(db, ids)
	if err != nil {
		return nil, err
	}

	var out []StockLevel
	for _, p := range products {
		s := levels[p.ID]
		if s <= p.ReorderThreshold {
			out = append(out, StockLevel{Product: p, Stock: s, OutOfStock: s <= 0})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Stock < out[j].Stock })
	return out, nil
}

func currentStock(tx *gorm.DB, productID uint) (int64, error) {
	var total int64
	err := tx.Model(&models.StockMovement{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return total, err
}

// stockLevels sums movements for several products in one query. Products
// without movement are absent from the map, i.e. at zero.
func stockLevels(tx *gorm.DB, ids []uint) (map[uint]int64, error) {
	levels := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return levels, nil
	}
	var rows []struct {
		ProductID uint
		Total     int64
	}
	err := tx.Model(&models.StockMovement{}).
		Select("product_id, COALESCE(SUM(quantity), 0) AS total").
		Where("product_id IN ?", ids).
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		levels[r.ProductID] = r.Total
	}
	return levels, nil
}

// appendMovement is the only write path of the ledger.
func appendMovement(tx *gorm.DB, m *models.StockMovement) error {
	if !m.Kind.Valid() {
		return ErrInvalidMovementKind
	}
	if err := tx.Create(m).Error; err != nil {
		return fmt.Errorf("append %s movement for product %d: %w", m.Kind, m.ProductID, err)
	}
	return nil
}

func paginate(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
