package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/diewo77/go-pos/internal/fiscal"
	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/internal/pricing"
	"github.com/diewo77/go-pos/internal/uow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartLine is one requested line. UnitPrice and VATRate default to the
// catalog values of the product; UnitPrice is tax-excluded.
type CartLine struct {
	ProductID uint             `json:"product_id"`
	Quantity  int64            `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	VATRate   *decimal.Decimal `json:"vat_rate,omitempty"`
	Discount  *decimal.Decimal `json:"discount,omitempty"`
}

// PaymentInput is one tender.
type PaymentInput struct {
	Method models.PaymentMethod `json:"method"`
	Amount decimal.Decimal      `json:"amount"`
}

// Cart is a sale request. Discount is an order-level percentage.
type Cart struct {
	Lines    []CartLine       `json:"lines"`
	Payments []PaymentInput   `json:"payments"`
	Discount *decimal.Decimal `json:"discount,omitempty"`
}

// SaleEngine turns carts into committed, chained sales.
type SaleEngine struct {
	uow     *uow.UnitOfWork
	db      *gorm.DB
	tickets TicketAllocator
	config
}

// NewSaleEngine creates an engine running its commits through u.
func NewSaleEngine(u *uow.UnitOfWork, opts ...Option) *SaleEngine {
	return &SaleEngine{uow: u, db: u.DB(), config: newConfig(opts)}
}

// Submit validates cart, checks stock and payment, then stores the sale with
// its lines, payments, stock exits, ticket number and digest in one
// transaction. Nothing is stored when an error is returned.
func (e *SaleEngine) Submit(ctx context.Context, actor Actor, cart Cart) (*models.Sale, error) {
	start := time.Now()
	sale, err := e.submit(ctx, actor, cart)
	if err != nil {
		reason := rejectReason(err)
		e.metrics.SaleRejected(reason)
		e.log.WithContext(ctx).WithError(err).Warn("Sale rejected", "reason", reason, "userId", actor.UserID)
		return nil, err
	}

	e.metrics.SaleCommitted(time.Since(start))
	for range sale.Lines {
		e.metrics.Movement(string(models.MovementExitSale))
	}
	e.log.WithContext(ctx).Info("Sale committed",
		"saleId", sale.ID,
		"ticket", sale.TicketNumber,
		"totalTTC", sale.TotalTTC.StringFixed(2),
		"lines", len(sale.Lines),
		"userId", actor.UserID,
	)
	return sale, nil
}

func (e *SaleEngine) submit(ctx context.Context, actor Actor, cart Cart) (*models.Sale, error) {
	if err := actor.require(CapSell); err != nil {
		return nil, err
	}
	if err := validateCart(cart); err != nil {
		return nil, err
	}

	// one clock read: the locked ticket year is the year the sale is numbered in
	now := fiscal.NormalizeTimestamp(e.now())
	year := now.In(e.location).Year()
	ids := cartProductIDs(cart)

	var sale *models.Sale
	err := e.uow.Run(ctx, saleLockKeys(year, ids), func(tx *gorm.DB) error {
		s, err := e.commit(tx, actor, cart, ids, now, year)
		if err != nil {
			return err
		}
		sale = s
		return nil
	})
	return sale, err
}

// saleLockKeys lists the in-process locks a sale holds: the chain head, the
// ticket counter of year and every product of the cart.
func saleLockKeys(year int, ids []uint) []string {
	keys := []string{chainKey, ticketKey(year)}
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	return keys
}

// validateCart is the first gate: everything that can be checked without
// reading storage.
func validateCart(cart Cart) error {
	if len(cart.Lines) == 0 {
		return ErrEmptyCart
	}
	if len(cart.Payments) == 0 {
		return ErrNoPayment
	}
	for i, l := range cart.Lines {
		if l.Quantity <= 0 {
			return fmt.Errorf("line %d: %w", i+1, ErrInvalidQuantity)
		}
		if l.UnitPrice != nil && l.UnitPrice.IsNegative() {
			return fmt.Errorf("line %d: unit price: %w", i+1, ErrInvalidAmount)
		}
		if l.VATRate != nil && !pricing.ValidPercent(*l.VATRate) {
			return fmt.Errorf("line %d: vat rate: %w", i+1, ErrInvalidAmount)
		}
		if l.Discount != nil && !pricing.ValidPercent(*l.Discount) {
			return fmt.Errorf("line %d: discount: %w", i+1, ErrInvalidAmount)
		}
	}
	for i, p := range cart.Payments {
		if !p.Method.Valid() {
			return fmt.Errorf("payment %d: %w: %q", i+1, ErrInvalidPaymentMethod, p.Method)
		}
		if p.Amount.IsNegative() {
			return fmt.Errorf("payment %d: %w", i+1, ErrInvalidAmount)
		}
	}
	if cart.Discount != nil && !pricing.ValidPercent(*cart.Discount) {
		return fmt.Errorf("order discount: %w", ErrInvalidAmount)
	}
	return nil
}

// cartProductIDs returns the distinct product ids of cart in ascending order,
// the order rows are locked in.
func cartProductIDs(cart Cart) []uint {
	seen := make(map[uint]bool, len(cart.Lines))
	var ids []uint
	for _, l := range cart.Lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (e *SaleEngine) commit(tx *gorm.DB, actor Actor, cart Cart, ids []uint, now time.Time, year int) (*models.Sale, error) {
	// stock gate
	var products []models.Product
	if err := uow.ForUpdate(tx).Where("id IN ?", ids).Order("id").Find(&products).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	requested := make(map[uint]int64, len(ids))
	for _, l := range cart.Lines {
		requested[l.ProductID] += l.Quantity
	}
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, &ProductError{ProductID: id, Err: ErrProductNotFound}
		}
		if !p.Active {
			return nil, &ProductError{ProductID: id, Err: ErrProductInactive}
		}
	}
	levels, err := stockLevels(tx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if levels[id] < requested[id] {
			p := byID[id]
			return nil, &InsufficientStockError{
				ProductID: id,
				Reference: p.Reference,
				Available: max(levels[id], 0),
				Requested: requested[id],
			}
		}
	}

	// pricing and payment gate
	lines, priced := captureLines(cart, byID, now)
	orderDiscount := decimal.NullDecimal{}
	if cart.Discount != nil {
		orderDiscount = decimal.NewNullDecimal(cart.Discount.Round(2))
	}
	totals := pricing.ComputeTotals(priced, orderDiscount.Decimal).Rounded()

	payments := make([]models.Payment, len(cart.Payments))
	paid := decimal.Zero
	for i, p := range cart.Payments {
		amount := pricing.Cents(p.Amount)
		payments[i] = models.Payment{CreatedAt: now, Method: p.Method, Amount: amount}
		paid = paid.Add(amount)
	}
	if paid.LessThan(totals.TTC) {
		return nil, &InsufficientPaymentError{Required: totals.TTC, Given: paid}
	}

	// numbering
	seq, err := e.tickets.Next(tx, year)
	if err != nil {
		return nil, err
	}

	// hashing
	head, err := lockChainHead(tx)
	if err != nil {
		return nil, err
	}
	sale := &models.Sale{
		CreatedAt:      now,
		UpdatedAt:      now,
		TicketNumber:   models.TicketNumber(year, seq),
		Year:           year,
		Sequence:       seq,
		TotalHT:        totals.HT,
		TotalTVA:       totals.VAT,
		TotalTTC:       totals.TTC,
		Discount:       orderDiscount,
		Status:         models.SaleStatusCompleted,
		PreviousDigest: head.LastDigest,
		CreatedBy:      actor.UserID,
		Lines:          lines,
	}
	sale.Digest = fiscal.ComputeDigest(fiscal.FieldsOf(sale), head.LastDigest)

	// persistence
	if err := tx.Omit(clause.Associations).Create(sale).Error; err != nil {
		return nil, fmt.Errorf("create sale %s: %w", sale.TicketNumber, err)
	}
	for i := range lines {
		lines[i].SaleID = sale.ID
	}
	if err := tx.Omit(clause.Associations).Create(&lines).Error; err != nil {
		return nil, fmt.Errorf("create sale lines: %w", err)
	}
	for i := range payments {
		payments[i].SaleID = sale.ID
	}
	if err := tx.Create(&payments).Error; err != nil {
		return nil, fmt.Errorf("create payments: %w", err)
	}
	sale.Lines = lines
	sale.Payments = payments

	saleID := sale.ID
	for _, l := range lines {
		m := &models.StockMovement{
			CreatedAt: now,
			ProductID: l.ProductID,
			Kind:      models.MovementExitSale,
			Quantity:  models.MovementExitSale.Signed(l.Quantity),
			UnitPrice: l.UnitPrice,
			Reason:    "Vente ticket " + sale.TicketNumber,
			SaleID:    &saleID,
			CreatedBy: actor.UserID,
		}
		if err := appendMovement(tx, m); err != nil {
			return nil, err
		}
	}

	if err := advanceChainHead(tx, head, sale); err != nil {
		return nil, err
	}
	return sale, nil
}

// captureLines freezes price, VAT and discount of every cart line.
func captureLines(cart Cart, byID map[uint]*models.Product, now time.Time) ([]models.SaleLine, []pricing.Line) {
	lines := make([]models.SaleLine, len(cart.Lines))
	priced := make([]pricing.Line, len(cart.Lines))
	for i, cl := range cart.Lines {
		p := byID[cl.ProductID]
		unit := p.SalePrice
		if cl.UnitPrice != nil {
			unit = *cl.UnitPrice
		}
		vat := p.VATRate
		if cl.VATRate != nil {
			vat = *cl.VATRate
		}
		disc := decimal.NullDecimal{}
		if cl.Discount != nil {
			disc = decimal.NewNullDecimal(cl.Discount.Round(2))
		}
		lines[i] = models.SaleLine{
			CreatedAt: now,
			Position:  i + 1,
			ProductID: cl.ProductID,
			Quantity:  cl.Quantity,
			UnitPrice: pricing.Cents(unit),
			VATRate:   vat.Round(2),
			Discount:  disc,
		}
		priced[i] = pricing.Line{
			Quantity:  cl.Quantity,
			UnitPrice: lines[i].UnitPrice,
			VATRate:   lines[i].VATRate,
			Discount:  disc.Decimal,
		}
	}
	return lines, priced
}

// Cancel marks a completed sale as cancelled and puts its goods back in stock.
func (e *SaleEngine) Cancel(ctx context.Context, actor Actor, saleID uint, reason string) (*models.Sale, error) {
	return e.transition(ctx, actor, saleID, models.SaleStatusCancelled, reason)
}

// Refund marks a completed sale as refunded and puts its goods back in stock.
func (e *SaleEngine) Refund(ctx context.Context, actor Actor, saleID uint, reason string) (*models.Sale, error) {
	return e.transition(ctx, actor, saleID, models.SaleStatusRefunded, reason)
}

// transition changes the status of a sale. Totals, lines and digest stay as
// they were; stock is restored with new ENTRY movements.
func (e *SaleEngine) transition(ctx context.Context, actor Actor, saleID uint, to models.SaleStatus, reason string) (*models.Sale, error) {
	if err := actor.require(CapElevated); err != nil {
		return nil, err
	}
	action, label := models.AuditActionCancel, "Annulation"
	if to == models.SaleStatusRefunded {
		action, label = models.AuditActionRefund, "Remboursement"
	}

	var sale models.Sale
	err := e.uow.Run(ctx, []string{saleKey(saleID)}, func(tx *gorm.DB) error {
		sale = models.Sale{}
		if err := uow.ForUpdate(tx).First(&sale, saleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSaleNotFound
			}
			return err
		}
		if !sale.IsCompleted() {
			return fmt.Errorf("%w: ticket %s is %s", ErrInvalidTransition, sale.TicketNumber, sale.Status)
		}
		if err := tx.Where("sale_id = ?", sale.ID).Order("position").Find(&sale.Lines).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Sale{ID: sale.ID}).
			Where("status = ?", models.SaleStatusCompleted).
			Update("status", to)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("sale %d status moved: %w", sale.ID, uow.ErrStale)
		}

		now := e.now()
		movementReason := label + " ticket " + sale.TicketNumber
		for _, l := range sale.Lines {
			m := &models.StockMovement{
				CreatedAt: now,
				ProductID: l.ProductID,
				Kind:      models.MovementEntry,
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice,
				Reason:    movementReason,
				SaleID:    &sale.ID,
				CreatedBy: actor.UserID,
			}
			if err := appendMovement(tx, m); err != nil {
				return err
			}
		}

		return tx.Create(&models.AuditLog{
			UserID:     actor.UserID,
			EntityType: "sale",
			EntityID:   sale.ID,
			Action:     action,
			Field:      "status",
			OldValue:   string(models.SaleStatusCompleted),
			NewValue:   string(to),
			Details:    reason,
			CreatedAt:  now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	sale.Status = to
	for range sale.Lines {
		e.metrics.Movement(string(models.MovementEntry))
	}
	e.log.Audit(ctx, action, "sale", sale.ID, actor.UserID, map[string]any{
		"ticket": sale.TicketNumber,
		"reason": reason,
	})
	return &sale, nil
}
