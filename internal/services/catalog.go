package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductInput carries the editable fields of a product. Reference is only
// read on creation; an empty one is generated.
type ProductInput struct {
	Reference        string          `json:"reference"`
	Barcode          *string         `json:"barcode,omitempty"`
	Name             string          `json:"name"`
	PurchasePrice    decimal.Decimal `json:"purchase_price"`
	SalePrice        decimal.Decimal `json:"sale_price"`
	VATRate          decimal.Decimal `json:"vat_rate"`
	ReorderThreshold int64           `json:"reorder_threshold"`
}

// CatalogService manages products. Products are never deleted.
type CatalogService struct {
	db *gorm.DB
	config
}

func NewCatalogService(db *gorm.DB, opts ...Option) *CatalogService {
	return &CatalogService{db: db, config: newConfig(opts)}
}

// GenerateReference builds a PRD-prefixed reference from the clock and a
// random suffix.
func GenerateReference(now time.Time) string {
	return fmt.Sprintf("PRD-%06d%03d", now.UnixMilli()%1_000_000, rand.IntN(1000))
}

func (in *ProductInput) normalize() {
	in.Reference = strings.ToUpper(strings.TrimSpace(in.Reference))
	in.Name = strings.TrimSpace(in.Name)
	if in.Barcode != nil {
		b := strings.TrimSpace(*in.Barcode)
		if b == "" {
			in.Barcode = nil
		} else {
			in.Barcode = &b
		}
	}
	in.PurchasePrice = in.PurchasePrice.Round(2)
	in.SalePrice = in.SalePrice.Round(2)
	in.VATRate = in.VATRate.Round(2)
}

func (in *ProductInput) validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.MaxLength("name", in.Name, 255, v)
	validation.MaxLength("reference", in.Reference, 50, v)
	if in.Barcode != nil {
		validation.EAN13("barcode", *in.Barcode, v)
	}
	validation.NonNegative("purchase_price", in.PurchasePrice, v)
	validation.NonNegative("sale_price", in.SalePrice, v)
	validation.Percent("vat_rate", in.VATRate, v)
	validation.NonNegativeInt("reorder_threshold", in.ReorderThreshold, v)
	return v
}

// Create adds an active product.
func (c *CatalogService) Create(ctx context.Context, actor Actor, in ProductInput) (*models.Product, error) {
	if err := actor.require(CapElevated); err != nil {
		return nil, err
	}
	in.normalize()
	if in.Reference == "" {
		in.Reference = GenerateReference(c.now())
	}
	v := in.validate()
	db := c.db.WithContext(ctx)
	if err := c.checkUnique(db, 0, in.Reference, in.Barcode, v); err != nil {
		return nil, err
	}
	if !v.Empty() {
		return nil, &ValidationError{Fields: v}
	}

	p := &models.Product{
		Reference:        in.Reference,
		Barcode:          in.Barcode,
		Name:             in.Name,
		PurchasePrice:    in.PurchasePrice,
		SalePrice:        in.SalePrice,
		VATRate:          in.VATRate,
		ReorderThreshold: in.ReorderThreshold,
		Active:           true,
	}
	if err := db.Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &ValidationError{Fields: map[string]string{"reference": "already_exists"}}
		}
		return nil, err
	}
	c.log.Audit(ctx, "product_create", "product", p.ID, actor.UserID, map[string]any{"reference": p.Reference})
	return p, nil
}

// Update changes name, barcode, prices, VAT and threshold. The reference is
// the identity of the product and cannot change.
func (c *CatalogService) Update(ctx context.Context, actor Actor, id uint, in ProductInput) (*models.Product, error) {
	if err := actor.require(CapElevated); err != nil {
		return nil, err
	}
	db := c.db.WithContext(ctx)
	p, err := c.find(db, id)
	if err != nil {
		return nil, err
	}

	in.normalize()
	v := in.validate()
	if in.Reference != "" && in.Reference != p.Reference {
		v["reference"] = "immutable"
	}
	if err := c.checkUnique(db, p.ID, "", in.Barcode, v); err != nil {
		return nil, err
	}
	if !v.Empty() {
		return nil, &ValidationError{Fields: v}
	}

	p.Barcode = in.Barcode
	p.Name = in.Name
	p.PurchasePrice = in.PurchasePrice
	p.SalePrice = in.SalePrice
	p.VATRate = in.VATRate
	p.ReorderThreshold = in.ReorderThreshold
	if err := db.Save(p).Error; err != nil {
		return nil, err
	}
	c.log.Audit(ctx, "product_update", "product", p.ID, actor.UserID, nil)
	return p, nil
}

// Deactivate hides a product from sales. Its movements stay in the ledger.
func (c *CatalogService) Deactivate(ctx context.Context, actor Actor, id uint) (*models.Product, error) {
	if err := actor.require(CapElevated); err != nil {
		return nil, err
	}
	db := c.db.WithContext(ctx)
	p, err := c.find(db, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return p, nil
	}
	if err := db.Model(p).Update("active", false).Error; err != nil {
		return nil, err
	}
	p.Active = false
	c.log.Audit(ctx, "product_deactivate", "product", p.ID, actor.UserID, nil)
	return p, nil
}

// Get returns one product.
func (c *CatalogService) Get(ctx context.Context, id uint) (*models.Product, error) {
	return c.find(c.db.WithContext(ctx), id)
}

// ProductFilter narrows List.
type ProductFilter struct {
	Query      string
	ActiveOnly bool
	Page       int
	Limit      int
}

// List returns products ordered by name, with the total count.
func (c *CatalogService) List(ctx context.Context, f ProductFilter) ([]models.Product, int64, error) {
	q := c.db.WithContext(ctx).Model(&models.Product{})
	if f.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(reference) LIKE ? OR barcode = ?", like, like, s)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	page, limit := paginate(f.Page, f.Limit)
	var products []models.Product
	err := q.Order("name").Offset((page - 1) * limit).Limit(limit).Find(&products).Error
	return products, total, err
}

func (c *CatalogService) find(db *gorm.DB, id uint) (*models.Product, error) {
	var p models.Product
	if err := db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ProductError{ProductID: id, Err: ErrProductNotFound}
		}
		return nil, err
	}
	return &p, nil
}

// checkUnique reports already used references and barcodes into v.
func (c *CatalogService) checkUnique(db *gorm.DB, selfID uint, reference string, barcode *string, v validation.Violations) error {
	var n int64
	if reference != "" {
		if err := db.Model(&models.Product{}).Where("reference = ? AND id <> ?", reference, selfID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			v["reference"] = "already_exists"
		}
	}
	if barcode != nil {
		if err := db.Model(&models.Product{}).Where("barcode = ? AND id <> ?", *barcode, selfID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			v["barcode"] = "already_exists"
		}
	}
	return nil
}
