package services

import (
	"errors"
	"fmt"

	"github.com/diewo77/go-pos/internal/fiscal"
	"github.com/diewo77/go-pos/internal/uow"
	"github.com/shopspring/decimal"
)

// Validation errors: the request is wrong and retrying it unchanged fails again.
var (
	ErrEmptyCart            = errors.New("cart has no line")
	ErrNoPayment            = errors.New("sale has no payment")
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidMovementKind  = errors.New("invalid movement kind")
	ErrProductNotFound      = errors.New("product not found")
	ErrProductInactive      = errors.New("product is inactive")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInsufficientPayment  = errors.New("insufficient payment")
	ErrSaleNotFound         = errors.New("sale not found")
	ErrInvalidTransition    = errors.New("invalid sale status transition")
	ErrTicketRangeExhausted = errors.New("ticket sequence exhausted for the year")
	ErrValidation           = errors.New("validation failed")
)

// ErrForbidden is returned when the actor lacks the capability for an operation.
var ErrForbidden = errors.New("forbidden")

// ErrIntegrityViolation is matched by every *IntegrityViolationError.
var ErrIntegrityViolation = errors.New("fiscal chain integrity violation")

// Concurrency errors, surfaced once the unit of work gave up.
var (
	ErrConflict = uow.ErrConflict
	ErrBusy     = uow.ErrBusy
)

// InsufficientStockError names the product that cannot be served.
type InsufficientStockError struct {
	ProductID uint
	Reference string
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s): available %d, requested %d",
		e.ProductID, e.Reference, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// InsufficientPaymentError carries the amount due and the amount tendered.
type InsufficientPaymentError struct {
	Required decimal.Decimal
	Given    decimal.Decimal
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: required %s, given %s",
		e.Required.StringFixed(2), e.Given.StringFixed(2))
}

func (e *InsufficientPaymentError) Is(target error) bool { return target == ErrInsufficientPayment }

// ProductError ties a lookup failure to the product id of the request.
type ProductError struct {
	ProductID uint
	Err       error
}

func (e *ProductError) Error() string { return fmt.Sprintf("product %d: %v", e.ProductID, e.Err) }
func (e *ProductError) Unwrap() error { return e.Err }

// ValidationError lists field-level problems of a catalog or movement request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("validation failed: %v", e.Fields) }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// IntegrityViolationError reports every break found in the fiscal chain.
type IntegrityViolationError struct {
	Violations []fiscal.Violation
}

func (e *IntegrityViolationError) Error() string {
	if len(e.Violations) == 0 {
		return ErrIntegrityViolation.Error()
	}
	return fmt.Sprintf("%s: %d problem(s), first: %s", ErrIntegrityViolation, len(e.Violations), e.Violations[0])
}

func (e *IntegrityViolationError) Is(target error) bool { return target == ErrIntegrityViolation }

// rejectReason is the metrics label of a sale rejection.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrNoPayment):
		return "no_payment"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidPaymentMethod):
		return "invalid_payment_method"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrProductInactive):
		return "product_inactive"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrInsufficientPayment):
		return "insufficient_payment"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrBusy):
		return "busy"
	}
	return "error"
}
