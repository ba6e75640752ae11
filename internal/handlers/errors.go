package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/internal/logging"
	"github.com/diewo77/go-pos/internal/services"
)

// errorMapping maps a domain error to its HTTP status and error code.
type errorMapping struct {
	err    error
	status int
	code   string
}

// errorTable is walked in order; the first errors.Is match wins.
var errorTable = []errorMapping{
	{services.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{services.ErrNoPayment, http.StatusBadRequest, "no_payment"},
	{services.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{services.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{services.ErrInvalidPaymentMethod, http.StatusBadRequest, "invalid_payment_method"},
	{services.ErrInvalidMovementKind, http.StatusBadRequest, "invalid_movement_kind"},
	{services.ErrValidation, http.StatusBadRequest, "validation_failed"},
	{httpx.ErrBadJSON, http.StatusBadRequest, "invalid_json"},
	{services.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{services.ErrSaleNotFound, http.StatusNotFound, "sale_not_found"},
	{services.ErrProductInactive, http.StatusUnprocessableEntity, "product_inactive"},
	{services.ErrInsufficientStock, http.StatusUnprocessableEntity, "insufficient_stock"},
	{services.ErrInsufficientPayment, http.StatusUnprocessableEntity, "insufficient_payment"},
	{services.ErrInvalidTransition, http.StatusUnprocessableEntity, "invalid_transition"},
	{services.ErrTicketRangeExhausted, http.StatusUnprocessableEntity, "ticket_range_exhausted"},
	{services.ErrForbidden, http.StatusForbidden, "forbidden"},
	{services.ErrConflict, http.StatusConflict, "conflict"},
	{services.ErrBusy, http.StatusServiceUnavailable, "busy"},
	{services.ErrIntegrityViolation, http.StatusInternalServerError, "integrity_violation"},
}

// classify returns the status and code of err; unknown errors are internal.
func classify(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// errorDetails exposes the payload of typed errors to the client.
func errorDetails(err error) any {
	var stock *services.InsufficientStockError
	var payment *services.InsufficientPaymentError
	var validation *services.ValidationError
	var integrity *services.IntegrityViolationError
	var product *services.ProductError
	switch {
	case errors.As(err, &stock):
		return map[string]any{
			"product_id": stock.ProductID,
			"reference":  stock.Reference,
			"available":  stock.Available,
			"requested":  stock.Requested,
		}
	case errors.As(err, &payment):
		return map[string]any{
			"required": payment.Required.StringFixed(2),
			"given":    payment.Given.StringFixed(2),
		}
	case errors.As(err, &validation):
		return validation.Fields
	case errors.As(err, &integrity):
		return integrity.Violations
	case errors.As(err, &product):
		return map[string]any{"product_id": product.ProductID}
	}
	return nil
}

// writeError renders err as an ErrorResponse. Internal errors are logged
// and their message is not sent.
func writeError(w http.ResponseWriter, r *http.Request, log *logging.Logger, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError && code == "internal_error" {
		log.WithContext(r.Context()).WithError(err).Error("Request failed", "path", r.URL.Path)
	}
	httpx.JSONError(w, status, code, errorDetails(err))
}
