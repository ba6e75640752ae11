package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/internal/fiscal"
	"github.com/diewo77/go-pos/internal/logging"
	"github.com/diewo77/go-pos/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
		{fmt.Errorf("%w: %q", services.ErrInvalidMovementKind, "LOST"), http.StatusBadRequest, "invalid_movement_kind"},
		{&services.ValidationError{Fields: map[string]string{"name": "required"}}, http.StatusBadRequest, "validation_failed"},
		{fmt.Errorf("%w: eof", httpx.ErrBadJSON), http.StatusBadRequest, "invalid_json"},
		{&services.ProductError{ProductID: 3, Err: services.ErrProductNotFound}, http.StatusNotFound, "product_not_found"},
		{services.ErrSaleNotFound, http.StatusNotFound, "sale_not_found"},
		{&services.ProductError{ProductID: 3, Err: services.ErrProductInactive}, http.StatusUnprocessableEntity, "product_inactive"},
		{&services.InsufficientStockError{ProductID: 1}, http.StatusUnprocessableEntity, "insufficient_stock"},
		{&services.InsufficientPaymentError{}, http.StatusUnprocessableEntity, "insufficient_payment"},
		{fmt.Errorf("%w: ticket 2025000001 is CANCELLED", services.ErrInvalidTransition), http.StatusUnprocessableEntity, "invalid_transition"},
		{services.ErrForbidden, http.StatusForbidden, "forbidden"},
		{services.ErrConflict, http.StatusConflict, "conflict"},
		{services.ErrBusy, http.StatusServiceUnavailable, "busy"},
		{&services.IntegrityViolationError{}, http.StatusInternalServerError, "integrity_violation"},
		{errors.New("disk full"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		status, code := classify(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func TestWriteError_Details(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/sales", nil)

	rec := httptest.NewRecorder()
	writeError(rec, req, logging.Discard(), &services.InsufficientPaymentError{
		Required: decimal.RequireFromString("12.5"),
		Given:    decimal.RequireFromString("10"),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"error":"insufficient_payment","details":{"required":"12.50","given":"10.00"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	writeError(rec, req, logging.Discard(), &services.IntegrityViolationError{
		Violations: []fiscal.Violation{{SaleID: 2, Reason: fiscal.ReasonDigestMismatch, Expected: "a", Stored: "b"}},
	})
	var resp httpx.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "integrity_violation", resp.Error)
	assert.Len(t, resp.Details, 1)

	// internal errors do not leak their message
	rec = httptest.NewRecorder()
	writeError(rec, req, logging.Discard(), errors.New("pq: password authentication failed"))
	assert.JSONEq(t, `{"error":"internal_error"}`, rec.Body.String())
}

func TestSubmit_ForbiddenWithoutProfile(t *testing.T) {
	noActor := ActorFunc(func(context.Context) (services.Actor, error) { return services.Actor{}, errors.New("forbidden") })
	h := NewSaleHandler(nil, noActor, logging.Discard())

	rec := httptest.NewRecorder()
	h.Submit(rec, httptest.NewRequest(http.MethodPost, "/api/sales", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPathID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/sales/abc", nil)
	req.SetPathValue("id", "abc")
	rec := httptest.NewRecorder()
	_, ok := pathID(rec, req)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req.SetPathValue("id", "42")
	id, ok := pathID(httptest.NewRecorder(), req)
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)
}

func TestQueryTime(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?from=2025-03-01&to=2025-03-14T10:00:00Z&bad=yesterday", nil)
	from, err := queryTime(req, "from")
	require.NoError(t, err)
	assert.Equal(t, 1, from.Day())
	to, err := queryTime(req, "to")
	require.NoError(t, err)
	assert.Equal(t, 10, to.Hour())
	none, err := queryTime(req, "missing")
	assert.NoError(t, err)
	assert.Nil(t, none)
	_, err = queryTime(req, "bad")
	assert.ErrorIs(t, err, services.ErrValidation)
}
