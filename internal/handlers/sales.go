package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/internal/logging"
	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/internal/pricing"
	"github.com/diewo77/go-pos/internal/services"
)

// SaleHandler exposes the sale engine.
type SaleHandler struct {
	engine *services.SaleEngine
	actors ActorResolver
	log    *logging.Logger
}

func NewSaleHandler(engine *services.SaleEngine, actors ActorResolver, log *logging.Logger) *SaleHandler {
	return &SaleHandler{engine: engine, actors: actors, log: log}
}

// saleResponse adds display fields to a sale.
type saleResponse struct {
	*models.Sale
	TotalDisplay string `json:"total_display"`
	Change       string `json:"change,omitempty"`
}

func toSaleResponse(s *models.Sale) saleResponse {
	resp := saleResponse{Sale: s, TotalDisplay: pricing.FormatPrice(s.TotalTTC)}
	if len(s.Payments) > 0 {
		resp.Change = s.Change().StringFixed(2)
	}
	return resp
}

// Submit handles POST /api/sales.
func (h *SaleHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actors.Actor(r.Context())
	if err != nil {
		writeError(w, r, h.log, services.ErrForbidden)
		return
	}
	var cart services.Cart
	if err := httpx.DecodeJSON(r, &cart); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	sale, err := h.engine.Submit(r.Context(), actor, cart)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSaleResponse(sale))
}

// List handles GET /api/sales.
func (h *SaleHandler) List(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	q := r.URL.Query()
	f := services.SaleFilter{
		From:   from,
		To:     to,
		Status: models.SaleStatus(q.Get("status")),
		Ticket: q.Get("ticket"),
		Page:   queryInt(r, "page"),
		Limit:  queryInt(r, "limit"),
	}
	sales, total, err := h.engine.List(r.Context(), f)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	items := make([]saleResponse, len(sales))
	for i := range sales {
		items[i] = toSaleResponse(&sales[i])
	}
	httpx.JSON(w, http.StatusOK, newPage(items, total, f.Page, f.Limit))
}

// Get handles GET /api/sales/{id}.
func (h *SaleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sale, err := h.engine.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSaleResponse(sale))
}

type transitionRequest struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /api/sales/{id}/cancel.
func (h *SaleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Cancel)
}

// Refund handles POST /api/sales/{id}/refund.
func (h *SaleHandler) Refund(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Refund)
}

type transitionFunc func(ctx context.Context, actor services.Actor, id uint, reason string) (*models.Sale, error)

func (h *SaleHandler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor, err := h.actors.Actor(r.Context())
	if err != nil {
		writeError(w, r, h.log, services.ErrForbidden)
		return
	}
	var req transitionRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			writeError(w, r, h.log, err)
			return
		}
	}
	sale, err := fn(r.Context(), actor, id, req.Reason)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSaleResponse(sale))
}

// Revenue handles GET /api/sales/revenue?from=&to=. The period defaults to
// the current day.
func (h *SaleHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if from == nil {
		y, m, d := time.Now().Date()
		start := time.Date(y, m, d, 0, 0, 0, 0, time.Local)
		from = &start
	}
	if to == nil {
		end := from.AddDate(0, 0, 1)
		to = &end
	}
	total, err := h.engine.Revenue(r.Context(), *from, *to)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"from":          from,
		"to":            to,
		"total_ttc":     total.StringFixed(2),
		"total_display": pricing.FormatPrice(total),
	})
}
