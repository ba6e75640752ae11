package handlers

import (
	"net/http"

	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/internal/logging"
	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/internal/services"
)

// StockHandler exposes the stock ledger.
type StockHandler struct {
	ledger *services.StockLedger
	actors ActorResolver
	log    *logging.Logger
}

func NewStockHandler(ledger *services.StockLedger, actors ActorResolver, log *logging.Logger) *StockHandler {
	return &StockHandler{ledger: ledger, actors: actors, log: log}
}

// Record handles POST /api/stock/movements.
func (h *StockHandler) Record(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actors.Actor(r.Context())
	if err != nil {
		writeError(w, r, h.log, services.ErrForbidden)
		return
	}
	var req services.MovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	m, err := h.ledger.Record(r.Context(), actor, req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

// List handles GET /api/stock/movements.
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
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
	f := services.MovementFilter{
		ProductID: queryUint(r, "product_id"),
		Kind:      models.MovementKind(r.URL.Query().Get("kind")),
		From:      from,
		To:        to,
		Page:      queryInt(r, "page"),
		Limit:     queryInt(r, "limit"),
	}
	items, total, err := h.ledger.ListMovements(r.Context(), f)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newPage(items, total, f.Page, f.Limit))
}

// Alerts handles GET /api/stock/alerts.
func (h *StockHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	levels, err := h.ledger.LowStock(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if levels == nil {
		levels = []services.StockLevel{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"alerts": levels, "count": len(levels)})
}

// ProductStock handles GET /api/products/{id}/stock.
func (h *StockHandler) ProductStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	stock, err := h.ledger.CurrentStock(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_id": id, "stock": stock})
}
